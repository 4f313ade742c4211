package core

// folio.go implements the operator view of the backend folio counter.
//
// The backend is the only source of truth for the counter: other operators
// and the transform itself advance it. The controller therefore never shows a
// value the backend has not confirmed. The pending override is advisory input
// and is only sent when the operator applies it.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/erpload/internal/logging"
)

// Folio is a folio number that may be unknown. The zero value is unknown,
// which is distinct from a known value of 0.
type Folio struct {
	Value int64
	Valid bool
}

// KnownFolio returns a known folio.
func KnownFolio(v int64) Folio { return Folio{Value: v, Valid: true} }

func (f Folio) String() string {
	if !f.Valid {
		return "unknown"
	}
	return strconv.FormatInt(f.Value, 10)
}

// MarshalJSON encodes an unknown folio as null.
func (f Folio) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as unknown and a number as a known folio.
func (f *Folio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Folio{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode folio: %w", err)
	}
	*f = KnownFolio(v)
	return nil
}

// FolioState is a snapshot of a FolioController.
type FolioState struct {
	Current  Folio `json:"current"`
	Pending  Folio `json:"pending"`
	Applying bool  `json:"applying"`
}

// FolioController reads the current folio once and applies operator overrides.
type FolioController struct {
	backend FolioBackend
	ledger  *Ledger

	// inflight has a single slot; an apply that cannot take it is rejected.
	inflight *CallLimiter

	mu      sync.Mutex
	fetched bool
	current Folio
	pending Folio
}

// NewFolioController returns a controller whose current value is unknown.
func NewFolioController(backend FolioBackend, ledger *Ledger) *FolioController {
	return &FolioController{
		backend:  backend,
		ledger:   ledger,
		inflight: NewCallLimiter(1, DefaultMaxWaitTime),
	}
}

// State returns the current and pending values.
func (c *FolioController) State() FolioState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FolioState{
		Current:  c.current,
		Pending:  c.pending,
		Applying: c.inflight.ActiveCount() > 0,
	}
}

// FetchCurrent loads the current folio from the backend. Only the first call
// does anything; later calls return nil. On failure the value stays unknown
// and one error entry is recorded.
func (c *FolioController) FetchCurrent(ctx context.Context) error {
	c.mu.Lock()
	if c.fetched {
		c.mu.Unlock()
		return nil
	}
	c.fetched = true
	c.mu.Unlock()

	v, err := c.backend.CurrentFolio(ctx)
	if err == nil && v < 0 {
		err = &TransportError{Op: "get current folio", Err: fmt.Errorf("%w: negative folio %d", ErrMalformedResponse, v)}
	}
	if err != nil {
		c.ledger.Append(ErrorEntry(StatusCode(err), "Could not retrieve current folio"))
		logging.FromContext(ctx).Warn("folio: fetch failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.current = KnownFolio(v)
	c.mu.Unlock()
	return nil
}

// SetPendingOverride stores the operator's new folio. Input that is not an
// integer leaves the pending value untouched and returns a *ValidationError.
func (c *FolioController) SetPendingOverride(input string) error {
	input = strings.TrimSpace(input)
	v, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return &ValidationError{Field: "nuevo_folio", Value: input, Err: ErrInvalidFolio}
	}

	c.mu.Lock()
	c.pending = KnownFolio(v)
	c.mu.Unlock()
	return nil
}

// ApplyOverride sends the pending folio to the backend and adopts the value
// the backend confirms. Without a pending value, or while another apply is in
// flight, it returns a *ValidationError and makes no call.
func (c *FolioController) ApplyOverride(ctx context.Context) (int64, error) {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	if !pending.Valid {
		return 0, &ValidationError{Field: "nuevo_folio", Err: ErrNoPendingOverride}
	}
	if !c.inflight.TryAcquire() {
		return 0, &ValidationError{Field: "nuevo_folio", Value: pending.String(), Err: ErrOverrideInFlight}
	}
	defer c.inflight.Release()

	logger := logging.WithFields(ctx, "requested", pending.Value)

	confirmed, err := c.backend.SetFolio(ctx, pending.Value)
	if err == nil && confirmed < 0 {
		err = &TransportError{Op: "set folio", Err: fmt.Errorf("%w: negative folio %d", ErrMalformedResponse, confirmed)}
	}
	if err != nil {
		c.ledger.Append(ErrorEntry(StatusCode(err), "Could not update folio"))
		logger.Warn("folio: override failed", "error", err)
		return 0, err
	}

	c.mu.Lock()
	c.current = KnownFolio(confirmed)
	c.mu.Unlock()

	c.ledger.Append(SuccessEntry("Folio updated: %d", confirmed))
	logger.Info("folio: override applied", "confirmed", confirmed)
	return confirmed, nil
}
