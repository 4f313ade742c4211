package core

// intake.go implements the selection slot for the file to transform.
//
// A choice moves the slot Empty -> TypeChecking -> EncodingChecking -> Selected.
// Any failed check leaves the slot Empty and records one error entry. The type
// check runs before the content is opened so a wrong file is never read.
// Selecting a file is not logged; only the outcome of a submission is.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonMunkholm/erpload/internal/logging"
	"github.com/cespare/xxhash/v2"
)

// SlotState is the state of the selection slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotTypeChecking
	SlotEncodingChecking
	SlotSelected
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotTypeChecking:
		return "type_checking"
	case SlotEncodingChecking:
		return "encoding_checking"
	case SlotSelected:
		return "selected"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// FileHandle is a file the operator picked. Open is only called once the
// name and media type have been accepted.
type FileHandle interface {
	Name() string
	MediaType() string
	Open() (io.ReadCloser, error)
}

// BytesFile is an in-memory FileHandle.
type BytesFile struct {
	FileName string
	Type     string
	Content  []byte
}

func (f BytesFile) Name() string      { return f.FileName }
func (f BytesFile) MediaType() string { return f.Type }

func (f BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// AcceptedType describes the one kind of file the intake accepts.
// The extension must match; the media type, when the client sent a
// meaningful one, must be one of MediaTypes.
type AcceptedType struct {
	Extension  string
	MediaTypes []string
}

// CSVType is the accepted type for ERP exports. Excel on Windows labels CSV
// files application/vnd.ms-excel, so that alias is allowed too.
var CSVType = AcceptedType{
	Extension:  ".csv",
	MediaTypes: []string{"text/csv", "application/csv", "application/vnd.ms-excel"},
}

// Matches reports whether a file name and media type are of this type.
func (a AcceptedType) Matches(name, mediaType string) bool {
	if !strings.EqualFold(filepath.Ext(name), a.Extension) {
		return false
	}

	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	if mt == "application/octet-stream" {
		return true
	}
	for _, m := range a.MediaTypes {
		if strings.EqualFold(mt, m) {
			return true
		}
	}
	return false
}

// UploadCandidate is a file that passed every intake check.
type UploadCandidate struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	// Checksum is the xxhash64 of the content, hex encoded.
	Checksum string `json:"checksum"`
	// Preview is nil when the content does not parse as CSV.
	Preview *Preview `json:"preview,omitempty"`
	content []byte
}

// Content returns the raw file bytes.
func (c *UploadCandidate) Content() []byte { return c.content }

// IntakeOptions configures an IntakeController.
type IntakeOptions struct {
	Accepted AcceptedType
	// MaxFileSize rejects larger files at read time. Zero means no limit.
	MaxFileSize int64
	// Limiter bounds concurrent submissions; it is usually shared by all sessions.
	Limiter *CallLimiter
}

// IntakeController owns the selection slot of one session.
type IntakeController struct {
	backend SubmitBackend
	ledger  *Ledger
	opts    IntakeOptions

	// inflight has a single slot; a submit that cannot take it is rejected.
	inflight *CallLimiter

	mu       sync.Mutex
	state    SlotState
	selected *UploadCandidate
}

// NewIntakeController returns a controller with an empty slot.
func NewIntakeController(backend SubmitBackend, ledger *Ledger, opts IntakeOptions) *IntakeController {
	if opts.Accepted.Extension == "" {
		opts.Accepted = CSVType
	}
	return &IntakeController{
		backend:  backend,
		ledger:   ledger,
		opts:     opts,
		inflight: NewCallLimiter(1, DefaultMaxWaitTime),
	}
}

// State returns the slot state.
func (c *IntakeController) State() SlotState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selected returns the selected candidate, or nil when the slot is empty.
func (c *IntakeController) Selected() *UploadCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Accepted returns the file type this controller accepts.
func (c *IntakeController) Accepted() AcceptedType { return c.opts.Accepted }

// ChooseFile runs the intake checks on f. Any previous selection is dropped
// first. A rejection returns a *ValidationError and records one error entry.
func (c *IntakeController) ChooseFile(ctx context.Context, f FileHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = nil
	c.state = SlotTypeChecking

	name := f.Name()
	if !c.opts.Accepted.Matches(name, f.MediaType()) {
		return c.reject(ctx, name, ErrWrongFileType,
			"%q rejected: select a valid file of the required type (%s)", name, c.opts.Accepted.Extension)
	}

	c.state = SlotEncodingChecking

	content, err := readContent(ctx, f, c.opts.MaxFileSize)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return c.reject(ctx, name, ErrFileTooLarge,
				"%q rejected: file exceeds the %d byte limit", name, c.opts.MaxFileSize)
		}
		logging.FromContext(ctx).Warn("intake: read failed", "file", name, "error", err)
		return c.reject(ctx, name, ErrFileUnreadable, "%q rejected: file could not be read", name)
	}

	if !ValidateEncoding(content) {
		msg := fmt.Sprintf("%q rejected: file is not in the required encoding (UTF-8), re-save and retry", name)
		if d := DiagnoseEncoding(content); d.LikelyCharset != "" {
			msg += fmt.Sprintf(" (it looks like %s)", d.LikelyCharset)
		}
		return c.reject(ctx, name, ErrInvalidEncoding, "%s", msg)
	}

	preview, err := BuildPreview(content)
	if err != nil {
		logging.FromContext(ctx).Debug("intake: no preview", "file", name, "error", err)
	}

	c.selected = &UploadCandidate{
		Name:      name,
		MediaType: f.MediaType(),
		Size:      len(content),
		Checksum:  Checksum(content),
		Preview:   preview,
		content:   content,
	}
	c.state = SlotSelected
	return nil
}

// RejectOversize records a file the transport refused before it could be
// read because it was over the size limit. The slot is emptied as for any
// other rejection.
func (c *IntakeController) RejectOversize(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		name = "file"
	}
	return c.reject(ctx, name, ErrFileTooLarge,
		"%q rejected: file exceeds the %d byte limit", name, c.opts.MaxFileSize)
}

// reject empties the slot and records the rejection. Caller holds c.mu.
func (c *IntakeController) reject(ctx context.Context, name string, cause error, format string, args ...any) error {
	c.selected = nil
	c.state = SlotEmpty
	c.ledger.Append(ErrorEntry(0, format, args...))

	logging.FromContext(ctx).Info("intake: file rejected", "file", name, "reason", cause)
	return &ValidationError{Field: "file", Value: name, Err: cause}
}

// Checksum fingerprints file content so log lines about the same file can be matched.
func Checksum(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// readContent reads the whole file, failing with ErrFileTooLarge past limit bytes.
func readContent(ctx context.Context, f FileHandle, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(content)) > limit {
		return nil, ErrFileTooLarge
	}
	return content, nil
}

// Submit hands the selected file to the backend. With an empty slot it
// returns ErrNoSelection and does nothing else. After a successful handoff
// the slot is cleared; after a failure the selection is kept.
func (c *IntakeController) Submit(ctx context.Context) (SubmitReceipt, error) {
	c.mu.Lock()
	cand := c.selected
	c.mu.Unlock()

	if cand == nil {
		return SubmitReceipt{}, &ValidationError{Field: "file", Err: ErrNoSelection}
	}
	if !c.inflight.TryAcquire() {
		return SubmitReceipt{}, &ValidationError{Field: "file", Value: cand.Name, Err: ErrSubmitInFlight}
	}
	defer c.inflight.Release()

	logger := logging.WithFields(ctx, "file", cand.Name, "bytes", cand.Size, "checksum", cand.Checksum)

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Acquire(ctx); err != nil {
			c.ledger.Append(ErrorEntry(0, "Could not send %q: %v", cand.Name, err))
			logger.Warn("intake: no submission slot", "error", err)
			return SubmitReceipt{}, fmt.Errorf("submit %s: %w", cand.Name, err)
		}
		defer c.opts.Limiter.Release()
	}

	receipt, err := c.backend.SubmitFile(ctx, cand.Name, cand.content)
	if err != nil {
		c.ledger.Append(ErrorEntry(StatusCode(err), "Could not send %q for transformation", cand.Name))
		logger.Warn("intake: submission failed", "error", err)
		return receipt, err
	}
	if receipt.Error != "" {
		c.ledger.Append(ErrorEntry(0, "Backend could not transform %q: %s", cand.Name, receipt.Error))
		logger.Warn("intake: backend refused file", "backend_error", receipt.Error)
		return receipt, &TransportError{Op: "submit file", Err: errors.New(receipt.Error)}
	}

	if receipt.OutputFile != "" {
		c.ledger.Append(SuccessEntry("%q sent for transformation, output %s", cand.Name, receipt.OutputFile))
	} else {
		c.ledger.Append(SuccessEntry("%q sent for transformation", cand.Name))
	}
	logger.Info("intake: file submitted", "status", receipt.StatusCode)

	c.mu.Lock()
	if c.selected == cand {
		c.selected = nil
		c.state = SlotEmpty
	}
	c.mu.Unlock()

	return receipt, nil
}
