package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolio_UnknownIsNotZero(t *testing.T) {
	var unknown Folio
	zero := KnownFolio(0)

	assert.NotEqual(t, unknown, zero)
	assert.Equal(t, "unknown", unknown.String())
	assert.Equal(t, "0", zero.String())

	got, err := json.Marshal(FolioState{Current: unknown, Pending: zero})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current":null,"pending":0,"applying":false}`, string(got))
}

func TestFolioState_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state FolioState
	}{
		{"known current", FolioState{Current: KnownFolio(1042)}},
		{"known zero", FolioState{Current: KnownFolio(0), Pending: KnownFolio(1050), Applying: true}},
		{"all unknown", FolioState{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.state)
			require.NoError(t, err)

			var got FolioState
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, tt.state, got)
		})
	}
}

func TestFolio_UnmarshalJSON(t *testing.T) {
	f := KnownFolio(9)
	require.NoError(t, json.Unmarshal([]byte("null"), &f))
	assert.Equal(t, Folio{}, f)

	require.NoError(t, json.Unmarshal([]byte("1042"), &f))
	assert.Equal(t, KnownFolio(1042), f)

	assert.Error(t, json.Unmarshal([]byte(`"1042"`), &f))
	assert.Error(t, json.Unmarshal([]byte("10.5"), &f))
}

func TestFetchCurrent_Success(t *testing.T) {
	b := &fakeBackend{current: 1042}
	l := NewLedger()
	c := NewFolioController(b, l)

	require.NoError(t, c.FetchCurrent(context.Background()))

	assert.Equal(t, KnownFolio(1042), c.State().Current)
	assert.Equal(t, 0, l.Len())
}

func TestFetchCurrent_RunsOnce(t *testing.T) {
	b := &fakeBackend{current: 7}
	c := NewFolioController(b, NewLedger())
	ctx := context.Background()

	require.NoError(t, c.FetchCurrent(ctx))
	b.current = 99
	require.NoError(t, c.FetchCurrent(ctx))

	assert.Equal(t, 1, b.getCalls)
	assert.Equal(t, KnownFolio(7), c.State().Current)
}

func TestFetchCurrent_Failure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		current  int64
		wantCode int
	}{
		{"network error", &TransportError{Op: "get current folio", Err: errors.New("connection refused")}, 0, 0},
		{"non-2xx", statusErr("get current folio", 500), 0, 500},
		{"negative value", nil, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			c := NewFolioController(&fakeBackend{current: tt.current, currentErr: tt.err}, l)

			require.Error(t, c.FetchCurrent(context.Background()))

			assert.False(t, c.State().Current.Valid, "current must stay unknown")
			entry := onlyEntry(t, l)
			assert.Equal(t, StatusError, entry.Status)
			assert.Equal(t, "Could not retrieve current folio", entry.Message)
			assert.Equal(t, tt.wantCode, entry.Code)
		})
	}
}

func TestSetPendingOverride(t *testing.T) {
	c := NewFolioController(&fakeBackend{}, NewLedger())

	require.NoError(t, c.SetPendingOverride(" 1050 "))
	assert.Equal(t, KnownFolio(1050), c.State().Pending)

	for _, bad := range []string{"", "abc", "10.5", "1e3", "12a"} {
		err := c.SetPendingOverride(bad)
		require.ErrorIs(t, err, ErrInvalidFolio, "input %q", bad)
		assert.True(t, IsValidation(err))
		assert.Equal(t, KnownFolio(1050), c.State().Pending, "state unchanged after %q", bad)
	}

	require.NoError(t, c.SetPendingOverride("-5"), "no local bounds check")
	assert.Equal(t, KnownFolio(-5), c.State().Pending)
}

func TestApplyOverride_UsesBackendConfirmedValue(t *testing.T) {
	b := &fakeBackend{current: 1000, confirmed: 1051}
	l := NewLedger()
	c := NewFolioController(b, l)
	ctx := context.Background()

	require.NoError(t, c.FetchCurrent(ctx))
	require.NoError(t, c.SetPendingOverride("1050"))

	got, err := c.ApplyOverride(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1051), got)
	assert.Equal(t, KnownFolio(1051), c.State().Current)
	assert.Equal(t, []int64{1050}, b.setCalls)

	entry := onlyEntry(t, l)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Contains(t, entry.Message, "1051")
}

func TestApplyOverride_422(t *testing.T) {
	b := &fakeBackend{current: 1000, setErr: statusErr("set folio", 422)}
	l := NewLedger()
	c := NewFolioController(b, l)
	ctx := context.Background()

	require.NoError(t, c.FetchCurrent(ctx))
	require.NoError(t, c.SetPendingOverride("-1"))

	_, err := c.ApplyOverride(ctx)

	require.Error(t, err)
	assert.Equal(t, KnownFolio(1000), c.State().Current)

	entry := onlyEntry(t, l)
	assert.Equal(t, StatusError, entry.Status)
	assert.Equal(t, 422, entry.Code)

	view := Project(l.Entries())[0]
	assert.Contains(t, view.Explanation, "Invalid data")
}

func TestApplyOverride_WithoutPending(t *testing.T) {
	b := &fakeBackend{}
	l := NewLedger()
	c := NewFolioController(b, l)

	_, err := c.ApplyOverride(context.Background())

	require.ErrorIs(t, err, ErrNoPendingOverride)
	assert.Empty(t, b.setCalls)
	assert.Equal(t, 0, l.Len())
}

func TestApplyOverride_RejectsWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{confirmed: 2000, setGate: gate}
	l := NewLedger()
	c := NewFolioController(b, l)
	ctx := context.Background()

	require.NoError(t, c.SetPendingOverride("2000"))

	done := make(chan error, 1)
	go func() {
		_, err := c.ApplyOverride(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.State().Applying }, time.Second, 5*time.Millisecond)

	_, err := c.ApplyOverride(ctx)
	require.ErrorIs(t, err, ErrOverrideInFlight)

	close(gate)
	require.NoError(t, <-done)

	b.mu.Lock()
	calls := len(b.setCalls)
	b.mu.Unlock()
	assert.Equal(t, 1, calls, "second apply must not reach the backend")
	assert.Equal(t, 1, l.Len())
	assert.False(t, c.State().Applying)
}

// fetch 1042, override to 1050, backend confirms 1050.
func TestScenario_FetchThenOverride(t *testing.T) {
	b := &fakeBackend{current: 1042, confirmed: 1050}
	l := NewLedger()
	c := NewFolioController(b, l)
	ctx := context.Background()

	require.NoError(t, c.FetchCurrent(ctx))
	assert.Equal(t, int64(1042), c.State().Current.Value)

	require.NoError(t, c.SetPendingOverride("1050"))
	_, err := c.ApplyOverride(ctx)
	require.NoError(t, err)

	assert.Equal(t, KnownFolio(1050), c.State().Current)
	entry := onlyEntry(t, l)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Contains(t, entry.Message, "1050")
}
