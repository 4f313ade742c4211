package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
)

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	mu sync.Mutex

	current    int64
	currentErr error

	confirmed int64
	setErr    error
	setGate   chan struct{} // when non-nil, SetFolio blocks until closed
	setCalls  []int64

	receipt     SubmitReceipt
	submitErr   error
	submitGate  chan struct{} // when non-nil, SubmitFile blocks until closed
	submitCalls []string
	getCalls    int
}

func (f *fakeBackend) CurrentFolio(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return f.current, f.currentErr
}

func (f *fakeBackend) SetFolio(ctx context.Context, folio int64) (int64, error) {
	f.mu.Lock()
	f.setCalls = append(f.setCalls, folio)
	gate := f.setGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return f.confirmed, f.setErr
}

func (f *fakeBackend) SubmitFile(ctx context.Context, name string, content []byte) (SubmitReceipt, error) {
	f.mu.Lock()
	f.submitCalls = append(f.submitCalls, name)
	gate := f.submitGate
	receipt, err := f.receipt, f.submitErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return receipt, err
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitCalls)
}

func (f *fakeBackend) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls + len(f.setCalls) + len(f.submitCalls)
}

// spyFile is a FileHandle that counts Open calls.
type spyFile struct {
	BytesFile
	opens   int
	openErr error
}

func (f *spyFile) Open() (io.ReadCloser, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.BytesFile.Open()
}

func csvFile(name string, content string) *spyFile {
	return &spyFile{BytesFile: BytesFile{FileName: name, Type: "text/csv", Content: []byte(content)}}
}

func statusErr(op string, code int) error {
	return &TransportError{Op: op, StatusCode: code, Err: errors.New("unexpected status")}
}

func onlyEntry(t *testing.T, l *Ledger) LogEntry {
	t.Helper()
	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1: %+v", len(entries), entries)
	}
	return entries[0]
}
