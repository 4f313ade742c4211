package core

// ledger.go implements the session activity log shown to the operator.
//
// The ledger is append-only: entries are stored by value and never edited.
// Clear is the only deletion path. Display order is insertion order, oldest
// first. Project turns entries into a read view that adds canned explanations
// for the backend status codes operators hit most often.

import (
	"fmt"
	"sync"
	"time"
)

// Status is the outcome recorded by a LogEntry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// LogEntry is one recorded outcome. Code is an HTTP status and is only set on
// error entries; zero means no code was available.
type LogEntry struct {
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	Code    int       `json:"code,omitempty"`
	At      time.Time `json:"at"`
}

// HasCode reports whether the entry carries an error code.
func (e LogEntry) HasCode() bool {
	return e.Status == StatusError && e.Code != 0
}

// SuccessEntry builds a success entry. Success entries never carry a code.
func SuccessEntry(format string, args ...any) LogEntry {
	return LogEntry{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// ErrorEntry builds an error entry with an optional HTTP status code (0 for none).
func ErrorEntry(code int, format string, args ...any) LogEntry {
	return LogEntry{Status: StatusError, Message: fmt.Sprintf(format, args...), Code: code}
}

// Ledger is an ordered, in-memory sequence of LogEntry values.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []LogEntry
	now     func() time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Append records an entry at the end of the ledger.
func (l *Ledger) Append(e LogEntry) {
	if e.Status != StatusError {
		e.Code = 0
	}
	if e.At.IsZero() {
		e.At = l.now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Clear removes every entry. It cannot be undone.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the entries in display order.
func (l *Ledger) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntryView is the read model of a LogEntry for rendering.
type EntryView struct {
	LogEntry
	Explanation string `json:"explanation,omitempty"`
}

// codeExplanations holds the canned text for well-known backend codes.
var codeExplanations = map[int]string{
	405: "Method not allowed (405). Please verify the request.",
	422: "Invalid data (422). Please review the submitted data.",
}

// Explain returns the canned explanation for an error code, if one exists.
func Explain(code int) (string, bool) {
	msg, ok := codeExplanations[code]
	return msg, ok
}

// Project builds the display view of entries. It does not modify its input.
func Project(entries []LogEntry) []EntryView {
	views := make([]EntryView, len(entries))
	for i, e := range entries {
		views[i] = EntryView{LogEntry: e}
		if e.HasCode() {
			views[i].Explanation, _ = Explain(e.Code)
		}
	}
	return views
}
