package core

import (
	"testing"
	"time"
)

func TestLedger_AppendKeepsInsertionOrder(t *testing.T) {
	l := NewLedger()
	l.Append(SuccessEntry("first"))
	l.Append(ErrorEntry(500, "second"))
	l.Append(SuccessEntry("third %d", 3))

	entries := l.Entries()
	want := []string{"first", "second", "third 3"}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, want %d", len(entries), len(want))
	}
	for i, msg := range want {
		if entries[i].Message != msg {
			t.Errorf("entries[%d].Message = %q, want %q", i, entries[i].Message, msg)
		}
		if entries[i].At.IsZero() {
			t.Errorf("entries[%d].At not stamped", i)
		}
	}
}

func TestLedger_SuccessNeverCarriesCode(t *testing.T) {
	l := NewLedger()
	l.Append(LogEntry{Status: StatusSuccess, Message: "ok", Code: 200})

	if got := l.Entries()[0].Code; got != 0 {
		t.Errorf("success entry Code = %d, want 0", got)
	}
}

func TestLedger_EntriesIsACopy(t *testing.T) {
	l := NewLedger()
	l.Append(SuccessEntry("original"))

	entries := l.Entries()
	entries[0].Message = "mutated"

	if got := l.Entries()[0].Message; got != "original" {
		t.Errorf("ledger entry changed through copy: %q", got)
	}
}

func TestLedger_Clear(t *testing.T) {
	for _, n := range []int{0, 1, 25} {
		l := NewLedger()
		for i := 0; i < n; i++ {
			l.Append(ErrorEntry(0, "entry %d", i))
		}

		l.Clear()

		if got := l.Len(); got != 0 {
			t.Errorf("after Clear with %d entries, Len = %d, want 0", n, got)
		}

		l.Append(SuccessEntry("after clear"))
		fresh := NewLedger()
		fresh.Append(SuccessEntry("after clear"))

		if l.Len() != fresh.Len() || l.Entries()[0].Message != fresh.Entries()[0].Message {
			t.Errorf("append after Clear differs from append on a fresh ledger")
		}
	}
}

func TestLedger_KeepsGivenTimestamp(t *testing.T) {
	at := time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC)
	l := NewLedger()
	l.Append(LogEntry{Status: StatusSuccess, Message: "stamped", At: at})

	if got := l.Entries()[0].At; !got.Equal(at) {
		t.Errorf("At = %v, want %v", got, at)
	}
}

func TestProject(t *testing.T) {
	entries := []LogEntry{
		SuccessEntry("Folio updated: 1050"),
		ErrorEntry(405, "Could not update folio"),
		ErrorEntry(422, "Could not update folio"),
		ErrorEntry(500, "Could not update folio"),
		ErrorEntry(0, "Could not retrieve current folio"),
	}

	views := Project(entries)

	tests := []struct {
		idx             int
		wantExplanation string
		wantCode        int
	}{
		{0, "", 0},
		{1, "Method not allowed (405). Please verify the request.", 405},
		{2, "Invalid data (422). Please review the submitted data.", 422},
		{3, "", 500},
		{4, "", 0},
	}
	for _, tt := range tests {
		v := views[tt.idx]
		if v.Explanation != tt.wantExplanation {
			t.Errorf("views[%d].Explanation = %q, want %q", tt.idx, v.Explanation, tt.wantExplanation)
		}
		if v.Code != tt.wantCode {
			t.Errorf("views[%d].Code = %d, want %d", tt.idx, v.Code, tt.wantCode)
		}
		if v.Message != entries[tt.idx].Message {
			t.Errorf("views[%d].Message = %q, want %q", tt.idx, v.Message, entries[tt.idx].Message)
		}
	}
}
