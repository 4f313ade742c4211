package core

import "context"

// FolioBackend owns the persisted folio counter.
type FolioBackend interface {
	// CurrentFolio returns the last folio the backend has assigned.
	CurrentFolio(ctx context.Context) (int64, error)
	// SetFolio overrides the counter and returns the value the backend confirmed.
	SetFolio(ctx context.Context, folio int64) (int64, error)
}

// SubmitBackend receives files for transformation.
type SubmitBackend interface {
	SubmitFile(ctx context.Context, name string, content []byte) (SubmitReceipt, error)
}

// Backend is the full transformation backend contract.
type Backend interface {
	FolioBackend
	SubmitBackend
}

// SubmitReceipt is what the backend reported for a submitted file.
// Error is set when the backend answered 2xx but refused the content.
type SubmitReceipt struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
	OutputFile string `json:"output_file,omitempty"`
	Error      string `json:"error,omitempty"`
}
