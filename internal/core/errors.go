package core

import (
	"errors"
	"fmt"
)

// Sentinel causes. Wrap them in ValidationError or TransportError; match with errors.Is.
var (
	ErrWrongFileType     = errors.New("select a valid file of the required type")
	ErrInvalidEncoding   = errors.New("file is not in the required encoding, re-save and retry")
	ErrFileTooLarge      = errors.New("file too large")
	ErrFileUnreadable    = errors.New("file could not be read")
	ErrNoSelection       = errors.New("no file selected")
	ErrSubmitInFlight    = errors.New("file submission already in progress")
	ErrInvalidFolio      = errors.New("folio must be an integer")
	ErrNoPendingOverride = errors.New("no pending folio override")
	ErrOverrideInFlight  = errors.New("folio override already in progress")
	ErrTooManyCalls      = errors.New("too many submissions in progress")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// ValidationError is a local rejection: no backend call was made.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError is a failed backend call. StatusCode is 0 when no response
// was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status of a TransportError anywhere in err's chain.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsValidation reports whether err is a local validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
