package core

// error_messages.go maps errors to operator-facing prompts.
//
// Each prompt carries a short code operators can quote to support staff:
//
//	FILE001 - Wrong file type: only CSV exports are accepted
//	FILE002 - Encoding error: file is not UTF-8
//	FILE003 - File too large: file exceeds the configured limit
//	FILE004 - No file: submit was pressed without a selected file
//	FILE005 - Unreadable: the uploaded file could not be read
//	FILE006 - Submit busy: a previous submission has not finished
//	FOL001  - Invalid folio: override is not an integer
//	FOL002  - No override: apply was pressed without a value
//	FOL003  - Override busy: a previous override has not finished
//	NET001  - Backend busy: submission slots exhausted
//	NET002  - Backend rejected: non-2xx response
//	NET003  - Backend unreachable: request never got a response
//	NET004  - Backend response: body could not be understood
//	SES001  - Session expired: the page must be reloaded
//	UPL004  - Request cancelled
//	UPL005  - Request timeout
//	RATE001 - Rate limited
//	EXP001  - Unknown ledger export format
//	ERR000  - Unknown error
//
// Typed errors are matched with errors.Is first. Errors that only exist as
// text (rate limiting, context errors crossing process boundaries) fall back
// to case-insensitive substring patterns.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order; the first errors.Is match wins.
var sentinelMessages = []sentinelMessage{
	{ErrWrongFileType, UserMessage{
		Message: "Select a valid file of the required type",
		Action:  "Choose a .csv export",
		Code:    "FILE001",
	}},
	{ErrInvalidEncoding, UserMessage{
		Message: "The file is not in the required encoding",
		Action:  "Re-save the file as CSV UTF-8 and retry",
		Code:    "FILE002",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the export into smaller files",
		Code:    "FILE003",
	}},
	{ErrNoSelection, UserMessage{
		Message: "Select a file before transforming",
		Action:  "Choose a .csv file first",
		Code:    "FILE004",
	}},
	{ErrFileUnreadable, UserMessage{
		Message: "The file could not be read",
		Action:  "Choose the file again",
		Code:    "FILE005",
	}},
	{ErrSubmitInFlight, UserMessage{
		Message: "This file is already being sent",
		Action:  "Wait for it to finish, then check the activity log",
		Code:    "FILE006",
	}},
	{ErrInvalidFolio, UserMessage{
		Message: "The new folio must be a whole number",
		Action:  "Enter digits only",
		Code:    "FOL001",
	}},
	{ErrNoPendingOverride, UserMessage{
		Message: "Enter a new folio before applying",
		Action:  "Type the folio number to start from",
		Code:    "FOL002",
	}},
	{ErrOverrideInFlight, UserMessage{
		Message: "A folio change is already being applied",
		Action:  "Wait for it to finish, then check the activity log",
		Code:    "FOL003",
	}},
	{ErrTooManyCalls, UserMessage{
		Message: "Too many files are being sent right now",
		Action:  "Please wait a moment and try again",
		Code:    "NET001",
	}},
	{ErrMalformedResponse, UserMessage{
		Message: "The backend returned an unexpected response",
		Action:  "Check the backend logs",
		Code:    "NET004",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Your session has expired",
		Action:  "Reload the page to start a new session",
		Code:    "SES001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Check that the backend is running and try again",
		Code:    "UPL005",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Check that the backend is running and try again",
		Code:    "UPL005",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. nil maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.StatusCode != 0 {
			return UserMessage{
				Message: "The backend rejected the request",
				Action:  "See the activity log for details",
				Code:    "NET002",
			}
		}
		return UserMessage{
			Message: "The backend could not be reached",
			Action:  "Check that the transformation service is running",
			Code:    "NET003",
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// MapErrorString maps an error message string to a user-friendly message.
func MapErrorString(errStr string) UserMessage {
	if errStr == "" {
		return UserMessage{}
	}
	return MapError(errors.New(errStr))
}

// FormatUserError renders err as a single prompt line with its code and action.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return msg.Message + " (Code: " + msg.Code + "). " + msg.Action
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its operator-facing message.
type UserError struct {
	User UserMessage
	Err  error
}

// NewUserError wraps err with its mapped message. nil stays nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{User: MapError(err), Err: err}
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Err }
