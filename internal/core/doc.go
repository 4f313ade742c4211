// Package core provides the operator-side logic for loading ERP exports.
//
// This package holds all session state and rules, independent of HTTP or
// rendering. The web layer and tests drive it through the same calls.
//
// # Architecture
//
// One operator page is one [Session], which owns three parts:
//
//   - Ledger: the ordered, session-scoped log of outcomes ([Ledger]).
//   - Intake: the single-file selection slot ([IntakeController]).
//   - Folio: the backend's folio counter and its override ([FolioController]).
//
// Sessions live in a [SessionStore] and expire when idle.
//
// # Intake
//
// A chosen file passes two checks before it is selected:
//
//  1. The extension and media type match the [AcceptedType] (content is not read otherwise)
//  2. The bytes are strict UTF-8 ([ValidateEncoding])
//
// A rejection empties the slot, records one error entry and returns a
// [*ValidationError]. [IntakeController.Submit] hands the selected file to
// the backend through a shared [CallLimiter].
//
// # Folio
//
// [FolioController.FetchCurrent] reads the counter once per session. An
// override is set with [FolioController.SetPendingOverride] and sent with
// [FolioController.ApplyOverride]; the displayed value is always the one
// the backend confirmed. Only one override per session may be in flight.
//
// # Errors
//
// Local rejections are [*ValidationError]s and never touch the network.
// Backend failures are [*TransportError]s carrying the HTTP status, and are
// recorded in the ledger by the controller that saw them. [MapError] turns
// any of them into a [UserMessage] with a support code.
package core
