package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/erpload/internal/core"
)

// SessionView is the JSON representation of a session.
type SessionView struct {
	SessionID string              `json:"session_id"`
	Intake    IntakeView          `json:"intake"`
	Folio     core.FolioState     `json:"folio"`
	Log       []core.EntryView    `json:"log"`
	Receipt   *core.SubmitReceipt `json:"receipt,omitempty"`
}

// IntakeView is the selection slot.
type IntakeView struct {
	State    string                `json:"state"`
	Selected *core.UploadCandidate `json:"selected"`
	Accepted core.AcceptedType     `json:"accepted"`
}

func newSessionView(sess *core.Session) SessionView {
	return SessionView{
		SessionID: sess.ID,
		Intake: IntakeView{
			State:    sess.Intake.State().String(),
			Selected: sess.Intake.Selected(),
			Accepted: sess.Intake.Accepted(),
		},
		Folio: sess.Folio.State(),
		Log:   core.Project(sess.Ledger.Entries()),
	}
}

func (s *Server) apiStartSession(w http.ResponseWriter, r *http.Request) {
	sess := s.startSession(w, r)
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (s *Server) apiGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(sessionFrom(r.Context())))
}

func (s *Server) apiChooseFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.chooseFile(w, r, sess); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

// apiSubmit answers 200 whether or not the backend accepted the file; the
// outcome is the newest ledger entry.
func (s *Server) apiSubmit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	receipt, err := sess.Intake.Submit(r.Context())
	if err != nil && core.IsValidation(err) {
		respondError(w, r, err, statusFor(err))
		return
	}

	view := newSessionView(sess)
	if err == nil || receipt.StatusCode != 0 {
		view.Receipt = &receipt
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) apiGetFolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Folio.State())
}

// folioRequest accepts the folio as a JSON number or string.
type folioRequest struct {
	NuevoFolio json.RawMessage `json:"nuevo_folio"`
}

// text returns the raw input for SetPendingOverride.
func (f folioRequest) text() string {
	var s string
	if err := json.Unmarshal(f.NuevoFolio, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(f.NuevoFolio))
}

func (s *Server) apiSetPending(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req folioRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		err = &core.ValidationError{Field: "nuevo_folio", Err: core.ErrInvalidFolio}
		respondError(w, r, err, statusFor(err))
		return
	}
	if err := sess.Folio.SetPendingOverride(req.text()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sess.Folio.State())
}

// apiApplyFolio applies the pending override. Backend failures are in the
// ledger, so the response is the full session view either way.
func (s *Server) apiApplyFolio(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	_, err := sess.Folio.ApplyOverride(r.Context())
	if err != nil && core.IsValidation(err) {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) apiGetLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Project(sessionFrom(r.Context()).Ledger.Entries()))
}

func (s *Server) apiClearLog(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Ledger.Clear()
	w.WriteHeader(http.StatusNoContent)
}
