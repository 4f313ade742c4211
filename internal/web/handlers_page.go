package web

// handlers_page.go serves the server-rendered console. Every action
// re-renders the page: rejections show a prompt banner with 4xx, outcomes
// recorded in the ledger come back as 200.

import (
	"net/http"

	"github.com/JonMunkholm/erpload/internal/core"
	"github.com/JonMunkholm/erpload/internal/web/templates"
)

// handleIndex starts a fresh session and renders it.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.startSession(w, r)
	s.renderPage(w, r, sess, nil)
}

// handlePage re-renders the current session.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, sessionFrom(r.Context()), nil)
}

func (s *Server) handleChooseFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.renderPage(w, r, sess, s.chooseFile(w, r, sess))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	_, err := sess.Intake.Submit(r.Context())
	s.renderPage(w, r, sess, err)
}

// handleApplyFolio stores the typed value as the pending override and applies it.
func (s *Server) handleApplyFolio(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if err := sess.Folio.SetPendingOverride(r.PostFormValue("nuevo_folio")); err != nil {
		s.renderPage(w, r, sess, err)
		return
	}
	_, err := sess.Folio.ApplyOverride(r.Context())
	s.renderPage(w, r, sess, err)
}

func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Ledger.Clear()
	s.renderPage(w, r, sess, nil)
}

// renderPage writes the console for sess. Only validation errors become a
// prompt; anything else was already recorded in the ledger.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, sess *core.Session, actionErr error) {
	status := http.StatusOK
	var prompt *core.UserMessage
	if actionErr != nil && core.IsValidation(actionErr) {
		msg := core.MapError(actionErr)
		prompt = &msg
		status = statusFor(actionErr)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	view := templates.PageView{
		SessionID:   sess.ID,
		Accepted:    sess.Intake.Accepted(),
		MaxFileSize: s.cfg.Upload.MaxFileSize,
		Slot:        sess.Intake.State(),
		Selected:    sess.Intake.Selected(),
		Folio:       sess.Folio.State(),
		Entries:     core.Project(sess.Ledger.Entries()),
		Prompt:      prompt,
	}
	_ = templates.Page(view).Render(r.Context(), w)
}
