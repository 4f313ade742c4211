package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/erpload/internal/core"
	"github.com/JonMunkholm/erpload/internal/logging"
	"github.com/JonMunkholm/erpload/internal/web/middleware"
)

// sessionHeader lets API clients that do not keep cookies name their session.
const sessionHeader = "X-Session-ID"

type ctxKey struct{}

// sessionFrom returns the session resolved by withSession.
func sessionFrom(ctx context.Context) *core.Session {
	sess, _ := ctx.Value(ctxKey{}).(*core.Session)
	return sess
}

// withSession resolves the caller's session from the X-Session-ID header or
// the session cookie. Browsers without a live session are sent to / for a
// fresh one; API callers get 404 SES001.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionHeader)
		if id == "" {
			if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
				id = c.Value
			}
		}

		sess, err := s.sessions.Get(id)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) && !wantsJSON(r) && r.Method == http.MethodGet {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			respondError(w, r, err, statusFor(err))
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, sess)
		ctx = logging.WithSessionID(ctx, sess.ID)
		middleware.NoteSessionID(ctx, sess.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// startSession creates a session and hands its ID to the client.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) *core.Session {
	sess := s.sessions.Start(r.Context())
	middleware.NoteSessionID(r.Context(), sess.ID)

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.Session.TTL.Seconds()),
	})
	w.Header().Set(sessionHeader, sess.ID)
	return sess
}
