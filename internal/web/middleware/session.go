package middleware

import "context"

type sessionHolder struct {
	id string
}

type holderKey struct{}

func withSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// NoteSessionID records the session a request resolved to so that Logger,
// which runs outside the session middleware, can include it.
func NoteSessionID(ctx context.Context, id string) {
	if h, ok := ctx.Value(holderKey{}).(*sessionHolder); ok {
		h.id = id
	}
}
