package web

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/erpload/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session gone", fmt.Errorf("lookup: %w", core.ErrSessionNotFound), http.StatusNotFound},
		{"override in flight", &core.ValidationError{Field: "nuevo_folio", Err: core.ErrOverrideInFlight}, http.StatusConflict},
		{"submit in flight", &core.ValidationError{Field: "file", Err: core.ErrSubmitInFlight}, http.StatusConflict},
		{"too large", &core.ValidationError{Field: "file", Err: core.ErrFileTooLarge}, http.StatusRequestEntityTooLarge},
		{"other validation", &core.ValidationError{Field: "file", Err: core.ErrNoSelection}, http.StatusUnprocessableEntity},
		{"transport", &core.TransportError{Op: "submit file", Err: context.DeadlineExceeded}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
