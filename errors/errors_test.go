package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrRoomNotFound, http.StatusNotFound},
		{"wrapped invalid input", fmt.Errorf("%w: name", ErrInvalidInput), http.StatusBadRequest},
		{"room mismatch", ErrRoomMismatch, http.StatusBadRequest},
		{"invalid state", ErrMessageNotApproved, http.StatusForbidden},
		{"unauthorized", ErrInvalidToken, http.StatusUnauthorized},
		{"forbidden", ErrRoomAccessDenied, http.StatusForbidden},
		{"conflict", ErrEmailInUse, http.StatusConflict},
		{"store busy", fmt.Errorf("%w: transaction conflict", ErrStoreBusy), http.StatusConflict},
		{"foreign error", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MapToHTTPStatus(tt.err))
		})
	}
}

func TestPublic_Hides_Internal_Errors(t *testing.T) {
	req := require.New(t)

	req.Equal(ErrRoomClosed, Public(fmt.Errorf("submit: %w", ErrRoomClosed)))
	req.Equal(ErrInternal, Public(fmt.Errorf("badger: value log corrupted")))
	req.Equal(ErrInternal, Public(ErrTokenGeneration))
	req.Equal(KindInternal, KindOf(nil))
}
