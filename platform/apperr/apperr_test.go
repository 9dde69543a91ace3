package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("missing phone"), http.StatusBadRequest},
		{NotFound("voucher not found"), http.StatusNotFound},
		{Conflict("already redeemed"), http.StatusConflict},
		{Gone("expired"), http.StatusGone},
		{Unavailable("crm down", nil), http.StatusInternalServerError},
		{BusinessRule("no campaign"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.err.Message, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("booking: %w", Validation("zip is required"))
	if !Is(wrapped, KindValidation) {
		t.Fatalf("expected wrapped validation error to keep its kind, got %v", GetKind(wrapped))
	}
	if GetKind(fmt.Errorf("plain")) != KindUnknown {
		t.Fatalf("expected plain errors to be KindUnknown")
	}
}
