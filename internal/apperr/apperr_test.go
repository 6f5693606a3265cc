package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{NotFound("task not found"), http.StatusNotFound},
		{Authorization("admin only"), http.StatusForbidden},
		{Conflict("already approved"), http.StatusConflict},
		{InsufficientFunds("insufficient balance"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := Status(c.err); got != c.want {
			t.Errorf("Status(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestFromUnwrapsWrappedErrors(t *testing.T) {
	inner := Conflict("withdrawal already processed")
	wrapped := fmt.Errorf("resolve withdrawal: %w", inner)

	ae := From(wrapped)
	if ae == nil {
		t.Fatal("From returned nil for wrapped app error")
	}
	if ae.Code != CodeConflict {
		t.Errorf("code = %q, want %q", ae.Code, CodeConflict)
	}
	if Status(wrapped) != http.StatusConflict {
		t.Errorf("Status = %d, want %d", Status(wrapped), http.StatusConflict)
	}
}

func TestFromPlainError(t *testing.T) {
	if ae := From(errors.New("nope")); ae != nil {
		t.Errorf("From(plain error) = %v, want nil", ae)
	}
}
