package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Unwrap(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{409, ErrAlreadyExists},
		{429, ErrRateLimited},
		{400, ErrRequestFailed},
		{500, ErrRequestFailed},
	}
	for _, c := range cases {
		err := fmt.Errorf("call: %w", &APIError{Status: c.status, Message: "m"})
		if !errors.Is(err, c.want) {
			t.Fatalf("status %d: want %v, got %v", c.status, c.want, err)
		}
	}
}

func TestAPIError_As(t *testing.T) {
	var err error = &APIError{Status: 422, Message: "bad email"}
	var ae *APIError
	if !errors.As(err, &ae) || ae.Message != "bad email" {
		t.Fatalf("errors.As failed: %v", err)
	}
	if got := err.Error(); got != "api: status 422: bad email" {
		t.Fatalf("Error()=%q", got)
	}
}
