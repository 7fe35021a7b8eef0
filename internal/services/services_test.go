package services

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/minutes/internal/shared"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusRequestEntityTooLarge, shared.ErrPayloadTooLarge},
		{http.StatusUnauthorized, shared.ErrUnauthorized},
		{http.StatusForbidden, shared.ErrUnauthorized},
		{http.StatusNotFound, shared.ErrNotFound},
		{http.StatusBadGateway, shared.ErrServiceUnavailable},
		{http.StatusServiceUnavailable, shared.ErrServiceUnavailable},
		{http.StatusGatewayTimeout, shared.ErrServiceUnavailable},
		{http.StatusBadRequest, shared.ErrAPIRequest},
		{http.StatusInternalServerError, shared.ErrAPIRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := &APIError{Service: "storage", StatusCode: tt.status}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v for status %d", tt.want, tt.status)
			}
		})
	}

	t.Run("Message", func(t *testing.T) {
		err := &APIError{Service: "resend", StatusCode: 422, Message: "bad sender"}
		if err.Error() != "resend API error (status 422): bad sender" {
			t.Errorf("unexpected message %q", err.Error())
		}
		bare := &APIError{Service: "push", StatusCode: 500}
		if bare.Error() != "push API error: status 500" {
			t.Errorf("unexpected message %q", bare.Error())
		}
	})

	t.Run("From Response", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"Message Field", `{"message":"quota exceeded"}`, "quota exceeded"},
			{"Detail Field", `{"detail":"rate limited"}`, "rate limited"},
			{"Error Field", `{"error":"invalid token"}`, "invalid token"},
			{"Plain Text", "upstream exploded\n", "upstream exploded"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader(tt.body))}
				if got := newAPIError("x", resp).Message; got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})
}

func TestIsPayloadTooLarge(t *testing.T) {
	if !IsPayloadTooLarge(&APIError{StatusCode: http.StatusRequestEntityTooLarge}) {
		t.Error("expected 413 to be payload too large")
	}
	if IsPayloadTooLarge(&APIError{StatusCode: http.StatusBadRequest}) {
		t.Error("400 is not payload too large")
	}
	if IsPayloadTooLarge(nil) {
		t.Error("nil is not payload too large")
	}
}
