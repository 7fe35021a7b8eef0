package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
	"golang.org/x/oauth2"
)

// ObjectStore stores recording chunks and assembled recordings.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	SignedURL(ctx context.Context, path string, ttlSeconds int) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, paths ...string) error
}

// Transcript is a provider's view of one transcription job.
type Transcript struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Transcriber submits audio for transcription and reports job status.
type Transcriber interface {
	Submit(ctx context.Context, audioURL string) (*Transcript, error)
	Status(ctx context.Context, transcriptID string) (*Transcript, error)
}

// LLM generates text from a system and user prompt.
//
// Available reports whether credentials were configured; callers skip optional generation when it is false.
type LLM interface {
	Available() bool
	Complete(ctx context.Context, system, prompt string, opts ...CompletionOption) (string, error)
}

// Email is one outgoing message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Mailer delivers email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}

// PushMessage is a notification for a user's registered devices.
type PushMessage struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// Pusher delivers push notifications.
type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// APIError is a non-2xx response from a remote API.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// Unwrap maps the status onto a shared sentinel so callers can use [errors.Is].
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusRequestEntityTooLarge:
		return shared.ErrPayloadTooLarge
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrUnauthorized
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// IsPayloadTooLarge reports whether err is a 413 from any service.
func IsPayloadTooLarge(err error) bool {
	return errors.Is(err, shared.ErrPayloadTooLarge)
}

// newAPIError reads a failed response body, pulling a message out of common JSON error shapes.
func newAPIError(service string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Service: service, StatusCode: resp.StatusCode}

	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			apiErr.Message = payload.Message
		case payload.Detail != "":
			apiErr.Message = payload.Detail
		case payload.Error != nil:
			apiErr.Message = fmt.Sprint(payload.Error)
		case payload.Details != "":
			apiErr.Message = payload.Details
		}
	} else {
		apiErr.Message = shared.Truncate(strings.TrimSpace(string(body)), 200)
	}
	return apiErr
}

// NewBearerClient returns an HTTP client that sends token as a bearer credential on every request.
// An empty token yields a plain client.
func NewBearerClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	if token == "" {
		return &http.Client{Timeout: timeout}
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return client
}

func decodeJSON(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
