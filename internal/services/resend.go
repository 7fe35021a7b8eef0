package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendService implements [Mailer] using the Resend HTTP API.
type ResendService struct {
	baseURL    string
	from       string
	configured bool
	httpClient *http.Client
}

// NewResendService creates an email client. With no API key every send fails with [shared.ErrMissingCredentials].
func NewResendService(cfg shared.ResendConfig, client *http.Client) *ResendService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	if client == nil {
		client = NewBearerClient(context.Background(), cfg.APIKey, 30*time.Second)
	}
	return &ResendService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		from:       cfg.From,
		configured: cfg.APIKey != "",
		httpClient: client,
	}
}

// Send delivers email, filling in the configured sender when From is empty.
func (r *ResendService) Send(ctx context.Context, email Email) (string, error) {
	if !r.configured {
		return "", fmt.Errorf("%w: resend api key", shared.ErrMissingCredentials)
	}
	if email.From == "" {
		email.From = r.from
	}
	if len(email.To) == 0 || email.Subject == "" {
		return "", fmt.Errorf("%w: email needs a recipient and subject", shared.ErrInvalidInput)
	}

	data, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError("resend", resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}
