package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// PushService implements [Pusher] by posting to a web push gateway.
//
// The gateway owns device subscriptions; we only send the user id and message.
type PushService struct {
	gatewayURL string
	httpClient *http.Client
}

// NewPushService creates a push client. The gateway token, if any, is sent as a bearer credential.
func NewPushService(cfg shared.PushConfig, client *http.Client) *PushService {
	if client == nil {
		client = NewBearerClient(context.Background(), cfg.Token, 15*time.Second)
	}
	return &PushService{gatewayURL: cfg.GatewayURL, httpClient: client}
}

// Push delivers msg.
func (p *PushService) Push(ctx context.Context, msg PushMessage) error {
	if p.gatewayURL == "" {
		return fmt.Errorf("%w: push gateway url", shared.ErrMissingConfig)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gatewayURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError("push", resp)
	}
	return nil
}
