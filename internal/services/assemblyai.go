// AssemblyAI [Transcriber] implementation
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

const defaultAssemblyAIBaseURL = "https://api.assemblyai.com"

// AssemblyAIService submits recordings to AssemblyAI and reads back transcripts.
type AssemblyAIService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAssemblyAIService creates a transcription client. The API key is sent in the authorization header as-is.
func NewAssemblyAIService(cfg shared.AssemblyAIConfig, client *http.Client) *AssemblyAIService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAssemblyAIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AssemblyAIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
	}
}

func (a *AssemblyAIService) doRequest(ctx context.Context, method, endpoint string, payload, result any) error {
	if a.apiKey == "" {
		return fmt.Errorf("%w: assemblyai api key", shared.ErrMissingCredentials)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError("assemblyai", resp)
	}
	return decodeJSON(resp, result)
}

// Submit starts a transcription job for the audio at audioURL.
//
// Calls POST /v2/transcript.
func (a *AssemblyAIService) Submit(ctx context.Context, audioURL string) (*Transcript, error) {
	if audioURL == "" {
		return nil, fmt.Errorf("%w: audio url is required", shared.ErrInvalidInput)
	}

	var t Transcript
	if err := a.doRequest(ctx, http.MethodPost, "/v2/transcript", map[string]any{"audio_url": audioURL}, &t); err != nil {
		return nil, fmt.Errorf("failed to submit transcription: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%w: transcription submitted without an id", shared.ErrAPIRequest)
	}
	return &t, nil
}

// Status returns the current state of a transcription job.
//
// Calls GET /v2/transcript/{id}.
func (a *AssemblyAIService) Status(ctx context.Context, transcriptID string) (*Transcript, error) {
	if transcriptID == "" {
		return nil, fmt.Errorf("%w: transcript id is required", shared.ErrInvalidInput)
	}

	var t Transcript
	if err := a.doRequest(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(transcriptID), nil, &t); err != nil {
		return nil, fmt.Errorf("failed to get transcript %s: %w", transcriptID, err)
	}
	return &t, nil
}
