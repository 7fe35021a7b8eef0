// Client for the minutes HTTP API, used by the recorder and CLI
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

	"github.com/desertthunder/minutes/internal/models"
)

const defaultAPIBaseURL = "http://localhost:3000"

// CreateRecordingRequest registers a finished recording with the server.
type CreateRecordingRequest struct {
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	ProjectID       string    `json:"projectId,omitempty"`
	StoragePath     string    `json:"storagePath"`
	DurationSeconds int       `json:"durationSeconds"`
	FileSize        int64     `json:"fileSize"`
	ChunkCount      int       `json:"chunkCount"`
	StartedAt       time.Time `json:"startedAt"`
}

// CreateRecordingResponse returns the linked session and placeholder meeting.
//
// Created is false when the session had already been registered.
type CreateRecordingResponse struct {
	Success bool                     `json:"success"`
	Created bool                     `json:"created"`
	Session *models.RecordingSession `json:"session"`
	Meeting *models.Meeting          `json:"meeting"`
}

// TranscribeRequest asks the server to transcribe audio, tracking it against a session when given.
type TranscribeRequest struct {
	AudioURL  string `json:"audioUrl"`
	SessionID string `json:"sessionId,omitempty"`
}

// TranscribeResponse acknowledges a submitted transcription.
type TranscribeResponse struct {
	Success      bool   `json:"success"`
	TranscriptID string `json:"transcriptId,omitempty"`
	Status       string `json:"status"`
}

// TranscriptStatusResponse is the current state of a transcript.
type TranscriptStatusResponse struct {
	Status     string  `json:"status"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ProcessRecordingRequest triggers task extraction for a transcribed session.
type ProcessRecordingRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId,omitempty"`
}

// ProcessRecordingResponse is the outcome of task extraction.
type ProcessRecordingResponse struct {
	Success      bool            `json:"success"`
	Meeting      *models.Meeting `json:"meeting"`
	TasksCreated int             `json:"tasksCreated"`
	ProjectID    *string         `json:"projectId"`
	Summary      string          `json:"summary"`
	Confidence   float64         `json:"confidence"`
	Message      string          `json:"message"`
}

// ProcessingStatus reports how far a session has progressed.
type ProcessingStatus struct {
	Success             bool   `json:"success"`
	Processed           bool   `json:"processed"`
	TranscriptionStatus string `json:"transcriptionStatus"`
	MeetingID           string `json:"meetingId,omitempty"`
}

// UploadResponse names the object written by the upload route.
type UploadResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// APIService provides methods for calling the minutes server.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API client. A nil client gets bearer auth from apiKey.
func NewAPIService(baseURL, apiKey string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = NewBearerClient(context.Background(), apiKey, 2*time.Minute)
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

func (a *APIService) raw(ctx context.Context, method, path string, body io.Reader, contentType string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil, "")
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// call sends payload as JSON and decodes a 2xx body into out. Other statuses become an [APIError].
func (a *APIService) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	resp, err := a.raw(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return resp.decode(out)
}

func (r *APIResponse) decode(out any) error {
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		apiErr := &APIError{Service: "minutes", StatusCode: r.StatusCode}
		var e ErrorResponse
		if err := json.Unmarshal(r.Body, &e); err == nil {
			apiErr.Message = e.Error
			if e.Details != "" {
				apiErr.Message += ": " + e.Details
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// UploadObject sends data through the size-limited upload route.
//
// Bodies over the server limit fail with an error matching [shared.ErrPayloadTooLarge].
func (a *APIService) UploadObject(ctx context.Context, userID, sessionID, name string, data []byte) (string, error) {
	q := url.Values{"userId": {userID}, "sessionId": {sessionID}, "name": {name}}
	resp, err := a.raw(ctx, http.MethodPost, "/api/upload?"+q.Encode(), bytes.NewReader(data), "audio/webm")
	if err != nil {
		return "", err
	}

	var out UploadResponse
	if err := resp.decode(&out); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return out.Path, nil
}

// CreateRecording registers a recording, creating its session and placeholder meeting.
func (a *APIService) CreateRecording(ctx context.Context, r CreateRecordingRequest) (*CreateRecordingResponse, error) {
	var out CreateRecordingResponse
	if err := a.call(ctx, http.MethodPost, "/api/recordings", r, &out); err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	return &out, nil
}

// Transcribe submits audio for transcription.
func (a *APIService) Transcribe(ctx context.Context, r TranscribeRequest) (*TranscribeResponse, error) {
	var out TranscribeResponse
	if err := a.call(ctx, http.MethodPost, "/api/transcribe", r, &out); err != nil {
		return nil, fmt.Errorf("failed to start transcription: %w", err)
	}
	return &out, nil
}

// TranscriptStatus checks a transcript, recording a completion against sessionID when given.
func (a *APIService) TranscriptStatus(ctx context.Context, transcriptID, sessionID string) (*TranscriptStatusResponse, error) {
	q := url.Values{"transcriptId": {transcriptID}}
	if sessionID != "" {
		q.Set("sessionId", sessionID)
	}

	var out TranscriptStatusResponse
	if err := a.call(ctx, http.MethodGet, "/api/transcribe?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to check transcript: %w", err)
	}
	return &out, nil
}

// ProcessingStatus returns whether a session has been transcribed and processed.
func (a *APIService) ProcessingStatus(ctx context.Context, sessionID string) (*ProcessingStatus, error) {
	var out ProcessingStatus
	path := "/api/process-recording?" + url.Values{"sessionId": {sessionID}}.Encode()
	if err := a.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get processing status: %w", err)
	}
	return &out, nil
}

// ProcessRecording runs task extraction for a session.
func (a *APIService) ProcessRecording(ctx context.Context, r ProcessRecordingRequest) (*ProcessRecordingResponse, error) {
	var out ProcessRecordingResponse
	if err := a.call(ctx, http.MethodPost, "/api/process-recording", r, &out); err != nil {
		return nil, fmt.Errorf("failed to process recording: %w", err)
	}
	return &out, nil
}
