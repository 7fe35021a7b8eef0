package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/minutes/internal/shared"
	tu "github.com/desertthunder/minutes/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", "", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", "", nil)

			if srv.baseURL != "http://localhost:3000" {
				t.Errorf("expected default baseURL 'http://localhost:3000', got %s", srv.baseURL)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, "", nil).Get(context.Background(), "/healthz")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected JSON response")
			}
		})

		t.Run("Sends Bearer Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("expected bearer token, got %q", got)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			if _, err := NewAPIService(server.URL, "secret", nil).Get(context.Background(), "/healthz"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("http://example.com", "", nil).Get(context.Background(), "/test\x00invalid")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}

			_, err := NewAPIService("http://example.com", "", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			_, err := NewAPIService("http://example.com", "", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})
	})

	t.Run("UploadObject", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/upload" {
					t.Errorf("expected /api/upload, got %s", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("userId") != "u1" || q.Get("sessionId") != "s1" || q.Get("name") != "chunk-0.webm" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				body, _ := io.ReadAll(r.Body)
				if string(body) != "audio" {
					t.Errorf("expected body 'audio', got %q", body)
				}
				json.NewEncoder(w).Encode(UploadResponse{Success: true, Path: "u1/s1/chunk-0.webm"})
			}))
			defer server.Close()

			path, err := NewAPIService(server.URL, "", nil).UploadObject(context.Background(), "u1", "s1", "chunk-0.webm", []byte("audio"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if path != "u1/s1/chunk-0.webm" {
				t.Errorf("unexpected path %q", path)
			}
		})

		t.Run("Payload Too Large", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "payload too large"})
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "", nil).UploadObject(context.Background(), "u1", "s1", "chunk-0.webm", []byte("audio"))
			if !IsPayloadTooLarge(err) {
				t.Errorf("expected payload too large, got %v", err)
			}
		})
	})

	t.Run("CreateRecording", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req CreateRecordingRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.SessionID != "s1" || req.ChunkCount != 3 {
				t.Errorf("unexpected request: %+v", req)
			}
			w.Write([]byte(`{"success":true,"created":true,"session":{"id":"s1","metadata":{"meetingId":"m1"}},"meeting":{"id":"m1","title":"Recording"}}`))
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, "", nil).CreateRecording(context.Background(), CreateRecordingRequest{SessionID: "s1", ChunkCount: 3})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !resp.Created || resp.Meeting.ID != "m1" || resp.Session.MeetingID() != "m1" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("ProcessingStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("sessionId") != "s1" {
				t.Errorf("expected sessionId s1, got %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"success":true,"processed":true,"transcriptionStatus":"completed","meetingId":"m1"}`))
		}))
		defer server.Close()

		status, err := NewAPIService(server.URL, "", nil).ProcessingStatus(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !status.Processed || status.TranscriptionStatus != "completed" {
			t.Errorf("unexpected status: %+v", status)
		}
	})

	t.Run("Error Response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "no transcript", Details: "session s1", ErrorType: "no_transcript"})
		}))
		defer server.Close()

		_, err := NewAPIService(server.URL, "", nil).ProcessRecording(context.Background(), ProcessRecordingRequest{SessionID: "s1"})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected APIError with 400, got %v", err)
		}
		if !strings.Contains(apiErr.Message, "no transcript: session s1") {
			t.Errorf("unexpected message %q", apiErr.Message)
		}
	})

	t.Run("Status Mapping", func(t *testing.T) {
		tests := []struct {
			status int
			want   error
		}{
			{http.StatusNotFound, shared.ErrNotFound},
			{http.StatusUnauthorized, shared.ErrUnauthorized},
			{http.StatusRequestEntityTooLarge, shared.ErrPayloadTooLarge},
			{http.StatusBadGateway, shared.ErrServiceUnavailable},
			{http.StatusInternalServerError, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				client := &http.Client{Transport: tu.NewMockRoundTripper(tu.JSONResponse(tt.status, `{"error":"nope"}`), nil)}

				_, err := NewAPIService("http://example.com", "", client).ProcessingStatus(context.Background(), "s1")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
