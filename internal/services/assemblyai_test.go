package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/minutes/internal/shared"
)

func TestAssemblyAIService(t *testing.T) {
	ctx := context.Background()

	t.Run("Submit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v2/transcript" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("authorization") != "aai-key" {
				t.Errorf("expected raw api key, got %q", r.Header.Get("authorization"))
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["audio_url"] != "https://signed.example/recording.webm" {
				t.Errorf("unexpected audio_url %q", body["audio_url"])
			}
			w.Write([]byte(`{"id":"tr-1","status":"queued"}`))
		}))
		defer server.Close()

		svc := NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "aai-key", BaseURL: server.URL}, nil)
		tr, err := svc.Submit(ctx, "https://signed.example/recording.webm")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.ID != "tr-1" || tr.Status != "queued" {
			t.Errorf("unexpected transcript %+v", tr)
		}
	})

	t.Run("Submit Without ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"queued"}`))
		}))
		defer server.Close()

		svc := NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "aai-key", BaseURL: server.URL}, nil)
		if _, err := svc.Submit(ctx, "https://signed.example/a.webm"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/transcript/tr-1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"id":"tr-1","status":"completed","text":"we agreed to ship","confidence":0.93}`))
		}))
		defer server.Close()

		svc := NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "aai-key", BaseURL: server.URL}, nil)
		tr, err := svc.Status(ctx, "tr-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.Status != "completed" || tr.Text != "we agreed to ship" || tr.Confidence != 0.93 {
			t.Errorf("unexpected transcript %+v", tr)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Authentication error, API token missing/invalid"}`))
		}))
		defer server.Close()

		tests := []struct {
			name string
			svc  *AssemblyAIService
			call func(*AssemblyAIService) error
			want error
		}{
			{
				name: "Missing Key",
				svc:  NewAssemblyAIService(shared.AssemblyAIConfig{BaseURL: server.URL}, nil),
				call: func(s *AssemblyAIService) error { _, err := s.Status(ctx, "tr-1"); return err },
				want: shared.ErrMissingCredentials,
			},
			{
				name: "Empty Audio URL",
				svc:  NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "k", BaseURL: server.URL}, nil),
				call: func(s *AssemblyAIService) error { _, err := s.Submit(ctx, ""); return err },
				want: shared.ErrInvalidInput,
			},
			{
				name: "Empty Transcript ID",
				svc:  NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "k", BaseURL: server.URL}, nil),
				call: func(s *AssemblyAIService) error { _, err := s.Status(ctx, ""); return err },
				want: shared.ErrInvalidInput,
			},
			{
				name: "Unauthorized",
				svc:  NewAssemblyAIService(shared.AssemblyAIConfig{APIKey: "bad", BaseURL: server.URL}, nil),
				call: func(s *AssemblyAIService) error { _, err := s.Status(ctx, "tr-1"); return err },
				want: shared.ErrUnauthorized,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.call(tt.svc); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
