package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/minutes/internal/shared"
)

func newTestStorage(t *testing.T, handler http.HandlerFunc) *StorageService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStorageService(shared.StorageConfig{URL: server.URL, Key: "service-key", Bucket: "recordings"}, nil)
}

func TestStorageService(t *testing.T) {
	ctx := context.Background()

	t.Run("Upload", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/storage/v1/object/recordings/u1/s1/chunk-0.webm" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("x-upsert") != "true" {
				t.Error("expected x-upsert header")
			}
			if r.Header.Get("Authorization") != "Bearer service-key" || r.Header.Get("apikey") != "service-key" {
				t.Errorf("missing credentials: %v", r.Header)
			}
			if r.Header.Get("Content-Type") != "audio/webm" {
				t.Errorf("expected audio/webm, got %s", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "chunk" {
				t.Errorf("unexpected body %q", body)
			}
			w.Write([]byte(`{"Key":"recordings/u1/s1/chunk-0.webm"}`))
		})

		if err := storage.Upload(ctx, "u1/s1/chunk-0.webm", []byte("chunk"), ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Upload Too Large", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"statusCode":"413","error":"Payload too large","message":"The object exceeded the maximum allowed size"}`))
		})

		err := storage.Upload(ctx, "u1/s1/recording.webm", []byte("big"), "")
		if !IsPayloadTooLarge(err) {
			t.Errorf("expected payload too large, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			w.Write([]byte("bytes"))
		})

		data, err := storage.Download(ctx, "u1/s1/chunk-1.webm")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "bytes" {
			t.Errorf("unexpected data %q", data)
		}
	})

	t.Run("Download Not Found", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not_found","message":"Object not found"}`))
		})

		_, err := storage.Download(ctx, "u1/s1/chunk-9.webm")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SignedURL", func(t *testing.T) {
		var base string
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/storage/v1/object/sign/recordings/u1/s1/recording.webm" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body map[string]int
			json.NewDecoder(r.Body).Decode(&body)
			if body["expiresIn"] != 3600 {
				t.Errorf("expected expiresIn 3600, got %v", body)
			}
			w.Write([]byte(`{"signedURL":"/object/sign/recordings/u1/s1/recording.webm?token=abc"}`))
		})
		base = storage.baseURL

		signed, err := storage.SignedURL(ctx, "u1/s1/recording.webm", 3600)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := base + "/storage/v1/object/sign/recordings/u1/s1/recording.webm?token=abc"
		if signed != want {
			t.Errorf("expected %s, got %s", want, signed)
		}
	})

	t.Run("SignedURL Failure", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := storage.SignedURL(ctx, "u1/s1/recording.webm", 3600)
		if !errors.Is(err, shared.ErrSignedURL) {
			t.Errorf("expected ErrSignedURL, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/storage/v1/object/list/recordings" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["prefix"] != "u1/s1" {
				t.Errorf("expected prefix u1/s1, got %v", body["prefix"])
			}
			w.Write([]byte(`[{"name":"chunk-0.webm","id":"1"},{"name":"recording.webm","id":"2"}]`))
		})

		paths, err := storage.List(ctx, "u1/s1/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(paths) != 2 || paths[0] != "u1/s1/chunk-0.webm" || paths[1] != "u1/s1/recording.webm" {
			t.Errorf("unexpected paths %v", paths)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/storage/v1/object/recordings" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			if len(body["prefixes"]) != 2 {
				t.Errorf("expected 2 prefixes, got %v", body)
			}
			w.Write([]byte(`[]`))
		})

		if err := storage.Remove(ctx, "u1/s1/chunk-0.webm", "u1/s1/recording.webm"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := storage.Remove(ctx); err != nil {
			t.Fatalf("removing nothing should succeed, got %v", err)
		}
	})
}
