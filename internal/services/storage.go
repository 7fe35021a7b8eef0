// Object storage client for recording chunks and assembled recordings
//
// Speaks the Supabase Storage REST API. Objects live in a single bucket under {userId}/{sessionId}/.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

const storageAPIPrefix = "/storage/v1"

// StorageService implements [ObjectStore] against a storage REST endpoint.
type StorageService struct {
	baseURL    string
	bucket     string
	key        string
	httpClient *http.Client
}

// NewStorageService creates a storage client. The key is sent as both bearer token and apikey header.
func NewStorageService(cfg shared.StorageConfig, client *http.Client) *StorageService {
	if client == nil {
		client = NewBearerClient(context.Background(), cfg.Key, 2*time.Minute)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "recordings"
	}
	return &StorageService{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		bucket:     bucket,
		key:        cfg.Key,
		httpClient: client,
	}
}

// Bucket returns the bucket objects are written to.
func (s *StorageService) Bucket() string {
	return s.bucket
}

func (s *StorageService) objectURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		for seg := range strings.SplitSeq(strings.Trim(p, "/"), "/") {
			escaped = append(escaped, url.PathEscape(seg))
		}
	}
	return s.baseURL + storageAPIPrefix + "/" + strings.Join(escaped, "/")
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": {"application/json"}}
}

func (s *StorageService) do(ctx context.Context, method, endpoint string, body io.Reader, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if s.key != "" {
		req.Header.Set("apikey", s.key)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError("storage", resp)
	}

	if w, ok := out.(io.Writer); ok {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}
	return decodeJSON(resp, out)
}

// Upload writes data to path, overwriting any existing object.
func (s *StorageService) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "audio/webm"
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("x-upsert", "true")

	endpoint := s.objectURL("object", s.bucket, objectPath)
	if err := s.do(ctx, http.MethodPost, endpoint, bytes.NewReader(data), header, nil); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

// Download reads an object.
func (s *StorageService) Download(ctx context.Context, objectPath string) ([]byte, error) {
	var buf bytes.Buffer
	endpoint := s.objectURL("object", s.bucket, objectPath)
	if err := s.do(ctx, http.MethodGet, endpoint, nil, nil, &buf); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", objectPath, err)
	}
	return buf.Bytes(), nil
}

// SignedURL returns a URL granting read access to path for ttlSeconds.
func (s *StorageService) SignedURL(ctx context.Context, objectPath string, ttlSeconds int) (string, error) {
	body, _ := json.Marshal(map[string]int{"expiresIn": ttlSeconds})
	var result struct {
		SignedURL string `json:"signedURL"`
	}

	endpoint := s.objectURL("object", "sign", s.bucket, objectPath)
	if err := s.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), jsonHeader(), &result); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrSignedURL, err)
	}
	if result.SignedURL == "" {
		return "", fmt.Errorf("%w: empty response for %s", shared.ErrSignedURL, objectPath)
	}

	if strings.HasPrefix(result.SignedURL, "http://") || strings.HasPrefix(result.SignedURL, "https://") {
		return result.SignedURL, nil
	}
	return s.baseURL + storageAPIPrefix + "/" + strings.TrimLeft(result.SignedURL, "/"), nil
}

// List returns the full paths of objects directly under prefix.
func (s *StorageService) List(ctx context.Context, prefix string) ([]string, error) {
	folder := strings.Trim(prefix, "/")
	body, _ := json.Marshal(map[string]any{
		"prefix": folder,
		"limit":  1000,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})

	var entries []struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	endpoint := s.objectURL("object", "list", s.bucket)
	if err := s.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), jsonHeader(), &entries); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		paths = append(paths, path.Join(folder, e.Name))
	}
	return paths, nil
}

// Remove deletes objects. Removing nothing is a no-op.
func (s *StorageService) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	body, _ := json.Marshal(map[string][]string{"prefixes": paths})
	endpoint := s.objectURL("object", s.bucket)
	if err := s.do(ctx, http.MethodDelete, endpoint, bytes.NewReader(body), jsonHeader(), nil); err != nil {
		return fmt.Errorf("failed to remove objects: %w", err)
	}
	return nil
}
