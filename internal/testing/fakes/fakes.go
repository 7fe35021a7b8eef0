// Package fakes provides in-memory doubles for the external services.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

// LLMCall records one completion request.
type LLMCall struct {
	System string
	Prompt string
}

// LLM is a scripted [services.LLM]. Responses are returned in order; the last one repeats.
type LLM struct {
	mu          sync.Mutex
	Unavailable bool
	Responses   []string
	Err         error
	Respond     func(system, prompt string) (string, error)
	Calls       []LLMCall
}

func (f *LLM) Available() bool { return !f.Unavailable }

func (f *LLM) Complete(ctx context.Context, system, prompt string, opts ...services.CompletionOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, LLMCall{System: system, Prompt: prompt})
	if f.Unavailable {
		return "", shared.ErrLLMUnavailable
	}
	if f.Respond != nil {
		return f.Respond(system, prompt)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	out := f.Responses[0]
	if len(f.Responses) > 1 {
		f.Responses = f.Responses[1:]
	}
	return out, nil
}

// CallCount returns the number of completions requested.
func (f *LLM) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Transcriber is a scripted [services.Transcriber]. Statuses are returned in order; the last one repeats.
type Transcriber struct {
	mu        sync.Mutex
	SubmitErr error
	StatusErr error
	Statuses  []services.Transcript
	Submitted []string
	Polls     int
}

func (f *Transcriber) Submit(ctx context.Context, audioURL string) (*services.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	f.Submitted = append(f.Submitted, audioURL)
	return &services.Transcript{ID: fmt.Sprintf("tr-%d", len(f.Submitted)), Status: "queued"}, nil
}

func (f *Transcriber) Status(ctx context.Context, transcriptID string) (*services.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Polls++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	if len(f.Statuses) == 0 {
		return &services.Transcript{ID: transcriptID, Status: "processing"}, nil
	}
	t := f.Statuses[0]
	if len(f.Statuses) > 1 {
		f.Statuses = f.Statuses[1:]
	}
	t.ID = transcriptID
	return &t, nil
}

// ObjectStore is an in-memory [services.ObjectStore].
type ObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// FailUploads fails this many uploads before succeeding.
	FailUploads int
	Uploads     int
	SignErr     error
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{Objects: map[string][]byte{}}
}

func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads++
	if s.FailUploads > 0 {
		s.FailUploads--
		return fmt.Errorf("%w: upload failed", shared.ErrServiceUnavailable)
	}
	s.Objects[path] = append([]byte(nil), data...)
	return nil
}

func (s *ObjectStore) Download(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

func (s *ObjectStore) SignedURL(ctx context.Context, path string, ttlSeconds int) (string, error) {
	if s.SignErr != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrSignedURL, s.SignErr)
	}
	return fmt.Sprintf("https://storage.test/signed/%s?ttl=%d", path, ttlSeconds), nil
}

func (s *ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for p := range s.Objects {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *ObjectStore) Remove(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.Objects, p)
	}
	return nil
}

// Mailer records sent email.
type Mailer struct {
	mu   sync.Mutex
	Err  error
	Sent []services.Email
}

func (m *Mailer) Send(ctx context.Context, email services.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Sent = append(m.Sent, email)
	return fmt.Sprintf("email-%d", len(m.Sent)), nil
}

// Pusher records push messages. FailFor makes pushes to those users fail.
type Pusher struct {
	mu      sync.Mutex
	FailFor map[string]bool
	Sent    []services.PushMessage
}

func (p *Pusher) Push(ctx context.Context, msg services.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailFor[msg.UserID] {
		return fmt.Errorf("%w: push rejected", shared.ErrServiceUnavailable)
	}
	p.Sent = append(p.Sent, msg)
	return nil
}
