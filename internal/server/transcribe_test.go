package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
)

func newAPIClient(t *testing.T, env *testEnv) *services.APIService {
	t.Helper()
	srv := httptest.NewServer(env.server)
	t.Cleanup(srv.Close)
	return services.NewAPIService(srv.URL, "", srv.Client())
}

func TestTranscribe(t *testing.T) {
	t.Run("Background Job Stores And Processes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.transcriber.Statuses = []services.Transcript{
			{Status: "processing"},
			{Status: "completed", Text: roadmapTranscript, Confidence: 0.9},
		}
		user := env.seedUser(t)
		session := env.seedSession(t, user.ID, nil, "")

		rec := env.do(t, http.MethodPost, "/api/transcribe", services.TranscribeRequest{
			AudioURL:  "https://storage.test/signed/recording.webm",
			SessionID: session.ID,
		})
		assertStatus(t, rec, http.StatusAccepted)
		got := decode[services.TranscribeResponse](t, rec)
		if got.TranscriptID != "tr-1" {
			t.Errorf("expected tr-1, got %q", got.TranscriptID)
		}

		env.server.Wait()

		stored, err := repositories.NewSessionRepository(env.db).Get(context.Background(), session.ID)
		if err != nil {
			t.Fatalf("expected session, got %v", err)
		}
		if stored.TranscriptionStatus != models.TranscriptionCompleted || stored.Transcript() != roadmapTranscript {
			t.Errorf("expected stored transcript, got %s %q", stored.TranscriptionStatus, stored.Transcript())
		}
		if !stored.AIProcessed || stored.MeetingID() == "" {
			t.Errorf("expected processed session with meeting, got %+v", stored)
		}
	})

	t.Run("Without Session", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(t, http.MethodPost, "/api/transcribe", services.TranscribeRequest{AudioURL: "https://storage.test/a"})
		assertStatus(t, rec, http.StatusAccepted)

		env.server.Wait()
		if env.transcriber.Polls != 0 {
			t.Errorf("expected no polling, got %d", env.transcriber.Polls)
		}
	})

	t.Run("Missing Audio URL", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(t, http.MethodPost, "/api/transcribe", services.TranscribeRequest{SessionID: "s"})
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("Unknown Session", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(t, http.MethodPost, "/api/transcribe", services.TranscribeRequest{AudioURL: "https://a", SessionID: "missing"})
		assertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("Not Configured", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Transcription = nil })
		rec := env.do(t, http.MethodPost, "/api/transcribe", services.TranscribeRequest{AudioURL: "https://a"})
		assertStatus(t, rec, http.StatusServiceUnavailable)
		assertErrorType(t, rec, "service_unavailable")
	})
}

func TestTranscriptStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transcriber.Statuses = []services.Transcript{{Status: "completed", Text: "hello there", Confidence: 0.7}}
	user := env.seedUser(t)
	session := env.seedSession(t, user.ID, nil, "")

	api := newAPIClient(t, env)
	got, err := api.TranscriptStatus(context.Background(), "tr-5", session.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != "completed" || got.Text != "hello there" {
		t.Errorf("unexpected status %+v", got)
	}

	stored, _ := repositories.NewSessionRepository(env.db).Get(context.Background(), session.ID)
	if stored.TranscriptID != "tr-5" || stored.Transcript() != "hello there" {
		t.Errorf("expected transcript stored on session, got %+v", stored)
	}

	t.Run("Missing Transcript ID", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/transcribe", nil)
		assertStatus(t, rec, http.StatusBadRequest)
	})
}
