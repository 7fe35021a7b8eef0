package server

import (
	"context"
	"net/http"

	"github.com/desertthunder/minutes/internal/services"
)

// handleTranscribe submits audio for transcription. With a session id the server keeps polling in the
// background, stores the transcript, and runs extraction.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	job := s.deps.Transcription
	if job == nil {
		fail(w, "failed to start transcription", unavailable("transcription"))
		return
	}

	var req services.TranscribeRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}
	if err := require("audioUrl", req.AudioURL); err != nil {
		fail(w, "invalid request", err)
		return
	}

	transcript, err := job.Submit(r.Context(), req.SessionID, req.AudioURL)
	if err != nil {
		fail(w, "failed to start transcription", err)
		return
	}

	if req.SessionID != "" {
		sessionID, transcriptID := req.SessionID, transcript.ID
		s.background("transcription", func(ctx context.Context) error {
			return job.Wait(ctx, sessionID, transcriptID)
		})
	}

	writeJSON(w, http.StatusAccepted, services.TranscribeResponse{
		Success:      true,
		TranscriptID: transcript.ID,
		Status:       transcript.Status,
	})
}

// handleTranscriptStatus returns a transcript's state, storing a finished one on the session when given.
func (s *Server) handleTranscriptStatus(w http.ResponseWriter, r *http.Request) {
	job := s.deps.Transcription
	if job == nil {
		fail(w, "failed to check transcript", unavailable("transcription"))
		return
	}

	q := r.URL.Query()
	transcriptID := q.Get("transcriptId")
	if err := require("transcriptId", transcriptID); err != nil {
		fail(w, "invalid request", err)
		return
	}

	t, err := job.Check(r.Context(), transcriptID, q.Get("sessionId"))
	if err != nil {
		fail(w, "failed to check transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, services.TranscriptStatusResponse{
		Status:     t.Status,
		Text:       t.Text,
		Confidence: t.Confidence,
		Error:      t.Error,
	})
}
