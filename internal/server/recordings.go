package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DB.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": s.now()})
}

// handleCreateRecording registers a finished recording. Repeats for the same session return the existing pair.
func (s *Server) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRecordingRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}

	result, err := tasks.RegisterRecording(r.Context(), s.deps.DB, tasks.RecordingRegistration{
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		ProjectID:       req.ProjectID,
		StoragePath:     req.StoragePath,
		DurationSeconds: req.DurationSeconds,
		FileSize:        req.FileSize,
		ChunkCount:      req.ChunkCount,
		StartedAt:       req.StartedAt,
	})
	if err != nil {
		fail(w, "failed to create recording", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, services.CreateRecordingResponse{
		Success: true,
		Created: result.Created,
		Session: result.Session,
		Meeting: result.Meeting,
	})
}

// handleUpload stores a raw request body under {userId}/{sessionId}/{name}.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		fail(w, "upload failed", unavailable("storage"))
		return
	}

	q := r.URL.Query()
	userID, sessionID, name := q.Get("userId"), q.Get("sessionId"), q.Get("name")
	for field, value := range map[string]string{"userId": userID, "sessionId": sessionID, "name": name} {
		if err := require(field, value); err != nil {
			fail(w, "invalid request", err)
			return
		}
	}
	if err := validSegment(userID, sessionID, name); err != nil {
		fail(w, "invalid request", err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.deps.Config.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(w, "upload too large", fmt.Errorf("%w: limit is %d bytes", shared.ErrPayloadTooLarge, tooLarge.Limit))
			return
		}
		fail(w, "failed to read upload", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/webm"
	}
	objectPath := path.Join(userID, sessionID, name)
	if err := s.deps.Store.Upload(r.Context(), objectPath, data, contentType); err != nil {
		fail(w, "upload failed", err)
		return
	}
	writeJSON(w, http.StatusOK, services.UploadResponse{Success: true, Path: objectPath})
}

func validSegment(segments ...string) error {
	for _, seg := range segments {
		if seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return fmt.Errorf("%w: invalid path segment %q", shared.ErrInvalidArgument, seg)
		}
	}
	return nil
}

// handleProcessRecording runs task extraction for a transcribed session.
func (s *Server) handleProcessRecording(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processor == nil {
		fail(w, "failed to process recording", unavailable("processor"))
		return
	}

	var req services.ProcessRecordingRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}
	if err := require("sessionId", req.SessionID); err != nil {
		fail(w, "invalid request", err)
		return
	}

	result, err := s.deps.Processor.Process(r.Context(), tasks.ProcessRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
	})
	switch {
	case errors.Is(err, shared.ErrAlreadyProcessed):
		s.writeAlreadyProcessed(w, r, result)
		return
	case err != nil:
		status, _ := classify(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("processing failed", "session", req.SessionID, "error", err)
		}
		writeError(w, status, "failed to process recording", err)
		return
	}

	message := fmt.Sprintf("created %d tasks", result.TasksCreated)
	if result.Fallback {
		message += " from fallback extraction"
	}
	writeJSON(w, http.StatusOK, services.ProcessRecordingResponse{
		Success:      true,
		Meeting:      result.Meeting,
		TasksCreated: result.TasksCreated,
		ProjectID:    result.ProjectID,
		Summary:      result.Summary,
		Confidence:   result.Confidence,
		Message:      message,
	})
}

func (s *Server) writeAlreadyProcessed(w http.ResponseWriter, r *http.Request, result *tasks.ProcessResult) {
	resp := services.ProcessRecordingResponse{
		Success: true,
		Message: "recording already processed",
	}
	if result != nil {
		resp.ProjectID = result.ProjectID
		if m := result.Meeting; m != nil {
			resp.Meeting = m
			resp.Summary = m.Summary
			if c, ok := m.AIInsights["confidence"].(float64); ok {
				resp.Confidence = c
			}
			n, err := s.links.Count(r.Context(), m.ID)
			if err != nil {
				s.logger.Warn("failed to count meeting tasks", "meeting", m.ID, "error", err)
			}
			resp.TasksCreated = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProcessingStatus reports transcription and extraction progress for a session.
func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if err := require("sessionId", sessionID); err != nil {
		fail(w, "invalid request", err)
		return
	}

	session, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		fail(w, "failed to get processing status", err)
		return
	}
	writeJSON(w, http.StatusOK, services.ProcessingStatus{
		Success:             true,
		Processed:           session.AIProcessed,
		TranscriptionStatus: string(session.TranscriptionStatus),
		MeetingID:           session.MeetingID(),
	})
}

// handleGenerateTasks extracts tasks from a transcript without persisting anything.
func (s *Server) handleGenerateTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processor == nil {
		fail(w, "failed to generate tasks", unavailable("processor"))
		return
	}

	var req struct {
		Transcript     string `json:"transcript"`
		ProjectContext string `json:"projectContext"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}

	extraction, err := s.deps.Processor.ExtractOnly(r.Context(), req.Transcript, req.ProjectContext)
	if err != nil {
		fail(w, "failed to generate tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		tasks.Extraction
	}{true, extraction})
}
