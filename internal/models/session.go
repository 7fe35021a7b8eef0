package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// Metadata keys written on recording sessions.
const (
	MetaMeetingID    = "meetingId"
	MetaProjectID    = "projectId"
	MetaTasksCreated = "tasks_created"
	MetaProcessedAt  = "processed_at"
)

// RecordingSession is one captured recording and the state of its transcript.
type RecordingSession struct {
	ID                      string              `json:"id"`
	UserID                  string              `json:"user_id"`
	ProjectID               *string             `json:"project_id"`
	Title                   string              `json:"title"`
	DurationSeconds         int                 `json:"duration_seconds"`
	FileSize                int64               `json:"file_size"`
	ChunkCount              int                 `json:"chunk_count"`
	StoragePath             string              `json:"storage_path"`
	TranscriptID            string              `json:"transcript_id,omitempty"`
	TranscriptionStatus     TranscriptionStatus `json:"transcription_status"`
	TranscriptionText       *string             `json:"transcription_text"`
	TranscriptionConfidence *float64            `json:"transcription_confidence"`
	Metadata                Metadata            `json:"metadata"`
	AIProcessed             bool                `json:"ai_processed"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// NewRecordingSession creates a pending session owned by userID.
func NewRecordingSession(id, userID string, projectID *string) *RecordingSession {
	now := time.Now().UTC()
	return &RecordingSession{
		ID:                  id,
		UserID:              userID,
		ProjectID:           projectID,
		TranscriptionStatus: TranscriptionPending,
		Metadata:            Metadata{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Validate implements [Model].
func (s *RecordingSession) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	case s.UserID == "":
		return fmt.Errorf("%w: session user is required", shared.ErrInvalidInput)
	case !s.TranscriptionStatus.Valid():
		return fmt.Errorf("%w: unknown transcription status %q", shared.ErrInvalidInput, s.TranscriptionStatus)
	}
	return nil
}

// Transcript returns the transcript text, or "" when none is stored.
func (s *RecordingSession) Transcript() string {
	if s.TranscriptionText == nil {
		return ""
	}
	return *s.TranscriptionText
}

// MeetingID returns the linked meeting from metadata.
func (s *RecordingSession) MeetingID() string {
	return s.Metadata.String(MetaMeetingID)
}

// ChunkPath is the object path of one uploaded chunk.
func ChunkPath(userID, sessionID string, index int) string {
	return fmt.Sprintf("%s/%s/chunk-%d.webm", userID, sessionID, index)
}

// RecordingPath is the object path of the assembled recording.
func RecordingPath(userID, sessionID string) string {
	return fmt.Sprintf("%s/%s/recording.webm", userID, sessionID)
}

// SessionPrefix is the object prefix holding every object of one session.
func SessionPrefix(userID, sessionID string) string {
	return fmt.Sprintf("%s/%s/", userID, sessionID)
}
