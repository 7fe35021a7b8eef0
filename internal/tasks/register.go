package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
)

// RecordingRegistration describes a finished, uploaded recording.
type RecordingRegistration struct {
	SessionID       string
	UserID          string
	ProjectID       string
	StoragePath     string
	DurationSeconds int
	FileSize        int64
	ChunkCount      int
	StartedAt       time.Time
}

// RegisteredRecording is the session and placeholder meeting for a recording.
type RegisteredRecording struct {
	Session *models.RecordingSession
	Meeting *models.Meeting
	Created bool
}

// RegisterRecording creates the recording session and its placeholder meeting, linked both ways.
//
// Registering the same session again returns the existing pair with Created false; a missing meeting
// from an interrupted earlier call is created.
func RegisterRecording(ctx context.Context, db *sql.DB, reg RecordingRegistration) (*RegisteredRecording, error) {
	switch {
	case reg.SessionID == "":
		return nil, fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	case reg.UserID == "":
		return nil, fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	case reg.StoragePath == "":
		return nil, fmt.Errorf("%w: storage path is required", shared.ErrInvalidInput)
	}

	sessions := repositories.NewSessionRepository(db)
	meetings := repositories.NewMeetingRepository(db)

	var projectID *string
	if reg.ProjectID != "" {
		projectID = &reg.ProjectID
	}
	if reg.StartedAt.IsZero() {
		reg.StartedAt = time.Now().UTC()
	}

	result := &RegisteredRecording{}
	session, err := sessions.Get(ctx, reg.SessionID)
	switch {
	case err == nil:
		if session.UserID != reg.UserID {
			return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, reg.SessionID)
		}
	case errors.Is(err, shared.ErrSessionNotFound):
		session = models.NewRecordingSession(reg.SessionID, reg.UserID, projectID)
		session.StoragePath = reg.StoragePath
		session.DurationSeconds = reg.DurationSeconds
		session.FileSize = reg.FileSize
		session.ChunkCount = reg.ChunkCount
		if projectID != nil {
			session.Metadata[models.MetaProjectID] = reg.ProjectID
		}
		if err := sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create recording session: %w", err)
		}
		result.Created = true
	default:
		return nil, err
	}
	result.Session = session

	meeting, err := meetings.GetByRecordingSession(ctx, session.ID)
	if errors.Is(err, shared.ErrMeetingNotFound) {
		meeting = models.NewRecordedMeeting(session.UserID, session.ID, projectID, reg.StartedAt.UTC(), reg.DurationSeconds)
		if cerr := meetings.Create(ctx, meeting); cerr != nil {
			// a concurrent registration won the unique index
			existing, gerr := meetings.GetByRecordingSession(ctx, session.ID)
			if gerr != nil {
				return nil, fmt.Errorf("failed to create meeting: %w", cerr)
			}
			meeting = existing
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	result.Meeting = meeting

	if session.MeetingID() != meeting.ID {
		session.Metadata[models.MetaMeetingID] = meeting.ID
		if err := sessions.Update(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to link session to meeting: %w", err)
		}
	}
	return result, nil
}
