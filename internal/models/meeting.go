package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// ActionItem is the denormalized copy of an extracted task kept on its meeting.
type ActionItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
}

// ActionItems is stored as a JSON array.
type ActionItems []ActionItem

// Value implements [driver.Valuer].
func (a ActionItems) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ActionItem(a))
	if err != nil {
		return nil, fmt.Errorf("failed to encode action items: %w", err)
	}
	return string(b), nil
}

// Scan implements [sql.Scanner].
func (a *ActionItems) Scan(src any) error {
	*a = ActionItems{}
	raw, err := textBytes(src)
	if err != nil || len(raw) == 0 {
		return err
	}
	return json.Unmarshal(raw, a)
}

// Meeting is either a recorded meeting (with RecordingSessionID) or a manually scheduled one.
type Meeting struct {
	ID                 string      `json:"id"`
	Sequence           int         `json:"-"`
	UserID             string      `json:"user_id"`
	ProjectID          *string     `json:"project_id"`
	RecordingSessionID *string     `json:"recording_session_id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	ScheduledAt        *time.Time  `json:"scheduled_at"`
	DurationMinutes    int         `json:"duration_minutes"`
	Summary            string      `json:"summary"`
	ActionItems        ActionItems `json:"action_items"`
	AIInsights         Metadata    `json:"ai_insights"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// PlaceholderTitle is the title a recorded meeting carries until one is generated.
func PlaceholderTitle(at time.Time) string {
	return "Recording " + at.Format("Jan 2, 2006 3:04 PM")
}

// NewRecordedMeeting creates the placeholder meeting for a finished recording.
func NewRecordedMeeting(userID, sessionID string, projectID *string, at time.Time, durationSeconds int) *Meeting {
	sid := sessionID
	return &Meeting{
		UserID:             userID,
		ProjectID:          projectID,
		RecordingSessionID: &sid,
		Title:              PlaceholderTitle(at),
		ScheduledAt:        &at,
		DurationMinutes:    (durationSeconds + 59) / 60,
		ActionItems:        ActionItems{},
		AIInsights:         Metadata{},
		CreatedAt:          at,
		UpdatedAt:          at,
	}
}

// Validate implements [Model].
func (m *Meeting) Validate() error {
	switch {
	case m.UserID == "":
		return fmt.Errorf("%w: meeting user is required", shared.ErrInvalidInput)
	case strings.TrimSpace(m.Title) == "":
		return fmt.Errorf("%w: meeting title is required", shared.ErrInvalidInput)
	case m.DurationMinutes < 0:
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// MeetingTag is the tag carried by every task generated from meeting id.
func MeetingTag(id string) string {
	return "meeting:" + id
}
