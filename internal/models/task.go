package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// Task is a unit of work, created by a user or extracted from a transcript.
type Task struct {
	ID              string     `json:"id"`
	Sequence        int        `json:"-"`
	UserID          string     `json:"user_id"`
	ProjectID       *string    `json:"project_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          TaskStatus `json:"status"`
	Priority        Priority   `json:"priority"`
	DueDate         *time.Time `json:"due_date"`
	AssigneeID      *string    `json:"assignee_id"`
	IsAIGenerated   bool       `json:"is_ai_generated"`
	AIPriorityScore *float64   `json:"ai_priority_score"`
	Tags            Tags       `json:"tags"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate implements [Model].
func (t *Task) Validate() error {
	switch {
	case t.UserID == "":
		return fmt.Errorf("%w: task user is required", shared.ErrInvalidInput)
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: task title is required", shared.ErrInvalidInput)
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown task status %q", shared.ErrInvalidInput, t.Status)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: unknown task priority %q", shared.ErrInvalidInput, t.Priority)
	}
	return nil
}

// Overdue reports whether the task is open and due before now.
func (t *Task) Overdue(now time.Time) bool {
	return t.Status != TaskCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// MeetingTask links a meeting to a task.
type MeetingTask struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	TaskID    string    `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
}
