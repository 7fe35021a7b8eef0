package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/minutes/internal/shared"
)

// TranscriptionStatus is the lifecycle of a recording's transcript.
//
// Status only moves forward: pending → processing → error → completed.
// A timed-out poll (error) can still be superseded by a late completion found by a status check;
// completed is final.
type TranscriptionStatus string

const (
	TranscriptionPending    TranscriptionStatus = "pending"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionError      TranscriptionStatus = "error"
	TranscriptionCompleted  TranscriptionStatus = "completed"
)

func (s TranscriptionStatus) rank() int {
	switch s {
	case TranscriptionPending:
		return 0
	case TranscriptionProcessing:
		return 1
	case TranscriptionError:
		return 2
	case TranscriptionCompleted:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s TranscriptionStatus) Valid() bool { return s.rank() >= 0 }

// Terminal reports whether no further polling can change s on its own.
func (s TranscriptionStatus) Terminal() bool {
	return s == TranscriptionCompleted || s == TranscriptionError
}

// CanTransition reports whether moving from s to next is allowed.
// Re-writing the current status is a permitted no-op.
func (s TranscriptionStatus) CanTransition(next TranscriptionStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// Transition returns next, or an error wrapping [shared.ErrInvalidTransition] when the move would regress.
func (s TranscriptionStatus) Transition(next TranscriptionStatus) (TranscriptionStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s → %s", shared.ErrInvalidTransition, s, next)
	}
	return next, nil
}

// ParseTranscriptionStatus maps provider statuses onto [TranscriptionStatus]. "queued" counts as processing.
func ParseTranscriptionStatus(s string) (TranscriptionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "":
		return TranscriptionPending, nil
	case "queued", "processing":
		return TranscriptionProcessing, nil
	case "completed":
		return TranscriptionCompleted, nil
	case "error", "failed":
		return TranscriptionError, nil
	default:
		return "", fmt.Errorf("unknown transcription status %q", s)
	}
}

// TaskStatus is a task's board column.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Priority is a task's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalizes free text from model output; anything unrecognized is medium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p
	case "critical":
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return ParsePriority(string(p)) == p
}
