package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during recording finalization.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Finalization phase enumeration
type Phase int

const (
	PhaseAssemble Phase = iota
	PhaseRegister
	PhaseSign
	PhaseTranscribe
	PhaseProcess
	PhaseCleanup
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAssemble:
		return "assemble"
	case PhaseRegister:
		return "register"
	case PhaseSign:
		return "sign"
	case PhaseTranscribe:
		return "transcribe"
	case PhaseProcess:
		return "process"
	case PhaseCleanup:
		return "cleanup"
	case PhaseDone:
		return "done"
	default:
		return ""
	}
}

// SendProgress sends update without blocking. A nil or full channel drops it.
func SendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func AssembleUpdate(chunks int, fromStorage bool) ProgressUpdate {
	source := "local backup"
	if fromStorage {
		source = "storage"
	}
	return ProgressUpdate{
		Phase:   PhaseAssemble,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Assembling %d chunks from %s...", chunks, source),
	}
}

func RegisterUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseRegister,
		Step:    1,
		Total:   1,
		Message: "Saving recording...",
		Data:    path,
	}
}

func SignUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseSign,
		Step:    1,
		Total:   1,
		Message: "Preparing audio for transcription...",
	}
}

func TranscribeUpdate(attempt, maxAttempts int, status string) ProgressUpdate {
	msg := "Submitting for transcription..."
	if attempt > 0 {
		msg = fmt.Sprintf("[%d/%d] Transcription %s...", attempt, maxAttempts, status)
	}
	return ProgressUpdate{
		Phase:   PhaseTranscribe,
		Step:    attempt,
		Total:   maxAttempts,
		Message: msg,
	}
}

func ProcessUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseProcess,
		Step:    1,
		Total:   1,
		Message: "Extracting tasks...",
	}
}

func CleanupUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseCleanup,
		Step:    1,
		Total:   1,
		Message: "Removing local backup...",
	}
}

func DoneUpdate(meetingID string, tasks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDone,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ Meeting saved with %s", plural(tasks, "task")),
		Data:    meetingID,
	}
}
