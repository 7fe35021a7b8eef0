package recording

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
	"golang.org/x/time/rate"
)

// RecordingAPI is the part of the minutes server the finalizer talks to.
type RecordingAPI interface {
	UploadRoute
	CreateRecording(ctx context.Context, r services.CreateRecordingRequest) (*services.CreateRecordingResponse, error)
	Transcribe(ctx context.Context, r services.TranscribeRequest) (*services.TranscribeResponse, error)
	ProcessingStatus(ctx context.Context, sessionID string) (*services.ProcessingStatus, error)
	ProcessRecording(ctx context.Context, r services.ProcessRecordingRequest) (*services.ProcessRecordingResponse, error)
}

// FinalizeResult describes a finalized recording.
type FinalizeResult struct {
	SessionID    string `json:"sessionId"`
	MeetingID    string `json:"meetingId,omitempty"`
	StoragePath  string `json:"storagePath"`
	TranscriptID string `json:"transcriptId,omitempty"`
	TasksCreated int    `json:"tasksCreated"`
	Summary      string `json:"summary,omitempty"`
}

// Finalizer turns a stopped [Capture] into a transcribed, processed meeting.
//
// Every step can be retried: the server registers recordings idempotently and the backup is only
// deleted after the meeting is processed.
type Finalizer struct {
	api      RecordingAPI
	uploader *Uploader
	store    *BackupStore
	poller   *tasks.Poller
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewFinalizer creates a finalizer. store may be nil.
func NewFinalizer(api RecordingAPI, uploader *Uploader, store *BackupStore, logger *log.Logger) *Finalizer {
	return &Finalizer{
		api:      api,
		uploader: uploader,
		store:    store,
		poller:   tasks.NewPoller(),
		limiter:  rate.NewLimiter(rate.Limit(2), 1),
		logger:   shared.WithLogger(logger, "component", "finalize"),
	}
}

// WithPoller replaces the status poller.
func (f *Finalizer) WithPoller(p *tasks.Poller) *Finalizer {
	f.poller = p
	return f
}

// WithLimiter replaces the pacing used when re-uploading recovered chunks.
func (f *Finalizer) WithLimiter(l *rate.Limiter) *Finalizer {
	f.limiter = l
	return f
}

// Finalize uploads the recording, registers it, starts transcription and waits for task extraction.
func (f *Finalizer) Finalize(ctx context.Context, capture *Capture, progress chan<- tasks.ProgressUpdate) (*FinalizeResult, error) {
	if capture == nil || len(capture.Chunks) == 0 {
		return nil, shared.ErrNoChunks
	}
	logger := f.logger.With("session", capture.SessionID)
	result := &FinalizeResult{SessionID: capture.SessionID}

	storagePath, err := f.assemble(ctx, capture, progress)
	if err != nil {
		return nil, err
	}
	result.StoragePath = storagePath

	tasks.SendProgress(progress, tasks.RegisterUpdate(storagePath))
	registered, err := f.api.CreateRecording(ctx, services.CreateRecordingRequest{
		SessionID:       capture.SessionID,
		UserID:          capture.UserID,
		ProjectID:       capture.ProjectID,
		StoragePath:     storagePath,
		DurationSeconds: int(capture.Duration.Seconds()),
		FileSize:        capture.Size(),
		ChunkCount:      len(capture.Chunks),
		StartedAt:       capture.StartedAt,
	})
	if err != nil {
		return result, err
	}
	if registered.Meeting != nil {
		result.MeetingID = registered.Meeting.ID
	}
	if !registered.Created {
		logger.Info("recording was already registered", "meeting", result.MeetingID)
	}

	tasks.SendProgress(progress, tasks.SignUpdate())
	signedURL, err := f.uploader.GetSignedURL(ctx, storagePath, SignedURLTTL)
	if err != nil {
		return result, err
	}

	tasks.SendProgress(progress, tasks.TranscribeUpdate(0, f.poller.MaxAttempts, "submitted"))
	submitted, err := f.api.Transcribe(ctx, services.TranscribeRequest{AudioURL: signedURL, SessionID: capture.SessionID})
	if err != nil {
		return result, err
	}
	result.TranscriptID = submitted.TranscriptID

	if err := f.waitForTranscript(ctx, capture.SessionID, progress); err != nil {
		return result, err
	}

	tasks.SendProgress(progress, tasks.ProcessUpdate())
	processed, err := f.api.ProcessRecording(ctx, services.ProcessRecordingRequest{
		SessionID: capture.SessionID,
		UserID:    capture.UserID,
		ProjectID: capture.ProjectID,
	})
	if err != nil {
		return result, err
	}
	if processed.Meeting != nil {
		result.MeetingID = processed.Meeting.ID
	}
	result.TasksCreated = processed.TasksCreated
	result.Summary = processed.Summary

	if f.store != nil {
		tasks.SendProgress(progress, tasks.CleanupUpdate())
		BestEffort{store: f.store}.DeleteSession(ctx, capture.SessionID)
	}

	tasks.SendProgress(progress, tasks.DoneUpdate(result.MeetingID, result.TasksCreated))
	logger.Info("recording finalized", "meeting", result.MeetingID, "tasks", result.TasksCreated)
	return result, nil
}

// assemble uploads the local blob, or rebuilds the recording from stored chunks when local indices have gaps.
func (f *Finalizer) assemble(ctx context.Context, capture *Capture, progress chan<- tasks.ProgressUpdate) (string, error) {
	if capture.Recovered && !capture.AllUploaded() {
		n, err := f.uploader.UploadMissing(ctx, capture.Chunks, capture.UserID, f.limiter)
		if err != nil {
			f.logger.Warn("some recovered chunks could not be uploaded", "session", capture.SessionID, "uploaded", n, "error", err)
		}
	}

	blob, contiguous := capture.Blob()
	if contiguous {
		tasks.SendProgress(progress, tasks.AssembleUpdate(len(capture.Chunks), false))
		return f.uploader.UploadRecording(ctx, blob, capture.UserID, capture.SessionID)
	}

	total := capture.Chunks[len(capture.Chunks)-1].Index + 1
	f.logger.Warn("local chunks have gaps, assembling from storage", "session", capture.SessionID, "local", len(capture.Chunks), "total", total)
	tasks.SendProgress(progress, tasks.AssembleUpdate(total, true))
	return f.uploader.AssembleChunks(ctx, capture.UserID, capture.SessionID, total)
}

// waitForTranscript polls the server until the transcript is complete. Status check failures are retried.
func (f *Finalizer) waitForTranscript(ctx context.Context, sessionID string, progress chan<- tasks.ProgressUpdate) error {
	return f.poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		status, err := f.api.ProcessingStatus(ctx, sessionID)
		if err != nil {
			f.logger.Warn("status check failed", "session", sessionID, "attempt", attempt, "error", err)
			tasks.SendProgress(progress, tasks.TranscribeUpdate(attempt, f.poller.MaxAttempts, "unknown"))
			return false, nil
		}
		tasks.SendProgress(progress, tasks.TranscribeUpdate(attempt, f.poller.MaxAttempts, status.TranscriptionStatus))

		switch {
		case status.Processed:
			return true, nil
		case status.TranscriptionStatus == "completed":
			return true, nil
		case status.TranscriptionStatus == "error":
			return false, fmt.Errorf("%w: session %s", shared.ErrTranscriptionFailed, sessionID)
		}
		return false, nil
	})
}
