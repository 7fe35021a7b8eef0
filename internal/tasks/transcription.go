package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

// TranscriptionJob submits a recording for transcription, waits for it, and hands the transcript to a [Processor].
type TranscriptionJob struct {
	sessions    *repositories.SessionRepository
	transcriber services.Transcriber
	processor   *Processor
	poller      *Poller
	logger      *log.Logger
}

// NewTranscriptionJob creates a job. processor may be nil to stop after the transcript is stored.
func NewTranscriptionJob(db *sql.DB, transcriber services.Transcriber, processor *Processor, logger *log.Logger) *TranscriptionJob {
	return &TranscriptionJob{
		sessions:    repositories.NewSessionRepository(db),
		transcriber: transcriber,
		processor:   processor,
		poller:      NewPoller(),
		logger:      shared.WithLogger(logger, "component", "transcription"),
	}
}

// WithPoller replaces the default 5s/60 attempt poller.
func (j *TranscriptionJob) WithPoller(p *Poller) *TranscriptionJob {
	j.poller = p
	return j
}

// Submit starts transcription of audioURL and marks the session processing.
// Without a session id the transcript is only submitted.
func (j *TranscriptionJob) Submit(ctx context.Context, sessionID, audioURL string) (*services.Transcript, error) {
	if audioURL == "" {
		return nil, fmt.Errorf("%w: audio url is required", shared.ErrInvalidInput)
	}
	if sessionID == "" {
		return j.transcriber.Submit(ctx, audioURL)
	}
	if _, err := j.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	transcript, err := j.transcriber.Submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	_, err = j.sessions.UpdateTranscription(ctx, sessionID, repositories.TranscriptionUpdate{
		Status:       models.TranscriptionProcessing,
		TranscriptID: transcript.ID,
	})
	if err != nil && !errors.Is(err, shared.ErrInvalidTransition) {
		return transcript, fmt.Errorf("failed to mark session processing: %w", err)
	}
	j.logger.Info("submitted transcription", "session", sessionID, "transcript", transcript.ID)
	return transcript, nil
}

// Wait polls a submitted transcript until it completes or fails, persisting the outcome on the session.
//
// A completed transcript is handed to the processor. Extraction failures are logged and do not fail the job.
func (j *TranscriptionJob) Wait(ctx context.Context, sessionID, transcriptID string) error {
	var final *services.Transcript
	err := j.poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		t, err := j.transcriber.Status(ctx, transcriptID)
		if err != nil {
			j.logger.Warn("transcript status check failed", "transcript", transcriptID, "attempt", attempt, "error", err)
			return false, nil
		}
		switch t.Status {
		case "completed", "error":
			final = t
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		j.markError(ctx, sessionID, transcriptID)
		return err
	}

	if final.Status == "error" {
		j.markError(ctx, sessionID, transcriptID)
		return fmt.Errorf("%w: %s", shared.ErrTranscriptionFailed, final.Error)
	}

	session, err := j.complete(ctx, sessionID, final)
	if err != nil {
		return err
	}

	if j.processor == nil {
		return nil
	}
	_, err = j.processor.Process(ctx, ProcessRequest{SessionID: sessionID, UserID: session.UserID})
	switch {
	case err == nil, errors.Is(err, shared.ErrAlreadyProcessed):
	default:
		j.logger.Error("task extraction failed", "session", sessionID, "error", err)
	}
	return nil
}

// Run submits audioURL and waits for the result.
func (j *TranscriptionJob) Run(ctx context.Context, sessionID, audioURL string) error {
	t, err := j.Submit(ctx, sessionID, audioURL)
	if err != nil {
		j.markError(ctx, sessionID, "")
		return err
	}
	return j.Wait(ctx, sessionID, t.ID)
}

// Check returns a transcript's current state. With a session id, a completed or failed
// transcript is persisted onto that session.
func (j *TranscriptionJob) Check(ctx context.Context, transcriptID, sessionID string) (*services.Transcript, error) {
	t, err := j.transcriber.Status(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return t, nil
	}

	switch t.Status {
	case "completed":
		if _, err := j.complete(ctx, sessionID, t); err != nil {
			return t, err
		}
	case "error":
		j.markError(ctx, sessionID, transcriptID)
	}
	return t, nil
}

func (j *TranscriptionJob) complete(ctx context.Context, sessionID string, t *services.Transcript) (*models.RecordingSession, error) {
	text, confidence := t.Text, t.Confidence
	session, err := j.sessions.UpdateTranscription(ctx, sessionID, repositories.TranscriptionUpdate{
		Status:       models.TranscriptionCompleted,
		TranscriptID: t.ID,
		Text:         &text,
		Confidence:   &confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store transcript: %w", err)
	}
	j.logger.Info("transcription completed", "session", sessionID, "chars", len(text), "confidence", confidence)
	return session, nil
}

func (j *TranscriptionJob) markError(ctx context.Context, sessionID, transcriptID string) {
	_, err := j.sessions.UpdateTranscription(ctx, sessionID, repositories.TranscriptionUpdate{
		Status:       models.TranscriptionError,
		TranscriptID: transcriptID,
	})
	if err != nil && !errors.Is(err, shared.ErrInvalidTransition) {
		j.logger.Error("failed to mark transcription error", "session", sessionID, "error", err)
	}
}
