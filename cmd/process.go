package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Process runs extraction for a transcribed session directly against the database.
func (r *Runner) Process(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session ID", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	session, err := repositories.NewSessionRepository(db).Get(ctx, sessionID)
	if err != nil {
		return err
	}

	processor, err := r.processor(db)
	if err != nil {
		return err
	}

	r.logger.Info("processing session", "session", sessionID)
	result, err := processor.Process(ctx, tasks.ProcessRequest{
		SessionID: session.ID,
		UserID:    session.UserID,
		ProjectID: cmd.String("project"),
	})
	if errors.Is(err, shared.ErrAlreadyProcessed) {
		return r.emit(cmd, result, func() error {
			r.writePlain("Session %s was already processed\n", sessionID)
			if result != nil && result.Meeting != nil {
				r.writePlain("  Meeting: %s (%s)\n", result.Meeting.Title, result.Meeting.ID)
			}
			return nil
		})
	}
	if err != nil {
		return err
	}

	return r.emit(cmd, result, func() error {
		r.writePlainHeader(result.Meeting.Title)
		r.writePlain("Meeting: %s\n", result.Meeting.ID)
		if result.Fallback {
			r.writePlain("Extraction: fallback (%.0f%% confidence)\n", result.Confidence*100)
		} else {
			r.writePlain("Extraction: %.0f%% confidence\n", result.Confidence*100)
		}
		if result.Summary != "" {
			r.writePlainln("%s", result.Summary)
		}
		r.writeTasks(result.Tasks)
		return nil
	})
}

func (r *Runner) writeTasks(list []*models.Task) {
	r.writePlainln("Tasks (%d)", len(list))
	if len(list) == 0 {
		r.writePlain("  none\n")
		return
	}
	for _, t := range list {
		due := ""
		if t.DueDate != nil {
			due = ", due " + t.DueDate.Format("2006-01-02")
		}
		r.writePlain("  [%s] %s (%s%s)\n", t.Status, t.Title, t.Priority, due)
	}
}

// Status asks the server how far a session has progressed.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session ID", shared.ErrMissingArgument)
	}

	status, err := r.api.ProcessingStatus(ctx, sessionID)
	if err != nil {
		return err
	}

	return r.emit(cmd, status, func() error {
		r.writePlain("Session:       %s\n", sessionID)
		r.writePlain("Transcription: %s\n", status.TranscriptionStatus)
		r.writePlain("Processed:     %t\n", status.Processed)
		if status.MeetingID != "" {
			r.writePlain("Meeting:       %s\n", status.MeetingID)
		}
		return nil
	})
}

// Notify runs the daily briefing job once.
func (r *Runner) Notify(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	job, closeAudit, err := r.notifyJob(db)
	if err != nil {
		return err
	}
	defer closeAudit()

	result, err := job.Run(ctx, time.Now())
	if err != nil {
		return err
	}

	return r.emit(cmd, result, func() error {
		r.writePlain("Considered %d users: %d notified, %d skipped, %d failed\n",
			result.Considered, result.Notified, result.Skipped, result.Failed)
		for _, res := range result.Results {
			if res.Error != "" {
				r.writePlain("  ✗ %s: %s\n", res.UserID, res.Error)
			}
		}
		return nil
	})
}
