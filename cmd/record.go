package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/minutes/internal/audio"
	"github.com/desertthunder/minutes/internal/recording"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
	"github.com/desertthunder/minutes/internal/ui"
	"github.com/urfave/cli/v3"
)

// userID resolves --user, falling back to the configured recorder user.
func (r *Runner) userID(cmd *cli.Command) (string, error) {
	if id := cmd.String("user"); id != "" {
		return id, nil
	}
	if id := r.config.Recorder.UserID; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: --user or recorder.user_id", shared.ErrMissingArgument)
}

// recorder bundles the pieces a recording or recovery needs.
type recorder struct {
	store     *recording.BackupStore
	uploader  *recording.Uploader
	finalizer *recording.Finalizer
}

func (r *Runner) newRecorder(ctx context.Context) *recorder {
	cfg := r.config.Recorder

	var store *recording.BackupStore
	if cfg.BackupPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.BackupPath), 0755); err != nil {
			r.logger.Warn("failed to create backup directory, recording without backup", "error", err)
		} else if s, err := recording.OpenBackupStore(ctx, cfg.BackupPath, r.logger); err != nil {
			r.logger.Warn("failed to open backup store, recording without backup", "error", err)
		} else {
			store = s
		}
	}

	var objects services.ObjectStore
	if r.config.Storage.URL != "" {
		objects = services.NewStorageService(r.config.Storage, nil)
	}

	uploader := recording.NewUploader(r.api, objects, r.logger)
	return &recorder{
		store:     store,
		uploader:  uploader,
		finalizer: recording.NewFinalizer(r.api, uploader, store, r.logger),
	}
}

func (rec *recorder) Close() {
	if rec.store != nil {
		rec.store.Close()
	}
}

// Record opens the recording TUI for a new session.
func (r *Runner) Record(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}
	projectID := cmd.String("project")

	// Logs go to a file while the TUI owns the terminal.
	if path := r.config.Recorder.LogPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	capturer := audio.NewCapturer(r.config.Recorder, r.logger)
	if err := capturer.CheckFFmpeg(); err != nil {
		return err
	}

	rec := r.newRecorder(ctx)
	defer rec.Close()

	var recoverable []*recording.BackupSession
	if !cmd.Bool("skip-recovery") {
		if recoverable, err = recording.FindRecoverable(ctx, rec.store); err != nil {
			r.logger.Warn("failed to look up unfinished sessions", "error", err)
		}
	}

	controller := recording.NewController(userID, capturer, rec.uploader, rec.store, r.logger)
	model := ui.NewModel(ctx, ui.Options{
		Recorder:    controller,
		Finalizer:   rec.finalizer,
		ProjectID:   projectID,
		ProjectName: projectID,
		Recoverable: recoverable,
		Recover: func(ctx context.Context, sessionID string) (*recording.Capture, error) {
			return recording.Recover(ctx, rec.store, sessionID)
		},
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if model.Discarded() {
		r.writePlain("Recording discarded\n")
		return nil
	}
	result, err := model.Result()
	if err != nil {
		return err
	}
	if result != nil {
		r.writeFinalized(result)
	}
	return nil
}

// Recover lists recoverable sessions, or finalizes the one named.
func (r *Runner) Recover(ctx context.Context, cmd *cli.Command) error {
	rec := r.newRecorder(ctx)
	defer rec.Close()

	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		sessions, err := recording.FindRecoverable(ctx, rec.store)
		if err != nil {
			return err
		}
		return r.emit(cmd, sessions, func() error {
			if len(sessions) == 0 {
				return r.writePlain("No unfinished recordings\n")
			}
			r.writePlainHeader("Unfinished recordings")
			for _, s := range sessions {
				r.writePlain("%s  %s  %d chunks  %s  (%s)\n",
					s.ID, s.StartedAt.Local().Format("Jan 2 15:04"), s.ChunkCount,
					ui.FormatClock(time.Duration(s.DurationSeconds)*time.Second), s.Status)
			}
			return nil
		})
	}

	if rec.store == nil {
		return fmt.Errorf("%w: recorder.backup_path", shared.ErrMissingConfig)
	}
	capture, err := recording.Recover(ctx, rec.store, sessionID)
	if err != nil {
		return err
	}
	r.logger.Info("recovering session", "session", sessionID, "chunks", len(capture.Chunks))

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	result, err := rec.finalizer.Finalize(ctx, capture, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	return r.emit(cmd, result, func() error {
		r.writeFinalized(result)
		return nil
	})
}

func (r *Runner) writeFinalized(result *recording.FinalizeResult) {
	r.writePlain("✓ Recording saved\n")
	r.writePlain("  Session: %s\n", result.SessionID)
	if result.MeetingID != "" {
		r.writePlain("  Meeting: %s\n", result.MeetingID)
	}
	r.writePlain("  Tasks:   %d\n", result.TasksCreated)
	if result.Summary != "" {
		r.writePlainln("%s", result.Summary)
	}
}
