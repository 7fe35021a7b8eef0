package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/minutes/internal/formatter"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadExport gathers a meeting with its project, tasks and transcript.
func loadExport(ctx context.Context, db *sql.DB, id string) (*formatter.MeetingExport, error) {
	meeting, err := repositories.NewMeetingRepository(db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := repositories.NewTaskRepository(db).ListByMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}

	export := &formatter.MeetingExport{Meeting: meeting, Tasks: list}
	if meeting.ProjectID != nil {
		if project, err := repositories.NewProjectRepository(db).Get(ctx, *meeting.ProjectID); err == nil {
			export.Project = project
		}
	}
	if meeting.RecordingSessionID != nil {
		if session, err := repositories.NewSessionRepository(db).Get(ctx, *meeting.RecordingSessionID); err == nil {
			export.Transcript = session.Transcript()
		}
	}
	return export, nil
}

// MeetingShow prints a meeting with its summary and tasks.
func (r *Runner) MeetingShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: meeting ID", shared.ErrMissingArgument)
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	export, err := loadExport(ctx, db, id)
	if err != nil {
		return err
	}

	return r.emit(cmd, export, func() error {
		m := export.Meeting
		r.writePlainHeader(m.Title)
		if m.ScheduledAt != nil {
			r.writePlain("When:     %s\n", m.ScheduledAt.Local().Format("Mon Jan 2, 2006 15:04"))
		}
		r.writePlain("Duration: %s\n", formatter.FormatDuration(m.DurationMinutes))
		if export.Project != nil {
			r.writePlain("Project:  %s\n", export.Project.Name)
		}
		if m.Summary != "" {
			r.writePlainln("%s", m.Summary)
		}
		r.writeTasks(export.Tasks)
		return nil
	})
}

// MeetingExport writes a meeting to a file, or stdout with --output -.
func (r *Runner) MeetingExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: meeting ID", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	export, err := loadExport(ctx, db, id)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "-" {
		data, err := formatter.Export(export, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("meeting exported", "meeting", id, "format", format, "path", path)
	r.writePlain("✓ Exported %d tasks to %s\n", len(export.Tasks), path)

	if cmd.Bool("open") {
		if err := shared.OpenURL(path); err != nil {
			r.logger.Warn("failed to open export", "path", path, "error", err)
		}
	}
	return nil
}

// MeetingDelete removes a meeting together with the tasks generated from it.
func (r *Runner) MeetingDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: meeting ID", shared.ErrMissingArgument)
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	deleted, err := repositories.NewMeetingRepository(db).DeleteCascade(ctx, id)
	if err != nil {
		return err
	}
	r.logger.Info("meeting deleted", "meeting", id, "tasks", deleted.TasksDeleted)

	return r.emit(cmd, deleted, func() error {
		return r.writePlain("✓ Deleted meeting %s (%d tasks, %d links)\n", id, deleted.TasksDeleted, deleted.LinksDeleted)
	})
}
