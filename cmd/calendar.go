package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/tasks"
	"github.com/urfave/cli/v3"
)

func (r *Runner) calendarSyncer(ctx context.Context) (*tasks.CalendarSyncer, *repositories.CalendarRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, nil, err
	}
	syncer := tasks.NewCalendarSyncer(db, services.NewCalendarService(nil, time.Local), r.logger)
	return syncer, repositories.NewCalendarRepository(db), nil
}

// CalendarAdd subscribes a user to an iCalendar feed and runs the first sync.
func (r *Runner) CalendarAdd(ctx context.Context, cmd *cli.Command) error {
	feedURL := cmd.StringArg("url")
	if feedURL == "" {
		return fmt.Errorf("%w: feed URL", shared.ErrMissingArgument)
	}
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}
	syncer, _, err := r.calendarSyncer(ctx)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = feedURL
	}
	calendar, events, err := syncer.Subscribe(ctx, &models.CalendarSync{
		UserID:   userID,
		Provider: cmd.String("provider"),
		Name:     name,
		FeedURL:  feedURL,
		Color:    cmd.String("color"),
	})
	if calendar == nil {
		return err
	}
	if err != nil {
		r.logger.Warn("first sync failed, subscription kept", "calendar", calendar.ID, "error", err)
	}

	return r.emit(cmd, calendar, func() error {
		r.writePlain("✓ Calendar %q added: %s\n", calendar.Name, calendar.ID)
		if err != nil {
			return r.writePlain("  First sync failed: %v\n", err)
		}
		return r.writePlain("  %d events synced\n", events)
	})
}

// CalendarList lists subscriptions with their sync state.
func (r *Runner) CalendarList(ctx context.Context, cmd *cli.Command) error {
	_, repo, err := r.calendarSyncer(ctx)
	if err != nil {
		return err
	}

	calendars, err := repo.List(ctx, map[string]any{"user_id": cmd.String("user")})
	if err != nil {
		return err
	}

	return r.emit(cmd, calendars, func() error {
		if len(calendars) == 0 {
			return r.writePlain("No calendars\n")
		}
		r.writePlainHeader("Calendars")
		for _, c := range calendars {
			state := "enabled"
			if !c.Enabled {
				state = "disabled"
			}
			synced := "never"
			if c.LastSyncedAt != nil {
				synced = c.LastSyncedAt.Local().Format("Jan 2 15:04")
			}
			r.writePlain("%s  %s  (%s, synced %s)\n", c.ID, c.Name, state, synced)
			if c.LastError != "" {
				r.writePlain("    last error: %s\n", shared.Truncate(c.LastError, 72))
			}
		}
		return nil
	})
}

type refreshResult struct {
	ID     string `json:"id"`
	Events int    `json:"events,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CalendarRefresh re-syncs one calendar, or every enabled calendar (of --user when set) when no ID is given.
func (r *Runner) CalendarRefresh(ctx context.Context, cmd *cli.Command) error {
	syncer, _, err := r.calendarSyncer(ctx)
	if err != nil {
		return err
	}

	var results []refreshResult
	if id := cmd.StringArg("id"); id != "" {
		events, err := syncer.Refresh(ctx, id)
		if err != nil {
			return err
		}
		results = append(results, refreshResult{ID: id, Events: events})
	} else {
		outcomes, err := syncer.RefreshAll(ctx, cmd.String("user"))
		if err != nil {
			return err
		}
		for id, syncErr := range outcomes {
			res := refreshResult{ID: id}
			if syncErr != nil {
				res.Error = syncErr.Error()
			}
			results = append(results, res)
		}
		sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	}

	return r.emit(cmd, results, func() error {
		if len(results) == 0 {
			return r.writePlain("No enabled calendars\n")
		}
		for _, res := range results {
			if res.Error != "" {
				r.writePlain("✗ %s: %s\n", res.ID, res.Error)
				continue
			}
			r.writePlain("✓ %s refreshed\n", res.ID)
		}
		return nil
	})
}

// CalendarToggle enables or disables syncing for a calendar.
func (r *Runner) CalendarToggle(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: calendar ID", shared.ErrMissingArgument)
	}
	syncer, _, err := r.calendarSyncer(ctx)
	if err != nil {
		return err
	}

	calendar, err := syncer.SetEnabled(ctx, id, cmd.Bool("enabled"))
	if err != nil {
		return err
	}

	return r.emit(cmd, calendar, func() error {
		state := "enabled"
		if !calendar.Enabled {
			state = "disabled"
		}
		return r.writePlain("✓ Calendar %s %s\n", calendar.Name, state)
	})
}

// CalendarRemove deletes a calendar and its events.
func (r *Runner) CalendarRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: calendar ID", shared.ErrMissingArgument)
	}
	syncer, _, err := r.calendarSyncer(ctx)
	if err != nil {
		return err
	}

	if err := syncer.Remove(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Calendar %s removed\n", id)
}
