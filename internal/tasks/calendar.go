package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
)

// FeedFetcher downloads and parses one calendar feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]*models.SyncedEvent, error)
}

// CalendarSyncer keeps calendar subscriptions and their synced events current.
type CalendarSyncer struct {
	repo    *repositories.CalendarRepository
	fetcher FeedFetcher
	logger  *log.Logger
	now     func() time.Time
}

// NewCalendarSyncer creates a syncer over db.
func NewCalendarSyncer(db *sql.DB, fetcher FeedFetcher, logger *log.Logger) *CalendarSyncer {
	return &CalendarSyncer{
		repo:    repositories.NewCalendarRepository(db),
		fetcher: fetcher,
		logger:  shared.WithLogger(logger, "component", "calendar"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe stores a new enabled subscription and runs its first sync.
//
// A failed first sync keeps the subscription with last_error set; the error is returned alongside it.
func (s *CalendarSyncer) Subscribe(ctx context.Context, c *models.CalendarSync) (*models.CalendarSync, int, error) {
	c.Enabled = true
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, 0, err
	}
	n, err := s.Refresh(ctx, c.ID)
	if err != nil {
		stored, gerr := s.repo.Get(ctx, c.ID)
		if gerr != nil {
			return c, 0, err
		}
		return stored, 0, err
	}
	stored, err := s.repo.Get(ctx, c.ID)
	return stored, n, err
}

// Refresh downloads the feed of subscription id and replaces its events, returning how many were stored.
func (s *CalendarSyncer) Refresh(ctx context.Context, id string) (int, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	events, err := s.fetcher.Fetch(ctx, c.FeedURL)
	if err != nil {
		s.logger.Warn("calendar refresh failed", "calendar", c.ID, "error", err)
		if rerr := s.repo.RecordError(ctx, c.ID, err); rerr != nil {
			s.logger.Error("failed to record calendar error", "calendar", c.ID, "error", rerr)
		}
		return 0, fmt.Errorf("failed to refresh calendar %s: %w", c.ID, err)
	}

	if err := s.repo.ReplaceEvents(ctx, c.ID, events, s.now()); err != nil {
		return 0, err
	}
	s.logger.Info("calendar refreshed", "calendar", c.ID, "events", len(events))
	return len(events), nil
}

// RefreshAll refreshes every enabled subscription, optionally limited to one user.
// Failures are recorded per subscription and do not stop the others.
func (s *CalendarSyncer) RefreshAll(ctx context.Context, userID string) (map[string]error, error) {
	criteria := map[string]any{"enabled": true}
	if userID != "" {
		criteria["user_id"] = userID
	}
	syncs, err := s.repo.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	results := make(map[string]error, len(syncs))
	for _, c := range syncs {
		_, results[c.ID] = s.Refresh(ctx, c.ID)
	}
	return results, nil
}

// SetEnabled toggles a subscription.
func (s *CalendarSyncer) SetEnabled(ctx context.Context, id string, enabled bool) (*models.CalendarSync, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Enabled = enabled
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Remove deletes a subscription and its events.
func (s *CalendarSyncer) Remove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
