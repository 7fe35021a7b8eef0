package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/shared"
)

const (
	calendarColumns = `id, user_id, provider, name, feed_url, color, enabled, last_synced_at, last_error, created_at, updated_at`
	eventColumns    = `id, calendar_sync_id, uid, title, description, location, starts_at, ends_at, all_day`
)

// CalendarRepository implements [models.Repository] for [models.CalendarSync] and stores its events.
type CalendarRepository struct {
	db *sql.DB
}

// NewCalendarRepository creates a new [CalendarRepository]
func NewCalendarRepository(db *sql.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// Create inserts a subscription. Subscribing twice to the same feed is rejected.
func (r *CalendarRepository) Create(ctx context.Context, c *models.CalendarSync) error {
	if c.Provider == "" {
		c.Provider = "ics"
	}
	if c.Color == "" {
		c.Color = "#7D56F4"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.ID == "" {
		c.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO calendar_syncs (`+calendarColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Provider, c.Name, c.FeedURL, c.Color, c.Enabled, nullableTime(c.LastSyncedAt), c.LastError,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: already subscribed to %s", shared.ErrInvalidInput, c.FeedURL)
	}
	if err != nil {
		return fmt.Errorf("failed to insert calendar sync: %w", err)
	}
	return nil
}

// Get retrieves a subscription by ID
func (r *CalendarRepository) Get(ctx context.Context, id string) (*models.CalendarSync, error) {
	c, err := scanCalendar(r.db.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendar_syncs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: calendar sync %s", shared.ErrNotFound, id)
	}
	return c, err
}

// Update writes name, color, enabled flag and sync status.
func (r *CalendarRepository) Update(ctx context.Context, c *models.CalendarSync) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	c.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE calendar_syncs
		SET name = ?, color = ?, enabled = ?, last_synced_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Color, c.Enabled, nullableTime(c.LastSyncedAt), c.LastError, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update calendar sync: %w", err)
	}
	return checkAffected(result, "calendar sync", c.ID)
}

// Delete removes a subscription; its events cascade.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM calendar_syncs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar sync: %w", err)
	}
	return checkAffected(result, "calendar sync", id)
}

// List retrieves subscriptions.
//
// Supported criteria: "user_id" (string), "enabled" (bool).
func (r *CalendarRepository) List(ctx context.Context, criteria map[string]any) ([]*models.CalendarSync, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendar_syncs WHERE 1 = 1`
	args := []any{}
	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if enabled, ok := criteria["enabled"].(bool); ok {
		query += " AND enabled = ?"
		args = append(args, enabled)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar syncs: %w", err)
	}
	defer rows.Close()

	var syncs []*models.CalendarSync
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		syncs = append(syncs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return syncs, nil
}

// ReplaceEvents swaps the stored events of a subscription for events and stamps last_synced_at.
func (r *CalendarRepository) ReplaceEvents(ctx context.Context, syncID string, events []*models.SyncedEvent, syncedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM synced_events WHERE calendar_sync_id = ?`, syncID); err != nil {
		return fmt.Errorf("failed to clear synced events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO synced_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (calendar_sync_id, uid) DO UPDATE SET
			title = excluded.title, description = excluded.description, location = excluded.location,
			starts_at = excluded.starts_at, ends_at = excluded.ends_at, all_day = excluded.all_day`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" {
			e.ID = shared.GenerateID()
		}
		e.CalendarSyncID = syncID
		if _, err := stmt.ExecContext(ctx, e.ID, syncID, e.UID, e.Title, e.Description, e.Location,
			e.StartsAt.UTC(), nullableTime(e.EndsAt), e.AllDay); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.UID, err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE calendar_syncs SET last_synced_at = ?, last_error = '', updated_at = ? WHERE id = ?`,
		syncedAt.UTC(), time.Now().UTC(), syncID)
	if err != nil {
		return fmt.Errorf("failed to stamp calendar sync: %w", err)
	}
	if err := checkAffected(result, "calendar sync", syncID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit synced events: %w", err)
	}
	return nil
}

// RecordError stores the last refresh failure without touching the stored events.
func (r *CalendarRepository) RecordError(ctx context.Context, syncID string, syncErr error) error {
	_, err := r.db.ExecContext(ctx, `UPDATE calendar_syncs SET last_error = ?, updated_at = ? WHERE id = ?`,
		shared.Truncate(syncErr.Error(), 500), time.Now().UTC(), syncID)
	if err != nil {
		return fmt.Errorf("failed to record calendar error: %w", err)
	}
	return nil
}

// Events returns the events of one subscription ordered by start.
func (r *CalendarRepository) Events(ctx context.Context, syncID string) ([]*models.SyncedEvent, error) {
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM synced_events WHERE calendar_sync_id = ? ORDER BY starts_at ASC`, syncID)
}

// EventsForUser returns events from the user's enabled subscriptions starting in [from, to).
func (r *CalendarRepository) EventsForUser(ctx context.Context, userID string, from, to time.Time) ([]*models.SyncedEvent, error) {
	query := `SELECT ` + prefixColumns("e", eventColumns) + `
		FROM synced_events e
		JOIN calendar_syncs c ON c.id = e.calendar_sync_id
		WHERE c.user_id = ? AND c.enabled = 1 AND e.starts_at >= ? AND e.starts_at < ?
		ORDER BY e.starts_at ASC`
	return r.queryEvents(ctx, query, userID, from.UTC(), to.UTC())
}

func (r *CalendarRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*models.SyncedEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced events: %w", err)
	}
	defer rows.Close()

	var events []*models.SyncedEvent
	for rows.Next() {
		var (
			e      models.SyncedEvent
			endsAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.CalendarSyncID, &e.UID, &e.Title, &e.Description, &e.Location,
			&e.StartsAt, &endsAt, &e.AllDay); err != nil {
			return nil, fmt.Errorf("failed to scan synced event: %w", err)
		}
		e.EndsAt = timePtr(endsAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func scanCalendar(row scanner) (*models.CalendarSync, error) {
	var (
		c            models.CalendarSync
		lastSyncedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.Name, &c.FeedURL, &c.Color, &c.Enabled, &lastSyncedAt,
		&c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan calendar sync: %w", err)
	}
	c.LastSyncedAt = timePtr(lastSyncedAt)
	return &c, nil
}
