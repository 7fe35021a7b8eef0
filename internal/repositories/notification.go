package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/shared"
)

// NotificationRepository stores delivered and in-app assistant messages.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new [NotificationRepository]
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	switch n.Channel {
	case models.ChannelEmail, models.ChannelPush, models.ChannelInApp:
	default:
		return fmt.Errorf("validation failed: %w: unknown channel %q", shared.ErrInvalidInput, n.Channel)
	}
	if n.ID == "" {
		n.ID = shared.GenerateID()
	}
	if n.Kind == "" {
		n.Kind = "assistant"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, channel, kind, title, body, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Channel, n.Kind, n.Title, n.Body, nullableTime(n.ReadAt), n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT id, user_id, channel, kind, title, body, read_at, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n      models.Notification
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Channel, &n.Kind, &n.Title, &n.Body, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ReadAt = timePtr(readAt)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// MarkRead stamps read_at on a notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return checkAffected(result, "unread notification", id)
}

// InsightRepository stores what the extraction pipeline concluded about each meeting.
type InsightRepository struct {
	db *sql.DB
}

// NewInsightRepository creates a new [InsightRepository]
func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create inserts an insight row.
func (r *InsightRepository) Create(ctx context.Context, in *models.AIInsight) error {
	if in.MeetingID == "" || in.UserID == "" || in.Kind == "" {
		return fmt.Errorf("validation failed: %w: insight meeting, user and kind are required", shared.ErrInvalidInput)
	}
	if in.ID == "" {
		in.ID = shared.GenerateID()
	}
	if in.Payload == nil {
		in.Payload = models.Metadata{}
	}
	in.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_insights (id, meeting_id, user_id, kind, confidence, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.MeetingID, in.UserID, in.Kind, in.Confidence, in.Payload, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// ListByMeeting returns a meeting's insights, oldest first.
func (r *InsightRepository) ListByMeeting(ctx context.Context, meetingID string) ([]*models.AIInsight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, meeting_id, user_id, kind, confidence, payload, created_at
		FROM ai_insights WHERE meeting_id = ? ORDER BY created_at ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var out []*models.AIInsight
	for rows.Next() {
		var in models.AIInsight
		if err := rows.Scan(&in.ID, &in.MeetingID, &in.UserID, &in.Kind, &in.Confidence, &in.Payload, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
