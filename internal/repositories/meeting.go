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

const meetingColumns = `id, sequence, user_id, project_id, recording_session_id, title, description, scheduled_at,
	duration_minutes, summary, action_items, ai_insights, created_at, updated_at`

// MeetingDeletion reports what a cascading meeting delete removed.
type MeetingDeletion struct {
	MeetingID    string `json:"meetingId"`
	TasksDeleted int64  `json:"tasksDeleted"`
	LinksDeleted int64  `json:"linksDeleted"`
}

// MeetingRepository implements [models.Repository] for [models.Meeting].
type MeetingRepository struct {
	db *sql.DB
}

// NewMeetingRepository creates a new [MeetingRepository]
func NewMeetingRepository(db *sql.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Create inserts a meeting with a generated ID and sequence.
//
// A second meeting for the same recording session violates the unique index and is reported as an error.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "meetings")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if m.ID == "" {
		m.ID = shared.GenerateID()
	}
	m.Sequence = sequence
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.AIInsights == nil {
		m.AIInsights = models.Metadata{}
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Sequence, m.UserID, nullableString(m.ProjectID), nullableString(m.RecordingSessionID), m.Title,
		m.Description, nullableTime(m.ScheduledAt), m.DurationMinutes, m.Summary, m.ActionItems, m.AIInsights,
		m.CreatedAt.UTC(), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meeting: %w", err)
	}
	return nil
}

// Get retrieves a meeting by ID
func (r *MeetingRepository) Get(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := scanMeeting(r.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMeetingNotFound, id)
	}
	return m, err
}

// GetByRecordingSession retrieves the meeting produced by a recording.
func (r *MeetingRepository) GetByRecordingSession(ctx context.Context, sessionID string) (*models.Meeting, error) {
	m, err := scanMeeting(r.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE recording_session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", shared.ErrMeetingNotFound, sessionID)
	}
	return m, err
}

// Update writes the editable meeting fields.
func (r *MeetingRepository) Update(ctx context.Context, m *models.Meeting) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	m.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE meetings
		SET project_id = ?, title = ?, description = ?, scheduled_at = ?, duration_minutes = ?, summary = ?,
		    action_items = ?, ai_insights = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(m.ProjectID), m.Title, m.Description, nullableTime(m.ScheduledAt), m.DurationMinutes,
		m.Summary, m.ActionItems, m.AIInsights, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	return checkAffected(result, "meeting", m.ID)
}

// Delete removes a meeting and everything derived from it. See [MeetingRepository.DeleteCascade].
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DeleteCascade(ctx, id)
	return err
}

// DeleteCascade removes a meeting, its task links, its insights, and the AI-generated tasks tagged with it,
// and clears the meeting reference from its recording session. The session itself is kept.
func (r *MeetingRepository) DeleteCascade(ctx context.Context, id string) (*MeetingDeletion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sessionID sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT recording_session_id FROM meetings WHERE id = ?`, id).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMeetingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting: %w", err)
	}

	result := &MeetingDeletion{MeetingID: id}

	res, err := tx.ExecContext(ctx, `DELETE FROM meeting_tasks WHERE meeting_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete meeting links: %w", err)
	}
	result.LinksDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE is_ai_generated = 1
		  AND EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value = ?)
	`, models.MeetingTag(id))
	if err != nil {
		return nil, fmt.Errorf("failed to delete generated tasks: %w", err)
	}
	result.TasksDeleted, _ = res.RowsAffected()

	if sessionID.Valid {
		_, err = tx.ExecContext(ctx, `
			UPDATE recording_sessions SET metadata = json_remove(metadata, '$.meetingId'), updated_at = ? WHERE id = ?
		`, time.Now().UTC(), sessionID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to unlink recording session: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete meeting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meeting deletion: %w", err)
	}
	return result, nil
}

// List retrieves meetings ordered by sequence.
//
// Supported criteria: "user_id", "project_id" (string), "from", "to" ([time.Time], on scheduled_at).
func (r *MeetingRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if projectID, ok := criteria["project_id"].(string); ok && projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	if from, ok := criteria["from"].(time.Time); ok {
		query += " AND scheduled_at >= ?"
		args = append(args, from.UTC())
	}
	if to, ok := criteria["to"].(time.Time); ok {
		query += " AND scheduled_at < ?"
		args = append(args, to.UTC())
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return meetings, nil
}

func scanMeeting(row scanner) (*models.Meeting, error) {
	var (
		m           models.Meeting
		projectID   sql.NullString
		sessionID   sql.NullString
		scheduledAt sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.Sequence, &m.UserID, &projectID, &sessionID, &m.Title, &m.Description, &scheduledAt,
		&m.DurationMinutes, &m.Summary, &m.ActionItems, &m.AIInsights, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}
	m.ProjectID = stringPtr(projectID)
	m.RecordingSessionID = stringPtr(sessionID)
	m.ScheduledAt = timePtr(scheduledAt)
	return &m, nil
}
