package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// MeetingTaskRepository links meetings to tasks.
type MeetingTaskRepository struct {
	db *sql.DB
}

// NewMeetingTaskRepository creates a new [MeetingTaskRepository]
func NewMeetingTaskRepository(db *sql.DB) *MeetingTaskRepository {
	return &MeetingTaskRepository{db: db}
}

// LinkMany inserts one link per task in a single statement and returns how many rows were written.
//
// Links that already exist are skipped by the conflict clause and are not counted, so zero means
// either nothing was new or nothing could be written.
func (r *MeetingTaskRepository) LinkMany(ctx context.Context, meetingID string, taskIDs []string) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	placeholders := make([]string, 0, len(taskIDs))
	args := make([]any, 0, len(taskIDs)*4)
	for _, taskID := range taskIDs {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, shared.GenerateID(), meetingID, taskID, now)
	}

	query := `INSERT INTO meeting_tasks (id, meeting_id, task_id, created_at) VALUES ` +
		strings.Join(placeholders, ", ") +
		` ON CONFLICT (meeting_id, task_id) DO NOTHING RETURNING id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meeting links: %w", err)
	}
	defer rows.Close()

	inserted := 0
	for rows.Next() {
		inserted++
	}
	if err := rows.Err(); err != nil {
		return inserted, fmt.Errorf("failed to insert meeting links: %w", err)
	}
	return inserted, nil
}

// Link inserts a single link. An existing link is reported as linked.
func (r *MeetingTaskRepository) Link(ctx context.Context, meetingID, taskID string) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meeting_tasks (id, meeting_id, task_id, created_at) VALUES (?, ?, ?, ?)`,
		shared.GenerateID(), meetingID, taskID, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to link task %s: %w", taskID, err)
	}
	return true, nil
}

// TaskIDs returns the IDs of tasks linked to a meeting in link order.
func (r *MeetingTaskRepository) TaskIDs(ctx context.Context, meetingID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id FROM meeting_tasks WHERE meeting_id = ? ORDER BY created_at ASC, rowid ASC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan meeting link: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Count returns the number of tasks linked to a meeting.
func (r *MeetingTaskRepository) Count(ctx context.Context, meetingID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meeting_tasks WHERE meeting_id = ?`, meetingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count meeting links: %w", err)
	}
	return n, nil
}
