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

const taskColumns = `id, sequence, user_id, project_id, title, description, status, priority, due_date, assignee_id,
	is_ai_generated, ai_priority_score, tags, completed_at, created_at, updated_at`

// TaskRepository implements [models.Repository] for [models.Task].
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new [TaskRepository]
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func prepareTask(t *models.Task, sequence int, now time.Time) {
	if t.ID == "" {
		t.ID = shared.GenerateID()
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.Tags == nil {
		t.Tags = models.Tags{}
	}
	t.Sequence = sequence
	t.CreatedAt, t.UpdatedAt = now, now
}

func insertTask(ctx context.Context, q execer, t *models.Task) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Sequence, t.UserID, nullableString(t.ProjectID), t.Title, t.Description, t.Status, t.Priority,
		nullableTime(t.DueDate), nullableString(t.AssigneeID), t.IsAIGenerated, nullableFloat(t.AIPriorityScore),
		t.Tags, nullableTime(t.CompletedAt), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Create inserts a single task with a generated ID and sequence
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "tasks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	prepareTask(t, sequence, time.Now().UTC())
	return insertTask(ctx, r.db, t)
}

// CreateMany inserts tasks in one transaction. Either all rows are written or none are.
func (r *TaskRepository) CreateMany(ctx context.Context, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if t.Status == "" {
			t.Status = models.TaskTodo
		}
		if t.Priority == "" {
			t.Priority = models.PriorityMedium
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, t := range tasks {
		sequence, err := nextSequenceTx(ctx, tx, "tasks")
		if err != nil {
			return err
		}
		prepareTask(t, sequence, now)
		if err := insertTask(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", shared.ErrNotFound, id)
	}
	return t, err
}

// Update writes all editable fields. Moving into completed stamps completed_at; moving out clears it.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	now := time.Now().UTC()
	t.UpdatedAt = now
	switch {
	case t.Status == models.TaskCompleted && t.CompletedAt == nil:
		t.CompletedAt = &now
	case t.Status != models.TaskCompleted:
		t.CompletedAt = nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, due_date = ?, assignee_id = ?,
		    ai_priority_score = ?, tags = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(t.ProjectID), t.Title, t.Description, t.Status, t.Priority, nullableTime(t.DueDate),
		nullableString(t.AssigneeID), nullableFloat(t.AIPriorityScore), t.Tags, nullableTime(t.CompletedAt),
		t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return checkAffected(result, "task", t.ID)
}

// Delete removes a task by ID. Links to meetings cascade.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return checkAffected(result, "task", id)
}

// List retrieves tasks ordered by sequence.
//
// Supported criteria:
//   - "user_id", "project_id", "tag" (string)
//   - "status" ([models.TaskStatus]), "open" (bool, excludes completed)
//   - "due_before", "due_from" ([time.Time])
//   - "completed_from", "completed_before" ([time.Time])
func (r *TaskRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if projectID, ok := criteria["project_id"].(string); ok && projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	if tag, ok := criteria["tag"].(string); ok && tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value = ?)"
		args = append(args, tag)
	}
	if status, ok := criteria["status"].(models.TaskStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if open, ok := criteria["open"].(bool); ok && open {
		query += " AND status != ?"
		args = append(args, models.TaskCompleted)
	}
	if before, ok := criteria["due_before"].(time.Time); ok {
		query += " AND due_date IS NOT NULL AND due_date < ?"
		args = append(args, before.UTC())
	}
	if from, ok := criteria["due_from"].(time.Time); ok {
		query += " AND due_date IS NOT NULL AND due_date >= ?"
		args = append(args, from.UTC())
	}
	if from, ok := criteria["completed_from"].(time.Time); ok {
		query += " AND completed_at IS NOT NULL AND completed_at >= ?"
		args = append(args, from.UTC())
	}
	if before, ok := criteria["completed_before"].(time.Time); ok {
		query += " AND completed_at IS NOT NULL AND completed_at < ?"
		args = append(args, before.UTC())
	}
	query += " ORDER BY sequence ASC"

	return r.query(ctx, query, args...)
}

// ListByMeeting returns the tasks linked to a meeting.
func (r *TaskRepository) ListByMeeting(ctx context.Context, meetingID string) ([]*models.Task, error) {
	query := `SELECT ` + prefixColumns("t", taskColumns) + `
		FROM tasks t
		JOIN meeting_tasks mt ON mt.task_id = t.id
		WHERE mt.meeting_id = ?
		ORDER BY t.sequence ASC`
	return r.query(ctx, query, meetingID)
}

func (r *TaskRepository) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tasks, nil
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		t           models.Task
		projectID   sql.NullString
		dueDate     sql.NullTime
		assigneeID  sql.NullString
		score       sql.NullFloat64
		completedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.Sequence, &t.UserID, &projectID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueDate,
		&assigneeID, &t.IsAIGenerated, &score, &t.Tags, &completedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.ProjectID = stringPtr(projectID)
	t.DueDate = timePtr(dueDate)
	t.AssigneeID = stringPtr(assigneeID)
	t.AIPriorityScore = floatPtr(score)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}
