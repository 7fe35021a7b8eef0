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

// ProjectRepository implements [models.Repository] for [models.Project].
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new [ProjectRepository]
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project with a generated ID and sequence
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "projects")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if project.ID == "" {
		project.ID = shared.GenerateID()
	}
	project.Sequence = sequence
	now := time.Now().UTC()
	project.CreatedAt, project.UpdatedAt = now, now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, sequence, user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, project.ID, project.Sequence, project.UserID, project.Name, project.Description, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sequence, user_id, name, description, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)

	var p models.Project
	err := row.Scan(&p.ID, &p.Sequence, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

// Update modifies a project's name and description
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	project.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		project.Name, project.Description, project.UpdatedAt, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return checkAffected(result, "project", project.ID)
}

// Delete removes a project; its meetings and tasks keep existing with a null project.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return checkAffected(result, "project", id)
}

// List retrieves projects, optionally filtered by "user_id".
func (r *ProjectRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Project, error) {
	query := `SELECT id, sequence, user_id, name, description, created_at, updated_at FROM projects WHERE 1 = 1`
	args := []any{}
	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Sequence, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return projects, nil
}
