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

const userColumns = `id, sequence, email, name, timezone, notify_email, notify_push, notify_in_app, notify_hour, last_notified_at, created_at, updated_at`

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if user.ID == "" {
		user.ID = shared.GenerateID()
	}
	user.Sequence = sequence
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Sequence, user.Email, user.Name, user.Timezone,
		user.NotifyEmail, user.NotifyPush, user.NotifyInApp, user.NotifyHour,
		nullableTime(user.LastNotifiedAt), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	return user, err
}

// GetByEmail retrieves a user by email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	return user, err
}

// Update modifies an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = ?, name = ?, timezone = ?, notify_email = ?, notify_push = ?, notify_in_app = ?,
		    notify_hour = ?, last_notified_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email, user.Name, user.Timezone, user.NotifyEmail, user.NotifyPush, user.NotifyInApp,
		user.NotifyHour, nullableTime(user.LastNotifiedAt), user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(result, "user", user.ID)
}

// MarkNotified records the time the assistant last reached the user.
func (r *UserRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_notified_at = ?, updated_at = ? WHERE id = ?`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark user notified: %w", err)
	}
	return checkAffected(result, "user", id)
}

// Delete removes a user; owned rows cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffected(result, "user", id)
}

// List retrieves all users matching the given criteria.
//
// Supported criteria: "email" (string), "notifiable" (bool, any channel enabled).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1 = 1`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}
	if notifiable, ok := criteria["notifiable"].(bool); ok && notifiable {
		query += " AND (notify_email = 1 OR notify_push = 1 OR notify_in_app = 1)"
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

func (r *UserRepository) scanOne(row scanner) (*models.User, error) {
	var (
		user         models.User
		lastNotified sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Sequence, &user.Email, &user.Name, &user.Timezone,
		&user.NotifyEmail, &user.NotifyPush, &user.NotifyInApp, &user.NotifyHour,
		&lastNotified, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.LastNotifiedAt = timePtr(lastNotified)
	return &user, nil
}
