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

const sessionColumns = `id, user_id, project_id, title, duration_seconds, file_size, chunk_count, storage_path, transcript_id,
	transcription_status, transcription_text, transcription_confidence, metadata, ai_processed, created_at, updated_at`

// TranscriptionUpdate is a status write coming from the transcription poller or a status check.
type TranscriptionUpdate struct {
	Status       models.TranscriptionStatus
	TranscriptID string
	Text         *string
	Confidence   *float64
}

// SessionRepository implements [models.Repository] for [models.RecordingSession].
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository]
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session. The ID is client-assigned so chunk paths can be derived before the row exists.
func (r *SessionRepository) Create(ctx context.Context, s *models.RecordingSession) error {
	if s.ID == "" {
		s.ID = shared.GenerateID()
	}
	if s.TranscriptionStatus == "" {
		s.TranscriptionStatus = models.TranscriptionPending
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if s.Metadata == nil {
		s.Metadata = models.Metadata{}
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO recording_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, nullableString(s.ProjectID), s.Title, s.DurationSeconds, s.FileSize, s.ChunkCount,
		s.StoragePath, s.TranscriptID, s.TranscriptionStatus, nullableString(s.TranscriptionText),
		nullableFloat(s.TranscriptionConfidence), s.Metadata, s.AIProcessed, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recording session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, wrapping [shared.ErrSessionNotFound] when absent.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.RecordingSession, error) {
	return r.get(ctx, r.db, id)
}

func (r *SessionRepository) get(ctx context.Context, q execer, id string) (*models.RecordingSession, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM recording_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return s, err
}

// Update writes the capture fields, title, metadata and processed flag.
//
// Transcription fields are only written through [SessionRepository.UpdateTranscription].
func (r *SessionRepository) Update(ctx context.Context, s *models.RecordingSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE recording_sessions
		SET project_id = ?, title = ?, duration_seconds = ?, file_size = ?, chunk_count = ?, storage_path = ?,
		    metadata = ?, ai_processed = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(s.ProjectID), s.Title, s.DurationSeconds, s.FileSize, s.ChunkCount, s.StoragePath,
		s.Metadata, s.AIProcessed, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update recording session: %w", err)
	}
	return checkAffected(result, "recording session", s.ID)
}

// UpdateTranscription applies a status change, refusing any move that would regress the current status.
//
// Text and confidence are only written with a completed status.
func (r *SessionRepository) UpdateTranscription(ctx context.Context, id string, u TranscriptionUpdate) (*models.RecordingSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	next, err := current.TranscriptionStatus.Transition(u.Status)
	if err != nil {
		return current, err
	}

	current.TranscriptionStatus = next
	if u.TranscriptID != "" {
		current.TranscriptID = u.TranscriptID
	}
	if next == models.TranscriptionCompleted {
		if u.Text != nil {
			current.TranscriptionText = u.Text
		}
		if u.Confidence != nil {
			current.TranscriptionConfidence = u.Confidence
		}
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE recording_sessions
		SET transcription_status = ?, transcript_id = ?, transcription_text = ?, transcription_confidence = ?, updated_at = ?
		WHERE id = ?
	`, current.TranscriptionStatus, current.TranscriptID, nullableString(current.TranscriptionText),
		nullableFloat(current.TranscriptionConfidence), current.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update transcription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transcription update: %w", err)
	}
	return current, nil
}

// FindByTranscriptID returns the session waiting on a provider transcript.
func (r *SessionRepository) FindByTranscriptID(ctx context.Context, transcriptID string) (*models.RecordingSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM recording_sessions WHERE transcript_id = ?`, transcriptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transcript %s", shared.ErrSessionNotFound, transcriptID)
	}
	return s, err
}

// Delete removes a session row. Sessions are never removed by the pipeline itself.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recording_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording session: %w", err)
	}
	return checkAffected(result, "recording session", id)
}

// List retrieves sessions newest first.
//
// Supported criteria: "user_id" (string), "status" ([models.TranscriptionStatus]), "ai_processed" (bool).
func (r *SessionRepository) List(ctx context.Context, criteria map[string]any) ([]*models.RecordingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM recording_sessions WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if status, ok := criteria["status"].(models.TranscriptionStatus); ok && status != "" {
		query += " AND transcription_status = ?"
		args = append(args, status)
	}
	if processed, ok := criteria["ai_processed"].(bool); ok {
		query += " AND ai_processed = ?"
		args = append(args, processed)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recording sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.RecordingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func scanSession(row scanner) (*models.RecordingSession, error) {
	var (
		s          models.RecordingSession
		projectID  sql.NullString
		text       sql.NullString
		confidence sql.NullFloat64
	)
	err := row.Scan(
		&s.ID, &s.UserID, &projectID, &s.Title, &s.DurationSeconds, &s.FileSize, &s.ChunkCount, &s.StoragePath,
		&s.TranscriptID, &s.TranscriptionStatus, &text, &confidence, &s.Metadata, &s.AIProcessed,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recording session: %w", err)
	}
	s.ProjectID = stringPtr(projectID)
	s.TranscriptionText = stringPtr(text)
	s.TranscriptionConfidence = floatPtr(confidence)
	return &s, nil
}
