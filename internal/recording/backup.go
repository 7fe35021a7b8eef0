package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/shared"
)

// BackupStatus is the lifecycle of a locally backed-up session.
type BackupStatus string

const (
	BackupRecording BackupStatus = "recording"
	BackupStopped   BackupStatus = "stopped"
)

// ChunkRecord is one captured chunk as held in the backup store.
type ChunkRecord struct {
	SessionID string
	Index     int
	Data      []byte
	Timestamp time.Time
	Uploaded  bool
}

// BackupSession is session-level metadata kept alongside the chunks.
type BackupSession struct {
	ID              string       `json:"id"`
	UserID          string       `json:"userId"`
	ProjectID       string       `json:"projectId"`
	Status          BackupStatus `json:"status"`
	StartedAt       time.Time    `json:"startedAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	DurationSeconds int          `json:"durationSeconds"`
	ChunkCount      int          `json:"chunkCount"`
}

const backupSchema = `
CREATE TABLE IF NOT EXISTS backup_sessions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	project_id       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	started_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS backup_chunks (
	session_id  TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	data        BLOB NOT NULL,
	captured_at DATETIME NOT NULL,
	uploaded    BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, chunk_index)
);
`

// BackupStore is the local safety net for captured chunks. It lives in its own SQLite file,
// separate from the server database.
type BackupStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenBackupStore opens (and initializes) the backup database at path.
func OpenBackupStore(ctx context.Context, path string, logger *log.Logger) (*BackupStore, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	s := NewBackupStore(db, logger)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBackupStore wraps an open database. Call [BackupStore.Init] before use.
func NewBackupStore(db *sql.DB, logger *log.Logger) *BackupStore {
	return &BackupStore{db: db, logger: shared.WithLogger(logger, "component", "backup")}
}

// Init creates the backup tables. It is safe to call repeatedly.
func (s *BackupStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, backupSchema); err != nil {
		return fmt.Errorf("failed to initialize backup store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BackupStore) Close() error {
	return s.db.Close()
}

// SaveChunk stores one chunk, replacing any chunk already saved at the same index.
func (s *BackupStore) SaveChunk(ctx context.Context, c ChunkRecord) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backup_chunks (session_id, chunk_index, data, captured_at, uploaded)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, chunk_index) DO UPDATE SET
			data = excluded.data,
			captured_at = excluded.captured_at,
			uploaded = excluded.uploaded
	`, c.SessionID, c.Index, c.Data, c.Timestamp.UTC(), c.Uploaded)
	if err != nil {
		return fmt.Errorf("failed to save chunk %d: %w", c.Index, err)
	}
	return nil
}

// GetChunks returns a session's chunks ordered by index.
func (s *BackupStore) GetChunks(ctx context.Context, sessionID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, chunk_index, data, captured_at, uploaded
		FROM backup_chunks WHERE session_id = ? ORDER BY chunk_index ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.SessionID, &c.Index, &c.Data, &c.Timestamp, &c.Uploaded); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// MarkUploaded flags a chunk as present in object storage.
func (s *BackupStore) MarkUploaded(ctx context.Context, sessionID string, index int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_chunks SET uploaded = 1 WHERE session_id = ? AND chunk_index = ?`, sessionID, index)
	if err != nil {
		return fmt.Errorf("failed to mark chunk %d uploaded: %w", index, err)
	}
	return nil
}

// SaveSession upserts session metadata.
func (s *BackupStore) SaveSession(ctx context.Context, b BackupSession) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = b.UpdatedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backup_sessions (id, user_id, project_id, status, started_at, updated_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			project_id = excluded.project_id,
			updated_at = excluded.updated_at,
			duration_seconds = excluded.duration_seconds
	`, b.ID, b.UserID, b.ProjectID, b.Status, b.StartedAt.UTC(), b.UpdatedAt.UTC(), b.DurationSeconds)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", b.ID, err)
	}
	return nil
}

// GetSession returns a session's metadata and chunk count.
func (s *BackupStore) GetSession(ctx context.Context, sessionID string) (*BackupSession, error) {
	row := s.db.QueryRowContext(ctx, sessionQuery+` WHERE s.id = ? GROUP BY s.id`, sessionID)
	b, err := scanBackupSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	return b, err
}

// IncompleteSessions returns sessions updated within maxAge that have chunks. A session is deleted once
// finalized, so anything left here, recording or stopped, was never finished. Newest first.
func (s *BackupStore) IncompleteSessions(ctx context.Context, maxAge time.Duration) ([]*BackupSession, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := s.db.QueryContext(ctx, sessionQuery+`
		WHERE s.status IN (?, ?) AND s.updated_at >= ?
		GROUP BY s.id
		HAVING COUNT(c.chunk_index) > 0
		ORDER BY s.updated_at DESC
	`, BackupRecording, BackupStopped, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*BackupSession
	for rows.Next() {
		b, err := scanBackupSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and its chunks.
func (s *BackupStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_chunks WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

const sessionQuery = `
	SELECT s.id, s.user_id, s.project_id, s.status, s.started_at, s.updated_at, s.duration_seconds, COUNT(c.chunk_index)
	FROM backup_sessions s
	LEFT JOIN backup_chunks c ON c.session_id = s.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackupSession(row rowScanner) (*BackupSession, error) {
	var b BackupSession
	err := row.Scan(&b.ID, &b.UserID, &b.ProjectID, &b.Status, &b.StartedAt, &b.UpdatedAt, &b.DurationSeconds, &b.ChunkCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &b, nil
}

// BestEffort wraps a store so that failures are logged and swallowed. A nil store is a no-op.
//
// The controller only talks to the backup through this wrapper: a failing backup must never stop a recording.
type BestEffort struct {
	store *BackupStore
}

func (b BestEffort) SaveChunk(ctx context.Context, c ChunkRecord) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.SaveChunk(ctx, c); err != nil {
		b.store.logger.Warn("chunk backup failed", "session", c.SessionID, "chunk", c.Index, "error", err)
		return err
	}
	return nil
}

func (b BestEffort) MarkUploaded(ctx context.Context, sessionID string, index int) {
	if b.store == nil {
		return
	}
	if err := b.store.MarkUploaded(ctx, sessionID, index); err != nil {
		b.store.logger.Warn("failed to mark chunk uploaded", "session", sessionID, "chunk", index, "error", err)
	}
}

func (b BestEffort) SaveSession(ctx context.Context, s BackupSession) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveSession(ctx, s); err != nil {
		b.store.logger.Warn("session backup failed", "session", s.ID, "error", err)
	}
}

func (b BestEffort) DeleteSession(ctx context.Context, sessionID string) {
	if b.store == nil {
		return
	}
	if err := b.store.DeleteSession(ctx, sessionID); err != nil {
		b.store.logger.Warn("failed to delete backup", "session", sessionID, "error", err)
	}
}
