package tasks

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test User")
	if err := repositories.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func seedProject(t *testing.T, db *sql.DB, userID string) *models.Project {
	t.Helper()
	project := &models.Project{UserID: userID, Name: "Roadmap"}
	if err := repositories.NewProjectRepository(db).Create(context.Background(), project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return project
}

// seedTranscribedSession creates a session and, when transcript is non-empty, stores it as completed.
func seedTranscribedSession(t *testing.T, db *sql.DB, userID string, projectID *string, transcript string) *models.RecordingSession {
	t.Helper()
	ctx := context.Background()
	sessions := repositories.NewSessionRepository(db)

	session := models.NewRecordingSession(shared.GenerateID(), userID, projectID)
	session.DurationSeconds = 95
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if transcript == "" {
		return session
	}

	confidence := 0.92
	updated, err := sessions.UpdateTranscription(ctx, session.ID, repositories.TranscriptionUpdate{
		Status:     models.TranscriptionCompleted,
		Text:       &transcript,
		Confidence: &confidence,
	})
	if err != nil {
		t.Fatalf("failed to store transcript: %v", err)
	}
	return updated
}

func noSleep(context.Context, time.Duration) error { return nil }
