package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/minutes/internal/models"
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
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func seedProject(t *testing.T, db *sql.DB, userID string) *models.Project {
	t.Helper()
	project := &models.Project{UserID: userID, Name: "Roadmap"}
	if err := NewProjectRepository(db).Create(context.Background(), project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return project
}

func seedSession(t *testing.T, db *sql.DB, userID string, projectID *string) *models.RecordingSession {
	t.Helper()
	session := models.NewRecordingSession(shared.GenerateID(), userID, projectID)
	if err := NewSessionRepository(db).Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		user := seedUser(t, db, "test@example.com")

		if user.ID == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence)
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := seedUser(t, db, "test@example.com")

		retrieved, err := repo.Get(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Email != user.Email {
			t.Errorf("expected email %s, got %s", user.Email, retrieved.Email)
		}
		if retrieved.Timezone != "UTC" || retrieved.NotifyHour != 8 {
			t.Errorf("unexpected defaults: %+v", retrieved)
		}
	})

	t.Run("GetByEmail", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := seedUser(t, db, "find@example.com")

		retrieved, err := repo.GetByEmail(ctx, "find@example.com")
		if err != nil {
			t.Fatalf("failed to get user by email: %v", err)
		}
		if retrieved.ID != user.ID {
			t.Errorf("expected ID %s, got %s", user.ID, retrieved.ID)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := seedUser(t, db, "test@example.com")

		user.Timezone = "America/Chicago"
		user.NotifyPush = true
		if err := repo.Update(ctx, user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		retrieved, _ := repo.Get(ctx, user.ID)
		if retrieved.Timezone != "America/Chicago" || !retrieved.NotifyPush {
			t.Errorf("update not persisted: %+v", retrieved)
		}
	})

	t.Run("MarkNotified", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := seedUser(t, db, "test@example.com")
		at := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

		if err := repo.MarkNotified(ctx, user.ID, at); err != nil {
			t.Fatalf("failed to mark notified: %v", err)
		}
		retrieved, _ := repo.Get(ctx, user.ID)
		if retrieved.LastNotifiedAt == nil || !retrieved.LastNotifiedAt.Equal(at) {
			t.Errorf("expected last_notified_at %v, got %v", at, retrieved.LastNotifiedAt)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		seedUser(t, db, "a@example.com")
		quiet := seedUser(t, db, "b@example.com")
		quiet.NotifyEmail, quiet.NotifyInApp = false, false
		if err := repo.Update(ctx, quiet); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		all, err := repo.List(ctx, map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 users, got %d", len(all))
		}

		notifiable, err := repo.List(ctx, map[string]any{"notifiable": true})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(notifiable) != 1 || notifiable[0].Email != "a@example.com" {
			t.Errorf("expected only a@example.com, got %d users", len(notifiable))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := seedUser(t, db, "test@example.com")

		if err := repo.Delete(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(ctx, user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestProjectRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewProjectRepository(db)
	user := seedUser(t, db, "test@example.com")

	project := seedProject(t, db, user.ID)
	project.Description = "Q3 planning"
	if err := repo.Update(ctx, project); err != nil {
		t.Fatalf("failed to update project: %v", err)
	}

	projects, err := repo.List(ctx, map[string]any{"user_id": user.ID})
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].Description != "Q3 planning" {
		t.Errorf("unexpected projects: %+v", projects)
	}

	if err := repo.Delete(ctx, project.ID); err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}
	if _, err := repo.Get(ctx, project.ID); err == nil {
		t.Error("expected error getting deleted project")
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		project := seedProject(t, db, user.ID)

		session := seedSession(t, db, user.ID, &project.ID)

		retrieved, err := repo.Get(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if retrieved.TranscriptionStatus != models.TranscriptionPending {
			t.Errorf("expected pending, got %s", retrieved.TranscriptionStatus)
		}
		if retrieved.ProjectID == nil || *retrieved.ProjectID != project.ID {
			t.Errorf("expected project %s, got %v", project.ID, retrieved.ProjectID)
		}
		if retrieved.TranscriptionText != nil {
			t.Error("expected no transcript")
		}
	})

	t.Run("UpdateMetadata", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		session.Metadata[models.MetaMeetingID] = "meeting-1"
		session.AIProcessed = true
		session.ChunkCount = 4
		if err := repo.Update(ctx, session); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		retrieved, _ := repo.Get(ctx, session.ID)
		if retrieved.MeetingID() != "meeting-1" || !retrieved.AIProcessed || retrieved.ChunkCount != 4 {
			t.Errorf("update not persisted: %+v", retrieved)
		}
	})

	t.Run("UpdateTranscription", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		if _, err := repo.UpdateTranscription(ctx, session.ID, TranscriptionUpdate{
			Status: models.TranscriptionProcessing, TranscriptID: "tr-1",
		}); err != nil {
			t.Fatalf("failed to move to processing: %v", err)
		}

		text, confidence := "We discussed the roadmap.", 0.92
		updated, err := repo.UpdateTranscription(ctx, session.ID, TranscriptionUpdate{
			Status: models.TranscriptionCompleted, Text: &text, Confidence: &confidence,
		})
		if err != nil {
			t.Fatalf("failed to complete: %v", err)
		}
		if updated.Transcript() != text || updated.TranscriptID != "tr-1" {
			t.Errorf("unexpected session: %+v", updated)
		}

		found, err := repo.FindByTranscriptID(ctx, "tr-1")
		if err != nil {
			t.Fatalf("failed to find by transcript id: %v", err)
		}
		if found.ID != session.ID {
			t.Errorf("expected %s, got %s", session.ID, found.ID)
		}
	})

	t.Run("TranscriptionNeverRegresses", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		text := "done"
		if _, err := repo.UpdateTranscription(ctx, session.ID, TranscriptionUpdate{
			Status: models.TranscriptionCompleted, Text: &text,
		}); err != nil {
			t.Fatalf("failed to complete: %v", err)
		}

		for _, status := range []models.TranscriptionStatus{
			models.TranscriptionPending, models.TranscriptionProcessing, models.TranscriptionError,
		} {
			_, err := repo.UpdateTranscription(ctx, session.ID, TranscriptionUpdate{Status: status})
			if !errors.Is(err, shared.ErrInvalidTransition) {
				t.Errorf("completed → %s: expected ErrInvalidTransition, got %v", status, err)
			}
		}

		retrieved, _ := repo.Get(ctx, session.ID)
		if retrieved.TranscriptionStatus != models.TranscriptionCompleted || retrieved.Transcript() != "done" {
			t.Errorf("session regressed: %+v", retrieved)
		}
	})

	t.Run("TextIgnoredUnlessCompleted", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		text := "partial"
		updated, err := repo.UpdateTranscription(ctx, session.ID, TranscriptionUpdate{
			Status: models.TranscriptionError, Text: &text,
		})
		if err != nil {
			t.Fatalf("failed to mark error: %v", err)
		}
		if updated.TranscriptionText != nil {
			t.Errorf("expected no transcript on error, got %q", updated.Transcript())
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db)
		user := seedUser(t, db, "test@example.com")
		seedSession(t, db, user.ID, nil)
		processed := seedSession(t, db, user.ID, nil)
		processed.AIProcessed = true
		if err := repo.Update(ctx, processed); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		pending, err := repo.List(ctx, map[string]any{"user_id": user.ID, "ai_processed": false})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(pending) != 1 || pending[0].ID == processed.ID {
			t.Errorf("expected one unprocessed session, got %d", len(pending))
		}
	})
}

func TestMeetingRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGetByRecordingSession", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMeetingRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)
		at := time.Date(2025, 7, 1, 15, 4, 0, 0, time.UTC)

		meeting := models.NewRecordedMeeting(user.ID, session.ID, nil, at, 125)
		if err := repo.Create(ctx, meeting); err != nil {
			t.Fatalf("failed to create meeting: %v", err)
		}
		if meeting.DurationMinutes != 3 {
			t.Errorf("expected 3 minutes, got %d", meeting.DurationMinutes)
		}

		retrieved, err := repo.GetByRecordingSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get meeting by session: %v", err)
		}
		if retrieved.ID != meeting.ID || retrieved.Title != "Recording Jul 1, 2025 3:04 PM" {
			t.Errorf("unexpected meeting: %+v", retrieved)
		}
	})

	t.Run("OneMeetingPerRecording", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMeetingRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		if err := repo.Create(ctx, models.NewRecordedMeeting(user.ID, session.ID, nil, time.Now(), 60)); err != nil {
			t.Fatalf("failed to create meeting: %v", err)
		}
		err := repo.Create(ctx, models.NewRecordedMeeting(user.ID, session.ID, nil, time.Now(), 60))
		if err == nil || !isUniqueViolation(err) {
			t.Fatalf("expected unique violation, got %v", err)
		}

		manual := &models.Meeting{UserID: user.ID, Title: "Standup"}
		other := &models.Meeting{UserID: user.ID, Title: "Standup"}
		if err := repo.Create(ctx, manual); err != nil {
			t.Fatalf("failed to create manual meeting: %v", err)
		}
		if err := repo.Create(ctx, other); err != nil {
			t.Fatalf("manual meetings without a session should not conflict: %v", err)
		}
	})

	t.Run("UpdateSnapshot", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMeetingRepository(db)
		user := seedUser(t, db, "test@example.com")
		meeting := &models.Meeting{UserID: user.ID, Title: "Planning"}
		if err := repo.Create(ctx, meeting); err != nil {
			t.Fatalf("failed to create meeting: %v", err)
		}

		meeting.Summary = "Roadmap review"
		meeting.ActionItems = models.ActionItems{{Title: "Update pricing page", Priority: "high"}}
		meeting.AIInsights = models.Metadata{"confidence": 0.8}
		if err := repo.Update(ctx, meeting); err != nil {
			t.Fatalf("failed to update meeting: %v", err)
		}

		retrieved, _ := repo.Get(ctx, meeting.ID)
		if len(retrieved.ActionItems) != 1 || retrieved.ActionItems[0].Title != "Update pricing page" {
			t.Errorf("action items not persisted: %+v", retrieved.ActionItems)
		}
		if retrieved.AIInsights["confidence"] != 0.8 {
			t.Errorf("insights not persisted: %+v", retrieved.AIInsights)
		}
	})

	t.Run("DeleteCascade", func(t *testing.T) {
		db := setupTestDB(t)
		meetings := NewMeetingRepository(db)
		tasks := NewTaskRepository(db)
		links := NewMeetingTaskRepository(db)
		sessions := NewSessionRepository(db)
		insights := NewInsightRepository(db)
		user := seedUser(t, db, "test@example.com")
		session := seedSession(t, db, user.ID, nil)

		meeting := models.NewRecordedMeeting(user.ID, session.ID, nil, time.Now(), 60)
		if err := meetings.Create(ctx, meeting); err != nil {
			t.Fatalf("failed to create meeting: %v", err)
		}
		session.Metadata[models.MetaMeetingID] = meeting.ID
		if err := sessions.Update(ctx, session); err != nil {
			t.Fatalf("failed to link session: %v", err)
		}

		generated := &models.Task{UserID: user.ID, Title: "Follow up", IsAIGenerated: true, Tags: models.Tags{models.MeetingTag(meeting.ID)}}
		manual := &models.Task{UserID: user.ID, Title: "Keep me"}
		if err := tasks.CreateMany(ctx, []*models.Task{generated, manual}); err != nil {
			t.Fatalf("failed to create tasks: %v", err)
		}
		if _, err := links.LinkMany(ctx, meeting.ID, []string{generated.ID, manual.ID}); err != nil {
			t.Fatalf("failed to link tasks: %v", err)
		}
		if err := insights.Create(ctx, &models.AIInsight{MeetingID: meeting.ID, UserID: user.ID, Kind: "extraction"}); err != nil {
			t.Fatalf("failed to create insight: %v", err)
		}

		result, err := meetings.DeleteCascade(ctx, meeting.ID)
		if err != nil {
			t.Fatalf("failed to delete meeting: %v", err)
		}
		if result.TasksDeleted != 1 || result.LinksDeleted != 2 {
			t.Errorf("unexpected deletion result: %+v", result)
		}

		if _, err := tasks.Get(ctx, generated.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected generated task deleted, got %v", err)
		}
		if _, err := tasks.Get(ctx, manual.ID); err != nil {
			t.Errorf("manual task should survive: %v", err)
		}
		if got, _ := insights.ListByMeeting(ctx, meeting.ID); len(got) != 0 {
			t.Errorf("expected insights removed, got %d", len(got))
		}

		retrieved, err := sessions.Get(ctx, session.ID)
		if err != nil {
			t.Fatalf("session should survive: %v", err)
		}
		if retrieved.MeetingID() != "" {
			t.Errorf("expected meetingId cleared, got %q", retrieved.MeetingID())
		}
	})
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateDefaults", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTaskRepository(db)
		user := seedUser(t, db, "test@example.com")

		task := &models.Task{UserID: user.ID, Title: "Write notes"}
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}

		retrieved, _ := repo.Get(ctx, task.ID)
		if retrieved.Status != models.TaskTodo || retrieved.Priority != models.PriorityMedium {
			t.Errorf("unexpected defaults: %s/%s", retrieved.Status, retrieved.Priority)
		}
		if retrieved.DueDate != nil || retrieved.AIPriorityScore != nil {
			t.Error("expected null due date and score")
		}
	})

	t.Run("CreateManyAssignsSequences", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTaskRepository(db)
		user := seedUser(t, db, "test@example.com")

		batch := []*models.Task{
			{UserID: user.ID, Title: "One"},
			{UserID: user.ID, Title: "Two"},
			{UserID: user.ID, Title: "Three"},
		}
		if err := repo.CreateMany(ctx, batch); err != nil {
			t.Fatalf("failed to create tasks: %v", err)
		}
		for i, task := range batch {
			if task.Sequence != i+1 {
				t.Errorf("task %d: expected sequence %d, got %d", i, i+1, task.Sequence)
			}
		}
	})

	t.Run("CreateManyIsAllOrNothing", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTaskRepository(db)
		user := seedUser(t, db, "test@example.com")
		missing := "missing-project"

		batch := []*models.Task{
			{UserID: user.ID, Title: "Fine"},
			{UserID: user.ID, Title: "Bad project", ProjectID: &missing},
		}
		if err := repo.CreateMany(ctx, batch); err == nil {
			t.Fatal("expected foreign key failure")
		}

		all, _ := repo.List(ctx, map[string]any{"user_id": user.ID})
		if len(all) != 0 {
			t.Errorf("expected no tasks after rollback, got %d", len(all))
		}
	})

	t.Run("UpdateCompletion", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTaskRepository(db)
		user := seedUser(t, db, "test@example.com")
		task := &models.Task{UserID: user.ID, Title: "Ship"}
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}

		task.Status = models.TaskCompleted
		if err := repo.Update(ctx, task); err != nil {
			t.Fatalf("failed to update task: %v", err)
		}
		if task.CompletedAt == nil {
			t.Fatal("expected completed_at to be stamped")
		}

		task.Status = models.TaskInProgress
		if err := repo.Update(ctx, task); err != nil {
			t.Fatalf("failed to update task: %v", err)
		}
		if task.CompletedAt != nil {
			t.Error("expected completed_at cleared")
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTaskRepository(db)
		user := seedUser(t, db, "test@example.com")
		now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
		yesterday, tomorrow := now.Add(-24*time.Hour), now.Add(24*time.Hour)

		batch := []*models.Task{
			{UserID: user.ID, Title: "Overdue", DueDate: &yesterday, Tags: models.Tags{"meeting:m1"}},
			{UserID: user.ID, Title: "Upcoming", DueDate: &tomorrow},
			{UserID: user.ID, Title: "Done", DueDate: &yesterday, Status: models.TaskCompleted},
		}
		if err := repo.CreateMany(ctx, batch); err != nil {
			t.Fatalf("failed to create tasks: %v", err)
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     []string
		}{
			{"overdue open", map[string]any{"open": true, "due_before": now}, []string{"Overdue"}},
			{"due after", map[string]any{"due_from": now}, []string{"Upcoming"}},
			{"tag", map[string]any{"tag": "meeting:m1"}, []string{"Overdue"}},
			{"status", map[string]any{"status": models.TaskCompleted}, []string{"Done"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(ctx, tt.criteria)
				if err != nil {
					t.Fatalf("failed to list tasks: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("expected %d tasks, got %d", len(tt.want), len(got))
				}
				for i, title := range tt.want {
					if got[i].Title != title {
						t.Errorf("expected %q, got %q", title, got[i].Title)
					}
				}
			})
		}
	})
}

func TestMeetingTaskRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*sql.DB, *models.Meeting, []*models.Task) {
		db := setupTestDB(t)
		user := seedUser(t, db, "test@example.com")
		meeting := &models.Meeting{UserID: user.ID, Title: "Planning"}
		if err := NewMeetingRepository(db).Create(ctx, meeting); err != nil {
			t.Fatalf("failed to create meeting: %v", err)
		}
		tasks := []*models.Task{{UserID: user.ID, Title: "A"}, {UserID: user.ID, Title: "B"}}
		if err := NewTaskRepository(db).CreateMany(ctx, tasks); err != nil {
			t.Fatalf("failed to create tasks: %v", err)
		}
		return db, meeting, tasks
	}

	t.Run("LinkManyReportsInsertedRows", func(t *testing.T) {
		db, meeting, tasks := setup(t)
		repo := NewMeetingTaskRepository(db)

		n, err := repo.LinkMany(ctx, meeting.ID, []string{tasks[0].ID, tasks[1].ID})
		if err != nil {
			t.Fatalf("failed to link tasks: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 inserted, got %d", n)
		}
	})

	t.Run("LinkManyReturnsZeroForExistingLinks", func(t *testing.T) {
		db, meeting, tasks := setup(t)
		repo := NewMeetingTaskRepository(db)
		ids := []string{tasks[0].ID, tasks[1].ID}

		if _, err := repo.LinkMany(ctx, meeting.ID, ids); err != nil {
			t.Fatalf("failed to link tasks: %v", err)
		}
		n, err := repo.LinkMany(ctx, meeting.ID, ids)
		if err != nil {
			t.Fatalf("failed to relink tasks: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 inserted, got %d", n)
		}

		count, _ := repo.Count(ctx, meeting.ID)
		if count != 2 {
			t.Errorf("expected 2 links, got %d", count)
		}
	})

	t.Run("LinkTreatsExistingAsLinked", func(t *testing.T) {
		db, meeting, tasks := setup(t)
		repo := NewMeetingTaskRepository(db)

		for range 2 {
			ok, err := repo.Link(ctx, meeting.ID, tasks[0].ID)
			if err != nil || !ok {
				t.Fatalf("expected link, got %v %v", ok, err)
			}
		}

		ids, err := repo.TaskIDs(ctx, meeting.ID)
		if err != nil {
			t.Fatalf("failed to get task ids: %v", err)
		}
		if len(ids) != 1 || ids[0] != tasks[0].ID {
			t.Errorf("unexpected links: %v", ids)
		}

		linked, err := NewTaskRepository(db).ListByMeeting(ctx, meeting.ID)
		if err != nil {
			t.Fatalf("failed to list meeting tasks: %v", err)
		}
		if len(linked) != 1 || linked[0].Title != "A" {
			t.Errorf("unexpected meeting tasks: %+v", linked)
		}
	})
}

func TestCalendarRepository(t *testing.T) {
	ctx := context.Background()

	newSync := func(t *testing.T, db *sql.DB) *models.CalendarSync {
		user := seedUser(t, db, "test@example.com")
		c := &models.CalendarSync{UserID: user.ID, Name: "Work", FeedURL: "https://example.com/work.ics", Enabled: true}
		if err := NewCalendarRepository(db).Create(ctx, c); err != nil {
			t.Fatalf("failed to create calendar sync: %v", err)
		}
		return c
	}

	t.Run("CreateRejectsDuplicateFeed", func(t *testing.T) {
		db := setupTestDB(t)
		c := newSync(t, db)

		dup := &models.CalendarSync{UserID: c.UserID, FeedURL: c.FeedURL}
		err := NewCalendarRepository(db).Create(ctx, dup)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ReplaceEvents", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCalendarRepository(db)
		c := newSync(t, db)
		start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
		syncedAt := start.Add(-time.Hour)

		first := []*models.SyncedEvent{{UID: "a", Title: "Standup", StartsAt: start}, {UID: "b", Title: "Retro", StartsAt: start.Add(2 * time.Hour)}}
		if err := repo.ReplaceEvents(ctx, c.ID, first, syncedAt); err != nil {
			t.Fatalf("failed to replace events: %v", err)
		}
		second := []*models.SyncedEvent{{UID: "c", Title: "Planning", StartsAt: start}}
		if err := repo.ReplaceEvents(ctx, c.ID, second, syncedAt); err != nil {
			t.Fatalf("failed to replace events: %v", err)
		}

		events, err := repo.Events(ctx, c.ID)
		if err != nil {
			t.Fatalf("failed to get events: %v", err)
		}
		if len(events) != 1 || events[0].UID != "c" {
			t.Errorf("expected only the second sync's events, got %+v", events)
		}

		retrieved, _ := repo.Get(ctx, c.ID)
		if retrieved.LastSyncedAt == nil || !retrieved.LastSyncedAt.Equal(syncedAt) {
			t.Errorf("expected last_synced_at %v, got %v", syncedAt, retrieved.LastSyncedAt)
		}
	})

	t.Run("EventsForUserSkipsDisabled", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCalendarRepository(db)
		c := newSync(t, db)
		start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

		if err := repo.ReplaceEvents(ctx, c.ID, []*models.SyncedEvent{{UID: "a", Title: "Standup", StartsAt: start}}, start); err != nil {
			t.Fatalf("failed to replace events: %v", err)
		}

		day := start.Truncate(24 * time.Hour)
		events, _ := repo.EventsForUser(ctx, c.UserID, day, day.Add(24*time.Hour))
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}

		c.Enabled = false
		if err := repo.Update(ctx, c); err != nil {
			t.Fatalf("failed to disable sync: %v", err)
		}
		events, _ = repo.EventsForUser(ctx, c.UserID, day, day.Add(24*time.Hour))
		if len(events) != 0 {
			t.Errorf("expected no events from disabled sync, got %d", len(events))
		}
	})

	t.Run("DeleteCascadesEvents", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCalendarRepository(db)
		c := newSync(t, db)

		if err := repo.ReplaceEvents(ctx, c.ID, []*models.SyncedEvent{{UID: "a", StartsAt: time.Now()}}, time.Now()); err != nil {
			t.Fatalf("failed to replace events: %v", err)
		}
		if err := repo.Delete(ctx, c.ID); err != nil {
			t.Fatalf("failed to delete sync: %v", err)
		}
		events, _ := repo.Events(ctx, c.ID)
		if len(events) != 0 {
			t.Errorf("expected events removed, got %d", len(events))
		}
	})
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	user := seedUser(t, db, "test@example.com")

	n := &models.Notification{UserID: user.ID, Channel: models.ChannelInApp, Title: "Good morning", Body: "2 tasks due today."}
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("failed to create notification: %v", err)
	}

	unread, err := repo.ListForUser(ctx, user.ID, true)
	if err != nil {
		t.Fatalf("failed to list notifications: %v", err)
	}
	if len(unread) != 1 || unread[0].Kind != "assistant" {
		t.Fatalf("unexpected notifications: %+v", unread)
	}

	if err := repo.MarkRead(ctx, n.ID, time.Now()); err != nil {
		t.Fatalf("failed to mark read: %v", err)
	}
	unread, _ = repo.ListForUser(ctx, user.ID, true)
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}
