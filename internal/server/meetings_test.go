package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/services"
)

func TestDeleteMeeting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	user := env.seedUser(t)
	project := env.seedProject(t, user.ID)
	session := env.seedSession(t, user.ID, &project.ID, roadmapTranscript)

	rec := env.do(t, http.MethodPost, "/api/process-recording", services.ProcessRecordingRequest{SessionID: session.ID})
	assertStatus(t, rec, http.StatusOK)
	processed := decode[services.ProcessRecordingResponse](t, rec)

	manual := &models.Task{UserID: user.ID, Title: "Book the venue", Status: models.TaskTodo, Priority: models.PriorityMedium}
	if err := repositories.NewTaskRepository(env.db).Create(ctx, manual); err != nil {
		t.Fatalf("failed to create manual task: %v", err)
	}

	rec = env.do(t, http.MethodDelete, "/api/meetings/"+processed.Meeting.ID, nil)
	assertStatus(t, rec, http.StatusOK)
	deleted := decode[repositories.MeetingDeletion](t, rec)
	if deleted.TasksDeleted != int64(processed.TasksCreated) || deleted.LinksDeleted != int64(processed.TasksCreated) {
		t.Errorf("expected %d tasks and links deleted, got %+v", processed.TasksCreated, deleted)
	}

	remaining, _ := repositories.NewTaskRepository(env.db).List(ctx, map[string]any{"user_id": user.ID})
	if len(remaining) != 1 || remaining[0].ID != manual.ID {
		t.Errorf("expected only the manual task to remain, got %d", len(remaining))
	}

	stored, err := repositories.NewSessionRepository(env.db).Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("expected session to be kept, got %v", err)
	}
	if stored.MeetingID() != "" {
		t.Errorf("expected meeting reference cleared, got %q", stored.MeetingID())
	}

	insights, _ := repositories.NewInsightRepository(env.db).ListByMeeting(ctx, processed.Meeting.ID)
	if len(insights) != 0 {
		t.Errorf("expected insights removed, got %d", len(insights))
	}

	rec = env.do(t, http.MethodDelete, "/api/meetings/"+processed.Meeting.ID, nil)
	assertStatus(t, rec, http.StatusNotFound)
}

func TestCronNotify(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t)

	rec := env.do(t, http.MethodPost, "/api/cron/notify", nil)
	assertStatus(t, rec, http.StatusOK)

	got := decode[struct {
		Success    bool `json:"success"`
		Considered int  `json:"considered"`
	}](t, rec)
	if !got.Success || got.Considered != 1 {
		t.Errorf("unexpected result %+v", got)
	}

	t.Run("Not Configured", func(t *testing.T) {
		bare := newTestEnv(t, func(d *Deps) { d.Notify = nil })
		assertStatus(t, bare.do(t, http.MethodPost, "/api/cron/notify", nil), http.StatusServiceUnavailable)
	})
}
