package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/tasks"
)

const teamICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20250314T150000Z\r\n" +
	"DTEND:20250314T151500Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCalendarSync(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/team.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		io.WriteString(w, teamICS)
	}))
	defer feed.Close()

	env := newTestEnv(t, func(d *Deps) {
		d.Calendar = tasks.NewCalendarSyncer(d.DB, services.NewCalendarService(feed.Client(), nil), log.New(io.Discard))
	})
	user := env.seedUser(t)

	rec := env.do(t, http.MethodPost, "/api/calendar-sync", map[string]string{
		"userId": user.ID, "feedUrl": feed.URL + "/team.ics", "name": "Team",
	})
	assertStatus(t, rec, http.StatusCreated)
	created := decode[calendarResponse](t, rec)
	if created.Calendar == nil || created.Events != 1 || created.SyncError != "" {
		t.Fatalf("unexpected response %+v", created)
	}
	id := created.Calendar.ID

	t.Run("Duplicate Feed", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/calendar-sync", map[string]string{
			"userId": user.ID, "feedUrl": feed.URL + "/team.ics",
		})
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("Broken Feed Is Kept With Error", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/calendar-sync", map[string]string{
			"userId": user.ID, "feedUrl": feed.URL + "/missing.ics",
		})
		assertStatus(t, rec, http.StatusCreated)
		got := decode[calendarResponse](t, rec)
		if got.SyncError == "" || got.Calendar == nil || got.Calendar.LastError == "" {
			t.Errorf("expected sync error recorded, got %+v", got)
		}
	})

	t.Run("Toggle And Refresh", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/calendar-sync", map[string]any{"id": id, "enabled": false, "refresh": true})
		assertStatus(t, rec, http.StatusOK)
		got := decode[calendarResponse](t, rec)
		if got.Calendar == nil || got.Calendar.Enabled || got.Events != 1 {
			t.Errorf("unexpected response %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		assertStatus(t, env.do(t, http.MethodDelete, "/api/calendar-sync?id="+id, nil), http.StatusOK)
		assertStatus(t, env.do(t, http.MethodDelete, "/api/calendar-sync?id="+id, nil), http.StatusNotFound)
		assertStatus(t, env.do(t, http.MethodDelete, "/api/calendar-sync", nil), http.StatusBadRequest)
	})
}
