package server

import (
	"net/http"

	"github.com/desertthunder/minutes/internal/repositories"
	"github.com/desertthunder/minutes/internal/tasks"
)

// handleDeleteMeeting removes a meeting with its links, generated tasks and insights.
// The recording session is kept and only loses its meeting reference.
func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.meetings.DeleteCascade(r.Context(), id)
	if err != nil {
		fail(w, "failed to delete meeting", err)
		return
	}
	s.logger.Info("meeting deleted", "meeting", id, "tasks", deleted.TasksDeleted, "links", deleted.LinksDeleted)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*repositories.MeetingDeletion
	}{true, deleted})
}

// handleCronNotify runs one notification batch.
func (s *Server) handleCronNotify(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notify == nil {
		fail(w, "failed to run notifications", unavailable("notifications"))
		return
	}
	result, err := s.deps.Notify.Run(r.Context(), s.now())
	if err != nil {
		fail(w, "failed to run notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*tasks.NotifyRunResult
	}{true, result})
}
