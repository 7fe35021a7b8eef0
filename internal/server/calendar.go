package server

import (
	"net/http"

	"github.com/desertthunder/minutes/internal/models"
)

type calendarResponse struct {
	Success   bool                 `json:"success"`
	Calendar  *models.CalendarSync `json:"calendar,omitempty"`
	Events    int                  `json:"events"`
	SyncError string               `json:"syncError,omitempty"`
}

func (s *Server) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calendar == nil {
		fail(w, "failed to add calendar", unavailable("calendar sync"))
		return
	}

	var req struct {
		UserID   string `json:"userId"`
		Provider string `json:"provider"`
		FeedURL  string `json:"feedUrl"`
		Color    string `json:"color"`
		Name     string `json:"name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}

	c, n, err := s.deps.Calendar.Subscribe(r.Context(), &models.CalendarSync{
		UserID:   req.UserID,
		Provider: req.Provider,
		FeedURL:  req.FeedURL,
		Color:    req.Color,
		Name:     req.Name,
	})
	if c == nil {
		fail(w, "failed to add calendar", err)
		return
	}

	resp := calendarResponse{Success: true, Calendar: c, Events: n}
	if err != nil {
		resp.SyncError = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateCalendar(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calendar == nil {
		fail(w, "failed to update calendar", unavailable("calendar sync"))
		return
	}

	var req struct {
		ID      string `json:"id"`
		Enabled *bool  `json:"enabled"`
		Refresh bool   `json:"refresh"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, "invalid request", err)
		return
	}
	if err := require("id", req.ID); err != nil {
		fail(w, "invalid request", err)
		return
	}

	ctx := r.Context()
	resp := calendarResponse{Success: true}
	if req.Enabled != nil {
		c, err := s.deps.Calendar.SetEnabled(ctx, req.ID, *req.Enabled)
		if err != nil {
			fail(w, "failed to update calendar", err)
			return
		}
		resp.Calendar = c
	}
	if req.Refresh {
		n, err := s.deps.Calendar.Refresh(ctx, req.ID)
		if err != nil {
			fail(w, "failed to refresh calendar", err)
			return
		}
		resp.Events = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calendar == nil {
		fail(w, "failed to remove calendar", unavailable("calendar sync"))
		return
	}

	id := r.URL.Query().Get("id")
	if err := require("id", id); err != nil {
		fail(w, "invalid request", err)
		return
	}
	if err := s.deps.Calendar.Remove(r.Context(), id); err != nil {
		fail(w, "failed to remove calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
