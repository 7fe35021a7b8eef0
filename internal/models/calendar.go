package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// CalendarSync is a subscription to an external iCalendar feed.
type CalendarSync struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Provider     string     `json:"provider"`
	Name         string     `json:"name"`
	FeedURL      string     `json:"feed_url"`
	Color        string     `json:"color"`
	Enabled      bool       `json:"enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate implements [Model].
func (c *CalendarSync) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: calendar user is required", shared.ErrInvalidInput)
	}
	u, err := url.Parse(c.FeedURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: invalid feed url %q", shared.ErrInvalidInput, c.FeedURL)
	}
	switch u.Scheme {
	case "http", "https", "webcal":
	default:
		return fmt.Errorf("%w: unsupported feed scheme %q", shared.ErrInvalidInput, u.Scheme)
	}
	return nil
}

// SyncedEvent is one VEVENT materialized from a feed.
type SyncedEvent struct {
	ID             string     `json:"id"`
	CalendarSyncID string     `json:"calendar_sync_id"`
	UID            string     `json:"uid"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	AllDay         bool       `json:"all_day"`
}
