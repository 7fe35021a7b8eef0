package models

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

// User owns projects, recordings and notification preferences.
type User struct {
	ID             string     `json:"id"`
	Sequence       int        `json:"-"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Timezone       string     `json:"timezone"`
	NotifyEmail    bool       `json:"notify_email"`
	NotifyPush     bool       `json:"notify_push"`
	NotifyInApp    bool       `json:"notify_in_app"`
	NotifyHour     int        `json:"notify_hour"`
	LastNotifiedAt *time.Time `json:"last_notified_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewUser returns a user with default notification preferences.
func NewUser(email, name string) *User {
	now := time.Now().UTC()
	return &User{
		Email:       email,
		Name:        name,
		Timezone:    "UTC",
		NotifyEmail: true,
		NotifyInApp: true,
		NotifyHour:  8,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate implements [Model].
func (u *User) Validate() error {
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, u.Email)
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", shared.ErrInvalidInput, u.Timezone)
	}
	if u.NotifyHour < 0 || u.NotifyHour > 23 {
		return fmt.Errorf("%w: notify hour must be 0-23", shared.ErrInvalidInput)
	}
	return nil
}

// Location returns the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	if loc, err := time.LoadLocation(u.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// WantsNotifications reports whether any delivery channel is enabled.
func (u *User) WantsNotifications() bool {
	return u.NotifyEmail || u.NotifyPush || u.NotifyInApp
}

// Project groups tasks and meetings.
type Project struct {
	ID          string    `json:"id"`
	Sequence    int       `json:"-"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate implements [Model].
func (p *Project) Validate() error {
	if p.UserID == "" || p.Name == "" {
		return fmt.Errorf("%w: project user and name are required", shared.ErrInvalidInput)
	}
	return nil
}
