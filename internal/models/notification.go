package models

import (
	"time"
)

// NotificationChannel is a delivery route for assistant messages.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelInApp NotificationChannel = "in_app"
)

// Notification is a delivered (or in-app) assistant message.
type Notification struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Channel   NotificationChannel `json:"channel"`
	Kind      string              `json:"kind"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	ReadAt    *time.Time          `json:"read_at"`
	CreatedAt time.Time           `json:"created_at"`
}

// AIInsight records what the extraction pipeline concluded about a meeting.
type AIInsight struct {
	ID         string    `json:"id"`
	MeetingID  string    `json:"meeting_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Confidence float64   `json:"confidence"`
	Payload    Metadata  `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}
