// Package models defines domain entities and persistence interfaces for the meeting recording service.
//
// Persistent entities map one-to-one onto SQLite tables:
//   - [User] : account with timezone and notification preferences
//   - [Project] : grouping for meetings and tasks
//   - [RecordingSession] : one captured recording and its transcript lifecycle
//   - [Meeting] : recorded or manually scheduled meeting with summary and [ActionItems]
//   - [Task] and [MeetingTask] : work items and their meeting links
//   - [CalendarSync] and [SyncedEvent] : external calendar feeds
//   - [Notification] and [AIInsight] : assistant output
//
// [TranscriptionStatus] is an explicit state type; [TranscriptionStatus.Transition] rejects any move that would regress.
//
// JSON columns are handled by [Metadata], [Tags] and [ActionItems], which implement [sql.Scanner] and [driver.Valuer].
// The [Repository] interface defines standard CRUD operations for database access.
package models
