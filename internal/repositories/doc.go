// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository implements [models.Repository] for one entity and takes a context on every call.
// Rows are deleted outright; meetings cascade through [MeetingRepository.DeleteCascade].
//
// Key Implementations:
//   - [UserRepository] : accounts and notification preferences
//   - [ProjectRepository] : project grouping for meetings and tasks
//   - [SessionRepository] : recording sessions with forward-only transcription status
//   - [MeetingRepository] : recorded and manual meetings, one per recording session
//   - [TaskRepository] : user and AI-generated tasks with tag lookups
//   - [MeetingTaskRepository] : meeting to task links with a bulk insert that reports written rows
//   - [CalendarRepository] : feed subscriptions and their synced events
//   - [NotificationRepository], [InsightRepository] : assistant messages and extraction insights
//
// Sequence numbers provide stable, human-readable ordering (e.g., meeting #42, task #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
