// Package tasks runs the server-side recording pipeline and the background jobs.
//
// # Transcription
//
// [TranscriptionJob] submits a signed recording URL to the [services.Transcriber], marks the session
// processing, and polls with a [Poller] (5s interval, 60 attempts). A completed transcript is stored on
// the session and handed to the [Processor]. Status writes only move forward; see
// [models.TranscriptionStatus.CanTransition].
//
// # Extraction
//
// The model's reply is kept as an [ExtractionResult] tagged Ok, Malformed or Unavailable.
// [Normalize] is a pure function that always yields at least one task, a summary and a confidence.
//
// [Processor.Process] then:
//
//  1. loads the session, refusing processed sessions and sessions without a transcript
//  2. resolves the project (request, session column, session metadata)
//  3. finds or creates the meeting and gives it a generated title when it still has the placeholder
//  4. inserts the tasks tagged meeting:<id> and links them to the meeting
//  5. marks the session processed and records an insight row
//
// Title generation ([GenerateTitle]) never fails the run; the placeholder is kept instead.
//
// # Notifications
//
// [NotifyJob] sends daily briefings from a rate-limited worker pool. Users are gated on their local
// notify hour and notified at most once per local day. Failures are collected per user.
//
// # Progress Reporting
//
// Finalization reports [ProgressUpdate] values over a channel; [SendProgress] never blocks.
package tasks
