// Package server exposes the minutes HTTP API.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] method patterns ("POST /api/recordings"). Router-wide [Middleware]
// wraps handlers in reverse order (last added executes first); per-route middleware runs inside it.
//
// # Authentication
//
// Routes under /api are guarded by [RequireBearer] with the configured api_key. Meeting deletion takes the
// admin_key instead and /api/cron/* takes the cron_secret. An empty secret leaves its routes open.
//
// # Routes
//
//	POST   /api/recordings          register a recording and its placeholder meeting
//	POST   /api/upload              size-limited upload proxy to object storage
//	POST   /api/process-recording   run task extraction for a transcribed session
//	GET    /api/process-recording   transcription and processing status
//	POST   /api/transcribe          submit audio; with a session, poll and process in the background
//	GET    /api/transcribe          transcript status
//	POST   /api/generate-tasks      extraction without persistence
//	POST   /api/calendar-sync       subscribe to an iCalendar feed
//	PATCH  /api/calendar-sync       toggle or refresh a subscription
//	DELETE /api/calendar-sync       remove a subscription
//	DELETE /api/meetings/{id}       cascading meeting delete
//	POST   /api/cron/notify         run the notification batch
//	GET    /healthz                 database ping
//
// Errors are JSON bodies of the form {error, details, message, errorType}; the status code and errorType
// come from the wrapped sentinel in internal/shared.
package server
