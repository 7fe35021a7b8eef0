// Package services wraps the external APIs the minutes server and recorder depend on.
//
// # Interfaces
//
// Each provider sits behind a small interface so the task pipeline and the recorder can be
// tested with doubles:
//   - [ObjectStore]: chunk and recording storage ([StorageService])
//   - [Transcriber]: speech to text ([AssemblyAIService])
//   - [LLM]: task extraction and title generation ([LLMService])
//   - [Mailer]: email digests ([ResendService])
//   - [Pusher]: push notifications ([PushService])
//
// [APIService] is the client for the minutes server itself, used by the recorder and the CLI.
// [CalendarService] downloads iCalendar feeds and parses their events.
//
// # Authentication
//
// Bearer-token APIs use an [oauth2.StaticTokenSource] client (see [NewBearerClient]).
// AssemblyAI takes its key in the authorization header without a scheme.
//
// # Error Handling
//
// Non-2xx responses become an [APIError], which unwraps to a shared sentinel:
//   - [shared.ErrPayloadTooLarge] : 413, checked by the upload fallback via [IsPayloadTooLarge]
//   - [shared.ErrUnauthorized] : 401 or 403
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 502, 503 or 504
//   - [shared.ErrAPIRequest] : anything else
//
// An [LLMService] built without credentials is not an error; it reports Available() == false
// and every completion fails with [shared.ErrLLMUnavailable].
package services
