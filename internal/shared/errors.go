package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrUnauthorized       = fmt.Errorf("unauthorized")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPayloadTooLarge    = fmt.Errorf("payload too large")
	ErrSignedURL          = fmt.Errorf("failed to create signed URL")
	ErrLLMUnavailable     = fmt.Errorf("language model unavailable")

	// Recording errors
	ErrMissingProject = fmt.Errorf("a project must be selected before recording")
	ErrInvalidState   = fmt.Errorf("invalid recorder state")
	ErrNoChunks       = fmt.Errorf("no recorded chunks")

	// Pipeline errors
	ErrSessionNotFound      = fmt.Errorf("recording session not found")
	ErrMeetingNotFound      = fmt.Errorf("meeting not found")
	ErrNotFound             = fmt.Errorf("not found")
	ErrNoTranscript         = fmt.Errorf("no transcript available")
	ErrAlreadyProcessed     = fmt.Errorf("recording already processed")
	ErrInvalidTransition    = fmt.Errorf("invalid status transition")
	ErrTranscriptionFailed  = fmt.Errorf("transcription failed")
	ErrTranscriptionTimeout = fmt.Errorf("transcription timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
