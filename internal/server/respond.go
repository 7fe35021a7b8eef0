package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
)

const maxJSONBody = 1 << 20

// classify maps an error to its status code and errorType.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrNoTranscript):
		return http.StatusBadRequest, "no_transcript"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrSessionNotFound), errors.Is(err, shared.ErrMeetingNotFound),
		errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrLLMUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, shared.ErrSignedURL), errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, shared.ErrTranscriptionFailed), errors.Is(err, shared.ErrTranscriptionTimeout):
		return http.StatusBadGateway, "transcription_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, summary string, err error) {
	_, errorType := classify(err)
	writeJSON(w, status, services.ErrorResponse{
		Error:     summary,
		Details:   err.Error(),
		Message:   http.StatusText(status),
		ErrorType: errorType,
	})
}

// fail writes err with the status its sentinel maps to.
func fail(w http.ResponseWriter, summary string, err error) {
	status, _ := classify(err)
	writeError(w, status, summary, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: body exceeds %d bytes", shared.ErrPayloadTooLarge, tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is required", shared.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func require(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, field)
	}
	return nil
}

func unavailable(what string) error {
	return fmt.Errorf("%w: %s is not configured", shared.ErrMissingCredentials, what)
}
