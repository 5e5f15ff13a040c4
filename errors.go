package circlepress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrGenerationFailed = errors.New("generation failed")
	ErrDeliveryFailed   = errors.New("delivery failed")

	// ErrEmptyInput is returned when a transcript is blank.
	ErrEmptyInput = fmt.Errorf("%w: transcript is required", ErrValidation)
)

// invalidf builds a validation error whose message is safe to return to callers.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the response code the API reports for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the message shown to API clients. Server-side
// failures get a generic message; the detail is only logged.
func publicMessage(err error) string {
	code := HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		switch {
		case errors.Is(err, ErrGenerationFailed):
			return "Failed to generate draft"
		case errors.Is(err, ErrDeliveryFailed):
			return "Failed to send digest"
		default:
			return "Internal server error"
		}
	}
	msg := err.Error()
	for _, marker := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized} {
		if errors.Is(err, marker) {
			msg = strings.TrimPrefix(msg, marker.Error()+": ")
			break
		}
	}
	return msg
}
