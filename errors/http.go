package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps a domain error to the status code surfaced to callers.
// Anything unmapped is treated as an infrastructure failure: the caller
// gets a generic 500 and the detail stays in the server logs.
func HTTPStatus(err error) int {
	switch {
	case isValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotMessageSender):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyContent,
		ErrContentTooLong,
		ErrInvalidMessageType,
		ErrSameParticipant,
		ErrUnexpectedFile,
		ErrInvalidPaging,
		ErrEmptyQuery,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
