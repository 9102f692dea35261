package errors

import "fmt"

// Validation failures. All are detected before any mutation.
var (
	ErrEmptyContent       = fmt.Errorf("message content is required")
	ErrContentTooLong     = fmt.Errorf("message content cannot exceed 1000 characters")
	ErrInvalidMessageType = fmt.Errorf("invalid message type")
	ErrSameParticipant    = fmt.Errorf("sender and receiver must be distinct")
	ErrUnexpectedFile     = fmt.Errorf("text messages cannot carry attachment metadata")
	ErrInvalidPaging      = fmt.Errorf("page and page size must be positive")
	ErrEmptyQuery         = fmt.Errorf("search query is required")
	ErrEmptyWords         = fmt.Errorf("no censored words have been found")
)

var (
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrMessageNotFound = fmt.Errorf("message not found")
)

var ErrNotMessageSender = fmt.Errorf("only the sender may delete a message")
