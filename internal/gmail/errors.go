package gmail

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

var (
	// ErrPartNotFound is returned when no message part carries the requested filename.
	ErrPartNotFound = errors.New("message part not found")

	// ErrAttachmentTooLarge is returned for attachments above MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("attachment exceeds maximum size")
)

// APIError is a non-success response from the Gmail API.
type APIError struct {
	Operation string
	Code      int
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail %s failed (%d): %s", e.Operation, e.Code, e.Message)
}

// asAPIError converts googleapi errors to *APIError and wraps everything else.
func asAPIError(op string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" && len(gErr.Errors) > 0 {
			msg = gErr.Errors[0].Message
		}
		if msg == "" {
			msg = gErr.Body
		}
		return &APIError{Operation: op, Code: gErr.Code, Message: msg}
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}
