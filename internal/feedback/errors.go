package feedback

import (
	"context"
	"errors"
	"net/http"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
)

var (
	ErrRatingRequired  = errors.New("rating required")
	ErrCommentRequired = errors.New("comment required")
	ErrInvalidRating   = errors.New("rating must be between 0 and 5")
	ErrInvalidType     = errors.New("unknown feedback type")
	ErrSubmitInFlight  = errors.New("a submission is already in progress")
	ErrNotEditing      = errors.New("dialog is not accepting input")
	ErrNothingToEdit   = errors.New("no submitted feedback to edit")
	ErrEditDisabled    = errors.New("editing after submit is disabled")
)

// User-facing messages shown inline in the dialog.
const (
	MsgRatingRequired  = "Please select a rating before submitting."
	MsgCommentRequired = "Please tell us a little more in the comment box."
	MsgNetwork         = "Could not reach the feedback service. Please try again."
	MsgValidation      = "Validation failed."
	MsgNotFound        = "The feedback service was not found (404). Check the API base URL and prefix configuration."
	MsgGeneric         = "Failed to submit feedback. Please try again."
)

// UserMessage maps a submission error to the text shown in the dialog.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRatingRequired):
		return MsgRatingRequired
	case errors.Is(err, ErrCommentRequired):
		return MsgCommentRequired
	case errors.Is(err, apiclient.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return MsgNetwork
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsValidation():
			return validationMessage(apiErr)
		case apiErr.Status == http.StatusNotFound:
			return MsgNotFound
		case apiErr.Message != "":
			return apiErr.Message
		default:
			return MsgGeneric
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgGeneric
}

// validationMessage prefers the first field-level message, in the order the
// error body lists them.
func validationMessage(e *apiclient.Error) string {
	for _, fe := range e.FieldList() {
		if fe.Message != "" {
			return fe.Message
		}
	}
	if e.Message != "" && e.Message != e.Code {
		return e.Message
	}
	return MsgValidation
}
