package model

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Error codes
const (
	ErrCodeStoryNotFound   = "STY001"
	ErrCodeValidation      = "STY002"
	ErrCodeNotWriter       = "STY003"
	ErrCodeUnavailable     = "STY004"
	ErrCodeInactive        = "STY005"
	ErrCodeNotYourTurn     = "STY006"
	ErrCodeCannotEdit      = "STY007"
	ErrCodeUnknownWriters  = "STY008"
	ErrCodeNotification    = "STY009"
	ErrCodeSnippetNotFound = "STY010"
)

// Error kinds. Every StoryError unwraps to exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrPermission   = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrNotification = errors.New("notification failed")
)

// Repository errors
var (
	ErrStoryNotFound   = fmt.Errorf("story %w", ErrNotFound)
	ErrWriterNotFound  = fmt.Errorf("story writer %w", ErrNotFound)
	ErrSnippetNotFound = fmt.Errorf("snippet %w", ErrNotFound)
)

// StoryNotFoundMessage is shown for missing and for private stories alike
const StoryNotFoundMessage = "This story doesn't exist!"

// StoryError is the error type returned by the story services
type StoryError struct {
	Code    string
	Message string
	Err     error
	Details map[string]string
}

func (e *StoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StoryError) Unwrap() error {
	return e.Err
}

// Error constructors

// NewStoryNotFoundError hides whether the story is missing or private
func NewStoryNotFoundError() *StoryError {
	return &StoryError{
		Code:    ErrCodeStoryNotFound,
		Message: StoryNotFoundMessage,
		Err:     ErrNotFound,
	}
}

func NewSnippetNotFoundError() *StoryError {
	return &StoryError{
		Code:    ErrCodeSnippetNotFound,
		Message: "Snippet not found",
		Err:     ErrNotFound,
	}
}

// NewValidationError turns ozzo validation errors into field messages
func NewValidationError(err error) *StoryError {
	details := map[string]string{}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, fe := range fieldErrs {
			details[field] = fe.Error()
		}
	} else if err != nil {
		details["_"] = err.Error()
	}

	return &StoryError{
		Code:    ErrCodeValidation,
		Message: "There were some problems with the data introduced.",
		Err:     ErrValidation,
		Details: details,
	}
}

func NewUnknownWritersError(ids []string) *StoryError {
	details := make(map[string]string, len(ids))
	for _, id := range ids {
		details[id] = "unknown writer"
	}
	return &StoryError{
		Code:    ErrCodeUnknownWriters,
		Message: "Some of the selected writers do not exist.",
		Err:     ErrValidation,
		Details: details,
	}
}

// NewTurnDeniedError maps a turn denial to the message shown to the writer
func NewTurnDeniedError(reason DenialReason) *StoryError {
	e := &StoryError{Err: ErrPermission, Details: map[string]string{"reason": string(reason)}}
	switch reason {
	case ReasonNotWriter:
		e.Code = ErrCodeNotWriter
		e.Message = "You are not one of the writers of this story."
	case ReasonUnavailable:
		e.Code = ErrCodeUnavailable
		e.Message = "This story is unavailable. Our game cannot be played on here yet!"
	case ReasonInactive:
		e.Code = ErrCodeInactive
		e.Message = "If you want to play here, visit your personal stories and set it as active."
	case ReasonSameAuthorTwice:
		e.Code = ErrCodeNotYourTurn
		e.Message = "Thank you for adding your snippet! Wait for one of the other writers to add theirs."
	default:
		e.Code = ErrCodeNotWriter
		e.Message = "You cannot write in this story."
	}
	return e
}

func NewNotWriterError() *StoryError {
	return NewTurnDeniedError(ReasonNotWriter)
}

func NewCannotEditError(message string) *StoryError {
	return &StoryError{
		Code:    ErrCodeCannotEdit,
		Message: message,
		Err:     ErrPermission,
	}
}

// NewNotificationError wraps a delivery failure. It is logged, never returned to clients.
func NewNotificationError(to string, cause error) *StoryError {
	return &StoryError{
		Code:    ErrCodeNotification,
		Message: fmt.Sprintf("could not notify %s", to),
		Err:     fmt.Errorf("%w: %w", ErrNotification, cause),
	}
}
