package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAssessmentNotFound is returned when no live assessment has the requested id.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrExamineeNotFound is returned when no examinee has the requested id.
	ErrExamineeNotFound = errors.New("examinee not found")
	// ErrDraftNotFound indicates the builder draft expired or never existed.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrQuestionNotFound indicates a question id is not part of the draft.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSlugTaken is returned when a unique slug cannot be allocated.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrUnknownAction is returned when an action envelope names no known action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidPayload is returned when an action payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid action payload")
	// ErrSubmissionInFlight is returned when a draft is submitted while a submission is pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// ValidationError carries at most one message per field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
