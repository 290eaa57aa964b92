package service

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed            = errors.New("failed to load report data")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
)

// ValidationError rejects a request before it reaches the repository.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
