package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateEmail     = errors.New("lawyer already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrClientExists       = errors.New("client already exists")
	ErrNotificationFailed = errors.New("failed to send invitation email")
	ErrNotFound           = errors.New("not found")
	ErrSearchUnavailable  = errors.New("client search is not configured")
)

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
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

// NotificationError reports an invitation whose rows were committed but whose
// email was not delivered. ClientID identifies the row to resend for.
type NotificationError struct {
	ClientID uint
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s for client %d: %v", ErrNotificationFailed, e.ClientID, e.Err)
}

func (e *NotificationError) Is(target error) bool {
	return target == ErrNotificationFailed
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
