package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrConflict           = errors.New("conflict")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAccountDisabled    = errors.New("account disabled")

	ErrAlreadyClaimedBySelf  = errors.New("child already linked to this parent")
	ErrAlreadyClaimedByOther = errors.New("child already linked to another parent")
	ErrInvalidToken          = errors.New("invalid pairing token")
)

// ValidationError reports user-correctable input problems keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// Err returns nil when no field was rejected.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// FieldError builds a single-field ValidationError.
func FieldError(field, msg string) error {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}
