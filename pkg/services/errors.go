package services

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrForbidden          = errors.New("caller does not own this resource")
	ErrSelfFollow         = errors.New("users cannot follow themselves")
	ErrNotFollowing       = errors.New("not following this user")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ValidationError carries one message per invalid field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func validation(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
