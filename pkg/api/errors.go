package api

import (
	"errors"
	"net/http"

	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

// HTTPError is the JSON error body. Status and the wrapped internal error are
// never serialized.
type HTTPError struct {
	IError  error    `json:"-"`
	Status  int      `json:"-"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func badRequest(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: msg}
}

func unauthorized(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Message: msg}
}

func internal(err error) *HTTPError {
	return &HTTPError{
		IError:  err,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
	}
}

// fromService maps service-layer failures onto the wire taxonomy. Anything
// unrecognized is reported as a generic 500 with a fixed message.
func fromService(err error) *HTTPError {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return &HTTPError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Errors:  ve.Fields,
		}
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		return &HTTPError{Status: http.StatusNotFound, Message: "record not found"}
	case errors.Is(err, services.ErrForbidden):
		return &HTTPError{Status: http.StatusForbidden, Message: "you do not own this resource"}
	case errors.Is(err, services.ErrSelfFollow):
		return badRequest("you cannot follow yourself")
	case errors.Is(err, services.ErrNotFollowing):
		return badRequest("you are not following this user")
	case errors.Is(err, services.ErrUsernameTaken):
		return &HTTPError{Status: http.StatusConflict, Message: "username already taken"}
	case errors.Is(err, services.ErrEmailTaken):
		return &HTTPError{Status: http.StatusConflict, Message: "email already taken"}
	case errors.Is(err, services.ErrInvalidCredentials):
		return unauthorized("invalid username or password")
	case errors.Is(err, services.ErrInvalidToken):
		return unauthorized("invalid or expired token")
	}
	return internal(err)
}
