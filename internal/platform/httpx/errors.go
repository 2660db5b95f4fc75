package httpx

import (
	"errors"
	"net/http"

	"github.com/recipe-app/recipe-api/internal/shared"
)

const invalidCredentialsMessage = "Unable to authenticate with provided credentials."

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	if verr, ok := shared.AsValidationError(err); ok {
		ValidationProblem(w, verr)
		return
	}
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		ValidationProblem(w, shared.NewValidationError(shared.NonFieldErrors, invalidCredentialsMessage))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "No resource matches the given query.")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusBadRequest, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Unauthorized(w, err.Error())
	case errors.Is(err, shared.ErrStorageUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "Image storage is not configured.")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Unauthorized writes a 401 challenge for token authentication.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Token")
	Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// IsServerError reports whether err is unexpected and maps to a 500 response.
func IsServerError(err error) bool {
	if _, ok := shared.AsValidationError(err); ok {
		return false
	}
	for _, known := range []error{
		shared.ErrInvalidCredentials,
		shared.ErrNotFound,
		shared.ErrDuplicate,
		shared.ErrUnauthorized,
		shared.ErrStorageUnavailable,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
