package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/domain"
	"github.com/phrazzld/tasksync-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	// Bad request errors; ErrNoFields wraps ErrValidation
	case errors.Is(err, shared.ErrInvalidJSON),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// Duplicate ids, connection and store failures all surface as 500.
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Store and driver text never reaches the client.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	var storeErr *store.StoreError

	switch {
	case errors.Is(err, shared.ErrInvalidJSON):
		return "Invalid request format"

	case errors.Is(err, store.ErrNoFields):
		return "no fields to update"

	case errors.As(err, &validationErr):
		return validationErr.Error()

	case errors.Is(err, store.ErrTaskNotFound):
		return "task not found"

	case errors.Is(err, store.ErrTaskExists):
		return "Failed to save task: task id already exists"

	case errors.Is(err, store.ErrConnection):
		return "Failed to connect to database"

	case errors.As(err, &storeErr):
		return operationFailure(storeErr.Operation) + ": " + storeFailureReason(storeErr)

	default:
		return "An unexpected error occurred"
	}
}

func operationFailure(op string) string {
	switch op {
	case "create":
		return "Failed to save task"
	case "update":
		return "Failed to update task"
	case "list":
		return "Failed to load tasks"
	default:
		return "Database error"
	}
}

// storeFailureReason names the class of a store failure. StoreError.Message
// is written for logs and is not repeated to the client.
func storeFailureReason(err *store.StoreError) string {
	switch {
	case errors.Is(err, store.ErrInvalidEntity):
		return "invalid task data"
	case errors.Is(err, store.ErrTransactionFailed):
		return "transaction failed"
	default:
		return "database error"
	}
}

// respondWithMappedError writes the status and message derived from err.
func respondWithMappedError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
