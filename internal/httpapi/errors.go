package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"slotd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// categorized errors carry the machine-readable "type" of the error body.
type categorized interface {
	Category() string
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, category, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Type: category})
}

// statusOf maps err to a status code and category. Unknown errors are 500.
func statusOf(err error) (int, string) {
	status, category := http.StatusInternalServerError, "internal_error"
	var he HTTPError
	if errors.As(err, &he) {
		status = he.StatusCode()
	}
	var c categorized
	if errors.As(err, &c) {
		category = c.Category()
	}
	return status, category
}
