package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/shoplist/internal/store"
	"github.com/erazemk/shoplist/internal/validate"
)

const (
	msgInvalidBody    = "Invalid request body"
	msgValidation     = "Validation failed"
	msgInternalError  = "Internal Server Error"
	msgItemNotFound   = "Item not found"
	msgListNotFound   = "Shopping list not found"
	msgItemDeleted    = "Item deleted and removed from all shopping lists"
	msgListDeleted    = "Shopping list deleted"
	maxRequestBodyLen = 1 << 20
)

type messageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a {"message": ...} response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, messageResponse{Message: message})
}

// writeError maps a handler error to a response. Validation failures become
// 400 with every message, store.ErrNotFound becomes 404 with notFound, and
// anything else is logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		jsonResponse(w, http.StatusBadRequest, messageResponse{Message: msgValidation, Errors: verrs})
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, notFound)
	default:
		serverError(w, r, err)
	}
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed",
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"error", err,
		"request_id", RequestID(r.Context()),
	)
	jsonError(w, http.StatusInternalServerError, msgInternalError)
}

// decodeJSON decodes a JSON request body into the given target. An empty body
// leaves target untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyLen)).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
