package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/satd/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a service error to a status code and a single
// human-readable message. Unexpected errors are logged with op.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		ie *apperr.IngestionError
		ae *apperr.AnalysisError
		se *apperr.SerializationError
		pe *apperr.PackagingError
	)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrStaleGeneration):
		writeJSON(w, http.StatusConflict, errorBody("the project tree was replaced while the request was running"))
	case errors.Is(err, apperr.ErrNothingToExport):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("nothing to export: add files or an overview first"))
	case errors.As(err, &ie):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(ie.Error()))
	case errors.As(err, &ae):
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, apperr.ErrAnalyzerUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, apperr.ErrNoContent):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorBody(ae.Message))
	case errors.As(err, &se), errors.As(err, &pe):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
