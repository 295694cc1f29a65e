package httputil

import (
	"log/slog"
	"net/http"

	"github.com/pkalnins/arena/internal/apperrors"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	http.Error(w, msg, http.StatusNotFound)
}

// WriteError maps an engine error onto its HTTP status. Errors outside
// the taxonomy become a 500 without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindBadRequest:
		BadRequest(w, err.Error(), nil)
	case apperrors.KindForbidden:
		slog.Warn("forbidden", "error", err)
		http.Error(w, err.Error(), http.StatusForbidden)
	case apperrors.KindNotFound:
		NotFound(w, err.Error(), nil)
	case apperrors.KindConflict:
		slog.Warn("conflict", "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		InternalServerError(w, "unexpected error", err)
	}
}
