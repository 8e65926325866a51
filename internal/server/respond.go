package server

import (
	"encoding/json"
	"net/http"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"

	"github.com/sirupsen/logrus"
)

// respondJSON writes v as a JSON response body.
func (ms *MediaServer) respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthenticated, errs.KindAuthExpired:
		return http.StatusUnauthorized
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindExternal:
		return http.StatusBadGateway
	case errs.KindUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindIOFailure:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// respondError writes a structured error response carrying the stable
// error kind plus a human-readable message.
func (ms *MediaServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusForKind(kind)

	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": status,
		"error_kind":  kind,
	}).WithError(err)

	if status >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error": err.Error(),
		"kind":  string(kind),
	}
	if kind == "" {
		response["kind"] = "internal"
	}
	ms.respondJSON(w, response)
}
