package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parley-ai/parley/internal/apperr"
)

// writeJSON writes a JSON response with the given status code.
// Buffer-first: headers are only sent after encoding succeeds, so an
// encoding failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the wire shape of a pre-stream failure.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError classifies err through the apperr taxonomy and writes the
// matching JSON error response. Internal errors are logged with their
// cause; the caller only sees the generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.KindInternal {
		logger.Error("request failed", "code", ae.Code(), "error", err)
	} else {
		logger.Debug("request rejected", "code", ae.Code(), "message", ae.Message)
	}
	writeJSON(w, ae.HTTPStatus(), errorBody{Code: ae.Code(), Message: ae.Message})
}
