package embed

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"Embedkit/internal/core/embed"
	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/meta"
)

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, errorType, message string) {
	writeJSON(w, status, ErrorResponse{Error: errorType, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("[EMBED] failed to encode response", "status", status, "error", err)
	}
}

// handleServiceError converts core errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	var pageStatus *meta.StatusError
	var imageStatus *imageprobe.StatusError

	switch {
	case errors.Is(err, embed.ErrUnsupportedURL), errors.Is(err, fetch.ErrInvalidURI):
		writeError(w, http.StatusBadRequest, "UnsupportedURL", "Only absolute http and https URLs are supported")
	case errors.As(err, &pageStatus):
		if pageStatus.Code == http.StatusNotFound || pageStatus.Code == http.StatusGone {
			writeError(w, http.StatusNotFound, "NotFound", "The page was not found")
			return
		}
		writeError(w, http.StatusBadGateway, "UpstreamError", pageStatus.Error())
	case errors.Is(err, imageprobe.ErrNotFound), fetch.IsNotFoundHost(err):
		writeError(w, http.StatusNotFound, "NotFound", "The resource was not found")
	case errors.Is(err, imageprobe.ErrInvalidContentType):
		writeError(w, http.StatusUnsupportedMediaType, "InvalidContentType", err.Error())
	case errors.Is(err, imageprobe.ErrMalformedImage):
		writeError(w, http.StatusUnprocessableEntity, "MalformedImage", "The image header could not be decoded")
	case errors.As(err, &imageStatus):
		writeError(w, http.StatusBadGateway, "UpstreamError", imageStatus.Error())
	case errors.Is(err, fetch.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Timeout", "The origin did not respond in time")
	case errors.Is(err, fetch.ErrTooManyRedirects):
		writeError(w, http.StatusBadGateway, "TooManyRedirects", "The origin redirected too many times")
	case errors.Is(err, meta.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "ProviderUnavailable", "The provider is temporarily unavailable")
	default:
		slog.Error("[EMBED] unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
