package web

// errors.go turns service errors into JSON responses.
//
// The technical error is logged with the request id; the client gets the
// user-facing message and support code from core.MapError.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/airwarehouse/internal/core"
	"github.com/JonMunkholm/airwarehouse/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUndeterminedEntityType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptyUpload), errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrStreamingDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrTransportFault):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	if errors.Is(err, core.ErrTooManyUploads) {
		w.Header().Set("Retry-After", "30")
	}
	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
