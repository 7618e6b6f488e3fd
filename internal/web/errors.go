package web

// errors.go turns pipeline errors into HTTP responses.
//
// The technical error is logged with the request ID; the client receives the
// user message from core.NewUserError, as JSON for API callers and HTMX, or as
// an HTML fragment for the form page.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/certforge/internal/core"
	"github.com/JonMunkholm/certforge/internal/layouts"
	"github.com/JonMunkholm/certforge/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to an HTTP status. Bad input and unusable
// layouts are the caller's fault; a full limiter is temporary.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTooManyBatches):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, layouts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, layouts.ErrInvalidKey),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrUnknownFormat):
		return http.StatusBadRequest
	}

	switch core.KindOf(err) {
	case core.KindInputFormat, core.KindConfigParse, core.KindEmptyResult:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
		"fatal", ue.Fatal,
	}
	if ue.Kind != "" {
		args = append(args, "kind", ue.Kind)
	}
	// Unmapped errors are logged loudly so a pattern can be added for them.
	if status >= http.StatusInternalServerError || !ue.Known() {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	respondMessage(w, r, ue.User, status)
}

// respondMessage writes msg in the format the client asked for.
func respondMessage(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		ErrorAlert(msg).Render(r.Context(), w)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}
	http.Error(w, msg.Message+" ("+msg.Code+")", status)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
