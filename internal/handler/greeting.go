// Package handler contains the HTTP handlers for the anilink API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path params, body, headers)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules: validation, verification, and storage
// decisions live in internal/service.
package handler

import (
	"io"
	"log/slog"
	"net/http"
)

// maxEchoBodyBytes bounds the body echoed back by /echo.
const maxEchoBodyBytes = 64 << 10

// GreetingHandler serves the plain-text probes the activity frontend uses
// to check that the backend is reachable.
type GreetingHandler struct {
	logger *slog.Logger
}

// NewGreetingHandler creates a GreetingHandler.
func NewGreetingHandler(logger *slog.Logger) *GreetingHandler {
	return &GreetingHandler{logger: logger}
}

// HandleHello answers GET / with a fixed greeting.
func (h *GreetingHandler) HandleHello(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Hello world!")
}

// HandleHey answers GET /hey with a fixed greeting.
func (h *GreetingHandler) HandleHey(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Hey there!")
}

// HandleEcho answers POST /echo with the request body, unchanged.
func (h *GreetingHandler) HandleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEchoBodyBytes))
	if err != nil {
		h.logger.Warn("echo body rejected", slog.String("error", err.Error()))
		writeText(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeText(w, http.StatusOK, string(body))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("failed to write text response", slog.String("error", err.Error()))
	}
}
