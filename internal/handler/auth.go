package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/anilink/internal/apperror"
	"github.com/sakif/anilink/internal/auth"
)

// maxTokenBodyBytes bounds the request body of a code exchange. Discord
// authorization codes are ~30 characters.
const maxTokenBodyBytes = 2 << 10

// CodeExchanger is the part of service.AuthService the handler needs.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*auth.Token, error)
}

// TokenHandler lets the embedded Discord activity trade the authorization
// code it received from the Discord SDK for an access token. The client
// secret never leaves the server.
type TokenHandler struct {
	auth   CodeExchanger
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(auth CodeExchanger, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{auth: auth, logger: logger}
}

type tokenRequest struct {
	Code string `json:"code"`
}

// HandleToken exchanges an authorization code for an access token.
//
// HTTP: POST /api/token
// REQUEST BODY: either the bare code as text, or {"code": "..."}
//
// RESPONSES:
//
//	200 {"access_token": "..."}
//	400 validation_error  empty code or malformed JSON
//	502 upstream_error    Discord rejected the code or could not be reached
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTokenBodyBytes))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body is too large"))
		return
	}

	code, err := codeFromBody(body)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.ExchangeCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "Discord token exchange failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// codeFromBody accepts a JSON object with a "code" field or the raw code.
func codeFromBody(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(trimmed), nil
	}

	var req tokenRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return "", apperror.ValidationFailed("body", "request body must be a code or a JSON object")
	}
	return req.Code, nil
}
