package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/anilink/internal/apperror"
	"github.com/sakif/anilink/internal/model"
)

// maxLinkBodyBytes bounds the JSON body of a link request.
const maxLinkBodyBytes = 4 << 10

// LinkService is the part of service.LinkService the handler needs.
type LinkService interface {
	Link(ctx context.Context, externalID int64, username string) (*model.UserLink, error)
	Lookup(ctx context.Context, externalID int64) (*model.UserLink, error)
}

// LinkHandler exposes the linking workflow over HTTP.
type LinkHandler struct {
	links  LinkService
	logger *slog.Logger
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(links LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, logger: logger}
}

// linkRequest is the body of POST /api/links.
//
// external_id is accepted as a JSON number or a JSON string: Discord ids are
// 64-bit and JavaScript clients usually carry them as strings. Responses
// always send it back as a string (see model.UserLink).
type linkRequest struct {
	ExternalID json.Number `json:"external_id"`
	Username   string      `json:"username"`
}

// linkedResponse wraps a freshly created link.
type linkedResponse struct {
	Linked *model.UserLink `json:"linked"`
}

// foundResponse wraps a looked-up link.
type foundResponse struct {
	Found *model.UserLink `json:"found"`
}

// HandleLink verifies a username and links it to a Discord account.
//
// HTTP: POST /api/links
// REQUEST BODY: {"external_id": "1187263946483703898", "username": "nova"}
//
// RESPONSES:
//
//	201 {"linked": {...}}
//	400 validation_error  bad JSON, bad id, empty username
//	404 not_found         AniList has no such user
//	503 unavailable       AniList could not be reached, retry later
//	500 internal_error    storage failure
func (h *LinkHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLinkBodyBytes)

	var req linkRequest
	if err := decodeSingleObject(r.Body, &req); err != nil {
		h.logger.Warn("invalid link JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be a single JSON object"))
		return
	}

	externalID, err := parseExternalID(req.ExternalID.String())
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.links.Link(r.Context(), externalID, req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, linkedResponse{Linked: link})
}

// HandleLookup returns the current link for a Discord account.
//
// HTTP: GET /api/links/{externalID}
//
// RESPONSES:
//
//	200 {"found": {...}}
//	400 validation_error  id is not a positive integer
//	404 not_found         the account was never linked
func (h *LinkHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	externalID, err := parseExternalID(chi.URLParam(r, "externalID"))
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.links.Lookup(r.Context(), externalID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, foundResponse{Found: link})
}

// decodeSingleObject decodes one JSON value into dst and rejects anything
// but whitespace after it.
func decodeSingleObject(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func parseExternalID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("external_id", "external_id must be a positive integer")
	}
	return id, nil
}
