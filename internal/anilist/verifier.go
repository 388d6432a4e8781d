// Package anilist checks AniList usernames against the public GraphQL API.
//
// The client only asks one question: does this username belong to a real
// account? It never creates, caches or links anything.
//
// AniList API docs: https://docs.anilist.co/guide/graphql/
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// maxResponseBytes caps how much of an upstream body we are willing to read.
const maxResponseBytes = 1 << 20

// userQuery asks for the minimum profile data needed to prove the user exists.
const userQuery = `query ($name: String) { User(name: $name) { id name } }`

// Outcome is the result of a verification.
type Outcome int

const (
	// Unavailable means the upstream could not give an answer: network
	// failure, timeout, server error or an unreadable payload. It says
	// nothing about whether the user exists.
	Unavailable Outcome = iota
	// Found means the username resolves to a real account.
	Found
	// NotFound means the upstream answered and the account does not exist.
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Client verifies usernames against an AniList GraphQL endpoint.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a Client for endpoint. Every request is bounded by
// timeout, even when the caller's context has no deadline.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLResponse keeps the top-level fields raw: apart from the per-error
// status, we only care whether they are present.
type graphQLResponse struct {
	Data *struct {
		User json.RawMessage `json:"User"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// graphQLError is one entry of "errors". AniList puts the HTTP-like status
// of the failure in each entry.
type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Verify reports whether username is a real AniList account.
//
// The returned error is non-nil only together with Unavailable and carries
// the reason. Found and NotFound always come with a nil error.
//
// CLASSIFICATION:
//   - transport error or timeout                  → Unavailable
//   - any HTTP status other than 200 or 404       → Unavailable
//   - body that is not a JSON object              → Unavailable
//   - "errors" entries all with status 404 or none → NotFound
//   - "errors" carrying any other status          → Unavailable
//   - data.User present and not null              → Found
//   - anything else                               → Unavailable
//
// AniList answers an unknown user with HTTP 404 (or 200) and an "errors"
// entry with status 404. A refusal such as 400, 401 or 403 says nothing
// about the user and must not be reported as NotFound.
func (c *Client) Verify(ctx context.Context, username string) (Outcome, error) {
	if username == "" {
		return Unavailable, errors.New("anilist: username must not be empty")
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     userQuery,
		Variables: map[string]any{"name": username},
	})
	if err != nil {
		return Unavailable, fmt.Errorf("anilist: encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Unavailable, fmt.Errorf("anilist: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Unavailable, fmt.Errorf("anilist: calling GraphQL API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return Unavailable, fmt.Errorf("anilist: GraphQL API returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Unavailable, fmt.Errorf("anilist: reading response: %w", err)
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return Unavailable, fmt.Errorf("anilist: decoding response (status %d): %w", resp.StatusCode, err)
	}

	if present(gql.Errors) {
		if status, ok := userMissing(gql.Errors); !ok {
			return Unavailable, fmt.Errorf("anilist: GraphQL API reported error status %d", status)
		}
		return NotFound, nil
	}
	if gql.Data != nil && present(gql.Data.User) {
		return Found, nil
	}

	return Unavailable, fmt.Errorf("anilist: response (status %d) has neither data nor errors", resp.StatusCode)
}

// userMissing reports whether every error entry describes a missing user:
// status 404, or no status at all. Otherwise it returns the first other status.
func userMissing(raw json.RawMessage) (int, bool) {
	var errs []graphQLError
	if err := json.Unmarshal(raw, &errs); err != nil {
		return 0, false
	}
	for _, e := range errs {
		if e.Status != 0 && e.Status != http.StatusNotFound {
			return e.Status, false
		}
	}
	return http.StatusNotFound, true
}

// present reports whether a raw JSON field was sent with a meaningful value.
func present(field json.RawMessage) bool {
	switch string(bytes.TrimSpace(field)) {
	case "", "null", "[]", "{}":
		return false
	}
	return true
}
