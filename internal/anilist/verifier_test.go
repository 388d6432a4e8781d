package anilist_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/anilink/internal/anilist"
)

// newStub starts an httptest server that answers every request with status
// and body, and records the decoded request for inspection.
func newStub(t *testing.T, status int, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestVerify_Found(t *testing.T) {
	srv, captured := newStub(t, http.StatusOK, `{"data":{"User":{"id":5,"name":"nova"}}}`)
	client := anilist.NewClient(srv.URL, time.Second)

	outcome, err := client.Verify(context.Background(), "nova")

	require.NoError(t, err)
	assert.Equal(t, anilist.Found, outcome)

	vars, ok := (*captured)["variables"].(map[string]any)
	require.True(t, ok, "request should carry GraphQL variables")
	assert.Equal(t, "nova", vars["name"])
	assert.Contains(t, (*captured)["query"], "User(name: $name)")
}

func TestVerify_NotFound(t *testing.T) {
	// This is what AniList actually sends for an unknown user.
	body := `{"errors":[{"message":"Not Found.","status":404,"locations":[{"line":1,"column":23}]}],"data":{"User":null}}`
	srv, _ := newStub(t, http.StatusNotFound, body)
	client := anilist.NewClient(srv.URL, time.Second)

	outcome, err := client.Verify(context.Background(), "ghost_user_9999")

	require.NoError(t, err)
	assert.Equal(t, anilist.NotFound, outcome)
}

func TestVerify_ErrorsWithOKStatus(t *testing.T) {
	srv, _ := newStub(t, http.StatusOK, `{"errors":[{"message":"Not Found."}]}`)
	client := anilist.NewClient(srv.URL, time.Second)

	outcome, err := client.Verify(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Equal(t, anilist.NotFound, outcome)
}

func TestVerify_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"errors":[{"message":"Internal Server Error"}]}`},
		{name: "bad gateway html", status: http.StatusBadGateway, body: `<html>bad gateway</html>`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"errors":[{"message":"Too Many Requests."}]}`},
		{name: "malformed json", status: http.StatusOK, body: `{"data":`},
		{name: "json array", status: http.StatusOK, body: `[1,2,3]`},
		{name: "empty object", status: http.StatusOK, body: `{}`},
		{name: "null user without errors", status: http.StatusOK, body: `{"data":{"User":null}}`},
		{name: "empty errors array", status: http.StatusOK, body: `{"errors":[]}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"data":null,"errors":[{"message":"Syntax Error","status":400}]}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"data":null,"errors":[{"message":"Invalid token","status":401}]}`},
		{name: "api disabled", status: http.StatusForbidden, body: `{"data":null,"errors":[{"message":"The AniList API has been disabled.","status":403}]}`},
		{name: "forbidden error on ok status", status: http.StatusOK, body: `{"data":null,"errors":[{"message":"The AniList API has been disabled.","status":403}]}`},
		{name: "mixed error statuses", status: http.StatusOK, body: `{"errors":[{"message":"Not Found.","status":404},{"message":"Internal","status":500}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newStub(t, tt.status, tt.body)
			client := anilist.NewClient(srv.URL, time.Second)

			outcome, err := client.Verify(context.Background(), "nova")

			assert.Equal(t, anilist.Unavailable, outcome)
			assert.Error(t, err, "Unavailable must carry a reason")
		})
	}
}

func TestVerify_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := anilist.NewClient(srv.URL, 50*time.Millisecond)

	start := time.Now()
	outcome, err := client.Verify(context.Background(), "nova")

	assert.Equal(t, anilist.Unavailable, outcome)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "the client timeout should bound the call")
}

func TestVerify_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	outcome, err := anilist.NewClient(url, time.Second).Verify(context.Background(), "nova")

	assert.Equal(t, anilist.Unavailable, outcome)
	assert.Error(t, err)
}

func TestVerify_CancelledContext(t *testing.T) {
	srv, _ := newStub(t, http.StatusOK, `{"data":{"User":{"id":5}}}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := anilist.NewClient(srv.URL, time.Second).Verify(ctx, "nova")

	assert.Equal(t, anilist.Unavailable, outcome)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify_EmptyUsername(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	t.Cleanup(srv.Close)

	outcome, err := anilist.NewClient(srv.URL, time.Second).Verify(context.Background(), "")

	assert.Equal(t, anilist.Unavailable, outcome)
	assert.Error(t, err)
	assert.Zero(t, calls, "no request should be sent for an empty username")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "found", anilist.Found.String())
	assert.Equal(t, "not_found", anilist.NotFound.String())
	assert.Equal(t, "unavailable", anilist.Unavailable.String())
}
