package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/anilink/internal/config"
	"github.com/sakif/anilink/internal/middleware"
	sqliteRepo "github.com/sakif/anilink/internal/repository/sqlite"
)

// newAniListStub answers the GraphQL user query: "nova" exists, "down"
// simulates an outage, everyone else is unknown.
func newAniListStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Name string `json:"name"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch req.Variables.Name {
		case "nova":
			_, _ = io.WriteString(w, `{"data":{"User":{"id":5081,"name":"nova"}}}`)
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"message":"Not Found.","status":404}],"data":{"User":null}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDiscordStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"discord-access","token_type":"Bearer","expires_in":604800}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, anilistURL, discordURL string) config.Config {
	t.Helper()
	environ := map[string]string{
		"DB_PATH":          sqliteRepo.MemoryPath,
		"ANILIST_ENDPOINT": anilistURL,
		"ANILIST_TIMEOUT":  "2s",
	}
	if discordURL != "" {
		environ["DISCORD_CLIENT_ID"] = "client"
		environ["DISCORD_CLIENT_SECRET"] = "secret"
		environ["DISCORD_TOKEN_URL"] = discordURL
	}
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestServer_LinkWorkflow(t *testing.T) {
	ts := newTestServer(t, testConfig(t, newAniListStub(t).URL, ""))

	// Unknown account.
	res, err := http.Get(ts.URL + "/api/links/1187263946483703898")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// Unknown upstream user: nothing is stored.
	res = postJSON(t, ts.URL+"/api/links", `{"external_id":"1187263946483703898","username":"ghost_user_9999"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// Upstream outage is reported as retryable.
	res = postJSON(t, ts.URL+"/api/links", `{"external_id":"1187263946483703898","username":"down"}`)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res, err = http.Get(ts.URL + "/api/links/1187263946483703898")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "failed attempts must not create records")

	// Verified user is linked.
	res = postJSON(t, ts.URL+"/api/links", `{"external_id":"1187263946483703898","username":"nova"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var linked struct {
		Linked struct {
			ID         int64     `json:"id"`
			ExternalID string    `json:"external_id"`
			Username   string    `json:"username"`
			CreatedAt  time.Time `json:"created_at"`
		} `json:"linked"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&linked))
	assert.Equal(t, int64(1), linked.Linked.ID)
	assert.Equal(t, "1187263946483703898", linked.Linked.ExternalID, "snowflakes go out as strings")
	assert.Equal(t, "nova", linked.Linked.Username)
	assert.False(t, linked.Linked.CreatedAt.IsZero())

	// Lookup returns the same record.
	res, err = http.Get(ts.URL + "/api/links/1187263946483703898")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var found struct {
		Found struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"found"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&found))
	assert.Equal(t, linked.Linked.ID, found.Found.ID)
	assert.Equal(t, "nova", found.Found.Username)
}

func TestServer_Greetings(t *testing.T) {
	ts := newTestServer(t, testConfig(t, newAniListStub(t).URL, ""))

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, "Hello world!", string(body))
	assert.NotEmpty(t, res.Header.Get(middleware.RequestIDHeader))

	res, err = http.Post(ts.URL+"/echo", "text/plain", bytes.NewBufferString("marco"))
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, "marco", string(body))

	res, err = http.Get(ts.URL + "/hey")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, testConfig(t, newAniListStub(t).URL, ""))

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServer_TokenRouteDisabledWithoutCredentials(t *testing.T) {
	ts := newTestServer(t, testConfig(t, newAniListStub(t).URL, ""))

	res := postJSON(t, ts.URL+"/api/token", `{"code":"good-code"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServer_TokenExchange(t *testing.T) {
	ts := newTestServer(t, testConfig(t, newAniListStub(t).URL, newDiscordStub(t).URL))

	res, err := http.Post(ts.URL+"/api/token", "text/plain", strings.NewReader("good-code"))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var token map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&token))
	assert.Equal(t, "discord-access", token["access_token"])

	res = postJSON(t, ts.URL+"/api/token", `{"code":"stale-code"}`)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)

	res = postJSON(t, ts.URL+"/api/token", ``)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, newAniListStub(t).URL, "")
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_BadDatabase(t *testing.T) {
	cfg := testConfig(t, "http://localhost:1", "")
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "dir", "anilink.db")

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestEnsureDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "anilink.db")
	require.NoError(t, EnsureDataDir(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureDataDir(sqliteRepo.MemoryPath))
}
