package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/db"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/health"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/telemetry"
)

type fakeSessions struct {
	sessions []db.Session
	limit    int
}

func (f *fakeSessions) Recent(limit int) ([]db.Session, error) {
	f.limit = limit
	return f.sessions, nil
}

func (f *fakeSessions) ForConnection(connID uint64) (db.Session, bool, error) {
	for _, s := range f.sessions {
		if s.ConnID == connID {
			return s, true, nil
		}
	}
	return db.Session{}, false, nil
}

type apiHarness struct {
	cfg         *config.Config
	bus         *events.EventBus
	connections *network.ConnectionRegistry
	server      *Server
}

func newAPIHarness(t *testing.T, token string) *apiHarness {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.API.Token = token
	cfg.API.RateLimitRPS = 0

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	connections := network.NewConnectionRegistry()

	s := NewServer(cfg, bus, connections)
	gin.SetMode(gin.TestMode)
	return &apiHarness{cfg: cfg, bus: bus, connections: connections, server: s}
}

func (h *apiHarness) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register adds an unserved connection over a pipe.
func (h *apiHarness) register(t *testing.T, id uint64) *network.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	conn := network.NewConn(id, server, &network.Engine{Registry: h.connections})
	h.connections.Register(conn)
	return conn
}

func TestPingIsPublic(t *testing.T) {
	h := newAPIHarness(t, "secret")
	rec := h.do(http.MethodGet, "/api/public/ping", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "craftflow", decode(t, rec)["service"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newAPIHarness(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/connections", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/connections", "", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/connections", "", "secret").Code)
}

func TestNoTokenMeansLocalAdmin(t *testing.T) {
	h := newAPIHarness(t, "")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/versions", "", "").Code)
}

func TestListConnections(t *testing.T) {
	h := newAPIHarness(t, "")
	h.register(t, 7)

	rec := h.do(http.MethodGet, "/api/connections", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	conns := body["connections"].([]interface{})
	require.Len(t, conns, 1)
	assert.EqualValues(t, 7, conns[0].(map[string]interface{})["id"])

	rec = h.do(http.MethodGet, "/api/connections/7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "handshake", decode(t, rec)["write_state"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/connections/8", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/connections/abc", "", "").Code)
}

func TestConnectionIncludesSession(t *testing.T) {
	h := newAPIHarness(t, "")
	h.register(t, 7)
	h.register(t, 9)
	h.server.SetDependencies(&fakeSessions{sessions: []db.Session{
		{ID: "s7", ConnID: 7, Username: "Steve", StartedAt: time.Now()},
	}}, nil)

	rec := h.do(http.MethodGet, "/api/connections/7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "handshake", body["write_state"])
	session, ok := body["session"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Steve", session["username"])

	rec = h.do(http.MethodGet, "/api/connections/9", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode(t, rec), "session")
}

func TestKickConnection(t *testing.T) {
	h := newAPIHarness(t, "")
	conn := h.register(t, 3)

	rec := h.do(http.MethodPost, "/api/connections/3/kick", `{"reason":"bye"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kicked", decode(t, rec)["status"])

	// The kick is queued; closing the connection makes a second kick fail.
	require.NoError(t, conn.Close())
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/connections/3/kick", "", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/connections/4/kick", "", "").Code)
}

func TestKickAll(t *testing.T) {
	h := newAPIHarness(t, "")
	h.register(t, 1)
	h.register(t, 2)

	rec := h.do(http.MethodPost, "/api/connections/kick_all", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])
}

func TestVersions(t *testing.T) {
	h := newAPIHarness(t, "")
	rec := h.do(http.MethodGet, "/api/versions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["versions"], len(protocol.SupportedVersions))
	assert.Equal(t, protocol.MinVersion().String(), body["min"])
	assert.Equal(t, protocol.MaxVersion().String(), body["max"])
}

func TestSessions(t *testing.T) {
	h := newAPIHarness(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/api/sessions", "", "").Code)

	store := &fakeSessions{sessions: []db.Session{{ID: "a", ConnID: 1, StartedAt: time.Now()}}}
	h.server.SetDependencies(store, nil)

	rec := h.do(http.MethodGet, "/api/sessions?limit=10000", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
	assert.Equal(t, maxSessionLimit, store.limit)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/sessions?limit=0", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPIHarness(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/metrics", "", "").Code)

	metrics := telemetry.NewMetrics()
	metrics.ConnectionOpened()
	h.server.SetDependencies(nil, metrics)

	rec := h.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "craftflow_connections_active 1")
}

func TestConfigRoutes(t *testing.T) {
	h := newAPIHarness(t, "secret")

	rec := h.do(http.MethodGet, "/api/config", "", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	apiSection := decode(t, rec)["api"].(map[string]interface{})
	assert.Equal(t, redacted, apiSection["token"])

	changed := make(chan *events.ConfigChangedPayload, 1)
	h.bus.Subscribe(events.EventConfigChanged, "test", func(_ context.Context, e events.Event) error {
		changed <- e.Payload.(*events.ConfigChangedPayload)
		return nil
	})

	rec = h.do(http.MethodPost, "/api/config/server", `{"key":"max_players","value":42}`, "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42, h.cfg.GetServer().MaxPlayers)

	select {
	case p := <-changed:
		assert.Equal(t, "max_players", p.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("config_changed not emitted")
	}

	reloaded, err := config.Load(filepath.Dir(h.cfg.Path()))
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.GetServer().MaxPlayers)

	assert.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPost, "/api/config/server", `{"key":"nope","value":1}`, "secret").Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Now()
	assert.True(t, rl.allow("a", now))
	assert.True(t, rl.allow("a", now))
	assert.False(t, rl.allow("a", now), "burst is twice the rate")
	assert.True(t, rl.allow("b", now))
	assert.True(t, rl.allow("a", now.Add(time.Second)))
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer abc"))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
}

type fakeHealth struct{ healthy bool }

func (f fakeHealth) Results() []health.Result {
	return []health.Result{{Name: "ledger", Healthy: f.healthy}}
}

func (f fakeHealth) Healthy() bool { return f.healthy }

func TestHealthEndpoint(t *testing.T) {
	h := newAPIHarness(t, "secret")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/public/health", "", "").Code)

	h.server.SetHealth(fakeHealth{healthy: false})
	rec := h.do(http.MethodGet, "/api/public/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, decode(t, rec)["healthy"])

	h.server.SetHealth(fakeHealth{healthy: true})
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/public/health", "", "").Code)
}
