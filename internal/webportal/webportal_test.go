package webportal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/store"
)

func newTestPortal(t *testing.T, s *store.Store) *Portal {
	t.Helper()
	p := New(&Portal{
		Store:      s,
		Bans:       ban.New(s),
		ServerName: "hub.example",
		Network:    "ExampleNet",
		Token:      "secret",
	})
	return p
}

func TestDashboardRendersWithoutAuth(t *testing.T) {
	s := store.New()
	u := &store.User{ID: store.NewUserID(), Nick: "alice", User: "a", Host: "h", Local: true}
	require.NoError(t, s.AddUser(u))
	p := newTestPortal(t, s)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	p.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hub.example")
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := store.New()
	p := newTestPortal(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	p.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	p.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKlineDisconnectsMatchingUser(t *testing.T) {
	s := store.New()
	u := &store.User{ID: store.NewUserID(), Nick: "bob", User: "b", Host: "evil.example", Local: true}
	require.NoError(t, s.AddUser(u))
	p := newTestPortal(t, s)

	body := `{"mask":"*!*@evil.example","reason":"spam","set_by":"root"}`
	req := httptest.NewRequest(http.MethodPost, "/api/kline", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	p.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.GetUserByNick("bob")
	assert.False(t, ok)
}
