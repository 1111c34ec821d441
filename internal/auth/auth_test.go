package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stillpoint/drip/internal/config"
)

func testManager(enabled bool) *Manager {
	return NewManager(&config.AuthConfig{
		Enabled:       enabled,
		AllowedDomain: "stillpoint.example",
		CookieName:    "drip_session",
		CookieMaxAge:  3600,
	}, "http://localhost:8080")
}

func (m *Manager) addSession(id string, expiresAt time.Time) {
	m.mu.Lock()
	m.byID[id] = &Session{Email: "admin@stillpoint.example", ExpiresAt: expiresAt}
	m.mu.Unlock()
}

func TestGetSession(t *testing.T) {
	m := testManager(true)
	m.addSession("live", time.Now().Add(time.Hour))
	m.addSession("stale", time.Now().Add(-time.Minute))

	cases := []struct {
		name   string
		cookie string
		want   bool
	}{
		{"valid session", "live", true},
		{"expired session", "stale", false},
		{"unknown session", "nope", false},
		{"no cookie", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/sequences", nil)
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "drip_session", Value: tc.cookie})
			}
			if got := m.IsAuthenticated(r); got != tc.want {
				t.Errorf("IsAuthenticated = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpiredSessionIsEvictedOnAccess(t *testing.T) {
	m := testManager(true)
	m.addSession("stale", time.Now().Add(-time.Minute))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "drip_session", Value: "stale"})
	m.GetSession(r)

	m.mu.RLock()
	_, still := m.byID["stale"]
	m.mu.RUnlock()
	if still {
		t.Error("expired session not evicted")
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects anonymous", func(t *testing.T) {
		m := testManager(true)
		rec := httptest.NewRecorder()
		m.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sequences", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("passes valid session", func(t *testing.T) {
		m := testManager(true)
		m.addSession("live", time.Now().Add(time.Hour))
		r := httptest.NewRequest(http.MethodGet, "/api/sequences", nil)
		r.AddCookie(&http.Cookie{Name: "drip_session", Value: "live"})
		rec := httptest.NewRecorder()
		m.RequireAuth(next).ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("disabled auth passes everything", func(t *testing.T) {
		m := testManager(false)
		rec := httptest.NewRecorder()
		m.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sequences", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestLoginSetsStateCookie(t *testing.T) {
	m := testManager(true)
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "oauth_state" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("oauth_state cookie not set")
	}
}
