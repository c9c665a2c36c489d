package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cryams/cryams/internal/handler"
	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/mcp"
	"github.com/cryams/cryams/internal/server/middleware"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/sticker"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testUsername  = "admin"
	testPassword  = "supersecretpassword"
)

type captureSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *captureSender) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server   *Server
	profiles *store.ProfileStore
	requests *store.RequestQueue
	authSvc  *service.AuthService
	sender   *captureSender
}

// newTestEnv creates a fresh test environment with file stores in a temp
// directory and a fully wired Server.
func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	return newTestEnvIn(t, t.TempDir(), mutate...)
}

func newTestEnvIn(t *testing.T, dir string, mutate ...func(*Config)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := store.OpenProfiles(filepath.Join(dir, "profiles.json"), logger)
	requests := store.OpenRequests(filepath.Join(dir, "requests.json"), profiles, logger)

	// A corrupt credential file still yields a usable service.
	authSvc, _ := service.NewAuthService(store.NewCredentialFile(filepath.Join(dir, "admin-config.json")), service.AuthOptions{
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  testJWTSecret,
	})
	if authSvc == nil {
		t.Fatal("NewAuthService returned nil")
	}

	v := validate.New()
	sender := &captureSender{}
	svc := service.NewProfiles(profiles, requests, v, sender, logger)
	relay := service.NewRelay(profiles, sender, v, logger)

	pages, err := handler.NewPages(handler.PageConfig{
		Profiles:          profiles,
		Requests:          requests,
		Service:           svc,
		Relay:             relay,
		Auth:              authSvc,
		Stickers:          sticker.NewRenderer("http://cryams.test"),
		Validate:          v,
		SessionTTL:        time.Hour,
		MinPasswordLength: service.DefaultMinPasswordLength,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("NewPages: %v", err)
	}

	cfg := DefaultConfig()
	cfg.PublicPerMinute = 0
	cfg.LoginPerMinute = 0
	for _, m := range mutate {
		m(&cfg)
	}

	srv := New(cfg, Handlers{
		API:     handler.NewAPIHandler(profiles, requests, svc, authSvc, v, time.Hour, logger),
		Pages:   pages,
		OpenAPI: handler.NewOpenAPIHandler("http://cryams.test", "test"),
		MCP:     mcp.NewMCPServer(profiles, requests, "test", logger).Handler(),
	}, authSvc, logger)

	return &testEnv{
		server:   srv,
		profiles: profiles,
		requests: requests,
		authSvc:  authSvc,
		sender:   sender,
	}
}

// seedAdmin creates the admin account and returns a session token.
func (e *testEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	if err := e.authSvc.CreateAdminConfig(testUsername, testPassword); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	token, err := e.authSvc.IssueJWT(testUsername, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	return token
}

// do executes an HTTP request against the server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// postForm submits an HTML form with an optional session cookie.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values, token string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v; body = %s", err, rr.Body.String())
	}
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health checks
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, "")
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestReadyz(t *testing.T) {
	type readiness struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}

	t.Run("setup required", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(t, "GET", "/readyz", nil, "")
		assertStatus(t, rr, http.StatusOK)
		var resp readiness
		decodeJSON(t, rr, &resp)
		if resp.Checks["admin"] != "setup required" {
			t.Errorf("checks = %v", resp.Checks)
		}
	})

	t.Run("configured", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAdmin(t)
		rr := env.do(t, "GET", "/readyz", nil, "")
		assertStatus(t, rr, http.StatusOK)
		var resp readiness
		decodeJSON(t, rr, &resp)
		if resp.Status != "ok" || resp.Checks["admin"] != "configured" {
			t.Errorf("got %+v", resp)
		}
	})

	t.Run("unreadable credential", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "admin-config.json"), []byte("{broken"), 0o600); err != nil {
			t.Fatal(err)
		}
		env := newTestEnvIn(t, dir)
		rr := env.do(t, "GET", "/readyz", nil, "")
		assertStatus(t, rr, http.StatusServiceUnavailable)
		var resp readiness
		decodeJSON(t, rr, &resp)
		if resp.Status != "degraded" {
			t.Errorf("status = %q, want degraded", resp.Status)
		}
	})
}

// ---------------------------------------------------------------------------
// Routing and authentication
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/healthz", nil, "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}
}

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, "")
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI == "" {
		t.Error("missing openapi version")
	}
	if _, ok := doc.Paths["/api/v1/requests/{uuid}/approve"]; !ok {
		t.Errorf("approve path missing from %v", doc.Paths)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	paths := []struct{ method, path string }{
		{"GET", "/api/v1/profiles"},
		{"POST", "/api/v1/profiles"},
		{"GET", "/api/v1/profiles/abc"},
		{"DELETE", "/api/v1/profiles/abc"},
		{"GET", "/api/v1/requests"},
		{"POST", "/api/v1/requests/abc/approve"},
		{"POST", "/api/v1/requests/abc/reject"},
		{"POST", "/mcp"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := env.do(t, p.method, p.path, nil, "")
			assertStatus(t, rr, http.StatusUnauthorized)
		})
	}
}

func TestAdminPagesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "GET", "/admin/", nil, "")
	assertStatus(t, rr, http.StatusSeeOther)
	if loc := rr.Header().Get("Location"); loc != handler.LoginPath {
		t.Errorf("Location = %q, want %q", loc, handler.LoginPath)
	}
}

func TestAPILoginThenList(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/v1/session", toJSON(t, map[string]string{
		"username": testUsername,
		"password": testPassword,
	}), "")
	assertStatus(t, rr, http.StatusOK)

	var login struct {
		Token string `json:"session_token"`
	}
	decodeJSON(t, rr, &login)

	rr = env.do(t, "GET", "/api/v1/requests", nil, login.Token)
	assertStatus(t, rr, http.StatusOK)
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/no/such/page", nil, "")
	assertStatus(t, rr, http.StatusNotFound)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestStaticStylesheet(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/static/style.css", nil, "")
	assertStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}
}

func TestCORS(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest("GET", "/api/v1/profiles", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rr := httptest.NewRecorder()
		env.server.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("configured origin", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) {
			c.CORSOrigins = []string{"https://app.example.com"}
		})
		req := httptest.NewRequest("OPTIONS", "/api/v1/profiles", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "GET")
		rr := httptest.NewRecorder()
		env.server.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})
}

func TestCrossOriginFormRejected(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"name": {"Anna"}, "email": {"anna@example.com"}}
	rr := env.postForm(t, "/request", form, "", "Sec-Fetch-Site", "cross-site")
	assertStatus(t, rr, http.StatusForbidden)
	if env.requests.Len() != 0 {
		t.Error("cross-site form must not queue a request")
	}
}

func TestPublicRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PublicPerMinute = 1 })

	form := url.Values{"name": {"Anna"}, "email": {"anna@example.com"}}
	first := env.postForm(t, "/request", form, "")
	assertStatus(t, first, http.StatusSeeOther)

	second := env.postForm(t, "/request", form, "")
	assertStatus(t, second, http.StatusTooManyRequests)
	if env.requests.Len() != 1 {
		t.Errorf("requests = %d, want 1", env.requests.Len())
	}
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PublicPerMinute = 1 })

	form := url.Values{"name": {"Anna"}, "email": {"anna@example.com"}}
	first := env.postForm(t, "/request", form, "", "X-Forwarded-For", "203.0.113.1")
	assertStatus(t, first, http.StatusSeeOther)

	second := env.postForm(t, "/request", form, "", "X-Forwarded-For", "203.0.113.2")
	assertStatus(t, second, http.StatusTooManyRequests)
}

func TestRateLimitTrustProxy(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.PublicPerMinute = 1
		c.TrustProxy = true
	})

	form := url.Values{"name": {"Anna"}, "email": {"anna@example.com"}}
	assertStatus(t, env.postForm(t, "/request", form, "", "X-Forwarded-For", "203.0.113.1"), http.StatusSeeOther)
	assertStatus(t, env.postForm(t, "/request", form, "", "X-Forwarded-For", "203.0.113.2"), http.StatusSeeOther)
	assertStatus(t, env.postForm(t, "/request", form, "", "X-Forwarded-For", "203.0.113.1"), http.StatusTooManyRequests)
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestModerationWorkflow(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedAdmin(t)

	// A visitor requests a profile.
	rr := env.postForm(t, "/request", url.Values{
		"name":        {"Anna Beispiel"},
		"email":       {"anna@example.com"},
		"description": {"Fahrrad am Bahnhof"},
		"sticker":     {"2x3"},
	}, "")
	assertStatus(t, rr, http.StatusSeeOther)
	if env.requests.Len() != 1 {
		t.Fatalf("requests = %d, want 1", env.requests.Len())
	}
	id := env.requests.List()[0].UUID

	// Not public until approved.
	assertStatus(t, env.do(t, "GET", "/"+id, nil, ""), http.StatusNotFound)

	// The admin approves it through the API.
	rr = env.do(t, "POST", "/api/v1/requests/"+id+"/approve", nil, token)
	assertStatus(t, rr, http.StatusOK)
	if env.requests.Len() != 0 || !env.profiles.Has(id) {
		t.Fatal("approve should move the request into the profiles")
	}

	// The profile page and its QR code are now reachable.
	assertStatus(t, env.do(t, "GET", "/"+id, nil, ""), http.StatusOK)
	rr = env.do(t, "GET", "/qr/"+id, nil, "")
	assertStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("qr Content-Type = %q", ct)
	}

	// A finder sends a message.
	before := env.sender.count()
	rr = env.postForm(t, "/"+id+"/message", url.Values{
		"content":    {"Ihr Fahrrad steht noch am Bahnhof."},
		"senderName": {"Bernd"},
	}, "")
	assertStatus(t, rr, http.StatusSeeOther)
	if env.sender.count() != before+1 {
		t.Errorf("sent = %d, want %d", env.sender.count(), before+1)
	}

	// The admin downloads the sticker sheet.
	req := httptest.NewRequest("GET", "/admin/profiles/"+id+"/sticker.pdf", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	pdf := httptest.NewRecorder()
	env.server.ServeHTTP(pdf, req)
	assertStatus(t, pdf, http.StatusOK)
	if !bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF")) {
		t.Error("sticker download is not a PDF")
	}

	// Deleting the profile takes the link offline.
	assertStatus(t, env.do(t, "DELETE", "/api/v1/profiles/"+id, nil, token), http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/"+id, nil, ""), http.StatusNotFound)
}
