package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/server/middleware"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/sticker"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testUsername  = "admin"
	testPassword  = "correct-horse-battery"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	profiles *store.ProfileStore
	requests *store.RequestQueue
	authSvc  *service.AuthService
	sender   *recordingSender
	router   chi.Router
}

// newTestEnv creates a fresh test environment with file stores in a temp
// dir and a Chi router with the API and page routes mounted.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := store.OpenProfiles(filepath.Join(dir, "profiles.json"), logger)
	requests := store.OpenRequests(filepath.Join(dir, "requests.json"), profiles, logger)

	authSvc, err := service.NewAuthService(store.NewCredentialFile(filepath.Join(dir, "admin-config.json")), service.AuthOptions{
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  testJWTSecret,
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	v := validate.New()
	sender := &recordingSender{}
	svc := service.NewProfiles(profiles, requests, v, sender, logger)
	relay := service.NewRelay(profiles, sender, v, logger)

	api := NewAPIHandler(profiles, requests, svc, authSvc, v, time.Hour, logger)
	pages, err := NewPages(PageConfig{
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

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", api.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authSvc))
			r.Get("/profiles", api.ListProfiles)
			r.Post("/profiles", api.CreateProfile)
			r.Get("/profiles/{uuid}", api.GetProfile)
			r.Delete("/profiles/{uuid}", api.DeleteProfile)
			r.Get("/requests", api.ListRequests)
			r.Post("/requests/{uuid}/approve", api.ApproveRequest)
			r.Post("/requests/{uuid}/reject", api.RejectRequest)
		})
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/setup", pages.SetupForm)
		r.Post("/setup", pages.Setup)
		r.Get("/login", pages.LoginForm)
		r.Post("/login", pages.Login)
		r.Post("/logout", pages.Logout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(authSvc, LoginPath))
			r.Get("/", pages.Dashboard)
			r.Post("/profiles", pages.CreateProfile)
			r.Post("/profiles/{uuid}/delete", pages.DeleteProfile)
			r.Get("/profiles/{uuid}/sticker.pdf", pages.StickerPDF)
			r.Post("/requests/{uuid}/approve", pages.ApproveRequest)
			r.Post("/requests/{uuid}/reject", pages.RejectRequest)
			r.Get("/password", pages.PasswordForm)
			r.Post("/password", pages.ChangePassword)
		})
	})
	r.Get("/", pages.Index)
	r.Post("/request", pages.SubmitRequest)
	r.Get("/qr/{uuid}", pages.QRCode)
	r.Get("/{uuid}", pages.Profile)
	r.Post("/{uuid}/message", pages.SendMessage)
	r.NotFound(pages.NotFound)

	return &testEnv{
		profiles: profiles,
		requests: requests,
		authSvc:  authSvc,
		sender:   sender,
		router:   r,
	}
}

// seedAdmin creates the administrator account and returns a session token.
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

// seedProfile stores a profile and returns it.
func (e *testEnv) seedProfile(t *testing.T, id, name string) model.Profile {
	t.Helper()
	p, err := model.NewProfile(model.ProfileFields{UUID: id, Name: name, Email: strings.ToLower(name) + "@example.com"})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if _, err := e.profiles.Create(p); err != nil {
		t.Fatalf("seedProfile: %v", err)
	}
	got, _ := e.profiles.Get(id)
	return got
}

// seedConflictingProfile writes a profile whose uuid is also pending, the
// state left behind by a writer that does not know about the queue.
func (e *testEnv) seedConflictingProfile(t *testing.T, id, name string) {
	t.Helper()
	p, err := model.NewProfile(model.ProfileFields{UUID: id, Name: name, Email: strings.ToLower(name) + "@example.com"})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	bare := store.OpenProfiles(e.profiles.Path(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := bare.Create(p); err != nil {
		t.Fatalf("seedConflictingProfile: %v", err)
	}
}

// seedRequest queues a pending request and returns it.
func (e *testEnv) seedRequest(t *testing.T, id, name string) model.PendingRequest {
	t.Helper()
	r, err := model.NewPendingRequest(model.ProfileFields{UUID: id, Name: name, Email: strings.ToLower(name) + "@example.com"})
	if err != nil {
		t.Fatalf("NewPendingRequest: %v", err)
	}
	if _, err := e.requests.Create(r); err != nil {
		t.Fatalf("seedRequest: %v", err)
	}
	got, _ := e.requests.Get(id)
	return got
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAuth(t, method, path, body, "")
}

// doAuth is do with a Bearer token.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// get requests an HTML page, with the session cookie when token is set.
func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// postForm submits an HTML form, with the session cookie when token is set.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
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

func assertRedirect(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303; body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}
