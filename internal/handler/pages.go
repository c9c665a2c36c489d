package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/sticker"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"index.html",
	"profile.html",
	"error.html",
	"setup.html",
	"login.html",
	"dashboard.html",
	"password.html",
}

// flashes are the confirmations selectable through the "done" query
// parameter. Only known keys render, so the parameter cannot inject text.
var flashes = map[string]string{
	"requested": "Danke! Deine Anfrage wurde übermittelt und wird geprüft. Du erhältst nach der Freigabe deinen Sticker.",
	"sent":      "Deine Nachricht wurde anonym weitergeleitet.",
	"created":   "Profil angelegt.",
	"deleted":   "Profil gelöscht, der Sticker-Link ist deaktiviert.",
	"approved":  "Anfrage freigegeben, das Profil ist jetzt erreichbar.",
	"rejected":  "Anfrage abgelehnt.",
	"missing":   "Eintrag nicht gefunden, eventuell wurde er bereits bearbeitet.",
	"conflict":  "Es existiert bereits ein Profil mit dieser ID.",
	"password":  "Passwort geändert.",
	"setup":     "Administrator angelegt, bitte anmelden.",
	"loggedout": "Abgemeldet.",
}

// view is the data passed to every page template.
type view struct {
	Title    string
	Flash    string
	Error    string
	Problems []validate.Problem
	Form     url.Values

	Presets  []string
	Profile  *model.Profile
	Requests []model.PendingRequest
	Profiles []model.Profile
	Admin    *model.AdminInfo

	MinPasswordLength int
	StrongPasswords   bool
}

type templates map[string]*template.Template

func parseTemplates(funcs template.FuncMap) (templates, error) {
	t := make(templates, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t[name] = tmpl
	}
	return t, nil
}

// PageConfig holds the dependencies of the HTML pages.
type PageConfig struct {
	Profiles *store.ProfileStore
	Requests *store.RequestQueue
	Service  *service.Profiles
	Relay    *service.Relay
	Auth     *service.AuthService
	Stickers *sticker.Renderer
	Validate *validate.Validator

	SessionTTL        time.Duration
	SecureCookies     bool
	MinPasswordLength int
	StrongPasswords   bool
	Logger            *slog.Logger
}

// Pages serves the public pages and the admin interface as server-rendered
// HTML.
type Pages struct {
	cfg  PageConfig
	tmpl templates
}

// NewPages parses the embedded templates.
func NewPages(cfg PageConfig) (*Pages, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			return t.Local().Format("02.01.2006 15:04")
		},
		"profileURL": cfg.Stickers.ProfileURL,
	}
	tmpl, err := parseTemplates(funcs)
	if err != nil {
		return nil, err
	}
	return &Pages{cfg: cfg, tmpl: tmpl}, nil
}

// render executes a page into a buffer first so that template errors still
// produce a clean 500.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	if v.Flash == "" {
		v.Flash = flashes[r.URL.Query().Get("done")]
	}
	var buf bytes.Buffer
	if err := p.tmpl[name].ExecuteTemplate(&buf, "layout", v); err != nil {
		p.cfg.Logger.ErrorContext(r.Context(), "render page", "page", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError shows a standalone error page.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, status int, title string) {
	p.render(w, r, status, "error.html", view{Title: title})
}

// renderServiceError shows err on the error page with the status chosen by
// classifyError.
func (p *Pages) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classifyError(err)
	if code >= 500 {
		p.cfg.Logger.ErrorContext(r.Context(), "request failed", "error", err)
	}
	p.renderError(w, r, code, msg)
}

// TooManyRequests is the rate limit response for HTML forms.
func (p *Pages) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	p.renderError(w, r, http.StatusTooManyRequests, "Zu viele Anfragen, bitte versuche es später erneut.")
}

// NotFound renders the 404 page.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.renderError(w, r, http.StatusNotFound, "Seite nicht gefunden")
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return r.ParseForm()
}

func profileInput(form url.Values) validate.ProfileInput {
	return validate.ProfileInput{
		Name:        form.Get("name"),
		Email:       form.Get("email"),
		Description: form.Get("description"),
		Sticker:     form.Get("sticker"),
	}
}

// problems returns the field problems of a validation error, or nil.
func problems(err error) []validate.Problem {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return nil
}
