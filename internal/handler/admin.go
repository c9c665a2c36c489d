package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/server/middleware"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

const (
	adminPath = "/admin"
	loginPath = "/admin/login"
	setupPath = "/admin/setup"
)

// LoginPath is where RequireSession sends requests without a session.
const LoginPath = loginPath

func (p *Pages) passwordView(form map[string][]string) view {
	return view{
		Form:              form,
		MinPasswordLength: p.cfg.MinPasswordLength,
		StrongPasswords:   p.cfg.StrongPasswords,
	}
}

func (p *Pages) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   p.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (p *Pages) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// ---------------------------------------------------------------------------
// Setup and session
// ---------------------------------------------------------------------------

// SetupForm shows the first-run form. Once an account exists it redirects to
// the login page.
// GET /admin/setup
func (p *Pages) SetupForm(w http.ResponseWriter, r *http.Request) {
	if !p.cfg.Auth.NeedsSetup() {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	v := p.passwordView(nil)
	v.Title = "Einrichtung"
	p.render(w, r, http.StatusOK, "setup.html", v)
}

// Setup creates the administrator account.
// POST /admin/setup
func (p *Pages) Setup(w http.ResponseWriter, r *http.Request) {
	if !p.cfg.Auth.NeedsSetup() {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}

	v := p.passwordView(map[string][]string{"username": {r.PostForm.Get("username")}})
	v.Title = "Einrichtung"

	in, err := p.cfg.Validate.Login(validate.LoginInput{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		v.Problems = problems(err)
		p.render(w, r, http.StatusBadRequest, "setup.html", v)
		return
	}
	if in.Password != r.PostForm.Get("confirm") {
		v.Error = "Die Passwörter stimmen nicht überein."
		p.render(w, r, http.StatusBadRequest, "setup.html", v)
		return
	}

	err = p.cfg.Auth.CreateAdminConfig(in.Username, in.Password)
	switch {
	case err == nil:
		p.cfg.Logger.InfoContext(r.Context(), "admin account created", "username", in.Username)
		http.Redirect(w, r, loginPath+"?done=setup", http.StatusSeeOther)
	case errors.Is(err, service.ErrAlreadyConfigured):
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	case errors.Is(err, service.ErrPasswordPolicy), errors.Is(err, service.ErrInvalidUsername):
		code, msg := classifyError(err)
		v.Error = msg
		p.render(w, r, code, "setup.html", v)
	default:
		p.renderServiceError(w, r, err)
	}
}

// LoginForm shows the login page, or the setup page while no account exists.
// GET /admin/login
func (p *Pages) LoginForm(w http.ResponseWriter, r *http.Request) {
	if p.cfg.Auth.NeedsSetup() {
		http.Redirect(w, r, setupPath, http.StatusSeeOther)
		return
	}
	p.render(w, r, http.StatusOK, "login.html", view{Title: "Anmeldung"})
}

// Login checks the credentials and sets the session cookie.
// POST /admin/login
func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}
	failed := view{
		Title: "Anmeldung",
		Error: "Ungültige Anmeldedaten.",
		Form:  map[string][]string{"username": {r.PostForm.Get("username")}},
	}

	in, err := p.cfg.Validate.Login(validate.LoginInput{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		p.render(w, r, http.StatusUnauthorized, "login.html", failed)
		return
	}

	ok, err := p.cfg.Auth.VerifyLogin(in.Username, in.Password)
	if err != nil {
		p.renderServiceError(w, r, err)
		return
	}
	if !ok {
		p.cfg.Logger.WarnContext(r.Context(), "admin login failed")
		p.render(w, r, http.StatusUnauthorized, "login.html", failed)
		return
	}

	token, err := p.cfg.Auth.IssueJWT(in.Username, p.cfg.SessionTTL)
	if err != nil {
		p.renderServiceError(w, r, err)
		return
	}
	p.setSession(w, token)
	http.Redirect(w, r, adminPath, http.StatusSeeOther)
}

// Logout clears the session cookie.
// POST /admin/logout
func (p *Pages) Logout(w http.ResponseWriter, r *http.Request) {
	p.clearSession(w)
	http.Redirect(w, r, loginPath+"?done=loggedout", http.StatusSeeOther)
}

// ---------------------------------------------------------------------------
// Dashboard and moderation
// ---------------------------------------------------------------------------

func (p *Pages) dashboardView() view {
	v := view{
		Title:    "Verwaltung",
		Presets:  model.StickerPresets,
		Requests: p.cfg.Requests.List(),
		Profiles: p.cfg.Profiles.List(),
	}
	if info, ok := p.cfg.Auth.Admin(); ok {
		v.Admin = &info
	}
	return v
}

// Dashboard lists pending requests and profiles.
// GET /admin
func (p *Pages) Dashboard(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "dashboard.html", p.dashboardView())
}

// CreateProfile creates an approved profile directly.
// POST /admin/profiles
func (p *Pages) CreateProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}
	prof, err := p.cfg.Service.CreateProfile(profileInput(r.PostForm))
	if err != nil {
		if errors.Is(err, validate.ErrInvalid) {
			v := p.dashboardView()
			v.Problems = problems(err)
			v.Form = r.PostForm
			p.render(w, r, http.StatusBadRequest, "dashboard.html", v)
			return
		}
		p.renderServiceError(w, r, err)
		return
	}
	p.cfg.Logger.InfoContext(r.Context(), "profile created", "uuid", prof.UUID, "by", principalName(r))
	http.Redirect(w, r, adminPath+"?done=created", http.StatusSeeOther)
}

// DeleteProfile removes a profile.
// POST /admin/profiles/{uuid}/delete
func (p *Pages) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	ok, err := p.cfg.Profiles.Delete(id)
	if err != nil {
		p.renderServiceError(w, r, err)
		return
	}
	if !ok {
		http.Redirect(w, r, adminPath+"?done=missing", http.StatusSeeOther)
		return
	}
	p.cfg.Logger.InfoContext(r.Context(), "profile deleted", "uuid", id, "by", principalName(r))
	http.Redirect(w, r, adminPath+"?done=deleted", http.StatusSeeOther)
}

// ApproveRequest turns a pending request into a profile.
// POST /admin/requests/{uuid}/approve
func (p *Pages) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	prof, err := p.cfg.Requests.Approve(id)
	switch {
	case errors.Is(err, store.ErrConflict):
		http.Redirect(w, r, adminPath+"?done=conflict", http.StatusSeeOther)
	case err != nil:
		p.renderServiceError(w, r, err)
	case prof == nil:
		http.Redirect(w, r, adminPath+"?done=missing", http.StatusSeeOther)
	default:
		p.cfg.Logger.InfoContext(r.Context(), "request approved", "uuid", id, "by", principalName(r))
		http.Redirect(w, r, adminPath+"?done=approved", http.StatusSeeOther)
	}
}

// RejectRequest discards a pending request.
// POST /admin/requests/{uuid}/reject
func (p *Pages) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	ok, err := p.cfg.Requests.Reject(id)
	switch {
	case err != nil:
		p.renderServiceError(w, r, err)
	case !ok:
		http.Redirect(w, r, adminPath+"?done=missing", http.StatusSeeOther)
	default:
		p.cfg.Logger.InfoContext(r.Context(), "request rejected", "uuid", id, "by", principalName(r))
		http.Redirect(w, r, adminPath+"?done=rejected", http.StatusSeeOther)
	}
}

// StickerPDF renders the printable sticker sheet of a profile.
// GET /admin/profiles/{uuid}/sticker.pdf
func (p *Pages) StickerPDF(w http.ResponseWriter, r *http.Request) {
	prof, ok := p.cfg.Profiles.Get(chi.URLParam(r, "uuid"))
	if !ok {
		p.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := p.cfg.Stickers.Render(&buf, prof); err != nil {
		p.renderServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="sticker-`+prof.UUID+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

// ---------------------------------------------------------------------------
// Password
// ---------------------------------------------------------------------------

// PasswordForm shows the password change form.
// GET /admin/password
func (p *Pages) PasswordForm(w http.ResponseWriter, r *http.Request) {
	v := p.passwordView(nil)
	v.Title = "Passwort ändern"
	p.render(w, r, http.StatusOK, "password.html", v)
}

// ChangePassword replaces the administrator password. Existing sessions end;
// the current browser gets a fresh session cookie.
// POST /admin/password
func (p *Pages) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		p.renderError(w, r, http.StatusBadRequest, "Ungültiges Formular")
		return
	}
	v := p.passwordView(nil)
	v.Title = "Passwort ändern"

	newPassword := r.PostForm.Get("password")
	if newPassword != r.PostForm.Get("confirm") {
		v.Error = "Die Passwörter stimmen nicht überein."
		p.render(w, r, http.StatusBadRequest, "password.html", v)
		return
	}

	err := p.cfg.Auth.ChangePassword(r.PostForm.Get("current"), newPassword)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		v.Error = "Das aktuelle Passwort ist falsch."
		p.render(w, r, http.StatusBadRequest, "password.html", v)
		return
	case errors.Is(err, service.ErrPasswordPolicy):
		_, v.Error = classifyError(err)
		p.render(w, r, http.StatusBadRequest, "password.html", v)
		return
	default:
		p.renderServiceError(w, r, err)
		return
	}

	username := principalName(r)
	p.cfg.Logger.InfoContext(r.Context(), "admin password changed", "username", username)
	if token, err := p.cfg.Auth.IssueJWT(username, p.cfg.SessionTTL); err == nil {
		p.setSession(w, token)
	}
	http.Redirect(w, r, adminPath+"?done=password", http.StatusSeeOther)
}
