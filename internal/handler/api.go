package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/server/middleware"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

// APIHandler serves the admin JSON API under /api/v1.
type APIHandler struct {
	profiles   *store.ProfileStore
	requests   *store.RequestQueue
	svc        *service.Profiles
	authSvc    *service.AuthService
	validator  *validate.Validator
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(profiles *store.ProfileStore, requests *store.RequestQueue, svc *service.Profiles, authSvc *service.AuthService, v *validate.Validator, sessionTTL time.Duration, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		profiles:   profiles,
		requests:   requests,
		svc:        svc,
		authSvc:    authSvc,
		validator:  v,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	Username  string `json:"username"`
}

// Login authenticates the administrator and returns a JWT session token.
// POST /api/v1/session
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req validate.LoginInput
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req, err := h.validator.Login(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok, err := h.authSvc.VerifyLogin(req.Username, req.Password)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "login bookkeeping failed", "error", err)
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authSvc.IssueJWT(req.Username, h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		Username:  req.Username,
	})
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

// ListProfiles returns all profiles in creation order.
// GET /api/v1/profiles
func (h *APIHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.profiles.List()
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: profiles,
		Meta:     &model.ResponseMeta{Count: len(profiles)},
	})
}

// CreateProfile creates an approved profile without moderation.
// POST /api/v1/profiles
func (h *APIHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var in validate.ProfileInput
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.CreateProfile(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "profile created", "uuid", p.UUID, "by", principalName(r))
	writeJSON(w, http.StatusCreated, p)
}

// GetProfile returns a single profile.
// GET /api/v1/profiles/{uuid}
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.profiles.Get(chi.URLParam(r, "uuid"))
	if !ok {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProfile removes a profile; its sticker link stops working at once.
// DELETE /api/v1/profiles/{uuid}
func (h *APIHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	ok, err := h.profiles.Delete(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	h.logger.InfoContext(r.Context(), "profile deleted", "uuid", id, "by", principalName(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ---------------------------------------------------------------------------
// Moderation
// ---------------------------------------------------------------------------

// ListRequests returns the pending requests in submission order.
// GET /api/v1/requests
func (h *APIHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests := h.requests.List()
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: requests,
		Meta:     &model.ResponseMeta{Count: len(requests)},
	})
}

// ApproveRequest turns a pending request into a profile.
// POST /api/v1/requests/{uuid}/approve
func (h *APIHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	p, err := h.requests.Approve(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	h.logger.InfoContext(r.Context(), "request approved", "uuid", id, "by", principalName(r))
	writeJSON(w, http.StatusOK, p)
}

// RejectRequest discards a pending request.
// POST /api/v1/requests/{uuid}/reject
func (h *APIHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	ok, err := h.requests.Reject(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	h.logger.InfoContext(r.Context(), "request rejected", "uuid", id, "by", principalName(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func principalName(r *http.Request) string {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p.Username
	}
	return ""
}
