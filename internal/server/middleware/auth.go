package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cryams/cryams/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"

	// SessionCookie carries the admin session token for the HTML pages.
	SessionCookie = "cryams_session"
)

// Principal is the authenticated administrator making the request.
type Principal struct {
	Username string
	Method   string // "cookie" or "bearer"
}

// TokenValidator validates session tokens. *service.AuthService implements it.
type TokenValidator interface {
	ValidateJWT(token string) (*service.Principal, error)
}

// Authenticate protects JSON endpoints. It accepts a Bearer token in the
// Authorization header or the session cookie and answers 401 otherwise.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, reason := authenticate(r, v)
			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized, reason)
				return
			}
			next.ServeHTTP(w, withPrincipal(r, principal))
		})
	}
}

// RequireSession protects HTML pages. Requests without a valid session
// cookie are redirected to loginPath.
func RequireSession(v TokenValidator, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := fromCookie(r, v)
			if principal == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, withPrincipal(r, principal))
		})
	}
}

func authenticate(r *http.Request, v TokenValidator) (*Principal, string) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return nil, "Unsupported authorization scheme"
		}
		p, err := v.ValidateJWT(token)
		if err != nil {
			return nil, "Invalid token"
		}
		return &Principal{Username: p.Username, Method: "bearer"}, ""
	}
	if p := fromCookie(r, v); p != nil {
		return p, ""
	}
	return nil, "Authentication required. Provide a Bearer token."
}

func fromCookie(r *http.Request, v TokenValidator) *Principal {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	p, err := v.ValidateJWT(c.Value)
	if err != nil {
		return nil
	}
	return &Principal{Username: p.Username, Method: "cookie"}
}

func withPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), AuthPrincipalKey, p))
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	case 429:
		return "429"
	default:
		return "500"
	}
}
