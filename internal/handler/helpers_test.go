package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

// ---------------------------------------------------------------------------
// classifyError tests
// ---------------------------------------------------------------------------

func TestClassifyError(t *testing.T) {
	invalid := &validate.Error{Problems: []validate.Problem{{Field: "email", Message: "a valid e-mail address is required"}}}
	persist := &store.PersistError{Op: "write", Path: "/srv/cryams/data/profiles.json", Err: errors.New("disk full")}

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"validation", invalid, http.StatusBadRequest, "a valid e-mail address is required"},
		{"password policy", &service.PolicyError{Reason: "must be at least 12 characters long"}, http.StatusBadRequest, "must be at least 12 characters long"},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"empty username", fmt.Errorf("%w: must not be empty", service.ErrInvalidUsername), http.StatusBadRequest, "Username"},
		{"already configured", service.ErrAlreadyConfigured, http.StatusConflict, "already exists"},
		{"unknown profile", service.ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
		{"uuid conflict", fmt.Errorf("approve: %w", store.ErrConflict), http.StatusConflict, "already exists"},
		{"smtp failure", fmt.Errorf("%w: dial tcp: refused", service.ErrDelivery), http.StatusBadGateway, "could not be delivered"},
		{"persistence", persist, http.StatusInternalServerError, "Data could not be saved"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := classifyError(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.wantMsg)
			}
			if strings.Contains(msg, "/srv/cryams") {
				t.Errorf("message leaks a file path: %q", msg)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// writeServiceError tests
// ---------------------------------------------------------------------------

func TestWriteServiceErrorIncludesProblems(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(rr, &validate.Error{Problems: []validate.Problem{
		{Field: "name", Message: "name must be 2 to 50 characters"},
	}})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Context struct {
				Problems []validate.Problem `json:"problems"`
			} `json:"context"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != http.StatusBadRequest {
		t.Errorf("error.code = %d", resp.Error.Code)
	}
	if len(resp.Error.Context.Problems) != 1 || resp.Error.Context.Problems[0].Field != "name" {
		t.Errorf("problems = %+v", resp.Error.Context.Problems)
	}
}

func TestReadJSONRejectsOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodySize) + `"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))
	rr := httptest.NewRecorder()

	var v map[string]string
	if err := readJSON(rr, r, &v); err == nil {
		t.Error("expected an error for a body over the limit")
	}
}
