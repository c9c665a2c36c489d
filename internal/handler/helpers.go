package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/service"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

// maxBodySize bounds JSON and form bodies. The largest legitimate payload is
// a 2000 character message.
const maxBodySize = 64 << 10

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeServiceError maps err onto the error envelope with classifyError.
func writeServiceError(w http.ResponseWriter, err error) {
	code, msg := classifyError(err)
	var verr *validate.Error
	if errors.As(err, &verr) {
		writeError(w, code, msg, map[string]interface{}{"problems": verr.Problems})
		return
	}
	writeError(w, code, msg)
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

// classifyError maps service and store errors to an HTTP status and a message
// safe to show to the client. Unknown errors become a generic 500 so that
// file paths from persistence failures never leak.
func classifyError(err error) (int, string) {
	var policy *service.PolicyError
	switch {
	case errors.Is(err, validate.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &policy):
		return http.StatusBadRequest, "Password does not meet the requirements: " + policy.Reason
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, "Username is required"
	case errors.Is(err, service.ErrAlreadyConfigured):
		return http.StatusConflict, "An administrator account already exists"
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, "Profile not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "A record with this id already exists"
	case errors.Is(err, service.ErrDelivery):
		return http.StatusBadGateway, "The message could not be delivered, please try again later"
	case errors.Is(err, store.ErrPersistence):
		return http.StatusInternalServerError, "Data could not be saved"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
