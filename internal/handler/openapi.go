package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cryams/cryams/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI document of the admin JSON API.
type OpenAPIHandler struct {
	baseURL string
	version string

	once sync.Once
	doc  []byte
	err  error
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(baseURL, version string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL, version: version}
}

// ServeSpec returns the document. It is generated once; the API surface is
// static.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.err = json.Marshal(openapi.Generate(h.baseURL, h.version))
	})
	if h.err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate OpenAPI spec")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.doc)
}
