// Package ui holds the static assets of the HTML pages.
package ui

import (
	"embed"
	"net/http"
	"strings"
)

// Static embeds the stylesheet and other assets under static/.
//
//go:embed all:static
var Static embed.FS

// Handler serves Static under /static/. Directory listings are not served.
func Handler() http.Handler {
	fileServer := http.FileServer(http.FS(Static))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}
