package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server for the graph API. Requests are small JSON
// bodies; WriteTimeout sits above the router's 30s request timeout so
// the handler deadline always fires first.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
