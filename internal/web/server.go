// Package web provides an HTTP status server for the zonelight daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/zonelight/internal/metrics"
	"github.com/sweeney/zonelight/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
// m may be nil, in which case /metrics is not served. Requests are logged to
// accessLog in Apache common format when it is non-nil.
func New(addr string, tracker *status.Tracker, m *metrics.Metrics, accessLog io.Writer) *Server {
	s := &Server{tracker: tracker}

	r := mux.NewRouter()
	r.Handle("/", m.WrapHandler("/", http.HandlerFunc(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/index.html", m.WrapHandler("/", http.HandlerFunc(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/index.json", m.WrapHandler("/index.json", http.HandlerFunc(s.handleJSON))).Methods(http.MethodGet)
	r.Handle("/healthz", m.WrapHandler("/healthz", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, r)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: h,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// healthy requires every configured transport to be connected.
func healthy(snap status.Snapshot) bool {
	if snap.Config.Broker != "" && !snap.MQTTConnected {
		return false
	}
	if snap.Config.BLE && !snap.BLEConnected {
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !healthy(s.tracker.Snapshot()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "degraded\n")
		return
	}
	io.WriteString(w, "ok\n")
}
