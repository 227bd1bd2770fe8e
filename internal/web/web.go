package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"horaire/internal/config"
	"horaire/internal/generate"
	appLog "horaire/internal/log"
	"horaire/internal/model"
)

// Server exposes the latest generated schedule over HTTP while `watch`
// is running.
type Server struct {
	listen    string
	basicAuth *config.BasicAuthConfig
	mux       *http.ServeMux

	mu     sync.RWMutex
	latest *generate.Result
}

// NewServer constructs a Server from the watch section of the config.
func NewServer(cfg config.WatchConfig) *Server {
	s := &Server{
		listen:    cfg.Listen,
		basicAuth: cfg.BasicAuth,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Publish replaces the document served by the server.
func (s *Server) Publish(res *generate.Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
}

func (s *Server) current() *generate.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.basicAuth != nil && s.basicAuth.Username != "" && s.basicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.basicAuth.Username
	password := s.basicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Horaire", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/schedule.xml", s.handleScheduleXML)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleScheduleXML serves the bytes of the last generated document,
// exactly as written to disk.
func (s *Server) handleScheduleXML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.current()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no schedule generated yet")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Last-Modified", res.GeneratedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(res.Data)
	}
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rooms       []string    `json:"rooms"`
	FailedRooms []string    `json:"failed_rooms,omitempty"`
	Events      int         `json:"events"`
	Days        []model.Day `json:"days"`
}

// handleSchedule returns a JSON view of the last generated calendar.
//
// GET /api/schedule?date=20250610 narrows the view to one day.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.current()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no schedule generated yet")
		return
	}

	days := res.Days
	if date := r.URL.Query().Get("date"); date != "" {
		days = []model.Day{}
		for _, d := range res.Days {
			if d.Key == date {
				days = append(days, d)
			}
		}
	}
	if days == nil {
		days = []model.Day{}
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Rooms:       res.Rooms,
		FailedRooms: res.FailedRooms,
		Events:      res.Events,
		Days:        days,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
