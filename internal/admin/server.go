package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"worldclear/internal/controller"
	"worldclear/internal/loop"
	"worldclear/internal/orchestrator"
)

// Controller is the part of the controller the admin surface drives.
type Controller interface {
	Status() controller.Status
	Clear(ctx context.Context, kind, scope string) (int, error)
	Scope(ctx context.Context, name string) (controller.ScopeReport, error)
	Scopes(ctx context.Context) ([]controller.ScopeReport, error)
	Reload(ctx context.Context) error
}

type Server struct {
	Controller Controller
	tpl        *template.Template
	mux        *http.ServeMux
	log        *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

func NewServer(c Controller, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{Controller: c, tpl: tpl, mux: http.NewServeMux(), log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /scopes", s.handleScopes)
	s.mux.HandleFunc("POST /clear", s.handleClear)
	s.mux.HandleFunc("POST /reload", s.handleReload)
}

// Handler exposes the routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("admin server listening", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	scopes, err := s.Controller.Scopes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	data := struct {
		Status controller.Status
		Scopes []controller.ScopeReport
	}{
		Status: s.Controller.Status(),
		Scopes: scopes,
	}
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Warn("render index failed", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Controller.Status())
}

func (s *Server) handleScopes(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		report, err := s.Controller.Scope(r.Context(), name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
		return
	}
	scopes, err := s.Controller.Scopes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scopes)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	scope := r.URL.Query().Get("scope")
	n, err := s.Controller.Clear(r.Context(), kind, scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("manual clear", "type", kind, "scope", scope, "removed", n)
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Controller.Reload(r.Context()); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrUnknownScope):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrUnknownCategory):
		status = http.StatusBadRequest
	case errors.Is(err, loop.ErrStopped):
		status = http.StatusServiceUnavailable
	default:
		s.log.Error("admin request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response failed", "status", status, "err", err)
	}
}
