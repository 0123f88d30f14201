package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

const maxImportBytes = 16 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	router chi.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	srv.router = srv.routes()
	return srv
}

func (s *apiServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(bearerAuthMiddleware(s.token))
	r.Use(s.daemon.metrics.Middleware())

	r.Get("/", s.handlePage)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.daemon.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueView)
			r.Post("/", s.handleQueueAdd)
			r.Delete("/", s.handleQueueClear)
			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", s.handleQueueDescribe)
				r.Patch("/", s.handleQueueEdit)
				r.Delete("/", s.handleQueueRemove)
				r.Post("/search", s.handleQueueSearch)
			})
		})
		r.Get("/settings", s.handleSettingsGet)
		r.Patch("/settings", s.handleSettingsUpdate)
		r.Get("/engines", s.handleEngines)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
	return r
}

// ServeHTTP lets tests drive the router without a listener.
func (s *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
				logging.String(logging.FieldImpact, "management page unavailable until restart"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "ok"
	if !s.daemon.Running() {
		status = http.StatusServiceUnavailable
		state = "stopped"
	}
	writeJSON(w, status, map[string]string{"status": state})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleQueueView(w http.ResponseWriter, r *http.Request) {
	var ordering settings.Ordering
	if raw := strings.TrimSpace(r.URL.Query().Get("ordering")); raw != "" {
		parsed, err := settings.ParseOrdering(raw)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		ordering = parsed
	}
	view, err := s.daemon.View(r.Context(), ordering)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	if !s.decode(w, r, &req) {
		return
	}
	row, err := s.daemon.Add(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Clear(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleQueueDescribe(w http.ResponseWriter, r *http.Request) {
	row, err := s.daemon.Describe(r.Context(), refParam(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *apiServer) handleQueueEdit(w http.ResponseWriter, r *http.Request) {
	var req api.EditRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Ref = refParam(r)
	row, err := s.daemon.Edit(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *apiServer) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Remove(r.Context(), refParam(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleQueueSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	req.Ref = refParam(r)
	result, err := s.daemon.Search(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	current, err := s.daemon.Settings(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *apiServer) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var update settings.Update
	if !s.decode(w, r, &update) {
		return
	}
	updated, err := s.daemon.UpdateSettings(r.Context(), update)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *apiServer) handleEngines(w http.ResponseWriter, r *http.Request) {
	names, err := s.daemon.EngineNames(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"engines": names})
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	dump, err := s.daemon.Export(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	body, err := api.EncodeLegacy(dump, format)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	contentType := "application/json"
	if format == "yaml" {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=searchq-export.%s", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	dump, err := api.ParseLegacy(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.Import(r.Context(), dump, replace)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func refParam(r *http.Request) api.Ref {
	return api.ParseRef(chi.URLParam(r, "ref"))
}

// statusFor maps domain sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, settings.ErrInvalidOrdering),
		errors.Is(err, api.ErrEmptyQuery),
		errors.Is(err, api.ErrInvalidRef),
		errors.Is(err, api.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, engines.ErrUnknownEngine),
		errors.Is(err, engines.ErrNoSearchURL):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrNoBrowserHost):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBrowserSearchTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
		)
		message = "internal error"
	}
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
