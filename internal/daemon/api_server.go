package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"buildwatch/internal/api"
	"buildwatch/internal/auth"
	"buildwatch/internal/config"
	"buildwatch/internal/logging"
	"buildwatch/internal/monitor"
	"buildwatch/internal/notifications"
	"buildwatch/internal/status"
	"buildwatch/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	hub    *changeHub
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.hub = newChangeHub(srv.logger)
	srv.router = srv.routes(cfg.Paths.APIToken)
	return srv, nil
}

func (s *apiServer) routes(secret string) *mux.Router {
	r := mux.NewRouter()
	r.Use(auth.Middleware(secret))
	r.Use(alertScopeGuard)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/pipelines", s.handlePipelines).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.handleRefreshAll).Methods(http.MethodPost)
	r.HandleFunc("/api/pipelines/{id:.+}/refresh", s.handleRefreshPipeline).Methods(http.MethodPost)
	r.HandleFunc("/api/pipelines/{id:.+}", s.handlePipeline).Methods(http.MethodGet)
	r.HandleFunc("/api/changes", s.hub.serveWS)
	r.HandleFunc("/api/alerts/respond", s.handleAlertResponse).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// alertScopeGuard confines alert-callback tokens to the alert response route.
func alertScopeGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Scope == auth.ScopeAlerts {
			if r.URL.Path != "/api/alerts/respond" {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
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
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	changes, unsubscribe := s.daemon.Subscribe()
	go s.hub.run(ctx, changes, unsubscribe)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server stopped unexpectedly", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon; check api_bind for conflicts"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.daemon.Status(r.Context())
	building, failing, unreachable := api.Summarize(st.Pipelines)
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:          st.Running,
		PID:              st.PID,
		DatabasePath:     st.DatabasePath,
		LockFilePath:     st.LockFilePath,
		APIAddress:       st.APIAddress,
		Pipelines:        len(st.Pipelines),
		Building:         building,
		Failing:          failing,
		Unreachable:      unreachable,
		AlertsAuthorized: st.Alerts.Authorized,
		AlertsEnabled:    st.Alerts.AlertsEnabled,
		Publishing:       st.Publishing,
	})
}

func (s *apiServer) handlePipelines(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.PipelineListResponse{Pipelines: api.FromPipelines(s.daemon.Pipelines())})
}

func (s *apiServer) handlePipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.daemon.Pipeline(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.PipelineResponse{Pipeline: api.FromPipeline(p)})
}

func (s *apiServer) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	err := s.daemon.Refresh(r.Context(), "")
	s.writeJSON(w, http.StatusOK, api.RefreshResponse{
		Pipelines: api.FromPipelines(s.daemon.Pipelines()),
		Errors:    api.ErrorStrings(err),
	})
}

func (s *apiServer) handleRefreshPipeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.daemon.Refresh(r.Context(), id)
	switch {
	case errors.Is(err, monitor.ErrUnknownPipeline):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		p, _ := s.daemon.Pipeline(id)
		s.writeJSON(w, http.StatusBadGateway, api.RefreshResponse{
			Pipelines: api.FromPipelines(single(p)),
			Errors:    api.ErrorStrings(err),
		})
		return
	}
	p, err := s.daemon.Pipeline(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.PipelineResponse{Pipeline: api.FromPipeline(p)})
}

func (s *apiServer) handleAlertResponse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	action := strings.ToLower(strings.TrimSpace(query.Get("action")))
	switch action {
	case notifications.ActionOpen, notifications.ActionRefresh, notifications.ActionDismiss:
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
		return
	}
	pipelineID := strings.TrimSpace(query.Get("pipeline"))
	if pipelineID == "" {
		s.writeError(w, http.StatusBadRequest, "pipeline is required")
		return
	}
	s.daemon.RespondToAlert(notifications.UserResponse{
		ChangeID:   strings.TrimSpace(query.Get("change")),
		PipelineID: pipelineID,
		Action:     action,
		At:         time.Now(),
	})
	s.writeJSON(w, http.StatusAccepted, api.AlertResponse{Accepted: true, Action: action})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func single(p status.Pipeline) []status.Pipeline {
	if p.ID == "" {
		return nil
	}
	return []status.Pipeline{p}
}
