package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/liamcoop/actionx/action"
	"github.com/liamcoop/actionx/internal/config"
	"github.com/liamcoop/actionx/internal/logger"
	"github.com/liamcoop/actionx/internal/tracing"
	"github.com/liamcoop/actionx/schedule"
)

type Server struct {
	db             *sql.DB
	manager        *schedule.Manager
	router         *chi.Mux
	handler        http.Handler
	requestTimeout time.Duration
}

func NewServer(databaseURL string, requestTimeout time.Duration) (*Server, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := newServer(db, requestTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithDB creates a server over an already opened database
func NewServerWithDB(db *sql.DB) (*Server, error) {
	return newServer(db, 60*time.Second)
}

func newServer(db *sql.DB, requestTimeout time.Duration) (*Server, error) {
	manager := schedule.NewManager(db)

	logger.Info("loading cases from database")
	if err := manager.LoadAllCases(); err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}
	logger.Info("cases loaded", "count", len(manager.ListCases()))

	s := &Server{
		db:             db,
		manager:        manager,
		requestTimeout: requestTimeout,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)
	r.Get("/api/v1/keywords/{name}", s.handleKeyword)

	r.Route("/api/v1/cases", func(r chi.Router) {
		r.Get("/", s.handleListCases)
		r.Post("/", s.handleCreateCase)

		r.Route("/{caseId}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteCase)
			r.Post("/step", s.handleStep)
			r.Get("/fires", s.handleListFires)

			r.Post("/actions", s.handleCreateAction)
			r.Get("/actions", s.handleListActions)
			r.Get("/actions/{name}", s.handleGetAction)
			r.Put("/actions/{name}", s.handleUpdateAction)
			r.Get("/actions/{name}/definition", s.handleGetDefinition)
			r.Delete("/actions/{name}", s.handleDeleteAction)
			r.Get("/actions/{name}/conditions", s.handleGetConditions)
			r.Get("/actions/{name}/lines", s.handleGetLines)
		})
	})

	s.router = r
	s.handler = otelhttp.NewHandler(r, "actionx")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		CasesLoaded: len(s.manager.ListCases()),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, logger.Snapshot())
}

func (s *Server) handleKeyword(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	respondJSON(w, http.StatusOK, map[string]any{
		"name":  name,
		"valid": action.ValidKeyword(name),
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CasesListResponse{Cases: s.manager.ListCases()})
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	c, err := s.manager.CreateCase(req.Name, req.Derived)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to create case", err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")

	if err := s.manager.DeleteCase(caseID); err != nil {
		respondError(w, statusFor(err), "failed to delete case", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}

	var req CreateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	a, err := sched.AddAction(req.definition())
	if err != nil {
		respondError(w, statusFor(err), "failed to add action", err)
		return
	}

	respondJSON(w, http.StatusCreated, newActionResponse(a, req.StartTime))
}

// handleUpdateAction redefines an existing action. The body name may be
// omitted but must match the path when given.
func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}

	var req CreateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	name := chi.URLParam(r, "name")
	if req.Name == "" {
		req.Name = name
	}
	if req.Name != name {
		respondError(w, http.StatusBadRequest, "action name does not match path", fmt.Errorf("%q != %q", req.Name, name))
		return
	}

	a, err := sched.UpdateAction(req.definition())
	if err != nil {
		respondError(w, statusFor(err), "failed to update action", err)
		return
	}

	respondJSON(w, http.StatusOK, newActionResponse(a, req.StartTime))
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}

	def, err := sched.Definition(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, statusFor(err), "failed to get definition", err)
		return
	}

	respondJSON(w, http.StatusOK, def)
}

// handleListActions reports each action's gate state at the optional ?at=
// simulation time (RFC 3339), defaulting to the action's start time
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}
	at, err := queryTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid at parameter", err)
		return
	}

	resp := ActionsListResponse{Actions: []ActionResponse{}}
	for _, a := range sched.Actions().All() {
		resp.Actions = append(resp.Actions, newActionResponse(a, atOrStart(at, a)))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.action(w, r)
	if !ok {
		return
	}
	at, err := queryTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid at parameter", err)
		return
	}

	respondJSON(w, http.StatusOK, newActionResponse(a, atOrStart(at, a)))
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}

	if err := sched.RemoveAction(chi.URLParam(r, "name")); err != nil {
		respondError(w, statusFor(err), "failed to delete action", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConditions(w http.ResponseWriter, r *http.Request) {
	a, ok := s.action(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conditions": a.Conditions(),
	})
}

func (s *Server) handleGetLines(w http.ResponseWriter, r *http.Request) {
	a, ok := s.action(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"lines": a.SerializeToLines(),
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return
	}

	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Time.IsZero() {
		respondError(w, http.StatusBadRequest, "time is required", nil)
		return
	}

	startTime := time.Now()
	fires, err := sched.Step(r.Context(), req.Time, req.Summary)
	if err != nil {
		respondError(w, statusFor(err), "report step failed", err)
		return
	}
	if fires == nil {
		fires = []*schedule.FireRecord{}
	}

	respondJSON(w, http.StatusOK, StepResponse{
		Fires:          fires,
		EvaluationTime: time.Since(startTime).String(),
	})
}

func (s *Server) handleListFires(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")

	fires, err := s.manager.Fires(caseID)
	if err != nil {
		respondError(w, statusFor(err), "failed to list fires", err)
		return
	}
	if fires == nil {
		fires = []*schedule.FireRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"fires": fires,
	})
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) (*schedule.Schedule, bool) {
	sched, err := s.manager.GetSchedule(chi.URLParam(r, "caseId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "case not found", err)
		return nil, false
	}
	return sched, true
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) (*action.ActionX, bool) {
	sched, ok := s.schedule(w, r)
	if !ok {
		return nil, false
	}
	a, err := sched.Actions().Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusNotFound, "action not found", err)
		return nil, false
	}
	return a, true
}

func queryTime(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("at")
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func atOrStart(at time.Time, a *action.ActionX) time.Time {
	if at.IsZero() {
		return a.StartTime()
	}
	return at
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		malformed  *action.MalformedConditionError
		structural *action.StructuralRecordError
		unresolved *action.UnresolvedQuantityError
	)
	switch {
	case errors.Is(err, schedule.ErrCaseNotFound), errors.Is(err, action.ErrActionNotFound):
		return http.StatusNotFound
	case errors.Is(err, action.ErrActionExists):
		return http.StatusConflict
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity
	case errors.As(err, &malformed), errors.As(err, &structural), errors.Is(err, schedule.ErrInvalidDefinition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Error(message, "status", status, "error", err)
	case status >= 400:
		logger.WarnHttp4xx()
	}

	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(context.Background(), logger.Options{
		Level:       cfg.LogLevel,
		SampleRate:  cfg.ErrorSampleRate,
		OTELEnabled: cfg.OTELEnabled,
		ServiceName: cfg.ServiceName,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.ServiceName, cfg.TracesEndpoint)
	if err != nil {
		logger.Error("failed to setup tracing, continuing without spans", "error", err)
	}

	server, err := NewServer(cfg.DatabaseURL, cfg.RequestTimeout)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.db.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
