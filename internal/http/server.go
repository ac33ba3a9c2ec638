package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ignatij/apipulse/internal/auth"
	"github.com/ignatij/apipulse/internal/log"
	"github.com/ignatij/apipulse/pkg/service"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Options configures the router beyond its store and token verifier.
type Options struct {
	// ServiceRoleKey is the elevated credential accepted on /engine routes.
	ServiceRoleKey string
	// CORSAllowedOrigin defaults to "*".
	CORSAllowedOrigin string
	// Registry receives the HTTP and task metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

type server struct {
	tasks      *service.TaskService
	engine     *service.EngineService
	verifier   auth.Verifier
	serviceKey string
	metrics    *metrics
}

// NewRouter wires every route against a single shared store.
func NewRouter(store storage.Store, verifier auth.Verifier, opts Options) http.Handler {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	origin := opts.CORSAllowedOrigin
	if origin == "" {
		origin = "*"
	}
	s := &server{
		tasks:      service.NewTaskService(store, log.GetLogger()),
		engine:     service.NewEngineService(store, log.GetLogger()),
		verifier:   verifier,
		serviceKey: opts.ServiceRoleKey,
		metrics:    newMetrics(reg),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors(origin))
	r.Use(s.metrics.instrument)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", HealthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/tasks", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/", s.createTask)
		r.Get("/", s.listTasks)
		r.Patch("/{id}", s.toggleTask)
		r.Get("/{id}/logs", s.listLogs)
	})

	r.Route("/engine", func(r chi.Router) {
		r.Use(s.requireServiceKey)
		r.Get("/tasks", s.engineActiveTasks)
		r.Post("/tasks/{id}/logs", s.engineRecordLog)
	})

	return r
}

// StartServer serves handler on port until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Infof("Starting API Pulse server on :%s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.GetLogger().Infof("Shutting down API Pulse server")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "API Pulse server is running")
}
