// Package server exposes the planner over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meal-planner/internal/apperr"
	"meal-planner/internal/config"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/rollover"
	"meal-planner/internal/shopping"
	"meal-planner/internal/week"
)

// PlanStore reads plans and applies single-slot edits.
type PlanStore interface {
	Get(ctx context.Context, weekID week.ID) (*planner.WeeklyPlan, error)
	ToggleLock(ctx context.Context, weekID week.ID, day planner.Day, meal planner.MealType) (bool, error)
	ClearMeal(ctx context.Context, weekID week.ID, day planner.Day, meal planner.MealType) error
}

// ListStore reads shopping lists and toggles items.
type ListStore interface {
	Get(ctx context.Context, weekID week.ID) (*shopping.List, error)
	ToggleItem(ctx context.Context, weekID week.ID, index int) (bool, error)
}

// SlotSwapper replaces one slot.
type SlotSwapper interface {
	Swap(ctx context.Context, req planner.SwapRequest) (*planner.SwapResult, error)
}

// RolloverRunner runs the scheduled job.
type RolloverRunner interface {
	Run(ctx context.Context) (*rollover.Report, error)
}

// Deps are the collaborators of the HTTP surface. Pusher is nil when external
// sync is not configured.
type Deps struct {
	Plans      PlanStore
	Lists      ListStore
	Titles     rollover.TitleSource
	Generator  rollover.PlanGenerator
	Swapper    SlotSwapper
	Aggregator rollover.ListGenerator
	Pusher     rollover.ListPusher
	Rollover   RolloverRunner
}

// Server holds the router and its dependencies.
type Server struct {
	deps   Deps
	cfg    *config.Config
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(deps Deps, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{deps: deps, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireCronSecret)
		r.Get("/cron/weekly-plan", s.handleCron)
		r.Post("/cron/weekly-plan", s.handleCron)
	})

	r.Route("/plans/{weekID}", func(r chi.Router) {
		r.Use(weekIDFromPath)
		r.Get("/", s.handleGetPlan)
		r.Post("/generate", s.handleGenerate)
		r.Route("/slots/{day}/{meal}", func(r chi.Router) {
			r.Post("/swap", s.handleSwap)
			r.Post("/lock", s.handleToggleLock)
			r.Post("/clear", s.handleClear)
		})
		r.Get("/shopping", s.handleGetList)
		r.Post("/shopping", s.handleGenerateList)
		r.Post("/shopping/items/{index}/toggle", s.handleToggleItem)
		r.Post("/shopping/sync", s.handleSync)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"system": metrics.GetSysHealth(filepath.Dir(s.cfg.DatabasePath)),
	})
}

func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		secret := s.cfg.Rollover.CronSecret
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers with a message that is safe to show to the user.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": apperr.UserMessage(err)})
}
