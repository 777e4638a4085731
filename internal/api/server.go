package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/config"
	"github.com/JakeFAU/edital-monitor/internal/metrics"
	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// Monitor is the polling lifecycle the API controls.
type Monitor interface {
	Start(ctx context.Context) error
	Stop() error
	Restart(ctx context.Context) error
	CheckNow() error
	ResetFingerprint() error
	Status() monitor.Status
	Journal() *monitor.Journal
}

// Subscribers manages alert recipients.
type Subscribers interface {
	Add(ctx context.Context, email string) (int, error)
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// ConfigStore exposes and updates the live configuration.
type ConfigStore interface {
	Current() config.Config
	Update(mutate func(*config.Config)) (config.Config, error)
}

// Limiter throttles callers by key.
type Limiter interface {
	Allow(key string) bool
}

// MailTester verifies SMTP connectivity with the given settings.
type MailTester func(ctx context.Context, cfg config.EmailConfig) error

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Monitor     Monitor
	Subscribers Subscribers
	Config      ConfigStore
	TestMail    MailTester
	// SubscribeLimiter throttles public sign-ups per client address. Nil
	// disables throttling.
	SubscribeLimiter Limiter
	// Ready reports whether downstream dependencies are usable. Nil means
	// always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the monitor, subscribers and configuration.
type Server struct {
	router  chi.Router
	deps    Dependencies
	logger  *zap.Logger
	started time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:    deps,
		logger:  logger.Named("api"),
		started: time.Now(),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/logs", s.getLogs)
		r.Get("/config", s.getConfig)
		r.Get("/subscribers", s.countSubscribers)
		r.With(throttleMiddleware(s.deps.SubscribeLimiter, "/api/subscribers")).
			Post("/subscribers", s.addSubscriber)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware(s.deps.Config))
			r.Post("/start", s.start)
			r.Post("/stop", s.stop)
			r.Post("/restart", s.restart)
			r.Post("/check-now", s.checkNow)
			r.Post("/reset-hash", s.resetHash)
			r.Post("/clear-logs", s.clearLogs)
			r.Post("/test-email", s.testEmail)
			r.Post("/config", s.updateConfig)
			r.Get("/diagnostic", s.diagnostic)
			r.Get("/subscribers/list", s.listSubscribers)
			r.Delete("/subscribers/{email}", s.removeSubscriber)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
