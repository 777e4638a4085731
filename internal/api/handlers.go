package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/config"
	"github.com/JakeFAU/edital-monitor/internal/monitor"
	"github.com/JakeFAU/edital-monitor/internal/subscribers"
)

const defaultLogLimit = 50

// publicStatus is the status shape served without credentials. Generation
// ids and fingerprints are only returned on admin routes.
type publicStatus struct {
	Running         bool       `json:"running"`
	CycleCount      int        `json:"cycle_count"`
	LastCheck       *time.Time `json:"last_check"`
	NextCheck       *time.Time `json:"next_check"`
	KeywordsFound   []string   `json:"keywords_found"`
	ChangesDetected int        `json:"changes_detected"`
}

func newPublicStatus(st monitor.Status) publicStatus {
	return publicStatus{
		Running:         st.Running,
		CycleCount:      st.CycleCount,
		LastCheck:       st.LastCheck,
		NextCheck:       st.NextCheck,
		KeywordsFound:   st.KeywordsFound,
		ChangesDetected: st.ChangesDetected,
	}
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, newPublicStatus(s.deps.Monitor.Status()))
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": s.deps.Monitor.Journal().Recent(limit)})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Config.Current().Masked())
}

func (s *Server) countSubscribers(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Subscribers.Count(r.Context())
	if err != nil {
		s.logger.Error("count subscribers", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load subscribers")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

func (s *Server) addSubscriber(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "email not provided")
		return
	}
	total, err := s.deps.Subscribers.Add(r.Context(), email)
	var vErr *monitor.ValidationError
	switch {
	case errors.As(err, &vErr):
		s.writeError(w, http.StatusBadRequest, "invalid email")
		return
	case errors.Is(err, subscribers.ErrDuplicate):
		s.writeError(w, http.StatusBadRequest, "email already subscribed")
		return
	case err != nil:
		s.logger.Error("add subscriber", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save subscriber")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":           "subscribed",
		"email":             subscribers.Normalize(email),
		"total_subscribers": total,
	})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Monitor.Start(r.Context()); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "monitoring started", "status": s.deps.Monitor.Status()})
}

func (s *Server) stop(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Monitor.Stop(); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "monitoring stopped"})
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Monitor.Restart(r.Context()); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "monitoring restarted", "status": s.deps.Monitor.Status()})
}

func (s *Server) checkNow(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Monitor.CheckNow(); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "check scheduled"})
}

func (s *Server) resetHash(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Monitor.ResetFingerprint(); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "fingerprint reset"})
}

func (s *Server) clearLogs(w http.ResponseWriter, _ *http.Request) {
	s.deps.Monitor.Journal().Clear()
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logs cleared"})
}

func (s *Server) testEmail(w http.ResponseWriter, r *http.Request) {
	if s.deps.TestMail == nil {
		s.writeError(w, http.StatusServiceUnavailable, "email transport is not available")
		return
	}
	if err := s.deps.TestMail(r.Context(), s.deps.Config.Current().Email); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "smtp connection ok"})
}

// configPatch lists the settings an administrator may change at runtime.
// Absent fields keep their current value.
type configPatch struct {
	URL             *string       `json:"url"`
	Keywords        []string      `json:"keywords"`
	IntervalMinutes *int          `json:"interval_minutes"`
	Email           *emailPatch   `json:"email"`
	Monitor         *monitorPatch `json:"monitor"`
}

type emailPatch struct {
	Enabled      *bool   `json:"enabled"`
	SMTPServer   *string `json:"smtp_server"`
	SMTPPort     *int    `json:"smtp_port"`
	SMTPUser     *string `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	FromEmail    *string `json:"from_email"`
	UseTLS       *bool   `json:"use_tls"`
	Timezone     *string `json:"timezone"`
}

type monitorPatch struct {
	Autostart *bool `json:"autostart"`
}

func (p configPatch) apply(c *config.Config) {
	set(&c.URL, p.URL)
	if p.Keywords != nil {
		c.Keywords = p.Keywords
	}
	set(&c.IntervalMinutes, p.IntervalMinutes)
	if e := p.Email; e != nil {
		set(&c.Email.Enabled, e.Enabled)
		set(&c.Email.SMTPServer, e.SMTPServer)
		set(&c.Email.SMTPPort, e.SMTPPort)
		set(&c.Email.SMTPUser, e.SMTPUser)
		set(&c.Email.SMTPPassword, e.SMTPPassword)
		set(&c.Email.FromEmail, e.FromEmail)
		set(&c.Email.UseTLS, e.UseTLS)
		set(&c.Email.Timezone, e.Timezone)
	}
	if m := p.Monitor; m != nil {
		set(&c.Monitor.Autostart, m.Autostart)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	updated, err := s.deps.Config.Update(patch.apply)
	if err != nil {
		var cfgErr *monitor.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path != "" {
			s.logger.Error("persist config", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to save configuration")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	running := s.deps.Monitor.Status().Running
	s.deps.Monitor.Journal().Record(monitor.LevelInfo, "configuration updated")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":          "configuration saved",
		"config":           updated.Masked(),
		"restart_required": running,
	})
}

func (s *Server) diagnostic(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Config.Current()
	journal := s.deps.Monitor.Journal()
	count, err := s.deps.Subscribers.Count(r.Context())
	subscriberInfo := map[string]any{"count": count}
	if err != nil {
		subscriberInfo = map[string]any{"error": err.Error()}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": s.deps.Monitor.Status(),
		"config": map[string]any{
			"url":                cfg.URL,
			"keywords":           cfg.Keywords,
			"interval_minutes":   cfg.IntervalMinutes,
			"email_enabled":      cfg.Email.Enabled,
			"fetch_backend":      cfg.Fetch.Backend,
			"subscriber_backend": cfg.Subscribers.Backend,
			"archive_backend":    cfg.Archive.Backend,
			"pubsub_enabled":     cfg.PubSub.Enabled,
		},
		"logs": map[string]int{
			"entries":  journal.Len(),
			"capacity": journal.Capacity(),
		},
		"subscribers": subscriberInfo,
		"runtime": map[string]any{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		},
	})
}

func (s *Server) listSubscribers(w http.ResponseWriter, r *http.Request) {
	emails, err := s.deps.Subscribers.List(r.Context())
	if err != nil {
		s.logger.Error("list subscribers", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load subscribers")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"emails": emails, "count": len(emails)})
}

func (s *Server) removeSubscriber(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	err := s.deps.Subscribers.Remove(r.Context(), email)
	switch {
	case errors.Is(err, subscribers.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "email not subscribed")
		return
	case err != nil:
		s.logger.Error("remove subscriber", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save subscribers")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "unsubscribed", "email": subscribers.Normalize(email)})
}

func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	var cfgErr *monitor.ConfigError
	switch {
	case errors.Is(err, monitor.ErrAlreadyRunning), errors.Is(err, monitor.ErrNotRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &cfgErr):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("monitor control failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
