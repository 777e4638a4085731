package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/metrics"
)

// DefaultCheckGranularity bounds how long a stopped generation can keep sleeping.
const DefaultCheckGranularity = time.Second

const snapshotContentType = "text/html; charset=utf-8"

// Dependencies are the collaborators a Scheduler drives. Publisher and
// Archive are optional.
type Dependencies struct {
	Settings    SettingsSource
	Fetcher     Fetcher
	Extractor   Extractor
	Hasher      Hasher
	Clock       Clock
	IDs         IDGenerator
	Subscribers SubscriberSource
	Journal     *Journal
	Publisher   Publisher
	Archive     BlobStore

	// CheckGranularity is the interval at which a sleeping task re-checks
	// that its generation is still active. Zero uses DefaultCheckGranularity.
	CheckGranularity time.Duration
}

// Scheduler owns the run/stop lifecycle of the single polling task.
type Scheduler struct {
	deps    Dependencies
	state   *state
	journal *Journal
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewScheduler validates deps and returns a stopped Scheduler.
func NewScheduler(deps Dependencies, logger *zap.Logger) (*Scheduler, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("settings source is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Hasher == nil:
		return nil, errors.New("hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	case deps.Subscribers == nil:
		return nil, errors.New("subscriber source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.CheckGranularity <= 0 {
		deps.CheckGranularity = DefaultCheckGranularity
	}
	if deps.Journal == nil {
		deps.Journal = NewJournal(DefaultJournalCapacity, deps.Clock, logger)
	}
	metrics.Init()
	return &Scheduler{
		deps:    deps,
		state:   &state{},
		journal: deps.Journal,
		logger:  logger,
	}, nil
}

// Journal exposes the log buffer the scheduler writes to.
func (s *Scheduler) Journal() *Journal {
	return s.journal
}

// Start mints a new generation and spawns its polling task. It returns
// ErrAlreadyRunning, leaving the active generation untouched, when one is
// running; the rejection is journaled at ALERT.
// The task outlives ctx's cancellation; only Stop ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.state.activeDetector() != nil {
		s.journal.Record(LevelAlert, "monitoring is already running")
		return ErrAlreadyRunning
	}
	settings, err := s.deps.Settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load monitor settings: %w", err)
	}
	if strings.TrimSpace(settings.URL) == "" {
		return &ConfigError{Err: errors.New("url is required")}
	}
	if settings.Interval <= 0 {
		return &ConfigError{Err: fmt.Errorf("interval must be > 0, got %s", settings.Interval)}
	}
	gen, err := s.deps.IDs.NewID()
	if err != nil {
		return fmt.Errorf("generate generation id: %w", err)
	}

	detector := NewChangeDetector(s.deps.Hasher)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wake, err := s.state.begin(gen, detector, cancel)
	if err != nil {
		cancel()
		return err
	}
	metrics.SetRunning(true)

	s.emit(gen, LevelSuccess, "monitoring started")
	s.emit(gen, LevelInfo, "target: "+settings.URL)
	s.emit(gen, LevelInfo, "interval: "+formatInterval(settings.Interval))
	keywords := NewKeywordSet(settings.Keywords)
	if keywords.Len() > 0 {
		s.emit(gen, LevelInfo, "keywords: "+strings.Join(keywords.Words(), ", "))
	}
	if settings.NotificationsEnabled {
		s.emit(gen, LevelInfo, "email notifications enabled")
	} else {
		s.emit(gen, LevelInfo, "email notifications disabled")
	}

	s.wg.Add(1)
	go s.run(runCtx, gen, settings, keywords, detector, wake)
	return nil
}

// Stop invalidates the active generation. It does not wait for the task to
// exit; the task notices at its next checkpoint.
func (s *Scheduler) Stop() error {
	cancel, err := s.state.end()
	if err != nil {
		return err
	}
	cancel()
	metrics.SetRunning(false)
	s.journal.Record(LevelAlert, "monitoring stopped")
	return nil
}

// Restart stops the active generation, if any, and starts a new one.
func (s *Scheduler) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return s.Start(ctx)
}

// CheckNow wakes the sleeping task so the next cycle runs immediately.
func (s *Scheduler) CheckNow() error {
	wake := s.state.wakeChannel()
	if wake == nil {
		return ErrNotRunning
	}
	select {
	case wake <- struct{}{}:
	default:
	}
	s.journal.Record(LevelInfo, "immediate check requested")
	return nil
}

// ResetFingerprint clears the active detector's baseline. The next cycle
// records a fresh baseline and reports no change.
func (s *Scheduler) ResetFingerprint() error {
	detector := s.state.activeDetector()
	if detector == nil {
		return ErrNotRunning
	}
	detector.Reset()
	s.journal.Record(LevelInfo, "fingerprint reset; next check records a new baseline")
	return nil
}

// Status returns a snapshot of the monitor state.
func (s *Scheduler) Status() Status {
	return s.state.snapshot()
}

// Shutdown stops the active generation and waits for its task to exit or
// for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for polling task: %w", ctx.Err())
	}
}

func (s *Scheduler) run(
	ctx context.Context,
	gen string,
	settings Settings,
	keywords KeywordSet,
	detector *ChangeDetector,
	wake <-chan struct{},
) {
	defer s.wg.Done()
	logger := s.logger.With(zap.String("generation", gen))
	logger.Debug("polling task started")
	for {
		if !s.state.isActive(gen) {
			logger.Info("polling task superseded")
			return
		}
		s.cycle(ctx, gen, settings, keywords, detector)

		next := s.deps.Clock.Now().Add(settings.Interval)
		if !s.state.commit(gen, func(st *state) { st.nextCheck = next }) {
			logger.Info("polling task superseded")
			return
		}
		s.emit(gen, LevelInfo, "next check at "+next.Format("15:04:05"))
		if !s.sleep(ctx, gen, next, wake) {
			logger.Info("polling task superseded")
			return
		}
	}
}

// sleep waits until the deadline, a wake-up, or invalidation of gen. It
// reports whether the generation is still active.
func (s *Scheduler) sleep(ctx context.Context, gen string, until time.Time, wake <-chan struct{}) bool {
	for {
		if !s.state.isActive(gen) {
			return false
		}
		remaining := until.Sub(s.deps.Clock.Now())
		if remaining <= 0 {
			return true
		}
		timer := time.NewTimer(min(s.deps.CheckGranularity, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-wake:
			timer.Stop()
			return s.state.isActive(gen)
		case <-timer.C:
		}
	}
}

// cycle runs one fetch, extract, detect, scan and notify pass. Failures are
// journaled and never escape.
func (s *Scheduler) cycle(
	ctx context.Context,
	gen string,
	settings Settings,
	keywords KeywordSet,
	detector *ChangeDetector,
) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveCycle("panic")
			s.emit(gen, LevelError, fmt.Sprintf("check aborted: %v", r))
		}
	}()

	now := s.deps.Clock.Now()
	var cycleNo int
	if !s.state.commit(gen, func(st *state) {
		st.cycleCount++
		cycleNo = st.cycleCount
		st.lastCheck = now
	}) {
		return
	}

	doc, err := s.deps.Fetcher.Fetch(ctx, settings.URL)
	metrics.ObserveFetch(settings.URL, fetchOutcome(err), doc.Duration, len(doc.Body))
	if err != nil {
		metrics.ObserveCycle("fetch_error")
		s.emit(gen, LevelError, describeFailure(err))
		return
	}
	text, err := s.deps.Extractor.Extract(doc.Body)
	if err != nil {
		metrics.ObserveCycle("parse_error")
		s.emit(gen, LevelError, describeFailure(err))
		return
	}

	previous, hadBaseline := detector.Baseline()
	changed, digest := detector.DetectChange(text)
	result := PollCycleResult{
		Fingerprint:   digest,
		Changed:       changed,
		KeywordsFound: Scan(text, keywords),
		ContentLength: len(text),
		Timestamp:     now,
	}
	if !s.state.commit(gen, func(st *state) {
		st.keywords = result.KeywordsFound
		if result.Changed {
			st.changes++
		}
	}) {
		return
	}

	s.emit(gen, LevelInfo, fmt.Sprintf("check #%d: %d characters extracted", cycleNo, result.ContentLength))
	if len(result.KeywordsFound) > 0 {
		s.emit(gen, LevelInfo, "keywords found: "+strings.Join(result.KeywordsFound, ", "))
	}

	var snapshotURI string
	if !hadBaseline || previous != digest {
		snapshotURI = s.archive(ctx, gen, settings, digest, doc.Body)
	}

	switch {
	case !hadBaseline:
		metrics.ObserveCycle("baseline")
		s.emit(gen, LevelInfo, "baseline fingerprint recorded")
	case !result.Changed:
		metrics.ObserveCycle("unchanged")
		s.emit(gen, LevelInfo, "no changes detected")
	default:
		metrics.ObserveCycle("changed")
		metrics.ObserveChange(settings.URL)
		s.emit(gen, LevelAlert, "content change detected")
		s.publish(ctx, gen, settings, ChangeEvent{
			URL:                 settings.URL,
			Generation:          gen,
			Cycle:               cycleNo,
			Fingerprint:         digest,
			PreviousFingerprint: previous,
			KeywordsFound:       result.KeywordsFound,
			SnapshotURI:         snapshotURI,
			DetectedAt:          now,
		})
		s.notify(ctx, gen, settings, Alert{
			URL:        settings.URL,
			Keywords:   result.KeywordsFound,
			Changed:    true,
			DetectedAt: now,
		})
	}
}

func (s *Scheduler) notify(ctx context.Context, gen string, settings Settings, alert Alert) {
	if !settings.NotificationsEnabled || settings.Notifier == nil {
		metrics.ObserveNotification("disabled", 0)
		s.emit(gen, LevelInfo, "email notifications disabled; alert not sent")
		return
	}
	recipients, err := s.deps.Subscribers.List(ctx)
	if err != nil {
		metrics.ObserveNotification("error", 0)
		s.emit(gen, LevelError, fmt.Sprintf("load subscribers: %v", err))
		return
	}
	if len(recipients) == 0 {
		metrics.ObserveNotification("no_recipients", 0)
		s.emit(gen, LevelAlert, "change detected but there are no subscribers to notify")
		return
	}
	delivered, err := settings.Notifier.Notify(ctx, alert, recipients)
	if err != nil {
		metrics.ObserveNotification("error", delivered)
		s.emit(gen, LevelError, describeFailure(err))
		return
	}
	metrics.ObserveNotification("sent", delivered)
	s.emit(gen, LevelSuccess, fmt.Sprintf("alert emailed to %d subscriber(s)", delivered))
}

func (s *Scheduler) archive(ctx context.Context, gen string, settings Settings, digest string, body []byte) string {
	if s.deps.Archive == nil {
		return ""
	}
	key := path.Join(settings.SnapshotPrefix, digest+".html")
	uri, err := s.deps.Archive.PutObject(ctx, key, snapshotContentType, bytes.NewReader(body))
	if err != nil {
		s.emit(gen, LevelError, fmt.Sprintf("archive snapshot: %v", err))
		return ""
	}
	return uri
}

func (s *Scheduler) publish(ctx context.Context, gen string, settings Settings, event ChangeEvent) {
	if s.deps.Publisher == nil || settings.Topic == "" {
		return
	}
	if _, err := s.deps.Publisher.Publish(ctx, settings.Topic, event); err != nil {
		s.emit(gen, LevelError, fmt.Sprintf("publish change event: %v", err))
	}
}

// emit journals msg only while gen is the active generation.
func (s *Scheduler) emit(gen string, level Level, msg string) {
	if !s.state.commit(gen, func(st *state) {
		s.journal.Record(level, msg, zap.String("generation", gen), zap.Int("cycle", st.cycleCount))
	}) {
		s.logger.Debug("dropped message from inactive generation",
			zap.String("generation", gen),
			zap.String("message", msg),
		)
	}
}

func describeFailure(err error) string {
	var (
		netErr   *NetworkError
		parseErr *ParseError
		delivErr *DeliveryError
	)
	switch {
	case errors.As(err, &netErr):
		return "network error: " + netErr.Error()
	case errors.As(err, &parseErr):
		return "parse error: " + parseErr.Error()
	case errors.As(err, &delivErr):
		return "email delivery failed: " + delivErr.Error()
	default:
		return "check failed: " + err.Error()
	}
}

func fetchOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode != 0 {
		return fmt.Sprintf("http_%d", netErr.StatusCode)
	}
	return "error"
}

func formatInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
