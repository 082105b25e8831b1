// Package scheduler drives the periodic crawl. It wraps robfig/cron
// with a single-flight guard so a slow crawl is never overlapped by
// the next tick, and exposes RunNow for manual triggers.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "cfpbot/pkg/logx"
)

const (
	defaultSchedule    = "0 */6 * * *"
	defaultRunTimeout  = 10 * time.Minute
	defaultHistorySize = 50
)

type Config struct {
	Enabled     bool
	Schedule    string
	Timezone    string // IANA TZ, e.g. "Europe/Rome"
	RunTimeout  time.Duration
	RetryMax    int
	HistorySize int
}

// Runner is the job the scheduler fires. source labels who triggered
// the run ("schedule" or "manual").
type Runner func(ctx context.Context, source string) error

type HistoryItem struct {
	Source   string
	Started  time.Time
	Duration time.Duration
	Attempts int
	Error    string
}

type Scheduler struct {
	mu sync.Mutex

	cfg    Config
	run    Runner
	log    logx.Logger
	parser cron.Parser

	c       *cron.Cron
	ctx     context.Context
	running bool

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, run Runner, log logx.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("scheduler needs a runner")
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:    cfg,
		run:    run,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}, nil
}

// Start registers the schedule and starts the cron loop. It is a no-op
// when the scheduler is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	spec, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	expr := spec.Cron
	if spec.Kind == SpecInterval {
		expr = "@every " + spec.Every.String()
	}

	loc := s.loadLocation()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(expr, func() { s.fire("schedule") }); err != nil {
		return err
	}

	s.c = c
	s.ctx = ctx
	c.Start()
	s.log.Info("scheduler started",
		logx.String("schedule", expr),
		logx.String("tz", loc.String()))
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	s.log.Info("scheduler stopped")
}

// RunNow triggers a crawl outside the schedule. It reports false when
// a run is already in flight; the trigger is dropped, not queued.
func (s *Scheduler) RunNow(source string) bool {
	if strings.TrimSpace(source) == "" {
		source = "manual"
	}
	return s.fire(source)
}

func (s *Scheduler) fire(source string) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("run skipped, previous run still in flight",
			logx.String("source", source))
		return false
	}
	s.running = true
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		s.execute(ctx, source)
	}()
	return true
}

func (s *Scheduler) execute(ctx context.Context, source string) {
	start := time.Now()
	maxAttempts := 1 + max(s.cfg.RetryMax, 0)

	var err error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		// Per-attempt timeout so a timed-out first attempt does not
		// poison retries.
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
		err = s.run(runCtx, source)
		cancel()
		if err == nil || attempt >= maxAttempts {
			break
		}

		delay := retryDelay(attempt)
		s.log.Debug("run retry scheduled",
			logx.Int("attempt", attempt+1),
			logx.Duration("delay", delay),
			logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			err = ctx.Err()
			attempt = maxAttempts
		case <-tmr.C:
		}
	}

	item := HistoryItem{
		Source:   source,
		Started:  start,
		Duration: time.Since(start),
		Attempts: attempts,
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Error("run failed",
			logx.String("source", source),
			logx.Duration("dur", item.Duration),
			logx.Int("attempts", attempts),
			logx.Err(err))
	} else {
		s.log.Info("run completed",
			logx.String("source", source),
			logx.Duration("dur", item.Duration),
			logx.Int("attempts", attempts))
	}
	s.appendHistory(item)
}

// retryDelay doubles from 30s and is capped at 5m, with jitter.
func retryDelay(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 5*time.Minute {
			d = 5 * time.Minute
			break
		}
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}

func (s *Scheduler) appendHistory(item HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
}

// History returns a copy of recent run outcomes, oldest first.
func (s *Scheduler) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// Running reports whether a crawl is currently in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local",
			logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
