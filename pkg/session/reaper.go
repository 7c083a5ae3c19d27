package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/browserd/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultReapSchedule is how often the reaper looks for idle sessions
const DefaultReapSchedule = "@every 1m"

// ReaperOptions configures a Reaper
type ReaperOptions struct {
	IdleTimeout time.Duration
	Schedule    string
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Reaper closes sessions that have not been used for IdleTimeout
type Reaper struct {
	registry    *Registry
	idleTimeout time.Duration
	schedule    string
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewReaper validates the schedule and returns a stopped reaper
func NewReaper(registry *Registry, opts ReaperOptions) (*Reaper, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.IdleTimeout <= 0 {
		return nil, errors.New("idle timeout must be positive")
	}

	schedule := opts.Schedule
	if schedule == "" {
		schedule = DefaultReapSchedule
	}
	if _, err := scheduleParser().Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Reaper{
		registry:    registry,
		idleTimeout: opts.IdleTimeout,
		schedule:    schedule,
		logger:      opts.Logger.With().Str("component", "session_reaper").Logger(),
		metrics:     opts.Metrics,
		now:         now,
	}, nil
}

func scheduleParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// Start schedules periodic sweeps
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reaper is already running")
	}

	c := cron.New(cron.WithParser(scheduleParser()))
	if _, err := c.AddFunc(r.schedule, func() { r.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule reaper: %w", err)
	}
	c.Start()

	r.cron = c
	r.running = true

	r.logger.Info().
		Dur("idle_timeout", r.idleTimeout).
		Str("schedule", r.schedule).
		Msg("Session reaper started")

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	<-c.Stop().Done()
	r.logger.Info().Msg("Session reaper stopped")
}

// Sweep closes every session idle for longer than the timeout and returns
// how many it closed.
func (r *Reaper) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTimeout)
	reaped := 0

	for _, s := range r.registry.List() {
		if s.LastUsedAt.After(cutoff) {
			continue
		}
		// a request may have touched it since List
		if rec := r.registry.lookup(s.ID); rec == nil || rec.LastUsed().After(cutoff) {
			continue
		}

		if res := r.registry.Close(ctx, s.ID); res.Closed {
			reaped++
			r.metrics.RecordReaped()
			r.logger.Info().
				Str("session_id", s.ID).
				Dur("idle", r.now().Sub(s.LastUsedAt)).
				Msg("Idle session closed")
		}
	}

	return reaped
}
