package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/browserd/internal/metrics"
	"github.com/harun/browserd/internal/observability"
	"github.com/harun/browserd/internal/tracing"
	"github.com/harun/browserd/pkg/browser"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const tracerName = "browserd.session"

// ProfileStore provisions the on-disk directory for a session
type ProfileStore interface {
	Ensure(id string) (path string, created bool, err error)
}

// Catalog is notified every time a profile is opened
type Catalog interface {
	RecordOpen(ctx context.Context, id string) error
}

// LaunchDefaults are applied to every browser context the registry starts
type LaunchDefaults struct {
	Headless   bool
	NoSandbox  bool
	ChromePath string
	Args       []string
	UserAgent  string
	Viewport   browser.Viewport
}

// CreateRequest carries the create parameters. UserAgent and Viewport
// override the defaults only when the session is not already live.
type CreateRequest struct {
	Email     string
	UserAgent string
	Viewport  *browser.Viewport
}

// Record is a live session. Context and Page stay valid until Close.
type Record struct {
	ID          string
	ProfilePath string
	CreatedAt   time.Time
	Context     browser.Context
	Page        browser.Page

	lastUsed atomic.Int64
	// closing is guarded by the registry mutex; done is closed once the
	// browser has been shut down.
	closing bool
	done    chan struct{}
}

// LastUsed returns the last time the session was created or resolved
func (r *Record) LastUsed() time.Time {
	return time.UnixMilli(r.lastUsed.Load())
}

func (r *Record) touch(now time.Time) {
	r.lastUsed.Store(now.UnixMilli())
}

// Summary describes a live session for listings
type Summary struct {
	ID          string    `json:"id"`
	ProfilePath string    `json:"profilePath"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

// CloseResult reports what Close did. Engine failures are never surfaced.
type CloseResult struct {
	ID     string `json:"id"`
	Closed bool   `json:"closed"`
}

// Options configures a Registry
type Options struct {
	Engine   browser.Engine
	Profiles ProfileStore
	Catalog  Catalog
	Defaults LaunchDefaults
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Audit    *observability.AuditLogger
	Now      func() time.Time
}

// Registry owns every live browser session of the process
type Registry struct {
	engine   browser.Engine
	profiles ProfileStore
	catalog  Catalog
	defaults LaunchDefaults
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	audit    *observability.AuditLogger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Record
	launches singleflight.Group
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile store is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		engine:   opts.Engine,
		profiles: opts.Profiles,
		catalog:  opts.Catalog,
		defaults: opts.Defaults,
		logger:   opts.Logger.With().Str("component", "session_registry").Logger(),
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		now:      now,
		sessions: make(map[string]*Record),
	}, nil
}

// Create returns the session bound to req.Email, launching a browser on its
// profile if none is live. Concurrent calls for one email share a launch.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.Email == "" {
		return "", browser.InvalidArgument("email is required and must be a string")
	}

	id := DeriveID(req.Email)
	ctx = tracing.WithSessionID(ctx, id)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	rec, err := r.awaitLive(ctx, id)
	if err != nil {
		return "", err
	}
	if rec != nil {
		rec.touch(r.now())
		logger.Debug().Msg("Session already exists")
		return id, nil
	}

	// the launch outlives a cancelled request so that waiters still get it
	launchCtx := tracing.Detach(ctx)
	_, err, shared := r.launches.Do(id, func() (interface{}, error) {
		rec, err := r.awaitLive(launchCtx, id)
		if err != nil || rec != nil {
			return rec, err
		}
		return r.launch(launchCtx, id, req)
	})
	if err != nil {
		return "", err
	}

	if shared {
		logger.Debug().Msg("Joined in-flight session launch")
	}
	return id, nil
}

func (r *Registry) launch(ctx context.Context, id string, req CreateRequest) (rec *Record, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.create", attribute.String("session_id", id))
	defer func() { tracing.EndSpan(span, err) }()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	path, created, err := r.profiles.Ensure(id)
	if err != nil {
		return nil, browser.EngineError("prepare profile", err)
	}

	bctx, err := r.engine.Launch(ctx, r.launchOptions(path, req))
	if err != nil {
		r.audit.Session(ctx, "session_create", id, "failure", map[string]interface{}{"error": err.Error()})
		return nil, browser.EngineError("launch browser", err)
	}

	page, err := firstPage(ctx, bctx)
	if err != nil {
		if cerr := bctx.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close browser after page error")
		}
		r.audit.Session(ctx, "session_create", id, "failure", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	now := r.now()
	rec = &Record{
		ID:          id,
		ProfilePath: path,
		CreatedAt:   now,
		Context:     bctx,
		Page:        page,
		done:        make(chan struct{}),
	}
	rec.touch(now)

	r.mu.Lock()
	r.sessions[id] = rec
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.RecordSessionCreated()
	r.metrics.SetActiveSessions(count)

	if r.catalog != nil {
		if err := r.catalog.RecordOpen(ctx, id); err != nil {
			logger.Warn().Err(err).Msg("Failed to record profile open")
		}
	}

	r.audit.Session(ctx, "session_create", id, "success", map[string]interface{}{"new_profile": created})
	logger.Info().
		Str("profile", path).
		Bool("new_profile", created).
		Int("sessions", count).
		Msg("Session created")

	return rec, nil
}

func (r *Registry) launchOptions(path string, req CreateRequest) browser.LaunchOptions {
	opts := browser.LaunchOptions{
		UserDataDir: path,
		Headless:    r.defaults.Headless,
		NoSandbox:   r.defaults.NoSandbox,
		ChromePath:  r.defaults.ChromePath,
		Args:        r.defaults.Args,
		UserAgent:   r.defaults.UserAgent,
		Viewport:    r.defaults.Viewport,
	}
	if req.UserAgent != "" {
		opts.UserAgent = req.UserAgent
	}
	if req.Viewport != nil {
		opts.Viewport = *req.Viewport
	}
	return opts
}

// firstPage reuses the page a persistent context opens with
func firstPage(ctx context.Context, bctx browser.Context) (browser.Page, error) {
	pages, err := bctx.Pages(ctx)
	if err != nil {
		return nil, browser.EngineError("list pages", err)
	}
	if len(pages) > 0 {
		return pages[0], nil
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, browser.EngineError("create page", err)
	}
	return page, nil
}

// lookup returns the live record for id. Records being closed are not live.
func (r *Registry) lookup(id string) *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec := r.sessions[id]; rec != nil && !rec.closing {
		return rec
	}
	return nil
}

// awaitLive is lookup that first waits out a close in progress, so the
// profile directory is released before anyone launches on it again.
func (r *Registry) awaitLive(ctx context.Context, id string) (*Record, error) {
	for {
		r.mu.RLock()
		rec := r.sessions[id]
		closing := rec != nil && rec.closing
		r.mu.RUnlock()

		if !closing {
			return rec, nil
		}

		select {
		case <-rec.done:
		case <-ctx.Done():
			return nil, browser.EngineError("wait for session close", ctx.Err())
		}
	}
}

// Resolve returns the live session for id
func (r *Registry) Resolve(id string) (*Record, error) {
	rec := r.lookup(id)
	if rec == nil {
		return nil, browser.InvalidSession()
	}
	rec.touch(r.now())
	return rec, nil
}

// Close shuts the session's browser down and forgets it. Unknown ids are a
// no-op. The profile directory is kept.
func (r *Registry) Close(ctx context.Context, id string) CloseResult {
	r.mu.Lock()
	rec := r.sessions[id]
	if rec == nil {
		r.mu.Unlock()
		return CloseResult{ID: id}
	}
	if rec.closing {
		r.mu.Unlock()
		<-rec.done
		return CloseResult{ID: id}
	}
	rec.closing = true
	r.mu.Unlock()

	ctx = tracing.WithSessionID(ctx, id)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	if err := rec.Context.Close(); err != nil {
		r.metrics.RecordCloseError()
		logger.Warn().Err(err).Msg("Failed to close browser context")
	}

	r.mu.Lock()
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()
	close(rec.done)

	r.metrics.SetActiveSessions(count)
	r.audit.Session(ctx, "session_close", id, "success", nil)
	logger.Info().Int("sessions", count).Msg("Session closed")
	return CloseResult{ID: id, Closed: true}
}

// CloseAll closes every live session concurrently
func (r *Registry) CloseAll(ctx context.Context) {
	ids := r.ids()
	if len(ids) == 0 {
		return
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			r.Close(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info().Int("closed", len(ids)).Msg("All sessions closed")
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List describes every live session, ordered by ID
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if rec.closing {
			continue
		}
		out = append(out, Summary{
			ID:          rec.ID,
			ProfilePath: rec.ProfilePath,
			CreatedAt:   rec.CreatedAt,
			LastUsedAt:  rec.LastUsed(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
