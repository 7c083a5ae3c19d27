package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/harun/browserd/internal/config"
	"github.com/harun/browserd/internal/logger"
	"github.com/harun/browserd/internal/metrics"
	"github.com/harun/browserd/internal/observability"
	"github.com/harun/browserd/internal/tracing"
	"github.com/harun/browserd/pkg/api"
	"github.com/harun/browserd/pkg/automation"
	"github.com/harun/browserd/pkg/browser"
	"github.com/harun/browserd/pkg/profile"
	"github.com/harun/browserd/pkg/session"
	"github.com/rs/zerolog"
)

// Options configures a Daemon
type Options struct {
	Config *config.Config
	// ConfigPath is watched for policy changes; empty disables hot reload
	ConfigPath string
	Logger     *logger.Logger
	// Engine defaults to the Chrome engine
	Engine browser.Engine
}

// Daemon wires the browser service together and owns its lifecycle
type Daemon struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger
	log        zerolog.Logger

	// Core modules
	metrics    *metrics.Metrics
	audit      *observability.AuditLogger
	store      *profile.Store
	catalog    *profile.Catalog
	registry   *session.Registry
	automation *automation.Service

	// Services
	server  *api.Server
	reaper  *session.Reaper
	watcher *config.Watcher

	// Internal
	lifecycle *LifecycleManager
	listener  net.Listener
	serveErr  chan error

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status reports whether the daemon is serving
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Sessions  int
}

// New creates a new daemon instance. Nothing listens until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	d := &Daemon{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		log:        opts.Logger.Component("daemon"),
	}

	if d.config.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(d.config.Tracing.ServiceName, d.config.Tracing.SampleRatio); err != nil {
			d.log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			d.log.Info().Msg("Tracing initialized successfully")
		}
	}

	engine := opts.Engine
	if engine == nil {
		engine = browser.NewRodEngine(d.logger.Component("engine"))
	}

	// Initialize core modules in dependency order
	if err := d.initializeCoreModules(engine); err != nil {
		d.closeCoreModules()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	// Initialize services
	if err := d.initializeServices(); err != nil {
		d.closeCoreModules()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeCoreModules builds everything that does not listen or tick
func (d *Daemon) initializeCoreModules(engine browser.Engine) error {
	cfg := d.config

	if cfg.Metrics.Enabled {
		d.metrics = metrics.NewMetrics()
	}

	if cfg.Security.AuditLog != "" {
		audit, err := observability.OpenAuditLogger(cfg.Security.AuditLog)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		d.audit = audit
		d.log.Info().Str("path", cfg.Security.AuditLog).Msg("Audit logger initialized")
	}

	store, err := profile.NewStore(cfg.Profiles.Dir)
	if err != nil {
		return err
	}
	d.store = store
	d.log.Info().Str("root", store.Root()).Msg("Profile store initialized")

	var catalog session.Catalog
	if cfg.Profiles.Catalog != "" {
		c, err := profile.OpenCatalog(cfg.Profiles.Catalog)
		if err != nil {
			return fmt.Errorf("failed to open profile catalog: %w", err)
		}
		d.catalog = c
		catalog = c
		d.log.Info().Str("path", cfg.Profiles.Catalog).Msg("Profile catalog opened")
	}

	registry, err := session.NewRegistry(session.Options{
		Engine:   engine,
		Profiles: store,
		Catalog:  catalog,
		Defaults: LaunchDefaults(cfg),
		Logger:   d.logger.Root(),
		Metrics:  d.metrics,
		Audit:    d.audit,
	})
	if err != nil {
		return err
	}
	d.registry = registry

	service, err := automation.NewService(automation.ServiceOptions{
		Sessions: registry,
		Policy:   PolicyFromConfig(cfg.Security),
		Defaults: OperationDefaults(cfg.Defaults),
		Logger:   d.logger.Root(),
		Metrics:  d.metrics,
		Audit:    d.audit,
	})
	if err != nil {
		return err
	}
	d.automation = service

	return nil
}

// initializeServices builds the HTTP server, reaper and config watcher
func (d *Daemon) initializeServices() error {
	cfg := d.config

	serverOpts := api.ServerOptions{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.ShutdownGrace(),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Sessions:        d.registry,
		Automation:      d.automation,
		Profiles:        d.store,
		Metrics:         d.metrics,
		Logger:          d.logger.Root(),
	}
	if d.catalog != nil {
		serverOpts.Catalog = d.catalog
	}
	server, err := api.NewServer(serverOpts)
	if err != nil {
		return err
	}
	d.server = server

	if cfg.IdleTimeout() > 0 {
		reaper, err := session.NewReaper(d.registry, session.ReaperOptions{
			IdleTimeout: cfg.IdleTimeout(),
			Schedule:    cfg.Reaper.Schedule,
			Logger:      d.logger.Root(),
			Metrics:     d.metrics,
		})
		if err != nil {
			return err
		}
		d.reaper = reaper
	}

	if d.configPath != "" {
		watcher, err := config.NewWatcher(config.WatcherOptions{
			Path:     d.configPath,
			Logger:   d.logger.Root(),
			OnChange: d.applyConfig,
			OnError: func(err error) {
				d.audit.Config(context.Background(), "reload", "rejected", map[string]interface{}{
					"error": err.Error(),
				})
			},
		})
		if err != nil {
			return err
		}
		d.watcher = watcher
	}

	return nil
}

// applyConfig installs the hot-reloadable parts of a reloaded config
func (d *Daemon) applyConfig(cfg *config.Config) {
	policy := PolicyFromConfig(cfg.Security)
	if err := d.automation.SetPolicy(policy); err != nil {
		d.log.Error().Err(err).Msg("Failed to apply reloaded URL policy")
		d.audit.Config(context.Background(), "reload", "rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	d.audit.Config(context.Background(), "reload", "applied", map[string]interface{}{
		"allowed_domains": len(policy.AllowedDomains),
		"blocked_domains": len(policy.BlockedDomains),
		"block_localhost": policy.BlockLocalhost,
	})
}

// Start begins listening and starts the background services
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.Root().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting browserd")

	addr := net.JoinHostPort(d.config.Server.Host, strconv.Itoa(d.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// Start lifecycle manager
	if err := d.lifecycle.Start(); err != nil {
		ln.Close()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// Start session reaper
	if d.reaper != nil {
		if err := d.reaper.Start(); err != nil {
			ln.Close()
			_ = d.lifecycle.Stop()
			return fmt.Errorf("failed to start session reaper: %w", err)
		}
		logger.Info().Dur("idle_timeout", d.config.IdleTimeout()).Msg("Session reaper started")
	}

	// Start config watcher
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start config watcher, URL policy will not hot reload")
			d.watcher = nil
		}
	}

	d.mu.Lock()
	d.listener = ln
	d.serveErr = make(chan error, 1)
	d.running = true
	d.startTime = time.Now()
	serveErr := d.serveErr
	d.mu.Unlock()

	go func() {
		err := d.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("browserd started")

	return nil
}

// Addr returns the listening address, nil before Start
func (d *Daemon) Addr() net.Addr {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Stop stops accepting requests, closes every session and releases
// resources. Close failures are logged.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.Root().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping browserd")

	// Stop HTTP server
	if err := d.server.Stop(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to stop HTTP server")
	}

	// Stop session reaper
	if d.reaper != nil {
		d.reaper.Stop()
	}

	// Stop config watcher
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	// Close every session
	closeCtx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownGrace())
	d.registry.CloseAll(closeCtx)
	cancel()
	logger.Info().Msg("All sessions closed")

	// Stop lifecycle manager
	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.closeCoreModules()

	logger.Info().Msg("browserd stopped successfully")

	return nil
}

// closeCoreModules releases the catalog, audit log and tracer provider
func (d *Daemon) closeCoreModules() {
	if d.catalog != nil {
		if err := d.catalog.Close(); err != nil {
			d.log.Error().Err(err).Msg("Failed to close profile catalog")
		}
		d.catalog = nil
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			d.log.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	// Close audit logger
	if err := d.audit.Close(); err != nil {
		d.log.Error().Err(err).Msg("Failed to close audit logger")
	}
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.registry.Count(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, ctx is done or the server fails,
// then stops the daemon. It returns the server failure, if any.
func (d *Daemon) Wait(ctx context.Context) error {
	d.mu.RLock()
	serveErr := d.serveErr
	d.mu.RUnlock()
	if serveErr == nil {
		return fmt.Errorf("daemon is not running")
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var failure error
	select {
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-ctx.Done():
		d.log.Info().Msg("Context cancelled")
	case err, ok := <-serveErr:
		if ok {
			failure = err
			d.log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	// Stop daemon
	if err := d.Stop(); err != nil {
		d.log.Error().Err(err).Msg("Failed to stop daemon")
	}
	return failure
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetRegistry returns the session registry
func (d *Daemon) GetRegistry() *session.Registry {
	return d.registry
}

// GetAutomation returns the automation service
func (d *Daemon) GetAutomation() *automation.Service {
	return d.automation
}

// GetServer returns the HTTP server
func (d *Daemon) GetServer() *api.Server {
	return d.server
}

// LaunchDefaults maps the browser and defaults sections onto the registry's
// launch settings
func LaunchDefaults(cfg *config.Config) session.LaunchDefaults {
	return session.LaunchDefaults{
		Headless:   cfg.Browser.Headless,
		NoSandbox:  cfg.Browser.NoSandbox,
		ChromePath: cfg.Browser.ChromePath,
		Args:       cfg.Browser.Args,
		UserAgent:  cfg.Defaults.UserAgent,
		Viewport: browser.Viewport{
			Width:  cfg.Defaults.Viewport.Width,
			Height: cfg.Defaults.Viewport.Height,
		},
	}
}

// OperationDefaults maps the defaults section onto automation timeouts. Zero
// values keep the built-in defaults.
func OperationDefaults(cfg config.DefaultsConfig) automation.Defaults {
	defaults := automation.Defaults{
		NavigationTimeout: config.Millis(cfg.NavigationTimeout),
		SelectorTimeout:   config.Millis(cfg.SelectorTimeout),
		TextTimeout:       config.Millis(cfg.TextTimeout),
		ActionTimeout:     config.Millis(cfg.ActionTimeout),
	}
	if wait, ok := browser.ParseWaitUntil(cfg.WaitUntil); ok {
		defaults.WaitUntil = wait
	}
	return defaults
}

// PolicyFromConfig builds the URL policy from the security section
func PolicyFromConfig(cfg config.SecurityConfig) automation.Policy {
	return automation.Policy{
		AllowedDomains: append([]string(nil), cfg.AllowedDomains...),
		BlockedDomains: append([]string(nil), cfg.BlockedDomains...),
		BlockLocalhost: cfg.BlockLocalhost,
	}
}

// pidFilePath resolves the configured PID file, empty when disabled
func pidFilePath(cfg *config.Config) string {
	if cfg.Server.PIDFile == "" {
		return ""
	}
	abs, err := filepath.Abs(cfg.Server.PIDFile)
	if err != nil {
		return cfg.Server.PIDFile
	}
	return abs
}
