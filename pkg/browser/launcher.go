package browser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/rs/zerolog"
)

// RodEngine launches Chrome through go-rod, one process per profile.
type RodEngine struct {
	logger zerolog.Logger
}

// NewRodEngine creates a new rod backed engine
func NewRodEngine(logger zerolog.Logger) *RodEngine {
	return &RodEngine{
		logger: logger.With().Str("component", "rod_engine").Logger(),
	}
}

// Launch starts Chrome on opts.UserDataDir and connects to it over CDP.
func (e *RodEngine) Launch(ctx context.Context, opts LaunchOptions) (Context, error) {
	if opts.UserDataDir == "" {
		return nil, InvalidArgument("user data directory is required")
	}

	// Chrome refuses to start on a missing parent, the store normally creates it.
	if err := os.MkdirAll(opts.UserDataDir, 0755); err != nil {
		return nil, EngineError("prepare user data directory", err)
	}

	l := buildLauncher(ctx, opts)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, EngineError("launch chrome", err)
	}

	b := rod.New().ControlURL(controlURL).NoDefaultDevice()
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, EngineError("connect to chrome", err)
	}

	e.logger.Debug().
		Str("user_data_dir", opts.UserDataDir).
		Int("pid", l.PID()).
		Bool("headless", opts.Headless).
		Msg("Chrome launched")

	return &rodContext{
		browser:   b,
		launcher:  l,
		logger:    e.logger,
		userAgent: opts.UserAgent,
		viewport:  opts.Viewport,
	}, nil
}

func buildLauncher(ctx context.Context, opts LaunchOptions) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		UserDataDir(opts.UserDataDir)

	if opts.NoSandbox {
		l = l.NoSandbox(true)
	}

	if opts.ChromePath != "" {
		l = l.Bin(opts.ChromePath)
	}

	for _, arg := range opts.Args {
		name, values := parseFlag(arg)
		if name == "" {
			continue
		}
		l = l.Set(name, values...)
	}

	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}

	if !opts.Viewport.IsZero() {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", opts.Viewport.Width, opts.Viewport.Height))
	}

	return l
}

// parseFlag splits "--name=a,b" into the flag name and its values.
func parseFlag(arg string) (flags.Flag, []string) {
	arg = strings.TrimSpace(arg)
	name, value, hasValue := strings.Cut(arg, "=")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "", nil
	}
	if !hasValue {
		return flags.Flag(name), nil
	}
	return flags.Flag(name), strings.Split(value, ",")
}
