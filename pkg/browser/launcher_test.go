package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name      string
		arg       string
		expected  flags.Flag
		values    []string
		hasValues bool
	}{
		{name: "boolean flag", arg: "--disable-gpu", expected: "disable-gpu"},
		{name: "single dash", arg: "-incognito", expected: "incognito"},
		{name: "flag with value", arg: "--lang=en-US", expected: "lang", values: []string{"en-US"}, hasValues: true},
		{name: "flag with list", arg: "--window-size=1280,720", expected: "window-size", values: []string{"1280", "720"}, hasValues: true},
		{name: "blank", arg: "  ", expected: ""},
		{name: "dashes only", arg: "--", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, values := parseFlag(tt.arg)
			assert.Equal(t, tt.expected, name)
			if tt.hasValues {
				assert.Equal(t, tt.values, values)
			} else {
				assert.Nil(t, values)
			}
		})
	}
}

func TestBuildLauncher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "abc")

	l := buildLauncher(context.Background(), LaunchOptions{
		UserDataDir: dir,
		Headless:    true,
		NoSandbox:   true,
		ChromePath:  "/usr/bin/chromium",
		Args:        []string{"--disable-gpu", "--lang=de-DE"},
		UserAgent:   "custom-agent/1.0",
		Viewport:    Viewport{Width: 800, Height: 600},
	})

	assert.Equal(t, dir, l.Get(flags.UserDataDir))
	assert.True(t, l.Has(flags.Headless))
	assert.True(t, l.Has(flags.NoSandbox))
	assert.Equal(t, "/usr/bin/chromium", l.Get(flags.Bin))
	assert.True(t, l.Has("disable-gpu"))
	assert.Equal(t, "de-DE", l.Get("lang"))
	assert.Equal(t, "custom-agent/1.0", l.Get("user-agent"))
	assert.Equal(t, "800,600", l.Get("window-size"))
}

func TestBuildLauncherDefaults(t *testing.T) {
	l := buildLauncher(context.Background(), LaunchOptions{UserDataDir: t.TempDir()})

	assert.False(t, l.Has(flags.Headless))
	assert.False(t, l.Has("user-agent"))
	assert.False(t, l.Has("window-size"))
}

func TestRodEngineLaunchRequiresDir(t *testing.T) {
	engine := NewRodEngine(zerolog.Nop())

	_, err := engine.Launch(context.Background(), LaunchOptions{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestErrorCodes(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")

	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "invalid argument", err: InvalidArgument("Invalid URL. Use http(s) URL."), code: ErrCodeInvalidArgument},
		{name: "invalid session", err: InvalidSession(), code: ErrCodeInvalidSession},
		{name: "engine failure", err: EngineError("navigate", cause), code: ErrCodeEngineFailure},
		{name: "foreign error", err: cause, code: ErrCodeEngineFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.True(t, IsCode(tt.err, tt.code))
		})
	}

	assert.False(t, IsCode(nil, ErrCodeEngineFailure))
}

func TestEngineErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := EngineError("click \"#go\"", cause)

	assert.Equal(t, "click \"#go\": boom", err.Error())
	assert.ErrorIs(t, err, cause)

	// already classified errors pass through untouched
	inner := InvalidSession()
	assert.Same(t, inner, EngineError("resolve", inner))
}

func TestInvalidSessionMessage(t *testing.T) {
	assert.Equal(t, "Invalid session ID", InvalidSession().Error())
}

func TestParseWaitUntil(t *testing.T) {
	tests := []struct {
		in       string
		expected WaitUntil
		ok       bool
	}{
		{"load", WaitLoad, true},
		{"DOMContentLoaded", WaitDOMContentLoaded, true},
		{"networkidle", WaitNetworkIdle, true},
		{"networkidle0", WaitNetworkIdle, true},
		{"commit", WaitCommit, true},
		{"sometime", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWaitUntil(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestViewportIsZero(t *testing.T) {
	assert.True(t, Viewport{}.IsZero())
	assert.False(t, Viewport{Width: 1}.IsZero())
}
