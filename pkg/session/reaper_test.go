package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReaperValidation(t *testing.T) {
	tr := setupTestRegistry(t)

	tests := []struct {
		name    string
		opts    ReaperOptions
		wantErr bool
	}{
		{"default schedule", ReaperOptions{IdleTimeout: time.Minute}, false},
		{"descriptor", ReaperOptions{IdleTimeout: time.Minute, Schedule: "@every 30s"}, false},
		{"cron expression", ReaperOptions{IdleTimeout: time.Minute, Schedule: "*/5 * * * *"}, false},
		{"zero timeout", ReaperOptions{}, true},
		{"bad schedule", ReaperOptions{IdleTimeout: time.Minute, Schedule: "sometimes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReaper(tr.Registry, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}

	_, err := NewReaper(nil, ReaperOptions{IdleTimeout: time.Minute})
	assert.Error(t, err)
}

func TestReaperSweep(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }

	tr := setupTestRegistry(t, func(o *Options) { o.Now = clock })
	ctx := context.Background()

	idle, err := tr.Create(ctx, CreateRequest{Email: "a@example.com"})
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	busy, err := tr.Create(ctx, CreateRequest{Email: "b@example.com"})
	require.NoError(t, err)

	reaper, err := NewReaper(tr.Registry, ReaperOptions{
		IdleTimeout: 5 * time.Minute,
		Logger:      zerolog.Nop(),
		Metrics:     tr.metrics,
		Now:         clock,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, reaper.Sweep(ctx))
	assert.Equal(t, 1, tr.Count())

	_, err = tr.Resolve(idle)
	assert.Error(t, err)
	_, err = tr.Resolve(busy)
	assert.NoError(t, err)

	assert.True(t, tr.store.Exists(idle))
	assert.Equal(t, float64(1), testutil.ToFloat64(tr.metrics.SessionsReapedTotal))

	// nothing left to reap
	assert.Equal(t, 0, reaper.Sweep(ctx))
}

func TestReaperSweepSkipsRecentlyResolved(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }

	tr := setupTestRegistry(t, func(o *Options) { o.Now = clock })
	ctx := context.Background()

	id, err := tr.Create(ctx, CreateRequest{Email: "a@example.com"})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = tr.Resolve(id)
	require.NoError(t, err)

	reaper, err := NewReaper(tr.Registry, ReaperOptions{IdleTimeout: time.Minute, Now: clock})
	require.NoError(t, err)

	assert.Equal(t, 0, reaper.Sweep(ctx))
	assert.Equal(t, 1, tr.Count())
}

func TestReaperStartStop(t *testing.T) {
	tr := setupTestRegistry(t)

	reaper, err := NewReaper(tr.Registry, ReaperOptions{IdleTimeout: time.Minute, Schedule: "@every 1h"})
	require.NoError(t, err)

	require.NoError(t, reaper.Start())
	assert.Error(t, reaper.Start())

	reaper.Stop()
	// second stop is a no-op
	reaper.Stop()

	require.NoError(t, reaper.Start())
	reaper.Stop()
}
