package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horaire/internal/generate"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	run := func(context.Context) (*generate.Result, error) { return nil, nil }

	_, err := New("not a cron", time.UTC, run)
	assert.Error(t, err)

	_, err = New("0 5 * * *", nil, run)
	assert.NoError(t, err)
}

func TestRunGeneratesImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs, hooked atomic.Int32
	run := func(context.Context) (*generate.Result, error) {
		runs.Add(1)
		return &generate.Result{RunID: "r"}, nil
	}
	hook := func(_ context.Context, res *generate.Result) {
		assert.Equal(t, "r", res.RunID)
		hooked.Add(1)
		cancel()
	}

	w, err := New("0 5 * * *", time.UTC, run, hook)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), hooked.Load())
}

func TestRunSkipsHooksOnFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var hooked atomic.Int32
	run := func(context.Context) (*generate.Result, error) {
		cancel()
		return nil, errors.New("api down")
	}
	hook := func(context.Context, *generate.Result) { hooked.Add(1) }

	w, err := New("@hourly", time.UTC, run, hook)
	require.NoError(t, err)
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, int32(0), hooked.Load())
}

func TestNextFollowsSchedule(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		t.Skip("zone database unavailable")
	}
	w, err := New("0 5 * * *", loc, func(context.Context) (*generate.Result, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, w.Next().IsZero())

	_, err = w.cron.AddFunc(w.schedule, func() {})
	require.NoError(t, err)
	w.cron.Start()
	defer w.cron.Stop()

	next := w.Next().In(loc)
	assert.Equal(t, 5, next.Hour())
	assert.Equal(t, 0, next.Minute())
}
