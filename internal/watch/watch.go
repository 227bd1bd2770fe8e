package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"horaire/internal/generate"
	appLog "horaire/internal/log"
)

// RunFunc performs one generation.
type RunFunc func(ctx context.Context) (*generate.Result, error)

// HookFunc is called after every successful generation.
type HookFunc func(ctx context.Context, res *generate.Result)

// Watcher regenerates the schedule on a cron schedule.
type Watcher struct {
	cron     *cron.Cron
	schedule string
	run      RunFunc
	hooks    []HookFunc
}

// New parses schedule (standard 5-field cron, or descriptors such as
// "@hourly") and returns a Watcher evaluating it in loc.
func New(schedule string, loc *time.Location, run RunFunc, hooks ...HookFunc) (*Watcher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Watcher{cron: c, schedule: schedule, run: run, hooks: hooks}, nil
}

// Run generates once immediately, then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.tick(ctx)

	if _, err := w.cron.AddFunc(w.schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("add generation job: %w", err)
	}
	w.cron.Start()
	appLog.Info("scheduler started", "schedule", w.schedule, "next", w.Next().Format(time.RFC3339))

	<-ctx.Done()

	stopped := w.cron.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
	return nil
}

// Next returns the next scheduled run, zero before Run has started.
func (w *Watcher) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (w *Watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := w.run(ctx)
	if err != nil {
		// A failed run keeps the previous document in place.
		appLog.Error("scheduled generation failed", err)
		return
	}
	for _, hook := range w.hooks {
		hook(ctx, res)
	}
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
