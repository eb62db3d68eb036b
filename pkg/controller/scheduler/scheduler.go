// Package scheduler runs reconciliation cycles on triggers with at most one
// cycle in flight per process.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/errutil"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// ErrCycleRunning is returned by RunOnce when another cycle is in flight.
var ErrCycleRunning = goerr.New("cycle already running")

// Trigger is one request to start a cycle.
type Trigger struct {
	Source types.TriggerSource
	At     time.Time
}

type Scheduler struct {
	uc     interfaces.UseCase
	sink   interfaces.AuditSink
	dryRun bool
	clock  func() time.Time
	done   func(*model.RunReport)

	running atomic.Bool
	dropped atomic.Int64
	wg      sync.WaitGroup

	mu     sync.RWMutex
	latest *model.ScheduledRun
}

var _ interfaces.Trigger = (*Scheduler)(nil)

type Option func(*Scheduler)

// WithDryRun makes every cycle a dry run.
func WithDryRun(dryRun bool) Option {
	return func(x *Scheduler) {
		x.dryRun = dryRun
	}
}

// WithClock replaces the clock used for trigger and drop timestamps.
func WithClock(clock func() time.Time) Option {
	return func(x *Scheduler) {
		x.clock = clock
	}
}

// WithOnComplete sets a callback called with the report of every finished
// cycle.
func WithOnComplete(f func(*model.RunReport)) Option {
	return func(x *Scheduler) {
		x.done = f
	}
}

// WithLatest seeds the most recent run, e.g. from the entity store after a
// restart.
func WithLatest(run *model.ScheduledRun) Option {
	return func(x *Scheduler) {
		x.latest = run.Copy()
	}
}

func New(uc interfaces.UseCase, sink interfaces.AuditSink, options ...Option) *Scheduler {
	s := &Scheduler{
		uc:    uc,
		sink:  sink,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Run starts a cycle for every trigger received until ctx is done or triggers
// is closed, then waits for the cycle in flight.
func (x *Scheduler) Run(ctx context.Context, triggers <-chan Trigger) error {
	logging.From(ctx).Info("scheduler started", slog.Bool("dry_run", x.dryRun))
	defer x.Wait()

	for {
		select {
		case <-ctx.Done():
			logging.From(ctx).Info("scheduler stopped")
			return nil
		case t, ok := <-triggers:
			if !ok {
				return nil
			}
			x.trigger(ctx, t)
		}
	}
}

// Trigger starts a cycle in the background. It returns false, and records the
// trigger as dropped, if a cycle is already running.
func (x *Scheduler) Trigger(ctx context.Context, source types.TriggerSource) bool {
	return x.trigger(ctx, Trigger{Source: source, At: x.clock()})
}

func (x *Scheduler) trigger(ctx context.Context, t Trigger) bool {
	if !x.acquire(ctx, t) {
		return false
	}

	// The cycle outlives the request or loop iteration that triggered it.
	cycleCtx := context.WithoutCancel(ctx)
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		report, err := x.runCycle(cycleCtx, t)
		x.finish(report)
		if err != nil {
			errutil.HandleError(cycleCtx, "cycle failed to start", err)
		}
	}()
	return true
}

// RunOnce runs one cycle and waits for its report. It fails with
// ErrCycleRunning if a cycle is already running.
func (x *Scheduler) RunOnce(ctx context.Context, source types.TriggerSource) (*model.RunReport, error) {
	t := Trigger{Source: source, At: x.clock()}
	if !x.acquire(ctx, t) {
		return nil, goerr.Wrap(ErrCycleRunning, "trigger dropped", goerr.V("source", source))
	}
	report, err := x.runCycle(ctx, t)
	x.finish(report)
	return report, err
}

// Wait blocks until the background cycle, if any, has finished.
func (x *Scheduler) Wait() {
	x.wg.Wait()
}

// Latest returns the running or most recent run, or nil before the first one.
func (x *Scheduler) Latest() *model.ScheduledRun {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.latest.Copy()
}

// DroppedTriggers returns the number of triggers dropped because a cycle was
// running.
func (x *Scheduler) DroppedTriggers() int64 {
	return x.dropped.Load()
}

func (x *Scheduler) acquire(ctx context.Context, t Trigger) bool {
	if x.running.CompareAndSwap(false, true) {
		x.mu.Lock()
		x.latest = model.NewScheduledRun(t.Source, t.At, x.dryRun)
		x.mu.Unlock()
		return true
	}

	x.dropped.Add(1)
	var runID types.RunID
	if latest := x.Latest(); latest != nil {
		runID = latest.ID
	}
	logging.From(ctx).Warn("trigger dropped, cycle already running",
		slog.String("source", string(t.Source)),
		slog.Time("at", t.At),
	)

	entry := model.NewAuditEntry(model.AuditTriggerDropped, runID, x.clock())
	entry.Reason = "cycle already running; trigger " + string(t.Source) + " dropped"
	if err := x.sink.Append(ctx, entry); err != nil {
		errutil.HandleError(ctx, "failed to record dropped trigger", err)
	}
	return false
}

// finish publishes the finished run and accepts triggers again. The running
// flag is cleared under the same lock as latest, so a caller that sees a
// finished run can trigger the next one.
func (x *Scheduler) finish(report *model.RunReport) {
	x.mu.Lock()
	if report != nil {
		x.latest = report.Run.Copy()
	}
	if x.latest != nil {
		x.latest.IsCurrentlyRunning = false
	}
	x.running.Store(false)
	x.mu.Unlock()

	if report != nil && x.done != nil {
		x.done(report)
	}
}

func (x *Scheduler) runCycle(ctx context.Context, t Trigger) (*model.RunReport, error) {
	x.mu.RLock()
	runID := x.latest.ID
	x.mu.RUnlock()

	report, err := x.uc.RunCycle(ctx, &model.RunCycleInput{
		RunID:   runID,
		Trigger: t.Source,
		DryRun:  x.dryRun,
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// TickerTrigger sends a timer trigger every period until ctx is done.
func TickerTrigger(ctx context.Context, period time.Duration) <-chan Trigger {
	ch := make(chan Trigger)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case at := <-ticker.C:
				select {
				case ch <- Trigger{Source: types.TriggerTimer, At: at.UTC()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
