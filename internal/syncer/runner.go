// Package syncer drains the sync queue: it pushes due items through a Transport and reports
// every outcome back to the queue engine.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

var ErrAlreadyStarted = errors.New("runner already started")

type Options struct {
	// Interval between drains in daemon mode.
	Interval time.Duration
	// RequestTimeout bounds one push. Zero means no timeout besides the parent context.
	RequestTimeout time.Duration
	// BatchSize caps the items pushed per run. Zero means all due items.
	BatchSize int
}

// Summary counts the outcomes of one run.
type Summary struct {
	Due        int `json:"due" yaml:"due"`
	Synced     int `json:"synced" yaml:"synced"`
	Superseded int `json:"superseded" yaml:"superseded"`
	ServerWins int `json:"server_wins" yaml:"server_wins"`
	Retried    int `json:"retried" yaml:"retried"`
	Failed     int `json:"failed" yaml:"failed"`
}

type Runner struct {
	engine    *syncqueue.Engine
	transport Transport
	clock     timestamp.Clock
	logger    *logger.Logger
	options   Options

	mu        sync.Mutex
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

func NewRunner(engine *syncqueue.Engine, transport Transport, clock timestamp.Clock, log *logger.Logger, options Options) *Runner {
	if clock == nil {
		clock = timestamp.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		engine:    engine,
		transport: transport,
		clock:     clock,
		logger:    log,
		options:   options,
	}
}

// RunOnce pushes the items due now in queue order. Each item ends in exactly one of
// MarkSynced, RecordFailure or ResolveConflict. When ctx is canceled mid-run the in-flight item
// is left untouched and ctx.Err() is returned.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	items, err := r.engine.ListDue(ctx, r.clock.Now())
	if err != nil {
		return summary, fmt.Errorf("engine.ListDue > %w", err)
	}
	if r.options.BatchSize > 0 && len(items) > r.options.BatchSize {
		items = items[:r.options.BatchSize]
	}
	summary.Due = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.push(ctx, item, &summary); err != nil {
			return summary, err
		}
	}

	if summary.Due > 0 {
		r.logger.Info("sync run finished",
			"due", summary.Due,
			"synced", summary.Synced,
			"superseded", summary.Superseded,
			"server_wins", summary.ServerWins,
			"retried", summary.Retried,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (r *Runner) push(ctx context.Context, item syncqueue.Item, summary *Summary) error {
	pushCtx := ctx
	if r.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		pushCtx, cancel = context.WithTimeout(ctx, r.options.RequestTimeout)
		defer cancel()
	}

	result, err := r.transport.Push(pushCtx, item)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.recordFailure(ctx, item, err.Error(), summary)
	}

	switch result.Status {
	case PushAccepted:
		deleted, err := r.engine.MarkSynced(ctx, item)
		if err != nil {
			return fmt.Errorf("engine.MarkSynced > %w", err)
		}
		if deleted {
			summary.Synced++
		} else {
			// edited again while the push was in flight; the newer snapshot stays queued
			summary.Superseded++
		}
		return nil
	case PushConflict:
		resolution, err := r.engine.ResolveConflict(ctx, item.ID, result.ServerUpdatedAt, r.clock.Now())
		if err != nil {
			return fmt.Errorf("engine.ResolveConflict > %w", err)
		}
		r.logger.Info("sync conflict",
			"entity_type", item.EntityType,
			"entity_id", item.EntityID,
			"client_updated_at", item.ClientUpdatedAt.String(),
			"server_updated_at", timestamp.New(result.ServerUpdatedAt).String(),
			"resolution", resolution,
		)
		if resolution == syncqueue.ResolutionServerWins {
			summary.ServerWins++
		} else {
			summary.Retried++
		}
		return nil
	default:
		return r.recordFailure(ctx, item, fmt.Sprintf("unknown push status %q", result.Status), summary)
	}
}

func (r *Runner) recordFailure(ctx context.Context, item syncqueue.Item, message string, summary *Summary) error {
	updated, err := r.engine.RecordFailure(ctx, item.ID, message, r.clock.Now())
	if err != nil {
		return fmt.Errorf("engine.RecordFailure > %w", err)
	}
	summary.Failed++
	if updated != nil {
		r.logger.Warn("sync push failed",
			"entity_type", item.EntityType,
			"entity_id", item.EntityID,
			"attempt", updated.Attempt,
			"next_attempt_at", updated.NextAttemptAt.String(),
			"error", message,
		)
	}
	return nil
}

// Start drains the queue every Interval until Stop is called or ctx is done.
// The first run starts immediately and runs never overlap.
func (r *Runner) Start(ctx context.Context) error {
	if r.options.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", r.options.Interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(r.options.Interval).Do(func() {
		if runCtx.Err() != nil {
			return
		}
		if _, err := r.RunOnce(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("sync run failed", "error", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("scheduler.Do > %w", err)
	}
	scheduler.StartAsync()

	r.scheduler = scheduler
	r.cancel = cancel
	r.logger.Info("sync runner started", "interval", r.options.Interval.String())
	return nil
}

// Stop cancels the in-flight run and waits for it to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler == nil {
		return
	}
	r.cancel()
	r.scheduler.Stop()
	r.scheduler = nil
	r.cancel = nil
	r.logger.Info("sync runner stopped")
}
