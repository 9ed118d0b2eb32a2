package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/client/outbox"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// ApplyFunc replays one queued action against the server. A nil return
// acknowledges the action; an error schedules a retry.
type ApplyFunc func(ctx context.Context, a outbox.Action) error

// DeadFunc is invoked after an action is parked in the dead letter set.
type DeadFunc func(a outbox.Action, cause error)

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Outbox *outbox.Outbox
	Apply  ApplyFunc
	OnDead DeadFunc
	// MaxRetries parks an action after this many failed attempts. Zero
	// means the default of 3.
	MaxRetries int
	// BackoffMin and BackoffMax bound the wait between drain passes.
	BackoffMin time.Duration
	BackoffMax time.Duration
	Logger     logpkg.Logger
}

// Reconciler drains the outbox serially in FIFO order. Only one drain runs
// at a time; re-entry while a drain is active is a no-op.
type Reconciler struct {
	out        *outbox.Outbox
	apply      ApplyFunc
	onDead     DeadFunc
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
	log        logpkg.Logger

	draining atomic.Bool
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	r := &Reconciler{
		out:        opts.Outbox,
		apply:      opts.Apply,
		onDead:     opts.OnDead,
		maxRetries: opts.MaxRetries,
		backoffMin: opts.BackoffMin,
		backoffMax: opts.BackoffMax,
		log:        logger.WithComponent("reconciler"),
	}
	if r.maxRetries <= 0 {
		r.maxRetries = 3
	}
	if r.backoffMin <= 0 {
		r.backoffMin = 200 * time.Millisecond
	}
	if r.backoffMax <= 0 {
		r.backoffMax = 30 * time.Second
	}
	return r
}

// Draining reports whether a drain is currently running.
func (r *Reconciler) Draining() bool { return r.draining.Load() }

// Drain replays pending actions oldest-first until the queue is empty. A
// failed action is retried with exponential backoff between passes and
// dead-lettered after MaxRetries attempts; failures never block the actions
// behind them within a pass. Calling Drain while one is already running
// returns immediately.
func (r *Reconciler) Drain(ctx context.Context) error {
	if !r.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer r.draining.Store(false)

	for pass := 0; ; pass++ {
		actions, err := r.out.PeekAll()
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			return nil
		}
		anyFailed := false
		for _, a := range actions {
			if err := ctx.Err(); err != nil {
				return err
			}
			applyErr := r.apply(ctx, a)
			if applyErr == nil {
				if err := r.out.Remove(ctx, a.Seq); err != nil {
					return err
				}
				continue
			}
			if errors.Is(applyErr, ErrSuspended) {
				// Connectivity lost mid-drain. Leave the queue as is;
				// the next reconnect resumes from here.
				return nil
			}
			retries, err := r.out.IncrementRetry(ctx, a.Seq, applyErr)
			if err != nil {
				return err
			}
			if retries >= r.maxRetries {
				if err := r.out.MarkDead(ctx, a.Seq); err != nil {
					return err
				}
				r.log.Warnf("action %s dead after %d attempts: %v", a.ID, retries, applyErr)
				if r.onDead != nil {
					r.onDead(a, applyErr)
				}
				continue
			}
			anyFailed = true
			r.log.Debugf("action %s failed (attempt %d): %v", a.ID, retries, applyErr)
		}
		if !anyFailed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(pass)):
		}
	}
}

// backoff grows exponentially from BackoffMin, capped at BackoffMax.
func (r *Reconciler) backoff(pass int) time.Duration {
	d := r.backoffMin
	for i := 0; i < pass && d < r.backoffMax; i++ {
		d *= 2
	}
	if d > r.backoffMax {
		d = r.backoffMax
	}
	return d
}
