package resilience

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/pkg/errs"
)

// OutboxWorker drains unprocessed outbox events on a fixed interval. Events
// that keep failing are skipped once they reach the retry ceiling; they stay
// in the table for inspection and are never deleted.
type OutboxWorker struct {
	events  OutboxStore
	emitter Emitter
	clk     clock.Clock
	cfg     config.OutboxConfig

	busy      atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxWorker(events OutboxStore, emitter Emitter, clk clock.Clock, cfg config.OutboxConfig) *OutboxWorker {
	return &OutboxWorker{events: events, emitter: emitter, clk: clk, cfg: cfg}
}

// Start launches the polling loop. Call Stop to shut it down.
func (w *OutboxWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		slog.Info("outbox worker started", "interval", w.cfg.PollInterval.String())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunCycle(ctx)
			}
		}
	}()
}

func (w *OutboxWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("outbox worker stopped")
}

// RunCycle processes one batch of pending events. If a previous cycle is
// still running the call returns immediately; slow deliveries must not stack
// overlapping cycles that would double-send the same events.
func (w *OutboxWorker) RunCycle(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		slog.Debug("outbox cycle still running, skipping tick")
		return
	}
	defer w.busy.Store(false)

	pending, err := w.events.FindUnprocessed(ctx)
	if err != nil {
		slog.Error("outbox poll failed", "error", errs.ExtractStackLines(err, 5))
		return
	}
	for _, ev := range pending {
		if ctx.Err() != nil {
			return
		}
		if ev.Poisoned(w.cfg.MaxRetries) {
			w.skipped.Add(1)
			slog.Warn("skipping poisoned outbox event",
				"eventId", ev.ID, "eventType", ev.EventType,
				"retryCount", ev.RetryCount, "error", errs.ErrPoisonEvent)
			continue
		}
		if err := w.emitter.Emit(ctx, ev.EventType, ev.Payload); err != nil {
			w.failed.Add(1)
			slog.Warn("outbox delivery failed", "eventId", ev.ID, "error", err)
			if rerr := w.events.IncrementRetry(ctx, ev.ID, err.Error()); rerr != nil {
				slog.Error("retry bump failed", "eventId", ev.ID, "error", errs.ExtractStackLines(rerr, 5))
			}
			continue
		}
		if err := w.events.MarkProcessed(ctx, ev.ID, w.clk.Now()); err != nil {
			slog.Error("mark processed failed", "eventId", ev.ID, "error", errs.ExtractStackLines(err, 5))
			continue
		}
		w.processed.Add(1)
	}
}

func (w *OutboxWorker) Stats() map[string]any {
	return map[string]any{
		"processed":    w.processed.Load(),
		"failed":       w.failed.Load(),
		"skipped":      w.skipped.Load(),
		"pollInterval": w.cfg.PollInterval.String(),
		"maxRetries":   w.cfg.MaxRetries,
	}
}
