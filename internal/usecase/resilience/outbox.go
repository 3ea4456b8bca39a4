package resilience

import (
	"context"
	"log/slog"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/errs"
)

// OutboxStrategy persists the loan and its notification event in one local
// transaction and answers immediately. Delivery to books-service happens
// afterwards, best effort inline and guaranteed by the background worker.
// The write is optimistic: availability is not checked first, so a conflict
// is resolved later by books-service rejecting the request.
type OutboxStrategy struct {
	store   LoanStore
	events  OutboxStore
	emitter Emitter
	clk     clock.Clock
}

func NewOutboxStrategy(store LoanStore, events OutboxStore, emitter Emitter, clk clock.Clock) *OutboxStrategy {
	return &OutboxStrategy{store: store, events: events, emitter: emitter, clk: clk}
}

func (s *OutboxStrategy) Name() string { return StrategyOutbox }

func (s *OutboxStrategy) Description() string {
	return "Transactional outbox: escribe local y entrega el evento al menos una vez"
}

func (s *OutboxStrategy) CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult {
	now := s.clk.Now()
	l, err := loan.NewLoan(in.BookID, in.UserID, in.UserName, loan.StatusActive, now)
	if err != nil {
		return failure(s.Name(), err.Error(), map[string]any{"bookId": in.BookID})
	}

	ev, err := outbox.NewEvent(catalog.EventLoanRequested, loanRequestedEvent(l, now), now)
	if err != nil {
		return failure(s.Name(), "No se pudo registrar el préstamo", map[string]any{"bookId": in.BookID})
	}

	if err := s.store.CreateWithEvent(ctx, l, ev); err != nil {
		slog.Error("loan+event insert failed", "strategy", s.Name(), "error", errs.ExtractStackLines(err, 5))
		return failure(s.Name(), "No se pudo registrar el préstamo", map[string]any{"bookId": in.BookID})
	}

	// Inline fast path. Failure here is fine, the worker picks the event up.
	delivered := s.tryDeliver(ctx, ev)

	return success(s.Name(), l, map[string]any{
		"bookId":             in.BookID,
		"eventId":            ev.ID.String(),
		"deliveredInline":    delivered,
		"deliveryGuaranteed": true,
	})
}

func (s *OutboxStrategy) tryDeliver(ctx context.Context, ev *outbox.Event) bool {
	emitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.emitter.Emit(emitCtx, ev.EventType, ev.Payload); err != nil {
		slog.Warn("inline outbox delivery failed, deferring to worker",
			"eventId", ev.ID, "error", err)
		return false
	}
	if err := s.events.MarkProcessed(ctx, ev.ID, s.clk.Now()); err != nil {
		// Already delivered; the worker may deliver again. At-least-once.
		slog.Warn("mark processed failed after inline delivery", "eventId", ev.ID, "error", err)
	}
	return true
}

func (s *OutboxStrategy) Status() map[string]any {
	status := map[string]any{"strategy": s.Name()}
	pending, err := s.events.CountUnprocessed(context.Background())
	if err != nil {
		status["pendingEvents"] = "unknown"
		return status
	}
	status["pendingEvents"] = pending
	return status
}
