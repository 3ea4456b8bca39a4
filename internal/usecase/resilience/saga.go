package resilience

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/pkg/errs"

	"github.com/google/uuid"
)

const (
	sagaStatusPending     = "pending"
	sagaStatusCompleted   = "completed"
	sagaStatusCompensated = "compensated"

	// recentSagaLimit caps how many finished sagas Status() reports.
	recentSagaLimit = 5
)

type sagaRecord struct {
	LoanID    string    `json:"loanId"`
	BookID    string    `json:"bookId"`
	StartedAt time.Time `json:"startedAt"`
	Status    string    `json:"status"`
}

// SagaTracker keeps in-flight and recently finished sagas for the status
// endpoint. It is bookkeeping only; the loan table is the source of truth.
type SagaTracker struct {
	mu      sync.Mutex
	records map[string]*sagaRecord
	order   []string
}

func NewSagaTracker() *SagaTracker {
	return &SagaTracker{records: make(map[string]*sagaRecord)}
}

func (t *SagaTracker) Begin(loanID, bookID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[loanID] = &sagaRecord{LoanID: loanID, BookID: bookID, StartedAt: now, Status: sagaStatusPending}
	t.order = append(t.order, loanID)
	if len(t.order) > recentSagaLimit*4 {
		evicted := t.order[0]
		t.order = t.order[1:]
		delete(t.records, evicted)
	}
}

func (t *SagaTracker) Finish(loanID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[loanID]; ok {
		rec.Status = status
	}
}

func (t *SagaTracker) Snapshot() (pending int, recent []sagaRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.order) - 1; i >= 0 && len(recent) < recentSagaLimit; i-- {
		rec := t.records[t.order[i]]
		if rec == nil {
			continue
		}
		if rec.Status == sagaStatusPending {
			pending++
		}
		recent = append(recent, *rec)
	}
	return pending, recent
}

// SagaStrategy runs the loan as an orchestrated saga of local transactions:
// persist a pending loan, ask books-service to reserve the book, then confirm
// the loan to active. Once the loan exists every failure triggers a
// compensation that marks it failed and releases the book.
type SagaStrategy struct {
	store LoanStore
	cat   Catalog
	clk   clock.Clock
	cfg   config.SagaConfig
	track *SagaTracker
}

func NewSagaStrategy(store LoanStore, cat Catalog, clk clock.Clock, cfg config.SagaConfig, track *SagaTracker) *SagaStrategy {
	return &SagaStrategy{store: store, cat: cat, clk: clk, cfg: cfg, track: track}
}

func (s *SagaStrategy) Name() string { return StrategySaga }

func (s *SagaStrategy) Description() string {
	return "Saga con compensación: reserva el libro y revierte si algún paso falla"
}

func (s *SagaStrategy) CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult {
	steps := []string{}
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	// Step 1: availability check. Nothing to undo yet.
	avail, err := s.cat.CheckAvailability(reqCtx, in.BookID)
	if err != nil {
		return failure(s.Name(),
			"No se pudo comunicar con books-service: "+err.Error(),
			map[string]any{"bookId": in.BookID, "sagaSteps": steps})
	}
	if !avail.Success {
		msg := avail.Error
		if msg == "" {
			msg = "Libro no encontrado"
		}
		return failure(s.Name(), msg, map[string]any{"bookId": in.BookID, "sagaSteps": steps})
	}
	if !avail.Available {
		return failure(s.Name(), MsgBookUnavailable,
			map[string]any{"bookId": in.BookID, "sagaSteps": steps})
	}
	steps = append(steps, "availability.checked")

	// Step 2: first local transaction, the pending loan.
	l, err := loan.NewLoan(in.BookID, in.UserID, in.UserName, loan.StatusPending, s.clk.Now())
	if err != nil {
		return failure(s.Name(), err.Error(), map[string]any{"bookId": in.BookID, "sagaSteps": steps})
	}
	if err := s.store.Create(ctx, l); err != nil {
		slog.Error("loan insert failed", "strategy", s.Name(), "error", errs.ExtractStackLines(err, 5))
		return failure(s.Name(), "No se pudo registrar el préstamo",
			map[string]any{"bookId": in.BookID, "sagaSteps": steps})
	}
	s.track.Begin(l.ID().String(), in.BookID, s.clk.Now())
	steps = append(steps, "loan.created")

	// Step 3: ask books-service to reserve the book. The loan exists now, so
	// every failure from here on compensates.
	upd, err := s.cat.UpdateStatus(reqCtx, in.BookID, catalog.BookStatusLoaned)
	if err != nil || !upd.Success {
		reason := "books-service rechazó la reserva"
		if err != nil {
			reason = "No se pudo comunicar con books-service: " + err.Error()
		} else if upd.Error != "" {
			reason = upd.Error
		}
		s.compensate(ctx, l.ID(), in.BookID, reason)
		return failure(s.Name(), MsgReserveRejected, map[string]any{
			"bookId":       in.BookID,
			"loanId":       l.ID().String(),
			"sagaSteps":    steps,
			"compensation": "préstamo marcado como failed",
		})
	}
	steps = append(steps, "book.reserved")

	// Step 4: confirm the loan, closing the saga synchronously.
	confirmed, err := s.store.Confirm(ctx, l.ID())
	if err != nil {
		slog.Error("loan confirm failed", "loanId", l.ID(), "error", errs.ExtractStackLines(err, 5))
		s.compensate(ctx, l.ID(), in.BookID, "no se pudo confirmar el préstamo")
		return failure(s.Name(), "No se pudo confirmar el préstamo", map[string]any{
			"bookId":       in.BookID,
			"loanId":       l.ID().String(),
			"sagaSteps":    steps,
			"compensation": "préstamo marcado como failed",
		})
	}
	steps = append(steps, "loan.confirmed")
	s.track.Finish(confirmed.ID().String(), sagaStatusCompleted)

	return success(s.Name(), confirmed, map[string]any{
		"bookId":    in.BookID,
		"sagaSteps": steps,
	})
}

// HandleLoanConfirmed processes the loan.confirmed push from books-service,
// the asynchronous counterpart of the synchronous confirmation in step 4.
// Confirming an already active loan is a no-op, so redelivery is harmless.
func (s *SagaStrategy) HandleLoanConfirmed(ctx context.Context, data json.RawMessage) {
	var ev catalog.LoanConfirmed
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("malformed loan.confirmed event", "error", err)
		return
	}
	id, err := uuid.Parse(ev.LoanID)
	if err != nil {
		slog.Warn("loan.confirmed with invalid loan id", "loanId", ev.LoanID)
		return
	}
	if _, err := s.store.Confirm(ctx, id); err != nil {
		slog.Error("loan confirm failed", "loanId", ev.LoanID, "error", errs.ExtractStackLines(err, 5))
		return
	}
	s.track.Finish(ev.LoanID, sagaStatusCompleted)
	slog.Info("saga completed", "loanId", ev.LoanID)
}

// HandleLoanRejected compensates a rejected loan request.
func (s *SagaStrategy) HandleLoanRejected(ctx context.Context, data json.RawMessage) {
	var ev catalog.LoanRejected
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("malformed loan.rejected event", "error", err)
		return
	}
	id, err := uuid.Parse(ev.LoanID)
	if err != nil {
		slog.Warn("loan.rejected with invalid loan id", "loanId", ev.LoanID)
		return
	}
	reason := ev.Reason
	if reason == "" {
		reason = "rechazado por books-service"
	}
	s.compensate(ctx, id, ev.BookID, reason)
}

// compensate marks the loan failed and asks books-service to release the
// book. Both sides are idempotent, so a duplicate rejection converges to the
// same state.
func (s *SagaStrategy) compensate(ctx context.Context, loanID uuid.UUID, bookID, reason string) {
	if _, err := s.store.Reject(ctx, loanID, reason); err != nil {
		slog.Error("saga compensation reject failed", "loanId", loanID, "error", errs.ExtractStackLines(err, 5))
	}
	s.track.Finish(loanID.String(), sagaStatusCompensated)
	s.releaseBook(ctx, bookID, loanID.String(), reason)
	slog.Info("saga compensated", "loanId", loanID, "reason", reason)
}

func (s *SagaStrategy) releaseBook(ctx context.Context, bookID, loanID, reason string) {
	ev := catalog.SagaCompensate{BookID: bookID, LoanID: loanID, Reason: reason}
	if err := s.cat.EmitSagaCompensate(ctx, ev); err != nil {
		slog.Error("saga.compensate emit failed", "bookId", bookID, "error", err)
	}
}

func (s *SagaStrategy) Status() map[string]any {
	pending, recent := s.track.Snapshot()
	return map[string]any{
		"strategy":     s.Name(),
		"timeout":      s.cfg.Timeout.String(),
		"pendingSagas": pending,
		"recentSagas":  recent,
	}
}
