package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/errs"
)

// noneRequestTimeout bounds the synchronous availability check. Without it a
// dead books-service would hold the HTTP request open indefinitely.
const noneRequestTimeout = 5 * time.Second

// NoneStrategy is the baseline: one synchronous availability check, then a
// local write and a fire-and-forget notification. A slow or dead collaborator
// is surfaced to the caller after the request timeout with no retry.
type NoneStrategy struct {
	store LoanStore
	cat   Catalog
	clk   clock.Clock
}

func NewNoneStrategy(store LoanStore, cat Catalog, clk clock.Clock) *NoneStrategy {
	return &NoneStrategy{store: store, cat: cat, clk: clk}
}

func (s *NoneStrategy) Name() string { return StrategyNone }

func (s *NoneStrategy) Description() string {
	return "Sin resiliencia: llamada directa a books-service con timeout fijo"
}

func (s *NoneStrategy) CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult {
	reqCtx, cancel := context.WithTimeout(ctx, noneRequestTimeout)
	defer cancel()

	avail, err := s.cat.CheckAvailability(reqCtx, in.BookID)
	if err != nil {
		slog.Warn("availability check failed", "strategy", s.Name(), "bookId", in.BookID, "error", err)
		return failure(s.Name(),
			fmt.Sprintf("No se pudo comunicar con books-service: %v", err),
			map[string]any{"bookId": in.BookID})
	}
	if !avail.Success {
		msg := avail.Error
		if msg == "" {
			msg = "Error al verificar disponibilidad"
		}
		return failure(s.Name(), msg, map[string]any{"bookId": in.BookID})
	}
	if !avail.Available {
		return failure(s.Name(), MsgBookUnavailable, map[string]any{"bookId": in.BookID})
	}

	l, err := loan.NewLoan(in.BookID, in.UserID, in.UserName, loan.StatusActive, s.clk.Now())
	if err != nil {
		return failure(s.Name(), err.Error(), map[string]any{"bookId": in.BookID})
	}
	if err := s.store.Create(ctx, l); err != nil {
		slog.Error("loan insert failed", "strategy", s.Name(), "error", errs.ExtractStackLines(err, 5))
		return failure(s.Name(), "No se pudo registrar el préstamo", map[string]any{"bookId": in.BookID})
	}

	if err := s.cat.EmitLoanRequested(ctx, loanRequestedEvent(l, s.clk.Now())); err != nil {
		// The loan is already persisted; the notification is best effort here.
		slog.Warn("loan.requested emit failed", "strategy", s.Name(), "loanId", l.ID(), "error", err)
	}

	return success(s.Name(), l, map[string]any{"bookId": in.BookID})
}

func (s *NoneStrategy) Status() map[string]any {
	return map[string]any{
		"strategy": s.Name(),
		"timeout":  noneRequestTimeout.String(),
	}
}
