package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/errs"
	"loans-service/internal/usecase/resilience"

	"github.com/google/uuid"
)

// InvalidStateError reports a return attempt against a loan that is not
// active, carrying the offending status for the API layer.
type InvalidStateError struct {
	Status loan.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("no se puede devolver un préstamo con estado: %s", e.Status)
}

// LoanReturnStore is the repository surface the return command needs.
type LoanReturnStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	Return(ctx context.Context, id uuid.UUID, at time.Time) (*loan.Loan, error)
}

// ReturnNotifier emits the book.loan.returned event to books-service.
type ReturnNotifier interface {
	EmitLoanReturned(ctx context.Context, ev catalog.LoanReturned) error
}

// LoanCommands exposes the write operations of the loan API. Creation is
// delegated to the configured resilience strategy; returning is always a
// plain local transition plus a fire-and-forget notification.
type LoanCommands struct {
	selector *resilience.Selector
	store    LoanReturnStore
	notifier ReturnNotifier
	clk      clock.Clock
}

func NewLoanCommands(selector *resilience.Selector, store LoanReturnStore, notifier ReturnNotifier, clk clock.Clock) *LoanCommands {
	return &LoanCommands{selector: selector, store: store, notifier: notifier, clk: clk}
}

func (c *LoanCommands) CreateLoan(ctx context.Context, in resilience.CreateLoanInput) *resilience.LoanResult {
	return c.selector.CreateLoan(ctx, in)
}

// ReturnLoan closes an active loan. Returning an already returned loan is a
// caller error, not an idempotent no-op: the API contract reports it.
func (c *LoanCommands) ReturnLoan(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	current, err := c.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrLoanNotFound)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	switch {
	case current.Status() == loan.StatusReturned:
		return nil, errs.ErrLoanAlreadyReturned
	case current.Status() != loan.StatusActive:
		return nil, errs.Mark(&InvalidStateError{Status: current.Status()}, errs.ErrInvalidLoanState)
	}

	returned, err := c.store.Return(ctx, id, c.clk.Now())
	if err != nil {
		if infra.IsKind(err, infra.KindStaleTransition) {
			// Lost a race; re-read already reported the real state above,
			// so surface the conflict as an invalid transition.
			return nil, errs.ErrLoanAlreadyReturned
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	ev := catalog.LoanReturned{
		BookID: returned.BookID(),
		LoanID: returned.ID().String(),
	}
	if err := c.notifier.EmitLoanReturned(ctx, ev); err != nil {
		// The local state is committed; books-service catches up later.
		slog.Warn("loan.returned emit failed", "loanId", id, "error", err)
	}

	return returned, nil
}
