package queries

import (
	"context"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra"
	"loans-service/internal/pkg/errs"

	"github.com/google/uuid"
)

// LoanReadStore is the read-only repository surface the queries consume.
type LoanReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	FindAll(ctx context.Context) ([]*loan.Loan, error)
	FindByStatus(ctx context.Context, status loan.Status) ([]*loan.Loan, error)
}

type LoanQueries struct {
	store LoanReadStore
}

func NewLoanQueries(store LoanReadStore) *LoanQueries {
	return &LoanQueries{store: store}
}

func (q *LoanQueries) ListAll(ctx context.Context) ([]*loan.Loan, error) {
	return q.store.FindAll(ctx)
}

func (q *LoanQueries) ListActive(ctx context.Context) ([]*loan.Loan, error) {
	return q.store.FindByStatus(ctx, loan.StatusActive)
}

func (q *LoanQueries) ListPending(ctx context.Context) ([]*loan.Loan, error) {
	return q.store.FindByStatus(ctx, loan.StatusPending)
}

func (q *LoanQueries) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	l, err := q.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrLoanNotFound)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return l, nil
}
