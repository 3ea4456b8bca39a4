package repository

import (
	"context"
	"errors"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra"
	"loans-service/internal/infra/tx"
	"loans-service/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so inserts can run
// standalone or inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const loanColumns = `id, book_id, user_id, user_name, loan_date, return_date, status, failure_reason`

type LoanRepository struct {
	db *pgxpool.Pool
}

func NewLoanRepository(db *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	if err := insertLoan(ctx, r.db, l); err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "failed to create loan", err)
	}
	return nil
}

// CreateWithEvent writes the loan and its outbox event in one transaction,
// the atomicity the outbox pattern depends on. The write is retried on
// serialization conflicts since the worker may touch the outbox concurrently.
func (r *LoanRepository) CreateWithEvent(ctx context.Context, l *loan.Loan, ev *outbox.Event) error {
	_, err := tx.WithDefaultRetry(ctx, r.db, func(t pgx.Tx) (struct{}, error) {
		if err := insertLoan(ctx, t, l); err != nil {
			return struct{}{}, err
		}
		if err := insertEvent(ctx, t, ev); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "failed to create loan with outbox event", err)
	}
	return nil
}

func (r *LoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(infra.KindNotFound, "loan not found", err)
		}
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to find loan", err)
	}
	return l, nil
}

func (r *LoanRepository) FindAll(ctx context.Context) ([]*loan.Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY loan_date DESC`)
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to list loans", err)
	}
	return collectLoans(rows)
}

func (r *LoanRepository) FindByStatus(ctx context.Context, status loan.Status) ([]*loan.Loan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status = $1 ORDER BY loan_date DESC`,
		string(status))
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to list loans by status", err)
	}
	return collectLoans(rows)
}

// Confirm transitions pending → active with a guarded update. Confirming a
// loan that is already active returns it unchanged.
func (r *LoanRepository) Confirm(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE loans SET status = $2 WHERE id = $1 AND status = $3 RETURNING `+loanColumns,
		id, string(loan.StatusActive), string(loan.StatusPending))
	l, err := scanLoan(row)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to confirm loan", err)
	}
	return r.resolveStaleTransition(ctx, id, loan.StatusActive, "loan not confirmable")
}

// Reject transitions pending or active → failed, recording the reason.
// Rejecting an already failed loan returns it unchanged.
func (r *LoanRepository) Reject(ctx context.Context, id uuid.UUID, reason string) (*loan.Loan, error) {
	if len(reason) > loan.MaxFailureReasonLength {
		reason = reason[:loan.MaxFailureReasonLength]
	}
	row := r.db.QueryRow(ctx,
		`UPDATE loans SET status = $2, failure_reason = $3
		 WHERE id = $1 AND status IN ($4, $5) RETURNING `+loanColumns,
		id, string(loan.StatusFailed), reason,
		string(loan.StatusPending), string(loan.StatusActive))
	l, err := scanLoan(row)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to reject loan", err)
	}
	return r.resolveStaleTransition(ctx, id, loan.StatusFailed, "loan not rejectable")
}

// Return transitions active → returned, stamping the return date.
func (r *LoanRepository) Return(ctx context.Context, id uuid.UUID, at time.Time) (*loan.Loan, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE loans SET status = $2, return_date = $3
		 WHERE id = $1 AND status = $4 RETURNING `+loanColumns,
		id, string(loan.StatusReturned), pgconv.TimestamptzFromTime(at), string(loan.StatusActive))
	l, err := scanLoan(row)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to return loan", err)
	}
	return r.resolveStaleTransition(ctx, id, loan.StatusReturned, "loan not returnable")
}

// resolveStaleTransition re-reads the row after a guarded update matched
// nothing: either the loan is gone, already in the desired state (benign
// duplicate), or in a state the transition does not allow.
func (r *LoanRepository) resolveStaleTransition(ctx context.Context, id uuid.UUID, want loan.Status, msg string) (*loan.Loan, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status() == want {
		return current, nil
	}
	return nil, infra.WrapRepoErr(infra.KindStaleTransition,
		msg+" from status "+string(current.Status()), nil)
}

func insertLoan(ctx context.Context, q querier, l *loan.Loan) error {
	_, err := q.Exec(ctx,
		`INSERT INTO loans (id, book_id, user_id, user_name, loan_date, return_date, status, failure_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID(), l.BookID(), l.UserID(), l.UserName(),
		pgconv.TimestamptzFromTime(l.LoanDate()),
		pgconv.TimestamptzFromPtr(l.ReturnDate()),
		string(l.Status()),
		pgconv.TextFromPtr(l.FailureReason()),
	)
	return err
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var (
		id            pgtype.UUID
		bookID        string
		userID        string
		userName      string
		loanDate      pgtype.Timestamptz
		returnDate    pgtype.Timestamptz
		status        string
		failureReason pgtype.Text
	)
	if err := row.Scan(&id, &bookID, &userID, &userName, &loanDate, &returnDate, &status, &failureReason); err != nil {
		return nil, err
	}
	return loan.Reconstruct(
		pgconv.UUIDFromPgtype(id),
		bookID, userID, userName,
		pgconv.TimeFromPgtype(loanDate),
		pgconv.TimePtrFromPgtype(returnDate),
		loan.Status(status),
		pgconv.StringPtrFromPgtype(failureReason),
	), nil
}

func collectLoans(rows pgx.Rows) ([]*loan.Loan, error) {
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to scan loan", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "failed to iterate loans", err)
	}
	return loans, nil
}
