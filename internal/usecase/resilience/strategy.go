// Package resilience implements the four interchangeable strategies that
// guard the cross-service "lend a book" transaction: none (baseline),
// circuit-breaker (fail fast on a broken collaborator), saga (compensating
// local transactions) and outbox (durable at-least-once notification).
package resilience

import (
	"context"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra/catalog"

	"github.com/google/uuid"
)

const (
	StrategyNone           = "none"
	StrategyCircuitBreaker = "circuit-breaker"
	StrategySaga           = "saga"
	StrategyOutbox         = "outbox"
)

// User-facing failure texts, kept verbatim from the public API contract.
const (
	MsgBookUnavailable = "El libro no está disponible para préstamo"
	MsgCircuitOpen     = "Circuito abierto: books-service no está disponible. Intente más tarde."
	MsgReserveRejected = "No se pudo reservar el libro"
)

type CreateLoanInput struct {
	BookID   string
	UserID   string
	UserName string
}

// LoanResult is the uniform outcome of a CreateLoan attempt. Failures are
// data, not Go errors: every strategy converts its internal errors into a
// failed result with enough detail to reproduce the failing step.
type LoanResult struct {
	Success bool
	Loan    *loan.Loan
	Error   string
	Details map[string]any
}

func failure(strategy, msg string, details map[string]any) *LoanResult {
	if details == nil {
		details = map[string]any{}
	}
	details["strategy"] = strategy
	return &LoanResult{Success: false, Error: msg, Details: details}
}

func success(strategy string, l *loan.Loan, details map[string]any) *LoanResult {
	if details == nil {
		details = map[string]any{}
	}
	details["strategy"] = strategy
	return &LoanResult{Success: true, Loan: l, Details: details}
}

// Strategy is the resilience contract. Implementations must be safe for
// concurrent calls; none of them may assume exclusive catalog access.
type Strategy interface {
	Name() string
	Description() string
	CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult
	Status() map[string]any
}

// LoanStore is the slice of the loan repository the strategies need.
type LoanStore interface {
	Create(ctx context.Context, l *loan.Loan) error
	CreateWithEvent(ctx context.Context, l *loan.Loan, ev *outbox.Event) error
	Confirm(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*loan.Loan, error)
}

// OutboxStore is the slice of the outbox repository used by the outbox
// strategy and its worker.
type OutboxStore interface {
	FindUnprocessed(ctx context.Context) ([]*outbox.Event, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementRetry(ctx context.Context, id uuid.UUID, lastError string) error
	CountUnprocessed(ctx context.Context) (int, error)
}

// Catalog is the books-service collaborator as the strategies consume it.
type Catalog interface {
	CheckAvailability(ctx context.Context, bookID string) (*catalog.AvailabilityResult, error)
	UpdateStatus(ctx context.Context, bookID, status string) (*catalog.BookResult, error)
	EmitLoanRequested(ctx context.Context, ev catalog.LoanRequested) error
	EmitSagaCompensate(ctx context.Context, ev catalog.SagaCompensate) error
}

// Emitter re-publishes stored outbox events; satisfied by messaging.Client.
type Emitter interface {
	Emit(ctx context.Context, pattern string, payload any) error
}

func loanRequestedEvent(l *loan.Loan, now time.Time) catalog.LoanRequested {
	return catalog.LoanRequested{
		BookID:    l.BookID(),
		LoanID:    l.ID().String(),
		UserID:    l.UserID(),
		UserName:  l.UserName(),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
