//go:build unit

package resilience_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/usecase/resilience"
	"loans-service/tests/common/builder"
	"loans-service/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSaga(store *fake.LoanStore, cat *fake.Catalog) *resilience.SagaStrategy {
	clk := clock.NewMockClock(builder.DefaultLoanDate)
	cfg := config.SagaConfig{Timeout: 100 * time.Millisecond}
	return resilience.NewSagaStrategy(store, cat, clk, cfg, resilience.NewSagaTracker())
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSagaStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path reserves the book and returns an active loan", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.True(t, result.Success)
		require.NotNil(t, result.Loan)
		assert.Equal(t, loan.StatusActive, result.Loan.Status())
		assert.Equal(t, catalog.BookStatusLoaned, cat.Reserved["book-001"])
		assert.Equal(t,
			[]string{"availability.checked", "loan.created", "book.reserved", "loan.confirmed"},
			result.Details["sagaSteps"])

		stored, err := store.FindByID(ctx, result.Loan.ID())
		require.NoError(t, err)
		assert.Equal(t, loan.StatusActive, stored.Status())
		assert.Equal(t, 0, s.Status()["pendingSagas"])
	})

	t.Run("push confirmation activates a pending loan", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		s := newSaga(store, cat)

		pending := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		store.Seed(pending)

		s.HandleLoanConfirmed(ctx, mustJSON(t, catalog.LoanConfirmed{
			LoanID: pending.ID().String(),
			BookID: pending.BookID(),
		}))

		stored, err := store.FindByID(ctx, pending.ID())
		require.NoError(t, err)
		assert.Equal(t, loan.StatusActive, stored.Status())
	})

	t.Run("push rejection compensates exactly once", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		s := newSaga(store, cat)

		pending := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		store.Seed(pending)
		loanID := pending.ID()

		rejection := mustJSON(t, catalog.LoanRejected{
			LoanID: loanID.String(),
			BookID: "book-001",
			Reason: "libro dañado",
		})
		s.HandleLoanRejected(ctx, rejection)

		stored, err := store.FindByID(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusFailed, stored.Status())
		require.NotNil(t, stored.FailureReason())
		assert.Equal(t, "libro dañado", *stored.FailureReason())
		require.Len(t, cat.Compensated, 1)
		assert.Equal(t, "book-001", cat.Compensated[0].BookID)

		// Redelivery of the same rejection must not change the outcome.
		s.HandleLoanRejected(ctx, rejection)
		stored, err = store.FindByID(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusFailed, stored.Status())
		assert.Equal(t, "libro dañado", *stored.FailureReason())
	})

	t.Run("reservation failure marks the loan failed and compensates once", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		cat.UpdateErr = errors.New("connection refused")
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		assert.Equal(t, resilience.MsgReserveRejected, result.Error)

		failed, err := store.FindByStatus(ctx, loan.StatusFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		require.NotNil(t, failed[0].FailureReason())
		require.Len(t, cat.Compensated, 1)
		assert.Equal(t, failed[0].ID().String(), cat.Compensated[0].LoanID)
	})

	t.Run("reservation rejected by books-service keeps the collaborator reason", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		cat.UpdateFailure = "libro en mantenimiento"
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		failed, err := store.FindByStatus(ctx, loan.StatusFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		require.NotNil(t, failed[0].FailureReason())
		assert.Equal(t, "libro en mantenimiento", *failed[0].FailureReason())
		require.Len(t, cat.Compensated, 1)
	})

	t.Run("confirmation failure compensates the persisted loan", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		store.ConfirmErr = errors.New("db down")
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		require.Len(t, cat.Compensated, 1)
		failed, err := store.FindByStatus(ctx, loan.StatusFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
	})

	t.Run("loan insert failure needs no compensation", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		store.CreateErr = errors.New("db down")
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		assert.Equal(t, 0, cat.UpdateCalls)
		assert.Empty(t, cat.Compensated)
	})

	t.Run("unknown book surfaces the collaborator error", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		cat.CheckFailure = "Libro no encontrado"
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		assert.Equal(t, "Libro no encontrado", result.Error)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("unavailable book short-circuits the saga", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		cat.Available = false
		s := newSaga(store, cat)

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		assert.Equal(t, resilience.MsgBookUnavailable, result.Error)
		assert.Equal(t, 0, cat.UpdateCalls)
	})

	t.Run("malformed confirmation payload is ignored", func(t *testing.T) {
		store := fake.NewLoanStore()
		cat := fake.NewCatalog()
		s := newSaga(store, cat)

		s.HandleLoanConfirmed(ctx, json.RawMessage(`{"loanId": "not-a-uuid"}`))
		s.HandleLoanConfirmed(ctx, json.RawMessage(`not json`))
		assert.Equal(t, 0, store.ConfirmCalls)
	})
}
