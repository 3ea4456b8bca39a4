//go:build unit

package resilience_test

import (
	"context"
	"errors"
	"testing"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/usecase/resilience"
	"loans-service/tests/common/builder"
	"loans-service/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutboxFixture() (*fake.LoanStore, *fake.OutboxStore, *fake.Emitter, *resilience.OutboxStrategy) {
	events := fake.NewOutboxStore()
	store := fake.NewLoanStore()
	store.Events = events
	emitter := fake.NewEmitter()
	clk := clock.NewMockClock(builder.DefaultLoanDate)
	return store, events, emitter, resilience.NewOutboxStrategy(store, events, emitter, clk)
}

func TestOutboxStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("loan and event are written together and delivered inline", func(t *testing.T) {
		store, events, emitter, s := newOutboxFixture()

		result := s.CreateLoan(ctx, defaultInput())

		require.True(t, result.Success)
		assert.Equal(t, loan.StatusActive, result.Loan.Status())
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, true, result.Details["deliveredInline"])

		require.Equal(t, 1, emitter.Count())
		assert.Equal(t, catalog.EventLoanRequested, emitter.Emitted[0].Pattern)

		pending, err := events.CountUnprocessed(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, pending)
	})

	t.Run("broker outage does not fail the request", func(t *testing.T) {
		_, events, emitter, s := newOutboxFixture()
		emitter.Err = errors.New("broker down")

		result := s.CreateLoan(ctx, defaultInput())

		require.True(t, result.Success)
		assert.Equal(t, false, result.Details["deliveredInline"])

		// The event stays queued for the worker.
		pending, err := events.CountUnprocessed(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
	})

	t.Run("store failure is the only fatal outcome", func(t *testing.T) {
		store, _, emitter, s := newOutboxFixture()
		store.CreateErr = errors.New("db down")

		result := s.CreateLoan(ctx, defaultInput())

		require.False(t, result.Success)
		assert.Equal(t, "No se pudo registrar el préstamo", result.Error)
		assert.Equal(t, 0, emitter.Count())
	})

	t.Run("status reports the pending backlog", func(t *testing.T) {
		_, _, emitter, s := newOutboxFixture()
		emitter.Err = errors.New("broker down")
		s.CreateLoan(ctx, defaultInput())
		s.CreateLoan(ctx, defaultInput())

		assert.Equal(t, 2, s.Status()["pendingEvents"])
	})
}
