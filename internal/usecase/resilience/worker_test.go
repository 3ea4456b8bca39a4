//go:build unit

package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/usecase/resilience"
	"loans-service/tests/common/builder"
	"loans-service/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workerConfig() config.OutboxConfig {
	return config.OutboxConfig{MaxRetries: 3, PollInterval: 10 * time.Millisecond}
}

func seedEvent(t *testing.T, events *fake.OutboxStore, retries int) *outbox.Event {
	t.Helper()
	ev, err := outbox.NewEvent(catalog.EventLoanRequested,
		catalog.LoanRequested{BookID: "book-001", LoanID: "loan-001"},
		builder.DefaultLoanDate)
	require.NoError(t, err)
	ev.RetryCount = retries
	require.NoError(t, events.Save(context.Background(), ev))
	return ev
}

func TestOutboxWorker(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(builder.DefaultLoanDate)

	t.Run("delivers pending events and marks them processed", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		ev := seedEvent(t, events, 0)

		w := resilience.NewOutboxWorker(events, emitter, clk, workerConfig())
		w.RunCycle(ctx)

		assert.Equal(t, 1, emitter.Count())
		assert.True(t, events.Get(ev.ID).Processed)
		assert.Equal(t, int64(1), w.Stats()["processed"])
	})

	t.Run("failed delivery bumps the retry count and keeps the event", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		emitter.Err = errors.New("broker down")
		ev := seedEvent(t, events, 0)

		w := resilience.NewOutboxWorker(events, emitter, clk, workerConfig())
		w.RunCycle(ctx)
		w.RunCycle(ctx)

		stored := events.Get(ev.ID)
		assert.False(t, stored.Processed)
		assert.Equal(t, 2, stored.RetryCount)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, "broker down", *stored.LastError)
	})

	t.Run("poisoned events are skipped, not deleted", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		cfg := workerConfig()
		ev := seedEvent(t, events, cfg.MaxRetries)

		w := resilience.NewOutboxWorker(events, emitter, clk, cfg)
		w.RunCycle(ctx)

		assert.Equal(t, 0, emitter.Count())
		stored := events.Get(ev.ID)
		assert.False(t, stored.Processed)
		assert.Equal(t, cfg.MaxRetries, stored.RetryCount)
		assert.Equal(t, int64(1), w.Stats()["skipped"])
	})

	t.Run("redelivery after a crash before mark is tolerated", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		events.MarkErr = errors.New("db hiccup")
		ev := seedEvent(t, events, 0)

		w := resilience.NewOutboxWorker(events, emitter, clk, workerConfig())
		w.RunCycle(ctx)

		// Delivered but not marked; the next cycle sends it again.
		events.MarkErr = nil
		w.RunCycle(ctx)

		assert.Equal(t, 2, emitter.Count())
		assert.True(t, events.Get(ev.ID).Processed)
	})

	t.Run("overlapping cycles are skipped", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		emitter.Gate = make(chan struct{})
		seedEvent(t, events, 0)

		w := resilience.NewOutboxWorker(events, emitter, clk, workerConfig())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.RunCycle(ctx)
		}()

		// Give the first cycle time to block inside Emit, then tick again.
		time.Sleep(20 * time.Millisecond)
		w.RunCycle(ctx)
		close(emitter.Gate)
		wg.Wait()

		assert.Equal(t, 1, emitter.Count())
	})

	t.Run("start and stop drive cycles from the ticker", func(t *testing.T) {
		events := fake.NewOutboxStore()
		emitter := fake.NewEmitter()
		ev := seedEvent(t, events, 0)

		w := resilience.NewOutboxWorker(events, emitter, clk, workerConfig())
		w.Start()
		defer w.Stop()

		require.Eventually(t, func() bool {
			return events.Get(ev.ID).Processed
		}, time.Second, 5*time.Millisecond)
	})
}
