package components

import (
	"context"

	"loans-service/internal/infra/catalog"
	"loans-service/internal/infra/messaging"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/usecase/resilience"

	"go.uber.org/fx"
)

var ResilienceModule = fx.Module("resilience",
	fx.Provide(
		resilience.NewSagaTracker,
		NewNoneStrategy,
		NewBreakerStrategy,
		NewSagaStrategy,
		NewOutboxStrategy,
		NewSelector,
		func(mc messaging.Client) resilience.Emitter { return mc },
		NewOutboxWorker,
	),
	fx.Invoke(
		registerSubscriptions,
		runOutboxWorker,
	),
)

func NewNoneStrategy(store resilience.LoanStore, cat resilience.Catalog, clk clock.Clock) *resilience.NoneStrategy {
	return resilience.NewNoneStrategy(store, cat, clk)
}

func NewBreakerStrategy(store resilience.LoanStore, cat resilience.Catalog, clk clock.Clock, cfg config.Config) *resilience.BreakerStrategy {
	return resilience.NewBreakerStrategy(store, cat, clk, cfg.Resilience.CircuitBreaker)
}

func NewSagaStrategy(store resilience.LoanStore, cat resilience.Catalog, clk clock.Clock, cfg config.Config, track *resilience.SagaTracker) *resilience.SagaStrategy {
	return resilience.NewSagaStrategy(store, cat, clk, cfg.Resilience.Saga, track)
}

func NewOutboxStrategy(store resilience.LoanStore, events resilience.OutboxStore, emitter resilience.Emitter, clk clock.Clock) *resilience.OutboxStrategy {
	return resilience.NewOutboxStrategy(store, events, emitter, clk)
}

func NewSelector(cfg config.Config, none *resilience.NoneStrategy, breaker *resilience.BreakerStrategy, saga *resilience.SagaStrategy, ob *resilience.OutboxStrategy) *resilience.Selector {
	return resilience.NewSelector(cfg.Resilience.Strategy, none, breaker, saga, ob)
}

func NewOutboxWorker(events resilience.OutboxStore, emitter resilience.Emitter, clk clock.Clock, cfg config.Config) *resilience.OutboxWorker {
	return resilience.NewOutboxWorker(events, emitter, clk, cfg.Resilience.Outbox)
}

// registerSubscriptions wires the books-service push events. Confirmations
// may arrive for loans created under any strategy, so the subscriber runs
// regardless of which one is active.
func registerSubscriptions(lc fx.Lifecycle, sub *messaging.Subscriber, saga *resilience.SagaStrategy) {
	sub.Handle(catalog.EventLoanConfirmed, saga.HandleLoanConfirmed)
	sub.Handle(catalog.EventLoanRejected, saga.HandleLoanRejected)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sub.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			sub.Stop()
			return nil
		},
	})
}

// runOutboxWorker starts the delivery loop only when the outbox strategy is
// active; the table stays empty under the other strategies.
func runOutboxWorker(lc fx.Lifecycle, cfg config.Config, worker *resilience.OutboxWorker, selector *resilience.Selector) {
	if selector.ActiveName() != resilience.StrategyOutbox {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			worker.Stop()
			return nil
		},
	})
}
