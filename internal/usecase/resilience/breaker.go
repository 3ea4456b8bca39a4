package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"loans-service/internal/domain/loan"
	"loans-service/internal/infra/catalog"
	"loans-service/internal/pkg/clock"
	"loans-service/internal/pkg/config"
	"loans-service/internal/pkg/errs"

	"github.com/sony/gobreaker"
)

// BreakerStrategy wraps the availability check in a circuit breaker. While
// the circuit is open every request is rejected immediately, so a broken
// books-service cannot pile up timed-out requests in the loans service.
type BreakerStrategy struct {
	store LoanStore
	cat   Catalog
	clk   clock.Clock
	cb    *gobreaker.CircuitBreaker
	cfg   config.CircuitBreakerConfig

	rejected atomic.Int64
	timeouts atomic.Int64
}

func NewBreakerStrategy(store LoanStore, cat Catalog, clk clock.Clock, cfg config.CircuitBreakerConfig) *BreakerStrategy {
	settings := gobreaker.Settings{
		Name: "books-service",
		// One probe at a time while HALF_OPEN.
		MaxRequests: 1,
		Interval:    cfg.RollingWindow,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.VolumeThreshold) {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio*100 >= float64(cfg.ErrorThresholdPercentage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerStrategy{
		store: store,
		cat:   cat,
		clk:   clk,
		cb:    gobreaker.NewCircuitBreaker(settings),
		cfg:   cfg,
	}
}

func (s *BreakerStrategy) Name() string { return StrategyCircuitBreaker }

func (s *BreakerStrategy) Description() string {
	return "Circuit breaker: rechaza rápido cuando books-service falla de forma sostenida"
}

func (s *BreakerStrategy) CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult {
	res, err := s.cb.Execute(func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		avail, err := s.cat.CheckAvailability(reqCtx, in.BookID)
		if err != nil {
			if errors.Is(err, errs.ErrRequestTimeout) {
				s.timeouts.Add(1)
			}
			return nil, err
		}
		// An error reply from books-service counts against the breaker
		// just like a transport failure.
		if !avail.Success {
			msg := avail.Error
			if msg == "" {
				msg = "Error en books-service"
			}
			return nil, errs.Mark(errs.New(msg), errs.ErrCatalogRejected)
		}
		return avail, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.rejected.Add(1)
			return failure(s.Name(), MsgCircuitOpen, map[string]any{
				"bookId":       in.BookID,
				"circuitState": s.cb.State().String(),
			})
		}
		if errors.Is(err, errs.ErrCatalogRejected) {
			return failure(s.Name(), err.Error(),
				map[string]any{"bookId": in.BookID, "circuitState": s.cb.State().String()})
		}
		slog.Warn("availability check failed", "strategy", s.Name(), "bookId", in.BookID, "error", err)
		return failure(s.Name(),
			"No se pudo comunicar con books-service: "+err.Error(),
			map[string]any{"bookId": in.BookID, "circuitState": s.cb.State().String()})
	}

	avail := res.(*catalog.AvailabilityResult)
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
		slog.Warn("loan.requested emit failed", "strategy", s.Name(), "loanId", l.ID(), "error", err)
	}

	return success(s.Name(), l, map[string]any{"bookId": in.BookID, "circuitState": s.cb.State().String()})
}

func (s *BreakerStrategy) Status() map[string]any {
	counts := s.cb.Counts()
	return map[string]any{
		"strategy":                 s.Name(),
		"state":                    s.cb.State().String(),
		"requests":                 counts.Requests,
		"totalFailures":            counts.TotalFailures,
		"consecutiveFailures":      counts.ConsecutiveFailures,
		"rejectedWhileOpen":        s.rejected.Load(),
		"timeouts":                 s.timeouts.Load(),
		"errorThresholdPercentage": s.cfg.ErrorThresholdPercentage,
		"volumeThreshold":          s.cfg.VolumeThreshold,
		"resetTimeout":             s.cfg.ResetTimeout.String(),
	}
}
