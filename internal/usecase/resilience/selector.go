package resilience

import (
	"context"
	"log/slog"
)

// Selector resolves the configured strategy name once at startup and
// delegates every loan creation to it. Unknown names fall back to the
// baseline so a typo in configuration degrades instead of crashing.
type Selector struct {
	active     Strategy
	strategies map[string]Strategy
}

func NewSelector(name string, strategies ...Strategy) *Selector {
	byName := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	active, ok := byName[name]
	if !ok {
		slog.Warn("unknown resilience strategy, falling back to none", "requested", name)
		active = byName[StrategyNone]
	}
	slog.Info("resilience strategy selected", "strategy", active.Name())
	return &Selector{active: active, strategies: byName}
}

func (s *Selector) ActiveName() string { return s.active.Name() }

func (s *Selector) CreateLoan(ctx context.Context, in CreateLoanInput) *LoanResult {
	return s.active.CreateLoan(ctx, in)
}

// Status reports the active strategy's own view of its health.
func (s *Selector) Status() map[string]any {
	return s.active.Status()
}

// Available lists every registered strategy with its description, for the
// strategy status endpoint.
func (s *Selector) Available() []map[string]string {
	out := make([]map[string]string, 0, len(s.strategies))
	for _, name := range []string{StrategyNone, StrategyCircuitBreaker, StrategySaga, StrategyOutbox} {
		st, ok := s.strategies[name]
		if !ok {
			continue
		}
		out = append(out, map[string]string{
			"name":        st.Name(),
			"description": st.Description(),
		})
	}
	return out
}
