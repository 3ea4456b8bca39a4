package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra"

	"github.com/google/uuid"
)

// LoanStore is an in-memory stand-in for the loan repository. Scripted
// errors let tests fail individual operations; call counters expose how
// often a strategy touched the store.
type LoanStore struct {
	mu    sync.Mutex
	loans map[uuid.UUID]*loan.Loan
	order []uuid.UUID

	// Events receives the outbox event of CreateWithEvent when set.
	Events *OutboxStore

	CreateErr  error
	ConfirmErr error
	RejectErr  error
	ReturnErr  error

	CreateCalls  int
	ConfirmCalls int
	RejectCalls  int
}

func NewLoanStore() *LoanStore {
	return &LoanStore{loans: make(map[uuid.UUID]*loan.Loan)}
}

func (s *LoanStore) Create(_ context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.loans[l.ID()] = l
	s.order = append(s.order, l.ID())
	return nil
}

// CreateWithEvent mimics the atomic loan+event insert. Wire Events to an
// OutboxStore fake so the event lands somewhere the worker can find it.
func (s *LoanStore) CreateWithEvent(ctx context.Context, l *loan.Loan, ev *outbox.Event) error {
	if err := s.Create(ctx, l); err != nil {
		return err
	}
	if s.Events != nil {
		return s.Events.Save(ctx, ev)
	}
	return nil
}

func (s *LoanStore) Confirm(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConfirmCalls++
	if s.ConfirmErr != nil {
		return nil, s.ConfirmErr
	}
	l, ok := s.loans[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "loan not found", nil)
	}
	if err := l.Confirm(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindStaleTransition, err.Error(), err)
	}
	return l, nil
}

func (s *LoanStore) Reject(_ context.Context, id uuid.UUID, reason string) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RejectCalls++
	if s.RejectErr != nil {
		return nil, s.RejectErr
	}
	l, ok := s.loans[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "loan not found", nil)
	}
	if err := l.Reject(reason); err != nil {
		return nil, infra.WrapRepoErr(infra.KindStaleTransition, err.Error(), err)
	}
	return l, nil
}

func (s *LoanStore) Return(_ context.Context, id uuid.UUID, at time.Time) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReturnErr != nil {
		return nil, s.ReturnErr
	}
	l, ok := s.loans[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "loan not found", nil)
	}
	if err := l.Return(at); err != nil {
		return nil, infra.WrapRepoErr(infra.KindStaleTransition, err.Error(), err)
	}
	return l, nil
}

func (s *LoanStore) FindByID(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "loan not found", nil)
	}
	return l, nil
}

func (s *LoanStore) FindAll(_ context.Context) ([]*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*loan.Loan, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.loans[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LoanDate().After(out[j].LoanDate())
	})
	return out, nil
}

func (s *LoanStore) FindByStatus(ctx context.Context, status loan.Status) ([]*loan.Loan, error) {
	all, _ := s.FindAll(ctx)
	out := make([]*loan.Loan, 0, len(all))
	for _, l := range all {
		if l.Status() == status {
			out = append(out, l)
		}
	}
	return out, nil
}

// Seed adds a loan directly, bypassing counters.
func (s *LoanStore) Seed(l *loan.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.ID()] = l
	s.order = append(s.order, l.ID())
}

func (s *LoanStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loans)
}
