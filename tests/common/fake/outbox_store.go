package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"loans-service/internal/domain/outbox"
	"loans-service/internal/infra"

	"github.com/google/uuid"
)

// OutboxStore keeps outbox events in memory with the same semantics as the
// SQL table: processed events stay, retries accumulate.
type OutboxStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*outbox.Event

	FindErr error
	MarkErr error
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{events: make(map[uuid.UUID]*outbox.Event)}
}

func (s *OutboxStore) Save(_ context.Context, ev *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return nil
}

func (s *OutboxStore) FindUnprocessed(_ context.Context) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	out := make([]*outbox.Event, 0, len(s.events))
	for _, ev := range s.events {
		if !ev.Processed {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *OutboxStore) MarkProcessed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	ev, ok := s.events[id]
	if !ok {
		return infra.WrapRepoErr(infra.KindNotFound, "event not found", nil)
	}
	if ev.Processed {
		return nil
	}
	ev.Processed = true
	ev.ProcessedAt = &at
	return nil
}

func (s *OutboxStore) IncrementRetry(_ context.Context, id uuid.UUID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return infra.WrapRepoErr(infra.KindNotFound, "event not found", nil)
	}
	ev.RetryCount++
	ev.LastError = &lastError
	return nil
}

func (s *OutboxStore) CountUnprocessed(ctx context.Context) (int, error) {
	pending, err := s.FindUnprocessed(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (s *OutboxStore) Get(id uuid.UUID) *outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}
