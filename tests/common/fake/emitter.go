package fake

import (
	"context"
	"sync"
)

type EmittedEvent struct {
	Pattern string
	Payload any
}

// Emitter records fire-and-forget publishes. Err fails every Emit; Gate,
// when set, blocks Emit until the channel is closed, which lets tests hold a
// worker cycle open.
type Emitter struct {
	mu      sync.Mutex
	Err     error
	Gate    chan struct{}
	Emitted []EmittedEvent
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) Emit(ctx context.Context, pattern string, payload any) error {
	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.Emitted = append(e.Emitted, EmittedEvent{Pattern: pattern, Payload: payload})
	return nil
}

func (e *Emitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Emitted)
}
