package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// popInterval bounds each BLPOP so the consumer loops can notice shutdown.
const popInterval = 2 * time.Second

// Subscriber drains fire-and-forget queues this service consumes and
// dispatches each message to the handler registered for its pattern. One
// goroutine per pattern; handlers run inline, so they must not block for
// long.
type Subscriber struct {
	rdb      *redis.Client
	handlers map[string]Handler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSubscriber(rdb *redis.Client) *Subscriber {
	return &Subscriber{
		rdb:      rdb,
		handlers: make(map[string]Handler),
	}
}

// Handle registers a handler for one event pattern. Must be called before
// Start.
func (s *Subscriber) Handle(pattern string, h Handler) {
	s.handlers[pattern] = h
}

func (s *Subscriber) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for pattern, h := range s.handlers {
		s.wg.Add(1)
		go s.consume(ctx, pattern, h)
	}
	slog.Info("event subscriber started", "patterns", len(s.handlers))
}

func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	slog.Info("event subscriber stopped")
}

func (s *Subscriber) consume(ctx context.Context, pattern string, h Handler) {
	defer s.wg.Done()
	queue := eventQueuePrefix + pattern

	for {
		res, err := s.rdb.BLPop(ctx, popInterval, queue).Result()
		switch {
		case err == nil:
			if len(res) != 2 {
				continue
			}
			var env envelope
			if uerr := json.Unmarshal([]byte(res[1]), &env); uerr != nil {
				slog.Warn("dropping malformed event", "pattern", pattern, "error", uerr)
				continue
			}
			h(ctx, env.Data)
		case errors.Is(err, redis.Nil):
			// Queue empty, poll again.
		case ctx.Err() != nil:
			return
		default:
			slog.Warn("event consume failed, backing off", "pattern", pattern, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(popInterval):
			}
		}
	}
}
