//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"loans-service/internal/infra/messaging"
	"loans-service/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResponder drains a request queue like books-service would: pop the
// envelope, push a reply onto its replyTo queue and apply the envelope's
// reply TTL. A non-zero delay simulates a responder slower than the caller.
func fakeResponder(t *testing.T, rdb *redis.Client, pattern string, reply any, delay time.Duration) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for ctx.Err() == nil {
			res, err := rdb.BLPop(ctx, time.Second, "mq:req:"+pattern).Result()
			if err != nil {
				continue
			}
			var env struct {
				ID       string          `json:"id"`
				ReplyTo  string          `json:"replyTo"`
				ReplyTTL int64           `json:"replyTtlSec"`
				Data     json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
				continue
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			data, _ := json.Marshal(reply)
			rdb.LPush(ctx, env.ReplyTo, data)
			if env.ReplyTTL > 0 {
				rdb.Expire(ctx, env.ReplyTo, time.Duration(env.ReplyTTL)*time.Second)
			}
		}
	}()
	return cancel
}

func TestRedisClientRequest(t *testing.T) {
	rdb := setupRedis(t)
	client := messaging.NewRedisClient(rdb)

	t.Run("request round trip", func(t *testing.T) {
		stop := fakeResponder(t, rdb, "book.check.availability",
			map[string]any{"success": true, "available": true}, 0)
		defer stop()

		var reply struct {
			Success   bool `json:"success"`
			Available bool `json:"available"`
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, client.Request(ctx, "book.check.availability", map[string]any{"bookId": "b1"}, &reply))
		assert.True(t, reply.Success)
		assert.True(t, reply.Available)
	})

	t.Run("no responder times out", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		var reply map[string]any
		err := client.Request(ctx, "book.find.one", map[string]any{"id": "b1"}, &reply)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrRequestTimeout))
	})

	t.Run("reply after the caller gave up does not linger", func(t *testing.T) {
		stop := fakeResponder(t, rdb, "book.update.status",
			map[string]any{"success": true}, 700*time.Millisecond)
		defer stop()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		var reply map[string]any
		err := client.Request(ctx, "book.update.status", map[string]any{"id": "b1"}, &reply)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrRequestTimeout))

		// The late reply lands after the requester deleted its key; the
		// responder-applied TTL keeps it from living forever.
		require.Eventually(t, func() bool {
			keys, err := rdb.Keys(context.Background(), "mq:reply:*").Result()
			if err != nil || len(keys) == 0 {
				return false
			}
			ttl, err := rdb.TTL(context.Background(), keys[0]).Result()
			return err == nil && ttl > 0
		}, 3*time.Second, 50*time.Millisecond)
	})
}

func TestSubscriber(t *testing.T) {
	rdb := setupRedis(t)
	client := messaging.NewRedisClient(rdb)

	var received atomic.Int64
	var lastPayload atomic.Value

	sub := messaging.NewSubscriber(rdb)
	sub.Handle("loan.confirmed", func(_ context.Context, data json.RawMessage) {
		received.Add(1)
		lastPayload.Store(string(data))
	})
	sub.Start()
	defer sub.Stop()

	ctx := context.Background()
	require.NoError(t, client.Emit(ctx, "loan.confirmed", map[string]any{"loanId": "l1", "bookId": "b1"}))

	require.Eventually(t, func() bool {
		return received.Load() == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, lastPayload.Load().(string), "l1")
}
