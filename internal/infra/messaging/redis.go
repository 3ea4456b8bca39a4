package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"loans-service/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	requestQueuePrefix = "mq:req:"
	eventQueuePrefix   = "mq:evt:"
	replyQueuePrefix   = "mq:reply:"

	// Replies that nobody will ever pop must not pile up forever. The TTL
	// travels in the request envelope because only the responder can set it
	// on the reply key it creates.
	replyQueueTTL = time.Minute
)

// RedisClient implements Client over Redis lists. Requests are LPUSHed to a
// per-pattern queue together with a reply key the responder RPUSHes to;
// events are LPUSHed with no reply key. RPC-over-lists keeps ordering per
// pattern and survives responder restarts, which pub/sub would not.
type RedisClient struct {
	rdb *redis.Client
}

func NewRedisClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Request(ctx context.Context, pattern string, payload any, reply any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "failed to marshal request payload")
	}

	id := uuid.NewString()
	replyKey := replyQueuePrefix + id
	env, err := json.Marshal(envelope{
		ID:       id,
		ReplyTo:  replyKey,
		ReplyTTL: int64(replyQueueTTL / time.Second),
		Data:     data,
	})
	if err != nil {
		return errs.Wrap(err, "failed to marshal request envelope")
	}

	timeout := DefaultRequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return errs.Mark(context.DeadlineExceeded, errs.ErrRequestTimeout)
		}
	}

	if err := c.rdb.LPush(ctx, requestQueuePrefix+pattern, env).Err(); err != nil {
		return errs.Mark(errs.Wrap(err, "failed to enqueue request"), errs.ErrCatalogUnreachable)
	}

	res, err := c.rdb.BLPop(ctx, timeout, replyKey).Result()
	if err != nil {
		c.dropReplyKey(replyKey)
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return errs.Mark(errs.Newf("no reply on %s within %s", pattern, timeout), errs.ErrRequestTimeout)
		}
		return errs.Mark(errs.Wrap(err, "failed to await reply"), errs.ErrCatalogUnreachable)
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return errs.Mark(errs.New("malformed reply from broker"), errs.ErrCatalogUnreachable)
	}

	if err := json.Unmarshal([]byte(res[1]), reply); err != nil {
		return errs.Wrap(err, "failed to unmarshal reply")
	}
	return nil
}

// dropReplyKey removes a reply key the requester gave up on. The request
// context is usually expired by now, so the delete runs on its own deadline.
// A reply that lands after the delete is covered by the envelope's ReplyTTL.
func (c *RedisClient) dropReplyKey(replyKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.rdb.Del(ctx, replyKey).Err(); err != nil {
		slog.Warn("failed to delete abandoned reply key", "key", replyKey, "error", err)
	}
}

func (c *RedisClient) Emit(ctx context.Context, pattern string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "failed to marshal event payload")
	}
	env, err := json.Marshal(envelope{ID: uuid.NewString(), Data: data})
	if err != nil {
		return errs.Wrap(err, "failed to marshal event envelope")
	}
	if err := c.rdb.LPush(ctx, eventQueuePrefix+pattern, env).Err(); err != nil {
		return errs.Mark(errs.Wrap(err, "failed to enqueue event"), errs.ErrCatalogUnreachable)
	}
	return nil
}
