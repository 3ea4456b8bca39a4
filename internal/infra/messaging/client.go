// Package messaging is the broker abstraction between loans-service and its
// collaborators. It exposes exactly two call shapes: request/response (the
// caller blocks for a correlated reply, bounded by the context deadline) and
// fire-and-forget (enqueue and return, no delivery guarantee). The two are
// deliberately separate operations; they have different contracts and must
// not be collapsed into one.
package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultRequestTimeout bounds Request calls whose context carries no
// deadline.
const DefaultRequestTimeout = 5 * time.Second

type Client interface {
	// Request sends payload on the given pattern and blocks until a reply
	// arrives or ctx expires. The reply body is unmarshaled into reply.
	Request(ctx context.Context, pattern string, payload any, reply any) error

	// Emit enqueues payload on the given pattern and returns immediately.
	// A nil error means the broker accepted the message, not that any
	// consumer saw it.
	Emit(ctx context.Context, pattern string, payload any) error
}

// envelope is the wire format shared with the books-service side. ReplyTTL
// tells the responder how long its reply stays poppable; it applies that TTL
// to the reply key so replies abandoned by a timed-out requester expire.
type envelope struct {
	ID       string          `json:"id"`
	ReplyTo  string          `json:"replyTo,omitempty"`
	ReplyTTL int64           `json:"replyTtlSec,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// Handler consumes one fire-and-forget message body.
type Handler func(ctx context.Context, data json.RawMessage)
