// Package notifications fans comment events out to live websocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/redis/go-redis/v9"
)

// Comment event types.
const (
	EventCommentCreated = "comment.created"
	EventCommentReplied = "comment.replied"
)

// CommentEvent is the payload pushed to an article's subscribers.
type CommentEvent struct {
	Type      string         `json:"type"`
	ArticleID uint           `json:"articleId"`
	ParentID  *uint          `json:"parentId,omitempty"`
	Comment   models.Comment `json:"comment"`
}

// LocalSink receives events directly when no broker is reachable.
type LocalSink interface {
	Broadcast(articleID uint, payload []byte)
}

// Notifier publishes comment events to Redis. Without Redis, or when a
// publish fails, events go straight to the local sink if one is attached.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local LocalSink
}

// NewNotifier creates a Notifier; rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// AttachLocal sets the in-process fallback sink.
func (n *Notifier) AttachLocal(sink LocalSink) {
	n.mu.Lock()
	n.local = sink
	n.mu.Unlock()
}

// PublishComment sends ev to the article's channel.
func (n *Notifier) PublishComment(ctx context.Context, ev CommentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal comment event: %w", err)
	}

	if n.rdb == nil {
		n.deliverLocal(ev.ArticleID, payload)
		return nil
	}
	if err := n.rdb.Publish(ctx, cache.CommentChannel(ev.ArticleID), payload).Err(); err != nil {
		n.deliverLocal(ev.ArticleID, payload)
		return err
	}
	return nil
}

func (n *Notifier) deliverLocal(articleID uint, payload []byte) {
	n.mu.RLock()
	sink := n.local
	n.mu.RUnlock()
	if sink != nil {
		sink.Broadcast(articleID, payload)
	}
}

// StartCommentSubscriber pattern-subscribes to every article's comment
// channel and calls onMessage until ctx is cancelled.
func (n *Notifier) StartCommentSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, cache.CommentChannelPattern)
	// Wait for the subscription to be confirmed so publishes right after
	// startup are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", cache.CommentChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in comment subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
