package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	hubName = "comment hub"

	DefaultMaxConnsPerArticle = 50
	DefaultMaxTotalConns      = 5000
)

var (
	ErrArticleLimit = errors.New("article connection limit reached")
	ErrServerLimit  = errors.New("server connection limit reached")
	ErrHubClosed    = errors.New("hub is shut down")
)

// Hub maps articleID to the sockets watching that article's comments.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	perArticle int
	maxTotal   int
	closed     bool
}

// NewHub creates a Hub with the default connection limits.
func NewHub() *Hub {
	return NewHubWithLimits(DefaultMaxConnsPerArticle, DefaultMaxTotalConns)
}

// NewHubWithLimits creates a Hub with explicit per-article and total caps.
func NewHubWithLimits(perArticle, total int) *Hub {
	return &Hub{
		conns:      make(map[uint]map[*Client]struct{}),
		perArticle: perArticle,
		maxTotal:   total,
	}
}

// Register adds a connection for articleID.
func (h *Hub) Register(articleID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= h.maxTotal {
		return nil, ErrServerLimit
	}
	m, ok := h.conns[articleID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[articleID] = m
	}
	if len(m) >= h.perArticle {
		return nil, ErrArticleLimit
	}

	client := newClient(h, conn, articleID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.ArticleID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	close(client.Send)
	h.totalConns--
	observability.WebSocketConnections.Dec()
	if len(m) == 0 {
		delete(h.conns, client.ArticleID)
	}
}

// Broadcast sends payload to every socket watching articleID.
func (h *Hub) Broadcast(articleID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[articleID] {
		c.TrySend(payload)
	}
}

// Count returns the number of sockets watching articleID.
func (h *Hub) Count(articleID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[articleID])
}

// Total returns the number of open sockets.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring subscribes to Redis comment channels and routes each message
// to the matching article's sockets. The notifier's local fallback is set
// separately with AttachLocal before any publisher runs.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartCommentSubscriber(ctx, func(channel, payload string) {
		var articleID uint
		if _, err := fmt.Sscanf(channel, cache.CommentChannelFmt, &articleID); err != nil {
			middleware.Logger.WarnContext(ctx, "invalid comment channel", "channel", channel)
			return
		}
		h.Broadcast(articleID, []byte(payload))
	})
}

// Shutdown closes every client's send channel, which makes its write pump
// send a close frame, and refuses new registrations.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, clients := range h.conns {
		for client := range clients {
			close(client.Send)
			observability.WebSocketConnections.Dec()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
