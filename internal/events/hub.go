package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber opens a subscription to one organization's channel.
type Subscriber interface {
	Subscribe(ctx context.Context, orgID uuid.UUID) (<-chan []byte, func(), error)
}

// RedisSubscriber adapts a go-redis client to Subscriber.
type RedisSubscriber struct {
	client redis.UniversalClient
}

func NewRedisSubscriber(client redis.UniversalClient) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, orgID uuid.UUID) (<-chan []byte, func(), error) {
	sub := s.client.Subscribe(ctx, Channel(orgID))
	// Wait for the confirmation so a broken connection surfaces here rather
	// than as a silent empty stream.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

// Hub upgrades HTTP requests to WebSocket connections and streams an
// organization's events to them.
type Hub struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]int
}

func NewHub(subscriber Subscriber, logger *zap.Logger) *Hub {
	return &Hub{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		conns:  make(map[uuid.UUID]int),
	}
}

// Connections returns the number of open streams for orgID.
func (h *Hub) Connections(orgID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[orgID]
}

func (h *Hub) track(orgID uuid.UUID, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[orgID] += delta
	if h.conns[orgID] <= 0 {
		delete(h.conns, orgID)
	}
}

// Serve blocks until the client disconnects or the subscription ends. The
// caller has already authenticated the request and authorized orgID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs, unsubscribe, err := h.subscriber.Subscribe(ctx, orgID)
	if err != nil {
		h.logger.Error("subscribe to events", zap.String("org_id", orgID.String()), zap.Error(err))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.track(orgID, 1)
	defer h.track(orgID, -1)

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, msgs)
}

// readPump discards client messages and keeps the read deadline fresh on
// pongs. Any read error ends the stream.
func (h *Hub) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, msgs <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
