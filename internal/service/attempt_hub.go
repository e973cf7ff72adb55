package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/pkg/logger"
	"eduquiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	attemptEventChannel = "attempt_events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AttemptEvent is the wire format pushed to watching clients.
type AttemptEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type attemptClient struct {
	hub       *AttemptHub
	conn      *websocket.Conn
	send      chan []byte
	attemptID string
}

func (c *attemptClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// this channel is push-only; inbound frames keep the connection
		// alive and are otherwise discarded
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("attempt watcher closed unexpectedly",
					zap.String("attemptId", c.attemptID), zap.Error(err))
			}
			break
		}
	}
}

func (c *attemptClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pubsubEvent fans an event out to watchers on other instances.
type pubsubEvent struct {
	AttemptID string          `json:"attemptId"`
	Payload   json.RawMessage `json:"payload"`
}

// AttemptHub pushes attempt lifecycle events (deadline, timeout, grading) to
// websocket clients. Redis pub/sub carries events across instances, so the
// watcher and the timer that fires do not need to share a process.
type AttemptHub struct {
	mu       sync.RWMutex
	watchers map[string]map[*attemptClient]bool

	register   chan *attemptClient
	unregister chan *attemptClient

	redis  *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
}

func NewAttemptHub(rdb *redis.Client) *AttemptHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &AttemptHub{
		watchers:   make(map[string]map[*attemptClient]bool),
		register:   make(chan *attemptClient),
		unregister: make(chan *attemptClient),
		redis:      rdb,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *AttemptHub) Run() {
	if h.redis != nil {
		pubsub := h.redis.Subscribe(h.ctx, attemptEventChannel)
		go func() {
			ch := pubsub.Channel()
			for msg := range ch {
				var ev pubsubEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Log.Error("attempt event unmarshal error", zap.Error(err))
					continue
				}
				h.pushLocal(ev.AttemptID, ev.Payload)
			}
		}()
		defer pubsub.Close()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.watchers[client.attemptID] == nil {
				h.watchers[client.attemptID] = make(map[*attemptClient]bool)
			}
			h.watchers[client.attemptID][client] = true
			h.mu.Unlock()
			monitoring.AttemptWatchers.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.watchers[client.attemptID]; ok && set[client] {
				delete(set, client)
				if len(set) == 0 {
					delete(h.watchers, client.attemptID)
				}
				close(client.send)
				monitoring.AttemptWatchers.Dec()
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for id, set := range h.watchers {
				for client := range set {
					close(client.send)
					client.conn.Close()
				}
				delete(h.watchers, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *AttemptHub) Stop() {
	h.cancel()
}

// NotifyAttempt implements AttemptNotifier. Events go through redis so
// watchers on every instance, this one included, see them exactly once.
func (h *AttemptHub) NotifyAttempt(attemptID string, event string, data interface{}) {
	payload, err := json.Marshal(AttemptEvent{Type: event, Data: data})
	if err != nil {
		return
	}

	if h.redis == nil {
		h.pushLocal(attemptID, payload)
		return
	}

	msg, err := json.Marshal(pubsubEvent{AttemptID: attemptID, Payload: payload})
	if err != nil {
		return
	}
	if err := h.redis.Publish(h.ctx, attemptEventChannel, msg).Err(); err != nil {
		logger.Log.Error("attempt event publish failed",
			zap.String("attemptId", attemptID), zap.Error(err))
		h.pushLocal(attemptID, payload)
	}
}

func (h *AttemptHub) pushLocal(attemptID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.watchers[attemptID] {
		select {
		case client.send <- payload:
		default:
			// slow consumer, skip rather than block the hub
		}
	}
}

// Serve upgrades the request and streams events for one attempt. The first
// frame carries the deadline so the client can render its own countdown.
func (h *AttemptHub) Serve(c *gin.Context, attempt *model.QuizAttempt) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &attemptClient{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 8),
		attemptID: attempt.ID,
	}
	h.register <- client

	if hello, err := json.Marshal(AttemptEvent{
		Type: "DEADLINE",
		Data: gin.H{
			"deadline": attempt.Deadline,
			"status":   attempt.Status,
		},
	}); err == nil {
		client.send <- hello
	}

	go client.writePump()
	go client.readPump()
}
