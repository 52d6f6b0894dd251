package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"buildwatch/internal/api"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 64
)

type wsClient struct {
	id       string
	conn     *websocket.Conn
	pipeline string
	kind     status.ChangeKind
	send     chan api.Change
	done     chan struct{}
	once     sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// changeHub forwards detected changes to websocket clients. Clients may
// filter to a single pipeline with ?pipeline=<id> and to one change kind with
// ?kind=start|completion.
type changeHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newChangeHub(logger *slog.Logger) *changeHub {
	return &changeHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
	}
}

func (h *changeHub) run(ctx context.Context, changes <-chan status.StatusChange, unsubscribe func()) {
	defer unsubscribe()
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			h.broadcast(change)
		}
	}
}

func (h *changeHub) broadcast(change status.StatusChange) {
	msg := api.FromChange(change)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.pipeline != "" && client.pipeline != change.Pipeline.ID {
			continue
		}
		if client.kind != "" && client.kind != change.Kind {
			continue
		}
		select {
		case client.send <- msg:
		case <-client.done:
		default:
			h.logger.Warn("websocket client too slow; disconnecting",
				logging.String("client_id", client.id),
				logging.String(logging.FieldEventType, "ws_client_dropped"),
			)
			client.close()
		}
	}
}

func (h *changeHub) serveWS(w http.ResponseWriter, r *http.Request) {
	var kind status.ChangeKind
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		if kind = status.ParseKind(raw); kind == "" {
			http.Error(w, fmt.Sprintf(`{"error":"unknown change kind %q"}`, raw), http.StatusBadRequest)
			return
		}
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &wsClient{
		id:       uuid.NewString(),
		conn:     conn,
		pipeline: strings.TrimSpace(r.URL.Query().Get("pipeline")),
		kind:     kind,
		send:     make(chan api.Change, wsSendBuffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.logger.Debug("websocket client connected",
		logging.String("client_id", client.id),
		logging.String(logging.FieldPipelineID, client.pipeline),
	)

	go h.writeLoop(client)
	h.readLoop(client)

	h.mu.Lock()
	delete(h.clients, client.id)
	h.mu.Unlock()
	client.close()
}

// readLoop drains client frames so control messages are processed and
// returns when the connection ends.
func (h *changeHub) readLoop(client *wsClient) {
	client.conn.SetReadLimit(1024)
	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read failed", logging.Error(err))
			}
			return
		}
	}
}

func (h *changeHub) writeLoop(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-client.done:
			return
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", logging.String("client_id", client.id), logging.Error(err))
				client.close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.close()
				return
			}
		}
	}
}

func (h *changeHub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		_ = client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
			time.Now().Add(time.Second))
		client.close()
	}
}

func (h *changeHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
