package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/config"
	"github.com/gridduel/duel-server-go/internal/game/rules"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// WebSocket message types.
const (
	MessageSubscribed = "subscribed"
	MessageEvent      = "event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the envelope of everything pushed to spectators.
type WSMessage struct {
	Type     string       `json:"type"`
	GameID   string       `json:"game_id,omitempty"`
	PlayerID string       `json:"player_id,omitempty"`
	Data     *rules.Event `json:"data,omitempty"`
}

// Client is one WebSocket connection following a single game.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	gameID   string
}

// Hub fans committed game events out to the WebSocket clients following each
// game. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	logger *zap.Logger
	bus    *rules.EventBus
	handle int

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan rules.Event

	// dropped counts events discarded because Run fell behind.
	dropped atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub subscribes a hub to bus. Call Run to start delivering.
func NewHub(bus *rules.EventBus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:     logger,
		bus:        bus,
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan rules.Event, sendBuffer),
		done:       make(chan struct{}),
	}
	h.handle = bus.Subscribe(h.enqueue)
	return h
}

// enqueue runs on the publisher's goroutine, which may hold a game lock, so it
// never waits for Run.
func (h *Hub) enqueue(evt rules.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- evt:
	default:
		h.dropped.Add(1)
		h.logger.Warn("websocket hub is behind, dropping event",
			zap.String("game_id", evt.GameID),
			zap.String("event", string(evt.Type)),
		)
	}
}

// Dropped returns how many events were discarded because the hub fell behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Run delivers events until ctx is cancelled or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer h.Close()
	defer h.dropAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case client := <-h.register:
			room := h.clients[client.gameID]
			if room == nil {
				room = make(map[*Client]bool)
				h.clients[client.gameID] = room
			}
			room[client] = true
			h.deliver(client, WSMessage{Type: MessageSubscribed, GameID: client.gameID, PlayerID: client.playerID})
			h.logger.Debug("websocket client registered",
				zap.String("game_id", client.gameID),
				zap.String("player_id", client.playerID),
			)

		case client := <-h.unregister:
			h.remove(client)

		case evt := <-h.broadcast:
			h.broadcastToGame(evt)
		}
	}
}

func (h *Hub) broadcastToGame(evt rules.Event) {
	room := h.clients[evt.GameID]
	if len(room) == 0 {
		return
	}
	msg := WSMessage{Type: MessageEvent, GameID: evt.GameID, PlayerID: evt.PlayerID, Data: &evt}
	for client := range room {
		h.deliver(client, msg)
	}
}

// deliver queues msg for client, dropping clients that cannot keep up.
func (h *Hub) deliver(client *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("dropping slow websocket client",
			zap.String("game_id", client.gameID),
			zap.String("player_id", client.playerID),
		)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.clients[client.gameID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.clients, client.gameID)
	}
	close(client.send)
}

func (h *Hub) dropAll() {
	for _, room := range h.clients {
		for client := range room {
			h.remove(client)
		}
	}
}

// Close unsubscribes the hub from the event bus and stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.bus.Unsubscribe(h.handle)
	})
}

// ServeHTTP upgrades a request for /ws?game_id=<id> and streams that game's
// events to the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSpace(r.URL.Query().Get("game_id"))
	if gameID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: strings.TrimSpace(r.URL.Query().Get("player_id")),
		gameID:   gameID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// readPump only watches for the connection closing; spectators do not send
// actions over the socket.
func (c *Client) readPump(hub *Hub) {
	defer func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NewWebSocketServer mounts hub at cfg.Path next to a /healthz endpoint.
func NewWebSocketServer(cfg config.WebSocketConfig, hub *Hub) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}

	mux := http.NewServeMux()
	mux.Handle(path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
