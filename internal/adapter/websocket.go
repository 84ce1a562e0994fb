package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"brobbot/internal/domain"
)

// WebSocketConfig configures the WebSocket adapter.
type WebSocketConfig struct {
	Host   string
	Port   int
	Path   string // WebSocket endpoint path (default: /ws)
	Logger *slog.Logger
}

// WebSocket serves a JSON chat protocol; each connection joins the room named
// by its ?room= query parameter.
type WebSocket struct {
	addr   string
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	bus     domain.MessageBus
	clients map[string]*wsClient
}

// wsClient tracks a connected WebSocket client.
type wsClient struct {
	conn *websocket.Conn
	room string
	mu   sync.Mutex
}

// WSMessage is the JSON protocol for WebSocket communication.
type WSMessage struct {
	Type     string `json:"type"` // inbound: "message"; outbound: "message" | "emote" | "reply" | "topic" | "play" | "locked" | "status"
	Content  string `json:"content,omitempty"`
	Room     string `json:"room,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure CORS for production)
	},
}

// NewWebSocket creates a new WebSocket adapter.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebSocket{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		path:    cfg.Path,
		logger:  cfg.Logger,
		clients: make(map[string]*wsClient),
	}
}

func (ws *WebSocket) Name() string { return "websocket" }

// Handler returns the upgrade endpoint. Run serves it; tests mount it directly.
func (ws *WebSocket) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)
	return mux
}

// Attach sets the bus inbound messages are published to.
func (ws *WebSocket) Attach(bus domain.MessageBus) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.bus = bus
}

// Run serves WebSocket clients until ctx is cancelled.
func (ws *WebSocket) Run(ctx context.Context, bus domain.MessageBus) error {
	ws.Attach(bus)

	server := &http.Server{
		Addr:              ws.addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.logger.Info("websocket server starting", "addr", ws.addr, "path", ws.path)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ws.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("websocket serve: %w", err)
	}
}

func (ws *WebSocket) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		room = "ws-" + uuid.NewString()
	}

	client := &wsClient{conn: conn, room: room}
	clientID := uuid.NewString()

	ws.mu.Lock()
	ws.clients[clientID] = client
	ws.mu.Unlock()

	ws.logger.Info("websocket client connected", "client_id", clientID, "room", room)

	// Send welcome message.
	_ = client.send(WSMessage{Type: "status", Content: "connected", Room: room})

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, clientID)
		ws.mu.Unlock()
		conn.Close()
		ws.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var in WSMessage
		if err := json.Unmarshal(data, &in); err != nil {
			ws.logger.Warn("invalid websocket message", "err", err)
			continue
		}
		if in.Type != "message" || in.Content == "" {
			continue
		}

		userID := in.UserID
		if userID == "" {
			userID = clientID
		}
		userName := in.UserName
		if userName == "" {
			userName = userID
		}

		ws.mu.RLock()
		bus := ws.bus
		ws.mu.RUnlock()
		if bus == nil {
			continue
		}
		bus.Publish(&domain.InboundMessage{
			ID:        uuid.NewString(),
			Adapter:   ws.Name(),
			Room:      room,
			User:      domain.User{ID: userID, Name: userName, Room: room},
			Text:      in.Content,
			Timestamp: time.Now(),
		})
	}
}

func (ws *WebSocket) Send(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "message", texts)
}

func (ws *WebSocket) Emote(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "emote", texts)
}

func (ws *WebSocket) Reply(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "reply", texts)
}

func (ws *WebSocket) Topic(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "topic", texts)
}

func (ws *WebSocket) Play(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "play", texts)
}

// Locked frames are typed "locked" so clients can keep them out of any
// history they store.
func (ws *WebSocket) Locked(_ context.Context, env domain.Envelope, texts []string) error {
	return ws.broadcast(env, "locked", texts)
}

// broadcast writes one frame per text to every client in the envelope's room
// and returns the first write error.
func (ws *WebSocket) broadcast(env domain.Envelope, kind string, texts []string) error {
	ws.mu.RLock()
	var targets []*wsClient
	for _, c := range ws.clients {
		if c.room == env.Room {
			targets = append(targets, c)
		}
	}
	ws.mu.RUnlock()

	var firstErr error
	for _, text := range texts {
		msg := WSMessage{Type: kind, Content: text, Room: env.Room}
		if kind == "reply" || kind == "locked" {
			msg.UserID = env.User.ID
			msg.UserName = env.User.Name
		}
		for _, c := range targets {
			if err := c.send(msg); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("websocket %s: %w", kind, err)
			}
		}
	}
	return firstErr
}

func (c *wsClient) send(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocket) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, client := range ws.clients {
		client.conn.Close()
		delete(ws.clients, id)
	}
}
