package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"arena-sim/internal/command"
	"arena-sim/internal/game"
)

const (
	// Connection caps, checked before the upgrade
	MaxWSConnectionsTotal = 500
	MaxWSConnectionsPerIP = 10

	// BroadcastInterval is the game:state push period (10 Hz)
	BroadcastInterval = 100 * time.Millisecond

	// maxWSMessageSize caps a single inbound command frame
	maxWSMessageSize = 1024

	// pongWait is how long a silent client survives; pings go out at 9/10 of it
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	writeWait    = 5 * time.Second
)

// wsEnvelope is the frame every push is wrapped in
type wsEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// SnapshotSource provides the state pushed to clients
type SnapshotSource interface {
	GetSnapshot() *game.GameSnapshot
}

// CommandSink accepts text commands read from clients
type CommandSink interface {
	EnqueueMessage(msg command.Message) error
}

// wsClient remembers the IP that owns a connection slot
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// WebSocketHub fans snapshots out to spectators and feeds their text commands
// into a CommandSink.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	commands CommandSink

	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a new hub with connection limiting.
// commands may be nil, in which case inbound frames are ignored.
func NewWebSocketHub(origins []string, commands CommandSink) *WebSocketHub {
	if origins == nil {
		origins = DefaultCORSOrigins
	}

	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stopChan:   make(chan struct{}),
		commands:   commands,
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, origins) {
				return true
			}

			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}

	return h
}

// Run owns every write to client connections. It returns when Stop is called.
func (h *WebSocketHub) Run() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-h.stopChan:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.writeAll(websocket.TextMessage, message)
			IncrementWSMessages()

		case <-ping.C:
			h.writeAll(websocket.PingMessage, nil)
		}
	}
}

// writeAll sends one frame to every client, dropping clients whose write fails
func (h *WebSocketHub) writeAll(messageType int, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	for conn, client := range h.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(messageType, data); err != nil {
			conn.Close()
			h.wsLimiter.Release(client.ip)
			delete(h.clients, conn)
		}
	}
	UpdateWSConnections(len(h.clients))
}

// Stop ends the run and broadcast loops and closes every connection
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		conn.Close()
		h.wsLimiter.Release(client.ip)
		delete(h.clients, conn)
	}
	UpdateWSConnections(0)
}

// Broadcast queues an event for all clients. Frames are skipped while the
// hub is backed up; the next snapshot supersedes them anyway.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	frame, err := json.Marshal(wsEnvelope{Event: event, Data: data})
	if err != nil {
		log.Printf("⚠️ WebSocket %s encode failed: %v", event, err)
		return
	}

	select {
	case h.broadcast <- frame:
	default:
	}
}

// ClientCount returns the number of registered clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot every BroadcastInterval
func (h *WebSocketHub) StartBroadcastLoop(source SnapshotSource) {
	ticker := time.NewTicker(BroadcastInterval)

	go func() {
		defer ticker.Stop()
		var lastSeq uint64

		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}

			snap := source.GetSnapshot()
			// Skip when the simulation has not advanced
			if snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence

			h.Broadcast("game:state", snap)
		}
	}()
}

// HandleWebSocket upgrades a spectator connection once it passes the
// connection caps, then reads its commands until it disconnects.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(maxWSMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := &wsClient{conn: conn, ip: ip}
	select {
	case h.register <- client:
	case <-h.stopChan:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	// Reader; Run owns all writes
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.stopChan:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))
			h.handleMessage(ip, message)
		}
	}()
}

// handleMessage decodes one {"entity","command"} frame into the command queue
func (h *WebSocketHub) handleMessage(ip string, message []byte) {
	if h.commands == nil {
		return
	}

	var msg command.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		RecordCommand("invalid")
		return
	}

	if err := h.commands.EnqueueMessage(msg); err != nil {
		if errors.Cause(err) == command.ErrQueueFull {
			RecordCommand("dropped")
		} else {
			RecordCommand("invalid")
		}
		log.Printf("📨 Ignored WebSocket command from %s: %v", ip, err)
	}
}
