package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arena-sim/internal/command"
	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

// recordingSink captures commands read from clients
type recordingSink struct {
	mu   sync.Mutex
	msgs []command.Message
}

func (s *recordingSink) EnqueueMessage(msg command.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newWSServer(t *testing.T) (*game.Engine, *recordingSink, string) {
	t.Helper()
	engine := game.NewEngine(game.EngineConfig{Seed: 3})
	sink := &recordingSink{}

	srv := NewServer(ServerConfig{
		Engine:    engine,
		Commands:  sink,
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	})
	srv.StartWorkers()

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
	})

	return engine, sink, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

// TestWebSocketStatePush verifies clients receive game:state frames
func TestWebSocketStatePush(t *testing.T) {
	engine, _, url := newWSServer(t)
	pos := game.V3(1, 1, 1)
	engine.AddEntity("alice", game.EntityOptions{Position: &pos})

	conn, _, err := dial(t, url, "http://localhost:3000")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	engine.Update(step)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string `json:"event"`
		Data  struct {
			TickNumber  uint64 `json:"tickNumber"`
			EntityCount int    `json:"entityCount"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if frame.Event != "game:state" {
		t.Errorf("Expected game:state, got %s", frame.Event)
	}
	if frame.Data.EntityCount != 1 {
		t.Errorf("Expected 1 entity, got %d", frame.Data.EntityCount)
	}
}

// TestWebSocketCommandIntake verifies text commands reach the command sink
func TestWebSocketCommandIntake(t *testing.T) {
	_, sink, url := newWSServer(t)

	conn, _, err := dial(t, url, "http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(command.Message{Entity: "0:1", Command: "!laser"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	// Garbage frames are dropped without closing the connection
	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	conn.WriteJSON(command.Message{Entity: "0:1", Command: "!shield on"})

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() != 2 {
		t.Errorf("Expected 2 commands, got %d", sink.count())
	}
}

// TestWebSocketRejectsOrigin verifies the origin check
func TestWebSocketRejectsOrigin(t *testing.T) {
	_, _, url := newWSServer(t)

	_, resp, err := dial(t, url, "https://evil.test")
	if err == nil {
		t.Fatal("Expected dial from foreign origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}
