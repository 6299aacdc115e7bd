package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

const step = 1.0 / 30.0

// noRolls never crits or dodges
type noRolls struct{}

func (noRolls) Float64() float64 { return 0.99 }

// entityJSON is the subset of an entity view the tests read back
type entityJSON struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Vitals struct {
		Health    float64 `json:"health"`
		MaxHealth float64 `json:"maxHealth"`
	} `json:"vitals"`
	Record struct {
		DamageTaken float64 `json:"damageTaken"`
	} `json:"record"`
}

func newTestRouter(t *testing.T, limits game.ResourceLimits) (*game.Engine, *httptest.Server) {
	t.Helper()
	engine := game.NewEngine(game.EngineConfig{Seed: 7, Limits: limits})
	engine.SetRand(noRolls{})

	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(rl.Stop)

	ts := httptest.NewServer(NewRouter(RouterConfig{
		Engine:         engine,
		RateLimiter:    rl,
		DisableLogging: true,
	}))
	t.Cleanup(ts.Close)
	return engine, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func createEntity(t *testing.T, ts *httptest.Server, body map[string]interface{}) entityJSON {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/entities", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 creating entity, got %d", resp.StatusCode)
	}
	var view entityJSON
	decode(t, resp, &view)
	return view
}

func getEntity(t *testing.T, ts *httptest.Server, handle string) (entityJSON, int) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/entities/" + handle)
	if err != nil {
		t.Fatalf("GET entity: %v", err)
	}
	var view entityJSON
	if resp.StatusCode == http.StatusOK {
		decode(t, resp, &view)
	} else {
		resp.Body.Close()
	}
	return view, resp.StatusCode
}

// TestCreateAndGetEntity covers entity creation and lookup errors
func TestCreateAndGetEntity(t *testing.T) {
	_, ts := newTestRouter(t, game.ResourceLimits{})

	view := createEntity(t, ts, map[string]interface{}{
		"name":     "alice",
		"team":     "red",
		"shield":   "energy",
		"position": map[string]float64{"x": 1, "y": 1, "z": 1},
	})
	if view.Handle == "" || view.Name != "alice" {
		t.Fatalf("Unexpected view: %+v", view)
	}
	if view.Vitals.Health != view.Vitals.MaxHealth {
		t.Errorf("Expected full health, got %.1f/%.1f", view.Vitals.Health, view.Vitals.MaxHealth)
	}

	tests := []struct {
		name   string
		handle string
		want   int
	}{
		{"existing", view.Handle, http.StatusOK},
		{"unknown slot", "9:1", http.StatusNotFound},
		{"stale generation", "0:99", http.StatusNotFound},
		{"malformed", "alice", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := getEntity(t, ts, tt.handle)
			if code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, code)
			}
		})
	}

	resp := postJSON(t, ts.URL+"/api/entities", map[string]string{"team": "red"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without name, got %d", resp.StatusCode)
	}
}

// TestEntityLimit verifies the cap surfaces as 503
func TestEntityLimit(t *testing.T) {
	_, ts := newTestRouter(t, game.ResourceLimits{MaxEntities: 1})

	createEntity(t, ts, map[string]interface{}{"name": "one"})
	resp := postJSON(t, ts.URL+"/api/entities", map[string]interface{}{"name": "two"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 at the cap, got %d", resp.StatusCode)
	}
}

// TestLaserIntentOverHTTP drives a full fire-and-hit cycle through the API
func TestLaserIntentOverHTTP(t *testing.T) {
	engine, ts := newTestRouter(t, game.ResourceLimits{})

	alice := createEntity(t, ts, map[string]interface{}{
		"name":     "alice",
		"team":     "red",
		"position": map[string]float64{"x": 0, "y": 1, "z": 0},
		"forward":  map[string]float64{"x": 1, "y": 0, "z": 0},
	})
	bob := createEntity(t, ts, map[string]interface{}{
		"name":     "bob",
		"team":     "blue",
		"position": map[string]float64{"x": 5, "y": 1, "z": 0},
	})

	var queued map[string]bool
	resp := postJSON(t, ts.URL+"/api/entities/"+alice.Handle+"/intents", map[string]string{"kind": "laser"})
	decode(t, resp, &queued)
	if !queued["queued"] {
		t.Fatal("Expected laser intent to be queued")
	}

	for i := 0; i < 10; i++ {
		engine.Update(step)
	}

	after, _ := getEntity(t, ts, bob.Handle)
	if after.Record.DamageTaken <= 0 {
		t.Errorf("Expected bob to take damage, got %.2f", after.Record.DamageTaken)
	}
	if after.Vitals.Health >= bob.Vitals.Health {
		t.Errorf("Expected health below %.1f, got %.1f", bob.Vitals.Health, after.Vitals.Health)
	}

	var board []struct {
		Rank int    `json:"rank"`
		Name string `json:"name"`
	}
	resp, err := http.Get(ts.URL + "/api/scoreboard?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &board)
	if len(board) != 1 || board[0].Name != "alice" {
		t.Errorf("Expected alice to lead the scoreboard, got %+v", board)
	}
}

// TestIntentValidation covers bad intent requests
func TestIntentValidation(t *testing.T) {
	_, ts := newTestRouter(t, game.ResourceLimits{})
	alice := createEntity(t, ts, map[string]interface{}{"name": "alice"})

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"unknown kind", alice.Handle, map[string]string{"kind": "dance"}, http.StatusBadRequest},
		{"unknown entity", "7:1", map[string]string{"kind": "laser"}, http.StatusNotFound},
		{"bad body", alice.Handle, "not an object", http.StatusBadRequest},
		{"shield", alice.Handle, map[string]interface{}{"kind": "shield", "on": true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/entities/"+tt.path+"/intents", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

// TestTransformHealRespawnRemove covers the remaining entity routes
func TestTransformHealRespawnRemove(t *testing.T) {
	engine, ts := newTestRouter(t, game.ResourceLimits{})
	alice := createEntity(t, ts, map[string]interface{}{"name": "alice"})
	base := ts.URL + "/api/entities/" + alice.Handle

	resp := postJSON(t, base+"/transform", map[string]interface{}{
		"position": map[string]float64{"x": 3, "y": 1, "z": -2},
		"forward":  map[string]float64{"x": 0, "y": 0, "z": 1},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for transform, got %d", resp.StatusCode)
	}
	h, _ := game.ParseHandle(alice.Handle)
	view, _ := engine.GetEntity(h)
	if view.Transform.Position != game.V3(3, 1, -2) {
		t.Errorf("Expected position (3,1,-2), got %+v", view.Transform.Position)
	}

	// Alive entities cannot respawn
	var result map[string]bool
	decode(t, postJSON(t, base+"/respawn", map[string]interface{}{}), &result)
	if result["success"] {
		t.Error("Expected respawn of a living entity to fail")
	}

	// Healing at full health still succeeds with nothing to restore
	decode(t, postJSON(t, base+"/heal", map[string]float64{"amount": 10}), &result)
	if !result["success"] {
		t.Error("Expected heal of a living entity to succeed")
	}

	req, _ := http.NewRequest(http.MethodDelete, base, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for delete, got %d", delResp.StatusCode)
	}
	if _, code := getEntity(t, ts, alice.Handle); code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", code)
	}
}

// TestStaticTables verifies the ability and shield tables
func TestStaticTables(t *testing.T) {
	_, ts := newTestRouter(t, game.ResourceLimits{})

	tests := []struct {
		path string
		want int
	}{
		{"/api/abilities", len(game.Abilities)},
		{"/api/shields", len(game.ShieldTypes)},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			var rows []map[string]interface{}
			decode(t, resp, &rows)
			if len(rows) != tt.want {
				t.Errorf("Expected %d rows, got %d", tt.want, len(rows))
			}
		})
	}
}

// TestStateAndArenaPlot verifies the snapshot and PNG endpoints
func TestStateAndArenaPlot(t *testing.T) {
	engine, ts := newTestRouter(t, game.ResourceLimits{})
	for i := 0; i < 3; i++ {
		createEntity(t, ts, map[string]interface{}{"name": fmt.Sprintf("e%d", i)})
	}
	engine.Update(step)

	var snap struct {
		TickNumber  uint64        `json:"tickNumber"`
		EntityCount int           `json:"entityCount"`
		Entities    []interface{} `json:"entities"`
	}
	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &snap)
	if snap.TickNumber != 1 || snap.EntityCount != 3 || len(snap.Entities) != 3 {
		t.Errorf("Unexpected snapshot: tick %d, count %d, entities %d",
			snap.TickNumber, snap.EntityCount, len(snap.Entities))
	}

	resp, err = http.Get(ts.URL + "/api/arena.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}
}

// TestRateLimitMiddleware verifies 429 once the burst is spent
func TestRateLimitMiddleware(t *testing.T) {
	engine := game.NewEngine(game.EngineConfig{Seed: 1})
	router := NewRouter(RouterConfig{
		Engine:          engine,
		RateLimitConfig: &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
		DisableLogging:  true,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/abilities", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected first two requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", codes[2])
	}
}

// TestIPRateLimiterPerClient verifies each IP gets its own bucket
func TestIPRateLimiterPerClient(t *testing.T) {
	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Error("Expected first request to pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("Expected second request from same IP to be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("Expected another IP to pass")
	}

	stats := rl.Stats()
	if stats.Allowed != 2 || stats.Rejected != 1 || stats.Tracked != 2 {
		t.Errorf("Expected 2/1/2, got %+v", stats)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2, 172.16.0.1")
	rl.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 for forwarded client, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	rl.prune(time.Now().Add(time.Minute))
	if rl.Stats().Tracked != 0 {
		t.Errorf("Expected prune to forget idle IPs, got %d", rl.Stats().Tracked)
	}
}

// TestWebSocketRateLimiter verifies per-IP connection slots
func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)
	if !wrl.Allow("a") || !wrl.Allow("a") {
		t.Fatal("Expected two slots")
	}
	if wrl.Allow("a") {
		t.Error("Expected third connection to be rejected")
	}
	wrl.Release("a")
	if !wrl.Allow("a") {
		t.Error("Expected slot after release")
	}
	wrl.Release("a")
	wrl.Release("a")
	if n := wrl.ConnectionCount("a"); n != 0 {
		t.Errorf("Expected 0 connections, got %d", n)
	}
}

// TestIsAllowedOrigin covers exact and wildcard origins
func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost:*", "https://*.example.com", "https://app.test"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"http://localhost", true},
		{"https://play.example.com", true},
		{"https://app.test", true},
		{"https://evil.test", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := IsAllowedOrigin(tt.origin, allowed); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
