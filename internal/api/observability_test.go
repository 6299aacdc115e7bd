package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

// TestDebugAddr verifies the debug listener stays on loopback
func TestDebugAddr(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		external bool
		want     string
		wantErr  bool
	}{
		{"loopback ip", "127.0.0.1:6060", false, "127.0.0.1:6060", false},
		{"localhost", "localhost:7070", false, "localhost:7070", false},
		{"ipv6 loopback", "[::1]:6060", false, "[::1]:6060", false},
		{"wildcard forced", ":6060", false, "127.0.0.1:6060", false},
		{"public forced", "10.1.2.3:9000", false, "127.0.0.1:9000", false},
		{"public allowed", "10.1.2.3:9000", true, "10.1.2.3:9000", false},
		{"missing port", "127.0.0.1", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := debugAddr(tt.addr, tt.external)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestDebugHandlerAuth verifies optional basic auth on the debug mux
func TestDebugHandlerAuth(t *testing.T) {
	open := DebugHandler(config.ObservabilityConfig{})
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("Expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}

	locked := DebugHandler(config.ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "secret"})

	rec = httptest.NewRecorder()
	locked.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "secret")
	rec = httptest.NewRecorder()
	locked.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", rec.Code)
	}
}

// TestEventLogStatsDeltas verifies running totals become counter increments
func TestEventLogStatsDeltas(t *testing.T) {
	eventLogSeen.Lock()
	baseTotal, baseDropped := eventLogSeen.total, eventLogSeen.dropped
	eventLogSeen.Unlock()
	startTotal := testutil.ToFloat64(eventLogTotal)
	startDropped := testutil.ToFloat64(eventLogDropped)

	UpdateEventLogStats(baseTotal+10, baseDropped+2)
	UpdateEventLogStats(baseTotal+15, baseDropped+2)
	// A smaller total (fresh engine) must not move the counter backwards
	UpdateEventLogStats(baseTotal+1, baseDropped)

	if got := testutil.ToFloat64(eventLogTotal) - startTotal; got != 15 {
		t.Errorf("Expected total +15, got %+v", got)
	}
	if got := testutil.ToFloat64(eventLogDropped) - startDropped; got != 2 {
		t.Errorf("Expected dropped +2, got %+v", got)
	}
}

// TestMetricsCallbacks verifies engine callbacks reach the counters
func TestMetricsCallbacks(t *testing.T) {
	cb := MetricsCallbacks()
	kills := testutil.ToFloat64(killsTotal)
	damage := testutil.ToFloat64(damageTotal)

	cb.OnKill(game.KillPayload{})
	cb.OnDamage(game.DamagePayload{Final: 12.5})

	if got := testutil.ToFloat64(killsTotal) - kills; got != 1 {
		t.Errorf("Expected 1 kill, got %v", got)
	}
	if got := testutil.ToFloat64(damageTotal) - damage; got != 12.5 {
		t.Errorf("Expected 12.5 damage, got %v", got)
	}
}
