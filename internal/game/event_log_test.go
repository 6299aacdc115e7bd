package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func readEventFile(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

// TestEventLogWritesNDJSON verifies events land in the file in order
func TestEventLogWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	el.EmitSimple(EventTypeKill, 4, "0:1", KillPayload{KillerKills: 1, VictimDeaths: 2})
	el.EmitSimple(EventTypeHeal, 5, "0:1", HealPayload{Amount: 20, Health: 80})
	el.Stop()

	events := readEventFile(t, path)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypeKill || events[1].Type != EventTypeHeal {
		t.Errorf("Expected kill then heal, got %s then %s", events[0].Type, events[1].Type)
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("Expected sequences 1 and 2, got %d and %d", events[0].Sequence, events[1].Sequence)
	}
	if events[1].TickNum != 5 {
		t.Errorf("Expected tick 5, got %d", events[1].TickNum)
	}

	var heal HealPayload
	if err := json.Unmarshal(events[1].Payload, &heal); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if heal.Health != 80 {
		t.Errorf("Expected health 80, got %v", heal.Health)
	}
}

// TestEventTypeText verifies types round-trip by name
func TestEventTypeText(t *testing.T) {
	data, err := json.Marshal(NewEvent(EventTypeShieldBreak, 1, "", nil))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	if raw["type"] != "shield_break" {
		t.Errorf("Expected type shield_break, got %v", raw["type"])
	}

	var back Event
	json.Unmarshal(data, &back)
	if back.Type != EventTypeShieldBreak {
		t.Errorf("Expected EventTypeShieldBreak, got %v", back.Type)
	}

	var unknown EventType
	unknown.UnmarshalText([]byte("bogus"))
	if unknown != EventTypeUnknown {
		t.Errorf("Expected unknown type, got %v", unknown)
	}
}

// TestEventLogStopped verifies a stopped log accepts nothing
func TestEventLogStopped(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeDamage, 1, "0:1", nil) {
		t.Error("Expected Emit before Start to fail")
	}
	if el.Stats().Total != 0 {
		t.Errorf("Expected 0 total, got %d", el.Stats().Total)
	}
}

// TestEventLogEntityRateLimit verifies noisy entities are throttled but
// state transitions still get through
func TestEventLogEntityRateLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 200; i++ {
		if el.EmitSimple(EventTypeDamage, 1, "0:1", nil) {
			accepted++
		}
	}
	if accepted >= 200 {
		t.Errorf("Expected damage events to be throttled, accepted %d", accepted)
	}
	if el.GetDroppedCount() == 0 {
		t.Error("Expected dropped count > 0")
	}

	for i := 0; i < 20; i++ {
		if !el.EmitSimple(EventTypeKill, 1, "0:1", nil) {
			t.Fatalf("Kill event %d was dropped", i)
		}
	}

	// Another entity has its own budget
	if !el.EmitSimple(EventTypeDamage, 1, "1:1", nil) {
		t.Error("Expected first event for a fresh entity to pass")
	}
}

// TestEventLogSink verifies the sink sees every flushed event
func TestEventLogSink(t *testing.T) {
	el := NewEventLog()

	var mu sync.Mutex
	var got []Event
	el.SetSink(func(batch []Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, batch...)
	})

	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		el.EmitSimple(EventTypeLevelUp, uint64(i), "0:1", LevelUpPayload{Level: i + 2})
	}
	el.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("Expected 100 events at sink, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Sequence != uint64(i+1) {
			t.Fatalf("Expected sequence %d, got %d", i+1, ev.Sequence)
		}
	}
	if stats := el.Stats(); stats.Pending != 0 || stats.Running {
		t.Errorf("Expected drained stopped log, got %+v", stats)
	}
}

// TestEventLogFullRing verifies overflow is dropped and counted
func TestEventLogFullRing(t *testing.T) {
	el := NewEventLog()
	// Running without a writer so nothing drains
	el.running.Store(true)

	for i := 0; i < EventBufferSize; i++ {
		if !el.EmitSimple(EventTypeRespawn, 1, "", nil) {
			t.Fatalf("Event %d rejected before ring was full", i)
		}
	}
	if el.EmitSimple(EventTypeRespawn, 1, "", nil) {
		t.Error("Expected emit into a full ring to fail")
	}
	stats := el.Stats()
	if stats.Pending != EventBufferSize || stats.Dropped != 1 {
		t.Errorf("Expected %d pending and 1 dropped, got %+v", EventBufferSize, stats)
	}

	batch := el.collectBatch(nil)
	if len(batch) != BatchFlushSize {
		t.Errorf("Expected batch of %d, got %d", BatchFlushSize, len(batch))
	}
	if !el.EmitSimple(EventTypeRespawn, 1, "", nil) {
		t.Error("Expected room after the writer drained a batch")
	}
}

// TestEngineEventLog verifies the engine records joins and ticks
func TestEngineEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.ndjson")
	engine := newTestEngine(t)
	if err := engine.StartEventLog(path); err != nil {
		t.Fatalf("StartEventLog failed: %v", err)
	}

	addAt(t, engine, "alice", V3(0, 1, 0))
	engine.Update(step)
	engine.StopEventLog()

	seen := make(map[EventType]int)
	for _, ev := range readEventFile(t, path) {
		seen[ev.Type]++
	}
	if seen[EventTypeEntityJoin] != 1 {
		t.Errorf("Expected 1 entity_join, got %d", seen[EventTypeEntityJoin])
	}
	if seen[EventTypeTick] != 1 {
		t.Errorf("Expected 1 tick, got %d", seen[EventTypeTick])
	}
	if engine.GetEventLogStats().Total < 2 {
		t.Errorf("Expected at least 2 events, got %d", engine.GetEventLogStats().Total)
	}
}
