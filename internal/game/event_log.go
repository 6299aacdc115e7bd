package game

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Ring capacity; events arriving while it is full are dropped
	MaxEventsPerSec      = 10000                  // Global rate limit
	MaxEventsPerEntity   = 100                    // Per-entity rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	EntityLimiterCleanup = 5 * time.Minute        // Idle time before an entity limiter is discarded
)

// unthrottled event types are state transitions. They skip the rate
// limiters so a replay never loses a join, death or level.
var unthrottled = map[EventType]bool{
	EventTypeEntityJoin:  true,
	EventTypeEntityLeave: true,
	EventTypeKill:        true,
	EventTypeRespawn:     true,
	EventTypeLevelUp:     true,
}

// EventLogStats reports event log counters
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// EventLog is a bounded, rate-limited ring of simulation events drained by a
// background writer into newline-delimited JSON.
//
// Emit is called only by the engine while it holds its lock, so the ring has
// a single producer and a single consumer (the writer goroutine).
type EventLog struct {
	ring      [EventBufferSize]Event
	writeHead atomic.Uint64 // next sequence to publish
	readHead  atomic.Uint64 // next sequence the writer will read

	globalLimiter *rate.Limiter
	limiterMu     sync.Mutex
	entityLimits  map[string]*entityLimiterEntry

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	fileMu  sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder

	// Optional in-process subscriber, called from the writer goroutine
	sink func([]Event)

	total   atomic.Uint64
	dropped atomic.Uint64
}

type entityLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog creates a stopped event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		entityLimits:  make(map[string]*entityLimiterEntry),
		stopChan:      make(chan struct{}),
	}
}

// SetSink registers a callback that receives every flushed batch.
// Must be called before Start.
func (el *EventLog) SetSink(fn func([]Event)) {
	el.sink = fn
}

// Start opens filePath for append and launches the writer. An empty path
// keeps events in memory for the sink only. A stopped log cannot be restarted.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "open event log %s", filePath)
		}
		el.file = file
		el.buf = bufio.NewWriter(file)
		el.encoder = json.NewEncoder(el.buf)
	}

	el.running.Store(true)
	el.wg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.wg.Wait()

		el.fileMu.Lock()
		defer el.fileMu.Unlock()
		if el.buf != nil {
			el.buf.Flush()
		}
		if el.file != nil {
			el.file.Close()
		}
	})
}

// Emit appends an event. Returns false if the log is stopped, the event was
// rate limited or the ring is full. Only the writer advances readHead.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !unthrottled[event.Type] && !el.allow(event.EntityID) {
		el.dropped.Add(1)
		return false
	}

	seq := el.writeHead.Load()
	if seq-el.readHead.Load() >= EventBufferSize {
		el.dropped.Add(1)
		return false
	}

	event.Sequence = seq + 1
	el.ring[seq%EventBufferSize] = event
	el.writeHead.Store(seq + 1)

	el.total.Add(1)
	return true
}

// EmitSimple builds and emits an event
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, entityID string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, entityID, payload))
}

// allow applies the global limiter and, for entity events, the entity's own
func (el *EventLog) allow(entityID string) bool {
	if !el.globalLimiter.Allow() {
		return false
	}
	if entityID == "" {
		return true
	}

	el.limiterMu.Lock()
	defer el.limiterMu.Unlock()

	entry, ok := el.entityLimits[entityID]
	if !ok {
		entry = &entityLimiterEntry{
			limiter: rate.NewLimiter(MaxEventsPerEntity, MaxEventsPerEntity/10),
		}
		el.entityLimits[entityID] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter.Allow()
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			// Drain everything still in the ring
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(EntityLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.pruneLimiters(time.Now().Add(-EntityLimiterCleanup))
		}
	}
}

// pruneLimiters drops entity limiters idle since before cutoff
func (el *EventLog) pruneLimiters(cutoff time.Time) {
	el.limiterMu.Lock()
	defer el.limiterMu.Unlock()
	for id, entry := range el.entityLimits {
		if entry.lastUsed.Before(cutoff) {
			delete(el.entityLimits, id)
		}
	}
}

// collectBatch copies up to BatchFlushSize pending events out of the ring
func (el *EventLog) collectBatch(batch []Event) []Event {
	head := el.writeHead.Load()
	for tail := el.readHead.Load(); tail < head && len(batch) < BatchFlushSize; tail++ {
		batch = append(batch, el.ring[tail%EventBufferSize])
	}
	if len(batch) > 0 {
		el.readHead.Add(uint64(len(batch)))
	}
	return batch
}

// flushBatch hands a batch to the sink and appends it to the file
func (el *EventLog) flushBatch(batch []Event) {
	if el.sink != nil {
		el.sink(batch)
	}

	el.fileMu.Lock()
	defer el.fileMu.Unlock()
	if el.encoder == nil {
		return
	}
	for _, event := range batch {
		el.encoder.Encode(event)
	}
	el.buf.Flush()
}

// Stats returns a copy of the counters
func (el *EventLog) Stats() EventLogStats {
	return EventLogStats{
		Total:   el.total.Load(),
		Dropped: el.dropped.Load(),
		Pending: el.writeHead.Load() - el.readHead.Load(),
		Running: el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.dropped.Load()
}

// GetTotalCount returns the number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return el.total.Load()
}
