package command

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrQueueFull is returned when a command is dropped for lack of buffer space
var ErrQueueFull = errors.New("command queue full")

// slowCommand is the queue wait after which a command is logged
const slowCommand = 100 * time.Millisecond

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Total buffered commands across all shards (default: 256)
	Workers    int // Number of shards, one worker each (default: 4)
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Workers:    4,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Failed        uint64  `json:"failed"`
	Dropped       uint64  `json:"dropped"`
	Pending       uint64  `json:"pending"`
	BufferSize    uint64  `json:"buffer_size"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms"`
}

// CommandQueue hands parsed commands to a pool of workers so transport
// handlers never wait on the engine.
//
// Commands are sharded by entity index: every command for one entity goes
// through the same worker, so "!shield on" followed by "!laser" reaches the
// engine in that order. Different entities proceed in parallel.
type CommandQueue struct {
	shards  []chan Command
	handler *Handler

	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	enqueued  atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	waitEMA   atomic.Int64 // nanoseconds

	onResult func(cmd Command, err error)
}

// NewCommandQueue creates a stopped queue
func NewCommandQueue(handler *Handler, cfg QueueConfig) *CommandQueue {
	defaults := DefaultQueueConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}

	perShard := cfg.BufferSize / cfg.Workers
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]chan Command, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan Command, perShard)
	}

	return &CommandQueue{
		shards:   shards,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
}

// OnResult registers a hook called after every processed command. Set before Start.
func (q *CommandQueue) OnResult(fn func(cmd Command, err error)) {
	q.onResult = fn
}

// Start launches one worker per shard
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return
	}

	log.Printf("🚀 CommandQueue starting: %d shards x %d buffered", len(q.shards), cap(q.shards[0]))

	for _, shard := range q.shards {
		q.wg.Add(1)
		go q.worker(shard)
	}
}

// Stop signals workers and waits for them. Commands still buffered are left
// unprocessed and show up as Pending.
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return
	}

	close(q.stopChan)
	q.wg.Wait()

	s := q.Stats()
	log.Printf("📊 CommandQueue stopped - enqueued: %d, processed: %d, failed: %d, dropped: %d, pending: %d",
		s.Enqueued, s.Processed, s.Failed, s.Dropped, s.Pending)
}

// EnqueueMessage parses a raw client message and enqueues the command
func (q *CommandQueue) EnqueueMessage(msg Message) error {
	cmd, err := Parse(msg)
	if err != nil {
		return err
	}
	if !q.Enqueue(cmd) {
		return errors.Wrapf(ErrQueueFull, "entity %s", cmd.Entity)
	}
	return nil
}

// Enqueue places a command on its entity's shard without blocking.
// Returns false if that shard is full.
func (q *CommandQueue) Enqueue(cmd Command) bool {
	cmd.ReceivedAt = time.Now()
	shard := q.shards[int(cmd.Entity.Index)%len(q.shards)]

	select {
	case shard <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		if n := q.dropped.Add(1); n%100 == 1 {
			log.Printf("⚠️ CommandQueue shard full, dropped %s from %s (total dropped: %d)",
				cmd.Name, cmd.User, n)
		}
		return false
	}
}

func (q *CommandQueue) worker(shard <-chan Command) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case cmd := <-shard:
			q.process(cmd)
		}
	}
}

func (q *CommandQueue) process(cmd Command) {
	wait := time.Since(cmd.ReceivedAt)
	q.observeWait(wait)
	if wait > slowCommand {
		log.Printf("⚠️ %s from %s waited %.1fms in queue",
			cmd.Name, cmd.User, float64(wait.Microseconds())/1000)
	}

	err := q.handler.ProcessCommand(cmd)
	if err != nil {
		q.failed.Add(1)
	}
	q.processed.Add(1)

	if q.onResult != nil {
		q.onResult(cmd, err)
	}
}

// observeWait folds a sample into the wait-time moving average (alpha 0.1).
// Concurrent workers may lose a sample; the average is advisory.
func (q *CommandQueue) observeWait(wait time.Duration) {
	prev := q.waitEMA.Load()
	q.waitEMA.Store(prev + (wait.Nanoseconds()-prev)/10)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	var pending, capacity int
	for _, shard := range q.shards {
		pending += len(shard)
		capacity += cap(shard)
	}

	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     q.processed.Load(),
		Failed:        q.failed.Load(),
		Dropped:       q.dropped.Load(),
		Pending:       uint64(pending),
		BufferSize:    uint64(capacity),
		AvgWaitTimeMs: float64(q.waitEMA.Load()) / 1e6,
	}
}
