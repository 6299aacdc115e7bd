package game

import (
	"sync/atomic"
	"time"
)

// ResourceLimits bounds what clients can make the engine allocate
type ResourceLimits struct {
	MaxEntities         int // Hard cap on combatants in the arena
	MaxSnapshotEntities int // Hard cap on entities copied into a snapshot
	MaxProjectiles      int // Hard cap on live projectiles
	MaxIntents          int // Intent inbox capacity per tick
}

// DefaultLimits applies to any ResourceLimits field left at zero
var DefaultLimits = ResourceLimits{
	MaxEntities:         256,
	MaxSnapshotEntities: 256,
	MaxProjectiles:      DefaultMaxProjectiles,
	MaxIntents:          1024,
}

// withDefaults fills zero fields from DefaultLimits
func (l ResourceLimits) withDefaults() ResourceLimits {
	if l.MaxEntities <= 0 {
		l.MaxEntities = DefaultLimits.MaxEntities
	}
	if l.MaxSnapshotEntities <= 0 {
		l.MaxSnapshotEntities = l.MaxEntities
	}
	if l.MaxProjectiles <= 0 {
		l.MaxProjectiles = DefaultLimits.MaxProjectiles
	}
	if l.MaxIntents <= 0 {
		l.MaxIntents = DefaultLimits.MaxIntents
	}
	return l
}

// GameSnapshot is the simulation state as of one tick. Entity and projectile
// lists are capped by ResourceLimits.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"` // Bumped once per published snapshot
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tickNumber"`
	SimTime    float64   `json:"simTime"` // Simulated seconds since start
	RNGSeed    int64     `json:"rngSeed"`

	Entities    []EntityView     `json:"entities"`
	Projectiles []ProjectileView `json:"projectiles"`

	EntityCount     int `json:"entityCount"`
	AliveCount      int `json:"aliveCount"`
	ProjectileCount int `json:"projectileCount"`
	TotalKills      int `json:"totalKills"`
}

// SnapshotPublisher hands finished snapshots from the simulation to any
// number of readers. A published snapshot is never written again, so readers
// may hold it for as long as they like without locking.
type SnapshotPublisher struct {
	latest   atomic.Pointer[GameSnapshot]
	sequence atomic.Uint64
}

// NewSnapshotPublisher starts with an empty snapshot so readers never see nil
func NewSnapshotPublisher() *SnapshotPublisher {
	p := &SnapshotPublisher{}
	p.latest.Store(&GameSnapshot{
		Timestamp:   time.Now(),
		Entities:    []EntityView{},
		Projectiles: []ProjectileView{},
	})
	return p
}

// Next returns a fresh snapshot sized like the last one. Producer only.
func (p *SnapshotPublisher) Next() *GameSnapshot {
	prev := p.latest.Load()
	return &GameSnapshot{
		Sequence:    p.sequence.Add(1),
		Timestamp:   time.Now(),
		Entities:    make([]EntityView, 0, len(prev.Entities)),
		Projectiles: make([]ProjectileView, 0, len(prev.Projectiles)),
	}
}

// Publish makes snap the latest. snap must not be modified afterwards.
func (p *SnapshotPublisher) Publish(snap *GameSnapshot) {
	p.latest.Store(snap)
}

// Latest returns the most recently published snapshot
func (p *SnapshotPublisher) Latest() *GameSnapshot {
	return p.latest.Load()
}
