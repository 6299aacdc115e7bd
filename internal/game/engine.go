package game

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// Simulation defaults
const (
	DefaultTickRate    = 30
	DefaultMaxStep     = 1.0 / 30.0 // Largest dt a single update may advance
	ArenaHalfExtent    = 25.0       // Random spawns land in [-25, 25] on X and Z
	DefaultSpawnHeight = 1.0
)

// EngineConfig configures a new engine
type EngineConfig struct {
	TickRate int
	MaxStep  float64
	Limits   ResourceLimits
	Seed     int64 // 0 seeds from the clock
}

// TickStats summarizes one update for metrics hooks
type TickStats struct {
	Tick        uint64
	Duration    time.Duration
	Entities    int
	Projectiles int
}

// Callbacks are invoked after an update completes, outside the engine lock
type Callbacks struct {
	OnDamage      func(DamagePayload)
	OnKill        func(KillPayload)
	OnAbility     func(AbilityPayload)
	OnLevelUp     func(LevelUpPayload)
	OnShieldBreak func(ShieldBreakPayload)
	OnTick        func(TickStats)
}

// Engine owns every entity and projectile and advances them in a fixed order:
// cooldowns, regeneration, combat resolution, projectiles, progression.
type Engine struct {
	mu          sync.RWMutex
	entities    *Arena[*Entity]
	names       map[string]EntityHandle
	projectiles *ProjectileRegistry
	resolver    *CombatResolver

	// Intent inbox, drained during the combat phase
	intents     []Intent
	intentStats IntentStats

	// Scratch buffer reused every tick
	targets []HitTarget

	tickRate int
	maxStep  float64
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Stats
	totalKills int
	tickCount  uint64
	simTime    float64

	callbacks Callbacks
	pending   []CombatEvent // events awaiting callback dispatch

	limits ResourceLimits

	// Snapshot system for lock-free host reads
	snapshots *SnapshotPublisher

	// Event sourcing for replay and debugging
	eventLog *EventLog

	// Deterministic RNG for replay consistency
	rng     *rand.Rand
	rngSeed int64
	seed    int64 // initial seed
}

// NewEngine creates a new simulation engine with DoS-resilient defaults
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = DefaultMaxStep
	}
	limits := cfg.Limits.withDefaults()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	entities := NewArena[*Entity](limits.MaxEntities)
	projectiles := NewProjectileRegistry(limits.MaxProjectiles)

	e := &Engine{
		entities:     entities,
		names:        make(map[string]EntityHandle),
		projectiles:  projectiles,
		resolver:     NewCombatResolver(entities, projectiles, rng),
		intents:      make([]Intent, 0, limits.MaxIntents),
		targets:      make([]HitTarget, 0, limits.MaxEntities),
		tickRate:     cfg.TickRate,
		maxStep:      cfg.MaxStep,
		stopChan:     make(chan struct{}),
		limits:       limits,
		snapshots:    NewSnapshotPublisher(),
		eventLog:     NewEventLog(),
		rng:          rng,
		rngSeed:      seed,
		seed:         seed,
	}
	e.resolver.SetSink(e.handleCombatEvent)
	return e
}

// Start begins the fixed-rate update loop. The engine may be restarted after Stop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.stopChan = make(chan struct{})
	ticker, stop := e.ticker, e.stopChan
	e.mu.Unlock()

	dt := 1.0 / float64(e.tickRate)
	go func() {
		for {
			select {
			case <-ticker.C:
				e.Update(dt)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Simulation started at %d TPS (max step %.4fs)", e.tickRate, e.maxStep)
}

// Stop stops the update loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Simulation stopped")
}

// ClampStep bounds dt to (0, maxStep]. Non-positive input yields 0.
func ClampStep(dt, maxStep float64) float64 {
	if dt <= 0 {
		return 0
	}
	if dt > maxStep {
		return maxStep
	}
	return dt
}

// Update advances the simulation by dt seconds (clamped to the max step).
// Safe to call directly when the engine is used as a library.
func (e *Engine) Update(dt float64) {
	started := time.Now()

	e.mu.Lock()
	dt = ClampStep(dt, e.maxStep)
	if dt == 0 {
		e.mu.Unlock()
		return
	}

	e.tickCount++

	// Log tick event with RNG seed for deterministic replay
	e.eventLog.EmitSimple(EventTypeTick, e.tickCount, "",
		TickPayload{
			RNGSeed:         e.rngSeed,
			EntityCount:     e.entities.Len(),
			ProjectileCount: e.projectiles.Count(),
			DeltaTimeNs:     int64(dt * 1e9),
		})

	// Advance RNG seed deterministically for next tick
	e.rngSeed = e.rng.Int63()
	e.rng.Seed(e.rngSeed)

	e.updateCooldowns(dt)
	e.updateRegeneration(dt)
	e.resolveIntents()
	e.updateProjectiles(dt)
	e.resolver.ApplyProgression()

	e.simTime += dt
	e.ProduceSnapshot()

	stats := TickStats{
		Tick:        e.tickCount,
		Entities:    e.entities.Len(),
		Projectiles: e.projectiles.Count(),
	}
	events := e.pending
	e.pending = nil
	cb := e.callbacks
	e.mu.Unlock()

	e.dispatch(cb, events)
	if cb.OnTick != nil {
		stats.Duration = time.Since(started)
		cb.OnTick(stats)
	}
}

// updateCooldowns ticks ability cooldowns, shield timers and teleport charges
func (e *Engine) updateCooldowns(dt float64) {
	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		if ent.IsAlive() {
			ent.tickTimers(dt)
		}
		return true
	})
}

// updateRegeneration applies passive resource and shield regen
func (e *Engine) updateRegeneration(dt float64) {
	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		if ent.IsAlive() {
			ent.regenerate(dt)
		}
		return true
	})
}

// resolveIntents drains the inbox in submission order
func (e *Engine) resolveIntents() {
	for i := range e.intents {
		if e.resolveIntent(e.intents[i]) {
			e.intentStats.Applied++
		} else {
			e.intentStats.Rejected++
		}
	}
	for i := range e.intents {
		e.intents[i] = Intent{}
	}
	e.intents = e.intents[:0]
}

func (e *Engine) resolveIntent(in Intent) bool {
	ent, ok := e.entities.Get(in.Entity)
	if !ok {
		return false
	}

	switch in.Kind {
	case IntentLaser:
		return e.resolver.TryLaser(ent, in.Point)
	case IntentMelee:
		return e.resolver.TryMelee(ent, in.Target)
	case IntentShield:
		return e.resolver.SetShield(ent, in.On)
	case IntentTeleport:
		if in.Point == nil {
			return false
		}
		return e.resolver.TryTeleport(ent, *in.Point)
	case IntentUltimate:
		return e.resolver.TryUltimate(ent, in.Point)
	case IntentAllocate:
		return e.resolver.AllocateStatPoint(ent, in.Attribute)
	default:
		return false
	}
}

// updateProjectiles moves projectiles and routes hits into the resolver
func (e *Engine) updateProjectiles(dt float64) {
	e.targets = e.targets[:0]
	e.entities.Each(func(h EntityHandle, ent *Entity) bool {
		e.targets = append(e.targets, HitTarget{
			Handle:   h,
			Team:     ent.Team,
			Position: ent.Transform.Position,
			Alive:    ent.IsAlive(),
		})
		return true
	})
	e.projectiles.Tick(dt, e.targets, e.onProjectileHit)
}

// onProjectileHit refreshes the hit target's liveness so later projectiles
// in the same tick skip entities that just died
func (e *Engine) onProjectileHit(p *Projectile, target EntityHandle) {
	e.resolver.OnProjectileHit(p, target)
	if ent, ok := e.entities.Get(target); ok && !ent.IsAlive() {
		for i := range e.targets {
			if e.targets[i].Handle == target {
				e.targets[i].Alive = false
			}
		}
	}
}

// handleCombatEvent records resolver events. Called with the lock held.
func (e *Engine) handleCombatEvent(ev CombatEvent) {
	e.eventLog.EmitSimple(ev.Type, e.tickCount, ev.Entity.String(), ev.Payload)

	switch p := ev.Payload.(type) {
	case KillPayload:
		e.totalKills++
		log.Printf("💀 %s eliminated %s", e.nameOf(p.Killer), e.nameOf(p.Victim))
	case LevelUpPayload:
		log.Printf("⭐ %s reached level %d", e.nameOf(p.Entity), p.Level)
	case ShieldBreakPayload:
		log.Printf("🛡️ %s's shield broke", e.nameOf(p.Entity))
	}

	e.pending = append(e.pending, ev)
}

func (e *Engine) nameOf(h EntityHandle) string {
	if ent, ok := e.entities.Get(h); ok {
		return ent.Name
	}
	return "unknown"
}

// dispatch invokes callbacks for the events of one update
func (e *Engine) dispatch(cb Callbacks, events []CombatEvent) {
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case DamagePayload:
			if cb.OnDamage != nil {
				cb.OnDamage(p)
			}
		case KillPayload:
			if cb.OnKill != nil {
				cb.OnKill(p)
			}
		case AbilityPayload:
			if cb.OnAbility != nil {
				cb.OnAbility(p)
			}
		case LevelUpPayload:
			if cb.OnLevelUp != nil {
				cb.OnLevelUp(p)
			}
		case ShieldBreakPayload:
			if cb.OnShieldBreak != nil {
				cb.OnShieldBreak(p)
			}
		}
	}
}

// SetCallbacks sets event callbacks
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = cb
}

// randomSpawn picks a deterministic spawn point inside the arena
func (e *Engine) randomSpawn() Vec3 {
	return Vec3{
		X: (e.rng.Float64()*2 - 1) * ArenaHalfExtent,
		Y: DefaultSpawnHeight,
		Z: (e.rng.Float64()*2 - 1) * ArenaHalfExtent,
	}
}

// AddEntity adds a combatant. An existing name returns the existing entity.
// A nil opts.Position picks a random spawn point. Returns false when the
// entity cap is reached or the position is not finite.
func (e *Engine) AddEntity(name string, opts EntityOptions) (EntityView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.names[name]; ok {
		if ent, ok := e.entities.Get(h); ok {
			return ent.View(), true
		}
	}

	// HARD CAP: Prevent DoS via entity flooding
	if e.entities.Len() >= e.limits.MaxEntities {
		log.Printf("⚠️ Entity limit reached (%d), rejecting: %s", e.limits.MaxEntities, name)
		return EntityView{}, false
	}

	if opts.Position == nil {
		spawn := e.randomSpawn()
		opts.Position = &spawn
	} else if !opts.Position.IsFinite() {
		return EntityView{}, false
	}
	ent := NewEntity(name, opts)
	ent.Handle = e.entities.Insert(ent)
	e.names[name] = ent.Handle

	e.eventLog.EmitSimple(EventTypeEntityJoin, e.tickCount, ent.Handle.String(),
		EntityJoinPayload{
			Entity:   ent.Handle,
			Name:     ent.Name,
			Team:     ent.Team,
			Position: ent.Transform.Position,
			Shield:   ent.Shield.Spec().Name,
		})

	log.Printf("👤 Entity joined: %s (%s)", name, ent.Handle)
	return ent.View(), true
}

// RemoveEntity removes a combatant. Its projectiles keep flying with a stale owner.
func (e *Engine) RemoveEntity(h EntityHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities.Get(h)
	if !ok {
		return false
	}
	e.entities.Remove(h)
	delete(e.names, ent.Name)

	e.eventLog.EmitSimple(EventTypeEntityLeave, e.tickCount, h.String(),
		EntityLeavePayload{Entity: h, Name: ent.Name})
	log.Printf("👋 Entity left: %s", ent.Name)
	return true
}

// GetEntity returns a view of an entity by handle
func (e *Engine) GetEntity(h EntityHandle) (EntityView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entities.Get(h)
	if !ok {
		return EntityView{}, false
	}
	return ent.View(), true
}

// FindEntity returns a view of an entity by name
func (e *Engine) FindEntity(name string) (EntityView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.names[name]
	if !ok {
		return EntityView{}, false
	}
	ent, ok := e.entities.Get(h)
	if !ok {
		return EntityView{}, false
	}
	return ent.View(), true
}

// Entities returns views of every entity in handle order
func (e *Engine) Entities() []EntityView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make([]EntityView, 0, e.entities.Len())
	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		views = append(views, ent.View())
		return true
	})
	return views
}

// SetTransform writes the host-owned position and facing of an entity.
// Non-finite transforms are rejected.
func (e *Engine) SetTransform(h EntityHandle, t Transform) bool {
	if !t.Position.IsFinite() || !t.Forward.IsFinite() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities.Get(h)
	if !ok {
		return false
	}
	ent.Transform.Position = t.Position
	if f := t.Forward.Normalize(); !f.IsZero() {
		ent.Transform.Forward = f
	}
	return true
}

// Submit queues an intent for the next update. Returns false when the
// inbox is full or the entity does not exist.
func (e *Engine) Submit(in Intent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.entities.Contains(in.Entity) {
		return false
	}
	if len(e.intents) >= e.limits.MaxIntents {
		e.intentStats.Dropped++
		return false
	}
	if in.Point != nil {
		p := *in.Point
		in.Point = &p
	}
	e.intents = append(e.intents, in)
	return true
}

// IntentStats returns counters for resolved and dropped intents
func (e *Engine) IntentStats() IntentStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.intentStats
}

// Respawn revives a dead entity. A nil position picks a random spawn point.
func (e *Engine) Respawn(h EntityHandle, pos *Vec3) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities.Get(h)
	if !ok || ent.IsAlive() || (pos != nil && !pos.IsFinite()) {
		return false
	}

	spawn := e.randomSpawn()
	if pos != nil {
		spawn = *pos
	}
	ent.Respawn(spawn)

	e.eventLog.EmitSimple(EventTypeRespawn, e.tickCount, h.String(),
		RespawnPayload{Entity: h, Position: spawn})
	log.Printf("🔄 %s respawned", ent.Name)
	return true
}

// Heal restores health to a living entity
func (e *Engine) Heal(h EntityHandle, amount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entities.Get(h)
	if !ok || !ent.IsAlive() || amount <= 0 {
		return false
	}

	applied := ent.Pool.Restore(ResourceHealth, amount*ent.Derived().HealingBonus)
	e.eventLog.EmitSimple(EventTypeHeal, e.tickCount, h.String(),
		HealPayload{Entity: h, Amount: applied, Health: ent.Pool.Current(ResourceHealth)})
	return true
}

// SetLineOfSight replaces the line-of-sight predicate used by melee
func (e *Engine) SetLineOfSight(fn LineOfSight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.SetLineOfSight(fn)
}

// SetRand replaces the crit/dodge random source
func (e *Engine) SetRand(src RandSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.SetRand(src)
}

// NearestEnemy returns the closest living enemy of h within maxRange
func (e *Engine) NearestEnemy(h EntityHandle, maxRange float64) (EntityHandle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entities.Get(h)
	if !ok {
		return EntityHandle{}, false
	}
	return e.resolver.FindNearestEnemy(ent, maxRange)
}

// TargetAhead returns the closest living enemy inside h's facing cone
func (e *Engine) TargetAhead(h EntityHandle, maxRange float64) (EntityHandle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.entities.Get(h)
	if !ok {
		return EntityHandle{}, false
	}
	return e.resolver.FindTargetInDirection(ent, ent.Transform.Forward, maxRange, DefaultTargetCone)
}

// Projectiles returns views of all live projectiles
func (e *Engine) Projectiles() []ProjectileView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.projectiles.Live()
}

// Scoreboard ranks entities by kills then damage dealt
func (e *Engine) Scoreboard(limit int) []ScoreEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	list := make([]*Entity, 0, e.entities.Len())
	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		list = append(list, ent)
		return true
	})
	return RankEntities(list, limit)
}

// GameState is a freshly allocated copy of the simulation for API responses
type GameState struct {
	Tick        uint64           `json:"tick"`
	SimTime     float64          `json:"simTime"`
	Entities    []EntityView     `json:"entities"`
	Projectiles []ProjectileView `json:"projectiles"`
	AliveCount  int              `json:"aliveCount"`
	TotalKills  int              `json:"totalKills"`
}

// GetState returns the current state, copied under the read lock
func (e *Engine) GetState() GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := GameState{
		Tick:        e.tickCount,
		SimTime:     e.simTime,
		Entities:    make([]EntityView, 0, e.entities.Len()),
		Projectiles: e.projectiles.Live(),
		TotalKills:  e.totalKills,
	}
	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		state.Entities = append(state.Entities, ent.View())
		if ent.IsAlive() {
			state.AliveCount++
		}
		return true
	})
	return state
}

// GetSnapshot returns the latest published snapshot without locking.
// Callers must treat it as read-only.
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshots.Latest()
}

// ProduceSnapshot builds and publishes a snapshot. Called with e.mu held at
// the end of each update.
func (e *Engine) ProduceSnapshot() {
	snap := e.snapshots.Next()
	snap.TickNumber = e.tickCount
	snap.SimTime = e.simTime
	snap.RNGSeed = e.rngSeed
	snap.EntityCount = e.entities.Len()
	snap.ProjectileCount = e.projectiles.Count()
	snap.TotalKills = e.totalKills

	e.entities.Each(func(_ EntityHandle, ent *Entity) bool {
		if ent.IsAlive() {
			snap.AliveCount++
		}
		if len(snap.Entities) < e.limits.MaxSnapshotEntities {
			snap.Entities = append(snap.Entities, ent.View())
		}
		return true
	})
	snap.Projectiles = e.projectiles.AppendViews(snap.Projectiles, e.limits.MaxProjectiles)

	e.snapshots.Publish(snap)
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

// EventLog exposes the event log for subscribers
func (e *Engine) EventLog() *EventLog {
	return e.eventLog
}

// GetLimits returns the current resource limits
func (e *Engine) GetLimits() ResourceLimits {
	return e.limits
}

// TickCount returns the number of updates applied
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// SimTime returns simulated seconds since creation
func (e *Engine) SimTime() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.simTime
}

// Seed returns the seed the engine was created with
func (e *Engine) Seed() int64 {
	return e.seed
}

// TickRate returns the configured updates per second
func (e *Engine) TickRate() int {
	return e.tickRate
}
