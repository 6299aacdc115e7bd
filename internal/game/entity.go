package game

import "math"

// LifeState is the entity's lifecycle state
type LifeState int

const (
	StateAlive LifeState = iota // In the arena and fighting
	StateDead                   // Terminal until the host respawns the entity
)

func (s LifeState) String() string {
	if s == StateDead {
		return "dead"
	}
	return "alive"
}

// MarshalText encodes the state by name
func (s LifeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transform is the host-owned position and facing of an entity
type Transform struct {
	Position Vec3 `json:"position"`
	Forward  Vec3 `json:"forward"`
}

// EntityOptions configures a new entity
type EntityOptions struct {
	Team       string
	Shield     ShieldType
	Attributes *Attributes // nil uses DefaultAttributes
	Position   *Vec3       // nil lets the engine pick a spawn point
	Forward    Vec3
}

// Entity is a combatant. All fields are mutated only during an engine update.
type Entity struct {
	Handle EntityHandle
	Name   string
	Team   string

	Pool      *ResourcePool
	Cooldowns *CooldownTracker
	Shield    *Shield
	Ledger    *ProgressionLedger
	Transform Transform
	State     LifeState
	Record    CombatRecord

	teleportCharges int
	chargeTimer     float64
}

// NewEntity creates a full-health level 1 combatant
func NewEntity(name string, opts EntityOptions) *Entity {
	attrs := DefaultAttributes()
	if opts.Attributes != nil {
		attrs = *opts.Attributes
	}
	forward := opts.Forward.Normalize()
	if forward.IsZero() {
		forward = Vec3{X: 1}
	}

	var pos Vec3
	if opts.Position != nil {
		pos = *opts.Position
	}

	pool := &ResourcePool{}
	ledger := NewProgressionLedger(attrs, pool)
	pool.Fill()

	return &Entity{
		Name:            name,
		Team:            opts.Team,
		Pool:            pool,
		Cooldowns:       NewCooldownTracker(),
		Shield:          NewShield(opts.Shield),
		Ledger:          ledger,
		Transform:       Transform{Position: pos, Forward: forward},
		State:           StateAlive,
		teleportCharges: MaxTeleportCharges,
	}
}

func (e *Entity) IsAlive() bool { return e.State == StateAlive }
func (e *Entity) Attributes() Attributes { return e.Ledger.Attributes() }
func (e *Entity) Derived() DerivedStats { return e.Ledger.Derived() }
func (e *Entity) Progression() Progression { return e.Ledger.Progression() }
func (e *Entity) TeleportCharges() int { return e.teleportCharges }
func (e *Entity) Position() Vec3 { return e.Transform.Position }
func (e *Entity) cooldownMultiplier() float64 { return e.Derived().CooldownMultiplier }

// CanAttack reports whether the entity may use offensive abilities
func (e *Entity) CanAttack() bool {
	return e.IsAlive()
}

// CanTeleport reports whether every teleport gate other than cost passes
func (e *Entity) CanTeleport() bool {
	return e.IsAlive() && e.teleportCharges > 0 && e.Cooldowns.Ready(AbilityTeleport)
}

// tickTimers advances cooldowns, the shield timers and teleport charge regen
func (e *Entity) tickTimers(dt float64) (shieldExpired bool) {
	e.Cooldowns.Tick(dt)
	shieldExpired = e.Shield.Tick(dt)

	if e.teleportCharges < MaxTeleportCharges {
		e.chargeTimer += dt
		for e.chargeTimer >= TeleportChargeInterval && e.teleportCharges < MaxTeleportCharges {
			e.chargeTimer -= TeleportChargeInterval
			e.teleportCharges++
		}
		if e.teleportCharges == MaxTeleportCharges {
			e.chargeTimer = 0
		}
	}
	return shieldExpired
}

// regenerate applies passive resource and shield regeneration
func (e *Entity) regenerate(dt float64) {
	e.Pool.TickCombat(dt)
	e.Pool.RegenerateAll(e.Attributes(), e.Derived(), dt)
	e.Shield.Regenerate(dt)
}

// consumeTeleportCharge spends one charge
func (e *Entity) consumeTeleportCharge() bool {
	if e.teleportCharges <= 0 {
		return false
	}
	e.teleportCharges--
	return true
}

// die transitions to the terminal dead state
func (e *Entity) die() {
	e.State = StateDead
	e.Shield.Deactivate()
	e.Pool.ClearCombat()
	e.Record.Deaths++
}

// Respawn brings a dead entity back with full vitals. Progression is kept.
func (e *Entity) Respawn(pos Vec3) {
	e.State = StateAlive
	e.Transform.Position = pos
	e.Pool.Fill()
	e.Pool.ClearCombat()
	e.Cooldowns.Reset()
	e.Shield.Reset()
	e.teleportCharges = MaxTeleportCharges
	e.chargeTimer = 0
}

// HUD getters, each in [0,1]

func (e *Entity) HealthPercent() float64 { return e.Pool.Percent(ResourceHealth) }
func (e *Entity) StaminaPercent() float64 { return e.Pool.Percent(ResourceStamina) }
func (e *Entity) ManaPercent() float64 { return e.Pool.Percent(ResourceMana) }
func (e *Entity) ShieldHealthPercent() float64 { return e.Shield.HealthPercent() }
func (e *Entity) ShieldCooldownPercent() float64 { return e.Shield.CooldownPercent() }
func (e *Entity) AttackReadyPercent() float64 { return e.Cooldowns.Fraction(AbilityLaser) }
func (e *Entity) ExperiencePercent() float64 { return e.Ledger.ExperiencePercent() }

// TeleportChargePercent returns progress toward the next charge
func (e *Entity) TeleportChargePercent() float64 {
	if e.teleportCharges >= MaxTeleportCharges {
		return 1
	}
	return math.Min(1, e.chargeTimer/TeleportChargeInterval)
}

// HUD is the set of read-only percentages a host binds to UI
type HUD struct {
	Health          float64 `json:"health"`
	Stamina         float64 `json:"stamina"`
	Mana            float64 `json:"mana"`
	Shield          float64 `json:"shield"`
	ShieldActive    bool    `json:"shieldActive"`
	ShieldCooldown  float64 `json:"shieldCooldown"`
	TeleportCharges int     `json:"teleportCharges"`
	TeleportCharge  float64 `json:"teleportCharge"`
	AttackReady     float64 `json:"attackReady"`
	UltimateReady   float64 `json:"ultimateReady"`
	Experience      float64 `json:"experience"`
	InCombat        bool    `json:"inCombat"`
}

// HUD returns the entity's current HUD values
func (e *Entity) HUD() HUD {
	return HUD{
		Health:          e.HealthPercent(),
		Stamina:         e.StaminaPercent(),
		Mana:            e.ManaPercent(),
		Shield:          e.ShieldHealthPercent(),
		ShieldActive:    e.Shield.IsActive(),
		ShieldCooldown:  e.ShieldCooldownPercent(),
		TeleportCharges: e.teleportCharges,
		TeleportCharge:  e.TeleportChargePercent(),
		AttackReady:     e.AttackReadyPercent(),
		UltimateReady:   e.Cooldowns.Fraction(AbilityUltimate),
		Experience:      e.ExperiencePercent(),
		InCombat:        e.Pool.InCombat(),
	}
}

// EntityView is an immutable copy of an entity for hosts and snapshots
type EntityView struct {
	Handle      EntityHandle `json:"handle"`
	Name        string       `json:"name"`
	Team        string       `json:"team,omitempty"`
	State       LifeState    `json:"state"`
	Transform   Transform    `json:"transform"`
	Vitals      Vitals       `json:"vitals"`
	Attributes  Attributes   `json:"attributes"`
	Derived     DerivedStats `json:"derived"`
	Progression Progression  `json:"progression"`
	Shield      ShieldState  `json:"shield"`
	HUD         HUD          `json:"hud"`
	Record      CombatRecord `json:"record"`
}

// View creates an immutable copy of the entity
func (e *Entity) View() EntityView {
	return EntityView{
		Handle:      e.Handle,
		Name:        e.Name,
		Team:        e.Team,
		State:       e.State,
		Transform:   e.Transform,
		Vitals:      e.Pool.Vitals(),
		Attributes:  e.Attributes(),
		Derived:     e.Derived(),
		Progression: e.Progression(),
		Shield:      e.Shield.State(),
		HUD:         e.HUD(),
		Record:      e.Record,
	}
}
