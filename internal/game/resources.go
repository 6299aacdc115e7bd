package game

import "math"

// ResourceKind names one of the vitals
type ResourceKind int

const (
	ResourceHealth ResourceKind = iota
	ResourceStamina
	ResourceMana
	resourceCount
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceHealth:
		return "health"
	case ResourceStamina:
		return "stamina"
	case ResourceMana:
		return "mana"
	default:
		return "unknown"
	}
}

// Regeneration and combat-flag constants
const (
	HealthRegenPerSecond  float64 = 5.0
	StaminaRegenPerSecond float64 = 20.0
	ManaRegenPerSecond    float64 = 10.0
	CombatTimeout         float64 = 5.0 // Seconds without combat events before health regen resumes
	staminaRegenAgility   float64 = 0.05
)

// Cost is an amount of one resource
type Cost struct {
	Kind   ResourceKind `json:"kind"`
	Amount float64      `json:"amount"`
}

// Vitals is a read-only copy of a pool's values
type Vitals struct {
	Health     float64 `json:"health"`
	MaxHealth  float64 `json:"maxHealth"`
	Stamina    float64 `json:"stamina"`
	MaxStamina float64 `json:"maxStamina"`
	Mana       float64 `json:"mana"`
	MaxMana    float64 `json:"maxMana"`
}

// ResourcePool tracks health, stamina and mana with consumption gating.
// Current values always stay in [0, max].
type ResourcePool struct {
	current     [resourceCount]float64
	max         [resourceCount]float64
	combatTimer float64
}

// NewResourcePool creates a full pool sized from derived stats
func NewResourcePool(d DerivedStats) *ResourcePool {
	p := &ResourcePool{}
	p.ApplyMax(d)
	p.Fill()
	return p
}

func validKind(kind ResourceKind) bool {
	return kind >= 0 && kind < resourceCount
}

// Current returns the current value of a resource
func (p *ResourcePool) Current(kind ResourceKind) float64 {
	if !validKind(kind) {
		return 0
	}
	return p.current[kind]
}

// Max returns the maximum value of a resource
func (p *ResourcePool) Max(kind ResourceKind) float64 {
	if !validKind(kind) {
		return 0
	}
	return p.max[kind]
}

// Percent returns current/max in [0,1]
func (p *ResourcePool) Percent(kind ResourceKind) float64 {
	if !validKind(kind) || p.max[kind] <= 0 {
		return 0
	}
	return p.current[kind] / p.max[kind]
}

// SetMax changes a maximum. Current values are clamped down, never raised.
func (p *ResourcePool) SetMax(kind ResourceKind, max float64) {
	if !validKind(kind) {
		return
	}
	p.max[kind] = math.Max(0, max)
	if p.current[kind] > p.max[kind] {
		p.current[kind] = p.max[kind]
	}
}

// ApplyMax sets all maximums from derived stats
func (p *ResourcePool) ApplyMax(d DerivedStats) {
	p.SetMax(ResourceHealth, d.MaxHealth)
	p.SetMax(ResourceStamina, d.MaxStamina)
	p.SetMax(ResourceMana, d.MaxMana)
}

// Fill restores every resource to its maximum
func (p *ResourcePool) Fill() {
	p.current = p.max
}

// CanSpend reports whether amount is available
func (p *ResourcePool) CanSpend(kind ResourceKind, amount float64) bool {
	if !validKind(kind) || amount < 0 {
		return false
	}
	return p.current[kind] >= amount
}

// Spend deducts amount if available. On failure nothing changes.
func (p *ResourcePool) Spend(kind ResourceKind, amount float64) bool {
	if !p.CanSpend(kind, amount) {
		return false
	}
	p.current[kind] -= amount
	return true
}

// CanAfford reports whether every cost can be paid at once.
// Costs on the same resource are summed.
func (p *ResourcePool) CanAfford(costs []Cost) bool {
	var need [resourceCount]float64
	for _, c := range costs {
		if !validKind(c.Kind) || c.Amount < 0 {
			return false
		}
		need[c.Kind] += c.Amount
	}
	for k := range need {
		if p.current[k] < need[k] {
			return false
		}
	}
	return true
}

// SpendAll deducts every cost or none of them
func (p *ResourcePool) SpendAll(costs []Cost) bool {
	if !p.CanAfford(costs) {
		return false
	}
	for _, c := range costs {
		p.current[c.Kind] -= c.Amount
	}
	return true
}

// Regenerate adds perSecond*dt, clamped to max
func (p *ResourcePool) Regenerate(kind ResourceKind, perSecond, dt float64) {
	if !validKind(kind) || perSecond <= 0 || dt <= 0 {
		return
	}
	p.current[kind] = math.Min(p.max[kind], p.current[kind]+perSecond*dt)
}

// Restore adds a flat amount, clamped to max. Returns the amount applied.
func (p *ResourcePool) Restore(kind ResourceKind, amount float64) float64 {
	if !validKind(kind) || amount <= 0 {
		return 0
	}
	before := p.current[kind]
	p.current[kind] = math.Min(p.max[kind], before+amount)
	return p.current[kind] - before
}

// Damage removes health, floored at zero. Returns the health removed.
func (p *ResourcePool) Damage(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.current[ResourceHealth]
	p.current[ResourceHealth] = math.Max(0, before-amount)
	return before - p.current[ResourceHealth]
}

// MarkCombat flags the pool as in combat for CombatTimeout seconds
func (p *ResourcePool) MarkCombat() {
	p.combatTimer = CombatTimeout
}

// InCombat reports whether a combat event happened within the timeout
func (p *ResourcePool) InCombat() bool {
	return p.combatTimer > 0
}

// TickCombat counts the combat flag down
func (p *ResourcePool) TickCombat(dt float64) {
	if p.combatTimer > 0 {
		p.combatTimer = math.Max(0, p.combatTimer-dt)
	}
}

// ClearCombat drops the combat flag immediately
func (p *ResourcePool) ClearCombat() {
	p.combatTimer = 0
}

// RegenerateAll applies passive regeneration for one step.
// Health only regenerates out of combat; stamina and mana always do.
func (p *ResourcePool) RegenerateAll(a Attributes, d DerivedStats, dt float64) {
	if !p.InCombat() {
		p.Regenerate(ResourceHealth, HealthRegenPerSecond*d.HealingBonus, dt)
	}
	staminaRate := StaminaRegenPerSecond * math.Max(0, 1+(a.Agility-BaseAttributeValue)*staminaRegenAgility)
	p.Regenerate(ResourceStamina, staminaRate, dt)
	p.Regenerate(ResourceMana, ManaRegenPerSecond, dt)
}

// Vitals returns a copy of current and max values
func (p *ResourcePool) Vitals() Vitals {
	return Vitals{
		Health:     p.current[ResourceHealth],
		MaxHealth:  p.max[ResourceHealth],
		Stamina:    p.current[ResourceStamina],
		MaxStamina: p.max[ResourceStamina],
		Mana:       p.current[ResourceMana],
		MaxMana:    p.max[ResourceMana],
	}
}
