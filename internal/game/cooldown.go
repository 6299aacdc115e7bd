package game

import "math"

// CooldownTracker holds one countdown timer per ability.
// Timers only decrease and never go below zero; zero means ready.
type CooldownTracker struct {
	remaining [abilityCount]float64
	total     [abilityCount]float64
}

// NewCooldownTracker creates a tracker with every ability ready
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{}
}

func validAbility(kind AbilityKind) bool {
	return kind >= 0 && kind < abilityCount
}

// Ready reports whether an ability is off cooldown
func (c *CooldownTracker) Ready(kind AbilityKind) bool {
	return validAbility(kind) && c.remaining[kind] <= 0
}

// Remaining returns the seconds left on an ability's cooldown
func (c *CooldownTracker) Remaining(kind AbilityKind) float64 {
	if !validAbility(kind) {
		return 0
	}
	return c.remaining[kind]
}

// ScaledCooldown applies an agility multiplier with the minimum factor floor
func ScaledCooldown(base, multiplier float64) float64 {
	if base <= 0 {
		return 0
	}
	return base * math.Max(MinCooldownFactor, multiplier)
}

// Start puts an ability on cooldown for base scaled by multiplier
func (c *CooldownTracker) Start(kind AbilityKind, base, multiplier float64) {
	if !validAbility(kind) {
		return
	}
	d := ScaledCooldown(base, multiplier)
	c.remaining[kind] = d
	c.total[kind] = d
}

// TryConsume gates an ability on cooldown and cost together.
// Nothing is mutated unless both checks pass.
func (c *CooldownTracker) TryConsume(spec AbilitySpec, multiplier float64, pool *ResourcePool) bool {
	if !c.Ready(spec.Kind) || !pool.CanAfford(spec.Costs) {
		return false
	}
	pool.SpendAll(spec.Costs)
	c.Start(spec.Kind, spec.BaseCooldown, multiplier)
	return true
}

// Tick counts every active cooldown down by dt
func (c *CooldownTracker) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	for i := range c.remaining {
		if c.remaining[i] > 0 {
			c.remaining[i] = math.Max(0, c.remaining[i]-dt)
		}
	}
}

// Fraction returns cooldown progress in [0,1] where 1 means ready
func (c *CooldownTracker) Fraction(kind AbilityKind) float64 {
	if !validAbility(kind) || c.remaining[kind] <= 0 || c.total[kind] <= 0 {
		return 1
	}
	return 1 - c.remaining[kind]/c.total[kind]
}

// Reset makes every ability ready
func (c *CooldownTracker) Reset() {
	*c = CooldownTracker{}
}
