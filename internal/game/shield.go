package game

import (
	"math"
	"sort"
	"strings"
)

// ShieldType tags a shield variant in the shield table
type ShieldType int

const (
	ShieldBasic ShieldType = iota
	ShieldEnergy
	ShieldReflective
	ShieldAbsorbing
)

// Shield timing constants
const (
	ShieldCooldown          = 3.0 // seconds after deactivation
	ShieldMaxActiveDuration = 5.0
	shieldDownRegenFactor   = 2.0
	shieldUpRegenFactor     = 0.5
	shieldPulseFrequency    = 2.0
)

// ShieldSpec holds the tunables for one shield type
type ShieldSpec struct {
	Type               ShieldType `json:"type"`
	Name               string     `json:"name"`
	MaxHealth          float64    `json:"maxHealth"`
	AbsorptionFraction float64    `json:"absorptionFraction"`
	RegenPerSecond     float64    `json:"regenPerSecond"`
	AbsorbModifier     float64    `json:"absorbModifier"`
	ConvertFraction    float64    `json:"convertFraction"` // share of absorbed damage returned as shield health
	Color              string     `json:"color"`
}

// ShieldTypes is the table of all shield variants
var ShieldTypes = map[ShieldType]ShieldSpec{
	ShieldBasic: {
		Type: ShieldBasic, Name: "basic",
		MaxHealth: 100, AbsorptionFraction: 0.8, RegenPerSecond: 10,
		AbsorbModifier: 1.0, Color: "#4d99ff",
	},
	ShieldEnergy: {
		Type: ShieldEnergy, Name: "energy",
		MaxHealth: 150, AbsorptionFraction: 0.9, RegenPerSecond: 15,
		AbsorbModifier: 1.2, Color: "#00ffff",
	},
	ShieldReflective: {
		Type: ShieldReflective, Name: "reflective",
		MaxHealth: 80, AbsorptionFraction: 0.6, RegenPerSecond: 8,
		AbsorbModifier: 0.8, Color: "#ffd700",
	},
	ShieldAbsorbing: {
		Type: ShieldAbsorbing, Name: "absorbing",
		MaxHealth: 120, AbsorptionFraction: 0.75, RegenPerSecond: 12,
		AbsorbModifier: 1.0, ConvertFraction: 0.1, Color: "#66ff66",
	},
}

func (t ShieldType) String() string {
	if s, ok := ShieldTypes[t]; ok {
		return s.Name
	}
	return "unknown"
}

// ParseShieldType returns the shield type for a name, defaulting to basic
func ParseShieldType(name string) ShieldType {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, s := range ShieldTypes {
		if s.Name == name {
			return t
		}
	}
	return ShieldBasic
}

// GetAllShieldTypes returns the shield table ordered by type
func GetAllShieldTypes() []ShieldSpec {
	specs := make([]ShieldSpec, 0, len(ShieldTypes))
	for _, s := range ShieldTypes {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// ShieldState is the read-only view of a shield
type ShieldState struct {
	Type               ShieldType `json:"type"`
	Active             bool       `json:"active"`
	Health             float64    `json:"health"`
	MaxHealth          float64    `json:"maxHealth"`
	AbsorptionFraction float64    `json:"absorptionFraction"`
	OnCooldown         bool       `json:"onCooldown"`
	CooldownRemaining  float64    `json:"cooldownRemaining"`
	ActiveTime         float64    `json:"activeTime"`
}

// Shield is an activatable damage buffer.
//
//	Down(ready) -> Active -> Down(onCooldown) -> Down(ready)
//
// It cannot be reactivated while the cooldown runs.
type Shield struct {
	spec              ShieldSpec
	active            bool
	health            float64
	onCooldown        bool
	cooldownRemaining float64
	activeTime        float64
}

// NewShield creates a full, ready shield of the given type
func NewShield(t ShieldType) *Shield {
	spec, ok := ShieldTypes[t]
	if !ok {
		spec = ShieldTypes[ShieldBasic]
	}
	return &Shield{spec: spec, health: spec.MaxHealth}
}

func (s *Shield) Spec() ShieldSpec { return s.spec }
func (s *Shield) IsActive() bool { return s.active }
func (s *Shield) Health() float64 { return s.health }

// CanActivate reports whether Activate would succeed
func (s *Shield) CanActivate(ownerAlive bool) bool {
	return ownerAlive && !s.active && !s.onCooldown && s.health > 0
}

// Activate raises the shield
func (s *Shield) Activate(ownerAlive bool) bool {
	if !s.CanActivate(ownerAlive) {
		return false
	}
	s.active = true
	s.activeTime = 0
	return true
}

// Deactivate lowers the shield and starts the cooldown. No-op when already down.
func (s *Shield) Deactivate() bool {
	if !s.active {
		return false
	}
	s.active = false
	s.activeTime = 0
	s.onCooldown = true
	s.cooldownRemaining = ShieldCooldown
	return true
}

// effectiveFraction is the absorption fraction with the type modifier, capped at 1
func (s *Shield) effectiveFraction() float64 {
	return math.Min(1, math.Max(0, s.spec.AbsorptionFraction*s.spec.AbsorbModifier))
}

// Absorb soaks part of incoming damage and returns the absorbed amount.
// The result never exceeds incoming. A shield drained to zero is forced down.
func (s *Shield) Absorb(incoming float64) (absorbed float64, broke bool) {
	if !s.active || incoming <= 0 {
		return 0, false
	}

	absorbed = math.Min(incoming*s.effectiveFraction(), incoming)
	if absorbed >= s.health {
		absorbed = s.health
		s.health = 0
		s.Deactivate()
		return absorbed, true
	}

	s.health -= absorbed
	if s.spec.ConvertFraction > 0 {
		s.health = math.Min(s.spec.MaxHealth, s.health+absorbed*s.spec.ConvertFraction)
	}
	return absorbed, false
}

// Tick advances the cooldown and active timers.
// Returns true if the shield expired this step.
func (s *Shield) Tick(dt float64) bool {
	if dt <= 0 {
		return false
	}
	if s.onCooldown {
		s.cooldownRemaining = math.Max(0, s.cooldownRemaining-dt)
		if s.cooldownRemaining == 0 {
			s.onCooldown = false
		}
	}
	if s.active {
		s.activeTime += dt
		if s.activeTime >= ShieldMaxActiveDuration {
			return s.Deactivate()
		}
	}
	return false
}

// Regenerate restores shield health, faster while down
func (s *Shield) Regenerate(dt float64) {
	if dt <= 0 {
		return
	}
	factor := shieldDownRegenFactor
	if s.active {
		factor = shieldUpRegenFactor
	}
	s.health = math.Min(s.spec.MaxHealth, s.health+s.spec.RegenPerSecond*factor*dt)
}

// Reset restores a full, ready, inactive shield
func (s *Shield) Reset() {
	*s = Shield{spec: s.spec, health: s.spec.MaxHealth}
}

// HealthPercent returns shield health in [0,1]
func (s *Shield) HealthPercent() float64 {
	if s.spec.MaxHealth <= 0 {
		return 0
	}
	return s.health / s.spec.MaxHealth
}

// CooldownPercent returns cooldown progress in [0,1] where 1 means ready
func (s *Shield) CooldownPercent() float64 {
	if !s.onCooldown {
		return 1
	}
	return 1 - s.cooldownRemaining/ShieldCooldown
}

// Opacity is a cosmetic value: a pulse scaled by health fraction while active
func (s *Shield) Opacity(t float64) float64 {
	if !s.active {
		return 0
	}
	pulse := 0.5 + 0.5*math.Sin(t*shieldPulseFrequency)
	return (0.3 + 0.3*pulse) * s.HealthPercent()
}

// State returns a copy of the shield's state
func (s *Shield) State() ShieldState {
	return ShieldState{
		Type:               s.spec.Type,
		Active:             s.active,
		Health:             s.health,
		MaxHealth:          s.spec.MaxHealth,
		AbsorptionFraction: s.spec.AbsorptionFraction,
		OnCooldown:         s.onCooldown,
		CooldownRemaining:  s.cooldownRemaining,
		ActiveTime:         s.activeTime,
	}
}
