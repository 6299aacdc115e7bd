package game

import (
	"sort"
	"strings"
)

// AbilityKind tags an ability in the strategy table
type AbilityKind int

const (
	AbilityLaser AbilityKind = iota
	AbilityMelee
	AbilityShield
	AbilityTeleport
	AbilityUltimate
	abilityCount
)

var abilityNames = [...]string{
	AbilityLaser:    "laser",
	AbilityMelee:    "melee",
	AbilityShield:   "shield",
	AbilityTeleport: "teleport",
	AbilityUltimate: "ultimate",
}

func (k AbilityKind) String() string {
	if k < 0 || k >= abilityCount {
		return "unknown"
	}
	return abilityNames[k]
}

// MarshalText encodes the ability by name
func (k AbilityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseAbility returns the ability for a name
func ParseAbility(name string) (AbilityKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range abilityNames {
		if n == name {
			return AbilityKind(i), true
		}
	}
	return 0, false
}

// AbilitySpec holds the tunables for one ability
type AbilitySpec struct {
	Kind             AbilityKind        `json:"kind"`
	Name             string             `json:"name"`
	Costs            []Cost             `json:"costs"`
	BaseCooldown     float64            `json:"baseCooldown"` // seconds, before agility scaling
	DamageMultiplier float64            `json:"damageMultiplier"`
	Category         ProjectileCategory `json:"category"`
	Speed            float64            `json:"speed"`    // units per second
	Lifetime         float64            `json:"lifetime"` // seconds
	Range            float64            `json:"range"`
	Count            int                `json:"count"`  // projectiles per cast
	Spread           float64            `json:"spread"` // radians between projectiles
	Color            string             `json:"color"`
}

// Teleport charge model
const (
	MaxTeleportCharges     = 3
	TeleportChargeInterval = 5.0 // seconds per recovered charge
)

// Abilities is the strategy table of all abilities
var Abilities = map[AbilityKind]AbilitySpec{
	AbilityLaser: {
		Kind:             AbilityLaser,
		Name:             "Laser",
		Costs:            []Cost{{Kind: ResourceMana, Amount: 10}},
		BaseCooldown:     1.0,
		DamageMultiplier: 1.5,
		Category:         CategoryLaser,
		Speed:            50,
		Lifetime:         2.0,
		Count:            1,
		Color:            "#00ffff",
	},
	AbilityMelee: {
		Kind:             AbilityMelee,
		Name:             "Fist",
		Costs:            []Cost{{Kind: ResourceStamina, Amount: 15}},
		BaseCooldown:     0.5,
		DamageMultiplier: 2.0,
		Category:         CategoryMelee,
		Range:            3.0,
		Color:            "#ffeb3b",
	},
	AbilityShield: {
		Kind:         AbilityShield,
		Name:         "Shield",
		Costs:        []Cost{{Kind: ResourceMana, Amount: 20}},
		BaseCooldown: 0, // gating lives in Shield.CanActivate
		Color:        "#2196f3",
	},
	AbilityTeleport: {
		Kind:         AbilityTeleport,
		Name:         "Teleport",
		Costs:        []Cost{{Kind: ResourceStamina, Amount: 25}},
		BaseCooldown: 1.0,
		Color:        "#9c27b0",
	},
	AbilityUltimate: {
		Kind: AbilityUltimate,
		Name: "Ultimate",
		Costs: []Cost{
			{Kind: ResourceMana, Amount: 50},
			{Kind: ResourceStamina, Amount: 30},
		},
		BaseCooldown:     10.0,
		DamageMultiplier: 3.0,
		Category:         CategoryUltimate,
		Speed:            60,
		Lifetime:         2.0,
		Count:            5,
		Spread:           0.2,
		Color:            "#ff00ff",
	},
}

// GetAbility returns an ability by kind, defaults to the laser
func GetAbility(kind AbilityKind) AbilitySpec {
	if a, ok := Abilities[kind]; ok {
		return a
	}
	return Abilities[AbilityLaser]
}

// GetAllAbilities returns all abilities ordered by kind
func GetAllAbilities() []AbilitySpec {
	abilities := make([]AbilitySpec, 0, len(Abilities))
	for _, a := range Abilities {
		abilities = append(abilities, a)
	}
	sort.Slice(abilities, func(i, j int) bool {
		return abilities[i].Kind < abilities[j].Kind
	})
	return abilities
}
