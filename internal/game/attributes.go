package game

import (
	"math"
	"strings"
)

// Attribute names a base stat
type Attribute int

const (
	AttrStrength Attribute = iota
	AttrDefense
	AttrStamina
	AttrAgility
	AttrUnknown
)

// BaseAttributeValue is the starting value of every attribute
const BaseAttributeValue = 10.0

// attributeAliases maps names accepted from hosts and chat commands
var attributeAliases = map[string]Attribute{
	"strength": AttrStrength,
	"str":      AttrStrength,
	"defense":  AttrDefense,
	"def":      AttrDefense,
	"stamina":  AttrStamina,
	"sta":      AttrStamina,
	"agility":  AttrAgility,
	"agi":      AttrAgility,
}

// ParseAttribute returns the attribute for a name (case-insensitive)
func ParseAttribute(name string) Attribute {
	if a, ok := attributeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a
	}
	return AttrUnknown
}

func (a Attribute) String() string {
	switch a {
	case AttrStrength:
		return "strength"
	case AttrDefense:
		return "defense"
	case AttrStamina:
		return "stamina"
	case AttrAgility:
		return "agility"
	default:
		return "unknown"
	}
}

// Attributes are the base stats of a combatant. Values are never negative.
type Attributes struct {
	Strength float64 `json:"strength"`
	Defense  float64 `json:"defense"`
	Stamina  float64 `json:"stamina"`
	Agility  float64 `json:"agility"`
}

// DefaultAttributes returns the level 1 baseline
func DefaultAttributes() Attributes {
	return Attributes{
		Strength: BaseAttributeValue,
		Defense:  BaseAttributeValue,
		Stamina:  BaseAttributeValue,
		Agility:  BaseAttributeValue,
	}
}

// Add increases one attribute. Results are clamped at zero.
func (a *Attributes) Add(attr Attribute, amount float64) bool {
	var field *float64
	switch attr {
	case AttrStrength:
		field = &a.Strength
	case AttrDefense:
		field = &a.Defense
	case AttrStamina:
		field = &a.Stamina
	case AttrAgility:
		field = &a.Agility
	default:
		return false
	}
	*field = math.Max(0, *field+amount)
	return true
}

// AddAll increases every attribute by amount
func (a *Attributes) AddAll(amount float64) {
	a.Add(AttrStrength, amount)
	a.Add(AttrDefense, amount)
	a.Add(AttrStamina, amount)
	a.Add(AttrAgility, amount)
}

// Derived stat formula constants
const (
	MaxCritChance      = 0.5
	MaxDodgeChance     = 0.5
	MinCooldownFactor  = 0.5
	cooldownPerAgility = 0.03
)

// DerivedStats are combat values computed from Attributes.
// They are never stored independently of a recalculation.
type DerivedStats struct {
	MaxHealth          float64 `json:"maxHealth"`
	MaxStamina         float64 `json:"maxStamina"`
	MaxMana            float64 `json:"maxMana"`
	AttackDamage       float64 `json:"attackDamage"`
	CritChance         float64 `json:"critChance"`
	CritMultiplier     float64 `json:"critMultiplier"`
	DamageReduction    float64 `json:"damageReduction"`
	MovementSpeed      float64 `json:"movementSpeed"`
	AttackSpeed        float64 `json:"attackSpeed"`
	DodgeChance        float64 `json:"dodgeChance"`
	CooldownMultiplier float64 `json:"cooldownMultiplier"`
	HealingBonus       float64 `json:"healingBonus"`
	TeleportRange      float64 `json:"teleportRange"`
}

// RecalculateDerived is a pure function from attributes to derived stats
func RecalculateDerived(a Attributes) DerivedStats {
	return DerivedStats{
		MaxHealth:          100 + a.Stamina*5,
		MaxStamina:         100 + a.Stamina*3,
		MaxMana:            100 + a.Agility*2,
		AttackDamage:       10 + a.Strength*2,
		CritChance:         math.Min(MaxCritChance, 0.05+a.Agility*0.005),
		CritMultiplier:     1.5 + a.Strength*0.01,
		DamageReduction:    1 - MitigationMultiplier(a.Defense),
		MovementSpeed:      1 + a.Agility*0.05,
		AttackSpeed:        1 + a.Agility*0.02,
		DodgeChance:        math.Min(MaxDodgeChance, a.Agility*0.01),
		CooldownMultiplier: CooldownMultiplier(a.Agility),
		HealingBonus:       1 + a.Stamina*0.01,
		TeleportRange:      15 + a.Agility*0.5,
	}
}

// MitigationMultiplier is the fraction of damage that gets through defense.
// Strictly decreasing in defense and never reaches zero.
func MitigationMultiplier(defense float64) float64 {
	if defense < 0 {
		defense = 0
	}
	return 100 / (100 + defense)
}

// CooldownMultiplier scales base cooldowns by agility, floored at MinCooldownFactor
func CooldownMultiplier(agility float64) float64 {
	return math.Max(MinCooldownFactor, 1-(agility-BaseAttributeValue)*cooldownPerAgility)
}
