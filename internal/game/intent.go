package game

import "strings"

// IntentKind classifies a host request
type IntentKind int

const (
	IntentLaser IntentKind = iota
	IntentMelee
	IntentShield
	IntentTeleport
	IntentUltimate
	IntentAllocate
	IntentUnknown
)

var intentNames = map[string]IntentKind{
	"laser":    IntentLaser,
	"melee":    IntentMelee,
	"shield":   IntentShield,
	"teleport": IntentTeleport,
	"ultimate": IntentUltimate,
	"allocate": IntentAllocate,
}

// ParseIntentKind returns the kind for a name (case-insensitive)
func ParseIntentKind(name string) IntentKind {
	if k, ok := intentNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k
	}
	return IntentUnknown
}

func (k IntentKind) String() string {
	for name, kind := range intentNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Intent is a discrete request queued by the host and resolved during
// the combat phase of the next update.
type Intent struct {
	Entity    EntityHandle `json:"entity"`
	Kind      IntentKind   `json:"-"`
	Target    EntityHandle `json:"target"`              // melee
	Point     *Vec3        `json:"point,omitempty"`     // laser/ultimate aim, teleport destination
	On        bool         `json:"on"`                  // shield
	Attribute string       `json:"attribute,omitempty"` // stat allocation
}

// IntentStats counts resolved intents
type IntentStats struct {
	Applied  uint64 `json:"applied"`
	Rejected uint64 `json:"rejected"`
	Dropped  uint64 `json:"dropped"`
}
