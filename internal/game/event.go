package game

import (
	"encoding/json"
	"time"
)

// EventType classifies log entries
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeEntityJoin
	EventTypeEntityLeave
	EventTypeDamage
	EventTypeKill
	EventTypeHeal
	EventTypeRespawn
	EventTypeAbility
	EventTypeShieldBreak
	EventTypeLevelUp
	EventTypeTeleport
	EventTypeProjectileHit
)

var eventTypeNames = [...]string{
	EventTypeUnknown:       "unknown",
	EventTypeTick:          "tick",
	EventTypeEntityJoin:    "entity_join",
	EventTypeEntityLeave:   "entity_leave",
	EventTypeDamage:        "damage",
	EventTypeKill:          "kill",
	EventTypeHeal:          "heal",
	EventTypeRespawn:       "respawn",
	EventTypeAbility:       "ability",
	EventTypeShieldBreak:   "shield_break",
	EventTypeLevelUp:       "level_up",
	EventTypeTeleport:      "teleport",
	EventTypeProjectileHit: "projectile_hit",
}

// EventVersion is bumped whenever a payload layout changes
const EventVersion uint8 = 3

// Event is one line of the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Assigned by the log, starting at 1
	TickNum   uint64          `json:"tickNum"`
	EntityID  string          `json:"entityId,omitempty"` // Handle text; keys the per-entity limiter
	Payload   json.RawMessage `json:"payload"`
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// MarshalText writes the type by name so log lines stay readable
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name; unrecognized names decode as unknown
func (t *EventType) UnmarshalText(text []byte) error {
	*t = EventTypeUnknown
	for i, name := range eventTypeNames {
		if name == string(text) {
			*t = EventType(i)
			break
		}
	}
	return nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed         int64 `json:"rngSeed"`
	EntityCount     int   `json:"entityCount"`
	ProjectileCount int   `json:"projectileCount"`
	DeltaTimeNs     int64 `json:"deltaTimeNs"`
}

// EntityJoinPayload contains entity join details
type EntityJoinPayload struct {
	Entity   EntityHandle `json:"entity"`
	Name     string       `json:"name"`
	Team     string       `json:"team,omitempty"`
	Position Vec3         `json:"position"`
	Shield   string       `json:"shield"`
}

// EntityLeavePayload contains entity removal details
type EntityLeavePayload struct {
	Entity EntityHandle `json:"entity"`
	Name   string       `json:"name"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	Attacker     EntityHandle `json:"attacker"`
	Victim       EntityHandle `json:"victim"`
	Source       string       `json:"source"`
	Raw          float64      `json:"raw"`
	Absorbed     float64      `json:"absorbed"`
	Final        float64      `json:"final"`
	VictimHealth float64      `json:"victimHealth"`
	Critical     bool         `json:"critical"`
}

// KillPayload contains kill event details
type KillPayload struct {
	Killer       EntityHandle `json:"killer"`
	Victim       EntityHandle `json:"victim"`
	KillerKills  int          `json:"killerKills"`
	VictimDeaths int          `json:"victimDeaths"`
}

// AbilityPayload records a successful ability use
type AbilityPayload struct {
	Entity  EntityHandle `json:"entity"`
	Ability AbilityKind  `json:"ability"`
}

// ShieldBreakPayload records a shield drained to zero
type ShieldBreakPayload struct {
	Entity   EntityHandle `json:"entity"`
	Attacker EntityHandle `json:"attacker"`
}

// LevelUpPayload records a level gained
type LevelUpPayload struct {
	Entity     EntityHandle `json:"entity"`
	Level      int          `json:"level"`
	StatPoints int          `json:"statPoints"`
}

// TeleportPayload records an instant relocation
type TeleportPayload struct {
	Entity  EntityHandle `json:"entity"`
	From    Vec3         `json:"from"`
	To      Vec3         `json:"to"`
	Charges int          `json:"charges"`
}

// ProjectileHitPayload records a projectile striking a target
type ProjectileHitPayload struct {
	Projectile ProjectileHandle   `json:"projectile"`
	Owner      EntityHandle       `json:"owner"`
	Victim     EntityHandle       `json:"victim"`
	Category   ProjectileCategory `json:"category"`
}

// HealPayload contains heal event details
type HealPayload struct {
	Entity EntityHandle `json:"entity"`
	Amount float64      `json:"amount"`
	Health float64      `json:"health"`
}

// RespawnPayload contains respawn event details
type RespawnPayload struct {
	Entity   EntityHandle `json:"entity"`
	Position Vec3         `json:"position"`
}

// EncodePayload marshals a payload, yielding null when it cannot be encoded
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// NewEvent stamps an event with the wall clock; the log assigns Sequence
func NewEvent(eventType EventType, tickNum uint64, entityID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		EntityID:  entityID,
		Payload:   EncodePayload(payload),
	}
}
