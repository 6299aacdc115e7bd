// Package command turns chat-style text commands ("!laser 1 0 0") into
// engine intents. Commands flow through a rate limiter and a worker queue so
// transport handlers never block on the engine.
package command

import (
	"time"

	"arena-sim/internal/game"
)

// Message is a raw text command from a client
type Message struct {
	Entity  string `json:"entity"`  // handle in "index:generation" form
	Command string `json:"command"` // e.g. "!laser 1 0 0"
}

// Command represents a parsed command bound to an entity
type Command struct {
	Name       string   // "laser", "tp", etc. (lowercase, no prefix)
	Args       []string // Arguments after command
	Entity     game.EntityHandle
	User       string // rate limit key
	ReceivedAt time.Time
}

// CommandType for routing
type CommandType int

const (
	CmdLaser CommandType = iota
	CmdMelee
	CmdShield
	CmdTeleport
	CmdUltimate
	CmdStat
	CmdRespawn
	CmdUnknown
)

// SupportedCommands maps command strings to types
var SupportedCommands = map[string]CommandType{
	// Laser variants
	"laser": CmdLaser,
	"beam":  CmdLaser,
	"shoot": CmdLaser,

	// Melee variants
	"melee":  CmdMelee,
	"punch":  CmdMelee,
	"attack": CmdMelee,

	// Shield variants
	"shield": CmdShield,
	"block":  CmdShield,

	// Teleport variants
	"teleport": CmdTeleport,
	"tp":       CmdTeleport,
	"blink":    CmdTeleport,

	// Ultimate variants
	"ult":      CmdUltimate,
	"ultimate": CmdUltimate,

	// Stat allocation variants
	"stat":     CmdStat,
	"allocate": CmdStat,

	// Respawn variants
	"respawn": CmdRespawn,
	"revive":  CmdRespawn,
}

// GetCommandType returns the command type for a string (case-insensitive)
func GetCommandType(cmd string) CommandType {
	if t, ok := SupportedCommands[cmd]; ok {
		return t
	}
	return CmdUnknown
}

func (t CommandType) String() string {
	switch t {
	case CmdLaser:
		return "laser"
	case CmdMelee:
		return "melee"
	case CmdShield:
		return "shield"
	case CmdTeleport:
		return "teleport"
	case CmdUltimate:
		return "ultimate"
	case CmdStat:
		return "stat"
	case CmdRespawn:
		return "respawn"
	default:
		return "unknown"
	}
}
