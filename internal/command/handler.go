package command

import (
	"log"

	"github.com/pkg/errors"

	"arena-sim/internal/game"
)

var (
	// ErrRateLimited is returned when a user sends commands too fast
	ErrRateLimited = errors.New("rate limited")
	// ErrRejected is returned when the engine refuses a command
	ErrRejected = errors.New("rejected by engine")
)

// Engine is the slice of the simulation the handler drives
type Engine interface {
	Submit(in game.Intent) bool
	Respawn(h game.EntityHandle, pos *game.Vec3) bool
}

// Handler processes commands and applies them to the game
type Handler struct {
	engine      Engine
	rateLimiter *RateLimiter
}

// NewHandler creates a new command handler
func NewHandler(engine Engine, cfg RateLimitConfig) *Handler {
	return &Handler{
		engine:      engine,
		rateLimiter: NewRateLimiter(cfg),
	}
}

// Close stops background work owned by the handler
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// ProcessCommand handles a single command. Intents are queued on the
// engine and resolve during its next update.
func (h *Handler) ProcessCommand(cmd Command) error {
	// Rate limit check
	if !h.rateLimiter.Allow(cmd.User) {
		log.Printf("🚫 Rate limited: %s", cmd.User)
		return ErrRateLimited
	}

	if GetCommandType(cmd.Name) == CmdRespawn {
		return h.handleRespawn(cmd)
	}

	in, err := ToIntent(cmd)
	if err != nil {
		return err
	}
	if !h.engine.Submit(in) {
		return errors.Wrapf(ErrRejected, "%s from %s", cmd.Name, cmd.Entity)
	}
	return nil
}

// handleRespawn revives a dead entity, optionally at "x y z"
func (h *Handler) handleRespawn(cmd Command) error {
	pos, err := optionalPoint(cmd.Args)
	if err != nil {
		return err
	}
	if !h.engine.Respawn(cmd.Entity, pos) {
		return errors.Wrapf(ErrRejected, "respawn %s", cmd.Entity)
	}
	return nil
}
