package command

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"arena-sim/internal/game"
)

// CommandPrefix marks a chat line as a command
const CommandPrefix = "!"

var (
	// ErrUnknownCommand is returned for lines that are not a supported command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadArguments is returned when a command's arguments cannot be parsed
	ErrBadArguments = errors.New("bad arguments")
)

// Parse splits a message into a command bound to its entity
func Parse(msg Message) (Command, error) {
	h, err := game.ParseHandle(msg.Entity)
	if err != nil {
		return Command{}, err
	}

	content := strings.TrimSpace(msg.Command)
	if !strings.HasPrefix(content, CommandPrefix) {
		return Command{}, errors.Wrapf(ErrUnknownCommand, "%q", content)
	}

	fields := strings.Fields(strings.TrimPrefix(content, CommandPrefix))
	if len(fields) == 0 {
		return Command{}, errors.Wrap(ErrUnknownCommand, "empty command")
	}

	return Command{
		Name:       strings.ToLower(fields[0]),
		Args:       fields[1:],
		Entity:     h,
		User:       h.String(),
		ReceivedAt: time.Now(),
	}, nil
}

// parsePoint reads three float arguments starting at args[0]
func parsePoint(args []string) (*game.Vec3, error) {
	if len(args) < 3 {
		return nil, errors.Wrapf(ErrBadArguments, "need x y z, got %d values", len(args))
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Wrapf(ErrBadArguments, "coordinate %q", args[i])
		}
		v[i] = f
	}
	return &game.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// optionalPoint returns nil when no coordinates were given
func optionalPoint(args []string) (*game.Vec3, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return parsePoint(args)
}

// ToIntent converts a gameplay command into an engine intent.
// Respawn is not an intent and returns ErrUnknownCommand.
func ToIntent(cmd Command) (game.Intent, error) {
	in := game.Intent{Entity: cmd.Entity}

	switch GetCommandType(cmd.Name) {
	case CmdLaser:
		p, err := optionalPoint(cmd.Args)
		if err != nil {
			return game.Intent{}, err
		}
		in.Kind, in.Point = game.IntentLaser, p

	case CmdUltimate:
		p, err := optionalPoint(cmd.Args)
		if err != nil {
			return game.Intent{}, err
		}
		in.Kind, in.Point = game.IntentUltimate, p

	case CmdMelee:
		if len(cmd.Args) != 1 {
			return game.Intent{}, errors.Wrap(ErrBadArguments, "usage: !melee <handle>")
		}
		target, err := game.ParseHandle(cmd.Args[0])
		if err != nil {
			return game.Intent{}, errors.Wrap(ErrBadArguments, err.Error())
		}
		in.Kind, in.Target = game.IntentMelee, target

	case CmdShield:
		on := true
		if len(cmd.Args) > 0 {
			switch strings.ToLower(cmd.Args[0]) {
			case "on", "up":
				on = true
			case "off", "down":
				on = false
			default:
				return game.Intent{}, errors.Wrapf(ErrBadArguments, "shield %q", cmd.Args[0])
			}
		}
		in.Kind, in.On = game.IntentShield, on

	case CmdTeleport:
		p, err := parsePoint(cmd.Args)
		if err != nil {
			return game.Intent{}, err
		}
		in.Kind, in.Point = game.IntentTeleport, p

	case CmdStat:
		if len(cmd.Args) != 1 || game.ParseAttribute(cmd.Args[0]) == game.AttrUnknown {
			return game.Intent{}, errors.Wrap(ErrBadArguments, "usage: !stat <str|def|sta|agi>")
		}
		in.Kind, in.Attribute = game.IntentAllocate, cmd.Args[0]

	default:
		return game.Intent{}, errors.Wrapf(ErrUnknownCommand, "%q", cmd.Name)
	}

	return in, nil
}
