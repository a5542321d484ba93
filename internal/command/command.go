// Package command turns console text like "robot 5 5 rrll" into validated
// operations against the simulation.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Scrimzay/gridsim/internal/types"
	"github.com/Scrimzay/gridsim/internal/world"
)

var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
	ErrNoSuchEntity   = errors.New("no such entity")
)

type Op uint8

const (
	OpSpawn Op = iota + 1
	OpDelete
	OpMove
	OpSetPath
	OpStep
	OpPlay
	OpPause
)

// Command is a parsed, validated console line.
type Command struct {
	Op        Op
	Spawn     world.Spec // OpSpawn
	ID        world.EntityID
	Direction types.Direction   // OpMove
	Path      []types.Direction // OpSetPath
}

// Controller is what commands act on. *world.World covers everything except
// SetPlaying, which belongs to the scheduler.
type Controller interface {
	Spawn(s world.Spec) (world.EntityView, error)
	Remove(id world.EntityID) bool
	Relocate(id world.EntityID, dir types.Direction) bool
	SetPath(id world.EntityID, path []types.Direction) error
	Step() (world.TickReport, error)
	SetPlaying(playing bool)
}

// Result describes what a command did.
type Result struct {
	Message string            `json:"message"`
	Entity  *world.EntityView `json:"entity,omitempty"`
	Tick    *world.TickReport `json:"tick,omitempty"`
}

// Parse reads one console line. Words are case-insensitive.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "robot", "mover":
		if len(args) != 2 && len(args) != 3 {
			return Command{}, usage(verb, "ROW COL [PATH]")
		}
		at, err := parseCoord(args[0], args[1])
		if err != nil {
			return Command{}, err
		}
		s := world.Spec{Kind: world.KindMover, At: at}
		if len(args) == 3 {
			s.Path = types.ParsePath(args[2])
			if len(s.Path) == 0 {
				return Command{}, fmt.Errorf("%w: path %q has no moves", ErrBadArgument, args[2])
			}
		}
		return Command{Op: OpSpawn, Spawn: s}, nil

	case "factory", "producer":
		if len(args) != 3 {
			return Command{}, usage(verb, "ROW COL wood|metal|stone")
		}
		at, err := parseCoord(args[0], args[1])
		if err != nil {
			return Command{}, err
		}
		r, err := types.ParseResource(args[2])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
		}
		return Command{Op: OpSpawn, Spawn: world.Spec{Kind: world.KindProducer, At: at, Emits: r}}, nil

	case "conveyor", "transporter":
		if len(args) != 3 {
			return Command{}, usage(verb, "ROW COL up|down|left|right")
		}
		at, err := parseCoord(args[0], args[1])
		if err != nil {
			return Command{}, err
		}
		dir, err := parseHeading(args[2])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpSpawn, Spawn: world.Spec{Kind: world.KindTransporter, At: at, Direction: dir}}, nil

	case "collection", "aggregator":
		if len(args) != 2 {
			return Command{}, usage(verb, "ROW COL")
		}
		at, err := parseCoord(args[0], args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpSpawn, Spawn: world.Spec{Kind: world.KindAggregator, At: at}}, nil

	case "delete":
		if len(args) != 1 {
			return Command{}, usage(verb, "ID")
		}
		id, err := parseID(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpDelete, ID: id}, nil

	case "move":
		if len(args) != 2 {
			return Command{}, usage(verb, "ID up|down|left|right")
		}
		id, err := parseID(args[0])
		if err != nil {
			return Command{}, err
		}
		dir, err := parseHeading(args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpMove, ID: id, Direction: dir}, nil

	case "set":
		if len(args) != 3 || args[0] != "path" {
			return Command{}, usage(verb, "path ID PATH")
		}
		id, err := parseID(args[1])
		if err != nil {
			return Command{}, err
		}
		path := types.ParsePath(args[2])
		if len(path) == 0 {
			return Command{}, fmt.Errorf("%w: path %q has no moves", ErrBadArgument, args[2])
		}
		return Command{Op: OpSetPath, ID: id, Path: path}, nil

	case "step":
		return Command{Op: OpStep}, nil

	case "play":
		return Command{Op: OpPlay}, nil

	case "pause":
		return Command{Op: OpPause}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
}

// Apply runs cmd against ctl.
func Apply(ctl Controller, cmd Command) (Result, error) {
	switch cmd.Op {
	case OpSpawn:
		v, err := ctl.Spawn(cmd.Spawn)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("created %s %d (%s) at %s", v.Kind, v.ID, v.Name, v.At), Entity: &v}, nil

	case OpDelete:
		if !ctl.Remove(cmd.ID) {
			return Result{Message: fmt.Sprintf("nothing to delete for %d", cmd.ID)}, nil
		}
		return Result{Message: fmt.Sprintf("deleted %d", cmd.ID)}, nil

	case OpMove:
		if !ctl.Relocate(cmd.ID, cmd.Direction) {
			return Result{Message: fmt.Sprintf("%d cannot move %s", cmd.ID, cmd.Direction)}, nil
		}
		return Result{Message: fmt.Sprintf("moved %d %s", cmd.ID, cmd.Direction)}, nil

	case OpSetPath:
		if err := ctl.SetPath(cmd.ID, cmd.Path); err != nil {
			if errors.Is(err, world.ErrUnknownEntity) {
				return Result{}, fmt.Errorf("%w: %d", ErrNoSuchEntity, cmd.ID)
			}
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("path set for %d", cmd.ID)}, nil

	case OpStep:
		report, err := ctl.Step()
		if err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("tick %d", report.Tick), Tick: &report}, nil

	case OpPlay:
		ctl.SetPlaying(true)
		return Result{Message: "playing"}, nil

	case OpPause:
		ctl.SetPlaying(false)
		return Result{Message: "paused"}, nil
	}
	return Result{}, fmt.Errorf("%w: op %d", ErrUnknownCommand, cmd.Op)
}

// Run parses and applies one line.
func Run(ctl Controller, line string) (Result, error) {
	cmd, err := Parse(line)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctl, cmd)
}

func usage(verb, args string) error {
	return fmt.Errorf("%w: usage: %s %s", ErrBadArgument, verb, args)
}

func parseCoord(row, col string) (types.Coord, error) {
	r, err := strconv.Atoi(row)
	if err != nil {
		return types.Coord{}, fmt.Errorf("%w: row %q", ErrBadArgument, row)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return types.Coord{}, fmt.Errorf("%w: col %q", ErrBadArgument, col)
	}
	return types.Coord{Row: r, Col: c}, nil
}

func parseID(s string) (world.EntityID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", ErrBadArgument, s)
	}
	return world.EntityID(id), nil
}

// parseHeading accepts the four movement words, not wait.
func parseHeading(word string) (types.Direction, error) {
	switch word {
	case "up", "down", "left", "right":
		return types.ParseDirection(word)
	}
	return 0, fmt.Errorf("%w: direction %q", ErrBadArgument, word)
}
