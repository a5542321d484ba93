package world

import (
	"errors"
	"fmt"

	"github.com/Scrimzay/gridsim/internal/types"
)

var ErrUnsettled = errors.New("board did not settle")

const maxSettleRounds = 64

// settleBoard is what the settle pass needs from a board. *Grid satisfies it.
type settleBoard interface {
	Cells() []types.Coord
	OccupantsAt(c types.Coord) []Entity
	Move(id EntityID, c types.Coord) error
}

// settle sends movers that share a cell back to where they started the tick
// until every cell holds at most one mover. The mover whose next queued step
// is WAIT keeps the cell. origins holds pre-tick coordinates.
//
// On a *Grid this never finds anything to do, Place already refuses a second
// mover in a cell. It stays in the tick as a check.
func settle(b settleBoard, origins map[EntityID]types.Coord) (rounds int, err error) {
	for rounds = 0; ; rounds++ {
		crowded, relocated, err := settleRound(b, origins)
		if err != nil {
			return rounds, err
		}
		if !crowded {
			return rounds, nil
		}
		if relocated == 0 {
			return rounds, fmt.Errorf("%w: crowded cells but no mover can back off", ErrUnsettled)
		}
		if rounds+1 >= maxSettleRounds {
			return rounds + 1, fmt.Errorf("%w: gave up after %d rounds", ErrUnsettled, maxSettleRounds)
		}
	}
}

func settleRound(b settleBoard, origins map[EntityID]types.Coord) (crowded bool, relocated int, err error) {
	for _, c := range b.Cells() {
		var movers []*Mover
		for _, e := range b.OccupantsAt(c) {
			if m, ok := e.(*Mover); ok {
				movers = append(movers, m)
			}
		}
		if len(movers) < 2 {
			continue
		}
		crowded = true

		var winner *Mover
		for _, m := range movers {
			next, err := m.Peek()
			if err != nil {
				return crowded, relocated, fmt.Errorf("settle %s: mover %d: %w", c, m.ID(), err)
			}
			if next == types.Wait {
				winner = m
			}
		}

		for _, m := range movers {
			if m == winner {
				continue
			}
			origin, ok := origins[m.ID()]
			if !ok || origin == c {
				continue
			}
			if err := b.Move(m.ID(), origin); err != nil {
				return crowded, relocated, fmt.Errorf("settle %s: send mover %d back to %s: %w", c, m.ID(), origin, err)
			}
			relocated++
		}
	}
	return crowded, relocated, nil
}
