package world

import (
	"fmt"
	"sort"

	"github.com/Scrimzay/gridsim/internal/types"
)

// proposal is where an entity wants to be after this tick.
type proposal struct {
	dest    types.Coord
	blocked bool // mover wanted to leave but the target was taken
}

// propose asks e (currently at c, sharing the cell with cellmates) where it
// goes this tick. next is the board being built; it already holds every
// placement committed earlier in the tick.
func propose(e Entity, next *Grid, c types.Coord, cellmates []Entity) (proposal, error) {
	switch e := e.(type) {
	case *Mover:
		return proposeMover(e, next, c, cellmates)

	case *Producer, *Transporter, *Aggregator:
		return proposal{dest: c}, nil

	default:
		return proposal{}, fmt.Errorf("%w: %T", ErrUnknownKind, e)
	}
}

func proposeMover(m *Mover, next *Grid, c types.Coord, cellmates []Entity) (proposal, error) {
	var dir types.Direction
	carried := false
	for _, other := range cellmates {
		if t, ok := other.(*Transporter); ok {
			dir = t.Direction()
			carried = true
		}
	}

	if !carried {
		d, err := m.Peek()
		if err != nil {
			return proposal{}, fmt.Errorf("mover %d: %w", m.ID(), err)
		}
		dir = d
		// The step is consumed even if the target turns out to be taken.
		if err := m.Advance(); err != nil {
			return proposal{}, err
		}
	}

	dest, err := types.Step(c, dir)
	if err != nil {
		return proposal{}, fmt.Errorf("mover %d: %w", m.ID(), err)
	}
	if dest != c && next.occupied(dest) {
		return proposal{dest: c, blocked: true}, nil
	}
	return proposal{dest: dest}, nil
}

// moveOrder lists the occupied cells of g in resolution order: cells holding a
// mover first, then row, then column.
func moveOrder(g *Grid) []types.Coord {
	cells := g.Cells()
	sort.SliceStable(cells, func(i, j int) bool {
		mi := g.hasKindAt(cells[i], KindMover)
		mj := g.hasKindAt(cells[j], KindMover)
		if mi != mj {
			return mi
		}
		return cells[i].Less(cells[j])
	})
	return cells
}

// Move records one entity changing cells during a tick.
type Move struct {
	ID   EntityID    `json:"id"`
	From types.Coord `json:"from"`
	To   types.Coord `json:"to"`
}

type resolution struct {
	next    *Grid
	moves   []Move
	blocked []EntityID
}

// resolveMoves builds the next board from cur. Proposals are committed as soon
// as they are made, so earlier cells in moveOrder win contested targets.
func resolveMoves(cur *Grid) (resolution, error) {
	res := resolution{next: NewGrid()}
	for _, c := range moveOrder(cur) {
		occupants := cur.OccupantsAt(c)
		for _, e := range occupants {
			p, err := propose(e, res.next, c, occupants)
			if err != nil {
				return resolution{}, err
			}
			if err := res.next.Place(p.dest, e); err != nil {
				return resolution{}, fmt.Errorf("commit %s %d to %s: %w", e.Kind(), e.ID(), p.dest, err)
			}
			if p.blocked {
				res.blocked = append(res.blocked, e.ID())
			}
			if p.dest != c {
				res.moves = append(res.moves, Move{ID: e.ID(), From: c, To: p.dest})
			}
		}
	}
	return res, nil
}
