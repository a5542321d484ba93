package world

import (
	"fmt"
	"sort"

	"github.com/Scrimzay/gridsim/internal/types"
)

// Grid is the sparse spatial index. Entities are tracked by handle in three
// tables: cell -> ordered handles, handle -> cell, handle -> entity.
// Not safe for concurrent use; World serializes access.
type Grid struct {
	cells  map[types.Coord][]EntityID
	coords map[EntityID]types.Coord
	ents   map[EntityID]Entity
}

func NewGrid() *Grid {
	return &Grid{
		cells:  make(map[types.Coord][]EntityID),
		coords: make(map[EntityID]types.Coord),
		ents:   make(map[EntityID]Entity),
	}
}

func (g *Grid) Len() int { return len(g.coords) }

func (g *Grid) Clear() {
	g.cells = make(map[types.Coord][]EntityID)
	g.coords = make(map[EntityID]types.Coord)
	g.ents = make(map[EntityID]Entity)
}

// checkPlace reports why e may not go to c. self is skipped so a move inside
// the grid can be validated before anything is mutated.
func (g *Grid) checkPlace(c types.Coord, e Entity, self EntityID) error {
	kind := e.Kind()
	for _, id := range g.cells[c] {
		if id == self {
			continue
		}
		if g.ents[id].Kind() == kind {
			return fmt.Errorf("%w: %s at %s", ErrVariantConflict, kind, c)
		}
	}
	return nil
}

// Place appends e to the occupants of c.
func (g *Grid) Place(c types.Coord, e Entity) error {
	if _, ok := g.coords[e.ID()]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateEntity, e.ID())
	}
	if err := g.checkPlace(c, e, 0); err != nil {
		return err
	}
	g.cells[c] = append(g.cells[c], e.ID())
	g.coords[e.ID()] = c
	g.ents[e.ID()] = e
	return nil
}

// Remove deletes both mappings for id. Returns false if it wasn't placed.
func (g *Grid) Remove(id EntityID) bool {
	c, ok := g.coords[id]
	if !ok {
		return false
	}

	ids := g.cells[c]
	for i, have := range ids {
		if have == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(g.cells, c)
	} else {
		g.cells[c] = ids
	}

	delete(g.coords, id)
	delete(g.ents, id)
	return true
}

// Move relocates id to c. The target is validated first, so a rejected move
// leaves the entity where it was (and in the same slot of its cell).
func (g *Grid) Move(id EntityID, c types.Coord) error {
	from, ok := g.coords[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if from == c {
		return nil
	}
	e := g.ents[id]
	if err := g.checkPlace(c, e, id); err != nil {
		return err
	}
	g.Remove(id)
	return g.Place(c, e)
}

// OccupantsAt returns the entities at c in insertion order. Never nil.
func (g *Grid) OccupantsAt(c types.Coord) []Entity {
	ids := g.cells[c]
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.ents[id])
	}
	return out
}

func (g *Grid) CoordOf(id EntityID) (types.Coord, bool) {
	c, ok := g.coords[id]
	return c, ok
}

func (g *Grid) Entity(id EntityID) (Entity, bool) {
	e, ok := g.ents[id]
	return e, ok
}

// Entities returns every placed entity sorted by id.
func (g *Grid) Entities() []Entity {
	out := make([]Entity, 0, len(g.ents))
	for _, e := range g.ents {
		out = append(out, e)
	}
	sortByID(out)
	return out
}

// EntitiesOf returns the placed entities of one kind sorted by id.
func (g *Grid) EntitiesOf(kind Kind) []Entity {
	var out []Entity
	for _, e := range g.ents {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

func sortByID(es []Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID() < es[j].ID() })
}

// Cells returns the occupied cells in row-major order.
func (g *Grid) Cells() []types.Coord {
	out := make([]types.Coord, 0, len(g.cells))
	for c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// SnapshotFrom replaces g's contents with other's by replaying every
// placement through Place. The replay goes into fresh tables which are swapped
// in at the end, so on error g is unchanged.
func (g *Grid) SnapshotFrom(other *Grid) error {
	fresh := NewGrid()
	for _, c := range other.Cells() {
		for _, id := range other.cells[c] {
			if err := fresh.Place(c, other.ents[id]); err != nil {
				return fmt.Errorf("snapshot %s: %w", c, err)
			}
		}
	}
	g.cells, g.coords, g.ents = fresh.cells, fresh.coords, fresh.ents
	return nil
}

func (g *Grid) hasKindAt(c types.Coord, kind Kind) bool {
	for _, id := range g.cells[c] {
		if g.ents[id].Kind() == kind {
			return true
		}
	}
	return false
}

func (g *Grid) occupied(c types.Coord) bool {
	return len(g.cells[c]) > 0
}
