package world

import "github.com/Scrimzay/gridsim/internal/types"

// EntityView is the read-only shape of an entity handed to clients.
type EntityView struct {
	ID        EntityID       `json:"id"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	At        types.Coord    `json:"at"`
	Resources ResourceCounts `json:"resources"`

	// variant state, only the fields for Kind are set
	Path      string `json:"path,omitempty"`
	Cursor    int    `json:"cursor,omitempty"`
	Direction string `json:"direction,omitempty"`
	Emits     string `json:"emits,omitempty"`
}

type CellView struct {
	At        types.Coord `json:"at"`
	Occupants []EntityID  `json:"occupants"`
}

// BoardView is a committed board, safe to hold after the lock is released.
type BoardView struct {
	Tick     uint64       `json:"tick"`
	Cells    []CellView   `json:"cells"`
	Entities []EntityView `json:"entities"`
}

func viewOf(e Entity, at types.Coord) EntityView {
	v := EntityView{
		ID:        e.ID(),
		Kind:      e.Kind().String(),
		Name:      e.Name(),
		At:        at,
		Resources: countResources(e.Resources()),
	}
	switch e := e.(type) {
	case *Mover:
		// a path from SetPath is always encodable
		v.Path, _ = types.EncodePath(e.path)
		v.Cursor = e.cursor

	case *Transporter:
		v.Direction = e.direction.String()

	case *Producer:
		v.Emits = e.emits.String()

	case *Aggregator:
	}
	return v
}

// View copies the committed board. Cells are row-major, entities by id.
func (w *World) View() BoardView {
	w.Mu.RLock()
	defer w.Mu.RUnlock()

	g := w.grid
	bv := BoardView{
		Tick:     w.tick,
		Cells:    make([]CellView, 0, len(g.cells)),
		Entities: make([]EntityView, 0, len(g.ents)),
	}
	for _, c := range g.Cells() {
		bv.Cells = append(bv.Cells, CellView{
			At:        c,
			Occupants: append([]EntityID(nil), g.cells[c]...),
		})
	}
	for _, e := range g.Entities() {
		bv.Entities = append(bv.Entities, viewOf(e, g.coords[e.ID()]))
	}
	return bv
}
