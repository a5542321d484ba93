package world

import "github.com/Scrimzay/gridsim/internal/types"

// interactionStats counts what the interaction pass handed out.
type interactionStats struct {
	Granted int // units given to movers by producers
	Merged  int // units copied between aggregators
}

// interact runs every occupant's interaction rule against its cell, cells in
// row-major order and occupants in insertion order.
func interact(g *Grid) interactionStats {
	var stats interactionStats
	for _, c := range g.Cells() {
		occupants := g.OccupantsAt(c)
		for _, e := range occupants {
			switch e := e.(type) {
			case *Producer:
				stats.Granted += e.deposit(occupants)

			case *Aggregator:
				stats.Merged += e.collect(occupants)

			case *Mover, *Transporter:
				// nothing to hand out
			}
		}
	}
	return stats
}

// deposit gives one unit of p's resource to every mover in entities.
func (p *Producer) deposit(entities []Entity) int {
	n := 0
	for _, e := range entities {
		if m, ok := e.(*Mover); ok {
			m.add(p.emits)
			n++
		}
	}
	return n
}

// collect appends a copy of every other aggregator's bag onto a's bag. The
// donors keep their units.
func (a *Aggregator) collect(entities []Entity) int {
	n := 0
	for _, e := range entities {
		other, ok := e.(*Aggregator)
		if !ok || other == a {
			continue
		}
		donated := append(Bag(nil), other.resources...)
		a.resources = append(a.resources, donated...)
		n += len(donated)
	}
	return n
}

// ResourceCounts is a per-kind tally of a bag.
type ResourceCounts struct {
	Wood  int `json:"wood"`
	Metal int `json:"metal"`
	Stone int `json:"stone"`
}

func countResources(b Bag) ResourceCounts {
	return ResourceCounts{
		Wood:  b.Count(types.Wood),
		Metal: b.Count(types.Metal),
		Stone: b.Count(types.Stone),
	}
}
