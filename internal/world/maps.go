package world

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Scrimzay/gridsim/internal/types"
)

// Built-in seed layouts, keyed by map name.
var builtinMaps = map[string]func() []Spec{
	"empty": func() []Spec { return nil },
	"loop":  loopMap,
	"yard":  yardMap,
}

// MapNames lists the built-in layouts.
func MapNames() []string {
	names := make([]string, 0, len(builtinMaps))
	for name := range builtinMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitMap spawns a built-in layout on top of whatever is on the board.
// Unknown names fall back to "empty".
func (w *World) InitMap(name string) error {
	build, ok := builtinMaps[name]
	if !ok {
		w.log.Warn("unknown map, falling back to empty", zap.String("map", name))
		return nil
	}
	if err := w.spawnAll(build()); err != nil {
		return fmt.Errorf("map %s: %w", name, err)
	}
	w.log.Info("map loaded", zap.String("map", name), zap.Int("entities", w.Len()))
	return nil
}

// spawnAll spawns specs in order under one lock, stopping at the first error.
func (w *World) spawnAll(specs []Spec) error {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	for i, s := range specs {
		if _, err := w.spawnLocked(s); err != nil {
			return fmt.Errorf("entry %d (%s at %s): %w", i, s.Kind, s.At, err)
		}
	}
	return nil
}

func transporter(row, col int, dir types.Direction) Spec {
	return Spec{Kind: KindTransporter, At: types.Coord{Row: row, Col: col}, Direction: dir}
}

// loopMap is a conveyor run: right along row 5, down column 10, back left
// along row 9, with one idle mover riding it.
func loopMap() []Spec {
	var specs []Spec
	for col := 5; col <= 9; col++ {
		specs = append(specs, transporter(5, col, types.Right))
	}
	for row := 5; row <= 8; row++ {
		specs = append(specs, transporter(row, 10, types.Down))
	}
	for col := 10; col >= 8; col-- {
		specs = append(specs, transporter(9, col, types.Left))
	}
	specs = append(specs, Spec{
		Kind: KindMover,
		At:   types.Coord{Row: 5, Col: 5},
		Path: []types.Direction{types.Wait},
	})
	return specs
}

// yardMap has one producer per resource on row 2 and two movers shuttling
// past them.
func yardMap() []Spec {
	return []Spec{
		{Kind: KindProducer, At: types.Coord{Row: 2, Col: 2}, Emits: types.Wood},
		{Kind: KindProducer, At: types.Coord{Row: 2, Col: 4}, Emits: types.Metal},
		{Kind: KindProducer, At: types.Coord{Row: 2, Col: 6}, Emits: types.Stone},
		{Kind: KindAggregator, At: types.Coord{Row: 4, Col: 4}},
		{Kind: KindMover, At: types.Coord{Row: 2, Col: 1}, Path: types.ParsePath("rrrrrlllll")},
		{Kind: KindMover, At: types.Coord{Row: 4, Col: 1}, Path: types.ParsePath("rrrwwlll")},
	}
}
