package world

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Scrimzay/gridsim/internal/types"
)

var ErrTickAborted = errors.New("tick aborted")

// TickSink receives a report for every committed tick.
type TickSink interface {
	WriteTick(r TickReport) error
}

// TickReport summarizes one committed tick.
type TickReport struct {
	Tick         uint64     `json:"tick"`
	Moves        []Move     `json:"moves,omitempty"`
	Blocked      []EntityID `json:"blocked,omitempty"`
	Granted      int        `json:"granted"`
	Merged       int        `json:"merged"`
	SettleRounds int        `json:"settle_rounds"`
}

type Options struct {
	Seed int64 // name pool shuffling
}

// World owns the grid and runs ticks. Every exported method locks Mu, a tick
// is one critical section.
type World struct {
	Mu      sync.RWMutex
	grid    *Grid
	factory *Factory
	tick    uint64
	log     *zap.Logger
	sink    TickSink
}

func New(opts Options, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		grid:    NewGrid(),
		factory: NewFactory(opts.Seed),
		log:     log,
	}
}

// SetSink installs a tick sink (nil disables it).
func (w *World) SetSink(s TickSink) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	w.sink = s
}

// Reset removes every entity and rewinds the tick counter. Ids and names
// already handed out are not reused.
func (w *World) Reset() {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	w.grid.Clear()
	w.tick = 0
	w.log.Info("world reset")
}

func (w *World) Tick() uint64 {
	w.Mu.RLock()
	defer w.Mu.RUnlock()
	return w.tick
}

func (w *World) Len() int {
	w.Mu.RLock()
	defer w.Mu.RUnlock()
	return w.grid.Len()
}

// Step advances the world one tick: resolve moves, commit, interact, settle.
// If resolution fails the board and every mover's cursor are left as they
// were and the error wraps ErrTickAborted.
func (w *World) Step() (TickReport, error) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	return w.stepLocked()
}

func (w *World) stepLocked() (TickReport, error) {
	origins := make(map[EntityID]types.Coord, len(w.grid.coords))
	cursors := make(map[*Mover]int)
	for id, c := range w.grid.coords {
		origins[id] = c
		if m, ok := w.grid.ents[id].(*Mover); ok {
			cursors[m] = m.cursor
		}
	}
	rollback := func() {
		for m, cur := range cursors {
			m.cursor = cur
		}
	}

	res, err := resolveMoves(w.grid)
	if err != nil {
		rollback()
		return TickReport{}, fmt.Errorf("%w: tick %d: %w", ErrTickAborted, w.tick+1, err)
	}
	if err := w.grid.SnapshotFrom(res.next); err != nil {
		rollback()
		return TickReport{}, fmt.Errorf("%w: tick %d: %w", ErrTickAborted, w.tick+1, err)
	}

	stats := interact(w.grid)

	rounds, err := settle(w.grid, origins)
	if err != nil {
		// The moves are already committed at this point; report and carry on.
		w.log.Error("settle failed", zap.Uint64("tick", w.tick+1), zap.Error(err))
	}

	w.tick++
	report := TickReport{
		Tick:         w.tick,
		Moves:        res.moves,
		Blocked:      res.blocked,
		Granted:      stats.Granted,
		Merged:       stats.Merged,
		SettleRounds: rounds,
	}

	w.log.Debug("tick",
		zap.Uint64("tick", report.Tick),
		zap.Int("moves", len(report.Moves)),
		zap.Int("blocked", len(report.Blocked)),
		zap.Int("granted", report.Granted),
		zap.Int("merged", report.Merged),
	)

	if w.sink != nil {
		if err := w.sink.WriteTick(report); err != nil {
			w.log.Warn("tick log write failed", zap.Uint64("tick", report.Tick), zap.Error(err))
		}
	}
	return report, nil
}

// Spawn creates an entity from s and places it at s.At. The id and name are
// consumed even when placement is rejected.
func (w *World) Spawn(s Spec) (EntityView, error) {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	return w.spawnLocked(s)
}

func (w *World) spawnLocked(s Spec) (EntityView, error) {
	e, err := w.factory.Build(s)
	if err != nil {
		return EntityView{}, err
	}
	if err := w.grid.Place(s.At, e); err != nil {
		return EntityView{}, err
	}
	w.log.Debug("spawned",
		zap.Uint64("id", uint64(e.ID())),
		zap.Stringer("kind", e.Kind()),
		zap.String("name", e.Name()),
		zap.Stringer("at", s.At),
	)
	return viewOf(e, s.At), nil
}

// Remove deletes an entity. False if there was nothing to remove.
func (w *World) Remove(id EntityID) bool {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	ok := w.grid.Remove(id)
	if ok {
		w.log.Debug("removed", zap.Uint64("id", uint64(id)))
	}
	return ok
}

// Relocate moves an entity one step. False if the entity is unknown, the
// direction invalid or the target cell already holds the same kind.
func (w *World) Relocate(id EntityID, dir types.Direction) bool {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	from, ok := w.grid.CoordOf(id)
	if !ok {
		return false
	}
	to, err := types.Step(from, dir)
	if err != nil {
		return false
	}
	if err := w.grid.Move(id, to); err != nil {
		w.log.Debug("relocate rejected", zap.Uint64("id", uint64(id)), zap.Error(err))
		return false
	}
	return true
}

// SetPath replaces a mover's whole path and rewinds its cursor.
func (w *World) SetPath(id EntityID, path []types.Direction) error {
	w.Mu.Lock()
	defer w.Mu.Unlock()

	e, ok := w.grid.Entity(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	m, ok := e.(*Mover)
	if !ok {
		return fmt.Errorf("%w: %d is a %s", ErrNotMover, id, e.Kind())
	}
	if len(path) == 0 {
		return ErrEmptyPath
	}
	for _, d := range path {
		if _, _, err := d.Delta(); err != nil {
			return err
		}
	}
	m.SetPath(path)
	return nil
}

// Inspect returns a read-only view of one entity.
func (w *World) Inspect(id EntityID) (EntityView, bool) {
	w.Mu.RLock()
	defer w.Mu.RUnlock()

	e, ok := w.grid.Entity(id)
	if !ok {
		return EntityView{}, false
	}
	c, _ := w.grid.CoordOf(id)
	return viewOf(e, c), true
}

// CountByKind tallies placed entities per kind.
func (w *World) CountByKind() map[Kind]int {
	w.Mu.RLock()
	defer w.Mu.RUnlock()

	counts := make(map[Kind]int, len(Kinds))
	for _, e := range w.grid.ents {
		counts[e.Kind()]++
	}
	return counts
}
