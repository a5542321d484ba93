package ticklog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Scrimzay/gridsim/internal/types"
	"github.com/Scrimzay/gridsim/internal/world"
)

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "ticks")
	fixed := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	reports := []world.TickReport{
		{Tick: 1, Moves: []world.Move{{ID: 1, From: types.Coord{Row: 0, Col: 0}, To: types.Coord{Row: 0, Col: 1}}}},
		{Tick: 2, Blocked: []world.EntityID{1}, Granted: 2},
	}
	for _, r := range reports {
		if err := w.WriteTick(r); err != nil {
			t.Fatalf("write tick %d: %v", r.Tick, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadFile(filepath.Join(dir, "ticks-2026-10-19-08.jsonl.zst"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports want 2", len(got))
	}
	if got[0].Tick != 1 || len(got[0].Moves) != 1 || got[0].Moves[0].To != (types.Coord{Row: 0, Col: 1}) {
		t.Fatalf("first report=%+v", got[0])
	}
	if got[1].Granted != 2 || len(got[1].Blocked) != 1 || got[1].Blocked[0] != 1 {
		t.Fatalf("second report=%+v", got[1])
	}
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "ticks")
	now := time.Date(2026, 10, 19, 8, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.WriteTick(world.TickReport{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.WriteTick(world.TickReport{Tick: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "ticks-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files want 2: %v", len(files), files)
	}
}

func TestWriter_AsWorldSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewWriter(dir, "events")
	fixed := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	w := world.New(world.Options{Seed: 1}, nil)
	w.SetSink(sink)
	if _, err := w.Spawn(world.Spec{Kind: world.KindMover, Path: []types.Direction{types.Right}}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := w.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadFile(filepath.Join(dir, "events-2026-01-02-03.jsonl.zst"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reports want 3", len(got))
	}
	for i, r := range got {
		if r.Tick != uint64(i+1) || len(r.Moves) != 1 {
			t.Fatalf("report %d=%+v", i, r)
		}
	}
}
