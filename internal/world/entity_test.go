package world

import (
	"errors"
	"testing"

	"github.com/Scrimzay/gridsim/internal/types"
)

func TestFactory_NamesAreUniqueThenUnnamed(t *testing.T) {
	f := NewFactory(3)
	pool := namePools[KindAggregator]
	seen := make(map[string]bool)
	for range pool {
		name := f.NewAggregator().Name()
		if seen[name] {
			t.Fatalf("name %q handed out twice", name)
		}
		seen[name] = true
	}
	if got := f.NewAggregator().Name(); got != unnamed {
		t.Fatalf("exhausted pool gave %q want %q", got, unnamed)
	}
	// other kinds draw from their own pool
	if got := f.NewMover(nil).Name(); got == unnamed {
		t.Fatalf("mover pool drained by aggregators")
	}
}

func TestFactory_SeedIsDeterministic(t *testing.T) {
	a, b := NewFactory(42), NewFactory(42)
	for i := 0; i < 5; i++ {
		ea, eb := a.NewTransporter(types.Up), b.NewTransporter(types.Up)
		if ea.ID() != eb.ID() || ea.Name() != eb.Name() {
			t.Fatalf("draw %d: (%d,%q) vs (%d,%q)", i, ea.ID(), ea.Name(), eb.ID(), eb.Name())
		}
	}
}

func TestFactory_IDsIncreaseAcrossKinds(t *testing.T) {
	f := NewFactory(1)
	ids := []EntityID{
		f.NewMover(nil).ID(),
		f.NewProducer(types.Wood).ID(),
		f.NewTransporter(types.Left).ID(),
		f.NewAggregator().ID(),
	}
	for i, id := range ids {
		if id != EntityID(i+1) {
			t.Fatalf("ids=%v want 1..4", ids)
		}
	}
}

func TestFactory_BuildValidates(t *testing.T) {
	f := NewFactory(1)
	cases := []struct {
		name string
		spec Spec
		want error
	}{
		{"empty path", Spec{Kind: KindMover, Path: []types.Direction{}}, ErrEmptyPath},
		{"bad direction", Spec{Kind: KindTransporter, Direction: types.Direction(0)}, types.ErrUnknownDirection},
		{"bad kind", Spec{Kind: Kind(9)}, ErrUnknownKind},
	}
	for _, tc := range cases {
		if _, err := f.Build(tc.spec); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}
	if _, err := f.Build(Spec{Kind: KindProducer}); err == nil {
		t.Fatalf("producer without resource accepted")
	}
	e, err := f.Build(Spec{Kind: KindTransporter, Direction: types.Wait})
	if err != nil {
		t.Fatalf("wait transporter: %v", err)
	}
	if tr := e.(*Transporter); tr.Direction() != types.Wait {
		t.Fatalf("direction=%v", tr.Direction())
	}
}

func TestMover_PathCycles(t *testing.T) {
	f := NewFactory(1)
	m := f.NewMover(types.ParsePath("udl"))
	want := []types.Direction{types.Up, types.Down, types.Left, types.Up}
	for i, d := range want {
		got, err := m.Peek()
		if err != nil || got != d {
			t.Fatalf("step %d: peek=%v,%v want %v", i, got, err, d)
		}
		if err := m.Advance(); err != nil {
			t.Fatalf("advance: %v", err)
		}
		if prev, _ := m.Previous(); prev != d {
			t.Fatalf("step %d: previous=%v want %v", i, prev, d)
		}
	}
	if m.Cursor() != 1 {
		t.Fatalf("cursor=%d want 1", m.Cursor())
	}

	p := m.Path()
	p[1] = types.Wait
	if got, _ := m.Peek(); got != types.Down {
		t.Fatalf("Path returned internal storage")
	}
}

func TestParseKind(t *testing.T) {
	for word, want := range map[string]Kind{
		"robot": KindMover, "mover": KindMover,
		"factory": KindProducer, "conveyor": KindTransporter, "collection": KindAggregator,
	} {
		got, err := ParseKind(word)
		if err != nil || got != want {
			t.Fatalf("%q: got %v,%v want %v", word, got, err, want)
		}
	}
	if _, err := ParseKind("tank"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err=%v want ErrUnknownKind", err)
	}
}
