package world

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/Scrimzay/gridsim/internal/types"
)

var (
	ErrDuplicateEntity = errors.New("entity already placed")
	ErrVariantConflict = errors.New("cell already holds an entity of this kind")
	ErrEmptyPath       = errors.New("mover has an empty path")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrNotMover        = errors.New("entity is not a mover")
	ErrUnknownKind     = errors.New("unknown entity kind")
)

type EntityID uint64

type Kind uint8

const (
	KindMover Kind = iota + 1
	KindProducer
	KindTransporter
	KindAggregator
)

// Kinds in a stable order, used for name pools and stats.
var Kinds = []Kind{KindMover, KindProducer, KindTransporter, KindAggregator}

func (k Kind) String() string {
	switch k {
	case KindMover:
		return "mover"

	case KindProducer:
		return "producer"

	case KindTransporter:
		return "transporter"

	case KindAggregator:
		return "aggregator"

	default:
		return "unknown"
	}
}

func ParseKind(word string) (Kind, error) {
	switch word {
	case "mover", "robot":
		return KindMover, nil

	case "producer", "factory":
		return KindProducer, nil

	case "transporter", "conveyor":
		return KindTransporter, nil

	case "aggregator", "collection":
		return KindAggregator, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, word)
}

// Bag is an ordered multiset of resource units.
type Bag []types.Resource

func (b Bag) Count(r types.Resource) int {
	n := 0
	for _, have := range b {
		if have == r {
			n++
		}
	}
	return n
}

// Entity is implemented only by *Mover, *Producer, *Transporter and *Aggregator.
type Entity interface {
	ID() EntityID
	Name() string
	Kind() Kind
	Resources() Bag
	base() *entityBase
}

type entityBase struct {
	id        EntityID
	name      string
	resources Bag
}

func (e *entityBase) ID() EntityID         { return e.id }
func (e *entityBase) Name() string         { return e.name }
func (e *entityBase) Resources() Bag       { return e.resources }
func (e *entityBase) base() *entityBase    { return e }
func (e *entityBase) add(r types.Resource) { e.resources = append(e.resources, r) }

type Mover struct {
	entityBase
	path   []types.Direction
	cursor int
}

func (m *Mover) Kind() Kind { return KindMover }

func (m *Mover) Path() []types.Direction {
	out := make([]types.Direction, len(m.path))
	copy(out, m.path)
	return out
}

func (m *Mover) Cursor() int { return m.cursor }

// SetPath replaces the whole path and rewinds the cursor.
func (m *Mover) SetPath(path []types.Direction) {
	m.path = append([]types.Direction(nil), path...)
	m.cursor = 0
}

// Peek returns the direction the next step will consume.
func (m *Mover) Peek() (types.Direction, error) {
	if len(m.path) == 0 {
		return 0, ErrEmptyPath
	}
	return m.path[m.cursor], nil
}

// Previous returns the direction consumed by the last step.
func (m *Mover) Previous() (types.Direction, error) {
	if len(m.path) == 0 {
		return 0, ErrEmptyPath
	}
	i := (m.cursor - 1 + len(m.path)) % len(m.path)
	return m.path[i], nil
}

func (m *Mover) Advance() error {
	if len(m.path) == 0 {
		return ErrEmptyPath
	}
	m.cursor = (m.cursor + 1) % len(m.path)
	return nil
}

// Producer emits one unit of its resource to every co-located mover each tick.
type Producer struct {
	entityBase
	emits types.Resource
}

func (p *Producer) Kind() Kind            { return KindProducer }
func (p *Producer) Emits() types.Resource { return p.emits }

// Transporter pushes co-located movers in a fixed direction.
type Transporter struct {
	entityBase
	direction types.Direction
}

func (t *Transporter) Kind() Kind                 { return KindTransporter }
func (t *Transporter) Direction() types.Direction { return t.direction }

// Aggregator merges the bags of co-located aggregators into its own.
type Aggregator struct {
	entityBase
}

func (a *Aggregator) Kind() Kind { return KindAggregator }

const unnamed = "unnamed"

var namePools = map[Kind][]string{
	KindMover: {
		"bit", "zip", "cog", "tin", "dot", "buzz", "chip",
		"gear", "lex", "rok", "pip", "zed", "bop", "vim",
	},
	KindProducer: {
		"Spark", "Bolt", "Whirr", "Clank", "Weld", "Flux", "Crank",
		"Fuse", "Loop", "Jolt", "Meld", "Glim", "Zap", "Tick", "Puff",
	},
	KindTransporter: {
		"Zippy", "Rolly", "Glide", "Slider", "Belt", "Carry", "Scoot",
		"Ferry", "Shuttle", "Flow", "Dash", "Hustle", "Whisk", "Drift",
		"Haul", "Cruise", "Tread", "Chug", "Surge", "Rush",
	},
	KindAggregator: {
		"Collection1", "Collection2", "Collection3", "Collection4", "Collection5",
		"Collection6", "Collection7", "Collection8", "Collection9", "Collection10",
		"Collection11", "Collection12", "Collection13",
	},
}

// Factory hands out ids and names. One per world so tests can seed it.
type Factory struct {
	nextID uint64
	rng    *rand.Rand
	unused map[Kind][]string
}

func NewFactory(seed int64) *Factory {
	f := &Factory{
		rng:    rand.New(rand.NewSource(seed)),
		unused: make(map[Kind][]string, len(namePools)),
	}
	for kind, pool := range namePools {
		f.unused[kind] = append([]string(nil), pool...)
	}
	return f
}

func (f *Factory) takeName(kind Kind) string {
	pool := f.unused[kind]
	if len(pool) == 0 {
		return unnamed
	}
	i := f.rng.Intn(len(pool))
	name := pool[i]
	f.unused[kind] = append(pool[:i], pool[i+1:]...)
	return name
}

func (f *Factory) newBase(kind Kind) entityBase {
	f.nextID++
	return entityBase{
		id:   EntityID(f.nextID),
		name: f.takeName(kind),
	}
}

// NewMover builds a mover. A nil path means "wait forever".
func (f *Factory) NewMover(path []types.Direction) *Mover {
	if path == nil {
		path = []types.Direction{types.Wait}
	}
	m := &Mover{entityBase: f.newBase(KindMover)}
	m.SetPath(path)
	return m
}

func (f *Factory) NewProducer(emits types.Resource) *Producer {
	return &Producer{entityBase: f.newBase(KindProducer), emits: emits}
}

func (f *Factory) NewTransporter(dir types.Direction) *Transporter {
	return &Transporter{entityBase: f.newBase(KindTransporter), direction: dir}
}

func (f *Factory) NewAggregator() *Aggregator {
	return &Aggregator{entityBase: f.newBase(KindAggregator)}
}

// Spec describes an entity to create. Only the fields for Kind are read.
type Spec struct {
	Kind      Kind
	At        types.Coord
	Path      []types.Direction
	Direction types.Direction
	Emits     types.Resource
}

// Build constructs the entity described by s without placing it.
func (f *Factory) Build(s Spec) (Entity, error) {
	switch s.Kind {
	case KindMover:
		if s.Path != nil && len(s.Path) == 0 {
			return nil, ErrEmptyPath
		}
		return f.NewMover(s.Path), nil

	case KindProducer:
		if s.Emits < types.Wood || s.Emits > types.Stone {
			return nil, fmt.Errorf("producer needs a resource kind, got %d", uint8(s.Emits))
		}
		return f.NewProducer(s.Emits), nil

	case KindTransporter:
		if _, _, err := s.Direction.Delta(); err != nil {
			return nil, err
		}
		return f.NewTransporter(s.Direction), nil

	case KindAggregator:
		return f.NewAggregator(), nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(s.Kind))
	}
}
