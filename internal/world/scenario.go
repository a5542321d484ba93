package world

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Scrimzay/gridsim/internal/types"
)

// ScenarioEntry is one entity in a scenario file.
type ScenarioEntry struct {
	Kind      string `yaml:"kind"`
	Row       int    `yaml:"row"`
	Col       int    `yaml:"col"`
	Path      string `yaml:"path"`      // movers, e.g. "rrddllu"
	Direction string `yaml:"direction"` // transporters
	Resource  string `yaml:"resource"`  // producers
}

// Scenario is a YAML seed file:
//
//	name: demo
//	entities:
//	  - {kind: producer, row: 0, col: 1, resource: metal}
//	  - {kind: mover, row: 0, col: 0, path: rl}
type Scenario struct {
	Name     string          `yaml:"name"`
	Entities []ScenarioEntry `yaml:"entities"`
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(raw []byte) (*Scenario, []Spec, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, nil, fmt.Errorf("parse scenario: %w", err)
	}
	specs := make([]Spec, 0, len(sc.Entities))
	for i, e := range sc.Entities {
		s, err := e.spec()
		if err != nil {
			return nil, nil, fmt.Errorf("scenario entry %d: %w", i, err)
		}
		specs = append(specs, s)
	}
	return &sc, specs, nil
}

func (e ScenarioEntry) spec() (Spec, error) {
	kind, err := ParseKind(strings.ToLower(strings.TrimSpace(e.Kind)))
	if err != nil {
		return Spec{}, err
	}
	s := Spec{Kind: kind, At: types.Coord{Row: e.Row, Col: e.Col}}

	switch kind {
	case KindMover:
		if e.Path != "" {
			s.Path = types.ParsePath(e.Path)
			if len(s.Path) == 0 {
				return Spec{}, fmt.Errorf("path %q: %w", e.Path, ErrEmptyPath)
			}
		}

	case KindTransporter:
		s.Direction, err = types.ParseDirection(e.Direction)
		if err != nil {
			return Spec{}, err
		}

	case KindProducer:
		s.Emits, err = types.ParseResource(e.Resource)
		if err != nil {
			return Spec{}, err
		}

	case KindAggregator:
	}
	return s, nil
}

// LoadScenario reads a scenario file and spawns its entities in file order.
func (w *World) LoadScenario(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, specs, err := ParseScenario(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.spawnAll(specs); err != nil {
		return fmt.Errorf("scenario %s: %w", path, err)
	}
	w.log.Info("scenario loaded",
		zap.String("path", path),
		zap.String("name", sc.Name),
		zap.Int("entities", len(specs)),
	)
	return nil
}
