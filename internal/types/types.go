package types

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDirection = errors.New("unknown direction")

// Coord is a (row, col) cell address. No bounds, the grid is sparse.
type Coord struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Less orders coords row-major
func (c Coord) Less(o Coord) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

type Direction uint8

const (
	Up Direction = iota + 1
	Down
	Left
	Right
	Wait
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"

	case Down:
		return "down"

	case Left:
		return "left"

	case Right:
		return "right"

	case Wait:
		return "wait"

	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Delta returns the row/col offset of a single step in direction d.
func (d Direction) Delta() (dRow, dCol int, err error) {
	switch d {
	case Up:
		return -1, 0, nil

	case Down:
		return 1, 0, nil

	case Left:
		return 0, -1, nil

	case Right:
		return 0, 1, nil

	case Wait:
		return 0, 0, nil

	default:
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownDirection, uint8(d))
	}
}

// Step returns the cell one step from c in direction d.
func Step(c Coord, d Direction) (Coord, error) {
	dr, dc, err := d.Delta()
	if err != nil {
		return c, err
	}
	return Coord{Row: c.Row + dr, Col: c.Col + dc}, nil
}

// ParseDirection accepts the long command words ("up", "Right", ...).
func ParseDirection(word string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "up", "u":
		return Up, nil

	case "down", "d":
		return Down, nil

	case "left", "l":
		return Left, nil

	case "right", "r":
		return Right, nil

	case "wait", "w":
		return Wait, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, word)
}

func (d Direction) MarshalText() ([]byte, error) {
	if _, _, err := d.Delta(); err != nil {
		return nil, err
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var symbolToDirection = map[rune]Direction{
	'u': Up,
	'd': Down,
	'l': Left,
	'r': Right,
	'w': Wait,
}

// ParsePath decodes a path string like "rrdlw". Unknown characters are dropped.
func ParsePath(s string) []Direction {
	path := make([]Direction, 0, len(s))
	for _, ch := range strings.ToLower(s) {
		if d, ok := symbolToDirection[ch]; ok {
			path = append(path, d)
		}
	}
	return path
}

// EncodePath is the inverse of ParsePath for valid directions.
func EncodePath(path []Direction) (string, error) {
	var sb strings.Builder
	sb.Grow(len(path))
	for _, d := range path {
		switch d {
		case Up:
			sb.WriteByte('u')
		case Down:
			sb.WriteByte('d')
		case Left:
			sb.WriteByte('l')
		case Right:
			sb.WriteByte('r')
		case Wait:
			sb.WriteByte('w')
		default:
			return "", fmt.Errorf("%w: %d", ErrUnknownDirection, uint8(d))
		}
	}
	return sb.String(), nil
}

type Resource uint8

const (
	Wood Resource = iota + 1
	Metal
	Stone
)

// Resources lists every kind in display order.
var Resources = []Resource{Wood, Metal, Stone}

func (r Resource) String() string {
	switch r {
	case Wood:
		return "wood"

	case Metal:
		return "metal"

	case Stone:
		return "stone"

	default:
		return "unknown"
	}
}

func ParseResource(word string) (Resource, error) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "wood":
		return Wood, nil

	case "metal":
		return Metal, nil

	case "stone":
		return Stone, nil
	}
	return 0, fmt.Errorf("unknown resource %q", word)
}

func (r Resource) MarshalText() ([]byte, error) {
	if r < Wood || r > Stone {
		return nil, fmt.Errorf("unknown resource %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Resource) UnmarshalText(b []byte) error {
	parsed, err := ParseResource(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
