package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Position addresses one well or tube slot on a rack. Row and Column are
// zero-based; positions compare structurally.
type Position struct {
	Row    int
	Column int
}

// Label renders the position as row letter plus one-based column ("A1").
func (p Position) Label() string {
	return string(rune('A'+p.Row)) + strconv.Itoa(p.Column+1)
}

func (p Position) String() string { return p.Label() }

// ParsePosition parses a label such as "H12" into a Position.
func ParsePosition(label string) (Position, error) {
	label = strings.TrimSpace(strings.ToUpper(label))
	if len(label) < 2 {
		return Position{}, fmt.Errorf("invalid position label %q", label)
	}
	row := label[0]
	if row < 'A' || row > 'Z' {
		return Position{}, fmt.Errorf("invalid position row in %q", label)
	}
	col, err := strconv.Atoi(label[1:])
	if err != nil || col < 1 {
		return Position{}, fmt.Errorf("invalid position column in %q", label)
	}
	return Position{Row: int(row - 'A'), Column: col - 1}, nil
}

// RackShape describes a rectangular carrier.
type RackShape struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Shape96 is the 8x12 shape of the destination plates.
var Shape96 = RackShape{Name: "8x12", Rows: 8, Columns: 12}

// Size returns the number of positions of the shape.
func (s RackShape) Size() int { return s.Rows * s.Columns }

// Contains reports whether the position lies on the shape.
func (s RackShape) Contains(p Position) bool {
	return p.Row >= 0 && p.Row < s.Rows && p.Column >= 0 && p.Column < s.Columns
}

// Each visits every position in row-major order until fn returns false.
func (s RackShape) Each(fn func(Position) bool) {
	for row := 0; row < s.Rows; row++ {
		for col := 0; col < s.Columns; col++ {
			if !fn(Position{Row: row, Column: col}) {
				return
			}
		}
	}
}

// Positions returns a fresh slice of all positions in row-major order
// (A1, A2, ..., A12, B1, ..., H12 for Shape96).
func (s RackShape) Positions() []Position {
	out := make([]Position, 0, s.Size())
	s.Each(func(p Position) bool {
		out = append(out, p)
		return true
	})
	return out
}
