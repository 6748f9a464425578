package partition

import (
	"fmt"
	"strings"
)

// Ordering is the result of comparing two positions.
type Ordering int

const (
	OrderLess Ordering = iota - 1
	OrderEqual
	OrderGreater
)

// Position is an ordered tuple of range-column values, one per range column.
// It describes either a row's key values or a partition's exclusive upper
// bound. Positions are immutable once constructed; Clone before mutating.
type Position []int64

// NewPosition copies values into a fresh Position.
func NewPosition(values ...int64) Position {
	p := make(Position, len(values))
	copy(p, values)
	return p
}

func (p Position) Arity() int {
	return len(p)
}

func (p Position) Clone() Position {
	c := make(Position, len(p))
	copy(c, p)
	return c
}

func (p Position) Equal(other Position) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Less reports whether p sorts strictly before other. MariaDB's RANGE
// COLUMNS places a row in the first partition whose bound tuple exceeds the
// row's in some not-yet-satisfied coordinate, so "strictly less" here is
// "any coordinate strictly less", not full lexicographic order.
func (p Position) Less(other Position) (bool, error) {
	if len(p) != len(other) {
		return false, fmt.Errorf("%w: %d vs %d", ErrArityMismatch, len(p), len(other))
	}
	for i := range p {
		if p[i] < other[i] {
			return true, nil
		}
	}
	return false, nil
}

// Compare orders p against other: equal when every coordinate matches, less
// when any coordinate is strictly less, greater otherwise.
func (p Position) Compare(other Position) (Ordering, error) {
	if len(p) != len(other) {
		return OrderEqual, fmt.Errorf("%w: %d vs %d", ErrArityMismatch, len(p), len(other))
	}
	if p.Equal(other) {
		return OrderEqual, nil
	}
	less, err := p.Less(other)
	if err != nil {
		return OrderEqual, err
	}
	if less {
		return OrderLess, nil
	}
	return OrderGreater, nil
}

func (p Position) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
