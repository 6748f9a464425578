package partition

import (
	"fmt"
	"regexp"
	"time"
)

// Partition is one entry of a table's partition list: either a Bounded
// partition with an exclusive upper bound, the single terminal Tail
// (VALUES LESS THAN MAXVALUE), or a synthetic Instant used only inside the
// rate estimator.
type Partition interface {
	Name() string
	Arity() int
	// Timestamp returns the instant the partition's name encodes, if any.
	Timestamp() (time.Time, bool)
	// HasRealTime distinguishes a timestamp parsed from the name from the
	// synthetic anchor that p_start carries for rate arithmetic only.
	HasRealTime() bool
}

var nameDate = regexp.MustCompile(`^p_(\d{4}|\d{6}|\d{8})$`)

// syntheticStartTime anchors the reserved p_start partition so rate
// arithmetic over legacy tables has a fixed origin. Statistics must skip it.
var syntheticStartTime = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// timestampFromName parses p_YYYYMMDD, p_YYYYMM, and p_YYYY names to
// midnight UTC of the day, month, or year. The reserved p_start name yields
// the synthetic anchor with real=false; every other name yields nothing.
func timestampFromName(name string) (ts time.Time, real, ok bool) {
	if name == "p_start" {
		return syntheticStartTime, false, true
	}
	m := nameDate.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false, false
	}
	var layout string
	switch len(m[1]) {
	case 8:
		layout = "20060102"
	case 6:
		layout = "200601"
	default:
		layout = "2006"
	}
	t, err := time.Parse(layout, m[1])
	if err != nil {
		return time.Time{}, false, false
	}
	return t.UTC(), true, true
}

// Bounded is a partition with an exclusive upper bound: VALUES LESS THAN (n, ...).
type Bounded struct {
	name     string
	position Position
}

func NewBounded(name string, position Position) Bounded {
	return Bounded{name: name, position: position}
}

func (b Bounded) Name() string       { return b.name }
func (b Bounded) Arity() int         { return b.position.Arity() }
func (b Bounded) Position() Position { return b.position }

func (b Bounded) Timestamp() (time.Time, bool) {
	ts, _, ok := timestampFromName(b.name)
	return ts, ok
}

func (b Bounded) HasRealTime() bool {
	_, real, ok := timestampFromName(b.name)
	return ok && real
}

// LessThanPosition reports whether the partition lies strictly below pos,
// meaning every row it holds is already behind pos.
func (b Bounded) LessThanPosition(pos Position) (bool, error) {
	return b.position.Less(pos)
}

func (b Bounded) String() string {
	return fmt.Sprintf("%s: %s", b.name, b.position)
}

// Tail is the terminal VALUES LESS THAN (MAXVALUE, ...) partition. Exactly
// one exists per table and it is always last.
type Tail struct {
	name  string
	arity int
}

func NewTail(name string, arity int) Tail {
	return Tail{name: name, arity: arity}
}

func (t Tail) Name() string { return t.name }
func (t Tail) Arity() int   { return t.arity }

func (t Tail) Timestamp() (time.Time, bool) {
	ts, _, ok := timestampFromName(t.name)
	return ts, ok
}

func (t Tail) HasRealTime() bool {
	_, real, ok := timestampFromName(t.name)
	return ok && real
}

func (t Tail) String() string {
	return fmt.Sprintf("%s: (MAXVALUE x %d)", t.name, t.arity)
}

// Instant is a synthetic bounded partition pinned to an explicit moment.
// The rate estimator builds these to straddle the active partition; they are
// never persisted or emitted.
type Instant struct {
	Bounded
	at time.Time
}

func NewInstant(name string, at time.Time, position Position) Instant {
	return Instant{Bounded: NewBounded(name, position), at: at}
}

func (i Instant) Timestamp() (time.Time, bool) { return i.at, true }
func (i Instant) HasRealTime() bool            { return true }

// Precedes orders two partitions: Bounded against Bounded by their bounds,
// anything before a Tail, a Tail before nothing.
func Precedes(a, b Partition) (bool, error) {
	if _, ok := a.(Tail); ok {
		return false, nil
	}
	if _, ok := b.(Tail); ok {
		return true, nil
	}
	ab, ok := a.(interface{ Position() Position })
	if !ok {
		return false, fmt.Errorf("%w: %s has no bound", ErrUnexpectedPartition, a.Name())
	}
	bb, ok := b.(interface{ Position() Position })
	if !ok {
		return false, fmt.Errorf("%w: %s has no bound", ErrUnexpectedPartition, b.Name())
	}
	return ab.Position().Less(bb.Position())
}
