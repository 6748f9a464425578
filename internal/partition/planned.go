package partition

import (
	"fmt"
	"time"
)

// Planned is a partition the plan builder intends to create or alter. It is
// either a Change wrapping an existing partition or a New partition to be
// appended; every Change precedes every New in a complete plan.
type Planned interface {
	// Timestamp is the instant the planner chains lifespans from. For a
	// Change this is the wrapped partition's committed name-date when it has
	// one; renaming a partition must not shift the anchor later partitions
	// are spaced from.
	Timestamp() (time.Time, bool)
	// SetTimestamp assigns the timestamp the materialised partition will be
	// named after, floored to the hour.
	SetTimestamp(t time.Time)
	// Position is the upper bound the planner chains predictions from.
	// Nil for a planned tail.
	Position() Position
	Important() bool
	IsTail() bool
	// AsPartition materialises the plan entry into a concrete Bounded or
	// Tail named after the assigned timestamp. Without one, a Change keeps
	// the wrapped partition's name and a New is named "new".
	AsPartition() (Partition, error)
}

func floorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func nameForTime(t time.Time) string {
	return "p_" + t.UTC().Format("20060102")
}

// Change wraps an existing partition, optionally assigning it a new bound, a
// new name-date, or both.
type Change struct {
	old       Partition
	position  Position
	assigned  time.Time
	hasTime   bool
	important bool
	tail      bool
}

func NewChange(old Partition) *Change {
	return &Change{old: old, tail: false}
}

func (c *Change) Old() Partition { return c.old }

func (c *Change) SetPosition(pos Position) {
	c.position = pos.Clone()
	c.tail = false
}

func (c *Change) SetTimestamp(t time.Time) {
	c.assigned = floorHour(t)
	c.hasTime = true
}

func (c *Change) MarkImportant() { c.important = true }

// SetAsTail erases the planned bound; the materialised partition becomes the
// table's terminal MAXVALUE partition.
func (c *Change) SetAsTail() {
	c.position = nil
	c.tail = true
}

func (c *Change) Important() bool { return c.important }

func (c *Change) IsTail() bool { return c.tail }

func (c *Change) Timestamp() (time.Time, bool) {
	if ts, ok := c.old.Timestamp(); ok {
		return ts, true
	}
	if c.hasTime {
		return c.assigned, true
	}
	return time.Time{}, false
}

// AssignedTimestamp returns only the newly assigned instant, never the
// wrapped partition's.
func (c *Change) AssignedTimestamp() (time.Time, bool) {
	return c.assigned, c.hasTime
}

func (c *Change) Position() Position {
	if c.tail {
		return nil
	}
	if c.position != nil {
		return c.position
	}
	if b, ok := c.old.(interface{ Position() Position }); ok {
		return b.Position()
	}
	return nil
}

// HasModifications reports whether materialising this change would alter the
// table: a different bound, a different name-date, or a name-date where the
// old partition had none.
func (c *Change) HasModifications() bool {
	if c.position != nil {
		if b, ok := c.old.(interface{ Position() Position }); !ok || !c.position.Equal(b.Position()) {
			return true
		}
	}
	if c.hasTime {
		old, ok := c.old.Timestamp()
		if !ok {
			return true
		}
		if !SameDate(old, c.assigned) {
			return true
		}
	}
	return false
}

func (c *Change) AsPartition() (Partition, error) {
	// A pure re-bound keeps the wrapped partition's name; only an assigned
	// timestamp renames.
	name := c.old.Name()
	if c.hasTime {
		name = nameForTime(c.assigned)
	}
	if c.tail {
		return NewTail(name, c.old.Arity()), nil
	}
	pos := c.Position()
	if pos == nil {
		return nil, fmt.Errorf("%w: change of %s has no bound", ErrIncompletePlan, c.old.Name())
	}
	return NewBounded(name, pos), nil
}

func (c *Change) String() string {
	return fmt.Sprintf("Change(%s => pos %v, time %v, important %v)",
		c.old.Name(), c.position, c.assigned, c.important)
}

// New is a freshly planned partition with no existing counterpart. New
// partitions are always important.
type New struct {
	position Position
	assigned time.Time
	hasTime  bool
	tail     bool
	arity    int
}

func NewPlanned() *New {
	return &New{}
}

func (n *New) SetPosition(pos Position) {
	n.position = pos.Clone()
	n.tail = false
}

func (n *New) SetTimestamp(t time.Time) {
	n.assigned = floorHour(t)
	n.hasTime = true
}

// SetAsTail makes the partition the table's new terminal MAXVALUE partition
// of the given arity.
func (n *New) SetAsTail(arity int) {
	n.position = nil
	n.tail = true
	n.arity = arity
}

func (n *New) Important() bool { return true }

func (n *New) IsTail() bool { return n.tail }

func (n *New) Timestamp() (time.Time, bool) {
	return n.assigned, n.hasTime
}

func (n *New) Position() Position { return n.position }

func (n *New) AsPartition() (Partition, error) {
	// Until the planner assigns a date, a new partition renders under the
	// placeholder name "new".
	name := "new"
	if n.hasTime {
		name = nameForTime(n.assigned)
	}
	if n.tail {
		return NewTail(name, n.arity), nil
	}
	if n.position == nil {
		return nil, fmt.Errorf("%w: new partition has no bound", ErrIncompletePlan)
	}
	return NewBounded(name, n.position), nil
}

func (n *New) String() string {
	return fmt.Sprintf("New(pos %v, time %v, tail %v)", n.position, n.assigned, n.tail)
}

// SameDate reports whether two instants fall on the same UTC calendar day.
// Partition names carry day resolution, so date equality is what decides
// whether a rename is needed.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
