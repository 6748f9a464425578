package plan

import (
	"fmt"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

// Plan is an ordered list of planned partitions for one table: a prefix of
// changes to existing partitions followed by brand-new ones, the last entry
// rendering as the table's new tail.
type Plan struct {
	Table   *partition.Table
	Entries []partition.Planned
}

// ShouldRun reports whether the plan is worth committing: it creates a
// partition, or some change is marked important. A plan that merely
// re-derives the tail's nominal date is discarded by the caller.
func (p *Plan) ShouldRun() bool {
	for _, entry := range p.Entries {
		switch e := entry.(type) {
		case *partition.New:
			return true
		case *partition.Change:
			if e.Important() {
				return true
			}
		}
	}
	return false
}

// Build turns the current partition map and position into the ordered list
// of partition changes that keeps numEmpty empty partitions ahead of the
// active one, each spanning roughly lifespan.
func Build(
	table *partition.Table,
	partitions []partition.Partition,
	current partition.Position,
	evalTime time.Time,
	lifespan time.Duration,
	numEmpty int,
	exactTime ExactTimeFunc,
) (*Plan, error) {
	filled, active, empty, err := splitAroundPosition(partitions, current)
	if err != nil {
		return nil, err
	}
	if len(empty) == 0 {
		return nil, fmt.Errorf("%w: %s is filled through its last partition",
			partition.ErrNoEmptyPartitions, table.Name)
	}

	if !table.HasDateQuery() {
		exactTime = nil
	}
	input, err := rateInput(filled, active, current, evalTime, exactTime)
	if err != nil {
		return nil, err
	}
	rate, err := weightedRate(input)
	if err != nil {
		return nil, err
	}

	entries := []partition.Planned{partition.NewChange(active)}

	for _, p := range empty {
		last := entries[len(entries)-1]
		switch p := p.(type) {
		case partition.Bounded:
			// The bound was committed by an earlier run and cannot move, but
			// the name should reflect the date rows will actually start
			// landing in it.
			change := partition.NewChange(p)
			startOfFill, err := PredictTime(current, last.Position(), rate, evalTime)
			if err != nil {
				return nil, err
			}
			if ts, ok := p.Timestamp(); !ok || !partition.SameDate(startOfFill, ts) {
				change.SetTimestamp(startOfFill)
				change.MarkImportant()
			}
			entries = append(entries, change)
		case partition.Tail:
			change := partition.NewChange(p)
			startOfFill, err := PredictTime(current, last.Position(), rate, evalTime)
			if err != nil {
				return nil, err
			}
			ts := startOfFill
			if lastTime, ok := last.Timestamp(); ok {
				if nominal := lastTime.Add(lifespan); nominal.Before(ts) {
					ts = nominal
				}
			}
			if floor := evalTime.UTC().Truncate(time.Hour); ts.Before(floor) {
				ts = floor
			}
			change.SetTimestamp(ts)
			pos, err := PredictPosition(last.Position(), rate, lifespan)
			if err != nil {
				return nil, err
			}
			change.SetPosition(pos)
			entries = append(entries, change)
		default:
			return nil, fmt.Errorf("%w: %s in the empty suffix",
				partition.ErrUnexpectedPartition, p.Name())
		}
	}

	// One entry covers the active partition; everything past it is an empty
	// partition, topped up until the configured count is reached.
	for len(entries) < numEmpty+1 {
		last := entries[len(entries)-1]
		lastTime, ok := last.Timestamp()
		if !ok {
			return nil, fmt.Errorf("%w: cannot extend past %v", partition.ErrIncompletePlan, last)
		}
		ts := lastTime.Add(lifespan)
		if ts.Before(evalTime) {
			ts = evalTime
		}
		pos, err := PredictPosition(last.Position(), rate, lifespan)
		if err != nil {
			return nil, err
		}
		fresh := partition.NewPlanned()
		fresh.SetTimestamp(ts)
		fresh.SetPosition(pos)
		entries = append(entries, fresh)
	}

	resolveNameConflicts(entries, partitions)

	// The final entry takes over as the table's MAXVALUE partition.
	switch final := entries[len(entries)-1].(type) {
	case *partition.Change:
		final.SetAsTail()
	case *partition.New:
		final.SetAsTail(current.Arity())
	}

	return &Plan{Table: table, Entries: entries}, nil
}

// splitAroundPosition partitions the list into the fully filled prefix, the
// partition currently receiving rows, and the still-empty suffix.
func splitAroundPosition(
	partitions []partition.Partition,
	current partition.Position,
) (filled []partition.Partition, active partition.Bounded, empty []partition.Partition, err error) {
	if len(partitions) == 0 {
		return nil, partition.Bounded{}, nil,
			fmt.Errorf("%w: empty partition list", partition.ErrUnexpectedPartition)
	}
	i := 0
	for ; i < len(partitions); i++ {
		b, ok := partitions[i].(partition.Bounded)
		if !ok {
			break
		}
		less, lerr := b.LessThanPosition(current)
		if lerr != nil {
			return nil, partition.Bounded{}, nil, lerr
		}
		if !less {
			break
		}
		filled = append(filled, partitions[i])
	}
	if i == len(partitions) {
		return nil, partition.Bounded{}, nil,
			fmt.Errorf("%w: no partition can hold %s", partition.ErrUnexpectedPartition, current)
	}
	activePart, ok := partitions[i].(partition.Bounded)
	if !ok {
		// The tail itself is receiving rows; there is nothing empty ahead of
		// it and the caller must bootstrap instead.
		return filled, partition.Bounded{}, nil, nil
	}
	return filled, activePart, partitions[i+1:], nil
}

// resolveNameConflicts nudges planned dates forward one day at a time until
// none collides with a pre-existing partition name. A change keeping its own
// committed date is not a collision. Bounded by the list length: each bump
// moves past at most one existing date.
func resolveNameConflicts(entries []partition.Planned, existing []partition.Partition) {
	for conflict := true; conflict; {
		conflict = false
		for _, entry := range entries {
			ts, ok := entry.Timestamp()
			if !ok {
				continue
			}
			if !collides(ts, existing) {
				continue
			}
			if change, isChange := entry.(*partition.Change); isChange {
				if oldTime, ok := change.Old().Timestamp(); ok && partition.SameDate(oldTime, ts) {
					continue
				}
			}
			entry.SetTimestamp(ts.AddDate(0, 0, 1))
			conflict = true
		}
	}
}

func collides(ts time.Time, existing []partition.Partition) bool {
	for _, p := range existing {
		if pts, ok := p.Timestamp(); ok && partition.SameDate(ts, pts) {
			return true
		}
	}
	return false
}
