package drop

import (
	"errors"
	"fmt"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/plan"
	"github.com/seqpart/partkeeper/internal/sqlgen"
)

// Entry explains why one partition is droppable.
type Entry struct {
	Name string

	// HasExactTimes is false when the row lookup failed with NoExactTime;
	// a partition so old that newer filters match none of its rows is
	// itself evidence of age, and the age fields below are zero.
	HasExactTimes bool

	OldestTime   time.Time
	YoungestTime time.Time
	OldestAge    time.Duration
	YoungestAge  time.Duration

	OldestPosition   partition.Position
	YoungestPosition partition.Position

	// ApproxSize estimates the row count as the bound delta summed over
	// columns.
	ApproxSize int64
}

// Report lists the droppable partitions in order plus the single statement
// that removes them. Statement is empty when nothing is droppable.
type Report struct {
	Entries   []Entry
	Statement string
}

// PlanDroppable walks adjacent partition pairs from the oldest end and
// selects those whose youngest row is older than the table's retention
// period. The walk stops at the partition currently being filled; dropping
// never touches anything at or beyond the current position.
func PlanDroppable(
	table *partition.Table,
	partitions []partition.Partition,
	current partition.Position,
	now time.Time,
	exactTime plan.ExactTimeFunc,
) (*Report, error) {
	if table.Retention <= 0 {
		return nil, fmt.Errorf("%w: %s", partition.ErrNoRetention, table.Name)
	}

	report := &Report{}
	for i := 0; i+1 < len(partitions); i++ {
		next, ok := partitions[i+1].(partition.Bounded)
		if !ok {
			break
		}
		filled, err := next.LessThanPosition(current)
		if err != nil {
			return nil, err
		}
		if !filled {
			break
		}
		candidate, ok := partitions[i].(partition.Bounded)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no bound", partition.ErrUnexpectedPartition,
				partitions[i].Name())
		}

		var approxSize int64
		for c := range next.Position() {
			approxSize += next.Position()[c] - candidate.Position()[c]
		}

		entry := Entry{
			Name:             candidate.Name(),
			OldestPosition:   candidate.Position(),
			YoungestPosition: next.Position(),
			ApproxSize:       approxSize,
		}

		oldest, err := exactTime(candidate)
		if err != nil {
			if errors.Is(err, partition.ErrNoExactTime) {
				report.Entries = append(report.Entries, entry)
				continue
			}
			return nil, err
		}
		youngest, err := exactTime(next)
		if err != nil {
			if errors.Is(err, partition.ErrNoExactTime) {
				report.Entries = append(report.Entries, entry)
				continue
			}
			return nil, err
		}

		youngestAge := now.Sub(youngest)
		if youngestAge <= table.Retention {
			continue
		}
		entry.HasExactTimes = true
		entry.OldestTime = oldest
		entry.YoungestTime = youngest
		entry.OldestAge = now.Sub(oldest)
		entry.YoungestAge = youngestAge
		report.Entries = append(report.Entries, entry)
	}

	if len(report.Entries) > 0 {
		names := make([]string, len(report.Entries))
		for i, e := range report.Entries {
			names[i] = e.Name
		}
		statement, err := sqlgen.DropStatement(table.Name, names)
		if err != nil {
			return nil, err
		}
		report.Statement = statement
	}
	return report, nil
}
