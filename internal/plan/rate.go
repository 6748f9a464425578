package plan

import (
	"fmt"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

// Rate is a per-column estimate of position increase per day.
type Rate []float64

const hoursPerDay = 24.0

// weightBase sets the emphasis schedule for weightedRate: pair k of n gets
// weight weightBase/(n-k), so the newest pair dominates. The constant is
// arbitrary but fixed; changing it changes every planned bound.
const weightBase = 10000.0

type positioned interface {
	Position() partition.Position
}

// pairRate computes the positions-per-day vector between two partitions.
// Pairs without timestamps, or not strictly increasing in time, contribute
// nothing and are skipped by the caller.
func pairRate(p1, p2 partition.Partition) (Rate, bool) {
	t1, ok1 := p1.Timestamp()
	t2, ok2 := p2.Timestamp()
	if !ok1 || !ok2 || !t1.Before(t2) {
		return nil, false
	}
	b1, ok1 := p1.(positioned)
	b2, ok2 := p2.(positioned)
	if !ok1 || !ok2 {
		return nil, false
	}
	pos1, pos2 := b1.Position(), b2.Position()
	if pos1.Arity() != pos2.Arity() {
		return nil, false
	}
	days := t2.Sub(t1).Hours() / hoursPerDay
	rate := make(Rate, pos1.Arity())
	for i := range rate {
		rate[i] = float64(pos2[i]-pos1[i]) / days
	}
	return rate, true
}

// weightedRate estimates the current rate of change from an ordered list of
// partitions, weighting recent adjacent pairs far more heavily than old
// ones.
func weightedRate(partitions []partition.Partition) (Rate, error) {
	var rates []Rate
	for i := 0; i+1 < len(partitions); i++ {
		if r, ok := pairRate(partitions[i], partitions[i+1]); ok {
			rates = append(rates, r)
		}
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: %d partitions yielded no pairs",
			partition.ErrEmptyRateInput, len(partitions))
	}

	n := len(rates)
	arity := len(rates[0])
	weighted := make(Rate, arity)
	var totalWeight float64
	for k, r := range rates {
		w := weightBase / float64(n-k)
		totalWeight += w
		for i := range weighted {
			weighted[i] += r[i] * w
		}
	}
	for i := range weighted {
		weighted[i] /= totalWeight
	}
	return weighted, nil
}

// ExactTimeFunc resolves a bounded partition to the UTC timestamp of the
// oldest row strictly beyond its bound.
type ExactTimeFunc func(partition.Bounded) (time.Time, error)

// rateInput assembles the partitions the estimator runs over.
//
// Without a date query the only evidence is partition names, and the active
// partition is a fencepost: its bound lies in the future relative to the
// caller's position. Two synthetic instants straddle it — the current
// position pinned at the active partition's own date, and the active bound
// pinned at the evaluation time — so the active partition contributes a
// well-ordered pair instead of skewing the estimate.
//
// With a date query each historical partition gets an instant at the exact
// time its bound was crossed, and the active partition is represented by the
// current position at the evaluation time.
func rateInput(
	filled []partition.Partition,
	active partition.Bounded,
	current partition.Position,
	evalTime time.Time,
	exactTime ExactTimeFunc,
) ([]partition.Partition, error) {
	if exactTime != nil {
		input := make([]partition.Partition, 0, len(filled)+1)
		for _, p := range filled {
			b, ok := p.(partition.Bounded)
			if !ok {
				continue
			}
			ts, err := exactTime(b)
			if err != nil {
				return nil, err
			}
			input = append(input, partition.NewInstant(b.Name(), ts, b.Position()))
		}
		input = append(input, partition.NewInstant("p_current", evalTime, current))
		return input, nil
	}

	input := make([]partition.Partition, 0, len(filled)+2)
	for _, p := range filled {
		if _, ok := p.Timestamp(); ok {
			input = append(input, p)
		}
	}
	if activeTime, ok := active.Timestamp(); ok {
		input = append(input, partition.NewInstant(active.Name(), activeTime, current))
	}
	input = append(input, partition.NewInstant(active.Name(), evalTime, active.Position()))
	return input, nil
}
