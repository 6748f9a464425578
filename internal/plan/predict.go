package plan

import (
	"fmt"
	"math"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

// PredictPosition projects a position forward by duration at the given rate.
func PredictPosition(current partition.Position, rate Rate, d time.Duration) (partition.Position, error) {
	if len(rate) != current.Arity() {
		return nil, fmt.Errorf("%w: rate arity %d vs position arity %d",
			partition.ErrArityMismatch, len(rate), current.Arity())
	}
	for i, r := range rate {
		if r < 0 {
			return nil, fmt.Errorf("%w: column %d changes at %f/day", partition.ErrNegativeRate, i, r)
		}
	}
	days := d.Hours() / hoursPerDay
	out := make(partition.Position, current.Arity())
	for i := range out {
		out[i] = current[i] + int64(math.Floor(rate[i]*days))
		if out[i] < current[i] {
			return nil, fmt.Errorf("%w: predicted %d behind current %d",
				partition.ErrNegativeRate, out[i], current[i])
		}
	}
	return out, nil
}

// PredictTime projects the instant at which current, advancing at rate,
// crosses target. The slowest column dominates; the result is floored to the
// hour.
func PredictTime(current, target partition.Position, rate Rate, evalTime time.Time) (time.Time, error) {
	if current.Arity() != target.Arity() || len(rate) != current.Arity() {
		return time.Time{}, fmt.Errorf("%w: current %d, target %d, rate %d",
			partition.ErrArityMismatch, current.Arity(), target.Arity(), len(rate))
	}
	for i, r := range rate {
		if r <= 0 {
			return time.Time{}, fmt.Errorf("%w: column %d changes at %f/day",
				partition.ErrNonPositiveRate, i, r)
		}
	}

	maxDays := math.Inf(-1)
	allNegative := true
	for i := range current {
		days := float64(target[i]-current[i]) / rate[i]
		if days >= 0 {
			allNegative = false
		}
		if days > maxDays {
			maxDays = days
		}
	}
	if allNegative {
		return time.Time{}, fmt.Errorf("%w: %s is behind %s",
			partition.ErrTargetInPast, target, current)
	}

	predicted := evalTime.UTC().Add(time.Duration(maxDays * hoursPerDay * float64(time.Hour)))
	return predicted.Truncate(time.Hour), nil
}
