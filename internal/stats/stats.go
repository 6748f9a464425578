package stats

import (
	"fmt"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

// Statistics summarises a table's partition layout for reporting. Durations
// are only meaningful when their Has flag is set; partitions whose names do
// not encode a real date (including the synthetic p_start anchor) are
// skipped.
type Statistics struct {
	PartitionCount int

	HasNewestAge    bool
	TimeSinceNewest time.Duration

	HasOldestAge    bool
	TimeSinceOldest time.Duration

	HasMeanDelta bool
	MeanDelta    time.Duration

	HasMaxDelta bool
	MaxDelta    time.Duration
}

// Gather computes partition statistics at the given instant.
func Gather(partitions []partition.Partition, now time.Time) (*Statistics, error) {
	s := &Statistics{PartitionCount: len(partitions)}
	if len(partitions) == 0 {
		return s, nil
	}

	tail := partitions[len(partitions)-1]
	if _, ok := tail.(partition.Tail); !ok {
		return nil, fmt.Errorf("%w: list does not end in a MAXVALUE partition",
			partition.ErrUnexpectedPartition)
	}

	head := partitions[0]
	if head.HasRealTime() {
		if ts, ok := head.Timestamp(); ok {
			s.HasOldestAge = true
			s.TimeSinceOldest = now.Sub(ts)
		}
	}
	if tail.HasRealTime() {
		if ts, ok := tail.Timestamp(); ok {
			s.HasNewestAge = true
			s.TimeSinceNewest = now.Sub(ts)
		}
	}

	if len(partitions) > 1 && s.HasOldestAge && s.HasNewestAge {
		s.HasMeanDelta = true
		s.MeanDelta = (s.TimeSinceOldest - s.TimeSinceNewest) / time.Duration(len(partitions)-1)
	}

	var maxDelta time.Duration
	for i := 0; i+1 < len(partitions); i++ {
		a, b := partitions[i], partitions[i+1]
		if !a.HasRealTime() || !b.HasRealTime() {
			continue
		}
		ats, aok := a.Timestamp()
		bts, bok := b.Timestamp()
		if !aok || !bok {
			continue
		}
		if d := bts.Sub(ats); d > maxDelta {
			maxDelta = d
		}
	}
	if maxDelta > 0 {
		s.HasMaxDelta = true
		s.MaxDelta = maxDelta
	}

	return s, nil
}
