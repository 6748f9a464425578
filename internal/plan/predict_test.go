package plan

import (
	"errors"
	"testing"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

func TestPredictPosition(t *testing.T) {
	pos, err := PredictPosition(partition.NewPosition(100), Rate{10}, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.Equal(partition.NewPosition(170)) {
		t.Errorf("expected (170), got %v", pos)
	}
}

func TestPredictPosition_FloorsFractions(t *testing.T) {
	pos, err := PredictPosition(partition.NewPosition(200), Rate{25.043478}, 48*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.Equal(partition.NewPosition(250)) {
		t.Errorf("expected (250), got %v", pos)
	}
}

func TestPredictPosition_NegativeRate(t *testing.T) {
	_, err := PredictPosition(partition.NewPosition(100), Rate{-1}, time.Hour)
	if !errors.Is(err, partition.ErrNegativeRate) {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}
}

func TestPredictPosition_ArityMismatch(t *testing.T) {
	_, err := PredictPosition(partition.NewPosition(100, 200), Rate{1}, time.Hour)
	if !errors.Is(err, partition.ErrArityMismatch) {
		t.Fatalf("expected ErrArityMismatch, got %v", err)
	}
}

func TestPredictTime(t *testing.T) {
	eval := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ts, err := PredictTime(partition.NewPosition(50), partition.NewPosition(200), Rate{50}, eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-04, got %v", ts)
	}
}

func TestPredictTime_FloorsToHour(t *testing.T) {
	eval := time.Date(2021, 1, 1, 23, 55, 0, 0, time.UTC)
	ts, err := PredictTime(partition.NewPosition(50), partition.NewPosition(100), Rate{25.043478260869566}, eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Minute() != 0 || ts.Second() != 0 || ts.Nanosecond() != 0 {
		t.Errorf("expected an hour-aligned result, got %v", ts)
	}
	if !ts.Equal(time.Date(2021, 1, 3, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-03T23:00, got %v", ts)
	}
}

func TestPredictTime_SlowestColumnDominates(t *testing.T) {
	eval := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ts, err := PredictTime(
		partition.NewPosition(0, 0),
		partition.NewPosition(100, 10),
		Rate{100, 1},
		eval,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Column 0 crosses in 1 day, column 1 in 10; the later crossing wins.
	if !ts.Equal(time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-11, got %v", ts)
	}
}

func TestPredictTime_NonPositiveRate(t *testing.T) {
	eval := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := PredictTime(partition.NewPosition(0), partition.NewPosition(10), Rate{0}, eval)
	if !errors.Is(err, partition.ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}
}

func TestPredictTime_TargetEntirelyInPast(t *testing.T) {
	eval := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := PredictTime(partition.NewPosition(100, 100), partition.NewPosition(50, 40), Rate{1, 1}, eval)
	if !errors.Is(err, partition.ErrTargetInPast) {
		t.Fatalf("expected ErrTargetInPast, got %v", err)
	}
}
