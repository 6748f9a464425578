package plan

import (
	"errors"
	"testing"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
)

func maintainedPartitions() []partition.Partition {
	return []partition.Partition{
		partition.NewBounded("p_20201231", partition.NewPosition(100)),
		partition.NewBounded("p_20210102", partition.NewPosition(200)),
		partition.NewTail("future", 1),
	}
}

func testTable() *partition.Table {
	return &partition.Table{Name: "burgers"}
}

func TestBuild_NoChangesNeeded(t *testing.T) {
	evalTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := Build(testTable(), maintainedPartitions(), partition.NewPosition(50),
		evalTime, 7*24*time.Hour, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(p.Entries))
	}
	if p.ShouldRun() {
		t.Error("a steady-state plan should not run")
	}

	active := p.Entries[0].(*partition.Change)
	if active.HasModifications() || active.Important() {
		t.Error("the active partition's change must be untouched")
	}

	renameCandidate := p.Entries[1].(*partition.Change)
	if renameCandidate.Important() {
		t.Error("p_20210102 starts filling on its own date and must not be renamed")
	}
	if _, ok := renameCandidate.AssignedTimestamp(); ok {
		t.Error("no timestamp should be assigned when the date already matches")
	}

	tail := p.Entries[2].(*partition.Change)
	if !tail.IsTail() {
		t.Error("the final entry must render as the tail")
	}
	assigned, ok := tail.AssignedTimestamp()
	if !ok {
		t.Fatal("the tail change carries the predicted date")
	}
	// Start-of-fill at 50/day wins over the nominal 2021-01-09.
	if !assigned.Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-04, got %v", assigned)
	}
}

func TestBuild_ImminentRenameAndNewTail(t *testing.T) {
	evalTime := time.Date(2021, 1, 1, 23, 55, 0, 0, time.UTC)
	p, err := Build(testTable(), maintainedPartitions(), partition.NewPosition(50),
		evalTime, 2*24*time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(p.Entries))
	}
	if !p.ShouldRun() {
		t.Error("an imminent rename must run")
	}

	rename := p.Entries[1].(*partition.Change)
	if !rename.Important() {
		t.Error("the mispredicted name must be marked important")
	}
	assigned, ok := rename.AssignedTimestamp()
	if !ok || !assigned.Equal(time.Date(2021, 1, 3, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("expected rename to 2021-01-03T23:00, got %v (ok=%v)", assigned, ok)
	}
	renamed, err := rename.AsPartition()
	if err != nil {
		t.Fatalf("materialising the rename failed: %v", err)
	}
	if renamed.Name() != "p_20210103" {
		t.Errorf("expected p_20210103, got %s", renamed.Name())
	}

	oldTail := p.Entries[2].(*partition.Change)
	if oldTail.IsTail() {
		t.Error("the old tail becomes a bounded partition")
	}
	if !oldTail.Position().Equal(partition.NewPosition(250)) {
		t.Errorf("expected bound (250), got %v", oldTail.Position())
	}
	assigned, _ = oldTail.AssignedTimestamp()
	// Nominal spacing from the committed 2021-01-02 name, not the renamed
	// date: one lifespan later.
	if !assigned.Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-04, got %v", assigned)
	}

	fresh := p.Entries[3].(*partition.New)
	if !fresh.IsTail() {
		t.Error("the appended partition becomes the new tail")
	}
	ts, _ := fresh.Timestamp()
	if !ts.Equal(time.Date(2021, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-06, got %v", ts)
	}
}

func TestBuild_NoEmptyPartitions(t *testing.T) {
	parts := []partition.Partition{
		partition.NewBounded("p_20201231", partition.NewPosition(100)),
		partition.NewTail("future", 1),
	}
	evalTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Build(testTable(), parts, partition.NewPosition(150), evalTime, 24*time.Hour, 2, nil)
	if !errors.Is(err, partition.ErrNoEmptyPartitions) {
		t.Fatalf("expected ErrNoEmptyPartitions, got %v", err)
	}
}

func TestBuild_TimestampConflictBumpsOneDay(t *testing.T) {
	parts := []partition.Partition{
		partition.NewBounded("p_20201231", partition.NewPosition(100)),
		partition.NewBounded("p_20210104", partition.NewPosition(200)),
		partition.NewTail("future", 1),
	}
	evalTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := Build(testTable(), parts, partition.NewPosition(50), evalTime, 3*24*time.Hour, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Start-of-fill for the tail lands on 2021-01-04, which collides with
	// the existing p_20210104; the conflict loop pushes it one day out.
	tail := p.Entries[2].(*partition.Change)
	assigned, ok := tail.AssignedTimestamp()
	if !ok {
		t.Fatal("expected an assigned timestamp on the tail change")
	}
	if !assigned.Equal(time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected the conflict to resolve to 2021-01-05, got %v", assigned)
	}

	materialised := make(map[string]bool)
	for _, entry := range p.Entries[1:] {
		part, err := entry.AsPartition()
		if err != nil {
			continue
		}
		if materialised[part.Name()] {
			t.Errorf("duplicate emitted name %s", part.Name())
		}
		materialised[part.Name()] = true
	}
}

func TestBuild_QueriedRate(t *testing.T) {
	parts := []partition.Partition{
		partition.NewBounded("p_20201231", partition.NewPosition(100)),
		partition.NewBounded("p_20210102", partition.NewPosition(200)),
		partition.NewTail("future", 1),
	}
	table := &partition.Table{
		Name:                      "burgers",
		EarliestUTCTimestampQuery: "SELECT UNIX_TIMESTAMP(`cooked`) FROM `burgers` WHERE `id` > ? ORDER BY `id` ASC LIMIT 1;",
	}
	evalTime := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	exact := func(b partition.Bounded) (time.Time, error) {
		return time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), nil
	}

	p, err := Build(table, parts, partition.NewPosition(150), evalTime, 3*24*time.Hour, 1, exact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rate from the queried instants is 50/3 per day; one lifespan past the
	// active bound is 200 + 50.
	tail := p.Entries[len(p.Entries)-1]
	change, ok := tail.(*partition.Change)
	if !ok {
		t.Fatalf("expected the tail to be a change, got %T", tail)
	}
	if !change.IsTail() {
		t.Error("final entry must render as the tail")
	}
	assigned, _ := change.AssignedTimestamp()
	if !assigned.Equal(time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2021-01-05, got %v", assigned)
	}
}

// applyPlan folds a plan back onto a partition list the way the emitted
// ALTERs would.
func applyPlan(t *testing.T, original []partition.Partition, p *Plan) []partition.Partition {
	t.Helper()
	var out []partition.Partition
	for _, entry := range p.Entries {
		if change, ok := entry.(*partition.Change); ok && !change.HasModifications() {
			out = append(out, change.Old())
			continue
		}
		part, err := entry.AsPartition()
		if err != nil {
			t.Fatalf("materialising %v: %v", entry, err)
		}
		out = append(out, part)
	}
	return out
}

func TestBuild_AppliedPlanKeepsInvariants(t *testing.T) {
	evalTime := time.Date(2021, 1, 1, 23, 55, 0, 0, time.UTC)
	current := partition.NewPosition(50)
	p, err := Build(testTable(), maintainedPartitions(), current, evalTime, 2*24*time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	applied := applyPlan(t, maintainedPartitions(), p)
	if _, ok := applied[len(applied)-1].(partition.Tail); !ok {
		t.Fatal("the applied list must end in a tail")
	}
	tails := 0
	for _, part := range applied {
		if _, ok := part.(partition.Tail); ok {
			tails++
		}
		if part.Arity() != 1 {
			t.Errorf("arity changed for %s", part.Name())
		}
	}
	if tails != 1 {
		t.Errorf("expected exactly one tail, got %d", tails)
	}
	for i := 0; i+1 < len(applied); i++ {
		before, err := partition.Precedes(applied[i], applied[i+1])
		if err != nil || !before {
			t.Errorf("%s does not precede %s (err=%v)", applied[i].Name(), applied[i+1].Name(), err)
		}
	}

	empties := 0
	for _, part := range applied {
		b, ok := part.(partition.Bounded)
		if !ok {
			empties++
			continue
		}
		if less, _ := b.LessThanPosition(current); !less {
			empties++
		}
	}
	// The active partition is counted among the not-yet-filled here, so the
	// configured three empties mean at least four entries at or beyond the
	// current position.
	if empties < 4 {
		t.Errorf("expected at least 4 partitions at or beyond the position, got %d", empties)
	}
}

func TestBuild_SteadyStateIsIdempotent(t *testing.T) {
	evalTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := Build(testTable(), maintainedPartitions(), partition.NewPosition(50),
		evalTime, 7*24*time.Hour, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ShouldRun() {
		t.Fatal("precondition: the steady-state plan must not run")
	}

	// Nothing was applied, so replanning with identical inputs must again
	// produce nothing to do.
	second, err := Build(testTable(), maintainedPartitions(), partition.NewPosition(50),
		evalTime, 7*24*time.Hour, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ShouldRun() {
		t.Error("replanning unchanged inputs must not produce work")
	}
}

func TestBuild_MultiColumn(t *testing.T) {
	parts := []partition.Partition{
		partition.NewBounded("p_20210101", partition.NewPosition(255, 1234567890)),
		partition.NewBounded("p_20210102", partition.NewPosition(512, 2345678901)),
		partition.NewTail("p_next", 2),
	}
	evalTime := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	current := partition.NewPosition(300, 2000000000)

	p, err := Build(testTable(), parts, current, evalTime, 2*24*time.Hour, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, entry := range p.Entries[:len(p.Entries)-1] {
		if pos := entry.Position(); pos != nil && pos.Arity() != 2 {
			t.Errorf("expected arity 2 throughout, got %v", pos)
		}
	}
	final := p.Entries[len(p.Entries)-1]
	if !final.IsTail() {
		t.Error("the final entry must render as the tail")
	}
	if final.Position() != nil {
		t.Error("a planned tail has no bound")
	}

	part, err := final.AsPartition()
	if err != nil {
		t.Fatalf("materialising the tail failed: %v", err)
	}
	if part.Arity() != 2 {
		t.Errorf("the new tail keeps the table arity, got %d", part.Arity())
	}
}

func TestBuild_TailActiveMeansBootstrap(t *testing.T) {
	// All bounded partitions are full and rows are landing in the tail.
	parts := []partition.Partition{
		partition.NewBounded("p_20210101", partition.NewPosition(255, 1234567890)),
		partition.NewTail("p_next", 2),
	}
	evalTime := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	_, err := Build(testTable(), parts, partition.NewPosition(300, 2000000000),
		evalTime, 2*24*time.Hour, 2, nil)
	if !errors.Is(err, partition.ErrNoEmptyPartitions) {
		t.Fatalf("expected ErrNoEmptyPartitions, got %v", err)
	}
}
