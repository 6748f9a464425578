package bootstrap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/schema"
	"github.com/seqpart/partkeeper/internal/sqlgen"
)

// Bootstrap rates are measured per hour: the snapshot interval is typically
// much shorter than the partition lifespan.
const rateUnit = time.Hour

// minimumFutureDelta is how far ahead of the evaluation time the first
// rebuilt partition boundary is placed.
const minimumFutureDelta = 2 * time.Hour

// timeOffsets builds [first, first+step, first+2*step, ...] of length n.
func timeOffsets(n int, first, step time.Duration) ([]time.Duration, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one offset", partition.ErrUnexpectedPartition)
	}
	offsets := make([]time.Duration, n)
	offsets[0] = first
	for i := 1; i < n; i++ {
		offsets[i] = offsets[i-1] + step
	}
	return offsets, nil
}

// planForOffsets predicts one partition boundary per offset. The first entry
// replaces the shadow table's placeholder tail; the rest are new partitions,
// the final one becoming the new tail.
func planForOffsets(
	placeholder partition.Tail,
	offsets []time.Duration,
	ratePerHour []float64,
	current partition.Position,
	evalTime time.Time,
) []partition.Planned {
	entries := make([]partition.Planned, 0, len(offsets))
	for i, offset := range offsets {
		predicted := make(partition.Position, current.Arity())
		for c := range predicted {
			predicted[c] = current[c] + int64(ratePerHour[c]*(offset.Hours()/rateUnit.Hours()))
		}
		at := evalTime.Add(offset)

		if i == 0 {
			change := partition.NewChange(placeholder)
			change.SetPosition(predicted)
			change.SetTimestamp(at)
			entries = append(entries, change)
			continue
		}
		fresh := partition.NewPlanned()
		fresh.SetTimestamp(at)
		if i == len(offsets)-1 {
			fresh.SetAsTail(current.Arity())
		} else {
			fresh.SetPosition(predicted)
		}
		entries = append(entries, fresh)
	}
	return entries
}

// ShadowName is the rebuilt table's name for an evaluation date.
func ShadowName(table string, evalTime time.Time) string {
	return fmt.Sprintf("%s_new_%s", table, evalTime.UTC().Format("20060102"))
}

// Script renders the full rebuild sequence for a table whose partition
// history is too thin for rate estimation: build a shadow copy partitioned
// along predicted boundaries, then mirror writes into it with triggers until
// the operator swaps the tables.
func Script(
	table *partition.Table,
	m *schema.Map,
	columns []string,
	current partition.Position,
	prior *Snapshot,
	evalTime time.Time,
	lifespan time.Duration,
	numEmpty int,
) ([]string, error) {
	priorPos, ok := prior.Tables[table.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not in the snapshot", partition.ErrInsufficientHistory, table.Name)
	}
	deltaHours := evalTime.Sub(prior.Time).Hours() / rateUnit.Hours()
	if deltaHours <= 0 {
		return nil, fmt.Errorf("%w: snapshot at %s is not older than %s",
			partition.ErrInsufficientHistory, prior.Time, evalTime)
	}

	ratePerHour := make([]float64, len(m.RangeCols))
	for i, col := range m.RangeCols {
		was, ok := priorPos[col]
		if !ok {
			return nil, fmt.Errorf("%w: snapshot for %s lacks column %s",
				partition.ErrInsufficientHistory, table.Name, col)
		}
		ratePerHour[i] = float64(current[i]-was) / deltaHours
	}

	offsets, err := timeOffsets(numEmpty+1, minimumFutureDelta, lifespan)
	if err != nil {
		return nil, err
	}

	shadow := ShadowName(table.Name, evalTime)
	if err := sqlgen.CheckIdentifier(shadow); err != nil {
		return nil, err
	}
	if err := sqlgen.CheckIdentifier(table.Name); err != nil {
		return nil, err
	}
	for _, col := range columns {
		if err := sqlgen.CheckIdentifier(col); err != nil {
			return nil, err
		}
	}

	placeholder := partition.NewTail("p_assumed", len(m.RangeCols))
	entries := planForOffsets(placeholder, offsets, ratePerHour, current, evalTime)
	reorganize, err := sqlgen.ReorganizeStatements(shadow, entries)
	if err != nil {
		return nil, err
	}

	statements := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS `%s`;", shadow),
		fmt.Sprintf("CREATE TABLE `%s` LIKE `%s`;", shadow, table.Name),
		fmt.Sprintf("ALTER TABLE `%s` REMOVE PARTITIONING;", shadow),
		fmt.Sprintf("ALTER TABLE `%s` PARTITION BY RANGE%s (%s) (PARTITION `p_assumed` VALUES LESS THAN %s);",
			shadow, columnsKeyword(m), backtickedList(m.RangeCols), maxValueClause(len(m.RangeCols))),
	}
	statements = append(statements, reorganize...)
	statements = append(statements, insertTrigger(table.Name, shadow, columns))
	if update := updateTrigger(table.Name, shadow, columns, m.RangeCols); update != "" {
		statements = append(statements, update)
	}
	return statements, nil
}

func columnsKeyword(m *schema.Map) string {
	if m.Columns {
		return " COLUMNS"
	}
	return ""
}

func backtickedList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

func maxValueClause(arity int) string {
	if arity == 1 {
		return "MAXVALUE"
	}
	return "(" + strings.TrimSuffix(strings.Repeat("MAXVALUE, ", arity), ", ") + ")"
}

func insertTrigger(original, shadow string, columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	assignments := make([]string, len(sorted))
	for i, col := range sorted {
		assignments[i] = fmt.Sprintf("\t\t\t`%s` = NEW.`%s`", col, col)
	}
	return fmt.Sprintf(
		"CREATE OR REPLACE TRIGGER `copy_inserts_from_%s_to_%s`\n"+
			"\tAFTER INSERT ON `%s` FOR EACH ROW\n"+
			"\t\tINSERT INTO `%s` SET\n%s;",
		original, shadow, original, shadow, strings.Join(assignments, ",\n"))
}

// updateTrigger mirrors updates of the non-range columns, keyed on the range
// columns. When the range columns are the whole table there is nothing to
// update and no trigger is emitted.
func updateTrigger(original, shadow string, columns, rangeCols []string) string {
	isRange := make(map[string]bool, len(rangeCols))
	for _, col := range rangeCols {
		isRange[col] = true
	}
	var updatable []string
	for _, col := range columns {
		if !isRange[col] {
			updatable = append(updatable, col)
		}
	}
	if len(updatable) == 0 {
		return ""
	}
	sort.Strings(updatable)

	assignments := make([]string, len(updatable))
	for i, col := range updatable {
		assignments[i] = fmt.Sprintf("\t\t\t`%s` = NEW.`%s`", col, col)
	}
	conditions := make([]string, len(rangeCols))
	for i, col := range rangeCols {
		conditions[i] = fmt.Sprintf("`%s` = NEW.`%s`", col, col)
	}
	return fmt.Sprintf(
		"CREATE OR REPLACE TRIGGER `copy_updates_from_%s_to_%s`\n"+
			"\tAFTER UPDATE ON `%s` FOR EACH ROW\n"+
			"\t\tUPDATE `%s` SET\n%s\n"+
			"\t\tWHERE %s;",
		original, shadow, original, shadow,
		strings.Join(assignments, ",\n"), strings.Join(conditions, " AND "))
}
