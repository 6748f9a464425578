package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/seqpart/partkeeper/internal/partition"
)

// Map is the parsed partition layout of a table.
type Map struct {
	// RangeCols are the PARTITION BY RANGE [COLUMNS] column names in
	// declaration order.
	RangeCols []string
	// Columns reports whether the table uses the multi-column
	// RANGE COLUMNS form. The SQL emitter must reproduce the distinction.
	Columns bool
	// Partitions is the ordered partition list, ending in the single Tail.
	Partitions []partition.Partition
}

// Arity is the number of range columns.
func (m *Map) Arity() int {
	return len(m.RangeCols)
}

// Tail returns the terminal MAXVALUE partition.
func (m *Map) Tail() partition.Tail {
	return m.Partitions[len(m.Partitions)-1].(partition.Tail)
}

var (
	autoIncrementRe = regexp.MustCompile("^\\s*`(\\w+)` .*AUTO_INCREMENT")
	rangeClauseRe   = regexp.MustCompile(`(?i)^\s*\(?\s*PARTITION BY RANGE\s*(COLUMNS)?\s*\(([^)]+)\)`)
	memberRe        = regexp.MustCompile("PARTITION\\s+`(\\w+)`\\s+VALUES LESS THAN\\s+\\(([\\d\\-, ]+)\\)")
	tailRe          = regexp.MustCompile("PARTITION\\s+`(\\w+)`\\s+VALUES LESS THAN\\s+\\(?\\s*MAXVALUE(\\s*,\\s*MAXVALUE)*\\s*\\)?")
)

// ParseCreateTable extracts the range columns and partition list from the
// Create Table text returned by SHOW CREATE TABLE.
func ParseCreateTable(text string) (*Map, error) {
	m := &Map{}
	var autoIncrementCol string
	var tailSeen bool

	for _, line := range strings.Split(text, "\n") {
		if ai := autoIncrementRe.FindStringSubmatch(line); ai != nil && autoIncrementCol == "" {
			autoIncrementCol = ai[1]
		}

		if rc := rangeClauseRe.FindStringSubmatch(line); rc != nil && m.RangeCols == nil {
			m.Columns = rc[1] != ""
			for _, col := range strings.Split(rc[2], ",") {
				col = strings.Trim(strings.TrimSpace(col), "`")
				if col != "" {
					m.RangeCols = append(m.RangeCols, col)
				}
			}
			continue
		}

		if mm := memberRe.FindStringSubmatch(line); mm != nil {
			values, err := parseBoundTuple(mm[2])
			if err != nil {
				return nil, fmt.Errorf("%w: partition %s: %v", partition.ErrTableInformation, mm[1], err)
			}
			if tailSeen {
				return nil, fmt.Errorf("%w: partition %s follows the MAXVALUE partition",
					partition.ErrUnexpectedPartition, mm[1])
			}
			m.Partitions = append(m.Partitions, partition.NewBounded(mm[1], values))
			continue
		}

		if tm := tailRe.FindStringSubmatch(line); tm != nil {
			if tailSeen {
				return nil, fmt.Errorf("%w: second MAXVALUE partition %s",
					partition.ErrUnexpectedPartition, tm[1])
			}
			tailSeen = true
			arity := 1 + strings.Count(tm[0], ",")
			m.Partitions = append(m.Partitions, partition.NewTail(tm[1], arity))
		}
	}

	if m.RangeCols == nil {
		return nil, fmt.Errorf("%w: no PARTITION BY RANGE clause", partition.ErrTableInformation)
	}
	if !tailSeen {
		return nil, fmt.Errorf("%w: partition list does not end in a MAXVALUE partition",
			partition.ErrTableInformation)
	}
	for _, p := range m.Partitions {
		if p.Arity() != m.Arity() {
			return nil, fmt.Errorf("%w: partition %s has arity %d, expected %d",
				partition.ErrTableInformation, p.Name(), p.Arity(), m.Arity())
		}
	}
	if err := checkOrdering(m.Partitions); err != nil {
		return nil, err
	}
	if !m.Columns && autoIncrementCol != "" && len(m.RangeCols) == 1 && m.RangeCols[0] != autoIncrementCol {
		return nil, fmt.Errorf("%w: range column %s, auto_increment column %s",
			partition.ErrMismatchedID, m.RangeCols[0], autoIncrementCol)
	}
	return m, nil
}

func parseBoundTuple(text string) (partition.Position, error) {
	parts := strings.Split(text, ",")
	values := make([]int64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return partition.NewPosition(values...), nil
}

func checkOrdering(partitions []partition.Partition) error {
	for i := 0; i+1 < len(partitions); i++ {
		a, b := partitions[i], partitions[i+1]
		before, err := partition.Precedes(a, b)
		if err != nil {
			return err
		}
		if !before {
			return fmt.Errorf("%w: %s does not precede %s",
				partition.ErrUnexpectedPartition, a.Name(), b.Name())
		}
	}
	return nil
}
