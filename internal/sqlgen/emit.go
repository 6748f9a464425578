package sqlgen

import (
	"fmt"
	"strings"

	"github.com/seqpart/partkeeper/internal/partition"
)

// RenderPartition formats one partition clause. The single-column tail form
// is bare MAXVALUE; multi-column tails and all bounded partitions use the
// tuple form. SHOW CREATE TABLE round-trips through this.
func RenderPartition(p partition.Partition) (string, error) {
	if err := CheckIdentifier(p.Name()); err != nil {
		return "", err
	}
	switch p := p.(type) {
	case partition.Tail:
		if p.Arity() == 1 {
			return fmt.Sprintf("PARTITION `%s` VALUES LESS THAN MAXVALUE", p.Name()), nil
		}
		values := strings.TrimSuffix(strings.Repeat("MAXVALUE, ", p.Arity()), ", ")
		return fmt.Sprintf("PARTITION `%s` VALUES LESS THAN (%s)", p.Name(), values), nil
	case partition.Bounded:
		values := make([]string, p.Arity())
		for i, v := range p.Position() {
			values[i] = fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("PARTITION `%s` VALUES LESS THAN (%s)",
			p.Name(), strings.Join(values, ", ")), nil
	default:
		return "", fmt.Errorf("%w: cannot render %s", partition.ErrUnexpectedPartition, p.Name())
	}
}

// ReorganizeStatements renders a plan's entries into ALTER TABLE ...
// REORGANIZE PARTITION statements.
//
// The changes are walked in reverse: the statement that adds new tail
// partitions runs before any statement that shifts the active partition, so
// at every intermediate step the table has at least as many empty partitions
// as it started with.
func ReorganizeStatements(tableName string, entries []partition.Planned) ([]string, error) {
	if err := CheckIdentifier(tableName); err != nil {
		return nil, err
	}

	var changes []*partition.Change
	var news []*partition.New
	for _, entry := range entries {
		switch e := entry.(type) {
		case *partition.Change:
			if len(news) > 0 {
				return nil, fmt.Errorf("%w: change of %s follows a new partition",
					partition.ErrPlanOrder, e.Old().Name())
			}
			changes = append(changes, e)
		case *partition.New:
			news = append(news, e)
		default:
			return nil, fmt.Errorf("%w: unknown plan entry %v", partition.ErrPlanOrder, entry)
		}
	}

	if len(news) == 0 {
		modified := false
		for _, c := range changes {
			if c.HasModifications() {
				modified = true
				break
			}
		}
		if !modified {
			return nil, nil
		}
	}

	seen := make(map[string]bool)
	var statements []string
	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]
		final := i == len(changes)-1

		if !final && !change.HasModifications() {
			continue
		}

		parts := []partition.Partition{}
		materialised, err := change.AsPartition()
		if err != nil {
			return nil, err
		}
		parts = append(parts, materialised)
		if final {
			for _, n := range news {
				p, err := n.AsPartition()
				if err != nil {
					return nil, err
				}
				parts = append(parts, p)
			}
		}

		rendered := make([]string, len(parts))
		for j, p := range parts {
			if seen[p.Name()] {
				return nil, fmt.Errorf("%w: %s", partition.ErrDuplicatePartition, p.Name())
			}
			seen[p.Name()] = true
			rendered[j], err = RenderPartition(p)
			if err != nil {
				return nil, err
			}
		}

		oldName := change.Old().Name()
		if err := CheckIdentifier(oldName); err != nil {
			return nil, err
		}
		statements = append(statements, fmt.Sprintf(
			"ALTER TABLE `%s` REORGANIZE PARTITION `%s` INTO (%s);",
			tableName, oldName, strings.Join(rendered, ", ")))
	}

	return statements, nil
}

// DropStatement renders the single statement removing the given partitions.
func DropStatement(tableName string, names []string) (string, error) {
	if err := CheckIdentifier(tableName); err != nil {
		return "", err
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		if err := CheckIdentifier(name); err != nil {
			return "", err
		}
		quoted[i] = "`" + name + "`"
	}
	return fmt.Sprintf("ALTER TABLE `%s` DROP PARTITION IF EXISTS %s ;",
		tableName, strings.Join(quoted, ",")), nil
}
