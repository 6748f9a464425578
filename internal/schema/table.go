package schema

import (
	"fmt"
	"strings"

	"github.com/seqpart/partkeeper/internal/partition"
)

// Column is one row of a DESCRIBE result.
type Column struct {
	Field string
	Type  string
}

// ColumnNames extracts the field names in result order.
func ColumnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Field
	}
	return names
}

// CheckCreateOptions verifies the INFORMATION_SCHEMA CREATE_OPTIONS value of
// a candidate table. Anything without the partitioned flag is incompatible.
func CheckCreateOptions(options string) error {
	if !strings.Contains(options, "partitioned") {
		return fmt.Errorf("%w: table is not partitioned (CREATE_OPTIONS=%q)",
			partition.ErrTableInformation, options)
	}
	return nil
}
