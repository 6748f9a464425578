package partition

import (
	"fmt"
	"strings"
	"time"
)

// Table describes one managed table: its name, how long filled partitions
// are retained, how long each partition should span, and an optional query
// that resolves a position to the UTC timestamp of the first row beyond it.
type Table struct {
	Name string

	// Retention is how long data is kept before its partition becomes
	// droppable. Zero means retention-based dropping is disabled.
	Retention time.Duration

	// PartitionPeriod overrides the configured global lifespan for this
	// table. Zero means use the global default.
	PartitionPeriod time.Duration

	// EarliestUTCTimestampQuery is a single parameterised SELECT returning a
	// UNIX timestamp for the first row whose leading range column exceeds
	// the substituted value. Empty means no such query is configured and
	// the rate estimator falls back to name-derived timestamps.
	EarliestUTCTimestampQuery string
}

func (t *Table) String() string {
	return fmt.Sprintf("Table %s", t.Name)
}

// HasDateQuery reports whether the table can resolve exact row timestamps.
func (t *Table) HasDateQuery() bool {
	return t.EarliestUTCTimestampQuery != ""
}

// Lifespan returns the partition duration for this table, falling back to
// the supplied default.
func (t *Table) Lifespan(fallback time.Duration) time.Duration {
	if t.PartitionPeriod > 0 {
		return t.PartitionPeriod
	}
	return fallback
}

// ValidateEarliestQuery rejects timestamp queries that are not a single
// parameterised SELECT. The statement is interpolated with a validated
// integer and run verbatim, so anything mutating is refused outright.
func ValidateEarliestQuery(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrTableInformation)
	}
	if !strings.HasSuffix(trimmed, ";") {
		return fmt.Errorf("%w: query must end in a semicolon", ErrTableInformation)
	}
	if strings.Count(trimmed, "?") != 1 {
		return fmt.Errorf("%w: query must contain exactly one ? placeholder", ErrTableInformation)
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT ") {
		return fmt.Errorf("%w: query must be a SELECT", ErrTableInformation)
	}
	for _, word := range []string{"UPDATE", "INSERT", "DELETE", "SET", "ANALYZE"} {
		if strings.Contains(upper, word) {
			return fmt.Errorf("%w: query may not contain %s", ErrTableInformation, word)
		}
	}
	return nil
}

// EarliestQueryWithArg substitutes value for the query's single placeholder.
func (t *Table) EarliestQueryWithArg(value int64) (string, error) {
	if err := ValidateEarliestQuery(t.EarliestUTCTimestampQuery); err != nil {
		return "", err
	}
	return strings.Replace(t.EarliestUTCTimestampQuery, "?", fmt.Sprintf("%d", value), 1), nil
}
