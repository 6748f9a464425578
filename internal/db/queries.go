package db

import (
	"context"
	"fmt"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/plan"
	"github.com/seqpart/partkeeper/internal/schema"
	"github.com/seqpart/partkeeper/internal/sqlgen"
)

// FetchCreateStatement returns the Create Table text for a table.
func FetchCreateStatement(ctx context.Context, r Runner, table string) (string, error) {
	if err := sqlgen.CheckIdentifier(table); err != nil {
		return "", err
	}
	rows, err := r.Run(ctx, fmt.Sprintf("SHOW CREATE TABLE `%s`;", table))
	if err != nil {
		return "", err
	}
	if len(rows) != 1 {
		return "", fmt.Errorf("%w: SHOW CREATE TABLE returned %d rows for %s",
			partition.ErrTableInformation, len(rows), table)
	}
	text, ok := rows[0]["Create Table"].(string)
	if !ok {
		return "", fmt.Errorf("%w: SHOW CREATE TABLE row lacks a Create Table column",
			partition.ErrTableInformation)
	}
	return text, nil
}

// FetchPartitionMap fetches and parses a table's partition layout.
func FetchPartitionMap(ctx context.Context, r Runner, table string) (*schema.Map, error) {
	text, err := FetchCreateStatement(ctx, r, table)
	if err != nil {
		return nil, err
	}
	return schema.ParseCreateTable(text)
}

// FetchCurrentPositions reads the newest value of each range column, one
// query per column as the columns may be covered by different indexes.
func FetchCurrentPositions(ctx context.Context, r Runner, table string, rangeCols []string) (partition.Position, error) {
	if err := sqlgen.CheckIdentifier(table); err != nil {
		return nil, err
	}
	values := make(partition.Position, 0, len(rangeCols))
	for _, col := range rangeCols {
		if err := sqlgen.CheckIdentifier(col); err != nil {
			return nil, err
		}
		rows, err := r.Run(ctx, fmt.Sprintf("SELECT `%s` FROM `%s` ORDER BY `%s` DESC LIMIT 1;", col, table, col))
		if err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("%w: no current value for %s.%s",
				partition.ErrTableInformation, table, col)
		}
		v, ok := rows[0][col].(int64)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not an integer (got %v)",
				partition.ErrTableInformation, table, col, rows[0][col])
		}
		values = append(values, v)
	}
	return values, nil
}

// CheckCompatibility rejects tables the information schema does not report
// as partitioned.
func CheckCompatibility(ctx context.Context, r Runner, table string) error {
	if err := sqlgen.CheckIdentifier(table); err != nil {
		return err
	}
	dbName, err := r.DBName(ctx)
	if err != nil {
		return err
	}
	if err := sqlgen.CheckIdentifier(dbName); err != nil {
		return err
	}
	rows, err := r.Run(ctx, fmt.Sprintf(
		"SELECT CREATE_OPTIONS FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA='%s' AND TABLE_NAME='%s';",
		dbName, table))
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return fmt.Errorf("%w: %s.%s not found in the information schema",
			partition.ErrTableInformation, dbName, table)
	}
	options, _ := rows[0]["CREATE_OPTIONS"].(string)
	return schema.CheckCreateOptions(options)
}

// FetchColumns lists the table's columns via DESCRIBE.
func FetchColumns(ctx context.Context, r Runner, table string) ([]schema.Column, error) {
	if err := sqlgen.CheckIdentifier(table); err != nil {
		return nil, err
	}
	rows, err := r.Run(ctx, fmt.Sprintf("DESCRIBE `%s`;", table))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: DESCRIBE %s returned nothing", partition.ErrTableInformation, table)
	}
	columns := make([]schema.Column, 0, len(rows))
	for _, row := range rows {
		field, ok := row["Field"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: DESCRIBE row lacks a Field column", partition.ErrTableInformation)
		}
		colType, _ := row["Type"].(string)
		columns = append(columns, schema.Column{Field: field, Type: colType})
	}
	return columns, nil
}

// ExactTimeFunc wires a table's earliest-timestamp query to the planner and
// dropper: given a bounded partition, it resolves the UTC timestamp of the
// oldest row strictly beyond the partition's leading bound.
func ExactTimeFunc(ctx context.Context, r Runner, table *partition.Table) plan.ExactTimeFunc {
	return func(b partition.Bounded) (time.Time, error) {
		stmt, err := table.EarliestQueryWithArg(b.Position()[0])
		if err != nil {
			return time.Time{}, err
		}
		rows, err := r.Run(ctx, stmt)
		if err != nil {
			return time.Time{}, err
		}
		if len(rows) != 1 {
			return time.Time{}, fmt.Errorf("%w: %d rows for %s beyond %s",
				partition.ErrNoExactTime, len(rows), table.Name, b.Name())
		}
		if len(rows[0]) != 1 {
			return time.Time{}, fmt.Errorf("%w: expected a single column for %s beyond %s",
				partition.ErrNoExactTime, table.Name, b.Name())
		}
		for _, v := range rows[0] {
			ts, ok := v.(int64)
			if !ok {
				return time.Time{}, fmt.Errorf("%w: non-integer timestamp %v", partition.ErrNoExactTime, v)
			}
			return time.Unix(ts, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%w: empty row", partition.ErrNoExactTime)
	}
}
