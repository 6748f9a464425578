package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Row is one result row keyed by column name. Values are int64, float64, or
// string depending on what the raw text destrings to; NULL fields are nil.
type Row map[string]any

// Runner executes SQL against a MariaDB server. Two implementations exist:
// the integrated driver and the mariadb client subprocess. The planning
// engine never sees this interface; only the query layer and the CLI do.
type Runner interface {
	Run(ctx context.Context, stmt string) ([]Row, error)
	DBName(ctx context.Context) (string, error)
	Close() error
}

// destring narrows a text value the way the client protocol loses types:
// integers first, then floats, then the string itself.
func destring(text string) any {
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v
	}
	return text
}

// IntegratedRunner speaks the wire protocol directly through the MySQL
// driver.
type IntegratedRunner struct {
	db     *sql.DB
	dbName string
}

func NewIntegratedRunner(ctx context.Context, dsn string) (*IntegratedRunner, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("DSN must name a database")
	}

	handle, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &IntegratedRunner{db: handle, dbName: cfg.DBName}, nil
}

func (r *IntegratedRunner) Run(ctx context.Context, stmt string) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("running statement: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading column names: %w", err)
	}

	var results []Row
	for rows.Next() {
		raw := make([]any, len(columns))
		for i := range raw {
			raw[i] = new(sql.NullString)
		}
		if err := rows.Scan(raw...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			ns := raw[i].(*sql.NullString)
			if !ns.Valid {
				row[col] = nil
				continue
			}
			row[col] = destring(ns.String)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

func (r *IntegratedRunner) DBName(ctx context.Context) (string, error) {
	return r.dbName, nil
}

func (r *IntegratedRunner) Close() error {
	return r.db.Close()
}
