package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/sqlgen"
)

type Config struct {
	Service    ServiceConfig          `koanf:"service"`
	Database   DatabaseConfig         `koanf:"database"`
	Partition  PartitionConfig        `koanf:"partition"`
	Prometheus PrometheusConfig       `koanf:"prometheus"`
	Tables     map[string]TableConfig `koanf:"tables"`
}

type ServiceConfig struct {
	LogLevel string `koanf:"log_level"`
}

type DatabaseConfig struct {
	// DSN selects the integrated driver. When empty, statements run through
	// the MariaDB client subprocess instead.
	DSN     string `koanf:"dsn"`
	MariaDB string `koanf:"mariadb"`
}

type PartitionConfig struct {
	PeriodDays int `koanf:"period_days"`
	NumEmpty   int `koanf:"num_empty"`
}

type PrometheusConfig struct {
	StatsPath string `koanf:"stats_path"`
}

type TableConfig struct {
	RetentionDays             int    `koanf:"retention_days"`
	PartitionPeriodDays       int    `koanf:"partition_period_days"`
	EarliestUTCTimestampQuery string `koanf:"earliest_utc_timestamp_query"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: PARTKEEPER_DATABASE__DSN → database.dsn
	if err := k.Load(env.Provider("PARTKEEPER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PARTKEEPER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			MariaDB: "mariadb",
		},
		Partition: PartitionConfig{
			PeriodDays: 30,
			NumEmpty:   2,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("config: at least one table must be configured")
	}
	if c.Partition.PeriodDays <= 0 {
		return fmt.Errorf("config: partition.period_days must be > 0 (got %d)", c.Partition.PeriodDays)
	}
	if c.Partition.NumEmpty <= 0 {
		return fmt.Errorf("config: partition.num_empty must be > 0 (got %d)", c.Partition.NumEmpty)
	}
	if c.Database.DSN == "" && c.Database.MariaDB == "" {
		return fmt.Errorf("config: either database.dsn or database.mariadb is required")
	}
	for name, tc := range c.Tables {
		if err := sqlgen.CheckIdentifier(name); err != nil {
			return fmt.Errorf("config: table %q: %w", name, err)
		}
		if tc.RetentionDays < 0 {
			return fmt.Errorf("config: table %s: retention_days must be >= 0 (got %d)", name, tc.RetentionDays)
		}
		if tc.PartitionPeriodDays < 0 {
			return fmt.Errorf("config: table %s: partition_period_days must be >= 0 (got %d)", name, tc.PartitionPeriodDays)
		}
		if tc.EarliestUTCTimestampQuery != "" {
			if err := partition.ValidateEarliestQuery(tc.EarliestUTCTimestampQuery); err != nil {
				return fmt.Errorf("config: table %s: earliest_utc_timestamp_query: %w", name, err)
			}
		}
	}
	return nil
}

// Lifespan is the configured default partition duration.
func (c *Config) Lifespan() time.Duration {
	return time.Duration(c.Partition.PeriodDays) * 24 * time.Hour
}

// DomainTables converts the table section into domain descriptors, sorted by
// name so runs are deterministic.
func (c *Config) DomainTables() []*partition.Table {
	tables := make([]*partition.Table, 0, len(c.Tables))
	for name, tc := range c.Tables {
		tables = append(tables, &partition.Table{
			Name:                      name,
			Retention:                 time.Duration(tc.RetentionDays) * 24 * time.Hour,
			PartitionPeriod:           time.Duration(tc.PartitionPeriodDays) * 24 * time.Hour,
			EarliestUTCTimestampQuery: tc.EarliestUTCTimestampQuery,
		})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}
