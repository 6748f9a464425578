package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seqpart/partkeeper/internal/bootstrap"
	"github.com/seqpart/partkeeper/internal/config"
	"github.com/seqpart/partkeeper/internal/db"
	"github.com/seqpart/partkeeper/internal/drop"
	"github.com/seqpart/partkeeper/internal/metrics"
	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/plan"
	"github.com/seqpart/partkeeper/internal/schema"
	"github.com/seqpart/partkeeper/internal/sqlgen"
	"github.com/seqpart/partkeeper/internal/stats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		runAdd()
	case "drop":
		runDrop()
	case "stats":
		runStats()
	case "checkpoint":
		runCheckpoint()
	case "bootstrap":
		runBootstrap()
	case "check":
		runCheck()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: partkeeper <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  add          Plan and apply partition maintenance for configured tables")
	fmt.Println("  drop         Drop partitions older than each table's retention period")
	fmt.Println("  stats        Report partition statistics (and write the Prometheus textfile)")
	fmt.Println("  checkpoint   Write a state snapshot of current range-column positions")
	fmt.Println("  bootstrap    Emit shadow-table rebuild scripts from a prior snapshot")
	fmt.Println("  check        Verify configured tables are compatible")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>    Path to configuration YAML file")
	fmt.Println("  --log-level <lvl>  Override log level (debug, info, warn, error)")
	fmt.Println("  --noop             Print SQL instead of executing it")
	fmt.Println("  --in <path>        Snapshot file to read (bootstrap)")
	fmt.Println("  --out <path>       Snapshot file to write (checkpoint)")
}

type flags struct {
	configPath string
	logLevel   string
	noop       bool
	inPath     string
	outPath    string
}

func parseFlags(args []string) flags {
	var f flags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				f.configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				f.logLevel = args[i+1]
				i++
			}
		case "--noop", "-n":
			f.noop = true
		case "--in":
			if i+1 < len(args) {
				f.inPath = args[i+1]
				i++
			}
		case "--out":
			if i+1 < len(args) {
				f.outPath = args[i+1]
				i++
			}
		}
	}
	return f
}

func loadConfig(args []string) (*config.Config, flags, *zap.Logger) {
	f := parseFlags(args)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if f.logLevel != "" {
		cfg.Service.LogLevel = f.logLevel
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, f, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger) db.Runner {
	if cfg.Database.DSN != "" {
		runner, err := db.NewIntegratedRunner(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to connect to database",
				zap.String("dsn", redactDSN(cfg.Database.DSN)), zap.Error(err))
		}
		return runner
	}
	return db.NewSubprocessRunner(cfg.Database.MariaDB)
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		// user:pass@tcp(host)/db format
		re := regexp.MustCompile(`^([^:@]+):[^@]+@`)
		return re.ReplaceAllString(dsn, "$1:***@")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func runAdd() {
	cfg, f, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	evalTime := time.Now().UTC()
	lifespanDefault := cfg.Lifespan()

	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))

		if err := db.CheckCompatibility(ctx, runner, table.Name); err != nil {
			log.Error("table is not compatible", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "compatibility").Inc()
			continue
		}

		m, err := db.FetchPartitionMap(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to read partition map", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "parse").Inc()
			continue
		}
		current, err := db.FetchCurrentPositions(ctx, runner, table.Name, m.RangeCols)
		if err != nil {
			log.Error("failed to read current positions", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "positions").Inc()
			continue
		}

		var exact plan.ExactTimeFunc
		if table.HasDateQuery() {
			exact = db.ExactTimeFunc(ctx, runner, table)
		}

		tablePlan, err := plan.Build(table, m.Partitions, current, evalTime,
			table.Lifespan(lifespanDefault), cfg.Partition.NumEmpty, exact)
		if err != nil {
			if errors.Is(err, partition.ErrNoEmptyPartitions) {
				log.Warn("table has no empty partitions; run checkpoint + bootstrap instead")
			} else {
				log.Error("planning failed", zap.Error(err))
			}
			metrics.ErrorsTotal.WithLabelValues(table.Name, "plan").Inc()
			continue
		}

		if !tablePlan.ShouldRun() {
			log.Info("no partition changes needed")
			continue
		}

		statements, err := sqlgen.ReorganizeStatements(table.Name, tablePlan.Entries)
		if err != nil {
			log.Error("rendering SQL failed", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "render").Inc()
			continue
		}

		if f.noop {
			for _, stmt := range statements {
				log.Info("planned SQL", zap.String("sql", stmt))
				fmt.Println(stmt)
			}
			continue
		}

		start := time.Now()
		failed := false
		for _, stmt := range statements {
			log.Info("running SQL", zap.String("sql", stmt))
			if _, err := runner.Run(ctx, stmt); err != nil {
				log.Error("ALTER failed", zap.String("sql", stmt), zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues(table.Name, "alter").Inc()
				failed = true
				break
			}
		}
		if !failed {
			metrics.AlterDuration.WithLabelValues(table.Name).Set(time.Since(start).Seconds())
			log.Info("partition maintenance complete", zap.Duration("took", time.Since(start)))
		}
	}

	if cfg.Prometheus.StatsPath != "" {
		collectStats(ctx, runner, cfg, logger)
		if err := metrics.WriteTextfile(cfg.Prometheus.StatsPath); err != nil {
			logger.Error("failed to write stats file", zap.Error(err))
		}
	}
}

func runDrop() {
	cfg, f, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	now := time.Now().UTC()

	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))
		if table.Retention <= 0 {
			log.Debug("no retention period configured, skipping")
			continue
		}

		m, err := db.FetchPartitionMap(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to read partition map", zap.Error(err))
			continue
		}
		current, err := db.FetchCurrentPositions(ctx, runner, table.Name, m.RangeCols)
		if err != nil {
			log.Error("failed to read current positions", zap.Error(err))
			continue
		}

		report, err := drop.PlanDroppable(table, m.Partitions, current, now,
			db.ExactTimeFunc(ctx, runner, table))
		if err != nil {
			log.Error("drop planning failed", zap.Error(err))
			continue
		}
		if report.Statement == "" {
			log.Info("nothing to drop")
			continue
		}

		for _, entry := range report.Entries {
			if entry.HasExactTimes {
				log.Info("partition is droppable",
					zap.String("partition", entry.Name),
					zap.Time("oldest_row", entry.OldestTime),
					zap.Time("youngest_row", entry.YoungestTime),
					zap.Int64("approx_rows", entry.ApproxSize),
				)
			} else {
				log.Info("partition is droppable (no rows matched the timestamp query)",
					zap.String("partition", entry.Name),
					zap.Int64("approx_rows", entry.ApproxSize),
				)
			}
		}

		if f.noop {
			log.Info("planned SQL", zap.String("sql", report.Statement))
			fmt.Println(report.Statement)
			continue
		}
		log.Info("running SQL", zap.String("sql", report.Statement))
		if _, err := runner.Run(ctx, report.Statement); err != nil {
			log.Error("DROP failed", zap.Error(err))
		}
	}
}

func runStats() {
	cfg, _, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	collectStats(ctx, runner, cfg, logger)

	if cfg.Prometheus.StatsPath != "" {
		if err := metrics.WriteTextfile(cfg.Prometheus.StatsPath); err != nil {
			logger.Error("failed to write stats file", zap.Error(err))
		}
	}
}

func collectStats(ctx context.Context, runner db.Runner, cfg *config.Config, logger *zap.Logger) {
	now := time.Now().UTC()
	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))

		m, err := db.FetchPartitionMap(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to read partition map", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "stats").Inc()
			continue
		}
		s, err := stats.Gather(m.Partitions, now)
		if err != nil {
			log.Error("failed to compute statistics", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues(table.Name, "stats").Inc()
			continue
		}

		metrics.PartitionsTotal.WithLabelValues(table.Name).Set(float64(s.PartitionCount))
		if s.HasNewestAge {
			metrics.TimeSinceNewestPartition.WithLabelValues(table.Name).Set(s.TimeSinceNewest.Seconds())
		}
		if s.HasOldestAge {
			metrics.TimeSinceOldestPartition.WithLabelValues(table.Name).Set(s.TimeSinceOldest.Seconds())
		}
		if s.HasMeanDelta {
			metrics.MeanPartitionDelta.WithLabelValues(table.Name).Set(s.MeanDelta.Seconds())
		}
		if s.HasMaxDelta {
			metrics.MaxPartitionDelta.WithLabelValues(table.Name).Set(s.MaxDelta.Seconds())
		}

		log.Info("partition statistics",
			zap.Int("partitions", s.PartitionCount),
			zap.Duration("time_since_newest", s.TimeSinceNewest),
			zap.Duration("time_since_oldest", s.TimeSinceOldest),
			zap.Duration("mean_delta", s.MeanDelta),
			zap.Duration("max_delta", s.MaxDelta),
		)
	}
}

func runCheckpoint() {
	cfg, f, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	snapshot := &bootstrap.Snapshot{
		Time:   time.Now().UTC(),
		Tables: make(map[string]map[string]int64),
	}

	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))

		if err := db.CheckCompatibility(ctx, runner, table.Name); err != nil {
			log.Error("table is not compatible", zap.Error(err))
			continue
		}
		m, err := db.FetchPartitionMap(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to read partition map", zap.Error(err))
			continue
		}
		current, err := db.FetchCurrentPositions(ctx, runner, table.Name, m.RangeCols)
		if err != nil {
			log.Error("failed to read current positions", zap.Error(err))
			continue
		}

		positions := make(map[string]int64, len(m.RangeCols))
		for i, col := range m.RangeCols {
			positions[col] = current[i]
		}
		snapshot.Tables[table.Name] = positions
		log.Info("captured positions", zap.Any("positions", positions))
	}

	out := os.Stdout
	if f.outPath != "" {
		file, err := os.Create(f.outPath)
		if err != nil {
			logger.Fatal("failed to create snapshot file", zap.Error(err))
		}
		defer file.Close()
		out = file
	}
	if err := bootstrap.WriteSnapshot(out, snapshot); err != nil {
		logger.Fatal("failed to write snapshot", zap.Error(err))
	}
}

func runBootstrap() {
	cfg, f, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if f.inPath == "" {
		fmt.Fprintln(os.Stderr, "bootstrap requires --in <snapshot>")
		os.Exit(1)
	}
	file, err := os.Open(f.inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot: %v\n", err)
		os.Exit(1)
	}
	snapshot, err := bootstrap.ReadSnapshot(file)
	file.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	evalTime := time.Now().UTC()

	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))

		if _, ok := snapshot.Tables[table.Name]; !ok {
			log.Info("not in the snapshot, skipping")
			continue
		}
		if err := db.CheckCompatibility(ctx, runner, table.Name); err != nil {
			log.Error("table is not compatible", zap.Error(err))
			continue
		}
		m, err := db.FetchPartitionMap(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to read partition map", zap.Error(err))
			continue
		}
		columns, err := db.FetchColumns(ctx, runner, table.Name)
		if err != nil {
			log.Error("failed to describe table", zap.Error(err))
			continue
		}
		current, err := db.FetchCurrentPositions(ctx, runner, table.Name, m.RangeCols)
		if err != nil {
			log.Error("failed to read current positions", zap.Error(err))
			continue
		}

		statements, err := bootstrap.Script(table, m, schema.ColumnNames(columns), current,
			snapshot, evalTime, table.Lifespan(cfg.Lifespan()), cfg.Partition.NumEmpty)
		if err != nil {
			log.Error("bootstrap planning failed", zap.Error(err))
			continue
		}

		log.Info("bootstrap script ready",
			zap.String("shadow_table", bootstrap.ShadowName(table.Name, evalTime)),
			zap.Int("statements", len(statements)),
		)
		for _, stmt := range statements {
			fmt.Println(stmt)
		}
	}
}

func runCheck() {
	cfg, _, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	ctx := context.Background()
	runner := newRunner(ctx, cfg, logger)
	defer runner.Close()

	for _, table := range cfg.DomainTables() {
		log := logger.With(zap.String("table", table.Name))
		if err := db.CheckCompatibility(ctx, runner, table.Name); err != nil {
			log.Error("incompatible", zap.Error(err))
			continue
		}
		if _, err := db.FetchPartitionMap(ctx, runner, table.Name); err != nil {
			log.Error("partition map unusable", zap.Error(err))
			continue
		}
		log.Info("compatible")
	}
}
