package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BraPil/Electric-Load-Predictor/internal/config"
	"github.com/BraPil/Electric-Load-Predictor/internal/db"
	"github.com/BraPil/Electric-Load-Predictor/internal/export"
	"github.com/BraPil/Electric-Load-Predictor/internal/pipeline"
	"github.com/BraPil/Electric-Load-Predictor/internal/reader"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	var (
		input        = flag.String("input", "", "path to the raw readings zip archive (required)")
		output       = flag.String("output", "data/processed/household_power_features.csv", "feature table output path")
		hourlyOutput = flag.String("hourly-output", "data/processed/household_power_hourly.csv", "hourly table output path")
		limit        = flag.Int("limit", 0, "process only the first N raw rows (0 = all)")
		skipDB       = flag.Bool("skip-db", false, "skip the database load step")
		force        = flag.Bool("force", false, "derive features even when the quality report is not valid")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		return errors.New("-input is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	runCfg := cfg.Pipeline()
	runCfg.RowLimit = *limit
	runCfg.AllowInvalid = *force

	started := time.Now()
	logger.Info("reading raw archive", zap.String("input", *input), zap.Int("limit", *limit))

	readings, err := reader.ParseArchive(*input, runCfg.RowLimit)
	if err != nil {
		return err
	}
	logger.Info("parsed raw readings", zap.Int("rows", len(readings)))

	result, err := pipeline.Run(readings, runCfg)
	if errors.Is(err, pipeline.ErrQualityGate) {
		logReport(logger, result)
		logger.Error("quality gate failed; rerun with -force to override")
		return err
	}
	if err != nil {
		return err
	}
	logReport(logger, result)
	logger.Info("engineered features",
		zap.Int("rows", len(result.Features)),
		zap.Int("dropped_leading_rows", result.DroppedRows),
	)

	if err := writeCSV(*hourlyOutput, func(f *os.File) error {
		return export.WriteHourly(f, result.Hourly)
	}); err != nil {
		return fmt.Errorf("write hourly table: %w", err)
	}
	if err := writeCSV(*output, func(f *os.File) error {
		return export.WriteFeatures(f, result.Features, runCfg.Features)
	}); err != nil {
		return fmt.Errorf("write feature table: %w", err)
	}
	logger.Info("wrote artifacts", zap.String("hourly", *hourlyOutput), zap.String("features", *output))

	if *skipDB {
		logger.Info("skipping database load")
	} else if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, skipping database load")
	} else if err := loadDatabase(cfg, runCfg, result, logger); err != nil {
		return err
	}

	logger.Info("pipeline complete",
		zap.Int("hourly_records", len(result.Hourly)),
		zap.Int("feature_records", len(result.Features)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func logReport(logger *zap.Logger, result pipeline.Result) {
	fields := []zap.Field{
		zap.Bool("is_valid", result.Report.IsValid),
		zap.Int("rows_checked", result.Report.RowsChecked),
		zap.Float64("missing_ratio", result.Report.MissingRatio),
	}
	for _, check := range result.Report.Checks {
		if !check.Passed {
			fields = append(fields, zap.String("failed_"+check.Name, check.Detail))
		}
	}
	logger.Info("quality report", fields...)
}

func writeCSV(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadDatabase(cfg config.Config, runCfg pipeline.Config, result pipeline.Result, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.UpsertHourly(ctx, result.Hourly); err != nil {
		return err
	}
	if err := store.UpsertFeatures(ctx, result.Features, runCfg.Features); err != nil {
		return err
	}
	if err := store.InsertQualityReport(ctx, result.Report); err != nil {
		return err
	}

	logger.Info("loaded database",
		zap.Int("hourly_rows", len(result.Hourly)),
		zap.Int("feature_rows", len(result.Features)),
	)
	return nil
}
