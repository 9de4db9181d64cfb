// Package pipeline composes the transform, validate and featurize stages
// into one batch run with an explicit quality gate.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/BraPil/Electric-Load-Predictor/internal/features"
	"github.com/BraPil/Electric-Load-Predictor/internal/models"
	"github.com/BraPil/Electric-Load-Predictor/internal/transform"
	"github.com/BraPil/Electric-Load-Predictor/internal/validate"
)

// ErrQualityGate signals that table-level validation failed and feature
// derivation was refused. The returned Result still carries the hourly table
// and the report so the caller can inspect, re-ingest or override.
var ErrQualityGate = errors.New("pipeline: quality report is not valid")

// Config is the single explicit configuration value threaded through a run.
type Config struct {
	// RowLimit truncates parsing to the first N raw rows; zero means all.
	// It is consumed by the reader, carried here so one value configures
	// the whole run.
	RowLimit int

	Transform transform.Options
	Validate  validate.Options
	Features  features.Options

	// AllowInvalid proceeds into feature derivation despite a failed
	// quality report. Off by default; overriding is a caller decision.
	AllowInvalid bool
}

// DefaultConfig returns the standard configuration for every stage.
func DefaultConfig() Config {
	return Config{
		Transform: transform.DefaultOptions(),
		Validate:  validate.DefaultOptions(),
		Features:  features.DefaultOptions(),
	}
}

// Result carries every stage output of one run. Each table is produced fresh;
// no stage mutates its predecessor's output.
type Result struct {
	Hourly   []models.HourlyRecord
	Report   validate.Report
	Features []features.Record

	// DroppedRows counts feature rows removed for insufficient history.
	DroppedRows int
}

// Run executes transform, validate and featurize over sorted raw readings.
// Structural and parse-contract violations return an error with an empty
// result; a failed quality gate returns the partial result alongside
// ErrQualityGate unless cfg.AllowInvalid is set.
func Run(readings []models.RawReading, cfg Config) (Result, error) {
	hourly, err := transform.Transform(readings, cfg.Transform)
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}

	result := Result{Hourly: hourly}
	result.Report = validate.Validate(hourly, cfg.Validate)
	if !result.Report.IsValid && !cfg.AllowInvalid {
		return result, ErrQualityGate
	}

	engineered, err := features.Engineer(hourly, cfg.Features)
	if err != nil {
		return result, fmt.Errorf("engineer features: %w", err)
	}
	result.Features = engineered.Records
	result.DroppedRows = engineered.Dropped

	return result, nil
}
