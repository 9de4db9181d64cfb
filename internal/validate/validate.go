// Package validate runs schema and range checks over the hourly series and
// summarizes them in a quality report.
package validate

import (
	"fmt"
	"math"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

// Options holds the table-level validation tunables.
type Options struct {
	// MaxMissingRatio is the highest tolerated fraction of hourly rows
	// flagged MISSING_DATA before the whole table is rejected.
	MaxMissingRatio float64
}

// DefaultOptions returns the standard validator configuration.
func DefaultOptions() Options {
	return Options{MaxMissingRatio: 0.10}
}

// CheckResult is the outcome of one independent validation check.
type CheckResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Violations int    `json:"violations"`
	Detail     string `json:"detail,omitempty"`
}

// Report summarizes a validation run. IsValid combines every check; range
// violations keep their rows, they only count against the report.
type Report struct {
	Checks       []CheckResult              `json:"checks"`
	RowsChecked  int                        `json:"rows_checked"`
	FlagCounts   map[models.QualityFlag]int `json:"flag_counts"`
	MissingRatio float64                    `json:"missing_ratio"`
	IsValid      bool                       `json:"is_valid"`
}

// Check looks up a check result by name.
func (r Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// rangeCheck is one composable per-row predicate: a named absolute physical
// bound on an aggregated value. NaN values are skipped here; they already
// carry the MISSING_DATA flag and count against the missing-ratio check.
type rangeCheck struct {
	name     string
	value    func(models.HourlyRecord) float64
	min, max float64
}

var rangeChecks = []rangeCheck{
	{"active_power_range", func(h models.HourlyRecord) float64 { return h.GlobalActivePower }, 0, 20},
	{"reactive_power_range", func(h models.HourlyRecord) float64 { return h.GlobalReactivePower }, 0, 5},
	{"voltage_range", func(h models.HourlyRecord) float64 { return h.Voltage }, 200, 260},
	{"intensity_range", func(h models.HourlyRecord) float64 { return h.GlobalIntensity }, 0, 100},
	{"sub_metering_1_range", func(h models.HourlyRecord) float64 { return h.SubMetering1 }, 0, math.Inf(1)},
	{"sub_metering_2_range", func(h models.HourlyRecord) float64 { return h.SubMetering2 }, 0, math.Inf(1)},
	{"sub_metering_3_range", func(h models.HourlyRecord) float64 { return h.SubMetering3 }, 0, math.Inf(1)},
}

// Validate runs all checks over the hourly series without mutating it.
func Validate(records []models.HourlyRecord, opts Options) Report {
	report := Report{
		RowsChecked: len(records),
		FlagCounts:  make(map[models.QualityFlag]int),
	}
	for _, rec := range records {
		report.FlagCounts[rec.QualityFlag]++
	}

	report.Checks = append(report.Checks, checkUniqueTimestamps(records))
	report.Checks = append(report.Checks, checkChronologicalOrder(records))
	for _, rc := range rangeChecks {
		report.Checks = append(report.Checks, rc.run(records))
	}
	missing, ratio := checkMissingRatio(records, opts.MaxMissingRatio)
	report.MissingRatio = ratio
	report.Checks = append(report.Checks, missing)

	report.IsValid = true
	for _, c := range report.Checks {
		if !c.Passed {
			report.IsValid = false
			break
		}
	}
	return report
}

func checkUniqueTimestamps(records []models.HourlyRecord) CheckResult {
	res := CheckResult{Name: "unique_timestamps", Passed: true}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Equal(records[i-1].Timestamp) {
			res.Violations++
		}
	}
	if res.Violations > 0 {
		res.Passed = false
		res.Detail = "duplicate bucket timestamps found"
	}
	return res
}

func checkChronologicalOrder(records []models.HourlyRecord) CheckResult {
	res := CheckResult{Name: "chronological_order", Passed: true}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			res.Violations++
		}
	}
	if res.Violations > 0 {
		res.Passed = false
		res.Detail = "bucket timestamps are not strictly increasing"
	}
	return res
}

func (rc rangeCheck) run(records []models.HourlyRecord) CheckResult {
	res := CheckResult{Name: rc.name, Passed: true}
	for _, rec := range records {
		v := rc.value(rec)
		if math.IsNaN(v) {
			continue
		}
		if v < rc.min || v > rc.max {
			res.Violations++
		}
	}
	if res.Violations > 0 {
		res.Passed = false
		res.Detail = fmt.Sprintf("%d values outside [%g, %g]", res.Violations, rc.min, rc.max)
	}
	return res
}

func checkMissingRatio(records []models.HourlyRecord, maxRatio float64) (CheckResult, float64) {
	res := CheckResult{Name: "missing_data_ratio", Passed: true}
	if len(records) == 0 {
		return res, 0
	}

	missing := 0
	for _, rec := range records {
		if rec.QualityFlag == models.QualityMissingData {
			missing++
		}
	}
	ratio := float64(missing) / float64(len(records))
	res.Violations = missing
	if ratio > maxRatio {
		res.Passed = false
		res.Detail = fmt.Sprintf("%.1f%% of rows flagged MISSING_DATA, limit %.1f%%", ratio*100, maxRatio*100)
	}
	return res, ratio
}
