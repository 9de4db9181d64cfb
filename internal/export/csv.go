// Package export writes the hourly and feature tables as CSV artifacts with
// a deterministic column schema.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/BraPil/Electric-Load-Predictor/internal/features"
	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

const timestampLayout = time.RFC3339

// hourlyBase is the stable leading schema shared by both artifacts.
var hourlyBase = []string{
	"timestamp",
	"global_active_power",
	"global_reactive_power",
	"voltage",
	"global_intensity",
	"sub_metering_1",
	"sub_metering_2",
	"sub_metering_3",
	"total_power",
	"quality_flag",
	"completeness",
	"hour_of_day",
	"day_of_week",
	"month",
	"is_weekend",
}

// HourlyColumns returns the hourly artifact schema.
func HourlyColumns() []string {
	cols := make([]string, len(hourlyBase))
	copy(cols, hourlyBase)
	return cols
}

// FeatureColumns returns the feature artifact schema for the given options.
// Column names and order are deterministic given the same configuration.
func FeatureColumns(opts features.Options) []string {
	cols := HourlyColumns()
	return append(cols, DerivedColumns(opts)...)
}

// DerivedColumns lists the engineered column names, in output order.
func DerivedColumns(opts features.Options) []string {
	var cols []string
	for _, lag := range opts.LagHours {
		cols = append(cols, fmt.Sprintf("total_power_lag_%dh", lag))
	}
	for _, w := range opts.RollingWindows {
		cols = append(cols,
			fmt.Sprintf("total_power_rolling_mean_%dh", w),
			fmt.Sprintf("total_power_rolling_std_%dh", w),
			fmt.Sprintf("total_power_rolling_min_%dh", w),
			fmt.Sprintf("total_power_rolling_max_%dh", w),
		)
	}
	if opts.IncludeCalendar {
		cols = append(cols,
			"day_of_month", "day_of_year", "week_of_year", "quarter", "season",
			"is_business_hours", "is_peak_hours",
			"hour_season_interaction", "weekend_hour_interaction",
		)
	}
	if opts.IncludeCyclical {
		cols = append(cols,
			"hour_sin", "hour_cos",
			"day_sin", "day_cos",
			"month_sin", "month_cos",
			"day_of_year_sin", "day_of_year_cos",
		)
	}
	cols = append(cols,
		"total_sub_metering", "sub1_pct", "sub2_pct", "sub3_pct",
		"power_change_1h", "power_change_24h", "power_acceleration",
	)
	return cols
}

// DerivedMap returns the engineered columns of one record keyed by their
// canonical names, for sinks that store them as a document.
func DerivedMap(rec features.Record, opts features.Options) map[string]float64 {
	names := DerivedColumns(opts)
	values := derivedValues(rec, opts)
	m := make(map[string]float64, len(names))
	for i, name := range names {
		m[name] = values[i]
	}
	return m
}

func derivedValues(rec features.Record, opts features.Options) []float64 {
	var vals []float64
	for _, lag := range opts.LagHours {
		vals = append(vals, rec.Lags[lag])
	}
	for _, w := range opts.RollingWindows {
		s := rec.Rolling[w]
		vals = append(vals, s.Mean, s.Std, s.Min, s.Max)
	}
	if opts.IncludeCalendar {
		cal := rec.Calendar
		vals = append(vals,
			float64(cal.DayOfMonth), float64(cal.DayOfYear), float64(cal.WeekOfYear),
			float64(cal.Quarter), float64(cal.Season),
			boolFloat(cal.IsBusinessHours), boolFloat(cal.IsPeakHours),
			float64(cal.HourSeason), float64(cal.WeekendHour),
		)
	}
	if opts.IncludeCyclical {
		cyc := rec.Cyclical
		vals = append(vals,
			cyc.HourSin, cyc.HourCos,
			cyc.DaySin, cyc.DayCos,
			cyc.MonthSin, cyc.MonthCos,
			cyc.DayOfYearSin, cyc.DayOfYearCos,
		)
	}
	vals = append(vals,
		rec.Shares.Total, rec.Shares.Sub1Pct, rec.Shares.Sub2Pct, rec.Shares.Sub3Pct,
		rec.Rates.Change1h, rec.Rates.Change24h, rec.Rates.Acceleration,
	)
	return vals
}

// WriteHourly writes the hourly table as CSV.
func WriteHourly(w io.Writer, records []models.HourlyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HourlyColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(hourlyRow(rec)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.Timestamp.Format(timestampLayout), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatures writes the feature table as CSV using the schema implied by
// the options the records were engineered with.
func WriteFeatures(w io.Writer, records []features.Record, opts features.Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureColumns(opts)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := hourlyRow(rec.HourlyRecord)
		for _, v := range derivedValues(rec, opts) {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", rec.Timestamp.Format(timestampLayout), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func hourlyRow(rec models.HourlyRecord) []string {
	return []string{
		rec.Timestamp.Format(timestampLayout),
		formatFloat(rec.GlobalActivePower),
		formatFloat(rec.GlobalReactivePower),
		formatFloat(rec.Voltage),
		formatFloat(rec.GlobalIntensity),
		formatFloat(rec.SubMetering1),
		formatFloat(rec.SubMetering2),
		formatFloat(rec.SubMetering3),
		formatFloat(rec.TotalPower),
		string(rec.QualityFlag),
		formatFloat(rec.Completeness),
		strconv.Itoa(rec.HourOfDay),
		strconv.Itoa(rec.DayOfWeek),
		strconv.Itoa(rec.Month),
		formatBool(rec.IsWeekend),
	}
}

// formatFloat renders undefined values as empty cells.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
