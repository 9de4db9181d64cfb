// Package features derives leakage-free model inputs from the validated
// hourly series: lags, rolling statistics, calendar and cyclical encodings,
// interaction terms and rate-of-change values.
//
// Every feature group is a pure function from (series, options) to new
// columns; no group mutates the hourly table or another group's output.
package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

// ErrNotContiguous indicates the hourly input has gaps or duplicates, which
// violates the transformer contract.
var ErrNotContiguous = errors.New("features: hourly series is not contiguous")

// Options configures feature derivation. Thread one immutable value through
// the run; there is no ambient state.
type Options struct {
	// LagHours lists autoregressive lookbacks in hours.
	LagHours []int
	// RollingWindows lists trailing window sizes in hours.
	RollingWindows []int
	// IncludeCalendar toggles the extended calendar block and the
	// interaction terms built from it.
	IncludeCalendar bool
	// IncludeCyclical toggles the sine/cosine encodings.
	IncludeCyclical bool
}

// DefaultOptions returns the standard feature configuration: lags of one
// hour, one day and one week; daily and weekly rolling windows.
func DefaultOptions() Options {
	return Options{
		LagHours:        []int{1, 24, 168},
		RollingWindows:  []int{24, 168},
		IncludeCalendar: true,
		IncludeCyclical: true,
	}
}

func (o Options) validate() error {
	for _, lag := range o.LagHours {
		if lag <= 0 {
			return fmt.Errorf("features: lag hours must be positive, got %d", lag)
		}
	}
	for _, w := range o.RollingWindows {
		if w <= 0 {
			return fmt.Errorf("features: rolling windows must be positive, got %d", w)
		}
	}
	return nil
}

// RollingStats summarizes one trailing window of total power.
type RollingStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// CalendarFeatures extends the bucket's basic calendar tags.
type CalendarFeatures struct {
	DayOfMonth int `json:"day_of_month"`
	DayOfYear  int `json:"day_of_year"`
	WeekOfYear int `json:"week_of_year"`
	Quarter    int `json:"quarter"`
	// Season is a 4-way code: 0 winter, 1 spring, 2 summer, 3 fall.
	Season          int  `json:"season"`
	IsBusinessHours bool `json:"is_business_hours"`
	IsPeakHours     bool `json:"is_peak_hours"`
	// HourSeason and WeekendHour are the interaction terms
	// hour x season and weekend-flag x hour.
	HourSeason  int `json:"hour_season_interaction"`
	WeekendHour int `json:"weekend_hour_interaction"`
}

// CyclicalFeatures holds sine/cosine pairs for the periodic calendar
// quantities, so hour 23 sits next to hour 0 in feature space.
type CyclicalFeatures struct {
	HourSin      float64 `json:"hour_sin"`
	HourCos      float64 `json:"hour_cos"`
	DaySin       float64 `json:"day_sin"`
	DayCos       float64 `json:"day_cos"`
	MonthSin     float64 `json:"month_sin"`
	MonthCos     float64 `json:"month_cos"`
	DayOfYearSin float64 `json:"day_of_year_sin"`
	DayOfYearCos float64 `json:"day_of_year_cos"`
}

// SubMeterShares splits consumption across the three sub-circuits.
type SubMeterShares struct {
	Total   float64 `json:"total_sub_metering"`
	Sub1Pct float64 `json:"sub1_pct"`
	Sub2Pct float64 `json:"sub2_pct"`
	Sub3Pct float64 `json:"sub3_pct"`
}

// RateFeatures holds total-power differences and their second difference.
type RateFeatures struct {
	Change1h     float64 `json:"power_change_1h"`
	Change24h    float64 `json:"power_change_24h"`
	Acceleration float64 `json:"power_acceleration"`
}

// Record is one feature row: the hourly bucket plus all derived columns.
// Calendar and Cyclical are nil when disabled by options.
type Record struct {
	models.HourlyRecord

	Lags     map[int]float64      `json:"lags"`
	Rolling  map[int]RollingStats `json:"rolling"`
	Calendar *CalendarFeatures    `json:"calendar,omitempty"`
	Cyclical *CyclicalFeatures    `json:"cyclical,omitempty"`
	Shares   SubMeterShares       `json:"shares"`
	Rates    RateFeatures         `json:"rates"`
}

// Result is the terminal artifact of the core pipeline.
type Result struct {
	Records []Record
	// Dropped counts rows removed for lacking history in a lag, rolling or
	// rate column. Bounded by the largest configured lookback.
	Dropped int
}

// Engineer derives all configured feature groups from the hourly series and
// drops rows with undefined lag, rolling or rate values. Lag and rolling
// columns use only rows at or before each record's own timestamp.
func Engineer(records []models.HourlyRecord, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Sub(records[i-1].Timestamp) != time.Hour {
			return Result{}, fmt.Errorf("%w: %s does not follow %s by one hour", ErrNotContiguous,
				records[i].Timestamp.Format(time.RFC3339), records[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	series := make([]float64, len(records))
	for i, rec := range records {
		series[i] = rec.TotalPower
	}

	lags := lagColumns(series, opts.LagHours)
	rolling := rollingColumns(series, opts.RollingWindows)
	change1 := diffColumn(series, 1)
	change24 := diffColumn(series, 24)
	accel := diffColumn(change1, 1)

	out := make([]Record, 0, len(records))
	dropped := 0
	for i, hourly := range records {
		rec := Record{
			HourlyRecord: hourly,
			Lags:         make(map[int]float64, len(opts.LagHours)),
			Rolling:      make(map[int]RollingStats, len(opts.RollingWindows)),
			Shares:       sharesFor(hourly),
			Rates: RateFeatures{
				Change1h:     change1[i],
				Change24h:    change24[i],
				Acceleration: accel[i],
			},
		}
		for _, lag := range opts.LagHours {
			rec.Lags[lag] = lags[lag][i]
		}
		for _, w := range opts.RollingWindows {
			rec.Rolling[w] = rolling[w][i]
		}
		if opts.IncludeCalendar {
			cal := calendarFor(hourly)
			rec.Calendar = &cal
		}
		if opts.IncludeCyclical {
			cyc := cyclicalFor(hourly)
			rec.Cyclical = &cyc
		}

		if rec.hasUndefined() {
			dropped++
			continue
		}
		out = append(out, rec)
	}

	return Result{Records: out, Dropped: dropped}, nil
}

// hasUndefined reports whether any history-dependent column is NaN.
func (r Record) hasUndefined() bool {
	for _, v := range r.Lags {
		if math.IsNaN(v) {
			return true
		}
	}
	for _, s := range r.Rolling {
		if math.IsNaN(s.Mean) || math.IsNaN(s.Std) || math.IsNaN(s.Min) || math.IsNaN(s.Max) {
			return true
		}
	}
	if math.IsNaN(r.Shares.Total) {
		return true
	}
	return math.IsNaN(r.Rates.Change1h) || math.IsNaN(r.Rates.Change24h) || math.IsNaN(r.Rates.Acceleration)
}

// lagColumns shifts the series by each lag. Positions without a value that
// far back, or whose source value is undefined, yield NaN.
func lagColumns(series []float64, lagHours []int) map[int][]float64 {
	cols := make(map[int][]float64, len(lagHours))
	for _, lag := range lagHours {
		col := make([]float64, len(series))
		for i := range series {
			if i < lag {
				col[i] = math.NaN()
				continue
			}
			col[i] = series[i-lag]
		}
		cols[lag] = col
	}
	return cols
}

// rollingColumns computes trailing-window statistics inclusive of the current
// row. Undefined values inside the window are skipped; a single defined
// sample is enough for a result, so the first row yields a degenerate
// single-point statistic rather than being lost.
func rollingColumns(series []float64, windows []int) map[int][]RollingStats {
	cols := make(map[int][]RollingStats, len(windows))
	for _, w := range windows {
		col := make([]RollingStats, len(series))
		for i := range series {
			start := i - w + 1
			if start < 0 {
				start = 0
			}
			col[i] = windowStats(series[start : i+1])
		}
		cols[w] = col
	}
	return cols
}

// windowStats summarizes the defined values of one window. Sample standard
// deviation, with a single-point window defined as 0.
func windowStats(window []float64) RollingStats {
	n := 0
	sum := 0.0
	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range window {
		if math.IsNaN(v) {
			continue
		}
		n++
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if n == 0 {
		nan := math.NaN()
		return RollingStats{Mean: nan, Std: nan, Min: nan, Max: nan}
	}

	mean := sum / float64(n)
	std := 0.0
	if n > 1 {
		var ss float64
		for _, v := range window {
			if math.IsNaN(v) {
				continue
			}
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(n-1))
	}
	return RollingStats{Mean: mean, Std: std, Min: min, Max: max}
}

// diffColumn is the k-step difference of the series; NaN where either operand
// is missing.
func diffColumn(series []float64, k int) []float64 {
	col := make([]float64, len(series))
	for i := range series {
		if i < k {
			col[i] = math.NaN()
			continue
		}
		col[i] = series[i] - series[i-k]
	}
	return col
}

func calendarFor(rec models.HourlyRecord) CalendarFeatures {
	t := rec.Timestamp
	_, week := t.ISOWeek()

	cal := CalendarFeatures{
		DayOfMonth: t.Day(),
		DayOfYear:  t.YearDay(),
		WeekOfYear: week,
		Quarter:    (int(t.Month())-1)/3 + 1,
		Season:     seasonOf(t.Month()),
		// Business hours: 07:00-19:00 on weekdays.
		IsBusinessHours: rec.HourOfDay >= 7 && rec.HourOfDay < 19 && !rec.IsWeekend,
		// Peak hours: the 18:00-22:00 evening ramp.
		IsPeakHours: rec.HourOfDay >= 18 && rec.HourOfDay < 22,
	}
	cal.HourSeason = rec.HourOfDay * cal.Season
	if rec.IsWeekend {
		cal.WeekendHour = rec.HourOfDay
	}
	return cal
}

// seasonOf maps months to meteorological seasons: Dec-Feb winter (0),
// Mar-May spring (1), Jun-Aug summer (2), Sep-Nov fall (3).
func seasonOf(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return 0
	case time.March, time.April, time.May:
		return 1
	case time.June, time.July, time.August:
		return 2
	default:
		return 3
	}
}

func cyclicalFor(rec models.HourlyRecord) CyclicalFeatures {
	t := rec.Timestamp
	return CyclicalFeatures{
		HourSin:      math.Sin(2 * math.Pi * float64(rec.HourOfDay) / 24),
		HourCos:      math.Cos(2 * math.Pi * float64(rec.HourOfDay) / 24),
		DaySin:       math.Sin(2 * math.Pi * float64(rec.DayOfWeek) / 7),
		DayCos:       math.Cos(2 * math.Pi * float64(rec.DayOfWeek) / 7),
		MonthSin:     math.Sin(2 * math.Pi * float64(rec.Month) / 12),
		MonthCos:     math.Cos(2 * math.Pi * float64(rec.Month) / 12),
		DayOfYearSin: math.Sin(2 * math.Pi * float64(t.YearDay()) / daysInYear(t.Year())),
		DayOfYearCos: math.Cos(2 * math.Pi * float64(t.YearDay()) / daysInYear(t.Year())),
	}
}

func daysInYear(year int) float64 {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

// sharesFor splits the hour's sub-circuit consumption into percentages of
// their total. A zero or undefined total yields zero shares.
func sharesFor(rec models.HourlyRecord) SubMeterShares {
	total := rec.SubMetering1 + rec.SubMetering2 + rec.SubMetering3
	shares := SubMeterShares{Total: total}
	if math.IsNaN(total) {
		shares.Total = math.NaN()
		return shares
	}
	if total == 0 {
		return shares
	}
	shares.Sub1Pct = rec.SubMetering1 / total * 100
	shares.Sub2Pct = rec.SubMetering2 / total * 100
	shares.Sub3Pct = rec.SubMetering3 / total * 100
	return shares
}
