package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

// hourlySeries builds n contiguous OK buckets with a deterministic load shape.
func hourlySeries(n int) []models.HourlyRecord {
	start := time.Date(2007, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.HourlyRecord, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		active := 1 + 0.1*float64(i%24) + 0.01*float64(i%7)
		rec := models.HourlyRecord{
			Timestamp:           ts,
			GlobalActivePower:   active,
			GlobalReactivePower: 0.2,
			Voltage:             240,
			GlobalIntensity:     10,
			SubMetering1:        10,
			SubMetering2:        20,
			SubMetering3:        70,
			TotalPower:          active + 0.2,
			QualityFlag:         models.QualityOK,
			Completeness:        1,
			HourOfDay:           ts.Hour(),
			DayOfWeek:           (int(ts.Weekday()) + 6) % 7,
			Month:               int(ts.Month()),
		}
		rec.IsWeekend = rec.DayOfWeek >= 5
		out = append(out, rec)
	}
	return out
}

func TestEngineerDropsExactlyLargestLookback(t *testing.T) {
	hourly := hourlySeries(400)
	result, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 168, result.Dropped)
	require.Len(t, result.Records, 400-168)
	assert.Equal(t, hourly[168].Timestamp, result.Records[0].Timestamp)
}

func TestLagValuesMatchDirectLookup(t *testing.T) {
	hourly := hourlySeries(400)
	result, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	for j, rec := range result.Records {
		i := j + 168 // index into the hourly table
		require.Equal(t, hourly[i].Timestamp, rec.Timestamp)
		for _, lag := range []int{1, 24, 168} {
			assert.Equal(t, hourly[i-lag].TotalPower, rec.Lags[lag],
				"lag %dh at %s", lag, rec.Timestamp)
		}
	}
}

func TestCyclicalEncodingsOnUnitCircle(t *testing.T) {
	result, err := Engineer(hourlySeries(400), DefaultOptions())
	require.NoError(t, err)

	for _, rec := range result.Records {
		cyc := rec.Cyclical
		require.NotNil(t, cyc)
		for _, pair := range [][2]float64{
			{cyc.HourSin, cyc.HourCos},
			{cyc.DaySin, cyc.DayCos},
			{cyc.MonthSin, cyc.MonthCos},
			{cyc.DayOfYearSin, cyc.DayOfYearCos},
		} {
			assert.InDelta(t, 1.0, pair[0]*pair[0]+pair[1]*pair[1], 1e-9)
		}
	}
}

func TestRollingStatsMatchManualWindow(t *testing.T) {
	hourly := hourlySeries(400)
	result, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	rec := result.Records[50]
	i := 50 + 168

	window := make([]float64, 0, 24)
	for k := i - 23; k <= i; k++ {
		window = append(window, hourly[k].TotalPower)
	}

	var sum, min, max float64
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, v := range window {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(window))
	var ss float64
	for _, v := range window {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(window)-1))

	stats := rec.Rolling[24]
	assert.InDelta(t, mean, stats.Mean, 1e-12)
	assert.InDelta(t, std, stats.Std, 1e-12)
	assert.InDelta(t, min, stats.Min, 1e-12)
	assert.InDelta(t, max, stats.Max, 1e-12)
}

func TestRollingFirstRowIsDegenerateSinglePoint(t *testing.T) {
	series := []float64{5, 6, 7}
	cols := rollingColumns(series, []int{24})

	first := cols[24][0]
	assert.Equal(t, 5.0, first.Mean)
	assert.Equal(t, 0.0, first.Std)
	assert.Equal(t, 5.0, first.Min)
	assert.Equal(t, 5.0, first.Max)
}

func TestRollingSkipsUndefinedValues(t *testing.T) {
	series := []float64{math.NaN(), 4, 6}
	cols := rollingColumns(series, []int{3})

	assert.True(t, math.IsNaN(cols[3][0].Mean))
	assert.Equal(t, 4.0, cols[3][1].Mean)
	assert.Equal(t, 5.0, cols[3][2].Mean)
}

func TestRateFeatures(t *testing.T) {
	hourly := hourlySeries(400)
	result, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	rec := result.Records[10]
	i := 10 + 168
	assert.InDelta(t, hourly[i].TotalPower-hourly[i-1].TotalPower, rec.Rates.Change1h, 1e-12)
	assert.InDelta(t, hourly[i].TotalPower-hourly[i-24].TotalPower, rec.Rates.Change24h, 1e-12)

	prevChange := hourly[i-1].TotalPower - hourly[i-2].TotalPower
	assert.InDelta(t, rec.Rates.Change1h-prevChange, rec.Rates.Acceleration, 1e-12)
}

func TestCalendarFeatures(t *testing.T) {
	hourly := hourlySeries(400)
	opts := DefaultOptions()
	result, err := Engineer(hourly, opts)
	require.NoError(t, err)

	var rec *Record
	target := time.Date(2007, 1, 14, 19, 0, 0, 0, time.UTC) // Sunday evening
	for i := range result.Records {
		if result.Records[i].Timestamp.Equal(target) {
			rec = &result.Records[i]
			break
		}
	}
	require.NotNil(t, rec)

	cal := rec.Calendar
	require.NotNil(t, cal)
	assert.Equal(t, 14, cal.DayOfMonth)
	assert.Equal(t, 14, cal.DayOfYear)
	assert.Equal(t, 2, cal.WeekOfYear)
	assert.Equal(t, 1, cal.Quarter)
	assert.Equal(t, 0, cal.Season) // January is winter
	assert.False(t, cal.IsBusinessHours)
	assert.True(t, cal.IsPeakHours)
	assert.Equal(t, 0, cal.HourSeason)   // hour 19 x season 0
	assert.Equal(t, 19, cal.WeekendHour) // weekend x hour
}

func TestSeasonCodes(t *testing.T) {
	cases := map[time.Month]int{
		time.January: 0, time.February: 0, time.December: 0,
		time.March: 1, time.May: 1,
		time.June: 2, time.August: 2,
		time.September: 3, time.November: 3,
	}
	for month, want := range cases {
		assert.Equal(t, want, seasonOf(month), "month %s", month)
	}
}

func TestSubMeterShares(t *testing.T) {
	result, err := Engineer(hourlySeries(400), DefaultOptions())
	require.NoError(t, err)

	shares := result.Records[0].Shares
	assert.InDelta(t, 100, shares.Total, 1e-12)
	assert.InDelta(t, 10, shares.Sub1Pct, 1e-12)
	assert.InDelta(t, 20, shares.Sub2Pct, 1e-12)
	assert.InDelta(t, 70, shares.Sub3Pct, 1e-12)
	assert.InDelta(t, 100, shares.Sub1Pct+shares.Sub2Pct+shares.Sub3Pct, 1e-9)
}

func TestEngineerOptionsToggles(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeCalendar = false
	opts.IncludeCyclical = false

	result, err := Engineer(hourlySeries(400), opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.Records)
	assert.Nil(t, result.Records[0].Calendar)
	assert.Nil(t, result.Records[0].Cyclical)
}

func TestEngineerRejectsNonContiguousSeries(t *testing.T) {
	hourly := hourlySeries(200)
	hourly = append(hourly[:100], hourly[101:]...) // remove one bucket

	_, err := Engineer(hourly, DefaultOptions())
	require.ErrorIs(t, err, ErrNotContiguous)
}

func TestEngineerRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.LagHours = []int{0}
	_, err := Engineer(hourlySeries(10), opts)
	require.Error(t, err)

	opts = DefaultOptions()
	opts.RollingWindows = []int{-24}
	_, err = Engineer(hourlySeries(10), opts)
	require.Error(t, err)
}

func TestEngineerIdempotent(t *testing.T) {
	hourly := hourlySeries(300)
	first, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)
	second, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngineerDropsRowsPoisonedByMissingHistory(t *testing.T) {
	hourly := hourlySeries(400)
	hourly[200].TotalPower = math.NaN()
	hourly[200].QualityFlag = models.QualityMissingData

	result, err := Engineer(hourly, DefaultOptions())
	require.NoError(t, err)

	// The undefined bucket is unusable itself and poisons every row whose
	// lag or difference looks back onto it.
	assert.Greater(t, result.Dropped, 168)
	for _, rec := range result.Records {
		for _, lag := range []int{1, 24, 168} {
			assert.False(t, math.IsNaN(rec.Lags[lag]))
		}
	}
}
