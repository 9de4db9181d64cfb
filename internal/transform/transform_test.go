package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

func ptr(v float64) *float64 { return &v }

// reading builds a fully populated minute sample.
func reading(ts time.Time, active float64) models.RawReading {
	return models.RawReading{
		Timestamp: ts,
		Values: [models.NumChannels]*float64{
			ptr(active), ptr(0.2), ptr(240), ptr(10), ptr(1), ptr(2), ptr(3),
		},
	}
}

// minuteRange builds n consecutive minute samples starting at start.
func minuteRange(start time.Time, n int, active float64) []models.RawReading {
	out := make([]models.RawReading, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, reading(start.Add(time.Duration(i)*time.Minute), active))
	}
	return out
}

func TestTransformMinimalHour(t *testing.T) {
	// Saturday 16 December 2006, three complete samples in one hour.
	start := time.Date(2006, 12, 16, 17, 24, 0, 0, time.UTC)
	records, err := Transform(minuteRange(start, 3, 4.2), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, time.Date(2006, 12, 16, 17, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, models.QualityOK, rec.QualityFlag)
	assert.Equal(t, 1.0, rec.Completeness)

	assert.Equal(t, 17, rec.HourOfDay)
	assert.Equal(t, 5, rec.DayOfWeek) // Saturday, Monday = 0
	assert.Equal(t, 12, rec.Month)
	assert.True(t, rec.IsWeekend)

	assert.InDelta(t, 4.2, rec.GlobalActivePower, 1e-12)
	assert.InDelta(t, 240, rec.Voltage, 1e-12)
	assert.InDelta(t, 9.0, rec.SubMetering3, 1e-12) // sum of 3 samples
	assert.InDelta(t, 4.4, rec.TotalPower, 1e-12)   // active + reactive means
}

func TestTransformGapBelowLimitIsFilled(t *testing.T) {
	start := time.Date(2007, 1, 8, 6, 0, 0, 0, time.UTC)
	readings := minuteRange(start, 60, 1.5)
	// Three consecutive minutes lose every channel value.
	for i := 10; i < 13; i++ {
		readings[i].Values = [models.NumChannels]*float64{}
	}

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.QualityOK, records[0].QualityFlag)
	assert.Equal(t, 1.0, records[0].Completeness)
}

func TestTransformGapBeyondLimitStaysMissing(t *testing.T) {
	start := time.Date(2007, 1, 8, 6, 0, 0, 0, time.UTC)
	readings := minuteRange(start, 60, 1.5)
	// Seven consecutive missing samples exceed the default limit of 5, so
	// the whole run stays unfilled.
	for i := 20; i < 27; i++ {
		readings[i].Values = [models.NumChannels]*float64{}
	}

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.QualityMissingData, records[0].QualityFlag)
	assert.InDelta(t, 53.0/60.0, records[0].Completeness, 1e-12)
}

func TestTransformHalfEmptyInteriorHour(t *testing.T) {
	day := time.Date(2007, 3, 5, 0, 0, 0, 0, time.UTC)
	var readings []models.RawReading
	readings = append(readings, minuteRange(day, 60, 1)...)
	readings = append(readings, minuteRange(day.Add(time.Hour), 30, 1)...)
	readings = append(readings, minuteRange(day.Add(2*time.Hour), 60, 1)...)

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.QualityOK, records[0].QualityFlag)
	assert.Equal(t, models.QualityMissingData, records[1].QualityFlag)
	assert.InDelta(t, 0.5, records[1].Completeness, 1e-12)
	assert.Equal(t, models.QualityOK, records[2].QualityFlag)
}

func TestTransformSuspiciousVoltage(t *testing.T) {
	start := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)
	readings := minuteRange(start, 60, 2)
	for i := range readings {
		readings[i].Values[models.ChVoltage] = ptr(270)
	}

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, 1.0, records[0].Completeness)
	assert.Equal(t, models.QualitySuspiciousVoltage, records[0].QualityFlag)
}

func TestTransformMissingDataOutranksVoltage(t *testing.T) {
	start := time.Date(2007, 6, 1, 12, 0, 0, 0, time.UTC)

	var readings []models.RawReading
	readings = append(readings, minuteRange(start, 60, 2)...)
	half := minuteRange(start.Add(time.Hour), 30, 2)
	for i := range half {
		half[i].Values[models.ChVoltage] = ptr(280)
	}
	readings = append(readings, half...)
	readings = append(readings, minuteRange(start.Add(2*time.Hour), 60, 2)...)

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.QualityMissingData, records[1].QualityFlag)
}

func TestTransformEmitsEmptyBuckets(t *testing.T) {
	day := time.Date(2007, 2, 1, 0, 0, 0, 0, time.UTC)
	var readings []models.RawReading
	readings = append(readings, minuteRange(day, 60, 1)...)
	// Hour 1 has no samples at all.
	readings = append(readings, minuteRange(day.Add(2*time.Hour), 60, 1)...)

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 3)

	gap := records[1]
	assert.Equal(t, day.Add(time.Hour), gap.Timestamp)
	assert.Equal(t, models.QualityMissingData, gap.QualityFlag)
	assert.Equal(t, 0.0, gap.Completeness)
	for c := 0; c < models.NumChannels; c++ {
		assert.True(t, math.IsNaN(gap.Channel(c)), "channel %s should be undefined", models.ChannelNames[c])
	}
	assert.True(t, math.IsNaN(gap.TotalPower))
}

func TestTransformOutputIsContiguousHourly(t *testing.T) {
	start := time.Date(2007, 4, 10, 7, 13, 0, 0, time.UTC)
	readings := minuteRange(start, 500, 1.1)

	records, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, records)

	for i := 1; i < len(records); i++ {
		assert.Equal(t, time.Hour, records[i].Timestamp.Sub(records[i-1].Timestamp))
	}
}

func TestTransformStructuralErrors(t *testing.T) {
	start := time.Date(2007, 4, 10, 7, 0, 0, 0, time.UTC)

	dup := []models.RawReading{reading(start, 1), reading(start, 2)}
	_, err := Transform(dup, DefaultOptions())
	require.ErrorIs(t, err, ErrDuplicateTimestamp)

	backwards := []models.RawReading{reading(start.Add(time.Minute), 1), reading(start, 2)}
	_, err = Transform(backwards, DefaultOptions())
	require.ErrorIs(t, err, ErrNotChronological)
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	start := time.Date(2007, 1, 8, 6, 0, 0, 0, time.UTC)
	readings := minuteRange(start, 10, 1.5)
	readings[4].Values = [models.NumChannels]*float64{}

	_, err := Transform(readings, DefaultOptions())
	require.NoError(t, err)

	// The missing sample must still be missing in the caller's slice.
	for c := 0; c < models.NumChannels; c++ {
		assert.Nil(t, readings[4].Values[c])
	}
}

func TestTransformEmptyInput(t *testing.T) {
	records, err := Transform(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, records)
}
