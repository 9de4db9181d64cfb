package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

func hourly(ts time.Time, flag models.QualityFlag) models.HourlyRecord {
	return models.HourlyRecord{
		Timestamp:           ts,
		GlobalActivePower:   2.5,
		GlobalReactivePower: 0.3,
		Voltage:             240,
		GlobalIntensity:     11,
		SubMetering1:        10,
		SubMetering2:        20,
		SubMetering3:        30,
		TotalPower:          2.8,
		QualityFlag:         flag,
		Completeness:        1,
	}
}

func hourlySeries(n int, flags ...models.QualityFlag) []models.HourlyRecord {
	start := time.Date(2007, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.HourlyRecord, 0, n)
	for i := 0; i < n; i++ {
		flag := models.QualityOK
		if i < len(flags) {
			flag = flags[i]
		}
		out = append(out, hourly(start.Add(time.Duration(i)*time.Hour), flag))
	}
	return out
}

func TestValidateCleanTable(t *testing.T) {
	report := Validate(hourlySeries(48), DefaultOptions())

	assert.True(t, report.IsValid)
	assert.Equal(t, 48, report.RowsChecked)
	assert.Equal(t, 48, report.FlagCounts[models.QualityOK])
	assert.Zero(t, report.MissingRatio)
	for _, check := range report.Checks {
		assert.True(t, check.Passed, "check %s should pass", check.Name)
	}
}

func TestValidateDuplicateTimestamps(t *testing.T) {
	records := hourlySeries(3)
	records[2].Timestamp = records[1].Timestamp

	report := Validate(records, DefaultOptions())
	assert.False(t, report.IsValid)

	check, ok := report.Check("unique_timestamps")
	require.True(t, ok)
	assert.False(t, check.Passed)
	assert.Equal(t, 1, check.Violations)
}

func TestValidateOutOfOrder(t *testing.T) {
	records := hourlySeries(3)
	records[1], records[2] = records[2], records[1]

	report := Validate(records, DefaultOptions())
	check, ok := report.Check("chronological_order")
	require.True(t, ok)
	assert.False(t, check.Passed)
}

func TestValidateRangeViolationsKeepRows(t *testing.T) {
	records := hourlySeries(10)
	records[3].GlobalActivePower = 35 // physically impossible
	records[7].Voltage = 300

	report := Validate(records, DefaultOptions())
	assert.False(t, report.IsValid)
	assert.Equal(t, 10, report.RowsChecked)

	power, ok := report.Check("active_power_range")
	require.True(t, ok)
	assert.Equal(t, 1, power.Violations)

	voltage, ok := report.Check("voltage_range")
	require.True(t, ok)
	assert.Equal(t, 1, voltage.Violations)
}

func TestValidateMissingRatioGate(t *testing.T) {
	// 3 of 20 rows flagged: 15% missing, above the 10% gate.
	records := hourlySeries(20,
		models.QualityMissingData, models.QualityMissingData, models.QualityMissingData)

	report := Validate(records, DefaultOptions())
	assert.False(t, report.IsValid)
	assert.InDelta(t, 0.15, report.MissingRatio, 1e-12)

	check, ok := report.Check("missing_data_ratio")
	require.True(t, ok)
	assert.False(t, check.Passed)
	assert.Equal(t, 3, check.Violations)
}

func TestValidateMissingRatioWithinLimit(t *testing.T) {
	records := hourlySeries(20, models.QualityMissingData)

	report := Validate(records, DefaultOptions())
	assert.True(t, report.IsValid)
	assert.InDelta(t, 0.05, report.MissingRatio, 1e-12)
	assert.Equal(t, 1, report.FlagCounts[models.QualityMissingData])
}

func TestValidateDoesNotMutate(t *testing.T) {
	records := hourlySeries(5)
	records[2].Voltage = 300
	before := records[2]

	_ = Validate(records, DefaultOptions())
	assert.Equal(t, before, records[2])
}

func TestValidateEmptyTable(t *testing.T) {
	report := Validate(nil, DefaultOptions())
	assert.True(t, report.IsValid)
	assert.Zero(t, report.RowsChecked)
}
