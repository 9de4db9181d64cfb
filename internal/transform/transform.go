// Package transform cleans minute readings and resamples them into
// quality-flagged hourly buckets.
package transform

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/BraPil/Electric-Load-Predictor/internal/models"
)

// Structural errors indicate a contract violation by the upstream reader.
// They are never repaired silently.
var (
	ErrNotChronological   = errors.New("transform: input timestamps are not in chronological order")
	ErrDuplicateTimestamp = errors.New("transform: duplicate input timestamp")
)

// Options holds the transformer tunables. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// GapFillLimit is the maximum run of consecutive missing samples that
	// forward-fill may bridge. Longer runs are left unfilled.
	GapFillLimit int

	// CompletenessThreshold is the minimum fraction of the 60 expected
	// minute samples a bucket needs to avoid the MISSING_DATA flag.
	CompletenessThreshold float64

	// VoltageMin and VoltageMax bound the expected aggregated voltage;
	// values outside the band are flagged SUSPICIOUS_VOLTAGE.
	VoltageMin float64
	VoltageMax float64
}

// DefaultOptions returns the standard transformer configuration.
func DefaultOptions() Options {
	return Options{
		GapFillLimit:          5,
		CompletenessThreshold: 0.9,
		VoltageMin:            200,
		VoltageMax:            260,
	}
}

const samplesPerHour = 60

// Transform converts sorted minute readings into a contiguous hourly series.
// Quality issues become per-bucket flags; only structural violations of the
// reader contract produce an error.
func Transform(readings []models.RawReading, opts Options) ([]models.HourlyRecord, error) {
	if len(readings) == 0 {
		return []models.HourlyRecord{}, nil
	}

	for i := 1; i < len(readings); i++ {
		switch {
		case readings[i].Timestamp.Equal(readings[i-1].Timestamp):
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTimestamp, readings[i].Timestamp.Format(time.RFC3339))
		case readings[i].Timestamp.Before(readings[i-1].Timestamp):
			return nil, fmt.Errorf("%w: %s after %s", ErrNotChronological,
				readings[i].Timestamp.Format(time.RFC3339), readings[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	values := forwardFill(readings, opts.GapFillLimit)

	first := readings[0].Timestamp.Truncate(time.Hour)
	last := readings[len(readings)-1].Timestamp.Truncate(time.Hour)
	buckets := int(last.Sub(first)/time.Hour) + 1

	firstMinute := readings[0].Timestamp.Minute()
	lastMinute := readings[len(readings)-1].Timestamp.Minute()

	records := make([]models.HourlyRecord, 0, buckets)
	idx := 0
	for b := 0; b < buckets; b++ {
		bucketStart := first.Add(time.Duration(b) * time.Hour)
		bucketEnd := bucketStart.Add(time.Hour)

		// Buckets at the edge of the observed range only expect the
		// minutes inside it; interior buckets expect all 60.
		expected := samplesPerHour
		if b == 0 && b == buckets-1 {
			expected = lastMinute - firstMinute + 1
		} else if b == 0 {
			expected = samplesPerHour - firstMinute
		} else if b == buckets-1 {
			expected = lastMinute + 1
		}

		var (
			sums     [models.NumChannels]float64
			counts   [models.NumChannels]int
			complete int
		)
		for idx < len(readings) && readings[idx].Timestamp.Before(bucketEnd) {
			allPresent := true
			for c := 0; c < models.NumChannels; c++ {
				v := values[idx][c]
				if v == nil {
					allPresent = false
					continue
				}
				sums[c] += *v
				counts[c]++
			}
			if allPresent {
				complete++
			}
			idx++
		}

		rec := models.HourlyRecord{
			Timestamp:    bucketStart,
			Completeness: float64(complete) / float64(expected),
			HourOfDay:    bucketStart.Hour(),
			DayOfWeek:    dayOfWeekMonday(bucketStart),
			Month:        int(bucketStart.Month()),
		}
		rec.IsWeekend = rec.DayOfWeek >= 5

		for c := 0; c < models.NumChannels; c++ {
			if counts[c] == 0 {
				rec.SetChannel(c, math.NaN())
				continue
			}
			switch c {
			case models.ChSubMetering1, models.ChSubMetering2, models.ChSubMetering3:
				rec.SetChannel(c, sums[c])
			default:
				rec.SetChannel(c, sums[c]/float64(counts[c]))
			}
		}
		rec.TotalPower = rec.GlobalActivePower + rec.GlobalReactivePower
		rec.QualityFlag = flagFor(rec, opts)

		records = append(records, rec)
	}

	return records, nil
}

// forwardFill bridges missing channel values across runs of at most limit
// consecutive samples, using the last defined value before the run. The input
// readings are not mutated.
func forwardFill(readings []models.RawReading, limit int) [][models.NumChannels]*float64 {
	values := make([][models.NumChannels]*float64, len(readings))
	for i := range readings {
		values[i] = readings[i].Values
	}
	if limit <= 0 {
		return values
	}

	for c := 0; c < models.NumChannels; c++ {
		var lastSeen *float64
		for i := 0; i < len(values); {
			if values[i][c] != nil {
				lastSeen = values[i][c]
				i++
				continue
			}

			runEnd := i
			for runEnd < len(values) && values[runEnd][c] == nil {
				runEnd++
			}
			if lastSeen != nil && runEnd-i <= limit {
				for j := i; j < runEnd; j++ {
					fill := *lastSeen
					values[j][c] = &fill
				}
			}
			i = runEnd
		}
	}

	return values
}

// flagFor assigns the bucket quality flag in priority order:
// MISSING_DATA > SUSPICIOUS_VOLTAGE > OK.
func flagFor(rec models.HourlyRecord, opts Options) models.QualityFlag {
	if rec.Completeness < opts.CompletenessThreshold {
		return models.QualityMissingData
	}
	if !math.IsNaN(rec.Voltage) && (rec.Voltage < opts.VoltageMin || rec.Voltage > opts.VoltageMax) {
		return models.QualitySuspiciousVoltage
	}
	return models.QualityOK
}

// dayOfWeekMonday maps time.Weekday (Sunday = 0) onto the Monday = 0
// convention used across the hourly series.
func dayOfWeekMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
