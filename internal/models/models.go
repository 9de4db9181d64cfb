package models

import "time"

// Channel indices for the seven numeric columns of the raw meter feed.
// The order matches the source file header and is fixed across the pipeline.
const (
	ChGlobalActivePower = iota
	ChGlobalReactivePower
	ChVoltage
	ChGlobalIntensity
	ChSubMetering1
	ChSubMetering2
	ChSubMetering3

	NumChannels = 7
)

// ChannelNames holds the canonical column name for each channel index.
var ChannelNames = [NumChannels]string{
	"global_active_power",
	"global_reactive_power",
	"voltage",
	"global_intensity",
	"sub_metering_1",
	"sub_metering_2",
	"sub_metering_3",
}

// RawReading is a single minute-resolution meter sample. A nil channel value
// means the source carried the missing sentinel for that field.
type RawReading struct {
	Timestamp time.Time
	Values    [NumChannels]*float64
}

// QualityFlag marks the trustworthiness of one hourly bucket. Flags are
// metadata, never a deletion criterion.
type QualityFlag string

const (
	QualityOK                QualityFlag = "OK"
	QualityMissingData       QualityFlag = "MISSING_DATA"
	QualitySuspiciousVoltage QualityFlag = "SUSPICIOUS_VOLTAGE"
)

// HourlyRecord is one hour-aligned aggregation bucket. Power, voltage and
// intensity channels hold the bucket mean; the sub-meter channels hold the
// bucket sum. Undefined aggregates are NaN.
type HourlyRecord struct {
	Timestamp time.Time `json:"timestamp"`

	GlobalActivePower   float64 `json:"global_active_power"`
	GlobalReactivePower float64 `json:"global_reactive_power"`
	Voltage             float64 `json:"voltage"`
	GlobalIntensity     float64 `json:"global_intensity"`
	SubMetering1        float64 `json:"sub_metering_1"`
	SubMetering2        float64 `json:"sub_metering_2"`
	SubMetering3        float64 `json:"sub_metering_3"`

	// TotalPower is the sum of the aggregated power channels
	// (active + reactive).
	TotalPower float64 `json:"total_power"`

	QualityFlag QualityFlag `json:"quality_flag"`

	// Completeness is the fraction of the bucket's expected minute samples
	// (60, fewer at the edges of the observed range) that were present with
	// every channel defined, after gap filling.
	Completeness float64 `json:"completeness"`

	HourOfDay int  `json:"hour_of_day"`
	DayOfWeek int  `json:"day_of_week"` // Monday = 0
	Month     int  `json:"month"`
	IsWeekend bool `json:"is_weekend"`
}

// Channel returns the aggregated value for a channel index.
func (h HourlyRecord) Channel(i int) float64 {
	switch i {
	case ChGlobalActivePower:
		return h.GlobalActivePower
	case ChGlobalReactivePower:
		return h.GlobalReactivePower
	case ChVoltage:
		return h.Voltage
	case ChGlobalIntensity:
		return h.GlobalIntensity
	case ChSubMetering1:
		return h.SubMetering1
	case ChSubMetering2:
		return h.SubMetering2
	case ChSubMetering3:
		return h.SubMetering3
	}
	panic("models: channel index out of range")
}

// SetChannel stores the aggregated value for a channel index.
func (h *HourlyRecord) SetChannel(i int, v float64) {
	switch i {
	case ChGlobalActivePower:
		h.GlobalActivePower = v
	case ChGlobalReactivePower:
		h.GlobalReactivePower = v
	case ChVoltage:
		h.Voltage = v
	case ChGlobalIntensity:
		h.GlobalIntensity = v
	case ChSubMetering1:
		h.SubMetering1 = v
	case ChSubMetering2:
		h.SubMetering2 = v
	case ChSubMetering3:
		h.SubMetering3 = v
	default:
		panic("models: channel index out of range")
	}
}
