// Package db persists pipeline outputs in Postgres and serves the read API.
// It is the external persistence collaborator: the core stages hand it
// complete tables and never touch connections themselves.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BraPil/Electric-Load-Predictor/internal/export"
	"github.com/BraPil/Electric-Load-Predictor/internal/features"
	"github.com/BraPil/Electric-Load-Predictor/internal/models"
	"github.com/BraPil/Electric-Load-Predictor/internal/validate"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS power;

CREATE TABLE IF NOT EXISTS power.hourly_measurements (
    ts                    timestamptz PRIMARY KEY,
    global_active_power   double precision,
    global_reactive_power double precision,
    voltage               double precision,
    global_intensity      double precision,
    sub_metering_1        double precision,
    sub_metering_2        double precision,
    sub_metering_3        double precision,
    total_power           double precision,
    quality_flag          text NOT NULL,
    completeness          double precision NOT NULL,
    hour_of_day           integer NOT NULL,
    day_of_week           integer NOT NULL,
    month                 integer NOT NULL,
    is_weekend            boolean NOT NULL,
    updated_at            timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS power.feature_rows (
    ts           timestamptz PRIMARY KEY,
    total_power  double precision,
    quality_flag text NOT NULL,
    derived      jsonb NOT NULL,
    updated_at   timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS power.quality_reports (
    id            bigserial PRIMARY KEY,
    created_at    timestamptz NOT NULL DEFAULT NOW(),
    rows_checked  integer NOT NULL,
    missing_ratio double precision NOT NULL,
    is_valid      boolean NOT NULL,
    checks        jsonb NOT NULL,
    flag_counts   jsonb NOT NULL
);
`

// EnsureSchema creates the power schema and tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertHourlySQL = `
INSERT INTO power.hourly_measurements
    (ts, global_active_power, global_reactive_power, voltage, global_intensity,
     sub_metering_1, sub_metering_2, sub_metering_3, total_power, quality_flag,
     completeness, hour_of_day, day_of_week, month, is_weekend, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
ON CONFLICT (ts) DO UPDATE
SET global_active_power = EXCLUDED.global_active_power,
    global_reactive_power = EXCLUDED.global_reactive_power,
    voltage = EXCLUDED.voltage,
    global_intensity = EXCLUDED.global_intensity,
    sub_metering_1 = EXCLUDED.sub_metering_1,
    sub_metering_2 = EXCLUDED.sub_metering_2,
    sub_metering_3 = EXCLUDED.sub_metering_3,
    total_power = EXCLUDED.total_power,
    quality_flag = EXCLUDED.quality_flag,
    completeness = EXCLUDED.completeness,
    hour_of_day = EXCLUDED.hour_of_day,
    day_of_week = EXCLUDED.day_of_week,
    month = EXCLUDED.month,
    is_weekend = EXCLUDED.is_weekend,
    updated_at = NOW()`

// UpsertHourly writes the hourly table, replacing rows that share a bucket
// timestamp. Undefined aggregates become SQL NULL.
func (s *Store) UpsertHourly(ctx context.Context, records []models.HourlyRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertHourlySQL,
			rec.Timestamp,
			nullable(rec.GlobalActivePower),
			nullable(rec.GlobalReactivePower),
			nullable(rec.Voltage),
			nullable(rec.GlobalIntensity),
			nullable(rec.SubMetering1),
			nullable(rec.SubMetering2),
			nullable(rec.SubMetering3),
			nullable(rec.TotalPower),
			string(rec.QualityFlag),
			rec.Completeness,
			rec.HourOfDay,
			rec.DayOfWeek,
			rec.Month,
			rec.IsWeekend,
		)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range records {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert hourly: %w", err)
		}
	}
	return nil
}

const upsertFeatureSQL = `
INSERT INTO power.feature_rows (ts, total_power, quality_flag, derived, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (ts) DO UPDATE
SET total_power = EXCLUDED.total_power,
    quality_flag = EXCLUDED.quality_flag,
    derived = EXCLUDED.derived,
    updated_at = NOW()`

// UpsertFeatures writes feature rows. The lag and rolling column sets depend
// on the run configuration, so the derived columns land in one JSONB document
// keyed by their canonical names.
func (s *Store) UpsertFeatures(ctx context.Context, records []features.Record, opts features.Options) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		derived, err := json.Marshal(export.DerivedMap(rec, opts))
		if err != nil {
			return fmt.Errorf("encode derived columns for %s: %w", rec.Timestamp.Format(time.RFC3339), err)
		}
		batch.Queue(upsertFeatureSQL, rec.Timestamp, nullable(rec.TotalPower), string(rec.QualityFlag), derived)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range records {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert features: %w", err)
		}
	}
	return nil
}

// InsertQualityReport stores one validation run.
func (s *Store) InsertQualityReport(ctx context.Context, report validate.Report) error {
	checks, err := json.Marshal(report.Checks)
	if err != nil {
		return fmt.Errorf("encode checks: %w", err)
	}
	flags, err := json.Marshal(report.FlagCounts)
	if err != nil {
		return fmt.Errorf("encode flag counts: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO power.quality_reports (rows_checked, missing_ratio, is_valid, checks, flag_counts)
VALUES ($1,$2,$3,$4,$5)`,
		report.RowsChecked, report.MissingRatio, report.IsValid, checks, flags)
	if err != nil {
		return fmt.Errorf("insert quality report: %w", err)
	}
	return nil
}

// HourlyQuery holds filters for retrieving hourly rows.
type HourlyQuery struct {
	Since *time.Time
	Until *time.Time
	Limit int
}

// HourlyRow is one stored hourly bucket as served by the API. Undefined
// aggregates stay nil so the row encodes cleanly as JSON.
type HourlyRow struct {
	Timestamp           time.Time `json:"timestamp"`
	GlobalActivePower   *float64  `json:"global_active_power"`
	GlobalReactivePower *float64  `json:"global_reactive_power"`
	Voltage             *float64  `json:"voltage"`
	GlobalIntensity     *float64  `json:"global_intensity"`
	SubMetering1        *float64  `json:"sub_metering_1"`
	SubMetering2        *float64  `json:"sub_metering_2"`
	SubMetering3        *float64  `json:"sub_metering_3"`
	TotalPower          *float64  `json:"total_power"`
	QualityFlag         string    `json:"quality_flag"`
	Completeness        float64   `json:"completeness"`
	HourOfDay           int       `json:"hour_of_day"`
	DayOfWeek           int       `json:"day_of_week"`
	Month               int       `json:"month"`
	IsWeekend           bool      `json:"is_weekend"`
}

// FetchHourly returns stored hourly rows matching the query, oldest first.
func (s *Store) FetchHourly(ctx context.Context, q HourlyQuery) ([]HourlyRow, error) {
	query := `
SELECT ts, global_active_power, global_reactive_power, voltage, global_intensity,
       sub_metering_1, sub_metering_2, sub_metering_3, total_power, quality_flag,
       completeness, hour_of_day, day_of_week, month, is_weekend
FROM power.hourly_measurements`
	args := []any{}
	idx := 1
	where := ""
	if q.Since != nil {
		where += fmt.Sprintf(" WHERE ts >= $%d", idx)
		args = append(args, *q.Since)
		idx++
	}
	if q.Until != nil {
		if where == "" {
			where += fmt.Sprintf(" WHERE ts <= $%d", idx)
		} else {
			where += fmt.Sprintf(" AND ts <= $%d", idx)
		}
		args = append(args, *q.Until)
		idx++
	}
	query += where + " ORDER BY ts DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]HourlyRow, 0)
	for rows.Next() {
		var rec HourlyRow
		if err := rows.Scan(
			&rec.Timestamp,
			&rec.GlobalActivePower,
			&rec.GlobalReactivePower,
			&rec.Voltage,
			&rec.GlobalIntensity,
			&rec.SubMetering1,
			&rec.SubMetering2,
			&rec.SubMetering3,
			&rec.TotalPower,
			&rec.QualityFlag,
			&rec.Completeness,
			&rec.HourOfDay,
			&rec.DayOfWeek,
			&rec.Month,
			&rec.IsWeekend,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// FeatureRow is one stored feature record as served by the API.
type FeatureRow struct {
	Timestamp   time.Time          `json:"timestamp"`
	TotalPower  *float64           `json:"total_power"`
	QualityFlag string             `json:"quality_flag"`
	Derived     map[string]float64 `json:"derived"`
}

// FetchLatestFeatures returns the most recent feature rows, oldest first.
func (s *Store) FetchLatestFeatures(ctx context.Context, limit int) ([]FeatureRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT ts, total_power, quality_flag, derived
FROM power.feature_rows
ORDER BY ts DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]FeatureRow, 0, limit)
	for rows.Next() {
		var (
			row     FeatureRow
			derived []byte
		)
		if err := rows.Scan(&row.Timestamp, &row.TotalPower, &row.QualityFlag, &derived); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(derived, &row.Derived); err != nil {
			return nil, fmt.Errorf("decode derived columns: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// StoredReport is a persisted quality report with its run metadata.
type StoredReport struct {
	CreatedAt    time.Time              `json:"created_at"`
	RowsChecked  int                    `json:"rows_checked"`
	MissingRatio float64                `json:"missing_ratio"`
	IsValid      bool                   `json:"is_valid"`
	Checks       []validate.CheckResult `json:"checks"`
	FlagCounts   map[string]int         `json:"flag_counts"`
}

// FetchLatestQualityReport returns the most recent stored report, or nil when
// no run has been recorded.
func (s *Store) FetchLatestQualityReport(ctx context.Context) (*StoredReport, error) {
	var (
		report StoredReport
		checks []byte
		flags  []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT created_at, rows_checked, missing_ratio, is_valid, checks, flag_counts
FROM power.quality_reports
ORDER BY created_at DESC
LIMIT 1`).Scan(&report.CreatedAt, &report.RowsChecked, &report.MissingRatio, &report.IsValid, &checks, &flags)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(checks, &report.Checks); err != nil {
		return nil, fmt.Errorf("decode checks: %w", err)
	}
	if err := json.Unmarshal(flags, &report.FlagCounts); err != nil {
		return nil, fmt.Errorf("decode flag counts: %w", err)
	}
	return &report, nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
