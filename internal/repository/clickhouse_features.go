package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"optionpulse/internal/domain/models"
	"optionpulse/internal/services/features"
	pkgch "optionpulse/pkg/clickhouse"
	applogger "optionpulse/pkg/logger"
)

const featureTable = "optionpulse.feature_snapshots"

// SchemaStatements returns the idempotent DDL for the durable store.
func SchemaStatements() []string {
	cols := make([]string, 0, len(features.Manifest()))
	for _, name := range features.Manifest() {
		cols = append(cols, fmt.Sprintf("%s Float64", name))
	}
	return []string{
		"CREATE DATABASE IF NOT EXISTS optionpulse",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            symbol String,
            %s
        ) ENGINE=MergeTree ORDER BY (symbol, ts)`, featureTable, strings.Join(cols, ",\n            ")),
		`CREATE TABLE IF NOT EXISTS optionpulse.prediction_audit (
            ts DateTime,
            symbol String,
            label String,
            class_index Int32,
            probabilities String,
            spot Float64
        ) ENGINE=MergeTree ORDER BY (symbol, ts)`,
	}
}

// CHFeatureStore persists feature records in ClickHouse and reads them back
// for the history API. Implements FeatureSink and HistoryReader.
type CHFeatureStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeatureStore) Append(ctx context.Context, rec *models.FeatureRecord) error {
	manifest := features.Manifest()
	if !rec.Features.MatchesManifest(manifest) {
		return fmt.Errorf("feature record does not match manifest")
	}

	cols := append([]string{"ts", "symbol"}, manifest...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		featureTable, strings.Join(cols, ", "), placeholders)

	args := make([]interface{}, 0, len(cols))
	args = append(args, rec.Meta.Timestamp, rec.Meta.Symbol)
	for _, v := range rec.Features.Values {
		args = append(args, v)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse feature insert error",
				applogger.String("symbol", rec.Meta.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert features: %w", err)
	}
	return nil
}

func (s *CHFeatureStore) LatestN(ctx context.Context, symbol string, n int) ([]models.FeatureRecord, error) {
	manifest := features.Manifest()
	q := fmt.Sprintf(`SELECT ts, symbol, %s FROM %s WHERE symbol = ? ORDER BY ts DESC LIMIT ?`,
		strings.Join(manifest, ", "), featureTable)

	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_features query error",
				applogger.String("symbol", symbol),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest features: %w", err)
	}
	defer rows.Close()

	out, err := s.scanRecords(rows, manifest, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHFeatureStore) Range(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FeatureRecord, error) {
	manifest := features.Manifest()
	q := fmt.Sprintf(`SELECT ts, symbol, %s FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC LIMIT ?`,
		strings.Join(manifest, ", "), featureTable)

	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse range_features query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("range features: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, manifest, limit)
}

func (s *CHFeatureStore) scanRecords(rows *sql.Rows, manifest []string, sizeHint int) ([]models.FeatureRecord, error) {
	if sizeHint < 0 {
		sizeHint = 0
	}
	out := make([]models.FeatureRecord, 0, sizeHint)
	for rows.Next() {
		var (
			ts     time.Time
			symbol string
		)
		values := make([]float64, len(manifest))
		dest := make([]interface{}, 0, len(manifest)+2)
		dest = append(dest, &ts, &symbol)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan features: %w", err)
		}

		fv := models.FeatureVector{Names: manifest, Values: values}
		spot, _ := fv.Get("spot")
		out = append(out, models.FeatureRecord{
			Meta:     models.SnapshotMeta{Symbol: symbol, Timestamp: ts, Spot: spot},
			Features: fv,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHFeatureStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHFeatureStore) Close() error {
	return nil // connection pool owned by pkg client
}

// InsertAudit stores one prediction audit row, used by the audit consumer.
func (s *CHFeatureStore) InsertAudit(ctx context.Context, ts time.Time, symbol, label string, classIndex int, probabilities string, spot float64) error {
	const q = `INSERT INTO optionpulse.prediction_audit (ts, symbol, label, class_index, probabilities, spot) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, ts, symbol, label, classIndex, probabilities, spot); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}
