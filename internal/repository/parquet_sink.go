package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"optionpulse/internal/domain/models"
	applogger "optionpulse/pkg/logger"
)

// featureParquetRecord mirrors the feature manifest column for column so the
// files line up with the training pipeline's expectations.
type featureParquetRecord struct {
	Symbol          string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp       int64   `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	NumStrikes      float64 `parquet:"name=num_strikes, type=DOUBLE"`
	TotalCallOI     float64 `parquet:"name=total_call_oi, type=DOUBLE"`
	TotalPutOI      float64 `parquet:"name=total_put_oi, type=DOUBLE"`
	PCR             float64 `parquet:"name=pcr, type=DOUBLE"`
	TopCallChangeOI float64 `parquet:"name=top_call_change_oi, type=DOUBLE"`
	TopPutChangeOI  float64 `parquet:"name=top_put_change_oi, type=DOUBLE"`
	MedianCallIV    float64 `parquet:"name=median_call_iv, type=DOUBLE"`
	MedianPutIV     float64 `parquet:"name=median_put_iv, type=DOUBLE"`
	MedianVolume    float64 `parquet:"name=median_volume, type=DOUBLE"`
	MaxOIStrike     float64 `parquet:"name=max_oi_strike, type=DOUBLE"`
	ATMStrike       float64 `parquet:"name=atm_strike, type=DOUBLE"`
	OISkew          float64 `parquet:"name=oi_skew, type=DOUBLE"`
	TopStrikeOIPct  float64 `parquet:"name=top_strike_oi_pct, type=DOUBLE"`
	Spot            float64 `parquet:"name=spot, type=DOUBLE"`
	MedianIV        float64 `parquet:"name=median_iv, type=DOUBLE"`
}

// ParquetSink writes feature records to partitioned local Parquet files, one
// file per symbol per day, SNAPPY-compressed. Implements FeatureSink.
type ParquetSink struct {
	dir string
	log *applogger.Logger

	mu      sync.Mutex
	curKey  string
	curFile source.ParquetFile
	curW    *writer.ParquetWriter
}

func NewParquetSink(dir string, log *applogger.Logger) *ParquetSink {
	return &ParquetSink{dir: dir, log: log}
}

func (s *ParquetSink) Append(ctx context.Context, rec *models.FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s|%s", rec.Meta.Symbol, rec.Meta.Timestamp.UTC().Format("2006-01-02"))
	if key != s.curKey {
		if err := s.rotateLocked(rec.Meta); err != nil {
			return err
		}
		s.curKey = key
	}

	if err := s.curW.Write(toParquetRecord(rec)); err != nil {
		return fmt.Errorf("write parquet record: %w", err)
	}
	return nil
}

func (s *ParquetSink) rotateLocked(meta models.SnapshotMeta) error {
	if err := s.closeCurrentLocked(); err != nil {
		s.log.Warn("parquet file close failed on rotation", applogger.Error(err))
	}

	day := meta.Timestamp.UTC().Format("2006-01-02")
	dir := filepath.Join(s.dir,
		fmt.Sprintf("symbol=%s", meta.Symbol),
		fmt.Sprintf("date=%s", day),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("features_%s.parquet", time.Now().UTC().Format("150405")))
	f, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(f, new(featureParquetRecord), 1)
	if err != nil {
		f.Close()
		return fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	s.curFile = f
	s.curW = pw
	s.log.Info("parquet file opened",
		applogger.String("symbol", meta.Symbol),
		applogger.String("path", path))
	return nil
}

func (s *ParquetSink) closeCurrentLocked() error {
	if s.curW == nil {
		return nil
	}
	err := s.curW.WriteStop()
	if cerr := s.curFile.Close(); err == nil {
		err = cerr
	}
	s.curW = nil
	s.curFile = nil
	return err
}

func (s *ParquetSink) Health(ctx context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *ParquetSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curKey = ""
	return s.closeCurrentLocked()
}

func toParquetRecord(rec *models.FeatureRecord) featureParquetRecord {
	m := rec.Features.Map()
	return featureParquetRecord{
		Symbol:          rec.Meta.Symbol,
		Timestamp:       rec.Meta.Timestamp.UnixMilli(),
		NumStrikes:      m["num_strikes"],
		TotalCallOI:     m["total_call_oi"],
		TotalPutOI:      m["total_put_oi"],
		PCR:             m["pcr"],
		TopCallChangeOI: m["top_call_change_oi"],
		TopPutChangeOI:  m["top_put_change_oi"],
		MedianCallIV:    m["median_call_iv"],
		MedianPutIV:     m["median_put_iv"],
		MedianVolume:    m["median_volume"],
		MaxOIStrike:     m["max_oi_strike"],
		ATMStrike:       m["atm_strike"],
		OISkew:          m["oi_skew"],
		TopStrikeOIPct:  m["top_strike_oi_pct"],
		Spot:            m["spot"],
		MedianIV:        m["median_iv"],
	}
}
