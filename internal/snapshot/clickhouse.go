package snapshot

import (
	"NetDeviation/internal/config"
	"NetDeviation/internal/model"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

var createTableStatements = []string{`
CREATE TABLE IF NOT EXISTS traffic_summaries (
    RunID             String,
    Kind              LowCardinality(String),
    StartTime         DateTime64(3),
    EndTime           DateTime64(3),
    TotalCount        UInt64,
    TCPCount          UInt64,
    UDPCount          UInt64,
    ICMPCount         UInt64,
    OtherCount        UInt64,
    SkippedCount      UInt64,
    UniqueSources     Array(String),
    UniqueDestinations Array(String),
    TopPorts          Array(UInt16),
    TopPortCounts     Array(UInt64),
    RateBuffer        Array(UInt64),
    RateSeconds       Array(Int64),
    Incomplete        UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (Kind, StartTime);
`, `
CREATE TABLE IF NOT EXISTS attack_records (
    RunID           String,
    Module          String,
    Type            LowCardinality(String),
    Target          String,
    Magnitude       Int64,
    ResponsivePorts Array(Int32),
    StartTime       DateTime64(3),
    EndTime         DateTime64(3),
    Error           String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (RunID, StartTime);
`, `
CREATE TABLE IF NOT EXISTS deviations (
    ComputedAt             DateTime64(3),
    BaselineRunID          String,
    AttackRunID            String,
    TotalPacketIncreasePct Float64,
    TCPIncreasePct         Float64,
    UDPIncreasePct         Float64,
    ICMPIncreasePct        Float64,
    BaselineAvgPPS         Float64,
    AttackAvgPPS           Float64
) ENGINE = MergeTree()
ORDER BY ComputedAt;
`}

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn   driver.Conn
	logger log.FieldLogger
}

// NewClickHouseWriter connects to ClickHouse and ensures the artifact tables exist.
func NewClickHouseWriter(ctx context.Context, cfg config.ClickHouseConfig, logger log.FieldLogger) (*ClickHouseWriter, error) {
	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range createTableStatements {
		if err := conn.Exec(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	logger.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, logger: logger}, nil
}

func connect(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// WriteSummary inserts one row into traffic_summaries.
func (w *ClickHouseWriter) WriteSummary(s *model.TrafficSummary) error {
	ctx := context.Background()
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO traffic_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	ports := make([]uint16, len(s.PortFrequency))
	counts := make([]uint64, len(s.PortFrequency))
	for i, pc := range s.PortFrequency {
		ports[i] = pc.Port
		counts[i] = pc.Count
	}
	var incomplete uint8
	if s.Incomplete {
		incomplete = 1
	}

	err = batch.Append(
		s.RunID, s.Kind, s.StartTime, s.EndTime,
		s.TotalCount, s.TCPCount, s.UDPCount, s.ICMPCount, s.OtherCount, s.SkippedCount,
		s.UniqueSources, s.UniqueDestinations,
		ports, counts,
		s.RateBuffer, s.RateSeconds,
		incomplete,
	)
	if err != nil {
		return fmt.Errorf("failed to append summary to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.WithFields(log.Fields{"run_id": s.RunID, "kind": s.Kind}).Debug("Wrote summary to ClickHouse")
	return nil
}

// WriteAttackLog inserts one row per module record into attack_records.
func (w *ClickHouseWriter) WriteAttackLog(l *model.AttackLog) error {
	if len(l.Records) == 0 {
		return nil
	}
	ctx := context.Background()
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO attack_records")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range l.Records {
		ports := make([]int32, len(r.ResponsivePorts))
		for i, p := range r.ResponsivePorts {
			ports[i] = int32(p)
		}
		err = batch.Append(l.RunID, r.Module, r.Type, r.Target, int64(r.Magnitude), ports,
			r.StartTime, r.EndTime, r.Error)
		if err != nil {
			return fmt.Errorf("failed to append attack record to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.WithFields(log.Fields{"run_id": l.RunID, "records": len(l.Records)}).Debug("Wrote attack log to ClickHouse")
	return nil
}

// WriteDeviation inserts one row into deviations.
func (w *ClickHouseWriter) WriteDeviation(d *model.DeviationResult) error {
	ctx := context.Background()
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO deviations")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	err = batch.Append(d.ComputedAt, d.BaselineRunID, d.AttackRunID,
		d.TotalPacketIncreasePct, d.TCPIncreasePct, d.UDPIncreasePct, d.ICMPIncreasePct,
		d.BaselineAvgPPS, d.AttackAvgPPS)
	if err != nil {
		return fmt.Errorf("failed to append deviation to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
