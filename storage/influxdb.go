// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package storage provides InfluxDB persistence for energy usage snapshots,
// with a circuit breaker and a local disk cache for backend outages.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/soothill/glow-data-logger/pkg/interfaces"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/metrics"
)

const usageMeasurement = "energy_usage"

// InfluxDBStorage handles writing usage snapshots to InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string
}

// NewInfluxDBStorage creates a new InfluxDB storage client
func NewInfluxDBStorage(url, token, org, bucket string) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(url, token)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", message)
	}

	logger.Info().Str("url", url).Str("status", string(health.Status)).Msg("Connected to InfluxDB")

	writeAPI := client.WriteAPI(org, bucket)

	// Handle async write errors
	go func() {
		for err := range writeAPI.Errors() {
			metrics.InfluxDBWriteErrors.Inc()
			logger.Error().Err(err).Msg("InfluxDB write error")
		}
	}()

	return &InfluxDBStorage{
		client:   client,
		writeAPI: writeAPI,
		bucket:   bucket,
		org:      org,
	}, nil
}

// WriteUsage writes a usage snapshot to InfluxDB. The write is buffered by
// the client's async API; ctx is accepted for interface symmetry but the
// enqueue itself does not block.
func (s *InfluxDBStorage) WriteUsage(_ context.Context, record *interfaces.UsageRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.ResourceID == "" {
		return fmt.Errorf("resource ID cannot be empty")
	}
	if record.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}

	p := influxdb2.NewPoint(
		usageMeasurement,
		map[string]string{
			"supply":      record.Supply,
			"resource_id": record.ResourceID,
			"classifier":  record.Classifier,
			"units":       record.Units,
		},
		map[string]interface{}{
			"value":    record.Value,
			"rate":     record.Rate,
			"standing": record.Standing,
			"cost":     record.Cost,
		},
		record.Timestamp,
	)

	s.writeAPI.WritePoint(p)
	metrics.InfluxDBWritesTotal.Inc()
	return nil
}

// Flush forces all pending writes to complete
func (s *InfluxDBStorage) Flush() {
	s.writeAPI.Flush()
}

// Close closes the InfluxDB client and flushes pending writes
func (s *InfluxDBStorage) Close() {
	logger.Info().Msg("Closing InfluxDB connection")
	s.writeAPI.Flush()
	s.client.Close()
}

// Health checks whether the InfluxDB backend is reachable and passing
func (s *InfluxDBStorage) Health(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if health.Status != "pass" {
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return fmt.Errorf("InfluxDB unhealthy: %s", message)
	}
	return nil
}

// Client returns the underlying InfluxDB client
func (s *InfluxDBStorage) Client() influxdb2.Client {
	return s.client
}

// sanitizeFluxString makes a value safe for interpolation into a quoted Flux
// string literal. Backslashes and quotes are escaped, control characters are
// dropped and the value is capped at 1000 bytes.
func sanitizeFluxString(s string) string {
	if len(s) > 1000 {
		s = s[:1000]
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QueryLatestUsage retrieves the most recent usage snapshot for a supply
func (s *InfluxDBStorage) QueryLatestUsage(ctx context.Context, supply string) (*interfaces.UsageRecord, error) {
	if supply == "" {
		return nil, fmt.Errorf("supply cannot be empty")
	}

	queryAPI := s.client.QueryAPI(s.org)

	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -1h)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.supply == "%s")
			|> last()
	`, sanitizeFluxString(s.bucket), usageMeasurement, sanitizeFluxString(supply))

	result, err := queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = result.Close()
	}()

	record := &interfaces.UsageRecord{
		Supply: supply,
	}

	for result.Next() {
		row := result.Record()

		if id, ok := row.ValueByKey("resource_id").(string); ok {
			record.ResourceID = id
		}
		if classifier, ok := row.ValueByKey("classifier").(string); ok {
			record.Classifier = classifier
		}
		if units, ok := row.ValueByKey("units").(string); ok {
			record.Units = units
		}

		record.Timestamp = row.Time()

		switch row.Field() {
		case "value":
			if val, ok := row.Value().(float64); ok {
				record.Value = val
			}
		case "rate":
			if val, ok := row.Value().(float64); ok {
				record.Rate = val
			}
		case "standing":
			if val, ok := row.Value().(float64); ok {
				record.Standing = val
			}
		case "cost":
			if val, ok := row.Value().(float64); ok {
				record.Cost = val
			}
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}

	return record, nil
}
