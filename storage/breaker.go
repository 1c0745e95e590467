// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package storage

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/interfaces"
	"github.com/soothill/glow-data-logger/pkg/logger"
)

// BreakerStorage wraps a TimeSeriesStorage with a circuit breaker so a dead
// backend fails fast instead of queueing work behind timeouts. The breaker
// opens after five consecutive failures and probes again after 30 seconds.
type BreakerStorage struct {
	inner   interfaces.TimeSeriesStorage
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStorage wraps inner with circuit breaker protection.
func NewBreakerStorage(inner interfaces.TimeSeriesStorage) *BreakerStorage {
	settings := gobreaker.Settings{
		Name:        "influxdb",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Storage circuit breaker state change")
		},
	}

	return &BreakerStorage{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// WriteUsage writes through the breaker. When the breaker is open the write
// fails immediately with a storage error wrapping gobreaker.ErrOpenState.
func (b *BreakerStorage) WriteUsage(ctx context.Context, record *interfaces.UsageRecord) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.WriteUsage(ctx, record)
	})
	if err != nil {
		resourceID := ""
		if record != nil {
			resourceID = record.ResourceID
		}
		return gerrors.NewStorageError("write", resourceID, err)
	}
	return nil
}

// Flush flushes the underlying storage
func (b *BreakerStorage) Flush() {
	b.inner.Flush()
}

// Close closes the underlying storage
func (b *BreakerStorage) Close() {
	b.inner.Close()
}

// Health checks the backend through the breaker so probes wake an open
// breaker into half-open once the timeout has passed.
func (b *BreakerStorage) Health(ctx context.Context) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Health(ctx)
	})
	if err != nil {
		return gerrors.NewStorageError("health", "", err)
	}
	return nil
}

// State reports the breaker state for diagnostics.
func (b *BreakerStorage) State() gobreaker.State {
	return b.breaker.State()
}
