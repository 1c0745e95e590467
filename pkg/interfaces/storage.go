// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interfaces defines abstract interfaces for core system components.
// This package promotes loose coupling and testability by allowing
// dependency injection and easy mocking in tests.
package interfaces

import (
	"context"
	"time"
)

// UsageRecord is a single logged energy usage snapshot for one supply.
// It is redeclared here to avoid circular dependencies between the
// client, poller and storage packages.
type UsageRecord struct {
	Supply     string    // "electricity" or "gas"
	ResourceID string    // Resource ID the snapshot was read from
	Classifier string    // e.g. "electricity.consumption"
	Timestamp  time.Time // Timestamp of the data point
	Value      float64   // Usage value in Units
	Units      string    // Unit tag reported by the service (W, kWh, m3)
	Rate       float64   // Tariff rate at the time of the snapshot
	Standing   float64   // Standing charge at the time of the snapshot
	Cost       float64   // Derived cost for the snapshot
}

// TimeSeriesStorage defines the interface for time-series data persistence.
// Implementations should handle usage records and provide health checks.
type TimeSeriesStorage interface {
	// WriteUsage writes a single usage record to storage
	WriteUsage(ctx context.Context, record *UsageRecord) error

	// Flush ensures all pending writes are completed
	Flush()

	// Close gracefully shuts down the storage connection
	Close()

	// Health checks if the storage backend is healthy
	Health(ctx context.Context) error
}
