// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interfaces

import "context"

// Notifier defines the interface for sending operational alerts.
type Notifier interface {
	// SendStorageFailure alerts that writes to the time-series backend failed
	SendStorageFailure(ctx context.Context, err error) error

	// SendStorageRecovery alerts that the time-series backend recovered
	SendStorageRecovery(ctx context.Context) error

	// SendCacheWarning alerts that the local fallback cache is filling up
	SendCacheWarning(ctx context.Context, cacheSize, maxSize int64) error

	// IsEnabled reports whether the notifier is configured to send anything
	IsEnabled() bool
}
