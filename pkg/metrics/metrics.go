// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the Glow data logger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal tracks the total number of requests sent to the Glow API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glow_api_requests_total",
		Help: "Total number of requests sent to the Glow API",
	}, []string{"endpoint"})

	// APIRequestErrors tracks the number of Glow API requests that failed
	APIRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glow_api_request_errors_total",
		Help: "Total number of Glow API requests that failed or were rejected",
	}, []string{"endpoint"})

	// APIRequestDuration tracks how long Glow API round trips take
	APIRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glow_api_request_duration_seconds",
		Help:    "Duration of Glow API round trips in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// TokenRefreshes tracks the number of re-authentication calls made
	// because the cached access token had expired
	TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glow_token_refreshes_total",
		Help: "Total number of access token refreshes",
	})

	// SuppliesPolled tracks the number of supplies currently being polled
	SuppliesPolled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glow_supplies_polled",
		Help: "Number of supplies currently being polled for usage",
	})

	// UsageSnapshotsTotal tracks the total number of usage snapshots collected
	UsageSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glow_usage_snapshots_total",
		Help: "Total number of usage snapshots collected",
	})

	// UsageSnapshotErrors tracks the number of failed usage snapshots
	UsageSnapshotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glow_usage_snapshot_errors_total",
		Help: "Total number of failed usage snapshots",
	})

	// InfluxDBWritesTotal tracks the total number of writes to InfluxDB
	InfluxDBWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glow_influxdb_writes_total",
		Help: "Total number of writes to InfluxDB",
	})

	// InfluxDBWriteErrors tracks the number of failed writes to InfluxDB
	InfluxDBWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glow_influxdb_write_errors_total",
		Help: "Total number of failed writes to InfluxDB",
	})

	// CurrentUsage tracks the latest usage value per supply
	CurrentUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glow_current_usage",
		Help: "Latest usage value per supply, in the unit reported by the service",
	}, []string{"supply", "units"})

	// CurrentCost tracks the latest derived cost per supply
	CurrentCost = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glow_current_cost",
		Help: "Latest derived cost per supply",
	}, []string{"supply"})

	// TariffRate tracks the latest tariff rate per supply
	TariffRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glow_tariff_rate",
		Help: "Latest tariff unit rate per supply",
	}, []string{"supply"})
)
