// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package poller periodically snapshots current usage for each supply and
// turns the readings into storage records.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/soothill/glow-data-logger/glow"
	"github.com/soothill/glow-data-logger/pkg/interfaces"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/metrics"
)

const recordsChannelSize = 100

// Supply identifies one polled energy supply.
type Supply string

// The supplies the logger knows how to poll.
const (
	SupplyElectricity Supply = "electricity"
	SupplyGas         Supply = "gas"
)

// Fetcher is the slice of the API client the poller needs. Each call is a
// fresh set of network round trips.
type Fetcher interface {
	GetElectricityCurrent(ctx context.Context) (*glow.Reading, error)
	GetGasCurrent(ctx context.Context) (*glow.Reading, error)
	ElectricityResourceID() (string, error)
	GasResourceID() (string, error)
}

// Poller runs one polling goroutine per supply. Electricity and gas tick at
// independent intervals since gas meters only report every half hour.
type Poller struct {
	fetcher        Fetcher
	records        chan *interfaces.UsageRecord
	intervals      map[Supply]time.Duration
	polledSupplies map[Supply]context.CancelFunc
	supplyMutex    sync.RWMutex
	wg             sync.WaitGroup
}

// New creates a poller. Intervals of zero fall back to 30s for electricity
// and 30m for gas.
func New(fetcher Fetcher, electricityInterval, gasInterval time.Duration) *Poller {
	if electricityInterval <= 0 {
		electricityInterval = 30 * time.Second
	}
	if gasInterval <= 0 {
		gasInterval = 30 * time.Minute
	}

	return &Poller{
		fetcher: fetcher,
		records: make(chan *interfaces.UsageRecord, recordsChannelSize),
		intervals: map[Supply]time.Duration{
			SupplyElectricity: electricityInterval,
			SupplyGas:         gasInterval,
		},
		polledSupplies: make(map[Supply]context.CancelFunc),
	}
}

// Records returns the channel usage records are delivered on.
func (p *Poller) Records() <-chan *interfaces.UsageRecord {
	return p.records
}

// Start begins polling both supplies.
func (p *Poller) Start(ctx context.Context) {
	logger.Info().Msg("Starting usage polling")
	p.StartPollingSupply(ctx, SupplyElectricity)
	p.StartPollingSupply(ctx, SupplyGas)
}

// StartPollingSupply starts polling a single supply if not already polled.
func (p *Poller) StartPollingSupply(ctx context.Context, supply Supply) bool {
	p.supplyMutex.Lock()
	defer p.supplyMutex.Unlock()

	if _, exists := p.polledSupplies[supply]; exists {
		logger.Debug().Str("supply", string(supply)).Msg("Supply already being polled, skipping")
		return false
	}

	supplyCtx, cancel := context.WithCancel(ctx)
	p.polledSupplies[supply] = cancel
	metrics.SuppliesPolled.Inc()

	logger.Info().
		Str("supply", string(supply)).
		Dur("interval", p.intervals[supply]).
		Msg("Starting polling for supply")

	p.wg.Add(1)
	go p.pollSupply(supplyCtx, supply)
	return true
}

// StopPollingSupply stops polling a specific supply.
func (p *Poller) StopPollingSupply(supply Supply) {
	p.supplyMutex.Lock()
	defer p.supplyMutex.Unlock()

	if cancel, exists := p.polledSupplies[supply]; exists {
		cancel()
		delete(p.polledSupplies, supply)
		metrics.SuppliesPolled.Dec()
		logger.Info().Str("supply", string(supply)).Msg("Stopped polling supply")
	}
}

// IsPolling checks if a supply is currently being polled.
func (p *Poller) IsPolling(supply Supply) bool {
	p.supplyMutex.RLock()
	defer p.supplyMutex.RUnlock()
	_, exists := p.polledSupplies[supply]
	return exists
}

// PolledSupplyCount returns the number of supplies being polled.
func (p *Poller) PolledSupplyCount() int {
	p.supplyMutex.RLock()
	defer p.supplyMutex.RUnlock()
	return len(p.polledSupplies)
}

// UpdateIntervals changes the polling cadence. Running loops pick the new
// intervals up on their next tick.
func (p *Poller) UpdateIntervals(electricityInterval, gasInterval time.Duration) {
	p.supplyMutex.Lock()
	defer p.supplyMutex.Unlock()

	if electricityInterval > 0 {
		p.intervals[SupplyElectricity] = electricityInterval
	}
	if gasInterval > 0 {
		p.intervals[SupplyGas] = gasInterval
	}
	logger.Info().
		Dur("electricity", p.intervals[SupplyElectricity]).
		Dur("gas", p.intervals[SupplyGas]).
		Msg("Updated polling intervals")
}

// Stop stops all polling goroutines and closes the records channel.
func (p *Poller) Stop() {
	p.supplyMutex.Lock()
	for supply, cancel := range p.polledSupplies {
		cancel()
		delete(p.polledSupplies, supply)
		metrics.SuppliesPolled.Dec()
	}
	p.supplyMutex.Unlock()

	p.wg.Wait()
	close(p.records)
	logger.Info().Msg("Usage polling stopped")
}

func (p *Poller) interval(supply Supply) time.Duration {
	p.supplyMutex.RLock()
	defer p.supplyMutex.RUnlock()
	return p.intervals[supply]
}

// pollSupply continuously snapshots one supply.
func (p *Poller) pollSupply(ctx context.Context, supply Supply) {
	defer p.wg.Done()

	interval := p.interval(supply)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}

			record, err := p.snapshot(ctx, supply)
			if err != nil {
				metrics.UsageSnapshotErrors.Inc()
				logger.Error().Err(err).Str("supply", string(supply)).Msg("Usage snapshot failed")
			} else if record != nil {
				metrics.UsageSnapshotsTotal.Inc()
				p.publish(supply, record)
			}

			if next := p.interval(supply); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// snapshot reads the current usage for a supply and builds a storage record.
// A reading without data points yields no record and no error.
func (p *Poller) snapshot(ctx context.Context, supply Supply) (*interfaces.UsageRecord, error) {
	var (
		reading    *glow.Reading
		resourceID string
		classifier string
		err        error
	)

	switch supply {
	case SupplyGas:
		classifier = glow.ClassifierGas
		resourceID, err = p.fetcher.GasResourceID()
		if err != nil {
			return nil, err
		}
		reading, err = p.fetcher.GetGasCurrent(ctx)
	default:
		classifier = glow.ClassifierElectricity
		resourceID, err = p.fetcher.ElectricityResourceID()
		if err != nil {
			return nil, err
		}
		reading, err = p.fetcher.GetElectricityCurrent(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(reading.Data) == 0 {
		logger.Warn().Str("supply", string(supply)).Msg("Usage snapshot carried no data points")
		return nil, nil
	}

	point := reading.Data[0]
	if reading.ResourceID != "" {
		resourceID = reading.ResourceID
	}

	metrics.CurrentUsage.WithLabelValues(string(supply), reading.Units).Set(point.Value)
	metrics.CurrentCost.WithLabelValues(string(supply)).Set(reading.Cost)
	metrics.TariffRate.WithLabelValues(string(supply)).Set(reading.Rate)

	return &interfaces.UsageRecord{
		Supply:     string(supply),
		ResourceID: resourceID,
		Classifier: classifier,
		Timestamp:  point.Time(),
		Value:      point.Value,
		Units:      reading.Units,
		Rate:       reading.Rate,
		Standing:   reading.Standing,
		Cost:       reading.Cost,
	}, nil
}

// publish delivers a record without blocking the polling loop.
func (p *Poller) publish(supply Supply, record *interfaces.UsageRecord) {
	select {
	case p.records <- record:
	default:
		logger.Warn().Str("supply", string(supply)).Msg("Records channel full, dropping usage record")
	}
}
