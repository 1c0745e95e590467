// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/interfaces"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/util"
)

const (
	defaultCacheDir     = "/var/lib/glow-data-logger/cache"
	cacheFilePrefix     = "usage_"
	cacheFileExt        = ".json"
	defaultMaxEntries   = 10000
	defaultMaxAge       = 7 * 24 * time.Hour
	replayFlushEvery    = 100
	healthCheckInterval = 30 * time.Second
)

// LocalCache spools usage records to disk while the backend is unavailable.
// One file per record, named by a fresh attempt ID, written atomically so a
// crash never leaves a half-written record to choke replay.
type LocalCache struct {
	cacheDir   string
	maxEntries int
	maxAge     time.Duration
	mu         sync.Mutex
	entries    int
}

// CachedRecord is a usage record as stored in the cache
type CachedRecord struct {
	Record    *interfaces.UsageRecord `json:"record"`
	CachedAt  time.Time               `json:"cached_at"`
	AttemptID string                  `json:"attempt_id"`
}

// NewLocalCache creates a new local cache
func NewLocalCache(cacheDir string, maxEntries int, maxAge time.Duration) (*LocalCache, error) {
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &LocalCache{
		cacheDir:   cacheDir,
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}

	if err := cache.countEntries(); err != nil {
		logger.Warn().Err(err).Msg("Failed to count existing cache entries")
	}

	if err := cache.CleanupOld(); err != nil {
		logger.Warn().Err(err).Msg("Failed to cleanup old cache files")
	}

	return cache, nil
}

// Write spools a record to the cache
func (lc *LocalCache) Write(record *interfaces.UsageRecord) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.entries >= lc.maxEntries {
		return gerrors.NewStorageError("cache", record.ResourceID,
			fmt.Errorf("%w (%d entries)", gerrors.ErrCacheFull, lc.entries))
	}

	cached := &CachedRecord{
		Record:    record,
		CachedAt:  time.Now(),
		AttemptID: uuid.NewString(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := util.WriteFileAtomic(lc.filename(cached.AttemptID), data, 0o640); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	lc.entries++
	logger.Debug().
		Str("supply", record.Supply).
		Str("attempt_id", cached.AttemptID).
		Int("cache_entries", lc.entries).
		Msg("Spooled usage record to cache")

	return nil
}

// List returns all cached records in the order they were spooled
func (lc *LocalCache) List() ([]*CachedRecord, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(lc.cacheDir, cacheFilePrefix+"*"+cacheFileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache files: %w", err)
	}

	var records []*CachedRecord
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Failed to read cache file")
			continue
		}

		var cached CachedRecord
		if err := json.Unmarshal(data, &cached); err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Failed to unmarshal cache file")
			continue
		}

		records = append(records, &cached)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CachedAt.Before(records[j].CachedAt)
	})

	return records, nil
}

// Delete removes a spooled record once it has been replayed
func (lc *LocalCache) Delete(attemptID string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if err := os.Remove(lc.filename(attemptID)); err != nil {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}

	if lc.entries > 0 {
		lc.entries--
	}
	return nil
}

// CleanupOld removes cache files older than maxAge
func (lc *LocalCache) CleanupOld() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(lc.cacheDir, cacheFilePrefix+"*"+cacheFileExt))
	if err != nil {
		return fmt.Errorf("failed to list cache files: %w", err)
	}

	cutoff := time.Now().Add(-lc.maxAge)
	deleted := 0

	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			continue
		}

		var cached CachedRecord
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}

		if cached.CachedAt.Before(cutoff) {
			if err := os.Remove(file); err != nil {
				logger.Warn().Err(err).Str("file", file).Msg("Failed to delete old cache file")
				continue
			}
			deleted++
			if lc.entries > 0 {
				lc.entries--
			}
		}
	}

	if deleted > 0 {
		logger.Info().Int("count", deleted).Msg("Cleaned up old cache files")
	}

	return nil
}

// Entries returns the current number of spooled records
func (lc *LocalCache) Entries() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.entries
}

// MaxEntries returns the cache capacity
func (lc *LocalCache) MaxEntries() int {
	return lc.maxEntries
}

func (lc *LocalCache) countEntries() error {
	files, err := filepath.Glob(filepath.Join(lc.cacheDir, cacheFilePrefix+"*"+cacheFileExt))
	if err != nil {
		return fmt.Errorf("failed to list cache files: %w", err)
	}
	lc.entries = len(files)
	return nil
}

func (lc *LocalCache) filename(attemptID string) string {
	return filepath.Join(lc.cacheDir, cacheFilePrefix+attemptID+cacheFileExt)
}

// CachingStorage wraps a TimeSeriesStorage with local spooling. While the
// backend is down records are spooled to disk; a background loop watches the
// backend's health and replays the spool once it recovers.
type CachingStorage struct {
	storage     interfaces.TimeSeriesStorage
	cache       *LocalCache
	notifier    interfaces.Notifier
	ctx         context.Context
	cancel      context.CancelFunc
	replayWg    sync.WaitGroup
	cacheActive bool
	cacheMutex  sync.RWMutex
}

// NewCachingStorage creates a new caching storage wrapper and starts its
// health monitor.
func NewCachingStorage(storage interfaces.TimeSeriesStorage, cache *LocalCache, notifier interfaces.Notifier) *CachingStorage {
	ctx, cancel := context.WithCancel(context.Background())

	cs := &CachingStorage{
		storage:  storage,
		cache:    cache,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}

	cs.replayWg.Add(1)
	go cs.monitorAndReplay()

	return cs
}

// WriteUsage writes a record, spooling it locally if the backend write fails
func (cs *CachingStorage) WriteUsage(ctx context.Context, record *interfaces.UsageRecord) error {
	err := cs.storage.WriteUsage(ctx, record)
	if err == nil {
		return nil
	}

	logger.Warn().Err(err).Str("supply", record.Supply).Msg("Storage write failed, spooling locally")

	cs.cacheMutex.Lock()
	firstFailure := !cs.cacheActive
	cs.cacheActive = true
	cs.cacheMutex.Unlock()

	if firstFailure {
		cs.notify(func(alertCtx context.Context) error {
			return cs.notifier.SendStorageFailure(alertCtx, err)
		}, "storage failure")
	}

	if cacheErr := cs.cache.Write(record); cacheErr != nil {
		return fmt.Errorf("storage write failed and cache write failed: storage=%w, cache=%w", err, cacheErr)
	}

	entries := cs.cache.Entries()
	maxEntries := cs.cache.MaxEntries()
	if float64(entries)/float64(maxEntries) > 0.8 {
		cs.notify(func(alertCtx context.Context) error {
			return cs.notifier.SendCacheWarning(alertCtx, int64(entries), int64(maxEntries))
		}, "cache warning")
	}

	return nil
}

// Flush flushes pending writes
func (cs *CachingStorage) Flush() {
	cs.storage.Flush()
}

// Close stops the replay loop and closes the underlying storage
func (cs *CachingStorage) Close() {
	logger.Info().Msg("Closing caching storage")
	cs.cancel()
	cs.replayWg.Wait()
	cs.storage.Close()
}

// Health checks the underlying storage health
func (cs *CachingStorage) Health(ctx context.Context) error {
	return cs.storage.Health(ctx)
}

// notify sends an alert if a notifier is configured and enabled
func (cs *CachingStorage) notify(send func(context.Context) error, what string) {
	if cs.notifier == nil || !cs.notifier.IsEnabled() {
		return
	}
	alertCtx, alertCancel := context.WithTimeout(cs.ctx, 5*time.Second)
	defer alertCancel()
	if err := send(alertCtx); err != nil {
		logger.Error().Err(err).Str("alert", what).Msg("Failed to send alert")
	}
}

// monitorAndReplay watches backend health and replays the spool on recovery
func (cs *CachingStorage) monitorAndReplay() {
	defer cs.replayWg.Done()

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			cs.cacheMutex.RLock()
			active := cs.cacheActive
			cs.cacheMutex.RUnlock()

			if !active {
				continue
			}

			healthCtx, healthCancel := context.WithTimeout(cs.ctx, 5*time.Second)
			err := cs.storage.Health(healthCtx)
			healthCancel()

			if err != nil {
				logger.Debug().Err(err).Msg("Storage still unhealthy, keeping spool active")
				continue
			}

			logger.Info().Msg("Storage is healthy, replaying spooled records")
			if replayErr := cs.replaySpool(); replayErr != nil {
				logger.Error().Err(replayErr).Msg("Failed to replay spooled records")
				continue
			}

			cs.cacheMutex.Lock()
			cs.cacheActive = false
			cs.cacheMutex.Unlock()

			cs.notify(func(alertCtx context.Context) error {
				return cs.notifier.SendStorageRecovery(alertCtx)
			}, "storage recovery")
		}
	}
}

// replaySpool writes every spooled record back to the backend
func (cs *CachingStorage) replaySpool() error {
	records, err := cs.cache.List()
	if err != nil {
		return fmt.Errorf("failed to list spooled records: %w", err)
	}

	if len(records) == 0 {
		logger.Info().Msg("No spooled records to replay")
		return nil
	}

	logger.Info().Int("count", len(records)).Msg("Replaying spooled records")

	succeeded := 0
	failed := 0

	for _, cached := range records {
		if err := cs.storage.WriteUsage(cs.ctx, cached.Record); err != nil {
			logger.Warn().
				Err(err).
				Str("supply", cached.Record.Supply).
				Str("attempt_id", cached.AttemptID).
				Msg("Failed to replay spooled record")
			failed++
			continue
		}

		if err := cs.cache.Delete(cached.AttemptID); err != nil {
			logger.Warn().Err(err).Str("attempt_id", cached.AttemptID).Msg("Failed to delete replayed record")
		}

		succeeded++

		if succeeded%replayFlushEvery == 0 {
			cs.storage.Flush()
		}
	}

	cs.storage.Flush()

	logger.Info().
		Int("success", succeeded).
		Int("failed", failed).
		Int("total", len(records)).
		Msg("Finished replaying spooled records")

	return nil
}
