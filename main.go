// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/soothill/glow-data-logger/config"
	"github.com/soothill/glow-data-logger/glow"
	"github.com/soothill/glow-data-logger/pkg/interfaces"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/slacknotifier"
	"github.com/soothill/glow-data-logger/poller"
	"github.com/soothill/glow-data-logger/storage"
)

const (
	signalChannelSize     = 1
	relistInterval        = time.Hour
	alertContextTimeout   = 5 * time.Second
	readinessCheckTimeout = 2 * time.Second
	shutdownTimeout       = 5 * time.Second
	flushTimeout          = 10 * time.Second
)

// App represents the main application
type App struct {
	cfg           *config.Config
	metricsPort   string
	server        *http.Server
	client        *glow.Client
	poller        *poller.Poller
	db            *storage.CachingStorage
	influxDB      *storage.InfluxDBStorage
	notifier      *slacknotifier.Notifier
	configWatcher *config.Watcher
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	metricsPort := flag.String("metrics-port", "9090", "Port for Prometheus metrics endpoint")
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	validateConfig := flag.Bool("validate-config", false, "Validate configuration file and exit")
	flag.Parse()

	if *healthCheck {
		os.Exit(performHealthCheck(*configPath))
	}

	if *validateConfig {
		os.Exit(performConfigValidation(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Initialize("error")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.Logging.Level)

	logger.Info().Msg("Starting Glow Energy Data Logger")
	logger.Info().
		Dur("electricity_interval", cfg.Poller.ElectricityInterval).
		Dur("gas_interval", cfg.Poller.GasInterval).
		Msg("Configuration loaded")

	configChan := make(chan *config.Config)
	configWatcher := config.NewWatcher(*configPath, configChan)

	application, err := newApp(cfg, *metricsPort, configWatcher)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create application")
	}

	application.Run(configChan)
}

// newApp creates the application: Glow client, storage stack, poller and
// the metrics server.
func newApp(cfg *config.Config, metricsPort string, configWatcher *config.Watcher) (*App, error) {
	app := &App{
		cfg:           cfg,
		metricsPort:   metricsPort,
		configWatcher: configWatcher,
	}

	var err error
	if err = app.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents wires up the notifier, the Glow client, the storage
// stack and the HTTP server.
func (a *App) initializeComponents() error {
	a.notifier = slacknotifier.New(a.cfg.Notifications.SlackWebhookURL)
	if a.notifier.IsEnabled() {
		logger.Info().Msg("Slack notifications enabled")
	} else {
		logger.Info().Msg("Slack notifications disabled (no webhook URL configured)")
	}

	// Authenticate against the metering service. A rejected login is fatal;
	// there is nothing to poll without a session.
	authCtx, authCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer authCancel()

	client, err := glow.New(authCtx, a.cfg.Credentials(),
		glow.WithBaseURL(a.cfg.Glow.BaseURL),
		glow.WithTimeout(a.cfg.Glow.Timeout),
		glow.WithRateLimit(a.cfg.Glow.RateLimit, 1),
	)
	if err != nil {
		if a.notifier.IsEnabled() {
			alertCtx, alertCancel := context.WithTimeout(context.Background(), alertContextTimeout)
			defer alertCancel()
			if notifyErr := a.notifier.SendAuthFailure(alertCtx, err); notifyErr != nil {
				logger.Error().Err(notifyErr).Msg("Failed to send authentication failure alert")
			}
		}
		return fmt.Errorf("failed to authenticate with the Glow API: %w", err)
	}
	a.client = client
	logger.Info().Str("account_id", client.AccountID()).Msg("Glow client ready")

	a.influxDB, err = storage.NewInfluxDBStorage(
		a.cfg.InfluxDB.URL,
		a.cfg.InfluxDB.Token,
		a.cfg.InfluxDB.Organization,
		a.cfg.InfluxDB.Bucket,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize InfluxDB: %w", err)
	}

	cache, err := storage.NewLocalCache(a.cfg.Cache.Directory, a.cfg.Cache.MaxEntries, 0)
	if err != nil {
		a.influxDB.Close()
		return fmt.Errorf("failed to initialize local cache: %w", err)
	}
	logger.Info().
		Str("directory", a.cfg.Cache.Directory).
		Int("max_entries", a.cfg.Cache.MaxEntries).
		Msg("Local cache initialized")

	// InfluxDB sits behind a circuit breaker; the caching layer spools to
	// disk whenever a write gets rejected.
	breaker := storage.NewBreakerStorage(a.influxDB)
	a.db = storage.NewCachingStorage(breaker, cache, a.notifier)

	a.poller = poller.New(a.client, a.cfg.Poller.ElectricityInterval, a.cfg.Poller.GasInterval)

	healthLimiter := rate.NewLimiter(10, 20)
	readyLimiter := rate.NewLimiter(10, 20)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", rateLimitMiddleware(healthLimiter, healthCheckHandler))
	mux.HandleFunc("/ready", rateLimitMiddleware(readyLimiter, func(w http.ResponseWriter, r *http.Request) {
		readinessCheckHandler(w, r, a.influxDB)
	}))

	a.server = &http.Server{
		Addr:    "localhost:" + a.metricsPort,
		Handler: mux,
	}

	return nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(configChan <-chan *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	a.cancel = cancel
	defer a.cancel()

	a.configWatcher.Start(ctx)
	defer a.configWatcher.Stop()

	a.startMetricsServer()
	a.setupSignalHandler()
	setupDebugSignalHandlers(a)
	a.startConfigWatcher(configChan)
	a.startDataWriter(ctx)
	a.poller.Start(ctx)
	a.runMainLoop(ctx)
}

// startMetricsServer starts the HTTP server for metrics and health checks
func (a *App) startMetricsServer() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Info().Str("addr", a.server.Addr).Msg("Starting metrics and health check server (localhost only)")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// startDataWriter starts the goroutine that writes usage records to storage
func (a *App) startDataWriter(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("Data writer goroutine shutting down")
				return
			case record, ok := <-a.poller.Records():
				if !ok {
					logger.Info().Msg("Records channel closed, data writer exiting")
					return
				}
				if writeErr := a.db.WriteUsage(ctx, record); writeErr != nil {
					logger.Error().Err(writeErr).
						Str("supply", record.Supply).
						Msg("Failed to persist usage record")
				}
			}
		}
	}()
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func (a *App) setupSignalHandler() {
	sigChan := make(chan os.Signal, signalChannelSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		a.performGracefulShutdown()
	}()
}

// runMainLoop periodically refreshes the account's resource listing so
// supply changes (a new meter, a moved account) are picked up without a
// restart.
func (a *App) runMainLoop(ctx context.Context) {
	relistTicker := time.NewTicker(relistInterval)
	defer relistTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down")
			a.performCleanup()
			return
		case <-relistTicker.C:
			if ctx.Err() != nil {
				return
			}
			a.refreshResources(ctx)
		}
	}
}

// refreshResources re-reads the resource listing for the account
func (a *App) refreshResources(ctx context.Context) {
	resources, err := a.client.ListResources(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Resource listing refresh failed")
		return
	}
	logger.Info().Int("resources", len(resources)).Msg("Resource listing refreshed")
}

// DumpApplicationState dumps current application state to logs
func (a *App) DumpApplicationState() {
	logger.Info().Msg("=== APPLICATION STATE DUMP (SIGUSR1) ===")

	session := a.client.Session()
	logger.Info().
		Str("account_id", session.AccountID).
		Time("token_expiry", session.Expiry).
		Msg("Session state")

	logger.Info().
		Int("polled_supplies", a.poller.PolledSupplyCount()).
		Bool("electricity", a.poller.IsPolling(poller.SupplyElectricity)).
		Bool("gas", a.poller.IsPolling(poller.SupplyGas)).
		Msg("Polling state")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info().
		Uint64("alloc_mb", m.Alloc/1024/1024).
		Uint64("total_alloc_mb", m.TotalAlloc/1024/1024).
		Uint32("num_gc", m.NumGC).
		Int("num_goroutines", runtime.NumGoroutine()).
		Msg("Runtime statistics")

	logger.Info().Msg("=== END STATE DUMP ===")
}

// DumpGoroutineStackTraces dumps all goroutine stack traces to logs
func DumpGoroutineStackTraces() {
	logger.Info().Msg("=== GOROUTINE STACK TRACES (SIGUSR2) ===")
	logger.Info().Int("num_goroutines", runtime.NumGoroutine()).Msg("Current goroutine count")

	buf := make([]byte, 1024*1024)
	stackLen := runtime.Stack(buf, true)
	logger.Info().Str("stack_traces", string(buf[:stackLen])).Msg("Full stack trace")

	logger.Info().Msg("=== END STACK TRACES ===")
}

// performGracefulShutdown handles graceful shutdown of all components
func (a *App) performGracefulShutdown() {
	logger.Info().Msg("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server stopped")
	}

	a.poller.Stop()
	a.configWatcher.Stop()
	a.cancel()
}

// performCleanup flushes storage and waits for goroutines to finish
func (a *App) performCleanup() {
	flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
	defer flushCancel()

	flushDone := make(chan struct{})
	go func() {
		a.db.Flush()
		close(flushDone)
	}()

	select {
	case <-flushDone:
		logger.Info().Msg("InfluxDB flush completed")
	case <-flushCtx.Done():
		logger.Warn().Msg("InfluxDB flush timeout - some data may be lost")
	}

	a.db.Close()

	logger.Info().Msg("Waiting for goroutines to finish...")
	a.wg.Wait()
	logger.Info().Msg("All goroutines finished, exiting")
}

// UpdateConfig updates the application's configuration.
func (a *App) UpdateConfig(newCfg *config.Config) {
	a.cfg = newCfg
	logger.Info().Msg("Application configuration updated")

	a.poller.UpdateIntervals(newCfg.Poller.ElectricityInterval, newCfg.Poller.GasInterval)
	a.notifier.UpdateWebhookURL(newCfg.Notifications.SlackWebhookURL)
}

// startConfigWatcher starts a goroutine to listen for config file changes and reloads
func (a *App) startConfigWatcher(configChan <-chan *config.Config) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				logger.Info().Msg("Config watcher goroutine shutting down")
				return
			case newCfg := <-configChan:
				a.UpdateConfig(newCfg)
			}
		}
	}()
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded for health endpoint")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// healthCheckHandler handles health check requests
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("OK")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write health check response")
	}
}

// readinessCheckHandler handles readiness check requests
func readinessCheckHandler(w http.ResponseWriter, _ *http.Request, db interfaces.TimeSeriesStorage) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessCheckTimeout)
	defer cancel()

	if err := db.Health(ctx); err != nil {
		logger.Warn().Err(err).Msg("Readiness check failed: InfluxDB unhealthy")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, writeErr := w.Write([]byte("NOT READY: InfluxDB unhealthy")); writeErr != nil {
			logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte("READY")); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write readiness check response")
	}
}

// performHealthCheck performs a health check and returns exit code
func performHealthCheck(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: could not load config: %v\n", err)
		return 1
	}

	influxDB, err := storage.NewInfluxDBStorage(
		cfg.InfluxDB.URL,
		cfg.InfluxDB.Token,
		cfg.InfluxDB.Organization,
		cfg.InfluxDB.Bucket,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: could not create InfluxDB client: %v\n", err)
		return 1
	}
	defer influxDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := influxDB.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: InfluxDB is unhealthy: %v\n", err)
		return 1
	}

	fmt.Println("Health check passed: InfluxDB is healthy")
	return 0
}

// performConfigValidation validates the configuration file and returns exit code
func performConfigValidation(configPath string) int {
	logger.Initialize("info")
	logger.Info().Str("path", configPath).Msg("Validating configuration file")

	if err := config.ValidateWithSchema(configPath); err != nil {
		logger.Error().Err(err).Msg("Configuration schema validation failed")
		fmt.Fprintf(os.Stderr, "\n❌ Configuration validation FAILED\n")
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Configuration validation failed")
		fmt.Fprintf(os.Stderr, "\n❌ Configuration validation FAILED\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		return 1
	}

	fmt.Println("\n✅ Configuration validation PASSED")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Glow API: %s\n", cfg.Glow.BaseURL)
	fmt.Printf("  Glow Username: %s\n", cfg.Glow.Username)
	fmt.Printf("  InfluxDB URL: %s\n", cfg.InfluxDB.URL)
	fmt.Printf("  InfluxDB Organization: %s\n", cfg.InfluxDB.Organization)
	fmt.Printf("  InfluxDB Bucket: %s\n", cfg.InfluxDB.Bucket)
	fmt.Printf("  Log Level: %s\n", cfg.Logging.Level)
	fmt.Printf("  Electricity Interval: %s\n", cfg.Poller.ElectricityInterval)
	fmt.Printf("  Gas Interval: %s\n", cfg.Poller.GasInterval)
	fmt.Printf("  Cache Directory: %s\n", cfg.Cache.Directory)
	fmt.Printf("  Cache Max Entries: %d\n", cfg.Cache.MaxEntries)

	if cfg.Notifications.SlackWebhookURL != "" {
		fmt.Println("  Slack Notifications: Enabled")
	} else {
		fmt.Println("  Slack Notifications: Disabled")
	}

	fmt.Println("\nAll validation checks passed. Configuration is ready for use.")
	return 0
}
