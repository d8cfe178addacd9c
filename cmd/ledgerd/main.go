package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ledgerprograms/cmd/internal/passphrase"
	"ledgerprograms/config"
	"ledgerprograms/core"
	ledgerstate "ledgerprograms/core/state"
	"ledgerprograms/crypto"
	"ledgerprograms/indexer"
	"ledgerprograms/observability"
	"ledgerprograms/observability/logging"
	telemetry "ledgerprograms/observability/otel"
	"ledgerprograms/rpc"
	"ledgerprograms/storage"
)

const (
	serviceName      = "ledgerd"
	collectorPassEnv = "LEDGER_FEE_COLLECTOR_PASS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*genesisFlag) != "" {
		cfg.GenesisFile = *genesisFlag
	}

	logger, logCloser := setupLogging(cfg)
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("ledgerd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) (*slog.Logger, io.Closer) {
	opts := logging.Options{Service: serviceName, Env: cfg.Logging.Env, Level: cfg.Logging.Level}
	if cfg.Logging.File != "" {
		opts.File = &logging.FileSink{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	return logging.SetupWithOptions(opts)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("ledgerd starting", logging.Attrs(map[string]string{
		"rpc_address": cfg.RPCAddress,
		"genesis":     logging.MaskPath(cfg.GenesisFile),
		"indexer_dsn": cfg.Indexer.DSN,
		"telemetry":   cfg.Telemetry.Endpoint,
	})...)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Logging.Env,
		Programs:     programNames(cfg),
		StateVersion: ledgerstate.StateVersion,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		Headers:      telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:      cfg.Telemetry.Metrics,
		Traces:       cfg.Telemetry.Traces,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	collector, err := resolveCollector(cfg)
	if err != nil {
		return err
	}
	logger.Info("fee collector resolved",
		slog.String("address", collector.String()),
		slog.String("keystore", logging.MaskPath(cfg.FeeCollectorKeystorePath)),
		slog.String("data_dir", logging.MaskPath(cfg.DataDir)))

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sp, err := openLedger(db, cfg, collector, logger)
	if err != nil {
		return err
	}
	sp.Subscribe(observability.Events())

	var index rpc.PaymentIndex
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		gdb, err := indexer.Open(dsn)
		if err != nil {
			return err
		}
		ix := indexer.New(gdb, logger)
		sp.Subscribe(ix)
		index = ix
	}

	server, err := rpc.NewServer(rpc.Config{
		Ledger:       sp,
		Payments:     index,
		RateLimit:    rpc.RateLimit{RequestsPerSecond: cfg.RPC.RateLimitPerSecond, Burst: cfg.RPC.RateLimitBurst},
		MaxBodyBytes: cfg.RPC.MaxBodyBytes,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
	}

	rpcErr := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpcErr <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	slotErr := make(chan error, 1)
	go func() {
		slotErr <- produceSlots(ctx, db, sp, time.Duration(cfg.SlotMillis)*time.Millisecond, logger)
	}()

	var runErr error
	slotsDone := false
	select {
	case <-ctx.Done():
	case runErr = <-rpcErr:
	case runErr = <-slotErr:
		slotsDone = true
	}
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	// The slot producer commits a final head before the database closes.
	if !slotsDone {
		if err := <-slotErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// produceSlots advances the clock once per interval and commits state. It
// returns nil when ctx is cancelled.
func produceSlots(ctx context.Context, db storage.Database, sp *core.StateProcessor, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			clock, err := sp.Clock()
			if err != nil {
				return err
			}
			_, err = commitHead(db, sp, clock.Slot)
			return err
		case now := <-ticker.C:
			clock, err := sp.AdvanceSlot(1, now)
			if err != nil {
				return fmt.Errorf("advance slot: %w", err)
			}
			if _, err := commitHead(db, sp, clock.Slot); err != nil {
				return err
			}
			logger.Debug("slot produced", slog.Uint64("slot", clock.Slot))
		}
	}
}

// resolveCollector tries the empty passphrase of the generated keystore
// before asking the operator.
func resolveCollector(cfg *config.Config) (crypto.Address, error) {
	addr, err := cfg.FeeCollectorAddress(nil)
	if err == nil {
		return addr, nil
	}
	if strings.TrimSpace(cfg.FeeCollector) != "" {
		return crypto.Address{}, err
	}
	source := passphrase.NewSource(collectorPassEnv, "fee collector keystore")
	return cfg.FeeCollectorAddress(source.Get)
}
