package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tradefarm/config"
	"tradefarm/core/state"
	"tradefarm/gateway"
	"tradefarm/native/farming"
	"tradefarm/observability/logging"
	"tradefarm/observability/otel"
	"tradefarm/storage"
)

func main() {
	var (
		configPath = flag.String("config", "./config.toml", "path to the tradefarmd configuration file")
		memory     = flag.Bool("memory", false, "run against an in-memory store (state is lost on exit)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	env := cfg.Environment
	if override := os.Getenv("TRADEFARM_ENV"); override != "" {
		env = override
	}
	logger := logging.Setup("tradefarmd", env, logging.RotationConfig{
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		endpoint := cfg.Telemetry.Endpoint
		if override := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); override != "" {
			endpoint = override
		}
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "tradefarmd",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("initialise telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := farming.NewEngine()

	if err := bootstrapProgram(manager, engine, cfg, logger); err != nil {
		logger.Error("bootstrap program", "error", err)
		os.Exit(1)
	}

	server := gateway.New(gateway.Config{
		Manager:           manager,
		Engine:            engine,
		JWTSecret:         cfg.OwnerJWTSecret,
		Logger:            logger,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(server.Handler(), "tradefarmd"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}
}

// bootstrapProgram writes the campaign record on first boot. A node restarted
// against an existing data dir keeps the stored program and ignores the
// configured parameters.
func bootstrapProgram(manager *state.Manager, engine *farming.Engine, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Program.TotalDays == 0 {
		return nil
	}
	owner, err := config.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		return fmt.Errorf("owner address: %w", err)
	}
	seed, ok := new(big.Int).SetString(cfg.Program.PreviousVolume, 10)
	if !ok {
		return fmt.Errorf("malformed previous volume %q", cfg.Program.PreviousVolume)
	}
	params := farming.Params{
		StartTime:      time.Unix(cfg.Program.StartTime, 0),
		PreviousVolume: seed,
		PreviousDays:   cfg.Program.PreviousDays,
		TotalDays:      cfg.Program.TotalDays,
		BonusRateBps:   cfg.Program.BonusRateBps,
		PenaltyRateBps: cfg.Program.PenaltyRateBps,
		DayLength:      time.Duration(cfg.Program.DayLengthSeconds) * time.Second,
		Owner:          owner,
	}
	_, err = manager.Update(func(txn *state.Txn) error {
		existing, err := txn.FarmingProgram()
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Info("program already initialised", "lastFinalizedDay", existing.LastFinalizedDay)
			return nil
		}
		program, err := engine.InitProgram(txn, params)
		if err != nil {
			return err
		}
		logger.Info("program initialised",
			"startTime", program.StartTime,
			"totalDays", program.TotalDays,
			"previousDays", program.PreviousDays,
		)
		return nil
	})
	return err
}
