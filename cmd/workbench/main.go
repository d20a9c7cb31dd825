package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"goarea/internal/api"
	"goarea/internal/auth"
	"goarea/internal/calculator"
	"goarea/internal/config"
	"goarea/internal/database"
	"goarea/internal/grpc"
	"goarea/internal/integrator"
	"goarea/internal/metrics"
	"goarea/internal/orchestrator"
	"goarea/internal/plot"
	"goarea/internal/workbench"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	envFile := config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		// логгер еще не создан
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if envFile != "" {
		logger.Info("env file loaded", zap.String("file", envFile))
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("workbench stopped", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	m := metrics.NewCollector("goarea")
	healthServer := grpc.NewHealthServer(logger)

	integratorCfg := integrator.DefaultConfig(cfg.IntegratorURL)
	integratorCfg.Timeout = cfg.IntegratorTimeout
	integratorCfg.OnAvailabilityChange = func(available bool) {
		m.SetIntegratorAvailable(available)
		healthServer.SetIntegratorAvailable(available)
	}
	client := integrator.NewClient(integratorCfg, nil, logger.Named("integrator"))

	store, err := database.Open(cfg.DBPath, logger.Named("database"))
	if err != nil {
		return err
	}
	defer store.Close()

	var authenticator *auth.Authenticator
	if cfg.JWTSecret != "" {
		if authenticator, err = auth.New(cfg.JWTSecret); err != nil {
			return err
		}
	} else {
		logger.Warn("JWT_SECRET is not set, mutating endpoints are open")
	}

	bench := workbench.NewDefault(
		orchestrator.NewCoordinator(client, logger.Named("coordinator"), m),
		plot.NewSampler(calculator.NewEvaluator(logger.Named("evaluator")), cfg.PlotPoints, logger.Named("plot")),
		workbench.Options{
			Quiet:    cfg.DebounceQuiet,
			Recorder: store,
			Metrics:  m,
			Logger:   logger.Named("workbench"),
		},
	)
	defer bench.Close()

	// первый расчет при старте, как при открытии страницы
	go bench.Recalculate(context.Background())

	grpcServer := grpc.NewServer(healthServer)
	go func() {
		if err := grpc.StartServer(":"+cfg.GRPCPort, grpcServer, logger); err != nil {
			logger.Error("grpc server failed", zap.Error(err))
		}
	}()
	defer grpcServer.GracefulStop()

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.SetupRouter(api.Options{
			Workbench: bench,
			History:   store,
			Auth:      authenticator,
			Metrics:   m.Handler(),
			Logger:    logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
