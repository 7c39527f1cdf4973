package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"MiniInventory/internal/config"
	"MiniInventory/internal/inventory"
	"MiniInventory/pkg/kit"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inventory HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile, flags.envFile)
			if err != nil {
				return err
			}
			return runServer(cmd, cfg)
		},
	}
}

func runServer(cmd *cobra.Command, cfg config.Config) error {
	log, err := kit.NewLogger(service, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("config loaded", zap.Stringer("config", cfg))

	ctx := cmd.Context()
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("open storage failed", zap.Error(err))
		return err
	}
	defer closeBackend()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := inventory.NewStore(backend, log, inventory.NewStoreMetrics(reg))
	// A missing collection is created on first read.
	log.Info("storage ready", zap.Int("products", len(store.Load(ctx))))

	s := &inventory.Server{Store: store, Log: log}
	if cfg.RateLimit.RPS > 0 {
		s.Limiter = kit.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	h := inventory.NewHandler(s, inventory.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	err = kit.RunHTTPServer(ctx, kit.ServerConfig{
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: cfg.Server.Timeout.ReadHeader,
		ShutdownTimeout:   cfg.Server.Timeout.Shutdown,
	}, h, log)
	if err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
	return err
}
