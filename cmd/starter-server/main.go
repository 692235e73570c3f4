package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/config"
	"github.com/dd0wney/cluso-starter/pkg/database"
	"github.com/dd0wney/cluso-starter/pkg/health"
	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/dd0wney/cluso-starter/pkg/metrics"
	"github.com/dd0wney/cluso-starter/pkg/migrations"
	"github.com/dd0wney/cluso-starter/pkg/server"
)

const metricsInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (environment variables override it)")
	migrate := flag.Bool("migrate", false, "Apply pending migrations before serving")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.ErrorLog("invalid configuration", logging.Error(err))
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(logger)

	logger.Info("starter server starting",
		logging.String("addr", cfg.HTTPAddr),
		logging.Int("pool_size", cfg.PoolSize),
	)

	reg := metrics.DefaultRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to open database", logging.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if *migrate {
		m := migrations.NewMigrator(db, cfg.MigrationsDir, db.Runner(), logger, reg)
		applied, err := m.Up(ctx)
		if err != nil {
			logger.Error("migration failed", logging.Error(err))
			os.Exit(1)
		}
		logger.Info("migrations complete", logging.Count(len(applied)))
	}

	hc := health.NewHealthChecker()
	hc.RegisterCheck("database", health.DatabaseCheck(db.Ping))
	hc.RegisterCheck("db_pool", health.PoolCheck(func() (int32, int32) {
		s := db.Stats()
		return s.AcquiredConns(), s.MaxConns()
	}))
	hc.RegisterReadinessCheck("database", health.DatabaseCheck(db.Ping))

	go collectMetrics(ctx, reg, db)

	gs := server.NewGracefulServer(cfg.HTTPAddr, server.Routes(hc, reg), logger)
	gs.SetConfigReloadFunc(func() error {
		next, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		logger.SetLevel(logging.ParseLevel(next.LogLevel))
		return nil
	})

	if *configPath != "" {
		err := config.Watch(ctx, *configPath,
			func() { gs.ReloadConfig() },
			func(err error) { logger.Warn("config watcher stopped", logging.Error(err)) },
		)
		if err != nil {
			logger.Warn("config file will not be watched", logging.Error(err))
		}
	}

	if err := gs.Run(ctx); err != nil {
		logger.Error("server error", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadFromEnv()
}

func collectMetrics(ctx context.Context, reg *metrics.Registry, db *database.DB) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		reg.UpdatePoolMetrics(db.Stats())
		reg.UpdateSystemMetrics()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
