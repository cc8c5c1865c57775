// Command user-service owns profiles and teams.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/commands"
	"github.com/and161185/taskmesh/internal/config"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/logging"
	"github.com/and161185/taskmesh/internal/migrate"
	"github.com/and161185/taskmesh/internal/repository/postgres"
	"github.com/and161185/taskmesh/internal/rpc"
	"github.com/and161185/taskmesh/internal/service"
	"github.com/and161185/taskmesh/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves user-service commands.
func main() {
	cfg, err := config.Load[config.Users]()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection (dev only)")
	flag.Parse()

	logger, err := logging.New(contract.UserService, cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, migrations.Users); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	profiles := postgres.NewProfileRepo(db)
	teams := postgres.NewTeamRepo(db)

	srv := rpc.NewServer(contract.UserService, logger)
	commands.RegisterUsers(srv,
		service.NewUserService(profiles),
		service.NewTeamService(teams, profiles),
		service.NewHealth(contract.UserService, db),
	)

	if err := srv.Serve(ctx, cfg.Addr, cfg.Dev); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
