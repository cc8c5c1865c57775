// Command task-service owns tasks and their assignment.
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
	"github.com/and161185/taskmesh/internal/refcheck"
	"github.com/and161185/taskmesh/internal/repository/postgres"
	"github.com/and161185/taskmesh/internal/rpc"
	"github.com/and161185/taskmesh/internal/service"
	"github.com/and161185/taskmesh/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves task-service commands.
func main() {
	cfg, err := config.Load[config.Tasks]()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.Services.UserAddr, "user-service", cfg.Services.UserAddr, "user-service address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection (dev only)")
	flag.Parse()

	logger, err := logging.New(contract.TaskService, cfg.LogLevel, cfg.Dev)
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

	if err := migrate.Up(ctx, cfg.DSN, migrations.Tasks); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	client, err := rpc.Dial(cfg.Services.Directory(), cfg.Services.RPCTimeout, logger)
	if err != nil {
		logger.Fatal("rpc dial", zap.Error(err))
	}
	defer client.Close()

	taskSvc := service.NewTaskService(
		postgres.NewTaskRepo(db),
		refcheck.New(client, logger),
		service.NewRemoteRecords(client),
		logger,
	)

	srv := rpc.NewServer(contract.TaskService, logger)
	commands.RegisterTasks(srv, taskSvc, service.NewHealth(contract.TaskService, db))

	if err := srv.Serve(ctx, cfg.Addr, cfg.Dev); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
