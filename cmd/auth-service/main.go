// Command auth-service owns identities, tokens and registration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/alert"
	"github.com/and161185/taskmesh/internal/commands"
	"github.com/and161185/taskmesh/internal/config"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/limiter"
	"github.com/and161185/taskmesh/internal/logging"
	"github.com/and161185/taskmesh/internal/migrate"
	"github.com/and161185/taskmesh/internal/repository/postgres"
	"github.com/and161185/taskmesh/internal/rpc"
	"github.com/and161185/taskmesh/internal/saga"
	"github.com/and161185/taskmesh/internal/service"
	"github.com/and161185/taskmesh/internal/token"
	"github.com/and161185/taskmesh/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves auth-service commands.
func main() {
	cfg, err := config.Load[config.Auth]()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.JWTSecret, "jwt-key", cfg.JWTSecret, "HS256 signing key (required)")
	flag.DurationVar(&cfg.TokenTTL, "access-ttl", cfg.TokenTTL, "access token TTL")
	flag.StringVar(&cfg.Limiter.Backend, "limiter", cfg.Limiter.Backend, "login limiter backend: postgres|redis|none")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection (dev only)")
	flag.Parse()

	logger, err := logging.New(contract.AuthService, cfg.LogLevel, cfg.Dev)
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

	if cfg.JWTSecret == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or JWT_SECRET)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, migrations.Auth); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	identities := postgres.NewIdentityRepo(db)

	settings := limiter.Settings{Window: cfg.Limiter.Window, MaxFails: cfg.Limiter.MaxFails, BlockFor: cfg.Limiter.BlockFor}
	var lim limiter.Limiter
	switch cfg.Limiter.Backend {
	case "postgres":
		lim = limiter.NewPG(db.Pool, settings)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Limiter.RedisAddr, Password: cfg.Limiter.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		lim = limiter.NewRedis(rdb, settings)
	case "none":
		lim = limiter.Noop{}
	default:
		logger.Fatal("unknown limiter backend", zap.String("backend", cfg.Limiter.Backend))
	}

	// Alerts go to the log and, when configured, to RabbitMQ
	alerts := alert.Multi{alert.NewLog(logger)}
	if cfg.Alert.AMQPURL != "" {
		conn, err := alert.Dial(cfg.Alert.AMQPURL, cfg.Alert.Queue)
		if err != nil {
			logger.Fatal("amqp dial", zap.Error(err))
		}
		defer conn.Close()
		alerts = append(alerts, alert.NewAMQP(conn.Channel(), cfg.Alert.Queue))
	}

	client, err := rpc.Dial(cfg.Services.Directory(), cfg.Services.RPCTimeout, logger)
	if err != nil {
		logger.Fatal("rpc dial", zap.Error(err))
	}
	defer client.Close()

	// Services
	tokens := token.New([]byte(cfg.JWTSecret), cfg.TokenTTL, identities)
	reg := saga.NewRegistration(identities, saga.NewRPCNotifier(client), tokens, alerts, logger).
		WithCompensationTimeout(cfg.CompensationTimeout)
	authSvc := service.NewAuthService(identities, tokens, reg, lim, cfg.BootstrapAdmins)

	srv := rpc.NewServer(contract.AuthService, logger)
	commands.RegisterAuth(srv, authSvc, service.NewHealth(contract.AuthService, db))

	if err := srv.Serve(ctx, cfg.Addr, cfg.Dev); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
