// Command gateway serves the public HTTP API and relays authorized requests to the services.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/authz"
	"github.com/and161185/taskmesh/internal/config"
	"github.com/and161185/taskmesh/internal/edge"
	"github.com/and161185/taskmesh/internal/logging"
	"github.com/and161185/taskmesh/internal/refcheck"
	"github.com/and161185/taskmesh/internal/rpc"
	"github.com/and161185/taskmesh/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration and serves HTTP until interrupted.
func main() {
	cfg, err := config.Load[config.Gateway]()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.JWTSecret, "jwt-key", cfg.JWTSecret, "HS256 verification key (required)")
	flag.BoolVar(&cfg.VerifySubject, "verify-subject", cfg.VerifySubject, "confirm subject standing with auth-service on every request")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.Parse()

	logger, err := logging.New("gateway", cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("verifySubject", cfg.VerifySubject),
	)

	if cfg.JWTSecret == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rpc.Dial(cfg.Services.Directory(), cfg.Services.RPCTimeout, logger)
	if err != nil {
		logger.Fatal("rpc dial", zap.Error(err))
	}
	defer client.Close()

	engine := authz.New(authz.DefaultPolicy(), refcheck.New(client, logger))
	d := edge.NewDispatcher(token.New([]byte(cfg.JWTSecret), 0, nil), client, engine, cfg.VerifySubject, logger)

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           edge.NewRouter(d, edge.NewHealth(client, cfg.HealthTimeout), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = hs.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
