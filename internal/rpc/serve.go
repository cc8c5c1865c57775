package rpc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownGrace = 5 * time.Second

// NewGRPCServer builds a gRPC server with the standard interceptor chain, the command
// registry and the gRPC health service. Reflection is enabled in dev mode only.
func (s *Server) NewGRPCServer(dev bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoverUnary(s.log),
		ContextUnary(),
		LoggingUnary(s.log),
	))
	gs := grpc.NewServer(opts...)
	s.Register(gs)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	if dev {
		reflection.Register(gs)
	}
	return gs
}

// Serve listens on addr until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, addr string, dev bool, opts ...grpc.ServerOption) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, lis, dev, opts...)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener, dev bool, opts ...grpc.ServerOption) error {
	gs := s.NewGRPCServer(dev, opts...)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("service", s.name), zap.String("addr", lis.Addr().String()))
		errCh <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			gs.Stop()
		}
		return nil
	case err := <-errCh:
		return err
	}
}
