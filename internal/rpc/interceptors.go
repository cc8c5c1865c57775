package rpc

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/taskmesh/internal/errs"
)

// ContextUnary lifts the correlation id from metadata into the context.
// A call without one gets a fresh id.
func ContextUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		id := firstMD(ctx, mdRequestID)
		if id == "" {
			id = NewRequestID()
		}
		return next(WithRequestID(ctx, id), req)
	}
}

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}
		reqID, _ := RequestIDFromCtx(ctx)

		// metadata only, payloads may carry credentials
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("command", firstMD(ctx, mdCommand)),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
			zap.String("request_id", reqID),
		}
		if err != nil {
			fields = append(fields, zap.String("error", status.Convert(err).Message()))
		}
		log.Info("rpc", fields...)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
					zap.String("command", firstMD(ctx, mdCommand)),
				)
				err = toStatus(errs.New(errs.KindInternal, "internal error"))
			}
		}()
		return next(ctx, req)
	}
}
