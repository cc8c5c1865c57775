package rpc

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const (
	requestIDKey ctxKey = "tm.requestID"
	commandKey   ctxKey = "tm.command"
)

// WithRequestID stores the correlation id in context. Outgoing calls carry it along.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the correlation id from context.
func RequestIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// CommandFromCtx returns the command being served.
func CommandFromCtx(ctx context.Context) string {
	c, _ := ctx.Value(commandKey).(string)
	return c
}

func withCommand(ctx context.Context, cmd string) context.Context {
	return context.WithValue(ctx, commandKey, cmd)
}

func firstMD(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func outgoing(ctx context.Context, cmd string) context.Context {
	kv := []string{mdCommand, cmd}
	if id, ok := RequestIDFromCtx(ctx); ok {
		kv = append(kv, mdRequestID, id)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
