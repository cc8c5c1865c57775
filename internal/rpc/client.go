package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/taskmesh/internal/errs"
)

// DefaultTimeout bounds every call unless the client is configured otherwise.
const DefaultTimeout = 10 * time.Second

// Directory maps a service name to its network address.
type Directory map[string]string

// Caller sends commands and notifications to other services.
type Caller interface {
	// Send blocks until the destination responds or the timeout fires. The JSON result
	// is decoded into out unless out is nil.
	Send(ctx context.Context, dest, cmd string, payload, out any) error
	// Emit delivers a notification and reports the handler failure, if any.
	Emit(ctx context.Context, dest, event string, payload any) error
}

// Client is a Caller over gRPC connections, one per destination.
// The connection table is fixed after Dial.
type Client struct {
	conns   map[string]*grpc.ClientConn
	timeout time.Duration
	log     *zap.Logger
}

var _ Caller = (*Client)(nil)

// Dial creates lazy connections to every destination in dir.
func Dial(dir Directory, timeout time.Duration, log *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{conns: make(map[string]*grpc.ClientConn, len(dir)), timeout: timeout, log: log}
	base := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	for name, addr := range dir {
		cc, err := grpc.NewClient(addr, append(base, opts...)...)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.conns[name] = cc
	}
	return c, nil
}

// Close releases every connection.
func (c *Client) Close() error {
	var out error
	for _, cc := range c.conns {
		out = errors.Join(out, cc.Close())
	}
	return out
}

// Send implements Caller.
func (c *Client) Send(ctx context.Context, dest, cmd string, payload, out any) error {
	cc, in, err := c.prepare(dest, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp := new(wrapperspb.BytesValue)
	if err := cc.Invoke(outgoing(ctx, cmd), sendMethod, in, resp); err != nil {
		err = fromStatus(ctx, dest, err)
		c.log.Debug("rpc send failed",
			zap.String("dest", dest),
			zap.String("command", cmd),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	return decodeResult(resp.GetValue(), out)
}

// Emit implements Caller.
func (c *Client) Emit(ctx context.Context, dest, event string, payload any) error {
	cc, in, err := c.prepare(dest, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := cc.Invoke(outgoing(ctx, event), emitMethod, in, new(emptypb.Empty)); err != nil {
		err = fromStatus(ctx, dest, err)
		c.log.Debug("rpc emit failed", zap.String("dest", dest), zap.String("event", event), zap.Error(err))
		return err
	}
	return nil
}

func (c *Client) prepare(dest string, payload any) (*grpc.ClientConn, *wrapperspb.BytesValue, error) {
	cc, ok := c.conns[dest]
	if !ok {
		return nil, nil, errs.Newf(errs.KindUnavailable, "unknown destination %q", dest)
	}
	b, err := encodePayload(payload)
	if err != nil {
		return nil, nil, err
	}
	return cc, wrapperspb.Bytes(b), nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "encode payload", err)
	}
	return b, nil
}

func decodeResult(b []byte, out any) error {
	switch o := out.(type) {
	case nil:
		return nil
	case *json.RawMessage:
		*o = append((*o)[:0], b...)
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errs.Wrap(errs.KindInternal, "decode result", err)
	}
	return nil
}
