package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/taskmesh/internal/errs"
)

// HandlerFunc serves a command and returns a JSON-encodable result.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// EventFunc serves a notification. Its failure is reported back to the emitter.
type EventFunc func(ctx context.Context, payload json.RawMessage) error

// Server is the command registry of one service. Handlers are registered before
// Register is called and are read-only afterwards.
type Server struct {
	name     string
	log      *zap.Logger
	handlers map[string]HandlerFunc
	events   map[string]EventFunc
}

// NewServer constructs an empty registry for the named service.
func NewServer(name string, log *zap.Logger) *Server {
	return &Server{
		name:     name,
		log:      log,
		handlers: map[string]HandlerFunc{},
		events:   map[string]EventFunc{},
	}
}

// Name returns the service name.
func (s *Server) Name() string { return s.name }

// Handle registers a command handler. Registering a command twice panics.
func (s *Server) Handle(cmd string, h HandlerFunc) {
	if _, dup := s.handlers[cmd]; dup {
		panic(fmt.Sprintf("rpc: duplicate handler for %q", cmd))
	}
	s.handlers[cmd] = h
}

// On registers an event handler.
func (s *Server) On(event string, h EventFunc) {
	if _, dup := s.events[event]; dup {
		panic(fmt.Sprintf("rpc: duplicate handler for event %q", event))
	}
	s.events[event] = h
}

// Register attaches the registry to a gRPC server.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&serviceDesc, s)
}

// Send implements the request/response method.
func (s *Server) Send(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	cmd := firstMD(ctx, mdCommand)
	out, err := s.Dispatch(withCommand(ctx, cmd), cmd, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(out), nil
}

// Emit implements the notification method.
func (s *Server) Emit(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	event := firstMD(ctx, mdCommand)
	h, ok := s.events[event]
	if !ok {
		return nil, toStatus(errs.Newf(errs.KindNotFound, "no handler for event %q", event))
	}
	if err := h(withCommand(ctx, event), in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Dispatch runs a command locally and returns its JSON result.
func (s *Server) Dispatch(ctx context.Context, cmd string, payload []byte) ([]byte, error) {
	h, ok := s.handlers[cmd]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "unknown command %q", cmd)
	}
	res, err := h(ctx, payload)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "encode result", err)
	}
	return out, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Bind adapts a typed function to a HandlerFunc. The payload is decoded as JSON and
// validated by its `validate` struct tags.
func Bind[Req, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		req, err := decode[Req](payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

// BindEvent is Bind for notifications.
func BindEvent[Req any](fn func(ctx context.Context, req Req) error) EventFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		req, err := decode[Req](payload)
		if err != nil {
			return err
		}
		return fn(ctx, req)
	}
}

func decode[Req any](payload json.RawMessage) (Req, error) {
	var req Req
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &req); err != nil {
			return req, errs.Wrap(errs.KindInvalidArgument, "malformed payload", err)
		}
	}
	return req, Validate(req)
}

// Validate checks v against its `validate` struct tags. Values that are not structs pass.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var inv *validator.InvalidValidationError
		if errors.As(err, &inv) {
			return nil
		}
		return validationError(err)
	}
	return nil
}

// validationError renders validator failures as one invalid-argument error.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errs.Wrap(errs.KindInvalidArgument, "invalid payload", err)
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errs.New(errs.KindInvalidArgument, "validation failed: "+strings.Join(parts, "; "))
}
