package rpc

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/taskmesh/internal/errs"
)

// Domain tags ErrorInfo details produced by taskmesh services.
const Domain = "taskmesh"

const statusCodeKey = "status_code"

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindInternal:        codes.Internal,
	errs.KindInvalidArgument: codes.InvalidArgument,
	errs.KindUnauthorized:    codes.Unauthenticated,
	errs.KindForbidden:       codes.PermissionDenied,
	errs.KindNotFound:        codes.NotFound,
	errs.KindConflict:        codes.AlreadyExists,
	errs.KindRateLimited:     codes.ResourceExhausted,
	errs.KindTimeout:         codes.DeadlineExceeded,
	errs.KindUnavailable:     codes.Unavailable,
	errs.KindRemote:          codes.Aborted,
	errs.KindInconsistency:   codes.DataLoss,
}

// toStatus converts a handler failure to a gRPC status that always carries the
// normalized message and status code.
func toStatus(err error) error {
	e := errs.From(err)
	code, ok := kindCodes[e.Kind]
	if !ok {
		code = codes.Internal
	}
	st := status.New(code, e.Message)
	info := &errdetails.ErrorInfo{
		Reason:   e.Kind.String(),
		Domain:   Domain,
		Metadata: map[string]string{statusCodeKey: strconv.Itoa(e.StatusCode)},
	}
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// fromStatus translates a call failure into Timeout, Unavailable or a remote rejection.
// A rejection from a handler carries ErrorInfo; anything else is a transport failure.
func fromStatus(ctx context.Context, dest string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTimeout, dest+" did not respond in time", err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return errs.Wrap(errs.KindUnavailable, dest+" unavailable", err)
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		code, _ := strconv.Atoi(info.GetMetadata()[statusCodeKey])
		return errs.Remote(st.Message(), code)
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Canceled:
		return errs.Wrap(errs.KindTimeout, dest+" did not respond in time", err)
	default:
		return errs.Wrap(errs.KindUnavailable, dest+" unavailable", err)
	}
}
