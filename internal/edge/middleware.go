package edge

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/rpc"
)

// HeaderRequestID carries the correlation id in and out of the edge.
const HeaderRequestID = "X-Request-ID"

// requestID reuses the caller's correlation id or mints one. Downstream RPC calls carry it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = rpc.NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(rpc.WithRequestID(r.Context(), id)))
	})
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			id, _ := rpc.RequestIDFromCtx(r.Context())
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", id),
			)
		})
	}
}

func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					id, _ := rpc.RequestIDFromCtx(r.Context())
					log.Error("panic recovered", zap.Any("panic", rec), zap.String("request_id", id), zap.Stack("stack"))
					writeError(w, log, errs.New(errs.KindInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
