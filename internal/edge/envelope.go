package edge

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/errs"
)

// ErrorBody is the client-visible part of a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope wraps every HTTP response of the edge.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
	Meta  any        `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// writeError exposes only the code, the message and the status code. A remote rejection
// keeps the status code chosen by the service that produced it.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	e := errs.From(err)
	code := e.Kind
	if code == errs.KindRemote {
		code = errs.KindForStatus(e.StatusCode)
	}
	if e.StatusCode >= http.StatusInternalServerError {
		log.Warn("request failed", zap.String("kind", e.Kind.String()), zap.Error(err))
	}
	writeJSON(w, e.StatusCode, Envelope{Error: &ErrorBody{Code: code.String(), Message: e.Message}})
}
