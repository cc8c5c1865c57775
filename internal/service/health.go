package service

import (
	"context"
	"time"

	"github.com/and161185/taskmesh/internal/model"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health answers health_check for one service.
type Health struct {
	service string
	db      Pinger
	timeout time.Duration
	now     func() time.Time
}

// NewHealth constructs a health probe. db may be nil for services without storage.
func NewHealth(service string, db Pinger) *Health {
	return &Health{service: service, db: db, timeout: 2 * time.Second, now: time.Now}
}

// Check pings the database within a short bound. A failed ping is reported, not returned.
func (h *Health) Check(ctx context.Context) model.HealthCheck {
	out := model.HealthCheck{Service: h.service, Status: model.HealthOK, Timestamp: h.now().UTC()}
	if h.db == nil {
		return out
	}
	pctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.db.Ping(pctx); err != nil {
		out.Status = model.HealthError
		out.Details = "database: " + err.Error()
	}
	return out
}
