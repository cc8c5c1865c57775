package edge

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/rpc"
)

// HealthReport aggregates the health of every downstream service.
type HealthReport struct {
	Status    model.HealthStatus  `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Services  []model.HealthCheck `json:"services"`
}

// Health probes services concurrently. One failing probe never fails the aggregation.
type Health struct {
	rpc      rpc.Caller
	services []string
	timeout  time.Duration
	now      func() time.Time
}

// NewHealth constructs an aggregator. Each probe is bounded by timeout.
func NewHealth(caller rpc.Caller, timeout time.Duration, services ...string) *Health {
	if len(services) == 0 {
		services = []string{contract.AuthService, contract.TaskService, contract.UserService}
	}
	return &Health{rpc: caller, services: services, timeout: timeout, now: time.Now}
}

// Check fans out health_check and collects one entry per service, in configuration order.
func (h *Health) Check(ctx context.Context) HealthReport {
	checks := make([]model.HealthCheck, len(h.services))
	var g errgroup.Group
	for i, name := range h.services {
		g.Go(func() error {
			checks[i] = h.probe(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	rep := HealthReport{Status: model.HealthOK, Timestamp: h.now().UTC(), Services: checks}
	for _, c := range checks {
		if c.Status != model.HealthOK {
			rep.Status = model.HealthError
		}
	}
	return rep
}

func (h *Health) probe(ctx context.Context, name string) model.HealthCheck {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	var hc model.HealthCheck
	if err := h.rpc.Send(ctx, name, contract.CmdHealthCheck, contract.Empty{}, &hc); err != nil {
		return model.HealthCheck{
			Service:   name,
			Status:    model.HealthError,
			Timestamp: h.now().UTC(),
			Details:   errs.From(err).Message,
		}
	}
	if hc.Service == "" {
		hc.Service = name
	}
	return hc
}
