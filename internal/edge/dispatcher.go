// Package edge is the public HTTP entry point. It authenticates callers, resolves the facts a
// decision needs, authorizes, and relays allowed requests to the owning service unchanged.
package edge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/authz"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/rpc"
)

// Verifier checks a token locally.
type Verifier interface {
	Verify(raw string) (model.Claims, error)
}

// Authorizer decides an action for a caller.
type Authorizer interface {
	Authorize(ctx context.Context, c model.Claims, action authz.Action, res authz.Resource) (authz.Decision, authz.Rule)
}

// Dispatcher runs the verify, resolve, authorize and forward pipeline.
type Dispatcher struct {
	tokens        Verifier
	rpc           rpc.Caller
	authz         Authorizer
	verifySubject bool
	log           *zap.Logger
}

// NewDispatcher constructs a dispatcher. With verifySubject the subject standing is confirmed
// by auth-service on every protected request.
func NewDispatcher(tokens Verifier, caller rpc.Caller, az Authorizer, verifySubject bool, log *zap.Logger) *Dispatcher {
	return &Dispatcher{tokens: tokens, rpc: caller, authz: az, verifySubject: verifySubject, log: log}
}

func bearer(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Authenticate verifies the Authorization header and returns the caller claims.
func (d *Dispatcher) Authenticate(ctx context.Context, header string) (model.Claims, error) {
	raw, ok := bearer(header)
	if !ok {
		return model.Claims{}, errs.New(errs.KindUnauthorized, "missing bearer token")
	}
	c, err := d.tokens.Verify(raw)
	if err != nil {
		return model.Claims{}, err
	}
	if !d.verifySubject {
		return c, nil
	}
	var active model.Claims
	err = d.rpc.Send(ctx, contract.AuthService, contract.CmdVerifyToken, contract.VerifyTokenRequest{Token: raw}, &active)
	if err != nil {
		return model.Claims{}, err
	}
	return active, nil
}

// TaskFacts reads owner and assignees of a task from task-service.
func (d *Dispatcher) TaskFacts(ctx context.Context, actor model.Claims, id uuid.UUID) (authz.Resource, error) {
	var t model.Task
	req := contract.IDRequest{Actor: actor, ID: id}
	if err := d.rpc.Send(ctx, contract.TaskService, contract.CmdTaskFindOne, req, &t); err != nil {
		return authz.Resource{}, err
	}
	return authz.Resource{OwnerID: t.OwnerID, AssignedUserID: t.AssignedUserID, AssignedTeamID: t.AssignedTeamID}, nil
}

// TeamFacts reads the creator of a team from user-service.
func (d *Dispatcher) TeamFacts(ctx context.Context, actor model.Claims, id uuid.UUID) (authz.Resource, error) {
	var t model.Team
	req := contract.IDRequest{Actor: actor, ID: id}
	if err := d.rpc.Send(ctx, contract.UserService, contract.CmdTeamFindOne, req, &t); err != nil {
		return authz.Resource{}, err
	}
	return authz.Resource{OwnerID: t.CreatorID}, nil
}

// Authorize fails with Forbidden on deny.
func (d *Dispatcher) Authorize(ctx context.Context, c model.Claims, action authz.Action, res authz.Resource) error {
	dec, rule := d.authz.Authorize(ctx, c, action, res)
	if dec == authz.Deny {
		d.log.Info("access denied",
			zap.String("action", string(action)),
			zap.String("subject", c.SubjectID.String()),
			zap.String("role", string(c.Role)),
		)
		return errs.New(errs.KindForbidden, "forbidden")
	}
	d.log.Debug("access granted", zap.String("action", string(action)), zap.String("rule", string(rule)))
	return nil
}

// Forward sends the command and returns the raw result for verbatim relay.
func (d *Dispatcher) Forward(ctx context.Context, dest, cmd string, payload any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := d.rpc.Send(ctx, dest, cmd, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
