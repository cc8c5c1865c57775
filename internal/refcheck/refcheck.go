// Package refcheck confirms that references owned by another service exist before they are
// written. Every failure to get a definite answer is treated as "does not exist".
package refcheck

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/rpc"
)

// Entity names the kind of a referenced record.
type Entity string

const (
	User Entity = "user"
	Team Entity = "team"
)

var existsCommands = map[Entity]string{
	User: contract.CmdUserExists,
	Team: contract.CmdTeamExists,
}

// Validator checks references against user-service.
type Validator struct {
	rpc  rpc.Caller
	dest string
	log  *zap.Logger
}

// New constructs a validator asking user-service.
func New(caller rpc.Caller, log *zap.Logger) *Validator {
	return &Validator{rpc: caller, dest: contract.UserService, log: log}
}

// Exists reports whether the entity is known to its owner. Timeouts, unreachable
// owners, rejections and undecodable answers all yield false.
func (v *Validator) Exists(ctx context.Context, entity Entity, id uuid.UUID) bool {
	cmd, ok := existsCommands[entity]
	if !ok || id == uuid.Nil {
		return false
	}
	var out contract.ExistsResponse
	if err := v.rpc.Send(ctx, v.dest, cmd, contract.IDRequest{ID: id}, &out); err != nil {
		v.log.Warn("reference check failed closed",
			zap.String("entity", string(entity)),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return false
	}
	return out.Exists
}

// UserExists is Exists(ctx, User, id).
func (v *Validator) UserExists(ctx context.Context, id uuid.UUID) bool {
	return v.Exists(ctx, User, id)
}

// TeamExists is Exists(ctx, Team, id).
func (v *Validator) TeamExists(ctx context.Context, id uuid.UUID) bool {
	return v.Exists(ctx, Team, id)
}

// IsMember reports whether userID belongs to teamID, with the same fail-closed policy.
func (v *Validator) IsMember(ctx context.Context, teamID, userID uuid.UUID) bool {
	if teamID == uuid.Nil || userID == uuid.Nil {
		return false
	}
	var out contract.MemberResponse
	req := contract.TeamMemberRequest{TeamID: teamID, UserID: userID}
	if err := v.rpc.Send(ctx, v.dest, contract.CmdTeamIsMember, req, &out); err != nil {
		v.log.Warn("membership check failed closed",
			zap.String("team_id", teamID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return false
	}
	return out.Member
}
