// Package authz decides whether a caller may perform an action on a resource, combining the
// token role, resource ownership, direct assignment and team membership.
package authz

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// Action names an operation subject to authorization.
type Action string

const (
	TaskCreate       Action = "task.create"
	TaskList         Action = "task.list"
	TaskListTeam     Action = "task.listTeam"
	TaskView         Action = "task.view"
	TaskUpdate       Action = "task.update"
	TaskAssign       Action = "task.assign"
	TaskUpdateStatus Action = "task.updateStatus"
	TaskDelete       Action = "task.delete"

	TeamCreate       Action = "team.create"
	TeamList         Action = "team.list"
	TeamView         Action = "team.view"
	TeamMembers      Action = "team.members"
	TeamUpdate       Action = "team.update"
	TeamAddMember    Action = "team.addMember"
	TeamRemoveMember Action = "team.removeMember"
	TeamDelete       Action = "team.delete"

	UserList       Action = "user.list"
	UserView       Action = "user.view"
	UserMe         Action = "user.me"
	UserUpdateSelf Action = "user.updateSelf"
)

// Resource carries the facts about the target record. Zero fields mean "not applicable".
type Resource struct {
	OwnerID        uuid.UUID
	AssignedUserID *uuid.UUID
	AssignedTeamID *uuid.UUID
}

// Decision is the outcome of Authorize.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// Rule names the precedence step that produced a decision.
type Rule string

const (
	RuleOwner    Rule = "owner"
	RuleAssignee Rule = "assignee"
	RuleTeam     Rule = "team_member"
	RuleRole     Rule = "role"
	RuleDefault  Rule = "default_deny"
)

// MembershipChecker answers team membership. Implementations must return false on any failure.
type MembershipChecker interface {
	IsMember(ctx context.Context, teamID, userID uuid.UUID) bool
}

// Policy holds the per-action permissions.
type Policy struct {
	// Owner lists actions the resource owner may perform.
	Owner map[Action]bool
	// Assignee lists actions granted to the direct assignee and to members of the assigned team.
	Assignee map[Action]bool
	// Roles lists the roles allowed to perform an action regardless of ownership.
	Roles map[Action][]model.Role
}

var everyone = []model.Role{model.RoleMember, model.RoleTeamLeader, model.RoleAdmin}

// DefaultPolicy returns the standard taskmesh policy.
func DefaultPolicy() Policy {
	return Policy{
		Owner: set(
			TaskView, TaskUpdate, TaskAssign, TaskUpdateStatus, TaskDelete,
			TeamView, TeamMembers, TeamUpdate, TeamAddMember, TeamRemoveMember,
			UserMe, UserUpdateSelf, UserView,
		),
		Assignee: set(TaskView, TaskUpdateStatus),
		Roles: map[Action][]model.Role{
			TaskCreate:   everyone,
			TaskList:     everyone,
			TaskListTeam: {model.RoleTeamLeader, model.RoleAdmin},
			TaskView:     {model.RoleAdmin},

			TeamCreate:  {model.RoleTeamLeader, model.RoleAdmin},
			TeamList:    everyone,
			TeamView:    everyone,
			TeamMembers: everyone,
			TeamDelete:  {model.RoleAdmin},

			TeamUpdate:       {model.RoleAdmin},
			TeamAddMember:    {model.RoleAdmin},
			TeamRemoveMember: {model.RoleAdmin},

			UserList: {model.RoleAdmin, model.RoleTeamLeader},
			UserView: {model.RoleAdmin, model.RoleTeamLeader},
			UserMe:   everyone,
		},
	}
}

func set(actions ...Action) map[Action]bool {
	m := make(map[Action]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}

// Engine evaluates a Policy. Safe for concurrent use.
type Engine struct {
	policy  Policy
	members MembershipChecker
}

// New constructs an engine.
func New(policy Policy, members MembershipChecker) *Engine {
	return &Engine{policy: policy, members: members}
}

// Authorize evaluates, in order: ownership, direct assignment, assigned team membership,
// role allow list, and finally denies.
func (e *Engine) Authorize(ctx context.Context, c model.Claims, action Action, res Resource) (Decision, Rule) {
	sub := c.SubjectID
	if sub == uuid.Nil {
		return Deny, RuleDefault
	}

	if res.OwnerID != uuid.Nil && res.OwnerID == sub && e.policy.Owner[action] {
		return Allow, RuleOwner
	}

	if e.policy.Assignee[action] {
		if res.AssignedUserID != nil && *res.AssignedUserID == sub {
			return Allow, RuleAssignee
		}
		if res.AssignedTeamID != nil && e.members != nil && e.members.IsMember(ctx, *res.AssignedTeamID, sub) {
			return Allow, RuleTeam
		}
	}

	for _, r := range e.policy.Roles[action] {
		if r == c.Role {
			return Allow, RuleRole
		}
	}
	return Deny, RuleDefault
}

// Allowed is Authorize without the rule.
func (e *Engine) Allowed(ctx context.Context, c model.Claims, action Action, res Resource) bool {
	d, _ := e.Authorize(ctx, c, action, res)
	return d == Allow
}
