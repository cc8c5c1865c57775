// Package contract declares service names, command names and JSON payloads exchanged
// between taskmesh services.
package contract

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// Service names used as RPC destinations.
const (
	AuthService = "auth-service"
	TaskService = "task-service"
	UserService = "user-service"
)

// Commands common to every service.
const CmdHealthCheck = "health_check"

// auth-service commands.
const (
	CmdRegister    = "register"
	CmdLogin       = "login"
	CmdVerifyToken = "verify_token"
)

// task-service commands.
const (
	CmdTaskCreate       = "task.create"
	CmdTaskUpdate       = "task.update"
	CmdTaskAssign       = "task.assign"
	CmdTaskUpdateStatus = "task.updateStatus"
	CmdTaskDelete       = "task.delete"
	CmdTaskFindOne      = "task.findOne"
	CmdTaskFindAll      = "task.findAll"
)

// user-service commands and events.
const (
	EventUserCreated = "user.created"

	CmdUserFindOne     = "user.findOne"
	CmdUserFindAll     = "user.findAll"
	CmdUserUpdate      = "user.update"
	CmdUserExists      = "user.exists"
	CmdUserFindByEmail = "user.findByEmail"

	CmdTeamCreate       = "team.create"
	CmdTeamUpdate       = "team.update"
	CmdTeamAddMember    = "team.addMember"
	CmdTeamRemoveMember = "team.removeMember"
	CmdTeamDelete       = "team.delete"
	CmdTeamFindOne      = "team.findOne"
	CmdTeamFindAll      = "team.findAll"
	CmdTeamIsMember     = "team.isMember"
	CmdTeamExists       = "team.exists"
	CmdTeamGetMembers   = "team.getMembers"
)

// Empty is the payload of commands without arguments.
type Empty struct{}

// ---- auth ----

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

type RegisterResponse struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      model.Role  `json:"role"`
	Token     model.Token `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// ClientIP is filled by the edge for rate limiting.
	ClientIP string `json:"clientIp,omitempty"`
}

type UserRef struct {
	ID    uuid.UUID  `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type LoginResponse struct {
	User  UserRef     `json:"user"`
	Token model.Token `json:"token"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ---- users ----

// UserCreated is emitted by auth-service after the identity is committed.
type UserCreated struct {
	ID        uuid.UUID  `json:"id" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	FirstName string     `json:"firstName" validate:"required"`
	LastName  string     `json:"lastName" validate:"required"`
	Phone     string     `json:"phone,omitempty"`
	Role      model.Role `json:"role" validate:"required,oneof=member team_leader admin"`
}

type IDRequest struct {
	Actor model.Claims `json:"actor"`
	ID    uuid.UUID    `json:"id" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UserListRequest struct {
	Actor    model.Claims `json:"actor"`
	Search   string       `json:"search,omitempty" validate:"omitempty,max=100"`
	Page     int          `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize int          `json:"pageSize,omitempty" validate:"omitempty,min=1,max=100"`
}

type UserUpdateRequest struct {
	Actor     model.Claims `json:"actor"`
	ID        uuid.UUID    `json:"id" validate:"required"`
	FirstName *string      `json:"firstName,omitempty" validate:"omitempty,min=2,max=50"`
	LastName  *string      `json:"lastName,omitempty" validate:"omitempty,min=2,max=50"`
	Phone     *string      `json:"phone,omitempty" validate:"omitempty,max=20"`
}

type ProfileList struct {
	Items []model.Profile `json:"items"`
	Meta  model.Page      `json:"meta"`
}

// ExistsResponse is the boolean signal returned by *.exists commands.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// MemberResponse is the boolean signal returned by team.isMember.
type MemberResponse struct {
	Member bool `json:"member"`
}

// ---- teams ----

type TeamCreateRequest struct {
	Actor       model.Claims `json:"actor"`
	Name        string       `json:"name" validate:"required,min=3,max=100"`
	Description string       `json:"description,omitempty" validate:"omitempty,max=500"`
	MemberIDs   []uuid.UUID  `json:"memberIds,omitempty" validate:"omitempty,max=100"`
}

type TeamUpdateRequest struct {
	Actor       model.Claims `json:"actor"`
	ID          uuid.UUID    `json:"id" validate:"required"`
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=500"`
	// MemberIDs replaces the member set when present. The creator always stays.
	MemberIDs []uuid.UUID `json:"memberIds,omitempty" validate:"omitempty,max=100"`
}

type TeamMemberRequest struct {
	Actor  model.Claims `json:"actor"`
	TeamID uuid.UUID    `json:"teamId" validate:"required"`
	UserID uuid.UUID    `json:"userId" validate:"required"`
}

type TeamListRequest struct {
	Actor    model.Claims `json:"actor"`
	UserID   *uuid.UUID   `json:"userId,omitempty"`
	Search   string       `json:"search,omitempty" validate:"omitempty,max=100"`
	Page     int          `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize int          `json:"pageSize,omitempty" validate:"omitempty,min=1,max=100"`
}

type TeamList struct {
	Items []model.Team `json:"items"`
	Meta  model.Page   `json:"meta"`
}

// ---- tasks ----

type TaskCreateRequest struct {
	Actor model.Claims `json:"actor"`
	// ID is an optional client-supplied key; a repeated create with the same id is a conflict.
	ID             *uuid.UUID       `json:"id,omitempty"`
	Title          string           `json:"title" validate:"required,min=3,max=100"`
	Description    string           `json:"description" validate:"required,min=10,max=1000"`
	DueDate        *time.Time       `json:"dueDate,omitempty"`
	Status         model.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done"`
	AssignedUserID *uuid.UUID       `json:"assignedUserId,omitempty"`
	AssignedTeamID *uuid.UUID       `json:"assignedTeamId,omitempty"`
}

type TaskUpdateRequest struct {
	Actor       model.Claims      `json:"actor"`
	ID          uuid.UUID         `json:"id" validate:"required"`
	Title       *string           `json:"title,omitempty" validate:"omitempty,min=3,max=100"`
	Description *string           `json:"description,omitempty" validate:"omitempty,min=10,max=1000"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	Status      *model.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done"`
}

// TaskAssignRequest switches the assignee. Both references empty clears the assignment.
type TaskAssignRequest struct {
	Actor  model.Claims `json:"actor"`
	ID     uuid.UUID    `json:"id" validate:"required"`
	UserID *uuid.UUID   `json:"userId,omitempty"`
	TeamID *uuid.UUID   `json:"teamId,omitempty"`
}

type TaskStatusRequest struct {
	Actor  model.Claims     `json:"actor"`
	ID     uuid.UUID        `json:"id" validate:"required"`
	Status model.TaskStatus `json:"status" validate:"required,oneof=todo in_progress done"`
}

type TaskListRequest struct {
	Actor          model.Claims     `json:"actor"`
	OwnerID        *uuid.UUID       `json:"ownerId,omitempty"`
	AssignedUserID *uuid.UUID       `json:"assignedUserId,omitempty"`
	AssignedTeamID *uuid.UUID       `json:"assignedTeamId,omitempty"`
	Status         model.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done"`
	Page           int              `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize       int              `json:"pageSize,omitempty" validate:"omitempty,min=1,max=100"`
}

// TaskView is a task with its assignee resolved when the owning service answered.
type TaskView struct {
	model.Task
	AssignedUser *model.Profile `json:"assignedUser,omitempty"`
	AssignedTeam *model.Team    `json:"assignedTeam,omitempty"`
}

type TaskList struct {
	Items []model.Task `json:"items"`
	Meta  model.Page   `json:"meta"`
}

// Deleted acknowledges a delete command.
type Deleted struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}
