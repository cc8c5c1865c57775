// Package model defines domain entities shared by services, repositories and the edge.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/errs"
)

// Role is the coarse permission class carried in identity tokens.
type Role string

const (
	RoleMember     Role = "member"
	RoleTeamLeader Role = "team_leader"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleTeamLeader, RoleAdmin:
		return true
	}
	return false
}

// Claims is the verified content of an identity token. It is passed explicitly to
// services acting on behalf of a caller.
type Claims struct {
	SubjectID uuid.UUID `json:"sub"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Identity is an account owned by the auth service. The password hash never leaves it.
type Identity struct {
	ID        uuid.UUID
	Email     string // unique
	PwdHash   string // encoded argon2id
	FirstName string
	LastName  string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

// Profile is the user-service view of an account.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Team groups profiles. The creator is always a member.
type Team struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"` // unique
	Description string      `json:"description,omitempty"`
	CreatorID   uuid.UUID   `json:"creatorId"`
	MemberIDs   []uuid.UUID `json:"memberIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// HasMember reports whether id is among the team members.
func (t *Team) HasMember(id uuid.UUID) bool {
	for _, m := range t.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is a unit of work owned by a user, optionally assigned to a user or a team.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Status         TaskStatus `json:"status"`
	OwnerID        uuid.UUID  `json:"ownerId"`
	AssignedUserID *uuid.UUID `json:"assignedUserId,omitempty"`
	AssignedTeamID *uuid.UUID `json:"assignedTeamId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ValidateAssignment enforces that a task points to at most one assignee.
func (t *Task) ValidateAssignment() error {
	return ValidateAssignment(t.AssignedUserID, t.AssignedTeamID)
}

// ValidateAssignment fails with an invalid-argument error when both references are set.
func ValidateAssignment(userID, teamID *uuid.UUID) error {
	if userID != nil && teamID != nil {
		return errs.New(errs.KindInvalidArgument, "task cannot be assigned to both a user and a team")
	}
	return nil
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	OwnerID        *uuid.UUID
	AssignedUserID *uuid.UUID
	AssignedTeamID *uuid.UUID
	Status         TaskStatus
	Page           int
	PageSize       int
}

// TeamFilter narrows team listings.
type TeamFilter struct {
	MemberID *uuid.UUID
	Search   string
	Page     int
	PageSize int
}

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Search   string
	Page     int
	PageSize int
}

// Paging defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps page and size into sane bounds and returns them.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Page is listing metadata.
type Page struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// HealthStatus is the result of a single health probe.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthError HealthStatus = "error"
)

// HealthCheck is the response of the health_check command.
type HealthCheck struct {
	Service   string       `json:"service"`
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Details   string       `json:"details,omitempty"`
}
