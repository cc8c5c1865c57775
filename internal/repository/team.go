package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// TeamMutator changes a locked team in place, members included.
type TeamMutator func(t *model.Team) error

// TeamRepository stores teams and their membership.
type TeamRepository interface {
	// Create inserts a team with its members; a taken name yields errs.ErrConflict.
	Create(ctx context.Context, t *model.Team) error
	Get(ctx context.Context, id uuid.UUID) (*model.Team, error)
	// Update locks the team, applies fn and replaces the stored row and member set.
	Update(ctx context.Context, id uuid.UUID, fn TeamMutator) (*model.Team, error)
	// AddMember fails with errs.ErrConflict when the user is already a member.
	AddMember(ctx context.Context, teamID, userID uuid.UUID) error
	// RemoveMember fails with errs.ErrNotFound when the user is not a member.
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f model.TeamFilter) ([]model.Team, int, error)
	IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
