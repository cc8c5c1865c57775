package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// ProfileRepository stores user-service profiles.
type ProfileRepository interface {
	// Create inserts a profile. Re-inserting the same ID is a no-op; another
	// profile holding the email yields errs.ErrConflict.
	Create(ctx context.Context, p *model.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	// Update persists names and phone.
	Update(ctx context.Context, p *model.Profile) error
	List(ctx context.Context, f model.ProfileFilter) ([]model.Profile, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
