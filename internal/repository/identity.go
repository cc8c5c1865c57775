// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// IdentityRepository stores auth-service accounts.
type IdentityRepository interface {
	// Create inserts a new identity; a taken email yields errs.ErrConflict.
	Create(ctx context.Context, id *model.Identity) error
	// GetByID loads an identity by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	// GetByEmail loads an identity by email.
	GetByEmail(ctx context.Context, email string) (*model.Identity, error)
	// Delete removes an identity; used only to compensate a failed registration.
	Delete(ctx context.Context, id uuid.UUID) error
}
