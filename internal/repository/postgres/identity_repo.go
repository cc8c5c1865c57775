package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

// IdentityRepo implements IdentityRepository using PostgreSQL.
type IdentityRepo struct{ db *DB }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

// Create inserts a new identity row.
func (r *IdentityRepo) Create(ctx context.Context, u *model.Identity) error {
	const q = `
INSERT INTO auth_users (id, email, pwd_hash, role, active, first_name, last_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.ID, u.Email, u.PwdHash, string(u.Role), u.Active, u.FirstName, u.LastName).
		Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.New(errs.KindConflict, "email already registered")
	}
	return err
}

const selectIdentity = `
SELECT id, email, pwd_hash, role, active, first_name, last_name, created_at
FROM auth_users`

func (r *IdentityRepo) getOne(ctx context.Context, where string, arg any) (*model.Identity, error) {
	var (
		u    model.Identity
		role string
	)
	err := r.db.Pool.QueryRow(ctx, selectIdentity+" WHERE "+where, arg).
		Scan(&u.ID, &u.Email, &u.PwdHash, &role, &u.Active, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetByID selects an identity by ID.
func (r *IdentityRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	return r.getOne(ctx, "id=$1", id)
}

// GetByEmail selects an identity by email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.getOne(ctx, "email=$1", email)
}

// Delete removes the identity row.
func (r *IdentityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM auth_users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
