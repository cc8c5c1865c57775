package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

// ProfileRepo implements ProfileRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

const profileColumns = `id, email, first_name, last_name, phone, role, created_at, updated_at`

func scanProfile(row pgx.Row, extra ...any) (model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	dest := append([]any{&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &role, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Profile{}, err
	}
	p.Role = model.Role(role)
	return p, nil
}

// Create inserts a profile row; a replayed user.created for the same id changes nothing.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	const q = `
INSERT INTO profiles (id, email, first_name, last_name, phone, role)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, p.ID, p.Email, p.FirstName, p.LastName, p.Phone, string(p.Role))
	if isUniqueViolation(err) {
		return errs.New(errs.KindConflict, "profile email already exists")
	}
	return err
}

// GetByID selects a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetByEmail selects a profile by email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email=$1`, email))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Update writes names and phone and refreshes UpdatedAt.
func (r *ProfileRepo) Update(ctx context.Context, p *model.Profile) error {
	const q = `
UPDATE profiles SET first_name=$2, last_name=$3, phone=$4, updated_at=now()
WHERE id=$1
RETURNING updated_at`
	err := r.db.Pool.QueryRow(ctx, q, p.ID, p.FirstName, p.LastName, p.Phone).Scan(&p.UpdatedAt)
	return notFound(err)
}

// List pages through profiles; Search matches email or either name, case-insensitively.
func (r *ProfileRepo) List(ctx context.Context, f model.ProfileFilter) ([]model.Profile, int, error) {
	page, size := model.Normalize(f.Page, f.PageSize)
	const q = `
SELECT ` + profileColumns + `, count(*) OVER()
FROM profiles
WHERE $1 = '' OR email ILIKE '%' || $1 || '%' OR first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%'
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, q, f.Search, size, offset(page, size))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Profile{}
	total := 0
	for rows.Next() {
		p, err := scanProfile(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Exists reports whether a profile with id is stored.
func (r *ProfileRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}
