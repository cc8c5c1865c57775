package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
)

// TeamRepo implements TeamRepository using PostgreSQL.
type TeamRepo struct{ db *DB }

// NewTeamRepo constructs a team repository.
func NewTeamRepo(db *DB) *TeamRepo { return &TeamRepo{db: db} }

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// selectTeam returns teams with their member ids aggregated into one column.
const selectTeam = `
SELECT t.id, t.name, t.description, t.creator_id, t.created_at, t.updated_at,
  COALESCE(array_agg(m.user_id ORDER BY m.user_id) FILTER (WHERE m.user_id IS NOT NULL), '{}')`

const teamFrom = `
FROM teams t LEFT JOIN team_members m ON m.team_id = t.id`

func scanTeam(row pgx.Row, extra ...any) (model.Team, error) {
	var t model.Team
	dest := append([]any{&t.ID, &t.Name, &t.Description, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt, &t.MemberIDs}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Team{}, err
	}
	return t, nil
}

func getTeam(ctx context.Context, q rowQuerier, id uuid.UUID) (*model.Team, error) {
	t, err := scanTeam(q.QueryRow(ctx, selectTeam+teamFrom+` WHERE t.id=$1 GROUP BY t.id`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}

func insertMembers(ctx context.Context, tx pgx.Tx, teamID uuid.UUID, members []uuid.UUID) error {
	const ins = `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`
	for _, m := range members {
		if _, err := tx.Exec(ctx, ins, teamID, m); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts the team row and its members in one transaction.
func (r *TeamRepo) Create(ctx context.Context, t *model.Team) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		const q = `
INSERT INTO teams (id, name, description, creator_id)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`
		err := tx.QueryRow(ctx, q, t.ID, t.Name, t.Description, t.CreatorID).Scan(&t.CreatedAt, &t.UpdatedAt)
		if isUniqueViolation(err) {
			return errs.Newf(errs.KindConflict, "team %q already exists", t.Name)
		}
		if err != nil {
			return err
		}
		return insertMembers(ctx, tx, t.ID, t.MemberIDs)
	})
}

// Get returns a team with its members.
func (r *TeamRepo) Get(ctx context.Context, id uuid.UUID) (*model.Team, error) {
	return getTeam(ctx, r.db.Pool, id)
}

// Update locks the team, applies fn and rewrites the row and the member set.
func (r *TeamRepo) Update(ctx context.Context, id uuid.UUID, fn repository.TeamMutator) (*model.Team, error) {
	var out *model.Team
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM teams WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return notFound(err)
		}
		t, err := getTeam(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		const upd = `UPDATE teams SET name=$2, description=$3, updated_at=now() WHERE id=$1 RETURNING updated_at`
		err = tx.QueryRow(ctx, upd, id, t.Name, t.Description).Scan(&t.UpdatedAt)
		if isUniqueViolation(err) {
			return errs.Newf(errs.KindConflict, "team %q already exists", t.Name)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id=$1`, id); err != nil {
			return err
		}
		if err := insertMembers(ctx, tx, id, t.MemberIDs); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember inserts one membership row.
func (r *TeamRepo) AddMember(ctx context.Context, teamID, userID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`, teamID, userID)
	switch {
	case isUniqueViolation(err):
		return errs.New(errs.KindConflict, "user is already a team member")
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// RemoveMember deletes one membership row.
func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM team_members WHERE team_id=$1 AND user_id=$2`, teamID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.KindNotFound, "user is not a team member")
	}
	return nil
}

// Delete removes the team; memberships cascade.
func (r *TeamRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM teams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List pages through teams, optionally only those f.MemberID belongs to.
func (r *TeamRepo) List(ctx context.Context, f model.TeamFilter) ([]model.Team, int, error) {
	page, size := model.Normalize(f.Page, f.PageSize)
	const q = selectTeam + `, count(*) OVER()` + teamFrom + `
WHERE ($1::uuid IS NULL OR EXISTS (SELECT 1 FROM team_members x WHERE x.team_id = t.id AND x.user_id = $1))
  AND ($2 = '' OR t.name ILIKE '%' || $2 || '%')
GROUP BY t.id
ORDER BY t.created_at DESC, t.id
LIMIT $3 OFFSET $4`
	rows, err := r.db.Pool.Query(ctx, q, f.MemberID, f.Search, size, offset(page, size))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Team{}
	total := 0
	for rows.Next() {
		t, err := scanTeam(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// IsMember reports whether userID belongs to teamID.
func (r *TeamRepo) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	var ok bool
	const q = `SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id=$1 AND user_id=$2)`
	err := r.db.Pool.QueryRow(ctx, q, teamID, userID).Scan(&ok)
	return ok, err
}

// Exists reports whether a team with id is stored.
func (r *TeamRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}
