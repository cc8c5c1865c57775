package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

const insertIdentityRE = `INSERT INTO auth_users \(id, email, pwd_hash, role, active, first_name, last_name\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\) RETURNING created_at`

func TestIdentityRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	u := &model.Identity{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     "a@example.com",
		PwdHash:   "$argon2id$...",
		FirstName: "Ann",
		LastName:  "Lee",
		Role:      model.RoleMember,
		Active:    true,
	}

	mock.ExpectQuery(insertIdentityRE).
		WithArgs(u.ID, u.Email, u.PwdHash, "member", true, "Ann", "Lee").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(insertIdentityRE).
		WithArgs(u.ID, u.Email, u.PwdHash, "member", true, "Ann", "Lee").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	cols := []string{"id", "email", "pwd_hash", "role", "active", "first_name", "last_name", "created_at"}

	mock.ExpectQuery(`SELECT id, email, pwd_hash, role, active, first_name, last_name, created_at FROM auth_users WHERE email=\$1`).
		WithArgs("b@example.com").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(id, "b@example.com", "h", "admin", true, "B", "Bee", time.Now()))
	u, err := r.GetByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, model.RoleAdmin, u.Role)

	mock.ExpectQuery(`FROM auth_users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM auth_users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(context.Canceled)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIdentityRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM auth_users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, id))

	mock.ExpectExec(`DELETE FROM auth_users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
