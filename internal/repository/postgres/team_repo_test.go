package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

var teamCols = []string{"id", "name", "description", "creator_id", "created_at", "updated_at", "members"}

func TestTeamRepo_Create_WithMembers(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTeamRepo(db)
	creator, other := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	team := &model.Team{ID: uuid.Must(uuid.NewV4()), Name: "core", CreatorID: creator, MemberIDs: []uuid.UUID{creator, other}}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO teams \(id, name, description, creator_id\)`).
		WithArgs(team.ID, "core", "", creator).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO team_members \(team_id, user_id\) VALUES \(\$1, \$2\)`).
		WithArgs(team.ID, creator).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs(team.ID, other).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Create(context.Background(), team))
	require.Equal(t, now, team.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepo_Create_DuplicateName(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTeamRepo(db)
	team := &model.Team{ID: uuid.Must(uuid.NewV4()), Name: "core", CreatorID: uuid.Must(uuid.NewV4())}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO teams`).
		WithArgs(team.ID, "core", "", team.CreatorID).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	require.ErrorIs(t, r.Create(context.Background(), team), errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepo_Update_ReplacesMembers(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTeamRepo(db)
	id, creator, newbie := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM teams WHERE id=\$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery(`SELECT t.id, t.name, .* FROM teams t LEFT JOIN team_members m ON m.team_id = t.id WHERE t.id=\$1 GROUP BY t.id`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(teamCols).AddRow(id, "core", "", creator, now, now, []uuid.UUID{creator}))
	mock.ExpectQuery(`UPDATE teams SET name=\$2, description=\$3, updated_at=now\(\) WHERE id=\$1 RETURNING updated_at`).
		WithArgs(id, "platform", "").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectExec(`DELETE FROM team_members WHERE team_id=\$1`).
		WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs(id, creator).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO team_members`).
		WithArgs(id, newbie).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := r.Update(context.Background(), id, func(t *model.Team) error {
		t.Name = "platform"
		t.MemberIDs = append(t.MemberIDs, newbie)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{creator, newbie}, got.MemberIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepo_Membership(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTeamRepo(db)
	ctx := context.Background()
	team, user := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO team_members`).WithArgs(team, user).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.AddMember(ctx, team, user), errs.ErrConflict)

	mock.ExpectExec(`INSERT INTO team_members`).WithArgs(team, user).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.AddMember(ctx, team, user), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM team_members WHERE team_id=\$1 AND user_id=\$2`).WithArgs(team, user).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.RemoveMember(ctx, team, user), errs.ErrNotFound)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM team_members WHERE team_id=\$1 AND user_id=\$2\)`).
		WithArgs(team, user).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := r.IsMember(ctx, team, user)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM teams WHERE id=\$1\)`).
		WithArgs(team).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	ok, err = r.Exists(ctx, team)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepo_List_ByMember(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTeamRepo(db)
	member := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE \(\$1::uuid IS NULL OR EXISTS .*\) AND \(\$2 = '' OR t.name ILIKE .*\) GROUP BY t.id ORDER BY t.created_at DESC, t.id LIMIT \$3 OFFSET \$4`).
		WithArgs(&member, "", 10, 0).
		WillReturnRows(pgxmock.NewRows(append(teamCols, "count")).
			AddRow(id, "core", "", member, now, now, []uuid.UUID{member}, 1))

	got, total, err := r.List(context.Background(), model.TeamFilter{MemberID: &member})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.True(t, got[0].HasMember(member))
}
