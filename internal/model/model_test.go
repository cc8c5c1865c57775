package model

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/taskmesh/internal/errs"
)

func TestValidateAssignment(t *testing.T) {
	t.Parallel()

	u := uuid.Must(uuid.NewV4())
	tm := uuid.Must(uuid.NewV4())

	require.NoError(t, ValidateAssignment(nil, nil))
	require.NoError(t, ValidateAssignment(&u, nil))
	require.NoError(t, ValidateAssignment(nil, &tm))

	err := (&Task{AssignedUserID: &u, AssignedTeamID: &tm}).ValidateAssignment()
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	p, s := Normalize(0, 0)
	require.Equal(t, 1, p)
	require.Equal(t, DefaultPageSize, s)

	p, s = Normalize(3, 1000)
	require.Equal(t, 3, p)
	require.Equal(t, MaxPageSize, s)
}

func TestRoleAndStatusValid(t *testing.T) {
	t.Parallel()

	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("root").Valid())
	require.True(t, StatusInProgress.Valid())
	require.False(t, TaskStatus("archived").Valid())
}

func TestTeam_HasMember(t *testing.T) {
	t.Parallel()

	a := uuid.Must(uuid.NewV4())
	team := &Team{MemberIDs: []uuid.UUID{a}}
	require.True(t, team.HasMember(a))
	require.False(t, team.HasMember(uuid.Must(uuid.NewV4())))
}
