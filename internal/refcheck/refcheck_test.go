package refcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
)

type fakeCaller struct {
	reply string
	err   error

	lastDest string
	lastCmd  string
}

func (f *fakeCaller) Send(_ context.Context, dest, cmd string, _, out any) error {
	f.lastDest, f.lastCmd = dest, cmd
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func (f *fakeCaller) Emit(context.Context, string, string, any) error { return nil }

func TestExists_Signals(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	fc := &fakeCaller{reply: `{"exists":true}`}
	v := New(fc, zaptest.NewLogger(t))
	ctx := context.Background()

	require.True(t, v.UserExists(ctx, id))
	require.Equal(t, contract.UserService, fc.lastDest)
	require.Equal(t, contract.CmdUserExists, fc.lastCmd)

	require.True(t, v.TeamExists(ctx, id))
	require.Equal(t, contract.CmdTeamExists, fc.lastCmd)

	fc.reply = `{"exists":false}`
	require.False(t, v.UserExists(ctx, id))

	require.False(t, v.UserExists(ctx, uuid.Nil))
	require.False(t, v.Exists(ctx, Entity("project"), id))
}

func TestExists_FailsClosed(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	cases := map[string]*fakeCaller{
		"timeout":     {err: errs.New(errs.KindTimeout, "user-service did not respond in time")},
		"unavailable": {err: errs.New(errs.KindUnavailable, "user-service unavailable")},
		"remote":      {err: errs.Remote("boom", http.StatusInternalServerError)},
		"record":      {reply: `{"id":"` + id.String() + `","email":"a@b.c"}`},
		"garbage":     {reply: `[1,2`},
	}
	for name, fc := range cases {
		v := New(fc, zaptest.NewLogger(t))
		require.False(t, v.UserExists(ctx, id), name)
		require.False(t, v.IsMember(ctx, id, id), name)
	}
}

func TestIsMember(t *testing.T) {
	t.Parallel()

	team := uuid.Must(uuid.NewV4())
	user := uuid.Must(uuid.NewV4())
	fc := &fakeCaller{reply: `{"member":true}`}
	v := New(fc, zaptest.NewLogger(t))

	require.True(t, v.IsMember(context.Background(), team, user))
	require.Equal(t, contract.CmdTeamIsMember, fc.lastCmd)

	fc.reply = `{"member":false}`
	require.False(t, v.IsMember(context.Background(), team, user))
	require.False(t, v.IsMember(context.Background(), uuid.Nil, user))
}
