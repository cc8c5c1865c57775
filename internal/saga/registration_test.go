package saga

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/taskmesh/internal/alert"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

type memStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*model.Identity
	createErr error
	deleteErr error
	deleteCtx error
}

func newMemStore() *memStore { return &memStore{byID: map[uuid.UUID]*model.Identity{}} }

func (m *memStore) Create(_ context.Context, u *model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCtx = ctx.Err()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type fakeNotifier struct {
	err   error
	hook  func()
	got   []contract.UserCreated
	calls int
}

func (f *fakeNotifier) NotifyCreated(_ context.Context, ev contract.UserCreated) error {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, ev)
	return nil
}

type fakeIssuer struct{ err error }

func (f fakeIssuer) Issue(uuid.UUID, string, model.Role) (model.Token, error) {
	if f.err != nil {
		return model.Token{}, f.err
	}
	return model.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type recAlerter struct{ got []alert.Alert }

func (r *recAlerter) Alert(_ context.Context, a alert.Alert) error {
	r.got = append(r.got, a)
	return nil
}

func input() Input {
	return Input{
		Identity: &model.Identity{
			ID:      uuid.Must(uuid.NewV4()),
			Email:   "new@example.com",
			PwdHash: "argon2id$x$y",
			Role:    model.RoleMember,
			Active:  true,
		},
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	n := &fakeNotifier{}
	r := NewRegistration(store, n, fakeIssuer{}, &recAlerter{}, zaptest.NewLogger(t))

	in := input()
	res, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Equal(t, []State{Started, LocalCommitted, NotifySucceeded, Done}, res.History)
	require.Equal(t, "tok", res.Token.AccessToken)
	require.Equal(t, 1, store.len())

	require.Len(t, n.got, 1)
	require.Equal(t, in.Identity.ID, n.got[0].ID)
	require.Equal(t, "Ada", n.got[0].FirstName)
	require.Equal(t, model.RoleMember, n.got[0].Role)
}

func TestRun_LocalCommitFailureSkipsNotify(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.createErr = errs.New(errs.KindConflict, "email already registered")
	n := &fakeNotifier{}
	r := NewRegistration(store, n, fakeIssuer{}, nil, zaptest.NewLogger(t))

	res, err := r.Run(context.Background(), input())
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Equal(t, []State{Started, Failed}, res.History)
	require.Zero(t, n.calls)
}

func TestRun_NotifyFailureCompensates(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		notifyErr  error
		wantStatus int
		wantIs     error
		wantAlert  bool
	}{
		"timeout":     {errs.New(errs.KindTimeout, "user-service did not respond in time"), http.StatusGatewayTimeout, errs.ErrTimeout, true},
		"unavailable": {errs.New(errs.KindUnavailable, "user-service unavailable"), http.StatusServiceUnavailable, errs.ErrUnavailable, true},
		"rejected":    {errs.Remote("profile email exists", http.StatusConflict), http.StatusConflict, errs.ErrRemote, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			al := &recAlerter{}
			r := NewRegistration(store, &fakeNotifier{err: tc.notifyErr}, fakeIssuer{}, al, zaptest.NewLogger(t))

			res, err := r.Run(context.Background(), input())
			require.ErrorIs(t, err, tc.wantIs)
			require.Equal(t, tc.wantStatus, errs.StatusCode(err))
			require.Contains(t, err.Error(), "registration failed: ")
			require.Equal(t, Failed, res.State)
			require.Equal(t, []State{Started, LocalCommitted, NotifyFailed, Compensating, Failed}, res.History)
			require.Nil(t, res.Identity)
			require.Zero(t, store.len(), "identity must be removed")
			if !tc.wantAlert {
				require.Empty(t, al.got)
				return
			}
			require.Len(t, al.got, 1)
			require.Equal(t, "registration_outcome_unknown", al.got[0].Kind)
			require.Equal(t, "new@example.com", al.got[0].Fields["email"])
		})
	}
}

func TestRun_CompensationSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	n := &fakeNotifier{err: errs.New(errs.KindTimeout, "user-service did not respond in time"), hook: cancel}
	r := NewRegistration(store, n, fakeIssuer{}, nil, zaptest.NewLogger(t))

	_, err := r.Run(ctx, input())
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.NoError(t, store.deleteCtx, "compensation must not inherit caller cancellation")
	require.Zero(t, store.len())
}

func TestRun_CompensationFailureIsInconsistency(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.deleteErr = errors.New("db gone")
	al := &recAlerter{}
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRegistration(store, &fakeNotifier{err: errs.New(errs.KindUnavailable, "user-service unavailable")},
		fakeIssuer{}, al, zap.New(core))

	res, err := r.Run(context.Background(), input())
	require.ErrorIs(t, err, errs.ErrInconsistency)
	require.Equal(t, http.StatusInternalServerError, errs.StatusCode(err))
	require.Equal(t, Failed, res.State)
	require.NotNil(t, res.Identity)
	require.Equal(t, 1, store.len())

	require.Len(t, al.got, 2)
	require.Equal(t, "registration_outcome_unknown", al.got[0].Kind)
	require.Equal(t, "registration_inconsistency", al.got[1].Kind)
	require.Equal(t, res.Identity.ID.String(), al.got[1].Fields["identity_id"])

	flagged := logs.FilterField(zap.Bool("alert", true)).All()
	require.Len(t, flagged, 2)
	for _, e := range flagged {
		require.Equal(t, zapcore.ErrorLevel, e.Level)
	}
}

func TestRun_UnknownNotifyOutcomeIsFlagged(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	al := &recAlerter{}
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRegistration(store, &fakeNotifier{err: errs.New(errs.KindTimeout, "user-service did not respond in time")},
		fakeIssuer{}, al, zap.New(core))

	in := input()
	_, err := r.Run(context.Background(), in)
	require.ErrorIs(t, err, errs.ErrTimeout)
	require.Zero(t, store.len())

	require.Len(t, al.got, 1)
	require.Equal(t, in.Identity.ID.String(), al.got[0].Fields["identity_id"])
	require.False(t, al.got[0].At.IsZero())

	flagged := logs.FilterMessage("registration notify outcome unknown, compensating").All()
	require.Len(t, flagged, 1)
	require.Equal(t, zapcore.ErrorLevel, flagged[0].Level)
}

func TestRun_TokenFailureAfterNotify(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := NewRegistration(store, &fakeNotifier{}, fakeIssuer{err: errors.New("no key")}, nil, zaptest.NewLogger(t))

	res, err := r.Run(context.Background(), input())
	require.ErrorIs(t, err, errs.ErrInternal)
	require.Equal(t, []State{Started, LocalCommitted, NotifySucceeded, Failed}, res.History)
	require.Equal(t, 1, store.len(), "identity and profile stay consistent")
}

func TestRun_IllegalTransitionPanics(t *testing.T) {
	t.Parallel()

	x := &run{state: Started, history: []State{Started}}
	require.Panics(t, func() { x.to(Done) })
}
