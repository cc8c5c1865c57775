package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	t.Parallel()

	err := New(KindNotFound, "task not found")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrConflict)
	require.Equal(t, http.StatusNotFound, err.StatusCode)

	wrapped := fmt.Errorf("load: %w", err)
	require.ErrorIs(t, wrapped, ErrNotFound)
}

func TestFrom_NormalizesSentinelsAndUnknown(t *testing.T) {
	t.Parallel()

	e := From(fmt.Errorf("create: %w", ErrConflict))
	require.Equal(t, KindConflict, e.Kind)
	require.Equal(t, http.StatusConflict, e.StatusCode)

	e = From(errors.New("pq: connection reset"))
	require.Equal(t, KindInternal, e.Kind)
	require.Equal(t, "internal error", e.Message)
	require.Equal(t, http.StatusInternalServerError, e.StatusCode)

	orig := New(KindForbidden, "nope")
	require.Same(t, orig, From(fmt.Errorf("x: %w", orig)))

	require.Nil(t, From(nil))
}

func TestRemote_KeepsStatusCode(t *testing.T) {
	t.Parallel()

	e := Remote("user not found", http.StatusNotFound)
	require.ErrorIs(t, e, ErrRemote)
	require.NotErrorIs(t, e, ErrNotFound)
	require.True(t, IsRemoteStatus(e, http.StatusNotFound))
	require.False(t, IsRemoteStatus(New(KindNotFound, "x"), http.StatusNotFound))

	require.Equal(t, http.StatusBadGateway, Remote("boom", 0).StatusCode)
}

func TestKind_StringRoundTrip(t *testing.T) {
	t.Parallel()

	for k := KindInternal; k <= KindInconsistency; k++ {
		got, ok := KindFromString(k.String())
		require.True(t, ok, k.String())
		require.Equal(t, k, got)
	}
	_, ok := KindFromString("nope")
	require.False(t, ok)
}

func TestWrap_HidesCauseFromMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp 10.0.0.7:5432: refused")
	e := Wrap(KindUnavailable, "user service unavailable", cause)
	require.Equal(t, "user service unavailable", e.Error())
	require.ErrorIs(t, e, cause)
	require.ErrorIs(t, e, ErrUnavailable)
	require.Equal(t, http.StatusServiceUnavailable, StatusCode(e))
}

func TestAnnotate_KeepsKindAndStatus(t *testing.T) {
	t.Parallel()

	e := Annotate(Remote("profile exists", http.StatusConflict), "registration failed")
	require.Equal(t, "registration failed: profile exists", e.Error())
	require.Equal(t, KindRemote, e.Kind)
	require.Equal(t, http.StatusConflict, e.StatusCode)

	e = Annotate(New(KindTimeout, "user-service did not respond in time"), "registration failed")
	require.ErrorIs(t, e, ErrTimeout)
	require.Equal(t, http.StatusGatewayTimeout, e.StatusCode)
}

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindNotFound, KindForStatus(http.StatusNotFound))
	require.Equal(t, KindInternal, KindForStatus(http.StatusInternalServerError))
	require.Equal(t, KindRemote, KindForStatus(http.StatusTeapot))
}
