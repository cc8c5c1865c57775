package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taskmesh/internal/model"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_Check(t *testing.T) {
	t.Parallel()

	ok := NewHealth("task-service", pingFunc(func(context.Context) error { return nil })).Check(context.Background())
	require.Equal(t, model.HealthOK, ok.Status)
	require.Equal(t, "task-service", ok.Service)
	require.False(t, ok.Timestamp.IsZero())

	bad := NewHealth("task-service", pingFunc(func(context.Context) error { return errors.New("refused") })).Check(context.Background())
	require.Equal(t, model.HealthError, bad.Status)
	require.Contains(t, bad.Details, "refused")

	require.Equal(t, model.HealthOK, NewHealth("gateway", nil).Check(context.Background()).Status)
}
