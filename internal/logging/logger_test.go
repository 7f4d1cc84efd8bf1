package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core).With(zap.String("request_id", "abc"))
	fallback := zap.NewNop()

	require.Same(t, fallback, FromContext(context.Background(), fallback))
	require.NotNil(t, FromContext(context.Background(), nil))

	ctx := WithLogger(context.Background(), scoped)
	FromContext(ctx, fallback).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}
