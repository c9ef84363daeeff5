package types

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := GetActor(ctx)
	assert.False(t, ok)

	actor := Actor{UserID: 7, Type: ActorTypeUser, CompanyID: 42, Role: RoleTechnician}
	ctx = WithActor(ctx, actor)

	got, ok := GetActor(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.CompanyID)
	assert.Equal(t, RoleTechnician, got.Role)
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req_abc123")
	assert.Equal(t, "req_abc123", GetRequestID(ctx))
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	fallback := slog.Default()
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))

	scoped := slog.Default().With("request_id", "req_1")
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, LoggerFromContext(ctx, fallback))
}
