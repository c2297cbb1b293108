package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-id/keystone/internal/token"
)

func TestIdentityRoundTrip(t *testing.T) {
	identity := token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: "admin"}
	ctx := ContextWithIdentity(context.Background(), identity)

	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, identity, got)
}

func TestIdentityMissing(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
}

// A recorder installed upstream must observe an identity attached on a
// derived context, mirroring how the request logger sees what the auth guard
// attached further down the middleware chain.
func TestRecorderSeesDownstreamIdentity(t *testing.T) {
	outer := ContextWithIdentityRecorder(context.Background())

	_, ok := RecordedIdentity(outer)
	require.False(t, ok)

	identity := token.Identity{UserID: uuid.New(), Email: "a@b.com", Role: "user"}
	_ = ContextWithIdentity(outer, identity)

	got, ok := RecordedIdentity(outer)
	require.True(t, ok)
	assert.Equal(t, identity, got)
}

func TestRecordedIdentityWithoutRecorder(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), token.Identity{Email: "a@b.com"})
	_, ok := RecordedIdentity(ctx)
	assert.False(t, ok)
}
