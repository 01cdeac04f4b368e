//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/pkg/testutil"
	"credgate/pkg/testutil/containers"
)

func TestRedisRevocationList(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.Flush(ctx))

	list := NewRedisRevocationList(rc.Client)

	_, found, err := list.RevokedAt(ctx, RoleAdmin, "42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, list.Revoke(ctx, RoleAdmin, "42", 2000, time.Minute))
	require.NoError(t, list.Revoke(ctx, RoleAdmin, "42", 1000, time.Minute))

	revokedAt, found, err := list.RevokedAt(ctx, RoleAdmin, "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2000), revokedAt)

	_, found, err = list.RevokedAt(ctx, RoleUser, "42")
	require.NoError(t, err)
	assert.False(t, found)

	ttl, err := rc.Client.TTL(ctx, revocationKeyPrefix+"admin:42").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisRevocationListConcurrentRevokesKeepLatest(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.Flush(ctx))

	list := NewRedisRevocationList(rc.Client)
	result := testutil.RunConcurrent(32, func(i int) error {
		return list.Revoke(ctx, RoleUser, "oUser", int64(1000+i), time.Minute)
	})
	require.Equal(t, int32(32), result.Successes)

	revokedAt, found, err := list.RevokedAt(ctx, RoleUser, "oUser")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1031), revokedAt)
}
