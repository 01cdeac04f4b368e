package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/internal/authorizer/models"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/sentinel"
	"credgate/pkg/testutil"
)

func TestInMemoryCreateAndFind(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	a := testutil.NewAuthorizerBuilder().Build()

	require.NoError(t, store.Create(ctx, a))

	found, err := store.FindByAppID(ctx, a.AppID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
	assert.Equal(t, a.RefreshToken, found.RefreshToken)
	assert.Equal(t, []int{1, 2, 3}, found.FuncScopes)
}

func TestInMemoryCreateDuplicateAppID(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testutil.NewAuthorizerBuilder().Build()))
	err := store.Create(ctx, testutil.NewAuthorizerBuilder().Build())
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestInMemoryConcurrentCreateSameAppID(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	result := testutil.RunConcurrent(16, func(int) error {
		return store.Create(ctx, testutil.NewAuthorizerBuilder().Build())
	})
	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(15), result.Errors)
	assert.Equal(t, int32(16), result.Total())
}

func TestInMemoryCreateRejectsInvalidRecord(t *testing.T) {
	store := NewInMemory()
	err := store.Create(context.Background(), testutil.NewAuthorizerBuilder().WithRefreshToken("").Build())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestInMemoryFindNotFound(t *testing.T) {
	_, err := NewInMemory().FindByAppID(context.Background(), testutil.TestAppID2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryReturnsCopies(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	a := testutil.NewAuthorizerBuilder().Build()
	require.NoError(t, store.Create(ctx, a))

	a.RefreshToken = "mutated"
	found, err := store.FindByAppID(ctx, a.AppID)
	require.NoError(t, err)
	found.FuncScopes[0] = 99

	again, err := store.FindByAppID(ctx, a.AppID)
	require.NoError(t, err)
	assert.Equal(t, "refreshtoken@@@initial", again.RefreshToken)
	assert.Equal(t, 1, again.FuncScopes[0])
}

func TestInMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	later := time.Now().Add(time.Hour)

	t.Run("applies changes", func(t *testing.T) {
		store := NewInMemory()
		a := testutil.NewAuthorizerBuilder().Build()
		require.NoError(t, store.Create(ctx, a))

		changes, ok := a.RotateRefreshToken("refreshtoken@@@rotated")
		require.True(t, ok)
		require.NoError(t, store.Update(ctx, a.AppID, changes, later))

		found, err := store.FindByAppID(ctx, a.AppID)
		require.NoError(t, err)
		assert.Equal(t, "refreshtoken@@@rotated", found.RefreshToken)
		assert.Equal(t, later, found.UpdatedAt)
	})

	t.Run("missing record", func(t *testing.T) {
		authorized := false
		err := NewInMemory().Update(ctx, testutil.TestAppID2, models.Changes{Authorized: &authorized}, later)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects invariant violation", func(t *testing.T) {
		store := NewInMemory()
		a := testutil.NewAuthorizerBuilder().Build()
		require.NoError(t, store.Create(ctx, a))

		empty := ""
		err := store.Update(ctx, a.AppID, models.Changes{RefreshToken: &empty}, later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		found, err := store.FindByAppID(ctx, a.AppID)
		require.NoError(t, err)
		assert.Equal(t, "refreshtoken@@@initial", found.RefreshToken)
	})

	t.Run("empty changes are ignored", func(t *testing.T) {
		err := NewInMemory().Update(ctx, testutil.TestAppID2, models.Changes{}, later)
		assert.NoError(t, err)
	})
}

func TestInMemoryList(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testutil.NewAuthorizerBuilder().WithAppID(testutil.TestAppID1).Build()))
	require.NoError(t, store.Create(ctx, testutil.NewAuthorizerBuilder().WithAppID(testutil.TestAppID2).Unauthorized().Build()))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, testutil.TestAppID1, list[0].AppID)
	assert.Equal(t, testutil.TestAppID2, list[1].AppID)
}
