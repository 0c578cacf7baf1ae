package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/model"
)

func newTestStore(t *testing.T) SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionStore(client)
}

func newTestSession(id string) *model.SessionState {
	return &model.SessionState{
		ID:         id,
		UserID:     "u1",
		Domain:     "backend",
		Difficulty: model.DifficultyMedium,
		Status:     model.StatusActiveQuestion,
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := newTestSession("s1")
	require.NoError(t, store.Create(ctx, session))
	assert.Equal(t, int64(1), session.Version)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Domain, got.Domain)
	assert.Equal(t, int64(1), got.Version)
}

func TestSessionStore_CreateDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("s1")))
	err := store.Create(ctx, newTestSession("s1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestSessionStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSessionStore_UpdateBumpsVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := newTestSession("s1")
	require.NoError(t, store.Create(ctx, session))

	session.QuestionCount = 2
	require.NoError(t, store.Update(ctx, session))
	assert.Equal(t, int64(2), session.Version)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuestionCount)
	assert.Equal(t, int64(2), got.Version)
}

func TestSessionStore_UpdateRejectsStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := newTestSession("s1")
	require.NoError(t, store.Create(ctx, session))

	// Two readers take the same snapshot.
	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	first.QuestionCount = 2
	require.NoError(t, store.Update(ctx, first))

	second.QuestionCount = 5
	err = store.Update(ctx, second)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConcurrentModification))
	assert.True(t, apperrors.IsRetryable(err))

	// The first writer's state survives untouched.
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuestionCount)
}

func TestSessionStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("s1")))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
