package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

func TestTargetCache_Load(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db, "")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet(DefaultKey).SetVal(`{"token":{"id":"M1","name":"ClawSeek"},"provenance":"remote","stage":"persisted","skeleton":false}`)

		got, err := cache.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "M1", got.Token.ID)
		assert.Equal(t, domain.ProvenanceRemote, got.Provenance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet(DefaultKey).RedisNil()

		_, err := cache.Load(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt", func(t *testing.T) {
		mock.ExpectGet(DefaultKey).SetVal(`{"token":{}}`)

		_, err := cache.Load(ctx)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet(DefaultKey).SetErr(errors.New("connection refused"))

		_, err := cache.Load(ctx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTargetCache_SaveAndClear(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db, "custom")
	ctx := context.Background()

	target := &domain.OfficialTarget{Token: domain.Token{ID: "M1"}, Provenance: domain.ProvenanceHeuristic}
	payload, err := storage.EncodeTarget(target)
	require.NoError(t, err)

	mock.ExpectSet("custom", payload, 0).SetVal("OK")
	require.NoError(t, cache.Save(ctx, target))

	mock.ExpectDel("custom").SetVal(1)
	require.NoError(t, cache.Clear(ctx))

	assert.ErrorIs(t, cache.Save(ctx, nil), storage.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}
