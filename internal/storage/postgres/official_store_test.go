package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

func TestOfficialStore_InsertAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOfficialStore(pool)
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, &domain.OfficialRecord{
		Mint: "OLD", Name: "ClawSeek", Symbol: "SEEK", DetectedAt: base, DetectedBy: "client-a",
	}))
	require.NoError(t, store.Insert(ctx, &domain.OfficialRecord{
		Mint: "NEW", Name: "ClawSeek", Symbol: "SEEK", ImageURI: "ipfs://Qm", DetectedAt: base.Add(time.Hour),
	}))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "NEW", got.Mint)
	assert.Equal(t, "ipfs://Qm", got.ImageURI)
	assert.True(t, got.DetectedAt.Equal(base.Add(time.Hour)))

	err = store.Insert(ctx, &domain.OfficialRecord{Mint: "OLD"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOfficialStore_ClaimIfEmpty_SingleWinner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOfficialStore(pool)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		seen    = map[string]bool{}
	)
	for _, mint := range []string{"A", "B", "C", "D", "E"} {
		wg.Add(1)
		go func(mint string) {
			defer wg.Done()
			rec, claimed, err := store.ClaimIfEmpty(ctx, &domain.OfficialRecord{Mint: mint, Name: "ClawSeek"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			seen[rec.Mint] = true
			if claimed {
				winners = append(winners, mint)
			}
		}(mint)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Len(t, seen, 1, "every claimer observes the same winner")
	assert.True(t, seen[winners[0]])

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM official_token").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOfficialStore_Subscribe(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOfficialStore(pool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Insert(context.Background(), &domain.OfficialRecord{
		Mint: "PUSHED", Name: "ClawSeek", Symbol: "SEEK", DetectedBy: "client-b",
	}))

	select {
	case rec := <-ch:
		assert.Equal(t, "PUSHED", rec.Mint)
		assert.Equal(t, "SEEK", rec.Symbol)
		assert.Equal(t, "client-b", rec.DetectedBy)
		assert.False(t, rec.DetectedAt.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("notification not received")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDecodeNotification(t *testing.T) {
	rec, err := decodeNotification(`{"mint":"M1","name":"ClawSeek","symbol":"SEEK","image_uri":"","detected_by":"x","detected_at":"2025-01-01T12:00:00.123456+00:00"}`)
	require.NoError(t, err)
	assert.Equal(t, "M1", rec.Mint)
	assert.Equal(t, 2025, rec.DetectedAt.Year())

	_, err = decodeNotification(`{"name":"no mint"}`)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = decodeNotification(`not json`)
	assert.Error(t, err)
}
