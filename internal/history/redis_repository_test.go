package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client for testing
func setupTestRedis(t *testing.T) *redis.Client {
	// Skip test if REDIS_URL is not set
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL environment variable not set, skipping Redis integration tests")
	}

	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err, "Failed to parse Redis URL")

	client := redis.NewClient(opt)

	ctx := context.Background()
	_, err = client.Ping(ctx).Result()
	require.NoError(t, err, "Failed to connect to Redis")

	return client
}

func TestRedisRepository_LoadSave(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisRepository(client)
	ctx := context.Background()

	t.Run("should return nil when runner has no history", func(t *testing.T) {
		agg, err := repo.Load(ctx, "runner-without-history")
		require.NoError(t, err)
		assert.Nil(t, agg)
	})

	t.Run("should round-trip aggregates", func(t *testing.T) {
		runnerID := "test-runner-123"
		defer client.Del(ctx, aggregatesKey(runnerID))

		want := &Aggregates{
			TotalRuns:         12,
			BestDistanceM:     15000,
			LifetimeDistanceM: 92000,
			MonthDistanceM:    31000,
			MonthRuns:         4,
			StreakDays:        3,
			LastRunAt:         time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Save(ctx, runnerID, want))

		got, err := repo.Load(ctx, runnerID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, runnerID, got.RunnerID)
		assert.Equal(t, want.TotalRuns, got.TotalRuns)
		assert.Equal(t, want.BestDistanceM, got.BestDistanceM)
		assert.True(t, want.LastRunAt.Equal(got.LastRunAt))
	})

	t.Run("should reject nil aggregates", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, "whoever", nil))
	})
}

func TestRedisRepository_FoldRun(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisRepository(client).(*RedisRepository)
	ctx := context.Background()
	runnerID := "test-runner-fold"
	defer client.Del(ctx, aggregatesKey(runnerID))

	first, err := repo.FoldRun(ctx, runnerID, 5000, time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalRuns)
	assert.Equal(t, 5000.0, first.BestDistanceM)

	second, err := repo.FoldRun(ctx, runnerID, 8000, time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalRuns)
	assert.Equal(t, 8000.0, second.BestDistanceM)
	assert.Equal(t, 2, second.StreakDays)
	assert.Equal(t, 13000.0, second.MonthDistanceM)
}

func TestAggregates_RecordRun(t *testing.T) {
	t.Run("streak resets after a missed day", func(t *testing.T) {
		agg := &Aggregates{}
		agg.RecordRun(5000, time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC))
		agg.RecordRun(5000, time.Date(2026, 8, 2, 7, 0, 0, 0, time.UTC))
		assert.Equal(t, 2, agg.StreakDays)

		agg.RecordRun(5000, time.Date(2026, 8, 10, 7, 0, 0, 0, time.UTC))
		assert.Equal(t, 1, agg.StreakDays)
	})

	t.Run("second run of the day keeps the streak", func(t *testing.T) {
		agg := &Aggregates{}
		agg.RecordRun(5000, time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC))
		agg.RecordRun(3000, time.Date(2026, 8, 1, 19, 0, 0, 0, time.UTC))
		assert.Equal(t, 1, agg.StreakDays)
		assert.Equal(t, 2, agg.TotalRuns)
	})

	t.Run("month totals reset across a month boundary", func(t *testing.T) {
		agg := &Aggregates{}
		agg.RecordRun(5000, time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC))
		agg.RecordRun(4000, time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC))
		assert.Equal(t, 4000.0, agg.MonthDistanceM)
		assert.Equal(t, 1, agg.MonthRuns)
		assert.Equal(t, 9000.0, agg.LifetimeDistanceM)
	})
}
