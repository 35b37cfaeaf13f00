package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strideloop/runcore/internal/domain/shared"
)

// RedisRepository implements Repository on plain Redis string values.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a Redis-backed aggregates repository
func NewRedisRepository(client *redis.Client) Repository {
	return &RedisRepository{
		client: client,
	}
}

func aggregatesKey(runnerID string) string {
	return fmt.Sprintf("runner:%s:aggregates", runnerID)
}

// Load returns the stored aggregates, or nil when the runner has none.
func (r *RedisRepository) Load(ctx context.Context, runnerID string) (*Aggregates, error) {
	data, err := r.client.Get(ctx, aggregatesKey(runnerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeHistoryUnavailable, "Failed to load aggregates")
	}

	var agg Aggregates
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeHistoryCorrupt, "Failed to deserialize aggregates")
	}
	return &agg, nil
}

// Save stores the aggregates for a runner.
func (r *RedisRepository) Save(ctx context.Context, runnerID string, agg *Aggregates) error {
	if agg == nil {
		return shared.ErrInvalidInput("Aggregates cannot be nil")
	}
	agg.RunnerID = runnerID

	data, err := json.Marshal(agg)
	if err != nil {
		return shared.WrapDomainError(err, shared.ErrCodeInvalidInput, "Failed to serialize aggregates")
	}

	if err := r.client.Set(ctx, aggregatesKey(runnerID), data, 0).Err(); err != nil {
		return shared.WrapDomainError(err, shared.ErrCodeHistoryUnavailable, "Failed to save aggregates")
	}
	return nil
}

// FoldRun loads the runner's aggregates, records one finished run and saves
// the result. Used by hosts that persist sessions through this repository.
func (r *RedisRepository) FoldRun(ctx context.Context, runnerID string, distanceM float64, endedAt time.Time) (*Aggregates, error) {
	agg, err := r.Load(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		agg = &Aggregates{RunnerID: runnerID}
	}

	agg.RecordRun(distanceM, endedAt)

	if err := r.Save(ctx, runnerID, agg); err != nil {
		return nil, err
	}
	return agg, nil
}
