package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"quiz-attempt-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches quiz content from a backing store (e.g., Postgres).
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// DefinitionRepository caches serialized definitions in Redis and falls back
// to a loader on cache miss. Cached as: SET quiz:{quizID}:definition {json}.
// Correct flags stay inside the cached blob; they are stripped at the
// transport layer, never here.
type DefinitionRepository struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewDefinitionRepository(client *redis.Client, loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	key := r.definitionKey(quizID)

	if cached, err := r.client.Get(ctx, key).Bytes(); err == nil && len(cached) > 0 {
		var definition domain.QuizDefinition
		if err := json.Unmarshal(cached, &definition); err == nil {
			return definition, nil
		}
		// Corrupt entry: drop it and reload below.
		_ = r.client.Del(ctx, key).Err()
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := r.client.Get(ctx, key).Bytes(); err == nil && len(cached) > 0 {
			var definition domain.QuizDefinition
			if err := json.Unmarshal(cached, &definition); err == nil {
				return definition, nil
			}
		}

		definition, err := r.loader.LoadDefinition(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		if data, err := json.Marshal(definition); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return definition, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (r *DefinitionRepository) definitionKey(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

// ttlWithJitter uses the locked global rand: loads for different quiz IDs
// run their singleflight callbacks concurrently.
func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
