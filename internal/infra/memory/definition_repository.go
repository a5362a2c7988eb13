package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches quiz content from a backing store (e.g., Postgres).
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// DefinitionRepository caches definitions with TTL to avoid repeated DB hits.
// The TTL doubles as eviction, bounding the cache to recently played quizzes.
type DefinitionRepository struct {
	loader DefinitionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedDefinition
}

type cachedDefinition struct {
	definition domain.QuizDefinition
	expiresAt  time.Time
}

func NewDefinitionRepository(loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedDefinition),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.definition, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.definition, nil
		}
		r.mu.RUnlock()

		definition, err := r.loader.LoadDefinition(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedDefinition{
			definition: definition,
			expiresAt:  now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return definition, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

// ttlWithJitter uses the locked global rand so concurrent singleflight
// callbacks for different quiz IDs stay race-free.
func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// StaticDefinitionLoader is a simple loader backed by an in-memory map
// (useful for tests/demos).
type StaticDefinitionLoader struct {
	definitions map[string]domain.QuizDefinition
}

func NewStaticDefinitionLoader(definitions map[string]domain.QuizDefinition) *StaticDefinitionLoader {
	return &StaticDefinitionLoader{definitions: definitions}
}

func (l *StaticDefinitionLoader) LoadDefinition(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if definition, ok := l.definitions[quizID]; ok {
		return definition, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}
