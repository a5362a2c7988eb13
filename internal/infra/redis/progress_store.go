package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"quiz-attempt-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps the best-effort incremental projection of in-progress
// attempts. Stored as: HSET attempt:{attemptID}:progress answers {json} index {n}.
// Entries expire after the TTL and are deleted once an attempt is submitted.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) SyncProgress(ctx context.Context, attemptID string, answers domain.AnswerMap, index int) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	key := s.key(attemptID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "answers", data, "index", index)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *ProgressStore) ClearProgress(ctx context.Context, attemptID string) error {
	return s.client.Del(ctx, s.key(attemptID)).Err()
}

// LoadProgress returns the synced projection, if any. Used to seed resume
// when the attempt row itself lags behind the last sync.
func (s *ProgressStore) LoadProgress(ctx context.Context, attemptID string) (domain.AnswerMap, int, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(attemptID)).Result()
	if err != nil {
		return nil, 0, false, err
	}
	if len(fields) == 0 {
		return nil, 0, false, nil
	}

	answers := make(domain.AnswerMap)
	if raw, ok := fields["answers"]; ok {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			return nil, 0, false, err
		}
	}
	index := 0
	if raw, ok := fields["index"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			index = n
		}
	}
	return answers, index, true, nil
}

func (s *ProgressStore) key(attemptID string) string {
	return "attempt:" + attemptID + ":progress"
}
