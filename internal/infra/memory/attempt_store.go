package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is a map-backed stand-in for the remote attempt service. It
// owns the scoring rules, which keeps correct options out of client state.
// Useful for tests and demo runs without Postgres.
type AttemptStore struct {
	definitions DefinitionLoader

	mu       sync.RWMutex
	attempts map[string]*domain.AttemptSnapshot
}

func NewAttemptStore(definitions DefinitionLoader) *AttemptStore {
	return &AttemptStore{
		definitions: definitions,
		attempts:    make(map[string]*domain.AttemptSnapshot),
	}
}

// CreateAttempt opens a new in-progress attempt for a quiz and returns its ID.
func (s *AttemptStore) CreateAttempt(ctx context.Context, quizID string) (string, error) {
	if _, err := s.definitions.LoadDefinition(ctx, quizID); err != nil {
		return "", err
	}

	attemptID := newAttemptID()
	s.mu.Lock()
	s.attempts[attemptID] = &domain.AttemptSnapshot{
		AttemptID: attemptID,
		QuizID:    quizID,
		Status:    domain.AttemptInProgress,
		Answers:   make(domain.AnswerMap),
	}
	s.mu.Unlock()
	return attemptID, nil
}

func (s *AttemptStore) LoadAttempt(_ context.Context, attemptID string) (domain.AttemptSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}
	snapshot := *attempt
	snapshot.Answers = attempt.Answers.Clone()
	return snapshot, nil
}

// SubmitAttempt scores a submission. Re-submitting an already-submitted
// attempt returns the stored results instead of rescoring, so a retried
// finish after a false-negative network failure stays safe.
func (s *AttemptStore) SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[submission.AttemptID]
	if !ok {
		return domain.Results{}, domain.ErrAttemptNotFound
	}
	if attempt.Status == domain.AttemptSubmitted && attempt.Results != nil {
		return *attempt.Results, nil
	}
	if attempt.Status == domain.AttemptAbandoned {
		return domain.Results{}, domain.ErrAttemptFinished
	}

	definition, err := s.definitions.LoadDefinition(ctx, attempt.QuizID)
	if err != nil {
		return domain.Results{}, err
	}

	results := domain.Score(definition, submission)
	attempt.Status = domain.AttemptSubmitted
	attempt.Answers = submission.Answers.Clone()
	attempt.TimeSpent = submission.TimeSpent
	attempt.Results = &results
	return results, nil
}

// SyncProgress persists the incremental projection for resume. Terminal
// attempts are left untouched.
func (s *AttemptStore) SyncProgress(_ context.Context, attemptID string, answers domain.AnswerMap, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status.Terminal() {
		return nil
	}
	attempt.Answers = answers.Clone()
	attempt.CurrentQuestionIndex = index
	return nil
}

// ClearProgress is a no-op here; the attempt row is the durable record.
func (s *AttemptStore) ClearProgress(context.Context, string) error {
	return nil
}

func newAttemptID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "attempt-" + hex.EncodeToString(buf)
}
