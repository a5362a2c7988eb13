package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Reconciler translates local answer state into a scoring submission and
// normalizes the store's authoritative response. Scoring itself is owned by
// the store; the client never compares options against correct sets.
type Reconciler struct {
	store AttemptStore
}

func NewReconciler(store AttemptStore) *Reconciler {
	return &Reconciler{store: store}
}

// Submit sends the accumulated answers for scoring. The payload is keyed by
// question ID, carries total elapsed time, and always reuses the same
// attempt ID so the store can treat retries idempotently. Any store failure
// is reported as a retryable submission failure.
func (r *Reconciler) Submit(ctx context.Context, attemptID string, answers domain.AnswerMap, timeSpent time.Duration) (domain.Results, error) {
	submission := domain.Submission{
		AttemptID: attemptID,
		Answers:   answers.Clone(),
		TimeSpent: timeSpent,
	}

	results, err := r.store.SubmitAttempt(ctx, submission)
	if err != nil {
		return domain.Results{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	if results.AttemptID != attemptID {
		return domain.Results{}, fmt.Errorf("%w: response for attempt %q, expected %q", domain.ErrSubmissionFailed, results.AttemptID, attemptID)
	}

	if results.Status == "" {
		results.Status = domain.ResultsCompleted
	}
	if results.TimeSpent == 0 {
		results.TimeSpent = timeSpent
	}
	results.Score = roundScore(results.Score)
	return results, nil
}

// roundScore rounds a percentage to two decimals for display.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
