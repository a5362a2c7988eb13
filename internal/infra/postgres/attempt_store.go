package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptStore persists attempts in Postgres and owns the scoring call.
// The attempts row is the durable recovery point for resume; the results
// column makes re-submission of a submitted attempt idempotent.
type AttemptStore struct {
	pool   *pgxpool.Pool
	loader *DefinitionLoader
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool, loader: NewDefinitionLoader(pool)}
}

// CreateAttempt inserts a fresh in-progress attempt row for a quiz.
func (s *AttemptStore) CreateAttempt(ctx context.Context, quizID string) (string, error) {
	if _, err := s.loader.LoadDefinition(ctx, quizID); err != nil {
		return "", err
	}

	attemptID := "attempt-" + randomHex(8)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, status, current_question_index, answers, time_spent_ms)
		VALUES ($1, $2, $3, 0, '{}'::jsonb, 0)`,
		attemptID, quizID, string(domain.AttemptInProgress))
	if err != nil {
		return "", fmt.Errorf("create attempt: %w", err)
	}
	return attemptID, nil
}

func (s *AttemptStore) LoadAttempt(ctx context.Context, attemptID string) (domain.AttemptSnapshot, error) {
	var (
		snapshot    domain.AttemptSnapshot
		status      string
		answersRaw  []byte
		resultsRaw  []byte
		timeSpentMS int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT quiz_id, status, current_question_index, answers, time_spent_ms, results
		FROM attempts WHERE id=$1`, attemptID,
	).Scan(&snapshot.QuizID, &status, &snapshot.CurrentQuestionIndex, &answersRaw, &timeSpentMS, &resultsRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptSnapshot{}, fmt.Errorf("load attempt: %w", err)
	}

	snapshot.AttemptID = attemptID
	snapshot.Status = domain.AttemptStatus(status)
	snapshot.TimeSpent = time.Duration(timeSpentMS) * time.Millisecond
	snapshot.Answers = make(domain.AnswerMap)
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &snapshot.Answers); err != nil {
			return domain.AttemptSnapshot{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if len(resultsRaw) > 0 {
		var results domain.Results
		if err := json.Unmarshal(resultsRaw, &results); err != nil {
			return domain.AttemptSnapshot{}, fmt.Errorf("unmarshal results: %w", err)
		}
		snapshot.Results = &results
	}
	return snapshot, nil
}

// SubmitAttempt scores a submission against the quiz definition and marks the
// attempt submitted. Submitting an already-submitted attempt returns the
// stored results without rescoring.
func (s *AttemptStore) SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.Results, error) {
	stored, err := s.LoadAttempt(ctx, submission.AttemptID)
	if err != nil {
		return domain.Results{}, err
	}
	if stored.Status == domain.AttemptSubmitted && stored.Results != nil {
		return *stored.Results, nil
	}
	if stored.Status == domain.AttemptAbandoned {
		return domain.Results{}, domain.ErrAttemptFinished
	}

	definition, err := s.loader.LoadDefinition(ctx, stored.QuizID)
	if err != nil {
		return domain.Results{}, err
	}

	results := domain.Score(definition, submission)
	answersJSON, err := json.Marshal(submission.Answers)
	if err != nil {
		return domain.Results{}, fmt.Errorf("marshal answers: %w", err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return domain.Results{}, fmt.Errorf("marshal results: %w", err)
	}

	// Status guard keeps a concurrent duplicate submit from rescoring.
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts
		SET status=$2, answers=$3::jsonb, time_spent_ms=$4, results=$5::jsonb, updated_at=now()
		WHERE id=$1 AND status=$6`,
		submission.AttemptID, string(domain.AttemptSubmitted), answersJSON,
		submission.TimeSpent.Milliseconds(), resultsJSON, string(domain.AttemptInProgress))
	if err != nil {
		return domain.Results{}, fmt.Errorf("submit attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race: fetch whatever the winner stored.
		refreshed, err := s.LoadAttempt(ctx, submission.AttemptID)
		if err != nil {
			return domain.Results{}, err
		}
		if refreshed.Results != nil {
			return *refreshed.Results, nil
		}
		return domain.Results{}, domain.ErrAttemptFinished
	}
	return results, nil
}

// SyncProgress upserts the incremental projection. Only in-progress rows are
// touched; a terminal attempt never loses its final state to a late sync.
func (s *AttemptStore) SyncProgress(ctx context.Context, attemptID string, answers domain.AnswerMap, index int) error {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE attempts
		SET answers=$2::jsonb, current_question_index=$3, updated_at=now()
		WHERE id=$1 AND status=$4`,
		attemptID, answersJSON, index, string(domain.AttemptInProgress))
	return err
}

// ClearProgress is a no-op; the attempt row is the durable record.
func (s *AttemptStore) ClearProgress(context.Context, string) error {
	return nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
