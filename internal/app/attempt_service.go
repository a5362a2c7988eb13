package app

import (
	"context"
	"log"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore abstracts the remote persistence/scoring service. Correctness
// is decided store-side; this process never sees correct options mid-attempt.
type AttemptStore interface {
	LoadAttempt(ctx context.Context, attemptID string) (domain.AttemptSnapshot, error)
	SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.Results, error)
}

// ProgressSyncer is the best-effort incremental persistence collaborator.
// Failures are logged, never surfaced: local state stays authoritative.
type ProgressSyncer interface {
	SyncProgress(ctx context.Context, attemptID string, answers domain.AnswerMap, index int) error
	ClearProgress(ctx context.Context, attemptID string) error
}

// ProgressLoader is implemented by progress syncers that can read the synced
// projection back. Resume consults it so an attempt recovered through a
// separate sync store (e.g. Redis) does not lose answers the attempt row
// never saw.
type ProgressLoader interface {
	LoadProgress(ctx context.Context, attemptID string) (domain.AnswerMap, int, bool, error)
}

// DefinitionRepository loads quiz content (from cache/backing store).
type DefinitionRepository interface {
	GetDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// SessionRegistry tracks the live session per attempt ID. Only one session
// may drive a given attempt at a time.
type SessionRegistry interface {
	Put(attemptID string, session *AttemptSession) *AttemptSession
	Get(attemptID string) (*AttemptSession, bool)
	Delete(attemptID string)
}

// AttemptService gates navigation transitions and orchestrates submission.
type AttemptService struct {
	store       AttemptStore
	definitions DefinitionRepository
	sessions    SessionRegistry
	progress    ProgressSyncer
	reconciler  *Reconciler
}

func NewAttemptService(store AttemptStore, definitions DefinitionRepository, sessions SessionRegistry, progress ProgressSyncer) *AttemptService {
	return &AttemptService{
		store:       store,
		definitions: definitions,
		sessions:    sessions,
		progress:    progress,
		reconciler:  NewReconciler(store),
	}
}

// Resume loads the definition and the stored projection for an attempt and
// registers a session for it. Re-entry with the same attempt ID reuses the
// existing session, making resume idempotent.
func (s *AttemptService) Resume(ctx context.Context, quizID, attemptID string) (domain.AttemptSnapshot, error) {
	if existing, ok := s.sessions.Get(attemptID); ok {
		return existing.Snapshot(), nil
	}

	definition, err := s.definitions.GetDefinition(ctx, quizID)
	if err != nil {
		return domain.AttemptSnapshot{}, domain.ErrDefinitionUnavailable
	}
	if len(definition.Questions) == 0 {
		return domain.AttemptSnapshot{}, domain.ErrDefinitionUnavailable
	}

	stored, err := s.store.LoadAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptSnapshot{}, err
	}
	s.mergeSyncedProgress(ctx, &stored)

	session := NewAttemptSession(definition, stored)
	session = s.sessions.Put(attemptID, session)
	return session.Snapshot(), nil
}

// Session exposes the live session for an attempt (used by the transport
// layer to render state).
func (s *AttemptService) Session(attemptID string) (*AttemptSession, bool) {
	return s.sessions.Get(attemptID)
}

// SelectAnswer applies a selection to the attempt's current state.
func (s *AttemptService) SelectAnswer(attemptID, questionID, optionID string) (domain.AttemptSnapshot, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}
	session.SelectAnswer(questionID, optionID)
	return session.Snapshot(), nil
}

// NextQuestion advances the attempt. In review mode navigation is free and
// touches no store. Mid-attempt, advancing requires an answer on the current
// question (unless the quiz is in exercise mode) and syncs progress
// best-effort. On the last question it triggers the one-shot submission;
// the returned Results is non-nil exactly when this call completed the
// attempt, so the caller can show a completion dialog once.
func (s *AttemptService) NextQuestion(ctx context.Context, attemptID string) (domain.AttemptSnapshot, *domain.Results, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return domain.AttemptSnapshot{}, nil, domain.ErrAttemptNotFound
	}

	if session.IsCompleted() {
		session.advance()
		return session.Snapshot(), nil, nil
	}

	if !session.currentAnswered() && !session.Definition().IsExerciseMode {
		// Invalid transition: the UI keeps "next" disabled, so a stray
		// call is silently ignored.
		return session.Snapshot(), nil, nil
	}

	if !session.IsLastQuestion() {
		session.advance()
		s.syncProgress(ctx, session)
		return session.Snapshot(), nil, nil
	}

	results, err := s.finish(ctx, session)
	if err != nil {
		return session.Snapshot(), nil, err
	}
	return session.Snapshot(), results, nil
}

// finish performs the terminal submission for the last question. The session
// keeps its answers and stays in progress on failure so the user can retry
// with the identical payload.
func (s *AttemptService) finish(ctx context.Context, session *AttemptSession) (*domain.Results, error) {
	if err := session.beginSubmit(); err != nil {
		return nil, err
	}
	defer session.endSubmit()

	snapshot := session.Snapshot()
	results, err := s.reconciler.Submit(ctx, snapshot.AttemptID, snapshot.Answers, snapshot.TimeSpent)
	if err != nil {
		return nil, err
	}

	// Re-validate after the await: the session may have been torn down or
	// replaced while the request was in flight.
	current, ok := s.sessions.Get(snapshot.AttemptID)
	if !ok || current != session {
		log.Printf("discarding stale submission result for attempt %s", snapshot.AttemptID)
		return nil, domain.ErrStaleResult
	}
	if err := session.completeSubmit(results); err != nil {
		return nil, err
	}

	if s.progress != nil {
		if err := s.progress.ClearProgress(ctx, snapshot.AttemptID); err != nil {
			log.Printf("clear progress for attempt %s: %v", snapshot.AttemptID, err)
		}
	}
	return &results, nil
}

// PreviousQuestion moves back one question. Backward navigation never
// validates answers and never syncs; it is a no-op on the first question.
func (s *AttemptService) PreviousQuestion(attemptID string) (domain.AttemptSnapshot, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}
	session.retreat()
	return session.Snapshot(), nil
}

// Abandon marks the attempt abandoned, syncs the terminal projection
// best-effort, and releases the session.
func (s *AttemptService) Abandon(ctx context.Context, attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	session.Abandon()
	s.syncProgress(ctx, session)
	s.sessions.Delete(attemptID)
}

// Release drops the live session without changing attempt state. In-flight
// submissions for a released session are discarded on arrival.
func (s *AttemptService) Release(attemptID string) {
	s.sessions.Delete(attemptID)
}

// mergeSyncedProgress overlays the sync store's projection onto the attempt
// row when it is fresher. The recovery point only moves forward, so a synced
// index ahead of the stored one means the row lagged behind the last sync.
func (s *AttemptService) mergeSyncedProgress(ctx context.Context, stored *domain.AttemptSnapshot) {
	if stored.Status.Terminal() {
		return
	}
	loader, ok := s.progress.(ProgressLoader)
	if !ok {
		return
	}
	answers, index, ok, err := loader.LoadProgress(ctx, stored.AttemptID)
	if err != nil {
		log.Printf("load synced progress for attempt %s: %v", stored.AttemptID, err)
		return
	}
	if !ok || index < stored.CurrentQuestionIndex {
		return
	}
	if index > stored.CurrentQuestionIndex || len(answers) > len(stored.Answers) {
		stored.CurrentQuestionIndex = index
		stored.Answers = answers.Clone()
	}
}

func (s *AttemptService) syncProgress(ctx context.Context, session *AttemptSession) {
	if s.progress == nil {
		return
	}
	snapshot := session.Snapshot()
	if err := s.progress.SyncProgress(ctx, snapshot.AttemptID, snapshot.Answers, snapshot.CurrentQuestionIndex); err != nil {
		log.Printf("sync progress for attempt %s: %v", snapshot.AttemptID, err)
	}
}
