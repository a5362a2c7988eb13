package app_test

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFullAttemptFlow(t *testing.T) {
	ctx := context.Background()
	service, store, attemptID := newTestService(t, threeQuestionDefinition())

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if _, err := service.SelectAnswer(attemptID, "q1", "a"); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	if _, _, err := service.NextQuestion(ctx, attemptID); err != nil {
		t.Fatalf("next from q1: %v", err)
	}

	// Re-selecting on a single-select question replaces the prior choice.
	_, _ = service.SelectAnswer(attemptID, "q2", "b")
	_, _ = service.SelectAnswer(attemptID, "q2", "c")
	if _, _, err := service.NextQuestion(ctx, attemptID); err != nil {
		t.Fatalf("next from q2: %v", err)
	}

	_, _ = service.SelectAnswer(attemptID, "q3", "a")
	snapshot, results, err := service.NextQuestion(ctx, attemptID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if results == nil {
		t.Fatalf("expected results on finish")
	}
	if snapshot.Status != domain.AttemptSubmitted {
		t.Fatalf("expected submitted status, got %s", snapshot.Status)
	}
	if results.Score != 100 {
		t.Fatalf("expected perfect score, got %v", results.Score)
	}

	want := domain.AnswerMap{"q1": {"a"}, "q2": {"c"}, "q3": {"a"}}
	if got := store.lastSubmission().Answers; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected submission %v, got %v", want, got)
	}
}

func TestNextWithoutAnswerIsNoOp(t *testing.T) {
	ctx := context.Background()
	service, _, attemptID := newTestService(t, threeQuestionDefinition())
	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	snapshot, results, err := service.NextQuestion(ctx, attemptID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %+v", results)
	}
	if snapshot.CurrentQuestionIndex != 0 {
		t.Fatalf("expected index to stay 0, got %d", snapshot.CurrentQuestionIndex)
	}
}

func TestPreviousAtFirstQuestionIsNoOp(t *testing.T) {
	ctx := context.Background()
	service, _, attemptID := newTestService(t, threeQuestionDefinition())
	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	snapshot, err := service.PreviousQuestion(attemptID)
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if snapshot.CurrentQuestionIndex != 0 {
		t.Fatalf("expected index to stay 0, got %d", snapshot.CurrentQuestionIndex)
	}
}

func TestFailedSubmissionIsRetryable(t *testing.T) {
	ctx := context.Background()
	service, store, attemptID := newTestService(t, oneQuestionDefinition())
	store.failures = 1

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_, _ = service.SelectAnswer(attemptID, "q1", "right")

	snapshot, results, err := service.NextQuestion(ctx, attemptID)
	if !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results after failure")
	}
	if snapshot.Status != domain.AttemptInProgress {
		t.Fatalf("expected attempt still in progress, got %s", snapshot.Status)
	}
	if got := snapshot.Answers["q1"]; len(got) != 1 || got[0] != "right" {
		t.Fatalf("expected answers preserved after failure, got %v", got)
	}

	// Retry sends the identical payload and succeeds.
	snapshot, results, err = service.NextQuestion(ctx, attemptID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if results == nil || snapshot.Status != domain.AttemptSubmitted {
		t.Fatalf("expected successful retry, results=%v status=%s", results, snapshot.Status)
	}
	if len(store.submissions) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(store.submissions))
	}
	first, second := store.submissions[0], store.submissions[1]
	if first.AttemptID != second.AttemptID || !reflect.DeepEqual(first.Answers, second.Answers) {
		t.Fatalf("expected identical retry payload, got %+v then %+v", first, second)
	}
}

func TestConcurrentFinishSubmitsOnce(t *testing.T) {
	ctx := context.Background()
	service, store, attemptID := newTestService(t, oneQuestionDefinition())
	store.block = make(chan struct{})
	store.started = make(chan struct{}, 1)

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_, _ = service.SelectAnswer(attemptID, "q1", "right")

	done := make(chan error, 1)
	go func() {
		_, _, err := service.NextQuestion(ctx, attemptID)
		done <- err
	}()
	<-store.started

	// Second finish while the first is in flight is rejected.
	_, _, err := service.NextQuestion(ctx, attemptID)
	if !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first finish: %v", err)
	}
	if calls := atomic.LoadInt32(&store.submitCalls); calls != 1 {
		t.Fatalf("expected exactly one store call, got %d", calls)
	}
}

func TestStaleResultDiscardedAfterRelease(t *testing.T) {
	ctx := context.Background()
	service, store, attemptID := newTestService(t, oneQuestionDefinition())
	store.block = make(chan struct{})
	store.started = make(chan struct{}, 1)

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_, _ = service.SelectAnswer(attemptID, "q1", "right")

	done := make(chan error, 1)
	go func() {
		_, _, err := service.NextQuestion(ctx, attemptID)
		done <- err
	}()
	<-store.started

	// User navigates away while the submission is in flight.
	service.Release(attemptID)
	close(store.block)

	if err := <-done; !errors.Is(err, domain.ErrStaleResult) {
		t.Fatalf("expected stale result discard, got %v", err)
	}
}

func TestReviewModeNavigatesFreely(t *testing.T) {
	ctx := context.Background()
	service, store, attemptID := newTestService(t, threeQuestionDefinition())

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	for _, sel := range []struct{ q, o string }{{"q1", "a"}, {"q2", "c"}, {"q3", "a"}} {
		_, _ = service.SelectAnswer(attemptID, sel.q, sel.o)
		if _, _, err := service.NextQuestion(ctx, attemptID); err != nil {
			t.Fatalf("advance %s: %v", sel.q, err)
		}
	}
	submitted := atomic.LoadInt32(&store.submitCalls)

	// Back to the start, then forward over unanswered-looking questions.
	_, _ = service.PreviousQuestion(attemptID)
	_, _ = service.PreviousQuestion(attemptID)
	snapshot, results, err := service.NextQuestion(ctx, attemptID)
	if err != nil {
		t.Fatalf("review next: %v", err)
	}
	if results != nil {
		t.Fatalf("review navigation must not re-surface results")
	}
	if snapshot.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1 in review, got %d", snapshot.CurrentQuestionIndex)
	}
	if got := atomic.LoadInt32(&store.submitCalls); got != submitted {
		t.Fatalf("review navigation must not hit the store, calls went %d -> %d", submitted, got)
	}

	// Answers stay frozen in review mode.
	reviewed, _ := service.SelectAnswer(attemptID, "q2", "b")
	if got := reviewed.Answers["q2"]; len(got) != 1 || got[0] != "c" {
		t.Fatalf("expected review answers frozen at [c], got %v", got)
	}
}

func TestExerciseModeAllowsSkipping(t *testing.T) {
	ctx := context.Background()
	definition := threeQuestionDefinition()
	definition.IsExerciseMode = true
	service, _, attemptID := newTestService(t, definition)

	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	snapshot, _, err := service.NextQuestion(ctx, attemptID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if snapshot.CurrentQuestionIndex != 1 {
		t.Fatalf("expected skip to advance, got index %d", snapshot.CurrentQuestionIndex)
	}
}

func TestResumeRecoversSyncedProgress(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	// Progress syncs to redis while the attempt row stays behind, as in the
	// redis-enabled server wiring.
	loader := memory.NewStaticDefinitionLoader(map[string]domain.QuizDefinition{"quiz-1": threeQuestionDefinition()})
	store := memory.NewAttemptStore(loader)
	progress := redisinfra.NewProgressStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	service := app.NewAttemptService(store, memory.NewDefinitionRepository(loader, time.Minute), memory.NewSessionRegistry(), progress)

	attemptID, err := store.CreateAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if _, err := service.Resume(ctx, "quiz-1", attemptID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_, _ = service.SelectAnswer(attemptID, "q1", "a")
	if _, _, err := service.NextQuestion(ctx, attemptID); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// User navigates away; only the sync store remembers the advance.
	service.Release(attemptID)

	snapshot, err := service.Resume(ctx, "quiz-1", attemptID)
	if err != nil {
		t.Fatalf("resume after release: %v", err)
	}
	if snapshot.CurrentQuestionIndex != 1 {
		t.Fatalf("expected resumed index 1, got %d", snapshot.CurrentQuestionIndex)
	}
	if got := snapshot.Answers["q1"]; len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected resumed answer [a], got %v", got)
	}
}

func TestResumeRejectsEmptyDefinition(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewStaticDefinitionLoader(map[string]domain.QuizDefinition{
		"quiz-empty": {ID: "quiz-empty"},
	})
	store := memory.NewAttemptStore(loader)
	service := app.NewAttemptService(store, memory.NewDefinitionRepository(loader, time.Minute), memory.NewSessionRegistry(), store)

	attemptID, err := store.CreateAttempt(ctx, "quiz-empty")
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if _, err := service.Resume(ctx, "quiz-empty", attemptID); !errors.Is(err, domain.ErrDefinitionUnavailable) {
		t.Fatalf("expected definition unavailable, got %v", err)
	}
}

// trackingStore wraps the in-memory store to observe, fail, or stall the
// scoring call.
type trackingStore struct {
	*memory.AttemptStore
	failures    int
	submissions []domain.Submission
	submitCalls int32
	started     chan struct{}
	block       chan struct{}
}

func (s *trackingStore) SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.Results, error) {
	atomic.AddInt32(&s.submitCalls, 1)
	s.submissions = append(s.submissions, submission)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if s.failures > 0 {
		s.failures--
		return domain.Results{}, errors.New("network down")
	}
	return s.AttemptStore.SubmitAttempt(ctx, submission)
}

func (s *trackingStore) lastSubmission() domain.Submission {
	if len(s.submissions) == 0 {
		return domain.Submission{}
	}
	return s.submissions[len(s.submissions)-1]
}

func newTestService(t *testing.T, definition domain.QuizDefinition) (*app.AttemptService, *trackingStore, string) {
	t.Helper()
	loader := memory.NewStaticDefinitionLoader(map[string]domain.QuizDefinition{"quiz-1": definition})
	store := &trackingStore{AttemptStore: memory.NewAttemptStore(loader)}
	definitions := memory.NewDefinitionRepository(loader, time.Minute)
	service := app.NewAttemptService(store, definitions, memory.NewSessionRegistry(), store)

	attemptID, err := store.CreateAttempt(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	return service, store, attemptID
}

func threeQuestionDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "First", Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b"}}},
			{ID: "q2", Prompt: "Second", Options: []domain.Option{{ID: "b"}, {ID: "c", Correct: true}}},
			{ID: "q3", Prompt: "Third", Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b"}}},
		},
	}
}

func oneQuestionDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Only", Options: []domain.Option{{ID: "right", Correct: true}, {ID: "wrong"}}},
		},
	}
}
