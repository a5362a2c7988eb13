package memory

import (
	"context"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestAttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(NewStaticDefinitionLoader(map[string]domain.QuizDefinition{
		"quiz-1": sampleDefinition(),
	}))

	attemptID, err := store.CreateAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.SyncProgress(ctx, attemptID, domain.AnswerMap{"q1": {"o2"}}, 1); err != nil {
		t.Fatalf("sync: %v", err)
	}

	resumed, err := store.LoadAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resumed.CurrentQuestionIndex != 1 || len(resumed.Answers["q1"]) != 1 {
		t.Fatalf("expected synced projection, got %+v", resumed)
	}
	if resumed.Status != domain.AttemptInProgress {
		t.Fatalf("expected in-progress status, got %s", resumed.Status)
	}
}

func TestSubmitScoresAgainstDefinition(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(NewStaticDefinitionLoader(map[string]domain.QuizDefinition{
		"quiz-1": sampleDefinition(),
	}))
	attemptID, _ := store.CreateAttempt(ctx, "quiz-1")

	results, err := store.SubmitAttempt(ctx, domain.Submission{
		AttemptID: attemptID,
		Answers:   domain.AnswerMap{"q1": {"o2"}, "q2": {"m1", "m2"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if results.Status != domain.ResultsCompleted {
		t.Fatalf("expected completed status, got %s", results.Status)
	}
	if results.Score != 100 {
		t.Fatalf("expected 100, got %v", results.Score)
	}

	// Half credit: q1 right (1 point), q2 partial selection scores zero.
	attempt2, _ := store.CreateAttempt(ctx, "quiz-1")
	results, err = store.SubmitAttempt(ctx, domain.Submission{
		AttemptID: attempt2,
		Answers:   domain.AnswerMap{"q1": {"o2"}, "q2": {"m1"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if results.Score != 33.33 {
		t.Fatalf("expected 33.33 (1 of 3 points), got %v", results.Score)
	}
	if !results.Questions[0].Correct || results.Questions[1].Correct {
		t.Fatalf("unexpected per-question detail: %+v", results.Questions)
	}
}

func TestResubmitReturnsStoredResults(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(NewStaticDefinitionLoader(map[string]domain.QuizDefinition{
		"quiz-1": sampleDefinition(),
	}))
	attemptID, _ := store.CreateAttempt(ctx, "quiz-1")

	first, err := store.SubmitAttempt(ctx, domain.Submission{
		AttemptID: attemptID,
		Answers:   domain.AnswerMap{"q1": {"o2"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A retried submit after a false-negative failure must not rescore.
	second, err := store.SubmitAttempt(ctx, domain.Submission{
		AttemptID: attemptID,
		Answers:   domain.AnswerMap{"q1": {"o1"}},
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Score != first.Score {
		t.Fatalf("expected stored results on resubmit, got %v then %v", first.Score, second.Score)
	}
}

func TestLoadUnknownAttempt(t *testing.T) {
	store := NewAttemptStore(NewStaticDefinitionLoader(nil))
	if _, err := store.LoadAttempt(context.Background(), "attempt-missing"); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected attempt not found, got %v", err)
	}
}

func sampleDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
				},
				Points: 1,
			},
			{
				ID:         "q2",
				Prompt:     "Pick the even numbers",
				IsMultiple: true,
				Options: []domain.Option{
					{ID: "m1", Text: "2", Correct: true},
					{ID: "m2", Text: "4", Correct: true},
					{ID: "m3", Text: "5"},
				},
				Points: 2,
			},
		},
	}
}
