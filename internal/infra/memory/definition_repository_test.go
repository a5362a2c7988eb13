package memory

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestDefinitionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		DefinitionLoader: NewStaticDefinitionLoader(map[string]domain.QuizDefinition{
			"quiz-1": sampleDefinition(),
		}),
	}
	repo := NewDefinitionRepository(loader, time.Minute)

	if _, err := repo.GetDefinition(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetDefinition(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get definition 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestDefinitionRepositoryPropagatesNotFound(t *testing.T) {
	repo := NewDefinitionRepository(NewStaticDefinitionLoader(nil), time.Minute)
	if _, err := repo.GetDefinition(context.Background(), "quiz-missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type countingLoader struct {
	DefinitionLoader
	calls int
}

func (l *countingLoader) LoadDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	l.calls++
	return l.DefinitionLoader.LoadDefinition(ctx, quizID)
}
