package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

// countingStore counts GetQuiz hits on the backing store.
type countingStore struct {
	*Store
	gets atomic.Int64
}

func (c *countingStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	c.gets.Add(1)
	return c.Store.GetQuiz(ctx, quizID)
}

func TestQuizCacheServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewStore()}
	seedQuiz(t, inner.Store, "quiz-1", "CS-301", "A")

	cache := NewQuizCache(inner, time.Minute)
	for i := 0; i < 5; i++ {
		if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if got := inner.gets.Load(); got != 1 {
		t.Fatalf("expected one backing read, got %d", got)
	}
}

func TestQuizCacheInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewStore()}
	seedQuiz(t, inner.Store, "quiz-1", "CS-301", "A")

	cache := NewQuizCache(inner, time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	if err := cache.SetResultsReleased(ctx, "quiz-1", true); err != nil {
		t.Fatalf("release: %v", err)
	}
	quiz, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get after write: %v", err)
	}
	if !quiz.ResultsReleased {
		t.Fatalf("expected refreshed quiz with released results")
	}
	if got := inner.gets.Load(); got != 2 {
		t.Fatalf("expected cache miss after invalidation, got %d reads", got)
	}
}

func TestQuizCachePropagatesMiss(t *testing.T) {
	cache := NewQuizCache(&countingStore{Store: NewStore()}, time.Minute)
	if _, err := cache.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
