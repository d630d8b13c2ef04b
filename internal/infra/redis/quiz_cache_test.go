package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

func newTestCache(t *testing.T) (*QuizCache, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	inner := memory.NewStore()
	return NewQuizCache(client, inner, time.Minute), inner, mr
}

func storedQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Course:       "CS-301",
		Section:      "A",
		PasswordHash: "$2a$10$hash",
		Questions: []domain.Question{
			{ID: "q1", Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2},
		},
	}
}

func TestQuizCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, inner, mr := newTestCache(t)

	if err := inner.CreateQuiz(ctx, storedQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	quiz, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cached key after miss")
	}
	// The password hash survives the JSON round trip despite being
	// excluded from API serialization.
	if quiz.PasswordHash != "$2a$10$hash" {
		t.Fatalf("password hash lost in cache: %q", quiz.PasswordHash)
	}

	again, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if again.PasswordHash != quiz.PasswordHash || again.Questions[0].CorrectAnswer != 2 {
		t.Fatalf("cached quiz differs: %+v", again)
	}
}

func TestQuizCacheInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	cache, inner, mr := newTestCache(t)

	if err := inner.CreateQuiz(ctx, storedQuiz()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	if err := cache.SetResultsReleased(ctx, "quiz-1", true); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cache key dropped after write")
	}
	quiz, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get after write: %v", err)
	}
	if !quiz.ResultsReleased {
		t.Fatalf("expected refreshed quiz")
	}
}

func TestQuizCacheMiss(t *testing.T) {
	cache, _, _ := newTestCache(t)
	if _, err := cache.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
