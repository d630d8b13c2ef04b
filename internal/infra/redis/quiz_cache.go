package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

// QuizCache caches full quiz records in Redis (JSON per quiz) and falls
// back to the wrapped repository on miss. Writes pass through and delete
// the cached key. Quizzes are stored as: SET quiz:{quizID} {json} EX ttl.
type QuizCache struct {
	client *redis.Client
	inner  app.QuizRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

// cacheEnvelope restores the password hash, which domain.Quiz never
// serializes on API paths.
type cacheEnvelope struct {
	Quiz         domain.Quiz `json:"quiz"`
	PasswordHash string      `json:"passwordHash"`
}

func NewQuizCache(client *redis.Client, inner app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := c.key(quizID)

	if quiz, ok := c.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.cached(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := c.inner.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		raw, err := json.Marshal(cacheEnvelope{Quiz: quiz, PasswordHash: quiz.PasswordHash})
		if err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var envelope cacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Quiz{}, false
	}
	quiz := envelope.Quiz
	quiz.PasswordHash = envelope.PasswordHash
	return quiz, true
}

func (c *QuizCache) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.inner.CreateQuiz(ctx, quiz); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.key(quiz.ID)).Err()
	return nil
}

func (c *QuizCache) ListQuizzes(ctx context.Context, course, section string) ([]domain.Quiz, error) {
	return c.inner.ListQuizzes(ctx, course, section)
}

func (c *QuizCache) ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	return c.inner.ListQuizzesByTeacher(ctx, teacherID)
}

func (c *QuizCache) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	if err := c.inner.ReplaceQuestions(ctx, quizID, questions); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.key(quizID)).Err()
	return nil
}

func (c *QuizCache) SetResultsReleased(ctx context.Context, quizID string, released bool) error {
	if err := c.inner.SetResultsReleased(ctx, quizID, released); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.key(quizID)).Err()
	return nil
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:" + quizID
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
