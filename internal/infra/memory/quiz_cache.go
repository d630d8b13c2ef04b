package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

// QuizCache wraps a QuizRepository and caches quiz reads with a TTL to
// avoid repeated store hits on the listing and attempt paths. Writes pass
// through and drop the cached entry.
type QuizCache struct {
	inner app.QuizRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(inner app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.inner.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.inner.CreateQuiz(ctx, quiz); err != nil {
		return err
	}
	c.invalidate(quiz.ID)
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
	c.invalidate(quizID)
	return nil
}

func (c *QuizCache) SetResultsReleased(ctx context.Context, quizID string, released bool) error {
	if err := c.inner.SetResultsReleased(ctx, quizID, released); err != nil {
		return err
	}
	c.invalidate(quizID)
	return nil
}

func (c *QuizCache) invalidate(quizID string) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
