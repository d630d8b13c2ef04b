package app

import (
	"context"
	"time"
)

// AttemptGrant records which (student, quiz) pair a one-time attempt code
// was issued for.
type AttemptGrant struct {
	StudentID string `json:"studentId"`
	QuizID    string `json:"quizId"`
}

// CodeStore holds one-time attempt codes: a code is inserted with an
// expiry after a successful password check and consumed at most once by
// the live attempt connection. The redis implementation is the one to use
// when the service runs as multiple instances.
type CodeStore interface {
	Put(ctx context.Context, code string, grant AttemptGrant, ttl time.Duration) error
	Consume(ctx context.Context, code string) (AttemptGrant, bool, error)
}
