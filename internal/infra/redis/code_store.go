package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"classquiz-service/internal/app"
)

// CodeStore keeps one-time attempt codes in Redis. Expiry is Redis TTL;
// single consumption is GETDEL, which is atomic across instances.
type CodeStore struct {
	client *redis.Client
}

func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

func (s *CodeStore) Put(ctx context.Context, code string, grant app.AttemptGrant, ttl time.Duration) error {
	raw, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(code), raw, ttl).Err()
}

func (s *CodeStore) Consume(ctx context.Context, code string) (app.AttemptGrant, bool, error) {
	raw, err := s.client.GetDel(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.AttemptGrant{}, false, nil
	}
	if err != nil {
		return app.AttemptGrant{}, false, err
	}
	var grant app.AttemptGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return app.AttemptGrant{}, false, err
	}
	return grant, true, nil
}

func (s *CodeStore) key(code string) string {
	return "attempt:code:" + code
}
