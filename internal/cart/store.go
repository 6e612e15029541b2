package cart

import (
	"context"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
)

// Store persists carts and staging sets per session. Mutations are applied
// atomically per key so concurrent requests on one session serialize.
type Store interface {
	Load(ctx context.Context, sessionID string) (Cart, error)
	Mutate(ctx context.Context, sessionID string, fn func(Cart) (Cart, error)) (Cart, error)
	Clear(ctx context.Context, sessionID string) error

	LoadStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, bool, error)
	MutateStaging(ctx context.Context, sessionID string, category enums.Category, fn func(Staging, bool) (Staging, error)) (Staging, error)
	ClearStaging(ctx context.Context, sessionID string, category enums.Category) error
}

type redisStore struct {
	client     *pkgredis.Client
	cartTTL    time.Duration
	stagingTTL time.Duration
}

// NewRedisStore stores documents as JSON under the session keys.
func NewRedisStore(client *pkgredis.Client, cartTTL, stagingTTL time.Duration) Store {
	return &redisStore{client: client, cartTTL: cartTTL, stagingTTL: stagingTTL}
}

func (s *redisStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	c, _, err := pkgredis.GetJSON[Cart](ctx, s.client, s.client.CartKey(sessionID))
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return c, err
}

func (s *redisStore) Mutate(ctx context.Context, sessionID string, fn func(Cart) (Cart, error)) (Cart, error) {
	out, err := pkgredis.UpdateJSON(ctx, s.client, s.client.CartKey(sessionID), s.cartTTL, func(current Cart, _ bool) (Cart, bool, error) {
		next, err := fn(current)
		if err != nil {
			return Cart{}, false, err
		}
		if next.Lines == nil {
			next.Lines = []Line{}
		}
		return next, !next.IsEmpty(), nil
	})
	return out, err
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.client.CartKey(sessionID))
}

func (s *redisStore) LoadStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, bool, error) {
	return pkgredis.GetJSON[Staging](ctx, s.client, s.client.StagingKey(sessionID, category.String()))
}

func (s *redisStore) MutateStaging(ctx context.Context, sessionID string, category enums.Category, fn func(Staging, bool) (Staging, error)) (Staging, error) {
	key := s.client.StagingKey(sessionID, category.String())
	return pkgredis.UpdateJSON(ctx, s.client, key, s.stagingTTL, func(current Staging, found bool) (Staging, bool, error) {
		next, err := fn(current, found)
		if err != nil {
			return Staging{}, false, err
		}
		if next.Lines == nil {
			next.Lines = []Line{}
		}
		return next, true, nil
	})
}

func (s *redisStore) ClearStaging(ctx context.Context, sessionID string, category enums.Category) error {
	return s.client.Del(ctx, s.client.StagingKey(sessionID, category.String()))
}
