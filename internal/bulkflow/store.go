package bulkflow

import (
	"context"
	"time"

	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
)

// Store persists flows by id.
type Store interface {
	Get(ctx context.Context, flowID string) (State, bool, error)
	Mutate(ctx context.Context, flowID string, fn func(State, bool) (State, error)) (State, error)
	Delete(ctx context.Context, flowID string) error
}

type redisStore struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisStore keeps flows as JSON documents that expire after ttl.
func NewRedisStore(client *pkgredis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (r *redisStore) Get(ctx context.Context, flowID string) (State, bool, error) {
	doc, found, err := pkgredis.GetJSON[storedState](ctx, r.client, r.client.FlowKey(flowID))
	if err != nil || !found {
		return State{}, found, err
	}
	return doc.restore(), true, nil
}

func (r *redisStore) Mutate(ctx context.Context, flowID string, fn func(State, bool) (State, error)) (State, error) {
	doc, err := pkgredis.UpdateJSON(ctx, r.client, r.client.FlowKey(flowID), r.ttl, func(current storedState, found bool) (storedState, bool, error) {
		next, err := fn(current.restore(), found)
		if err != nil {
			return storedState{}, false, err
		}
		return storedState{State: next, Session: next.SessionID}, true, nil
	})
	if err != nil {
		return State{}, err
	}
	return doc.restore(), nil
}

func (r *redisStore) Delete(ctx context.Context, flowID string) error {
	return r.client.Del(ctx, r.client.FlowKey(flowID))
}

func (d storedState) restore() State {
	s := d.State
	s.SessionID = d.Session
	return s
}
