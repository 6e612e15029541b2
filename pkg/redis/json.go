package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IsNil reports whether err is the missing-key sentinel.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// GetJSON decodes the JSON document stored at key. found is false when the
// key does not exist.
func GetJSON[T any](ctx context.Context, c *Client, key string) (value T, found bool, err error) {
	raw, err := c.Get(ctx, key)
	if IsNil(err) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return value, true, nil
}

// UpdateJSON applies fn to the JSON document at key inside Update. When keep
// is false the key is deleted. The value written is returned.
func UpdateJSON[T any](ctx context.Context, c *Client, key string, ttl time.Duration, fn func(current T, found bool) (next T, keep bool, err error)) (T, error) {
	var written T
	err := c.Update(ctx, key, ttl, func(raw string) (string, error) {
		var current T
		found := raw != ""
		if found {
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return "", fmt.Errorf("decode %s: %w", key, err)
			}
		}
		next, keep, err := fn(current, found)
		if err != nil {
			return "", err
		}
		written = next
		if !keep {
			return "", nil
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", key, err)
		}
		return string(encoded), nil
	})
	return written, err
}
