package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisLockExcludesSecondOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	key := client.LockKey("cron", "maintenance")
	ctx := context.Background()

	first, err := NewRedisLock(client, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(client, key, time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second owner acquired a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("non-owner release removed the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("lock still present after release")
	}
}

func TestRedisLockDoesNotDeleteTakenOverLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	key := client.LockKey("cron", "maintenance")
	ctx := context.Background()

	lock, _ := NewRedisLock(client, key, time.Second)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	mr.FastForward(2 * time.Second)
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got, _ := mr.Get(key); got != "someone-else" {
		t.Fatalf("expected foreign lock kept, got %q", got)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected nil store to fail")
	}
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	if _, err := NewRedisLock(client, "", 0); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
