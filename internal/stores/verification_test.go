package stores

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestVerificationStore(t *testing.T) (*VerificationStore, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	store, err := NewVerificationStore(rdb, VerificationConfig{Salt: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatalf("NewVerificationStore: %v", err)
	}
	return store, mr
}

func TestVerificationIssueConsume(t *testing.T) {
	store, mr := newTestVerificationStore(t)
	ctx := context.Background()

	token, ttl, err := store.Issue(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ttl != DefaultVerificationTTL {
		t.Fatalf("expected default ttl, got %v", ttl)
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, token) {
			t.Fatal("raw token must not appear in the storage key")
		}
		if v, _ := mr.Get(key); strings.Contains(v, token) {
			t.Fatal("raw token must not appear in the stored value")
		}
	}

	payload, err := store.Consume(ctx, "alice", token)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if payload.Identity != "alice" || payload.Email != "alice@example.com" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if _, err := store.Consume(ctx, "alice", token); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("second consume must be not found, got %v", err)
	}
}

func TestVerificationConsumeWrongIdentity(t *testing.T) {
	store, _ := newTestVerificationStore(t)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := store.Consume(ctx, "mallory", token); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected not found for other identity, got %v", err)
	}
	if _, err := store.Consume(ctx, "alice", token); err != nil {
		t.Fatalf("owner consume must still succeed: %v", err)
	}
}

func TestVerificationExpires(t *testing.T) {
	store, mr := newTestVerificationStore(t)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mr.FastForward(31 * time.Minute)
	if _, err := store.Consume(ctx, "alice", token); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected expired token to be not found, got %v", err)
	}
}

func TestVerificationConcurrentConsumeExactlyOnce(t *testing.T) {
	store, _ := newTestVerificationStore(t)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Consume(ctx, "alice", token)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrVerificationNotFound):
				notFound.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one success, got %d", successes.Load())
	}
	if notFound.Load() != workers-1 {
		t.Fatalf("expected %d not-found, got %d", workers-1, notFound.Load())
	}
}

func TestVerificationStoreConfig(t *testing.T) {
	_, rdb := newTestRedis(t)
	if _, err := NewVerificationStore(rdb, VerificationConfig{Salt: []byte("short")}); err == nil {
		t.Fatal("expected error for short salt")
	}
	store, err := NewVerificationStore(rdb, VerificationConfig{Salt: []byte("0123456789abcdef"), TTL: 5 * time.Minute})
	if err != nil {
		t.Fatalf("NewVerificationStore: %v", err)
	}
	if store.TTL() != 5*time.Minute {
		t.Fatalf("expected custom ttl, got %v", store.TTL())
	}
}

func TestVerificationStoreUnavailable(t *testing.T) {
	store, mr := newTestVerificationStore(t)
	mr.SetError("ERR down")

	if _, _, err := store.Issue(context.Background(), "alice", "a@example.com"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Consume(context.Background(), "alice", "token"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
