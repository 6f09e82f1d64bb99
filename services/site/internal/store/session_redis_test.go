package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionsLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisSessions(mr.Addr(), "", "", 24*time.Hour)
	if err != nil {
		t.Fatalf("new redis sessions: %v", err)
	}
	defer s.Close()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clock.now

	token, err := s.NewSession()
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	key := "site:session:" + token
	if !mr.Exists(key) {
		t.Fatalf("expected key %s in redis", key)
	}
	if ttl := mr.TTL(key); ttl != 24*time.Hour {
		t.Fatalf("expected 24h key ttl, got %s", ttl)
	}

	clock.advance(20 * time.Hour)
	mr.FastForward(20 * time.Hour)
	ok, err := s.Authenticate(token)
	if err != nil || !ok {
		t.Fatalf("authenticate within window: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL(key); ttl != 24*time.Hour {
		t.Fatalf("expected ttl refreshed to 24h, got %s", ttl)
	}

	// Stale timestamp with a key that is still present is deleted on read.
	clock.advance(25 * time.Hour)
	ok, err = s.Authenticate(token)
	if err != nil || ok {
		t.Fatalf("expected stale token rejected: ok=%v err=%v", ok, err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected stale key deleted")
	}
}

func TestRedisSessionsKeyExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisSessions(mr.Addr(), "", "test", time.Hour)
	if err != nil {
		t.Fatalf("new redis sessions: %v", err)
	}
	defer s.Close()

	token, err := s.NewSession()
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mr.FastForward(time.Hour + time.Second)
	if ok, err := s.Authenticate(token); ok || err != nil {
		t.Fatalf("expected expired key rejected: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Authenticate("unknown"); ok {
		t.Fatalf("expected unknown token rejected")
	}
}

func TestRedisSessionsGarbageValueRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisSessions(mr.Addr(), "", "", time.Hour)
	if err != nil {
		t.Fatalf("new redis sessions: %v", err)
	}
	defer s.Close()
	if err := mr.Set("site:session:abc", "not-a-number"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ok, err := s.Authenticate("abc"); ok || err != nil {
		t.Fatalf("expected garbage value rejected: ok=%v err=%v", ok, err)
	}
	if mr.Exists("site:session:abc") {
		t.Fatalf("expected garbage key deleted")
	}
}

func TestNewRedisSessionsRequiresAddr(t *testing.T) {
	if _, err := NewRedisSessions(" ", "", "", time.Hour); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
