package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicsite/internal/util"
)

// RedisSessions keeps token -> last-use (unix millis) in Redis. The key TTL
// equals the session TTL and is reset on each successful Authenticate, so an
// idle key also disappears on its own.
type RedisSessions struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessions builds a Redis-backed session registry.
func NewRedisSessions(addr, password, prefix string, ttl time.Duration) (*RedisSessions, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("session redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "site:session"
	}
	return &RedisSessions{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewSession writes a fresh token with the current timestamp.
func (s *RedisSessions) NewSession() (string, error) {
	token, err := util.RandomHex(sessionTokenBytes)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(token), s.now().UnixMilli(), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate refreshes a live token or deletes an expired one.
func (s *RedisSessions) Authenticate(token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := s.key(token)
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lastMillis, err := strconv.ParseInt(raw, 10, 64)
	now := s.now()
	if err != nil || now.Sub(time.UnixMilli(lastMillis)) > s.ttl {
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil && delErr != redis.Nil {
			return false, delErr
		}
		return false, nil
	}
	if err := s.client.Set(ctx, key, now.UnixMilli(), s.ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the Redis connection pool.
func (s *RedisSessions) Close() error {
	return s.client.Close()
}

func (s *RedisSessions) key(token string) string {
	return s.prefix + ":" + token
}
