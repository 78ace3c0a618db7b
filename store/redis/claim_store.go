// Package redisstore implements delivery claims on Redis for deployments
// that run more than one webhook process.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/inbound"
)

const DefaultPrefix = "lightning-webhooks:delivery:"

// Each delivery is one hash: status, claim, ttl, expires, retry, attempts
// and error. Deadlines are unix milliseconds from the caller's clock.
var claimScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
local now = tonumber(ARGV[3])
local lease = tonumber(ARGV[2])
if status then
  if status == 'retry_ready' then
    if tonumber(redis.call('HGET', KEYS[1], 'retry') or '0') > now then
      return 0
    end
  elseif tonumber(redis.call('HGET', KEYS[1], 'expires') or '0') > now then
    return 0
  end
end
redis.call('HSET', KEYS[1], 'status', 'processing', 'claim', ARGV[1], 'ttl', lease, 'expires', now + lease, 'retry', 0)
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('PEXPIRE', KEYS[1], lease)
return 1
`)

var completeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') ~= ARGV[1] or redis.call('HGET', KEYS[1], 'status') ~= 'processing' then
  return 0
end
local ttl = tonumber(redis.call('HGET', KEYS[1], 'ttl') or '0')
redis.call('HSET', KEYS[1], 'status', 'complete', 'expires', tonumber(ARGV[2]) + ttl, 'retry', 0, 'error', '')
redis.call('PEXPIRE', KEYS[1], ttl)
return 1
`)

var failScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') ~= ARGV[1] or redis.call('HGET', KEYS[1], 'status') ~= 'processing' then
  return 0
end
local ttl = tonumber(redis.call('HGET', KEYS[1], 'ttl') or '0')
local retry = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local keep = ttl
if retry > now then
  keep = keep + (retry - now)
end
redis.call('HSET', KEYS[1], 'status', 'retry_ready', 'expires', 0, 'retry', retry, 'error', ARGV[2])
redis.call('PEXPIRE', KEYS[1], keep)
return 1
`)

type ClaimStore struct {
	client redis.UniversalClient
	prefix string
	Now    func() time.Time
}

func NewClaimStore(client redis.UniversalClient, prefix string) (*ClaimStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ClaimStore{
		client: client,
		prefix: prefix,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func NewClient(cfg core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         strings.TrimSpace(cfg.Addr),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Claim returns an id of the form "<uuid>|<key>" so Complete and Fail can
// find the hash without a second index.
func (s *ClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, fmt.Errorf("redisstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("redisstore: delivery key is required")
	}
	if lease <= 0 {
		lease = inbound.DefaultClaimTTL
	}
	claimID := uuid.NewString() + "|" + key
	accepted, err := claimScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		claimID, lease.Milliseconds(), s.now().UnixMilli(),
	).Int()
	if err != nil {
		return "", false, fmt.Errorf("redisstore: claim %q: %w", key, err)
	}
	if accepted == 0 {
		return "", false, nil
	}
	return claimID, true, nil
}

func (s *ClaimStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: claim store is not configured")
	}
	key, err := keyFromClaimID(claimID)
	if err != nil {
		return err
	}
	if err := completeScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		strings.TrimSpace(claimID), s.now().UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("redisstore: complete %q: %w", key, err)
	}
	return nil
}

func (s *ClaimStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: claim store is not configured")
	}
	key, err := keyFromClaimID(claimID)
	if err != nil {
		return err
	}
	now := s.now()
	if retryAt.IsZero() {
		retryAt = now
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := failScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		strings.TrimSpace(claimID), message, retryAt.UTC().UnixMilli(), now.UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("redisstore: fail %q: %w", key, err)
	}
	return nil
}

// Attempts reports how many times key was claimed while its hash was live.
func (s *ClaimStore) Attempts(ctx context.Context, key string) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("redisstore: claim store is not configured")
	}
	attempts, err := s.client.HGet(ctx, s.prefix+strings.TrimSpace(key), "attempts").Int()
	if err == redis.Nil {
		return 0, nil
	}
	return attempts, err
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func keyFromClaimID(claimID string) (string, error) {
	claimID = strings.TrimSpace(claimID)
	_, key, ok := strings.Cut(claimID, "|")
	if !ok || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("redisstore: malformed claim id %q", claimID)
	}
	return key, nil
}

var _ core.ClaimStore = (*ClaimStore)(nil)
