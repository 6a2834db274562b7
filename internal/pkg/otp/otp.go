package otp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"seest/pkg/cache"
)

var (
	ErrTokenInvalid = errors.New("token is invalid or has expired")
	ErrTooFrequent  = errors.New("please wait before requesting again")
)

// TokenStore 一次性令牌与会话黑名单，底层为 Redis 或内存缓存
type TokenStore interface {
	// Issue 为 subject 签发一次性令牌，cooldown 内重复签发返回 ErrTooFrequent
	Issue(ctx context.Context, purpose, subject string, ttl, cooldown time.Duration) (string, error)
	// Consume 校验并立即作废令牌，防止重放
	Consume(ctx context.Context, purpose, token string) (string, error)
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

type tokenStore struct {
	cache cache.CacheService
}

func NewTokenStore(c cache.CacheService) TokenStore {
	return &tokenStore{cache: c}
}

func tokenKey(purpose, token string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, token)
}

func cooldownKey(purpose, subject string) string {
	return fmt.Sprintf("otp:%s:rate:%s", purpose, subject)
}

func revokedKey(sessionID string) string {
	return fmt.Sprintf("session:revoked:%s", sessionID)
}

func (s *tokenStore) Issue(ctx context.Context, purpose, subject string, ttl, cooldown time.Duration) (string, error) {
	if cooldown > 0 {
		var sent bool
		err := s.cache.Get(ctx, cooldownKey(purpose, subject), &sent)
		if err == nil {
			return "", ErrTooFrequent
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return "", err
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.cache.Set(ctx, tokenKey(purpose, token), subject, ttl); err != nil {
		return "", err
	}
	if cooldown > 0 {
		if err := s.cache.Set(ctx, cooldownKey(purpose, subject), true, cooldown); err != nil {
			return "", err
		}
	}
	return token, nil
}

func (s *tokenStore) Consume(ctx context.Context, purpose, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}
	key := tokenKey(purpose, token)
	var subject string
	if err := s.cache.Get(ctx, key, &subject); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", ErrTokenInvalid
		}
		return "", err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return "", err
	}
	return subject, nil
}

func (s *tokenStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revokedKey(sessionID), true, ttl)
}

func (s *tokenStore) Revoked(ctx context.Context, sessionID string) (bool, error) {
	var revoked bool
	err := s.cache.Get(ctx, revokedKey(sessionID), &revoked)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return revoked, nil
}
