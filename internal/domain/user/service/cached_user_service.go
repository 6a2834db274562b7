package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seest/internal/domain/user/model"
	"seest/pkg/cache"
	"seest/pkg/logger"
	"seest/pkg/metrics"

	"go.uber.org/zap"
)

// 缓存键常量
const (
	ProfileCacheKeyPrefix = "profile:"
	HandleCacheKeyPrefix  = "handle:"
	ProfileCacheTTL       = time.Minute * 10
)

// CachedUserService 带缓存的用户服务，只缓存单个资料的读取，任何写操作后失效
type CachedUserService struct {
	UserService
	cache cache.CacheService
}

// NewCachedUserService 创建带缓存的用户服务
func NewCachedUserService(inner UserService, c cache.CacheService) UserService {
	return &CachedUserService{UserService: inner, cache: c}
}

func profileKey(id string) string {
	return fmt.Sprintf("%s%s", ProfileCacheKeyPrefix, id)
}

func handleKey(handle string) string {
	return fmt.Sprintf("%s%s", HandleCacheKeyPrefix, strings.ToLower(handle))
}

// GetProfile 获取资料（带缓存）
func (s *CachedUserService) GetProfile(ctx context.Context, id string) (*model.UserView, error) {
	return s.cached(ctx, ProfileCacheKeyPrefix, profileKey(id), func() (*model.UserView, error) {
		return s.UserService.GetProfile(ctx, id)
	})
}

// GetByHandle 按用户名获取资料（带缓存）
func (s *CachedUserService) GetByHandle(ctx context.Context, handle string) (*model.UserView, error) {
	return s.cached(ctx, HandleCacheKeyPrefix, handleKey(handle), func() (*model.UserView, error) {
		return s.UserService.GetByHandle(ctx, handle)
	})
}

func (s *CachedUserService) cached(ctx context.Context, prefix, key string, load func() (*model.UserView, error)) (*model.UserView, error) {
	var v model.UserView
	err := s.cache.Get(ctx, key, &v)
	if err == nil {
		metrics.GetGlobalCollector().RecordCacheOperation(prefix, true)
		return &v, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.GetGlobalCollector().RecordCacheOperation(prefix, false)

	view, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, view, ProfileCacheTTL); err != nil {
		logger.Log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return view, nil
}

// invalidate 清除资料缓存，用户名可能变化，按前缀清除所有 handle 缓存
func (s *CachedUserService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, profileKey(userID)); err != nil {
		logger.Log.Warn("Cache invalidate failed", zap.String("user", userID), zap.Error(err))
	}
	if err := s.cache.InvalidatePattern(ctx, HandleCacheKeyPrefix+"*"); err != nil {
		logger.Log.Warn("Cache invalidate failed", zap.String("pattern", HandleCacheKeyPrefix), zap.Error(err))
	}
}

func (s *CachedUserService) UpdateProfile(ctx context.Context, actorID, targetID string, in model.ProfileUpdate) (*model.UserView, error) {
	v, err := s.UserService.UpdateProfile(ctx, actorID, targetID, in)
	if err == nil {
		s.invalidate(ctx, targetID)
	}
	return v, err
}

func (s *CachedUserService) UpdateVisibility(ctx context.Context, actorID string, v model.Visibility) error {
	err := s.UserService.UpdateVisibility(ctx, actorID, v)
	if err == nil {
		s.invalidate(ctx, actorID)
	}
	return err
}

func (s *CachedUserService) Touch(ctx context.Context, actorID string) error {
	err := s.UserService.Touch(ctx, actorID)
	if err == nil {
		s.invalidate(ctx, actorID)
	}
	return err
}
