// Package settings — публичные настройки сайта (ключ/значение).
package settings

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

const cacheKey = "settings"

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

type Repository interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, key, value string, now time.Time) (models.Setting, error)
}

// Cache — кеш списка настроек.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type Service struct {
	repo  Repository
	cache Cache
	now   func() time.Time
}

// New создаёт сервис; cache может быть nil.
func New(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// All возвращает настройки в виде словаря.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	const op = "settings.All"
	result := map[string]string{}
	if s.cache != nil {
		if found, err := s.cache.Get(ctx, cacheKey, &result); err == nil && found {
			return result, nil
		}
	}
	list, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result = make(map[string]string, len(list))
	for _, st := range list {
		result[st.Key] = st.Value
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, result, 0)
	}
	return result, nil
}

// Put создаёт или заменяет настройку.
func (s *Service) Put(ctx context.Context, key, value string) (models.Setting, error) {
	const op = "settings.Put"
	if !keyPattern.MatchString(key) {
		return models.Setting{}, apperr.Validation("key must match " + keyPattern.String())
	}
	st, err := s.repo.UpsertSetting(ctx, key, value, s.now().UTC())
	if err != nil {
		return models.Setting{}, fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, cacheKey)
	}
	return st, nil
}
