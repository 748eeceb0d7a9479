package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	"go.uber.org/zap"
)

const (
	KeyDiscAPIURL = "disc.api.url"
	KeyDiscAPIKey = "disc.api.key"
)

// ParameterRepository persists configuration parameters.
type ParameterRepository interface {
	Get(ctx context.Context, key string) (*domain.ConfigParameter, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) error
}

// Cache fronts the parameter repository. Cache failures never fail a read.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Invalidate(ctx context.Context, key string) error
}

type Store struct {
	params ParameterRepository
	cache  Cache
	logger *zap.Logger
}

func NewStore(params ParameterRepository, cache Cache, logger *zap.Logger) (*Store, error) {
	if params == nil {
		return nil, fmt.Errorf("parameter repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{params: params, cache: cache, logger: logger}, nil
}

// Get returns the parameter value, or "" when it is not set.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		value, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("parameter cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return value, nil
		}
	}

	param, err := s.params.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load parameter %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, param.Value); err != nil {
			s.logger.Warn("parameter cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return param.Value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.params.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store parameter %s: %w", key, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("parameter cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// DiscConfig resolves the partner endpoint configuration for one attempt.
func (s *Store) DiscConfig(ctx context.Context) (registration.Config, error) {
	url, err := s.Get(ctx, KeyDiscAPIURL)
	if err != nil {
		return registration.Config{}, err
	}
	key, err := s.Get(ctx, KeyDiscAPIKey)
	if err != nil {
		return registration.Config{}, err
	}
	return registration.Config{URL: strings.TrimSpace(url), APIKey: strings.TrimSpace(key)}, nil
}

// UpdateDiscConfig writes the provided values. A nil field is left unchanged.
func (s *Store) UpdateDiscConfig(ctx context.Context, url, apiKey *string) error {
	if url != nil {
		if err := s.Set(ctx, KeyDiscAPIURL, strings.TrimSpace(*url)); err != nil {
			return err
		}
	}
	if apiKey != nil {
		if err := s.Set(ctx, KeyDiscAPIKey, strings.TrimSpace(*apiKey)); err != nil {
			return err
		}
	}
	return nil
}

// Seed stores the given defaults for parameters that have no value yet.
func (s *Store) Seed(ctx context.Context, defaults map[string]string) error {
	for key, value := range defaults {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := s.params.SetIfAbsent(ctx, key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("failed to seed parameter %s: %w", key, err)
		}
	}
	return nil
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
