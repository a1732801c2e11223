package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/scenario"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("key not found")

// Cache is the subset of CacheService the simulation service depends on.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetWithRetry(ctx context.Context, key string, value interface{}, expiration time.Duration, maxRetries int) error
	Delete(ctx context.Context, keys ...string) error
}

// cacheBreakerFailures is the number of consecutive redis errors that open
// the breaker.
const cacheBreakerFailures = 3

type CacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewCacheService(client *redis.Client) *CacheService {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cacheBreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &CacheService{
		client:  client,
		breaker: cb,
	}
}

// execute runs a redis call through the circuit breaker.
func (s *CacheService) execute(fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports the circuit breaker state.
func (s *CacheService) State() gobreaker.State {
	return s.breaker.State()
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.execute(func() error {
		return s.client.Set(ctx, key, data, expiration).Err()
	}); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	err := s.execute(func() error {
		var getErr error
		data, getErr = s.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			return ErrCacheMiss
		}
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if err := s.execute(func() error {
		return s.client.Del(ctx, keys...).Err()
	}); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Cache with retry logic
func (s *CacheService) SetWithRetry(ctx context.Context, key string, value interface{}, expiration time.Duration, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.Set(ctx, key, value, expiration); err == nil {
			return nil
		}
		logrus.Warnf("Cache set failed (attempt %d/%d): %v", i+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * 100 * time.Duration(i+1)):
		}
	}
	return err
}

// Cache key generators
func StatsCacheKey(fingerprint string) string {
	return fmt.Sprintf("stats:%s", fingerprint)
}

func PlayersCacheKey() string {
	return "players:pool"
}

// Fingerprint identifies a seeded run: the same pool (in order), definition,
// game model, season count and seed always produce the same stats.
func Fingerprint(players []models.Player, def scenario.Definition, model game.Model, seasons int, seed int64) (string, error) {
	h := xxhash.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(players); err != nil {
		return "", fmt.Errorf("failed to hash players: %w", err)
	}
	// name and description do not change the outcome
	def.Name, def.Description = "", ""
	if err := enc.Encode(def); err != nil {
		return "", fmt.Errorf("failed to hash scenario: %w", err)
	}
	if err := enc.Encode(model.OrDefault()); err != nil {
		return "", fmt.Errorf("failed to hash game model: %w", err)
	}
	h.WriteString(strconv.Itoa(seasons))
	h.WriteString(":")
	h.WriteString(strconv.FormatInt(seed, 10))
	return strconv.FormatUint(h.Sum64(), 16), nil
}
