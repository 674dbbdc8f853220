package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"futures-signal-engine/internal/position"
)

// Redis keys for position snapshots.
const (
	// positionKeyPrefix is the prefix for individual position keys.
	// Format: signal:position:{symbol}
	positionKeyPrefix = "signal:position"

	// positionListKey is the set of symbols with a live position.
	positionListKey = "signal:positions:list"

	// positionTTL keeps snapshots around well past a typical trade's life so
	// state survives restarts.
	positionTTL = 7 * 24 * time.Hour
)

// ErrPositionNotFound is returned when no snapshot exists for a symbol.
var ErrPositionNotFound = errors.New("position not found")

// RedisPositionStore persists live position snapshots in Redis with an
// in-memory fallback cache. When Redis is unavailable evaluation continues
// against the cache; Redis is retried on the next write.
type RedisPositionStore struct {
	client         *redis.Client
	cache          map[string]position.State
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
	logger         zerolog.Logger
}

// NewRedisPositionStore creates a store. A nil client means memory-only mode.
func NewRedisPositionStore(client *redis.Client, logger zerolog.Logger) *RedisPositionStore {
	store := &RedisPositionStore{
		client: client,
		cache:  make(map[string]position.State),
		logger: logger.With().Str("component", "position_store").Logger(),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			store.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory cache")
			store.redisAvailable.Store(false)
		} else {
			store.logger.Info().Msg("Redis connected")
			store.redisAvailable.Store(true)
		}
	} else {
		store.logger.Info().Msg("No Redis client, using in-memory cache only")
		store.redisAvailable.Store(false)
	}
	return store
}

func (s *RedisPositionStore) positionKey(symbol string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, symbol)
}

// Save persists a position snapshot. The in-memory cache is always updated;
// a Redis failure is logged and absorbed, not returned.
func (s *RedisPositionStore) Save(ctx context.Context, state position.State) error {
	if state.Symbol == "" {
		return fmt.Errorf("cannot save position without symbol")
	}

	s.cacheMu.Lock()
	s.cache[state.Symbol] = state
	s.cacheMu.Unlock()

	if s.client == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal position state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.positionKey(state.Symbol), data, positionTTL)
	pipe.SAdd(ctx, positionListKey, state.Symbol)
	pipe.Expire(ctx, positionListKey, positionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("symbol", state.Symbol).Msg("Redis save failed, in-memory cache holds state")
		s.redisAvailable.Store(false)
		return nil
	}
	s.redisAvailable.Store(true)
	return nil
}

// Get loads the snapshot for a symbol, preferring Redis and falling back to
// the in-memory cache.
func (s *RedisPositionStore) Get(ctx context.Context, symbol string) (position.State, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, s.positionKey(symbol)).Bytes()
		switch {
		case err == nil:
			var state position.State
			if jsonErr := json.Unmarshal(data, &state); jsonErr != nil {
				return position.State{}, fmt.Errorf("unmarshal position state: %w", jsonErr)
			}
			return state, nil
		case errors.Is(err, redis.Nil):
			return position.State{}, ErrPositionNotFound
		default:
			s.logger.Warn().Err(err).Msg("Redis get failed, falling back to cache")
			s.redisAvailable.Store(false)
		}
	}

	s.cacheMu.RLock()
	state, ok := s.cache[symbol]
	s.cacheMu.RUnlock()
	if !ok {
		return position.State{}, ErrPositionNotFound
	}
	return state, nil
}

// Delete removes the snapshot after a position closes.
func (s *RedisPositionStore) Delete(ctx context.Context, symbol string) error {
	s.cacheMu.Lock()
	delete(s.cache, symbol)
	s.cacheMu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.positionKey(symbol))
	pipe.SRem(ctx, positionListKey, symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Redis delete failed")
		s.redisAvailable.Store(false)
	}
	return nil
}

// List returns every symbol with a live snapshot.
func (s *RedisPositionStore) List(ctx context.Context) ([]string, error) {
	if s.client != nil && s.redisAvailable.Load() {
		symbols, err := s.client.SMembers(ctx, positionListKey).Result()
		if err == nil {
			return symbols, nil
		}
		s.logger.Warn().Err(err).Msg("Redis list failed, falling back to cache")
		s.redisAvailable.Store(false)
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	symbols := make([]string, 0, len(s.cache))
	for symbol := range s.cache {
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}
