package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cheers/cheers-api/internal/domain/ledger"
)

// ErrCacheMiss means no snapshot is stored for the window.
var ErrCacheMiss = errors.New("leaderboard cache miss")

const keyPrefix = "cheers:leaderboard:"

// Cache stores materialized boards.
type Cache interface {
	Get(ctx context.Context, window ledger.Window) (*Board, error)
	Set(ctx context.Context, board *Board) error
}

// RedisCache keeps one JSON snapshot per window.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, window ledger.Window) (*Board, error) {
	data, err := c.client.Get(ctx, keyPrefix+string(window)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &b, nil
}

func (c *RedisCache) Set(ctx context.Context, board *Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+string(board.Window), data, c.ttl).Err()
}

// MemoryCache is the single-instance fallback used when Redis is not configured.
type MemoryCache struct {
	mu     sync.RWMutex
	boards map[ledger.Window]Board
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{boards: make(map[ledger.Window]Board)}
}

func (c *MemoryCache) Get(_ context.Context, window ledger.Window) (*Board, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.boards[window]
	if !ok {
		return nil, ErrCacheMiss
	}
	b.Entries = append([]Entry(nil), b.Entries...)
	return &b, nil
}

func (c *MemoryCache) Set(_ context.Context, board *Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := *board
	b.Entries = append([]Entry(nil), board.Entries...)
	c.boards[board.Window] = b
	return nil
}
