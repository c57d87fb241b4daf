package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/utils"
)

const cachePrefix = "cache:"

// CacheService is a display-only cache. Every failure is logged and treated
// as a miss; a broken Redis never fails a request.
type CacheService interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	DelPattern(ctx context.Context, pattern string) error
	GenerateKey(parts ...string) string
}

type cacheService struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewClient(log *logger.Logger) (*goredis.Client, error) {
	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "localhost:6379", log))
	password := utils.GetEnv("REDIS_PASSWORD", "", log)
	db := utils.GetEnvAsInt("REDIS_DB", 0, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewCacheService(log *logger.Logger, rdb *goredis.Client) CacheService {
	return &cacheService{
		log: log.With("service", "CacheService"),
		rdb: rdb,
	}
}

func (c *cacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, cachePrefix+key).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		c.log.Warn("cache get failed, treating as miss", "key", key, "error", err)
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.log.Warn("cache value unmarshal failed, treating as miss", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (c *cacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache value marshal failed", "key", key, "error", err)
		return nil
	}
	if err := c.rdb.Set(ctx, cachePrefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
	return nil
}

func (c *cacheService) Del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, cachePrefix+key).Err(); err != nil {
		c.log.Warn("cache del failed", "key", key, "error", err)
	}
	return nil
}

func (c *cacheService) DelPattern(ctx context.Context, pattern string) error {
	keys, err := c.rdb.Keys(ctx, cachePrefix+pattern).Result()
	if err != nil {
		c.log.Warn("cache del pattern failed", "pattern", pattern, "error", err)
		return nil
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn("cache del pattern failed", "pattern", pattern, "error", err)
		}
	}
	return nil
}

func (c *cacheService) GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}
