package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/strideloop/runcore/pkg/config"
	"github.com/strideloop/runcore/pkg/logger"
)

// Client wraps redis.Client with additional functionality
type Client struct {
	*redis.Client
	url    string
	logger *logger.Logger
}

// NewClient creates a new Redis client from URL
func NewClient(redisURL string, log *logger.Logger) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	// Parse Redis URL and create client
	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(redisOptions)

	client := &Client{
		Client: rdb,
		url:    redisURL,
		logger: log.WithComponent("redisx"),
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client.logger.Info("Redis client connected successfully",
		zap.String("addr", redisOptions.Addr),
		zap.Int("db", redisOptions.DB),
		zap.Int("pool_size", redisOptions.PoolSize),
	)

	return client, nil
}

// NewClientFromConfig creates a new Redis client from config, applying the
// configured dial/read/write timeouts on top of the URL
func NewClientFromConfig(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	redisOptions, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.DialTimeout > 0 {
		redisOptions.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		redisOptions.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		redisOptions.WriteTimeout = cfg.WriteTimeout
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	rdb := redis.NewClient(redisOptions)

	client := &Client{
		Client: rdb,
		url:    cfg.URL,
		logger: log.WithComponent("redisx"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client.logger.Info("Redis client connected successfully",
		zap.String("addr", redisOptions.Addr),
		zap.Int("db", redisOptions.DB),
	)

	return client, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := c.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Redis health check failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return err
	}

	c.logger.Debug("Redis health check passed",
		zap.Duration("duration", duration),
	)

	return nil
}

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value any, expiration time.Duration) error {
	start := time.Now()
	err := c.Set(ctx, key, value, expiration).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Failed to set key with expiration",
			zap.String("key", key),
			zap.Duration("expiration", expiration),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Set key with expiration",
		zap.String("key", key),
		zap.Duration("expiration", expiration),
		zap.Duration("duration", duration),
	)

	return nil
}

// GetWithLogging gets a value with logging
func (c *Client) GetWithLogging(ctx context.Context, key string) (string, error) {
	start := time.Now()
	result := c.Get(ctx, key)
	duration := time.Since(start)

	if result.Err() != nil {
		if result.Err() == redis.Nil {
			c.logger.Debug("Key not found",
				zap.String("key", key),
				zap.Duration("duration", duration),
			)
		} else {
			c.logger.Error("Failed to get key",
				zap.String("key", key),
				zap.Duration("duration", duration),
				zap.Error(result.Err()),
			)
		}
		return "", result.Err()
	}

	c.logger.Debug("Got key",
		zap.String("key", key),
		zap.Duration("duration", duration),
	)

	return result.Val(), nil
}

// DelWithLogging deletes a key with logging
func (c *Client) DelWithLogging(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	result := c.Del(ctx, keys...)
	duration := time.Since(start)

	if result.Err() != nil {
		c.logger.Error("Failed to delete keys",
			zap.Strings("keys", keys),
			zap.Duration("duration", duration),
			zap.Error(result.Err()),
		)
		return 0, result.Err()
	}

	c.logger.Debug("Deleted keys",
		zap.Strings("keys", keys),
		zap.Int64("deleted_count", result.Val()),
		zap.Duration("duration", duration),
	)

	return result.Val(), nil
}
