package db

import (
	"context"
	"crypto/tls"
	"errors"

	"plumbing_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotConfigured is returned when REDIS_URL is empty.
var ErrRedisNotConfigured = errors.New("redis url not configured")

// RedisOptions parses a redis:// or rediss:// URL. tlsInsecure skips
// certificate verification, forcing TLS on when the URL did not ask for it.
func RedisOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, cfg config.SchedulerConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, ErrRedisNotConfigured
	}
	opt, err := RedisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
