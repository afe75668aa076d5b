package config

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server shared by the read-through cache
// and the token bucket.
//
//	REDIS_ADDR      host:port, overridden by REDIS_HOST + REDIS_PORT
//	REDIS_PASSWORD  optional
//	REDIS_DB        database number (0)
//	REDIS_TLS       TLS 1.2+ when true
//	REDIS_TIMEOUT   startup ping timeout (2s)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
}

// LoadRedisConfig reads RedisConfig from the environment.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	return RedisConfig{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
		Timeout:  envDur("REDIS_TIMEOUT", 2*time.Second),
	}
}

func (c RedisConfig) options() *redis.Options {
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects with LoadRedisConfig. It returns nil when the
// server does not answer a ping, and callers then run without caching
// and with in-process rate limits.
func NewRedisClient() *redis.Client {
	cfg := LoadRedisConfig()
	client := redis.NewClient(cfg.options())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
