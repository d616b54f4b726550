package config

import (
    "context"
    "crypto/tls"
    "os"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance shared by the rate limiter, the
// activation code store and the profile cache.
type RedisConfig struct {
    Addr         string
    Password     string
    DB           int
    TLS          bool
    DialTimeout  time.Duration
    ReadTimeout  time.Duration
    WriteTimeout time.Duration
}

// LoadRedisConfig reads REDIS_HOST+REDIS_PORT, falling back to REDIS_ADDR
// and then localhost:6379.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if h, p := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); h != "" && p != "" {
        addr = h + ":" + p
    }
    return RedisConfig{
        Addr:         addr,
        Password:     os.Getenv("REDIS_PASSWORD"),
        DB:           envInt("REDIS_DB", 0),
        TLS:          envBool("REDIS_TLS", false),
        DialTimeout:  envDur("REDIS_DIAL_TIMEOUT", 2*time.Second),
        ReadTimeout:  envDur("REDIS_READ_TIMEOUT", time.Second),
        WriteTimeout: envDur("REDIS_WRITE_TIMEOUT", time.Second),
    }
}

// Options converts the config to go-redis options.
func (c RedisConfig) Options() *redis.Options {
    o := &redis.Options{
        Addr:         c.Addr,
        Password:     c.Password,
        DB:           c.DB,
        DialTimeout:  c.DialTimeout,
        ReadTimeout:  c.ReadTimeout,
        WriteTimeout: c.WriteTimeout,
    }
    if c.TLS {
        o.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: strings.Split(c.Addr, ":")[0]}
    }
    return o
}

// NewRedisClient connects with LoadRedisConfig and pings once.  It returns
// nil when Redis is unreachable: the limiter then admits everything, the
// profile cache is bypassed and activation codes cannot be issued.
func NewRedisClient() *redis.Client {
    client := redis.NewClient(LoadRedisConfig().Options())
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
