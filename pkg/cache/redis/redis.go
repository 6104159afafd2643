package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ConnectionInfo describes the single connection shared by the settings
// cache and the export status keys.
type ConnectionInfo struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	// PoolSize bounds concurrent commands. Export runs and the settings
	// cache are the only writers, so the pool stays small.
	PoolSize     int
	MinIdleConns int
}

type Client = goredis.Client

const (
	defaultDialTimeout = 5 * time.Second
	defaultTimeout     = 3 * time.Second
	defaultPoolSize    = 10
)

func (i ConnectionInfo) withDefaults() ConnectionInfo {
	if i.DialTimeout <= 0 {
		i.DialTimeout = defaultDialTimeout
	}
	if i.Timeout <= 0 {
		i.Timeout = defaultTimeout
	}
	if i.PoolSize <= 0 {
		i.PoolSize = defaultPoolSize
	}
	return i
}

func NewRedisConnection(info ConnectionInfo) (*Client, error) {
	info = info.withDefaults()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         info.Addr,
		Password:     info.Password,
		DB:           info.DB,
		MaxRetries:   info.MaxRetries,
		DialTimeout:  info.DialTimeout,
		ReadTimeout:  info.Timeout,
		WriteTimeout: info.Timeout,
		PoolSize:     info.PoolSize,
		MinIdleConns: info.MinIdleConns,
	})

	// bound the liveness probe by the dial timeout, not the command timeout
	ctx, cancel := context.WithTimeout(context.Background(), info.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func Close(c *Client) {
	if c == nil {
		return
	}
	_ = c.Close()
}
