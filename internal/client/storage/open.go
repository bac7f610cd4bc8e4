package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atinyakov/devtrack/internal/config"
	"github.com/atinyakov/devtrack/internal/db"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the slot backend selected by opts.Store. The returned
// closer releases the underlying database or connection pool.
func Open(ctx context.Context, opts *config.Options) (Slots, io.Closer, error) {
	switch opts.Store {
	case config.StoreFile, "":
		return NewFileSlots(opts.StatePath), nopCloser{}, nil

	case config.StoreSQLite:
		sqlDB, err := db.InitSQLite(opts.StatePath)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLSlots(sqlDB), sqlDB, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedisSlots(client), client, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", opts.Store)
}
