// Package storage 配置值的后端存储。
package storage

import (
	"context"

	"liveconf/internal/storage/memory"
	"liveconf/internal/storage/redis"
	sqlstore "liveconf/internal/storage/sql"
)

// Store 后端存储契约：按配置项名称读写；不存在的键表示"使用默认值"
type Store interface {
	Get(ctx context.Context, key string) (any, bool, error)
	MGet(ctx context.Context, keys []string) (map[string]any, error)
	Set(ctx context.Context, key string, value any) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlstore.SQLStore)(nil)
	_ Store = (*redis.Store)(nil)
)
