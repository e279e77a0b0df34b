// Package redis 基于 Redis 的配置存储：每个配置项一个 key，值为编码后的信封。
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liveconf/internal/storage/codec"
	"liveconf/internal/util"
)

// Store Redis 存储实现
type Store struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// New 解析 URL 并创建客户端，Ping 失败时返回错误
func New(redisURL, prefix string) (*Store, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.ConnMaxLifetime = 5 * time.Minute
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, prefix), nil
}

// NewWithClient 使用已有客户端创建存储
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix, timeout: 2 * time.Second}
}

func (s *Store) key(name string) string { return s.prefix + name }

func (s *Store) fullKeys(names []string) []string {
	full := make([]string, len(names))
	for i, n := range names {
		full[i] = s.key(n)
	}
	return full
}

// Get 读取单个配置值
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	v, err := codec.Decode(data)
	if err != nil {
		util.SafePrintf("[WARN] 配置 %s 存储值无法解码，按未设置处理: %v", key, err)
		return nil, false, nil
	}
	return v, true, nil
}

// MGet 单次 MGET 批量读取，只返回存在的键
func (s *Store) MGet(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vals, err := s.client.MGet(ctx, s.fullKeys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	decodeMGet(keys, vals, out)
	return out, nil
}

// decodeMGet 按位置把 MGET 结果映射回配置名
// nil 表示不存在；无法解码的值记录告警后跳过
func decodeMGet(keys []string, vals []any, out map[string]any) {
	for i, raw := range vals {
		if i >= len(keys) {
			break
		}
		str, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := codec.Decode(str)
		if err != nil {
			util.SafePrintf("[WARN] 配置 %s 存储值无法解码，按未设置处理: %v", keys[i], err)
			continue
		}
		out[keys[i]] = v
	}
}

// Set 写入单个配置值（不过期）
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close 关闭客户端
func (s *Store) Close() error {
	return s.client.Close()
}
