// Package memory 进程内配置存储（开发与测试用，重启后丢失）。
package memory

import (
	"context"
	"sync"
)

// Store 基于 map 的存储实现
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New 创建空的内存存储
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Get 读取单个值
func (s *Store) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// MGet 批量读取，只返回存在的键
func (s *Store) MGet(_ context.Context, keys []string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Set 写入单个值
func (s *Store) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Close 无资源需要释放
func (s *Store) Close() error { return nil }
