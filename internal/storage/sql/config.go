package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"liveconf/internal/storage/codec"
	"liveconf/internal/storage/schema"
	"liveconf/internal/util"
)

// mgetChunkSize IN 查询单批参数上限（低于SQLite默认的999变量限制）
const mgetChunkSize = 500

// Get 读取单个配置值；无法解码的存储值记录告警后按不存在处理
func (s *SQLStore) Get(ctx context.Context, key string) (any, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT value FROM "+schema.ConfigTable+" WHERE `key` = ?", key)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query config %s: %w", key, err)
	}
	v, err := codec.Decode(raw)
	if err != nil {
		util.SafePrintf("[WARN] 配置 %s 存储值无法解码，按未设置处理: %v", key, err)
		return nil, false, nil
	}
	return v, true, nil
}

// MGet 批量读取配置值（一次 IN 查询/批），只返回存在且可解码的键
func (s *SQLStore) MGet(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for start := 0; start < len(keys); start += mgetChunkSize {
		end := min(start+mgetChunkSize, len(keys))
		if err := s.mgetChunk(ctx, keys[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) mgetChunk(ctx context.Context, keys []string, out map[string]any) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT `key`, value FROM "+schema.ConfigTable+" WHERE `key` IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("query configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("scan config: %w", err)
		}
		v, err := codec.Decode(raw)
		if err != nil {
			util.SafePrintf("[WARN] 配置 %s 存储值无法解码，按未设置处理: %v", key, err)
			continue
		}
		out[key] = v
	}
	return rows.Err()
}

// Set 写入单个配置值（upsert，SQLite BUSY 时重试）
func (s *SQLStore) Set(ctx context.Context, key string, value any) error {
	raw, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	query := "INSERT INTO " + schema.ConfigTable + " (`key`, value, updated_at) VALUES (?, ?, ?) " +
		"ON CONFLICT(`key`) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"
	if s.IsMySQL() {
		query = "INSERT INTO " + schema.ConfigTable + " (`key`, value, updated_at) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)"
	}

	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, key, raw, time.Now().Unix()); err != nil {
			return fmt.Errorf("upsert config %s: %w", key, err)
		}
		return nil
	})
}
