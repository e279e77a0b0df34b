package sql

import (
	"database/sql"
	"sync"
)

// 驱动名称
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// SQLStore 通用SQL存储实现
// 支持 SQLite 和 MySQL，两者仅在 upsert 语法上有差异
type SQLStore struct {
	db     *sql.DB
	driver string

	closeOnce sync.Once
	closeErr  error
}

// NewSQLStore 创建通用SQL存储实例
// db: 数据库连接（由调用方初始化并完成迁移）
// driver: DriverSQLite 或 DriverMySQL
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// DB 返回底层连接（迁移与测试使用）
func (s *SQLStore) DB() *sql.DB { return s.db }

// IsMySQL 是否为MySQL方言
func (s *SQLStore) IsMySQL() bool { return s.driver == DriverMySQL }

// Close 关闭数据库连接（幂等）
func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
