package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"liveconf/internal/config"
	"liveconf/internal/storage/memory"
	"liveconf/internal/storage/redis"
	sqlstore "liveconf/internal/storage/sql"
)

// NewStore 根据配置创建存储实例（工厂模式）
//
// 四种后端：
//   - memory：进程内存储，重启丢失（开发/演示）
//   - sqlite：单机持久化（默认）
//   - mysql：多实例共享
//   - redis：多实例共享，原生 MGET
func NewStore(cfg *config.EnvConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Print("[WARN] 使用内存存储：配置修改在重启后丢失")
		return memory.New(), nil

	case config.BackendMySQL:
		s, err := createMySQLStore(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("MySQL 初始化失败: %w", err)
		}
		log.Print("[INFO] 使用 MySQL 存储")
		return s, nil

	case config.BackendRedis:
		s, err := redis.New(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("Redis 初始化失败: %w", err)
		}
		log.Printf("[INFO] 使用 Redis 存储（key 前缀: %s）", cfg.RedisPrefix)
		return s, nil

	case config.BackendSQLite, "":
		journalMode, err := validateJournalMode(cfg.JournalMode)
		if err != nil {
			return nil, err
		}
		s, err := createSQLiteStore(cfg.SQLitePath, journalMode)
		if err != nil {
			return nil, fmt.Errorf("SQLite 初始化失败: %w", err)
		}
		log.Printf("[INFO] 使用 SQLite 存储: %s（journal_mode=%s）", cfg.SQLitePath, journalMode)
		return s, nil
	}
	return nil, fmt.Errorf("未知存储后端: %q", cfg.Backend)
}

// createMySQLStore 创建 MySQL 存储实例（Ping + 迁移，均带超时）
func createMySQLStore(dsn string) (*sqlstore.SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MySQL DSN不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开MySQL连接失败: %w", err)
	}

	db.SetMaxOpenConns(config.SQLiteMaxOpenConnsFile * 2)
	db.SetMaxIdleConns(config.SQLiteMaxIdleConnsFile * 2)
	db.SetConnMaxLifetime(config.SQLiteConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), config.StartupDBPingTimeout)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("MySQL连接测试失败（超时%v）: %w", config.StartupDBPingTimeout, err)
	}

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), config.StartupMigrationTimeout)
	defer migrateCancel()
	if err := migrateMySQL(migrateCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("MySQL迁移失败（超时%v）: %w", config.StartupMigrationTimeout, err)
	}

	return sqlstore.NewSQLStore(db, sqlstore.DriverMySQL), nil
}

// CreateSQLiteStore 直接创建 SQLite 存储实例（测试辅助函数，journal_mode=WAL）
func CreateSQLiteStore(path string) (Store, error) {
	s, err := createSQLiteStore(path, "WAL")
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateMySQLStoreForTest 直接创建 MySQL 存储实例（测试辅助函数）
func CreateMySQLStoreForTest(dsn string) (Store, error) {
	s, err := createMySQLStore(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func createSQLiteStore(path, journalMode string) (*sqlstore.SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // G301: 数据目录需要服务进程可写
		return nil, err
	}

	db, err := sql.Open("sqlite", buildSQLiteDSN(path, journalMode))
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}

	// 单连接：由 database/sql 串行化所有事务，避免多连接写入触发 BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(config.SQLiteConnMaxLifetime)

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), config.StartupMigrationTimeout)
	defer migrateCancel()
	if err := migrateSQLite(migrateCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLite迁移失败（超时%v）: %w", config.StartupMigrationTimeout, err)
	}

	return sqlstore.NewSQLStore(db, sqlstore.DriverSQLite), nil
}

// buildSQLiteDSN 构建SQLite DSN
func buildSQLiteDSN(path, journalMode string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(%s)&_time_format=sqlite", path, journalMode)
}

// validateJournalMode 验证SQLITE_JOURNAL_MODE（白名单，防止拼接进DSN的值被注入）
func validateJournalMode(mode string) (string, error) {
	if mode == "" {
		return "WAL", nil
	}
	modeUpper := strings.ToUpper(mode)
	switch modeUpper {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
		return modeUpper, nil
	}
	return "", fmt.Errorf("SQLITE_JOURNAL_MODE 值非法: %q（允许: DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF）", mode)
}
