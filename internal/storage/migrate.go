package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"liveconf/internal/storage/schema"
)

// Dialect 数据库方言
type Dialect int

// Dialect 数据库方言常量
const (
	// DialectSQLite SQLite数据库方言
	DialectSQLite Dialect = iota
	// DialectMySQL MySQL数据库方言
	DialectMySQL
)

// schemaVersion 当前表结构版本（记录在 schema_migrations）
const schemaVersion = "v1_liveconf_config"

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, DialectSQLite)
}

func migrateMySQL(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, DialectMySQL)
}

// migrate 统一迁移逻辑（幂等）
func migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	tables := []func() *schema.TableBuilder{
		schema.DefineSchemaMigrationsTable, // 迁移版本表必须最先创建
		schema.DefineConfigTable,
	}

	for _, defineTable := range tables {
		tb := defineTable()
		if _, err := db.ExecContext(ctx, buildDDL(tb, dialect)); err != nil {
			return fmt.Errorf("create %s table: %w", tb.Name(), err)
		}
		for _, idx := range buildIndexes(tb, dialect) {
			if err := createIndex(ctx, db, idx, dialect); err != nil {
				return err
			}
		}
	}

	if isMigrationApplied(ctx, db, schemaVersion) {
		return nil
	}
	if err := recordMigration(ctx, db, schemaVersion, dialect); err != nil {
		return err
	}
	log.Printf("[INFO] 表结构已初始化: %s", schemaVersion)
	return nil
}

func buildDDL(tb *schema.TableBuilder, dialect Dialect) string {
	if dialect == DialectMySQL {
		return tb.BuildMySQL()
	}
	return tb.BuildSQLite()
}

func buildIndexes(tb *schema.TableBuilder, dialect Dialect) []schema.IndexDef {
	if dialect == DialectMySQL {
		return tb.GetIndexesMySQL()
	}
	return tb.GetIndexesSQLite()
}

func createIndex(ctx context.Context, db *sql.DB, idx schema.IndexDef, dialect Dialect) error {
	_, err := db.ExecContext(ctx, idx.SQL)
	if err == nil {
		return nil
	}
	// MySQL不支持CREATE INDEX IF NOT EXISTS，忽略重复索引错误
	if dialect == DialectMySQL && strings.Contains(err.Error(), "Duplicate key name") {
		return nil
	}
	return fmt.Errorf("create index %s: %w", idx.Name, err)
}

// isMigrationApplied 表不存在时视为未执行
func isMigrationApplied(ctx context.Context, db *sql.DB, version string) bool {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
	).Scan(&count)
	return err == nil && count > 0
}

// recordMigration 记录迁移已执行
func recordMigration(ctx context.Context, db *sql.DB, version string, dialect Dialect) error {
	insertSQL := `INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, unixepoch())`
	if dialect == DialectMySQL {
		insertSQL = `INSERT IGNORE INTO schema_migrations (version, applied_at) VALUES (?, UNIX_TIMESTAMP())`
	}
	if _, err := db.ExecContext(ctx, insertSQL, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return nil
}
