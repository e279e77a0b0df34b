package schema

import (
	"strings"
	"testing"
)

func TestConfigTableGeneration(t *testing.T) {
	tb := DefineConfigTable()

	t.Run("MySQL DDL", func(t *testing.T) {
		ddl := tb.BuildMySQL()
		if !strings.Contains(ddl, "`key` VARCHAR(191) PRIMARY KEY") {
			t.Errorf("missing key column: %s", ddl)
		}
		if !strings.Contains(ddl, "MEDIUMTEXT") {
			t.Errorf("missing MEDIUMTEXT: %s", ddl)
		}
	})

	t.Run("SQLite DDL", func(t *testing.T) {
		ddl := tb.BuildSQLite()
		if strings.Contains(ddl, "VARCHAR") || strings.Contains(ddl, "MEDIUMTEXT") {
			t.Errorf("types not converted: %s", ddl)
		}
		if !strings.Contains(ddl, "`key` TEXT PRIMARY KEY") {
			t.Errorf("key column not converted: %s", ddl)
		}
	})

	t.Run("Indexes", func(t *testing.T) {
		if n := len(tb.GetIndexesMySQL()); n != 1 {
			t.Fatalf("expected 1 index, got %d", n)
		}
		for _, idx := range tb.GetIndexesSQLite() {
			if !strings.Contains(idx.SQL, "IF NOT EXISTS") {
				t.Errorf("SQLite index missing IF NOT EXISTS: %s", idx.SQL)
			}
		}
	})
}

func TestMySQLToSQLite(t *testing.T) {
	tests := map[string]string{
		"id INT PRIMARY KEY AUTO_INCREMENT": "id INTEGER PRIMARY KEY AUTOINCREMENT",
		"flag TINYINT NOT NULL DEFAULT 1":   "flag INTEGER NOT NULL DEFAULT 1",
		"n INT NOT NULL":                    "n INTEGER NOT NULL",
		"ratio DOUBLE NOT NULL":             "ratio REAL NOT NULL",
		"name VARCHAR(64) NOT NULL":         "name TEXT NOT NULL",
		"created_at BIGINT NOT NULL":        "created_at BIGINT NOT NULL",
	}
	for in, want := range tests {
		if got := mysqlToSQLite(in); got != want {
			t.Errorf("mysqlToSQLite(%q) = %q, want %q", in, got, want)
		}
	}
}
