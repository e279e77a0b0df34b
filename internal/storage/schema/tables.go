package schema

// ConfigTable 配置值表名
const ConfigTable = "liveconf_config"

// DefineSchemaMigrationsTable 定义schema_migrations表结构（迁移版本记录）
func DefineSchemaMigrationsTable() *TableBuilder {
	return NewTable("schema_migrations").
		Column("version VARCHAR(64) PRIMARY KEY").
		Column("applied_at BIGINT NOT NULL")
}

// DefineConfigTable 定义配置值表结构：每个配置项至多一行，值为编码后的信封
func DefineConfigTable() *TableBuilder {
	return NewTable(ConfigTable).
		Column("`key` VARCHAR(191) PRIMARY KEY").
		Column("value MEDIUMTEXT NOT NULL").
		Column("updated_at BIGINT NOT NULL").
		Index("idx_liveconf_config_updated", "updated_at")
}
