package config

import "time"

// HTTP服务器配置常量
const (
	// DefaultPort 默认监听端口
	DefaultPort = "8080"

	// DefaultMaxFormBytes 管理表单请求体上限
	DefaultMaxFormBytes = 1 * 1024 * 1024 // 1MB

	// ShutdownTimeout 优雅关闭最长等待时间
	ShutdownTimeout = 10 * time.Second
)

// 存储后端名称
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// 存储配置常量
const (
	// DefaultSQLitePath SQLite 默认路径
	DefaultSQLitePath = "data/liveconf.db"

	// DefaultRedisPrefix Redis key 前缀
	DefaultRedisPrefix = "liveconf:"

	// StartupDBPingTimeout 启动时数据库连通性检查超时
	StartupDBPingTimeout = 5 * time.Second

	// StartupMigrationTimeout 启动时建表超时
	StartupMigrationTimeout = 30 * time.Second

	// BackendOpTimeout 单次后端读写超时
	BackendOpTimeout = 5 * time.Second
)

// SQLite连接池配置常量
const (
	// SQLiteMaxOpenConnsFile 文件模式最大连接数
	SQLiteMaxOpenConnsFile = 5

	// SQLiteMaxIdleConnsFile 文件模式最大空闲连接数
	SQLiteMaxIdleConnsFile = 5

	// SQLiteConnMaxLifetime 连接最大生命周期
	SQLiteConnMaxLifetime = 5 * time.Minute
)

// 会话与登录配置常量
const (
	// TokenRandomBytes Token随机字节数（生成64字符十六进制）
	TokenRandomBytes = 32

	// DefaultSessionHours 会话有效期（小时）
	DefaultSessionHours = 24

	// TokenCleanupInterval 过期会话清理间隔
	TokenCleanupInterval = 1 * time.Hour

	// LoginMaxAttempts 单IP最大连续失败次数
	LoginMaxAttempts = 5

	// LoginLockoutDuration 超限后的锁定时长
	LoginLockoutDuration = 15 * time.Minute

	// LoginResetInterval 失败计数重置间隔
	LoginResetInterval = 1 * time.Hour
)

// 日志配置常量
const (
	// LogMaxMessageLength 单条日志参数最大长度
	LogMaxMessageLength = 2000
)
