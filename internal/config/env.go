package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// UserSpec 从环境变量解析出的管理员账号（明文密码仅在启动时存在）
type UserSpec struct {
	Username string
	Password string
	Role     string
}

// EnvConfig 统一环境变量配置结构
type EnvConfig struct {
	// 服务配置
	Port    string
	GinMode string

	// 认证配置
	Password      string     // admin 超级用户密码
	Users         []UserSpec // 额外账号
	SuperuserOnly bool       // 仅超级用户可修改配置
	SessionHours  int

	// schema 配置
	SchemaPath string

	// 存储配置
	Backend     string
	SQLitePath  string
	JournalMode string
	MySQLDSN    string
	RedisURL    string
	RedisPrefix string
}

// LoadFromEnv 从环境变量加载配置并验证
func LoadFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}

	// 服务配置
	cfg.Port = getEnvOrDefault("PORT", DefaultPort)
	cfg.GinMode = os.Getenv("GIN_MODE")

	// 认证配置
	cfg.Password = os.Getenv("LIVECONF_PASS")
	if cfg.Password == "" {
		return nil, fmt.Errorf("LIVECONF_PASS 环境变量未设置（必须配置管理员密码）")
	}
	users, err := parseUsers(os.Getenv("LIVECONF_USERS"))
	if err != nil {
		return nil, err
	}
	cfg.Users = users
	cfg.SuperuserOnly = getBoolEnv("LIVECONF_SUPERUSER_ONLY", false)
	cfg.SessionHours = getIntEnv("LIVECONF_SESSION_HOURS", DefaultSessionHours)

	cfg.SchemaPath = os.Getenv("LIVECONF_SCHEMA")

	// 存储配置
	cfg.SQLitePath = getEnvOrDefault("SQLITE_PATH", DefaultSQLitePath)
	cfg.JournalMode = getEnvOrDefault("SQLITE_JOURNAL_MODE", "WAL")
	cfg.MySQLDSN = os.Getenv("LIVECONF_MYSQL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisPrefix = getEnvOrDefault("LIVECONF_REDIS_PREFIX", DefaultRedisPrefix)
	cfg.Backend = strings.ToLower(os.Getenv("LIVECONF_BACKEND"))
	if cfg.Backend == "" {
		cfg.Backend = inferBackend(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// inferBackend 未显式指定后端时，按已配置的连接串推断
func inferBackend(cfg *EnvConfig) string {
	switch {
	case cfg.MySQLDSN != "":
		return BackendMySQL
	case cfg.RedisURL != "":
		return BackendRedis
	default:
		return BackendSQLite
	}
}

// Validate 验证配置合法性
func (c *EnvConfig) Validate() error {
	portNum, err := strconv.Atoi(strings.TrimPrefix(c.Port, ":"))
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("无效端口号: %s", c.Port)
	}

	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("LIVECONF_BACKEND=mysql 需要设置 LIVECONF_MYSQL")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("LIVECONF_BACKEND=redis 需要设置 REDIS_URL")
		}
	default:
		return fmt.Errorf("未知存储后端: %q（可选 memory/sqlite/mysql/redis）", c.Backend)
	}

	if c.SessionHours < 1 || c.SessionHours > 24*30 {
		return fmt.Errorf("LIVECONF_SESSION_HOURS 超出合理范围 [1, 720]: %d", c.SessionHours)
	}

	return nil
}

// ListenAddr 返回 gin 监听地址
func (c *EnvConfig) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// parseUsers 解析 LIVECONF_USERS：name:password[:role]，逗号分隔，role 默认 staff
func parseUsers(raw string) ([]UserSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var users []UserSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("LIVECONF_USERS 条目格式错误（应为 name:password[:role]）: %q", parts[0])
		}
		u := UserSpec{Username: parts[0], Password: parts[1], Role: "staff"}
		if len(parts) == 3 && parts[2] != "" {
			u.Role = strings.ToLower(parts[2])
		}
		switch u.Role {
		case "superuser", "staff", "viewer":
		default:
			return nil, fmt.Errorf("LIVECONF_USERS 用户 %s 的角色无效: %q", u.Username, u.Role)
		}
		users = append(users, u)
	}
	return users, nil
}

// 辅助函数：获取环境变量或默认值
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// 辅助函数：获取整数环境变量
func getIntEnv(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

// 辅助函数：获取布尔环境变量
func getBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "1" || strings.EqualFold(val, "true") {
		return true
	}
	if val == "0" || strings.EqualFold(val, "false") {
		return false
	}
	return defaultValue
}
