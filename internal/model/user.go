package model

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// PermChangeConfig 修改在线配置所需的权限
const PermChangeConfig = "liveconf.change_config"

// 用户角色
const (
	RoleSuperuser = "superuser"
	RoleStaff     = "staff"
	RoleViewer    = "viewer"
)

// User 管理后台用户
type User struct {
	Username     string   `json:"username"`
	IsSuperuser  bool     `json:"is_superuser"`
	Permissions  []string `json:"permissions,omitempty"`
	PasswordHash []byte   `json:"-"` // bcrypt哈希
}

// HasPerm 判断用户是否拥有指定权限（超级用户拥有全部权限）
func (u *User) HasPerm(perm string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	return slices.Contains(u.Permissions, perm)
}

// PermissionsForRole 角色对应的权限集合
func PermissionsForRole(role string) (superuser bool, perms []string, ok bool) {
	switch role {
	case RoleSuperuser:
		return true, nil, true
	case RoleStaff:
		return false, []string{PermChangeConfig}, true
	case RoleViewer:
		return false, nil, true
	default:
		return false, nil, false
	}
}

// HashToken 计算令牌的SHA256哈希值
// 会话表只保存哈希，不保存明文
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
