package app

import "liveconf/internal/model"

// Policy 决定用户能否修改在线配置
type Policy interface {
	CanChange(user *model.User) bool
}

// ChangePermissionPolicy 超级用户或持有 liveconf.change_config 权限的用户可修改
type ChangePermissionPolicy struct{}

// CanChange 实现 Policy
func (ChangePermissionPolicy) CanChange(user *model.User) bool {
	return user.HasPerm(model.PermChangeConfig)
}

// SuperuserPolicy 仅超级用户可修改
type SuperuserPolicy struct{}

// CanChange 实现 Policy
func (SuperuserPolicy) CanChange(user *model.User) bool {
	return user != nil && user.IsSuperuser
}

// PolicyFor 按 LIVECONF_SUPERUSER_ONLY 选择策略
func PolicyFor(superuserOnly bool) Policy {
	if superuserOnly {
		return SuperuserPolicy{}
	}
	return ChangePermissionPolicy{}
}

// ConfigAdmin 配置管理页的权限集合；配置项由 schema 决定，不支持新增或删除
type ConfigAdmin struct {
	Policy Policy
}

// HasChangePermission 是否可查看并修改
func (a ConfigAdmin) HasChangePermission(user *model.User) bool {
	if a.Policy == nil {
		return ChangePermissionPolicy{}.CanChange(user)
	}
	return a.Policy.CanChange(user)
}

// HasAddPermission 始终为 false
func (ConfigAdmin) HasAddPermission(*model.User) bool { return false }

// HasDeletePermission 始终为 false
func (ConfigAdmin) HasDeletePermission(*model.User) bool { return false }
