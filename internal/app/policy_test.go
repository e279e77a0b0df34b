package app

import (
	"testing"

	"liveconf/internal/model"
)

func TestPolicies(t *testing.T) {
	superuser := &model.User{Username: "admin", IsSuperuser: true}
	staff := &model.User{Username: "alice", Permissions: []string{model.PermChangeConfig}}
	viewer := &model.User{Username: "victor"}

	tests := []struct {
		name   string
		policy Policy
		user   *model.User
		want   bool
	}{
		{"perm/superuser", ChangePermissionPolicy{}, superuser, true},
		{"perm/staff", ChangePermissionPolicy{}, staff, true},
		{"perm/viewer", ChangePermissionPolicy{}, viewer, false},
		{"perm/anonymous", ChangePermissionPolicy{}, nil, false},
		{"superuser/superuser", SuperuserPolicy{}, superuser, true},
		{"superuser/staff", SuperuserPolicy{}, staff, false},
		{"superuser/anonymous", SuperuserPolicy{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CanChange(tt.user); got != tt.want {
				t.Errorf("CanChange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	if _, ok := PolicyFor(true).(SuperuserPolicy); !ok {
		t.Error("PolicyFor(true) should be SuperuserPolicy")
	}
	if _, ok := PolicyFor(false).(ChangePermissionPolicy); !ok {
		t.Error("PolicyFor(false) should be ChangePermissionPolicy")
	}
}

func TestConfigAdmin_NoAddOrDelete(t *testing.T) {
	admin := ConfigAdmin{Policy: ChangePermissionPolicy{}}
	superuser := &model.User{Username: "admin", IsSuperuser: true}
	if admin.HasAddPermission(superuser) || admin.HasDeletePermission(superuser) {
		t.Error("add/delete must always be disabled")
	}
	if !admin.HasChangePermission(superuser) {
		t.Error("superuser should be able to change")
	}
	if (ConfigAdmin{}).HasChangePermission(&model.User{Username: "victor"}) {
		t.Error("zero ConfigAdmin falls back to permission policy")
	}
}
