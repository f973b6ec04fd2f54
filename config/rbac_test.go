package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/config"
	"github.com/fy0/filterable/filter"
)

func TestRBACBuild(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
rbac:
  roles:
    reader:
      fields: ["post.*"]
      scopes:
        list:post:
          field: visibility
          value: public
    author:
      parents: [reader]
      scopes:
        list:post:
          field: owner_id
          value: "{{ user_id }}"
    admin:
      fields: ["*"]
      permissions: ["list:post"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.RBAC.Enabled() || cfg.RBAC.UserHeader != "x-user" {
		t.Fatalf("unexpected rbac config: %#v", cfg.RBAC)
	}
	rbac, err := cfg.RBAC.Build()
	if err != nil {
		t.Fatal(err)
	}

	owner := filter.Ref{Entity: "post", Name: "owner_id", Kind: filter.RefField}
	if !filterable.NewChecker(rbac, "author").IsGranted(filter.ActionRead, owner) {
		t.Fatal("expected author to inherit post fields")
	}
	if filterable.NewChecker(rbac, "author").IsGranted(filter.ActionRead, filter.Ref{Entity: "user", Name: "email"}) {
		t.Fatal("unexpected grant")
	}

	perms := []filterable.Permission[string]{filterable.NewPermission("list:post")}
	scope, err := filterable.BuildScope(rbac, []string{"author"}, perms, map[string]any{"user_id": 7})
	if err != nil {
		t.Fatal(err)
	}
	if scope.Denied || scope.Node == nil {
		t.Fatalf("expected a restricting scope, got %#v", scope)
	}
	scope, err = filterable.BuildScope(rbac, []string{"admin"}, perms, nil)
	if err != nil {
		t.Fatal(err)
	}
	if scope.Denied || scope.Node != nil {
		t.Fatalf("expected admin to be unrestricted, got %#v", scope)
	}
}

func TestRBACBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		rbac config.RBACConfig
		want error
	}{
		{
			name: "unknown parent",
			rbac: config.RBACConfig{Roles: map[string]config.RoleConfig{
				"a": {Parents: []string{"missing"}},
			}},
			want: filterable.ErrRoleNotExist,
		},
		{
			name: "circle",
			rbac: config.RBACConfig{Roles: map[string]config.RoleConfig{
				"a": {Parents: []string{"b"}},
				"b": {Parents: []string{"a"}},
			}},
			want: filterable.ErrFoundCircle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.rbac.Build(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	_, err := config.Parse(strings.NewReader("rbac: {roles: {a: {parents: [a]}}}"))
	if err == nil || !strings.Contains(err.Error(), "invalid rbac") {
		t.Fatalf("expected invalid rbac error, got %v", err)
	}
}
