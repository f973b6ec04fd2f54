package filterable_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/fy0/filterable"
)

func TestRBACAddGetRemove(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "a", filterable.NewPermission("p-a"))
	addRole(t, rbac, "b", filterable.NewPermission("p-b"))

	if err := rbac.Add(filterable.NewRole("a")); !errors.Is(err, filterable.ErrRoleExist) {
		t.Fatalf("expected ErrRoleExist, got %v", err)
	}
	if err := rbac.SetParent("a", "b"); err != nil {
		t.Fatal(err)
	}

	role, parents, err := rbac.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if role.ID != "a" || len(parents) != 1 || parents[0] != "b" {
		t.Fatalf("unexpected role %q with parents %v", role.ID, parents)
	}
	if !rbac.IsGranted("a", filterable.NewPermission("p-b"), nil) {
		t.Fatal("expected inherited permission")
	}

	if err := rbac.Remove("b"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := rbac.Get("b"); !errors.Is(err, filterable.ErrRoleNotExist) {
		t.Fatalf("expected ErrRoleNotExist, got %v", err)
	}
	parents, err = rbac.GetParents("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 0 {
		t.Fatalf("expected parents of a removed role to be dropped, got %v", parents)
	}
	if rbac.IsGranted("a", filterable.NewPermission("p-b"), nil) {
		t.Fatal("permission survived role removal")
	}
	if err := rbac.Remove("b"); !errors.Is(err, filterable.ErrRoleNotExist) {
		t.Fatalf("expected ErrRoleNotExist, got %v", err)
	}
}

func TestRBACParents(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "a")
	addRole(t, rbac, "b")
	addRole(t, rbac, "c")

	if err := rbac.SetParents("a", []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	if err := rbac.SetParents("a", []string{"b", "missing"}); !errors.Is(err, filterable.ErrRoleNotExist) {
		t.Fatalf("expected ErrRoleNotExist, got %v", err)
	}
	if err := rbac.SetParent("missing", "b"); !errors.Is(err, filterable.ErrRoleNotExist) {
		t.Fatalf("expected ErrRoleNotExist, got %v", err)
	}
	if err := rbac.RemoveParent("a", "b"); err != nil {
		t.Fatal(err)
	}

	parents, err := rbac.GetParents("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 || parents[0] != "c" {
		t.Fatalf("unexpected parents: %v", parents)
	}
	if _, err := rbac.GetParents("missing"); !errors.Is(err, filterable.ErrRoleNotExist) {
		t.Fatalf("expected ErrRoleNotExist, got %v", err)
	}
}

func TestRBACIsGrantedSurvivesCircles(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "a", filterable.NewPermission("p-a"))
	addRole(t, rbac, "b", filterable.NewPermission("p-b"))
	if err := rbac.SetParent("a", "b"); err != nil {
		t.Fatal(err)
	}
	if err := rbac.SetParent("b", "a"); err != nil {
		t.Fatal(err)
	}

	if !errors.Is(filterable.InherCircle(rbac), filterable.ErrFoundCircle) {
		t.Fatal("expected a circle")
	}
	if !rbac.IsGranted("b", filterable.NewPermission("p-a"), nil) {
		t.Fatal("expected p-a through the circle")
	}
	if rbac.IsGranted("a", filterable.NewPermission("p-z"), nil) {
		t.Fatal("unexpected grant")
	}
}

func TestRBACAssertion(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "a", filterable.NewPermission("p-a"))

	deny := func(*filterable.RBAC[string], string, filterable.Permission[string]) bool { return false }
	if rbac.IsGranted("a", filterable.NewPermission("p-a"), deny) {
		t.Fatal("assertion was ignored")
	}
	if !filterable.AnyGranted(rbac, []string{"missing", "a"}, filterable.NewPermission("p-a"), nil) {
		t.Fatal("expected AnyGranted")
	}
	if filterable.AllGranted(rbac, []string{"missing", "a"}, filterable.NewPermission("p-a"), nil) {
		t.Fatal("unexpected AllGranted")
	}
}

func TestWalk(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "a")
	addRole(t, rbac, "b")
	if err := rbac.SetParent("a", "b"); err != nil {
		t.Fatal(err)
	}

	var seen []string
	err := filterable.Walk(rbac, func(r filterable.Role[string], parents []string) error {
		seen = append(seen, r.ID)
		if r.ID == "a" && (len(parents) != 1 || parents[0] != "b") {
			t.Fatalf("unexpected parents of a: %v", parents)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(seen)
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("unexpected walk: %v", seen)
	}

	stop := errors.New("stop")
	if err := filterable.Walk(rbac, func(filterable.Role[string], []string) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("expected stop, got %v", err)
	}
}

func TestRoleRevoke(t *testing.T) {
	role := filterable.NewRole("a")
	p := filterable.NewPermission("p-a")
	if err := role.Assign(p); err != nil {
		t.Fatal(err)
	}
	if !role.Permit(p) || len(role.Permissions()) != 1 {
		t.Fatal("expected assigned permission")
	}
	if err := role.Revoke(p); err != nil {
		t.Fatal(err)
	}
	if role.Permit(p) || role.Permit(nil) {
		t.Fatal("unexpected permit")
	}
}
