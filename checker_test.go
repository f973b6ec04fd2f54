package filterable_test

import (
	"testing"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
)

func TestFieldPermissionMatch(t *testing.T) {
	tests := []struct {
		pattern string
		ref     filter.Ref
		want    bool
	}{
		{"user.email", filter.Ref{Entity: "user", Name: "email"}, true},
		{"read:user.email", filter.Ref{Entity: "user", Name: "email"}, true},
		{"user.*", filter.Ref{Entity: "user", Name: "company", Kind: filter.RefAssociation}, true},
		{"*.name", filter.Ref{Entity: "company", Name: "name"}, true},
		{"*", filter.Ref{Entity: "company", Name: "name"}, true},
		{"user.email", filter.Ref{Entity: "user", Name: "name"}, false},
		{"write:user.*", filter.Ref{Entity: "user", Name: "name"}, false},
		{"user.[", filter.Ref{Entity: "user", Name: "name"}, false},
	}
	for _, tt := range tests {
		p := filterable.NewFieldPermission(tt.pattern)
		got := p.Match(filterable.NewPermission(filterable.FieldPermissionID(filter.ActionRead, tt.ref)))
		if got != tt.want {
			t.Fatalf("%s on %s: expected %v, got %v", tt.pattern, tt.ref, tt.want, got)
		}
	}
}

func TestCheckerGrantsThroughRoles(t *testing.T) {
	rbac := filterable.New[string]()
	addRole(t, rbac, "viewer", filterable.NewFieldPermission("user.name"))
	addRole(t, rbac, "hr", filterable.NewFieldPermission("user.*"), filterable.NewPermission("read:company.name"))
	addRole(t, rbac, "manager")
	if err := rbac.SetParent("manager", "hr"); err != nil {
		t.Fatal(err)
	}

	name := filter.Ref{Entity: "user", Name: "name", Kind: filter.RefField}
	salary := filter.Ref{Entity: "user", Name: "salary", Kind: filter.RefField}
	company := filter.Ref{Entity: "company", Name: "name", Kind: filter.RefField}

	viewer := filterable.NewChecker(rbac, "viewer")
	if !viewer.IsGranted(filter.ActionRead, name) || viewer.IsGranted(filter.ActionRead, salary) {
		t.Fatal("unexpected viewer grants")
	}
	manager := filterable.NewChecker(rbac, "viewer", "manager")
	if !manager.IsGranted(filter.ActionRead, salary) || !manager.IsGranted(filter.ActionRead, company) {
		t.Fatal("expected inherited grants")
	}
	deny := manager.WithAssertion(func(*filterable.RBAC[string], string, filterable.Permission[string]) bool { return false })
	if deny.IsGranted(filter.ActionRead, name) {
		t.Fatal("assertion was ignored")
	}
	if (*filterable.Checker)(nil).IsGranted(filter.ActionRead, name) {
		t.Fatal("nil checker granted access")
	}
}

func TestCheckerElidesUnauthorizedFields(t *testing.T) {
	catalog := filter.Catalog{
		"user": {
			Name:       "user",
			Identifier: "id",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":     {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"name":   {Name: "name", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"salary": {Name: "salary", Type: filter.FieldTypeFloat, Filterable: true, Public: true},
			},
		},
	}
	rbac := filterable.New[string]()
	addRole(t, rbac, "viewer", filterable.NewFieldPermission("user.name"))
	engine, err := filter.NewEngine(catalog, filter.WithAuthorizationChecker(filterable.NewChecker(rbac, "viewer")))
	if err != nil {
		t.Fatal(err)
	}

	q := filter.NewQuery("user", "u")
	res, err := engine.ApplyJSON(q, []byte(`{"condition":"AND","rules":[{"field":"name","value":"ann"},{"field":"salary","operator":"greater","value":1000}]}`), filter.LevelAll)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res.Errors())
	}
	if err := q.Resolve(); err != nil {
		t.Fatal(err)
	}
	stmt, err := filter.Render(q.Where, q.Params, filter.RenderOptions{Dialect: filter.DialectDQL})
	if err != nil {
		t.Fatal(err)
	}
	want := `(u.name = :p1)`
	if stmt.SQL != want {
		t.Fatalf("unexpected SQL.\nwant: %s\ngot:  %s", want, stmt.SQL)
	}
}
