package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fy0/filterable/catalog"
	"github.com/fy0/filterable/filter"
)

const testMapping = `
entities:
  user:
    table: users
    fields:
      id:    {type: integer}
      name:  {type: string}
      email: {type: string, public: false}
      notes: {type: text, filterable: false}
      score:
        type: integer
        constraints:
          - expr: value >= 0
            message: Score must be positive.
      token: {type: guid, stored_as: string}
    associations:
      company: {target: company, kind: many_to_one, join_column: company_ref}
  company:
    table: companies
    public: false
    fields:
      id:   {type: integer}
      name: {type: string, operators: [equal, contains]}
    associations:
      users: {target: user, kind: one_to_many, mapped_by: company, public: false}
`

func TestLoad(t *testing.T) {
	c, err := catalog.Load(strings.NewReader(testMapping))
	if err != nil {
		t.Fatal(err)
	}

	user, err := c.Metadata("user")
	if err != nil {
		t.Fatal(err)
	}
	if user.Name != "user" || user.Table != "users" || user.Identifier != "id" || !user.Filterable || !user.Public {
		t.Fatalf("unexpected user metadata: %#v", user)
	}
	email, _ := user.Field("email")
	notes, _ := user.Field("notes")
	if email.Public || !email.Filterable || notes.Filterable {
		t.Fatalf("unexpected flags: email=%#v notes=%#v", email, notes)
	}
	score, _ := user.Field("score")
	if len(score.Constraints) != 1 || score.Constraints[0].Message != "Score must be positive." {
		t.Fatalf("unexpected constraints: %#v", score.Constraints)
	}
	token, _ := user.Field("token")
	if token.Type != filter.FieldTypeGUID || token.StoredAs != filter.FieldTypeString {
		t.Fatalf("unexpected token: %#v", token)
	}
	company, _ := user.Association("company")
	if company.Kind != filter.ManyToOne || company.JoinColumn != "company_ref" || !company.Public {
		t.Fatalf("unexpected association: %#v", company)
	}

	cm, err := c.Metadata("company")
	if err != nil {
		t.Fatal(err)
	}
	name, _ := cm.Field("name")
	if cm.Public || len(name.Operators) != 2 || name.Operators[1] != filter.OpContains {
		t.Fatalf("unexpected company metadata: %#v", cm)
	}
	if _, err := c.Metadata("missing"); !errors.Is(err, filter.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestLoadDrivesEngine(t *testing.T) {
	c, err := catalog.Load(strings.NewReader(testMapping))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := filter.NewEngine(c)
	if err != nil {
		t.Fatal(err)
	}
	node, err := filter.ParseJSON([]byte(`{"field":"company.name","operator":"contains","value":"acme"}`), false)
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := engine.Compile(node, filter.NewQuery("user", "u"), filter.LevelValue)
	if err != nil {
		t.Fatal(err)
	}
	if len(compiled.Joins) != 1 {
		t.Fatalf("expected one join, got %#v", compiled.Joins)
	}
	on, err := filter.Render(compiled.Joins[0].Condition(), compiled.Params, filter.RenderOptions{Dialect: filter.DialectDQL})
	if err != nil {
		t.Fatal(err)
	}
	want := "company.id = u.company_ref"
	if on.SQL != want {
		t.Fatalf("unexpected SQL.\nwant: %s\ngot:  %s", want, on.SQL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		mapping string
		want    string
	}{
		{"unknown type", "entities:\n  a:\n    fields:\n      x: {type: blob}\n", `field "x": unknown type "blob"`},
		{"unknown operator", "entities:\n  a:\n    fields:\n      x: {type: string, operators: [like]}\n", `unknown operator "like"`},
		{"unknown target", "entities:\n  a:\n    associations:\n      b: {target: b, kind: many_to_one}\n", `unknown target "b"`},
		{"unknown kind", "entities:\n  a:\n    associations:\n      self: {target: a, kind: sideways}\n", `unknown kind "sideways"`},
		{"bad mapped_by", "entities:\n  a:\n    associations:\n      self: {target: a, kind: one_to_many, mapped_by: owner}\n", `"owner" is not an association of "a"`},
		{"bad identifier", "entities:\n  a:\n    identifier: code\n    fields:\n      id: {type: integer}\n", `identifier "code" is not a field`},
		{"bad constraint", "entities:\n  a:\n    fields:\n      x: {type: integer, constraints: [{expr: 'value +'}]}\n", `field "x"`},
		{"translation", "entities:\n  a:\n    translation: t\n    fields:\n      x: {type: string, translatable: true}\n", `translation association "t" not found`},
		{"unknown key", "entities:\n  a:\n    tabel: x\n", `field tabel not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Load(strings.NewReader(tt.mapping))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	c, err := catalog.Load(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(c) != 0 {
		t.Fatalf("expected empty catalog, got %v", c)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileOracleReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, testMapping)

	o, err := catalog.NewFileOracle(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := o.Entities(); len(got) != 2 || got[0] != "company" || got[1] != "user" {
		t.Fatalf("unexpected entities: %v", got)
	}
	first := o.Loaded()

	writeFile(t, path, "entities:\n  tag:\n    fields:\n      id: {type: integer}\n")
	if err := o.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Metadata("tag"); err != nil {
		t.Fatal(err)
	}
	if o.Loaded().Before(first) {
		t.Fatal("load time went backwards")
	}

	for _, broken := range []string{"entities: [", ""} {
		writeFile(t, path, broken)
		if err := o.Reload(); err == nil {
			t.Fatalf("expected reload error for %q", broken)
		}
	}
	if _, err := o.Metadata("tag"); err != nil {
		t.Fatalf("failed reload dropped the catalog: %v", err)
	}

	if _, err := catalog.NewFileOracle(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestFileOracleWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, testMapping)

	o, err := catalog.NewFileOracle(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	reloaded := make(chan error, 16)
	o.OnReload = func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Watch(ctx) }()

	updated := "entities:\n  tag:\n    fields:\n      id: {type: integer}\n"
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-tick.C:
			// The watcher may not be registered yet; keep touching the file.
			writeFile(t, path, updated)
		case err := <-reloaded:
			if err == nil {
				if _, err := o.Metadata("tag"); err == nil {
					break wait
				}
			}
		case <-deadline:
			t.Fatal("catalog was not reloaded")
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
