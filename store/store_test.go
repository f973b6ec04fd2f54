package store_test

import (
	"context"
	"testing"

	"github.com/fy0/filterable/filter"
	"github.com/fy0/filterable/store"
)

func testCatalog() filter.Catalog {
	return filter.Catalog{
		"user": {
			Name:       "user",
			Table:      "users",
			Identifier: "id",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":     {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"name":   {Name: "name", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"email":  {Name: "email", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"age":    {Name: "age", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"active": {Name: "active", Type: filter.FieldTypeBoolean, Filterable: true, Public: true},
				"born":   {Name: "born", Type: filter.FieldTypeDate, Filterable: true, Public: true},
			},
			Associations: map[string]*filter.Association{
				"company": {Name: "company", Target: "company", Kind: filter.ManyToOne, Public: true},
			},
		},
		"company": {
			Name:       "company",
			Table:      "companies",
			Identifier: "id",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":   {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"name": {Name: "name", Type: filter.FieldTypeString, Filterable: true, Public: true},
			},
		},
	}
}

func newEngine(t *testing.T) *filter.Engine {
	t.Helper()
	engine, err := filter.NewEngine(testCatalog())
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func buildQuery(t *testing.T, engine *filter.Engine, raw string, sort string, page, perPage int) *filter.Query {
	t.Helper()
	q := filter.NewQuery("user", "u")
	if raw != "" {
		if _, err := engine.ApplyJSON(q, []byte(raw), filter.LevelValue); err != nil {
			t.Fatal(err)
		}
	}
	if err := engine.Sort(q, filter.ParseSort(sort), filter.LevelValue); err != nil {
		t.Fatal(err)
	}
	if perPage > 0 {
		if err := filter.Paginate(q, page, perPage); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Resolve(); err != nil {
		t.Fatal(err)
	}
	return q
}

func assertSQL(t *testing.T, want, got string) {
	t.Helper()
	if got != want {
		t.Fatalf("unexpected SQL.\nwant: %s\ngot:  %s", want, got)
	}
}

func TestSelectPostgres(t *testing.T) {
	engine := newEngine(t)
	q := buildQuery(t, engine, `{"field":"company.name","operator":"contains","value":"ac"}`, "-name", 2, 10)

	b := store.NewBuilder(testCatalog(), filter.DialectPostgres)
	sb, err := b.Select(q)
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	assertSQL(t, "SELECT u.* FROM users u INNER JOIN companies company ON company.id = u.company_id WHERE (UNACCENT(LOWER(company.name)) LIKE UNACCENT(LOWER($1))) ORDER BY u.name DESC LIMIT 10 OFFSET 10", sql)
	if len(args) != 1 || args[0] != "%ac%" {
		t.Fatalf("unexpected args: %#v", args)
	}

	cb, err := b.Count(q)
	if err != nil {
		t.Fatal(err)
	}
	sql, _, err = cb.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	assertSQL(t, "SELECT COUNT(*) FROM users u INNER JOIN companies company ON company.id = u.company_id WHERE (UNACCENT(LOWER(company.name)) LIKE UNACCENT(LOWER($1)))", sql)
}

func TestSelectSQLite(t *testing.T) {
	engine := newEngine(t)
	q := buildQuery(t, engine, `{"condition":"AND","rules":[{"field":"active","operator":"is_true"},{"field":"age","operator":"in","value":[30,45]}]}`, "", 0, 0)

	sb, err := store.NewBuilder(testCatalog(), filter.DialectSQLite).Select(q, "u.id", "u.name")
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	assertSQL(t, "SELECT u.id, u.name FROM users u WHERE (u.active = 1) AND (u.age IN (?, ?))", sql)
	if len(args) != 2 || args[0] != int64(30) || args[1] != int64(45) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestSelectRejectsPendingMerges(t *testing.T) {
	engine := newEngine(t)
	q := filter.NewQuery("user", "u")
	if _, err := engine.ApplyJSON(q, []byte(`{"field":"age","value":1}`), filter.LevelValue); err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewBuilder(testCatalog(), filter.DialectSQLite).Select(q); err == nil {
		t.Fatal("expected pending merge error")
	}
}

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:", testCatalog())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	stmts := []string{
		`CREATE TABLE companies (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT, age INTEGER, active INTEGER, born TEXT, company_id INTEGER REFERENCES companies(id))`,
		`INSERT INTO companies (id, name) VALUES (1, 'Acme'), (2, 'Globex')`,
		`INSERT INTO users (id, name, email, age, active, born, company_id) VALUES
			(1, 'Ann', 'ann@acme.test', 30, 1, '1994-05-01', 1),
			(2, 'Bob', 'bob@globex.test', 45, 1, '1979-02-11', 2),
			(3, 'Élodie', 'elodie@acme.test', 25, 0, '1999-12-24', 1),
			(4, 'Zoé', 'zoe@example.test', 52, 1, '1971-07-30', NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func ids(t *testing.T, rows []filter.MapRow) []int64 {
	t.Helper()
	out := make([]int64, len(rows))
	for i, row := range rows {
		id, ok := row["id"].(int64)
		if !ok {
			t.Fatalf("unexpected id %#v", row["id"])
		}
		out[i] = id
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSQLiteFind(t *testing.T) {
	s := openTestStore(t)
	engine := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter string
		sort   string
		want   []int64
	}{
		{"association", `{"field":"company.name","value":"Acme"}`, "id", []int64{1, 3}},
		{"accent insensitive", `{"field":"name","operator":"contains","value":"ELO"}`, "id", []int64{3}},
		{"accent in pattern", `{"field":"name","operator":"ends_with","value":"zoe"}`, "id", []int64{4}},
		{"between", `{"field":"age","operator":"between","value":[26,50]}`, "id", []int64{1, 2}},
		{"boolean", `{"field":"active","operator":"is_false"}`, "id", []int64{3}},
		{"date", `{"field":"born","operator":"greater","value":"1990-01-01"}`, "-born", []int64{3, 1}},
		{"or group", `{"condition":"OR","rules":[{"field":"age","operator":"less","value":26},{"field":"company.name","value":"Globex"}]}`, "id", []int64{2, 3}},
		{"missing association", `{"field":"company","operator":"is_null"}`, "id", []int64{4}},
		{"invalid filter selects nothing", `{"field":"nope","value":1}`, "id", []int64{}},
		{"no filter", ``, "-age", []int64{4, 2, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := buildQuery(t, engine, tt.filter, tt.sort, 0, 0)
			rows, err := s.Find(ctx, q)
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(t, rows); !equalIDs(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSQLitePaginateAndCount(t *testing.T) {
	s := openTestStore(t)
	engine := newEngine(t)
	ctx := context.Background()

	q := buildQuery(t, engine, `{"field":"active","operator":"is_true"}`, "-age", 2, 2)
	rows, err := s.Find(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, rows); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected [1], got %v", got)
	}
	if rows[0]["name"] != "Ann" {
		t.Fatalf("unexpected row: %v", rows[0])
	}

	n, err := s.Count(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

func TestSQLiteSearchAndSortByAssociation(t *testing.T) {
	s := openTestStore(t)
	engine := newEngine(t)
	ctx := context.Background()

	q := filter.NewQuery("user", "u")
	if _, err := engine.Search(q, "acme", filter.LevelValue, "email"); err != nil {
		t.Fatal(err)
	}
	if err := engine.Sort(q, filter.ParseSort("company.name,-id"), filter.LevelValue); err != nil {
		t.Fatal(err)
	}
	if err := q.Resolve(); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Find(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, rows); !equalIDs(got, []int64{3, 1}) {
		t.Fatalf("expected [3 1], got %v", got)
	}
}

func TestFindMatchesInMemoryEvaluation(t *testing.T) {
	s := openTestStore(t)
	engine := newEngine(t)
	ctx := context.Background()

	node, err := filter.ParseJSON([]byte(`{"condition":"OR","rules":[{"field":"name","operator":"begins_with","value":"é"},{"field":"age","operator":"greater_or_equal","value":50}]}`), true)
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := engine.Compile(node, filter.NewQuery("user", "u"), filter.LevelValue)
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.Find(ctx, buildQuery(t, engine, "", "id", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	var matched []int64
	for _, row := range all {
		ok, err := compiled.Matches(row)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			matched = append(matched, row["id"].(int64))
		}
	}

	q := filter.NewQuery("user", "u")
	if _, err := engine.ApplyNode(q, node, filter.LevelValue); err != nil {
		t.Fatal(err)
	}
	if err := engine.Sort(q, filter.ParseSort("id"), filter.LevelValue); err != nil {
		t.Fatal(err)
	}
	if err := q.Resolve(); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Find(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(t, rows); !equalIDs(got, matched) || !equalIDs(got, []int64{3, 4}) {
		t.Fatalf("database returned %v, evaluation matched %v", got, matched)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := store.Open(context.Background(), "oracle", "", testCatalog()); err == nil {
		t.Fatal("expected error")
	}
}
