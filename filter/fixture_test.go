package filter_test

import (
	"testing"

	"github.com/fy0/filterable/filter"
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
				"born":   {Name: "born", Column: "born_on", Type: filter.FieldTypeDate, Filterable: true, Public: true},
				"salary": {Name: "salary", Type: filter.FieldTypeFloat, Filterable: true, Public: false},
				"ssn":    {Name: "ssn", Type: filter.FieldTypeString, Filterable: true, Public: false},
				"token":  {Name: "token", Type: filter.FieldTypeGUID, StoredAs: filter.FieldTypeString, Filterable: true, Public: true},
				"notes":  {Name: "notes", Type: filter.FieldTypeText, Filterable: false, Public: true},
				"score": {
					Name: "score", Type: filter.FieldTypeInteger, Filterable: true, Public: true,
					Constraints: []filter.Constraint{{Expr: "value >= 0 && value <= 100", Message: "Score must be between 0 and 100."}},
				},
			},
			Associations: map[string]*filter.Association{
				"company": {Name: "company", Target: "company", Kind: filter.ManyToOne, Public: true},
				"manager": {Name: "manager", Target: "user", Kind: filter.ManyToOne, Public: true},
				"profile": {Name: "profile", Target: "profile", Kind: filter.OneToOne, MappedBy: "user", Public: true},
				"posts":   {Name: "posts", Target: "post", Kind: filter.OneToMany, MappedBy: "author", Public: true},
			},
		},
		"company": {
			Name:       "company",
			Table:      "companies",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":     {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"name":   {Name: "name", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"budget": {Name: "budget", Type: filter.FieldTypeInteger, Filterable: true, Public: false},
			},
			Associations: map[string]*filter.Association{
				"country": {Name: "country", Target: "country", Kind: filter.ManyToOne, Public: true},
			},
		},
		"country": {
			Name:       "country",
			Table:      "countries",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":   {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"code": {Name: "code", Type: filter.FieldTypeString, Filterable: true, Public: true},
			},
		},
		"profile": {
			Name:       "profile",
			Table:      "profiles",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":  {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"bio": {Name: "bio", Type: filter.FieldTypeText, Filterable: true, Public: true},
			},
			Associations: map[string]*filter.Association{
				"user": {Name: "user", Target: "user", Kind: filter.OneToOne, Public: true},
			},
		},
		"post": {
			Name:       "post",
			Table:      "posts",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":    {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"title": {Name: "title", Type: filter.FieldTypeString, Filterable: true, Public: true},
			},
			Associations: map[string]*filter.Association{
				"author": {Name: "author", Target: "user", Kind: filter.ManyToOne, Public: true},
			},
		},
		"product": {
			Name:        "product",
			Table:       "products",
			Filterable:  true,
			Public:      true,
			Translation: "translations",
			Fields: map[string]*filter.Field{
				"id":    {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"sku":   {Name: "sku", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"title": {Name: "title", Type: filter.FieldTypeString, Filterable: true, Public: true, Translatable: true},
			},
			Associations: map[string]*filter.Association{
				"translations": {Name: "translations", Target: "product_translation", Kind: filter.OneToMany, MappedBy: "product", Public: true},
			},
		},
		"product_translation": {
			Name:        "product_translation",
			Table:       "product_translations",
			Filterable:  true,
			Public:      true,
			LocaleField: "locale",
			Fields: map[string]*filter.Field{
				"id":     {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"title":  {Name: "title", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"locale": {Name: "locale", Type: filter.FieldTypeString, Filterable: true, Public: true},
			},
			Associations: map[string]*filter.Association{
				"product": {Name: "product", Target: "product", Kind: filter.ManyToOne, Public: true},
			},
		},
		"archive": {
			Name:       "archive",
			Filterable: false,
			Fields: map[string]*filter.Field{
				"id": {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
			},
		},
	}
}

func newTestEngine(t *testing.T, opts ...filter.EngineOption) *filter.Engine {
	t.Helper()
	engine, err := filter.NewEngine(testCatalog(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func mustParse(t *testing.T, data string, force bool) filter.Node {
	t.Helper()
	node, err := filter.ParseJSON([]byte(data), force)
	if err != nil {
		t.Fatalf("parse %s: %v", data, err)
	}
	return node
}

func compileDQL(t *testing.T, engine *filter.Engine, data string, level filter.Level) (string, *filter.Compiled) {
	t.Helper()
	c, err := engine.Compile(mustParse(t, data, false), filter.NewQuery("user", "u"), level)
	if err != nil {
		t.Fatal(err)
	}
	sql, err := c.DQL()
	if err != nil {
		t.Fatal(err)
	}
	return sql, c
}

func assertSQL(t *testing.T, want, got string) {
	t.Helper()
	if got != want {
		t.Fatalf("unexpected SQL.\nwant: %s\ngot:  %s", want, got)
	}
}
