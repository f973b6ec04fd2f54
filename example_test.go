package filterable_test

import (
	"fmt"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
)

/*
Suppose:

The editor inherits from the author.
The author inherits from the reader and the commenter.
The reader and the commenter are individual.
The moderator inherits from the commenter.
Every role has its own permission.
*/
func ExampleRBAC() {
	rbac := filterable.New[string]()
	editor := filterable.NewRole("editor")
	author := filterable.NewRole("author")
	reader := filterable.NewRole("reader")
	commenter := filterable.NewRole("commenter")
	moderator := filterable.NewRole("moderator")

	publish := filterable.NewPermission("post.publish")
	write := filterable.NewPermission("post.write")
	read := filterable.NewPermission("post.read")
	comment := filterable.NewPermission("comment.write")
	hide := filterable.NewPermission("comment.hide")

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(editor.Assign(publish))
	must(author.Assign(write))
	must(reader.Assign(read))
	must(commenter.Assign(comment))
	must(moderator.Assign(hide))

	for _, r := range []filterable.Role[string]{editor, author, reader, commenter, moderator} {
		must(rbac.Add(r))
	}
	must(rbac.SetParent("editor", "author"))
	must(rbac.SetParents("author", []string{"reader", "commenter"}))
	must(rbac.SetParent("moderator", "commenter"))

	if filterable.AllGranted(rbac, []string{"editor"}, publish, nil) &&
		rbac.IsGranted("editor", write, nil) &&
		rbac.IsGranted("editor", read, nil) &&
		rbac.IsGranted("editor", comment, nil) {
		fmt.Println("The editor may publish, write, read and comment.")
	}
	if !rbac.IsGranted("moderator", read, nil) {
		fmt.Println("The moderator may not read posts.")
	}

	must(rbac.SetParent("reader", "editor"))
	if err := filterable.InherCircle(rbac); err != nil {
		fmt.Println("Found an inheritance loop.")
	}
	// Output:
	// The editor may publish, write, read and comment.
	// The moderator may not read posts.
	// Found an inheritance loop.
}

func ExampleChecker() {
	catalog := filter.Catalog{
		"user": {
			Name:       "user",
			Table:      "users",
			Identifier: "id",
			Filterable: true,
			Public:     true,
			Fields: map[string]*filter.Field{
				"id":    {Name: "id", Type: filter.FieldTypeInteger, Filterable: true, Public: true},
				"name":  {Name: "name", Type: filter.FieldTypeString, Filterable: true, Public: true},
				"email": {Name: "email", Type: filter.FieldTypeString, Filterable: true, Public: true},
			},
		},
	}

	rbac := filterable.New[string]()
	support := filterable.NewRole("support")
	_ = support.Assign(filterable.NewFieldPermission("user.name"))
	_ = rbac.Add(support)

	engine, err := filter.NewEngine(catalog, filter.WithAuthorizationChecker(filterable.NewChecker(rbac, "support")))
	if err != nil {
		panic(err)
	}
	node, err := filter.ParseJSON([]byte(`{"condition":"AND","rules":[
		{"field":"name","operator":"begins_with","value":"an"},
		{"field":"email","operator":"contains","value":"corp"}
	]}`), true)
	if err != nil {
		panic(err)
	}

	c, err := engine.Compile(node, filter.NewQuery("user", "u"), filter.LevelAll)
	if err != nil {
		panic(err)
	}
	sql, err := c.DQL()
	if err != nil {
		panic(err)
	}
	fmt.Println(sql)
	fmt.Println(c.Params[0].Name, c.Params[0].Value)
	// Output:
	// (UNACCENT(LOWER(u.name)) LIKE UNACCENT(LOWER(:p1)))
	// p1 an%
}
