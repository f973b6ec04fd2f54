package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// joinPlanner plans the joins of one validation pass. Joins are keyed by
// (parent alias, relation) and reused across rules and across the joins
// already present on the query.
type joinPlanner struct {
	existing []Join
	planned  []Join
	aliases  map[string]bool
}

func newJoinPlanner(rootAlias string, existing []Join) *joinPlanner {
	p := &joinPlanner{
		existing: existing,
		aliases:  map[string]bool{rootAlias: true},
	}
	for _, j := range existing {
		p.aliases[j.Alias] = true
	}
	return p
}

// commit plans the hops of a resolved path and returns the alias holding
// the final column.
func (p *joinPlanner) commit(root string, hops []hop, kind JoinKind) string {
	parent := root
	for _, h := range hops {
		if i, ok := findJoin(p.planned, parent, h.assoc.Name); ok {
			p.planned[i].Kind = p.planned[i].Kind.stronger(kind)
			parent = p.planned[i].Alias
			continue
		}
		if i, ok := findJoin(p.existing, parent, h.assoc.Name); ok {
			reused := p.existing[i]
			reused.Kind = kind
			p.planned = append(p.planned, reused)
			parent = reused.Alias
			continue
		}

		alias := p.alias(h.target.Name, h.level)
		p.planned = append(p.planned, Join{
			Kind:         kind,
			Parent:       parent,
			ParentEntity: h.parentMeta.Name,
			Relation:     h.assoc.Name,
			Alias:        alias,
			Target:       h.target.Name,
			Table:        h.target.TableName(),
			On:           joinOn(parent, h.parentMeta, h.assoc, alias, h.target),
			Level:        h.level,
			locale:       h.locale,
			localeColumn: h.target.localeColumn(),
		})
		parent = alias
	}
	return parent
}

// alias derives a deterministic alias from the target name, adding the
// nesting level and then a counter on collisions.
func (p *joinPlanner) alias(target string, level int) string {
	base := strings.ReplaceAll(slug.Make(target), "-", "_")
	if base == "" {
		base = "j"
	}
	if unicode.IsDigit(rune(base[0])) {
		base = "j_" + base
	}

	candidate := base
	if p.aliases[candidate] {
		candidate = fmt.Sprintf("%s_%d", base, level)
	}
	for n := 2; p.aliases[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d_%d", base, level, n)
	}
	p.aliases[candidate] = true
	return candidate
}

func joinOn(parent string, parentMeta *ObjectMetadata, assoc *Association, alias string, target *ObjectMetadata) Predicate {
	if assoc.MappedBy != "" {
		fk := assoc.MappedBy + "_id"
		ref := parentMeta.IdentifierColumn()
		if owning, ok := target.Association(assoc.MappedBy); ok {
			fk = owning.joinColumn()
			if owning.ReferencedColumn != "" {
				ref = owning.ReferencedColumn
			}
		}
		return &Compare{Left: Column{Alias: alias, Name: fk}, Op: CompareEq, Right: Column{Alias: parent, Name: ref}}
	}

	ref := assoc.ReferencedColumn
	if ref == "" {
		ref = target.IdentifierColumn()
	}
	return &Compare{Left: Column{Alias: alias, Name: ref}, Op: CompareEq, Right: Column{Alias: parent, Name: assoc.joinColumn()}}
}
