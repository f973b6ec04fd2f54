// Package catalog loads object metadata from YAML mapping files.
//
// A mapping document lists entities with their fields and associations:
//
//	entities:
//	  user:
//	    table: users
//	    identifier: id
//	    fields:
//	      id:    {type: integer}
//	      email: {type: string, public: false}
//	    associations:
//	      company: {target: company, kind: many_to_one}
//
// Entities, fields and associations are filterable and public unless the
// document says otherwise.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fy0/filterable/filter"
	"gopkg.in/yaml.v3"
)

type document struct {
	Entities map[string]entityMapping `yaml:"entities"`
}

type entityMapping struct {
	Table        string                        `yaml:"table"`
	Identifier   string                        `yaml:"identifier"`
	Filterable   *bool                         `yaml:"filterable"`
	Public       *bool                         `yaml:"public"`
	Translation  string                        `yaml:"translation"`
	LocaleField  string                        `yaml:"locale_field"`
	Fields       map[string]fieldMapping       `yaml:"fields"`
	Associations map[string]associationMapping `yaml:"associations"`
}

type fieldMapping struct {
	Column       string              `yaml:"column"`
	Type         filter.FieldType    `yaml:"type"`
	Filterable   *bool               `yaml:"filterable"`
	Public       *bool               `yaml:"public"`
	Operators    []filter.Operator   `yaml:"operators"`
	Transformer  string              `yaml:"transformer"`
	Constraints  []filter.Constraint `yaml:"constraints"`
	StoredAs     filter.FieldType    `yaml:"stored_as"`
	Translatable bool                `yaml:"translatable"`
}

type associationMapping struct {
	Target           string                 `yaml:"target"`
	Kind             filter.AssociationKind `yaml:"kind"`
	JoinColumn       string                 `yaml:"join_column"`
	ReferencedColumn string                 `yaml:"referenced_column"`
	MappedBy         string                 `yaml:"mapped_by"`
	Public           *bool                  `yaml:"public"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Load parses a mapping document into a catalog.
func Load(r io.Reader) (filter.Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return filter.Catalog{}, nil
		}
		return nil, fmt.Errorf("cannot decode catalog: %w", err)
	}

	c := make(filter.Catalog, len(doc.Entities))
	for name, em := range doc.Entities {
		c[name] = em.metadata(name)
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads and parses a mapping file.
func LoadFile(path string) (filter.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog: %w", err)
	}
	c, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (em entityMapping) metadata(name string) *filter.ObjectMetadata {
	meta := &filter.ObjectMetadata{
		Name:         name,
		Table:        em.Table,
		Identifier:   em.Identifier,
		Filterable:   boolOr(em.Filterable, true),
		Public:       boolOr(em.Public, true),
		Translation:  em.Translation,
		LocaleField:  em.LocaleField,
		Fields:       make(map[string]*filter.Field, len(em.Fields)),
		Associations: make(map[string]*filter.Association, len(em.Associations)),
	}
	for fname, fm := range em.Fields {
		meta.Fields[fname] = &filter.Field{
			Name:         fname,
			Column:       fm.Column,
			Type:         fm.Type,
			Filterable:   boolOr(fm.Filterable, true),
			Public:       boolOr(fm.Public, true),
			Operators:    fm.Operators,
			Transformer:  fm.Transformer,
			Constraints:  fm.Constraints,
			StoredAs:     fm.StoredAs,
			Translatable: fm.Translatable,
		}
	}
	for aname, am := range em.Associations {
		meta.Associations[aname] = &filter.Association{
			Name:             aname,
			Target:           am.Target,
			Kind:             am.Kind,
			JoinColumn:       am.JoinColumn,
			ReferencedColumn: am.ReferencedColumn,
			MappedBy:         am.MappedBy,
			Public:           boolOr(am.Public, true),
		}
	}
	if meta.Identifier == "" {
		if _, ok := meta.Fields["id"]; ok {
			meta.Identifier = "id"
		}
	}
	return meta
}

// Validate checks that every entity of c is self-consistent and that
// associations point at entities of c.
func Validate(c filter.Catalog) error {
	var errs []error
	for _, name := range sortedKeys(c) {
		if err := validateEntity(c, c[name]); err != nil {
			errs = append(errs, fmt.Errorf("entity %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func validateEntity(c filter.Catalog, meta *filter.ObjectMetadata) error {
	if meta == nil {
		return fmt.Errorf("metadata is nil")
	}
	var errs []error
	for _, name := range sortedKeys(meta.Fields) {
		f := meta.Fields[name]
		if !f.Type.Known() {
			errs = append(errs, fmt.Errorf("field %q: unknown type %q", name, f.Type))
		}
		if f.StoredAs != "" && !f.StoredAs.Known() {
			errs = append(errs, fmt.Errorf("field %q: unknown stored_as type %q", name, f.StoredAs))
		}
		for _, op := range f.Operators {
			if !op.Known() {
				errs = append(errs, fmt.Errorf("field %q: unknown operator %q", name, op))
			}
		}
		for _, cons := range f.Constraints {
			if err := filter.ValidateConstraint(cons.Expr); err != nil {
				errs = append(errs, fmt.Errorf("field %q: %w", name, err))
			}
		}
		if f.Translatable && meta.Translation == "" {
			errs = append(errs, fmt.Errorf("field %q: translatable without a translation association", name))
		}
	}
	if meta.Identifier != "" {
		if _, ok := meta.Field(meta.Identifier); !ok {
			errs = append(errs, fmt.Errorf("identifier %q is not a field", meta.Identifier))
		}
	}
	for _, name := range sortedKeys(meta.Associations) {
		a := meta.Associations[name]
		if !a.Kind.Known() {
			errs = append(errs, fmt.Errorf("association %q: unknown kind %q", name, a.Kind))
		}
		target, ok := c[a.Target]
		if !ok {
			errs = append(errs, fmt.Errorf("association %q: unknown target %q", name, a.Target))
			continue
		}
		if a.MappedBy != "" {
			if _, ok := target.Association(a.MappedBy); !ok {
				errs = append(errs, fmt.Errorf("association %q: %q is not an association of %q", name, a.MappedBy, a.Target))
			}
		}
	}
	if meta.Translation != "" {
		a, ok := meta.Association(meta.Translation)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("translation association %q not found", meta.Translation))
		case a.Kind.IsToOne():
			errs = append(errs, fmt.Errorf("translation association %q must be to-many", meta.Translation))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
