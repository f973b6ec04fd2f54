package filter

import (
	"errors"
	"fmt"
)

// DialectName enumerates supported rendering dialects.
type DialectName string

const (
	// DialectDQL renders object-query style predicates with named parameters (`:p1`).
	DialectDQL      DialectName = "dql"
	DialectSQLite   DialectName = "sqlite"
	DialectMySQL    DialectName = "mysql"
	DialectPostgres DialectName = "postgres"
	// DialectPostgresNamedArgs renders Postgres SQL using named arguments (`@p1`).
	//
	// The generated statement uses `Statement.NamedArgs` instead of positional `Statement.Args`.
	DialectPostgresNamedArgs DialectName = "postgres_pgx"
)

// FieldType is the semantic type of a metadata field.
type FieldType string

const (
	FieldTypeString      FieldType = "string"
	FieldTypeText        FieldType = "text"
	FieldTypeInteger     FieldType = "integer"
	FieldTypeSmallInt    FieldType = "smallint"
	FieldTypeBigInt      FieldType = "bigint"
	FieldTypeFloat       FieldType = "float"
	FieldTypeDecimal     FieldType = "decimal"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeDateTime    FieldType = "datetime"
	FieldTypeDateTimeTz  FieldType = "datetimetz"
	FieldTypeTime        FieldType = "time"
	FieldTypeGUID        FieldType = "guid"
	FieldTypeUUID        FieldType = "uuid"
	FieldTypeObject      FieldType = "object"
	FieldTypeArray       FieldType = "array"
	FieldTypeJSON        FieldType = "json"
	FieldTypeSimpleArray FieldType = "simple_array"
)

// Family folds type aliases onto the base type used by the operator and
// input tables.
func (t FieldType) Family() FieldType {
	switch t {
	case FieldTypeText:
		return FieldTypeString
	case FieldTypeSmallInt, FieldTypeBigInt:
		return FieldTypeInteger
	case FieldTypeDecimal:
		return FieldTypeFloat
	case FieldTypeDateTimeTz:
		return FieldTypeDateTime
	case FieldTypeUUID:
		return FieldTypeGUID
	case FieldTypeJSON:
		return FieldTypeObject
	case FieldTypeSimpleArray:
		return FieldTypeArray
	default:
		return t
	}
}

// Known reports whether the type belongs to a supported family.
func (t FieldType) Known() bool {
	switch t.Family() {
	case FieldTypeString, FieldTypeInteger, FieldTypeFloat, FieldTypeBoolean,
		FieldTypeDate, FieldTypeDateTime, FieldTypeTime, FieldTypeGUID,
		FieldTypeObject, FieldTypeArray:
		return true
	default:
		return false
	}
}

// AssociationKind describes the cardinality of an association.
type AssociationKind string

const (
	ManyToOne  AssociationKind = "many_to_one"
	OneToOne   AssociationKind = "one_to_one"
	OneToMany  AssociationKind = "one_to_many"
	ManyToMany AssociationKind = "many_to_many"
)

// IsToOne reports whether the association is single valued.
func (k AssociationKind) IsToOne() bool {
	return k == ManyToOne || k == OneToOne
}

// Known reports whether the kind is supported.
func (k AssociationKind) Known() bool {
	switch k {
	case ManyToOne, OneToOne, OneToMany, ManyToMany:
		return true
	default:
		return false
	}
}

// Constraint is a boolean CEL expression evaluated against a coerced rule
// value. Expressions see `value`, `raw`, `operator` and `field`.
type Constraint struct {
	Expr    string `yaml:"expr" json:"expr"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Field describes a filterable scalar property of an object.
type Field struct {
	Name   string
	Column string
	Type   FieldType
	// Filterable fields may be referenced by rules at all.
	Filterable bool
	// Public fields are visible to untrusted filters (LevelAll).
	Public bool
	// Operators overrides the type's default operator set when non-empty.
	Operators []Operator
	// Transformer names a registered Transformer which compiles rules on this field.
	Transformer string
	Constraints []Constraint
	// StoredAs re-types identifier comparisons, e.g. a guid kept in a string column.
	StoredAs FieldType
	// Translatable fields are read from the translation association when the
	// engine runs with translations enabled.
	Translatable bool
}

// ColumnName returns the backing column, defaulting to the field name.
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Association describes a relation between two objects.
type Association struct {
	Name   string
	Target string
	Kind   AssociationKind
	// JoinColumn is the foreign key column on the owning side.
	JoinColumn string
	// ReferencedColumn is the column the foreign key points at (target identifier by default).
	ReferencedColumn string
	// MappedBy names the owning association on the target for inverse sides.
	MappedBy string
	Public   bool
}

func (a *Association) joinColumn() string {
	if a.JoinColumn != "" {
		return a.JoinColumn
	}
	return a.Name + "_id"
}

// ObjectMetadata describes one entity: its table, fields and associations.
type ObjectMetadata struct {
	Name         string
	Table        string
	Identifier   string
	Filterable   bool
	Public       bool
	Fields       map[string]*Field
	Associations map[string]*Association
	// Translation names the one-to-many association holding per-locale rows.
	Translation string
	// LocaleField is the locale column on translation objects.
	LocaleField string
}

// Field returns the field metadata if present.
func (m *ObjectMetadata) Field(name string) (*Field, bool) {
	f, ok := m.Fields[name]
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

// Association returns the association metadata if present.
func (m *ObjectMetadata) Association(name string) (*Association, bool) {
	a, ok := m.Associations[name]
	if !ok || a == nil {
		return nil, false
	}
	return a, true
}

// TableName returns the backing table, defaulting to the object name.
func (m *ObjectMetadata) TableName() string {
	if m.Table != "" {
		return m.Table
	}
	return m.Name
}

// IdentifierColumn returns the identifier column, defaulting to "id".
func (m *ObjectMetadata) IdentifierColumn() string {
	if m.Identifier == "" {
		return "id"
	}
	if f, ok := m.Field(m.Identifier); ok {
		return f.ColumnName()
	}
	return m.Identifier
}

func (m *ObjectMetadata) identifierField() (*Field, bool) {
	name := m.Identifier
	if name == "" {
		name = "id"
	}
	return m.Field(name)
}

func (m *ObjectMetadata) identifierType() FieldType {
	if f, ok := m.identifierField(); ok {
		return f.Type
	}
	return FieldTypeInteger
}

func (m *ObjectMetadata) localeColumn() string {
	if m.LocaleField == "" {
		return "locale"
	}
	if f, ok := m.Field(m.LocaleField); ok {
		return f.ColumnName()
	}
	return m.LocaleField
}

// ErrUnknownEntity is returned by oracles for names they do not describe.
var ErrUnknownEntity = errors.New("filter: unknown entity")

// MetadataOracle resolves object metadata by name. Implementations are
// read-only from the point of view of this package.
type MetadataOracle interface {
	Metadata(name string) (*ObjectMetadata, error)
}

// Catalog is an in-memory MetadataOracle.
type Catalog map[string]*ObjectMetadata

// Metadata implements MetadataOracle.
func (c Catalog) Metadata(name string) (*ObjectMetadata, error) {
	m, ok := c[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownEntity, name)
	}
	return m, nil
}

// Action is an authorization verb.
type Action string

// ActionRead gates visibility of fields and associations to filters.
const ActionRead Action = "read"

// RefKind distinguishes fields from associations in authorization checks.
type RefKind string

const (
	RefField       RefKind = "field"
	RefAssociation RefKind = "association"
)

// Ref names a field or association of an entity.
type Ref struct {
	Entity string
	Name   string
	Kind   RefKind
}

func (r Ref) String() string {
	return r.Entity + "." + r.Name
}

// AuthorizationChecker is a yes/no gate per field or association.
type AuthorizationChecker interface {
	IsGranted(action Action, ref Ref) bool
}

// AuthorizationCheckerFunc adapts a function to AuthorizationChecker.
type AuthorizationCheckerFunc func(action Action, ref Ref) bool

// IsGranted implements AuthorizationChecker.
func (f AuthorizationCheckerFunc) IsGranted(action Action, ref Ref) bool {
	return f(action, ref)
}
