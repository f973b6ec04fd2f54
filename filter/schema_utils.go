package filter

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// MetadataFromStruct builds ObjectMetadata from a Go struct type using
// reflection. Fields are filterable and public unless tagged otherwise.
//
// Supported Go field types:
//   - string                 -> FieldTypeString
//   - bool                   -> FieldTypeBoolean
//   - int/uint variants      -> FieldTypeInteger
//   - float32/float64        -> FieldTypeFloat
//   - time.Time              -> FieldTypeDateTime
//   - uuid.UUID              -> FieldTypeGUID
//   - []string               -> FieldTypeSimpleArray
//
// Field name resolution precedence:
//  1. `filter` tag (first segment, json-style)
//  2. `json` tag
//  3. `db` tag
//  4. snake_case of Go field name
//
// Column name resolution precedence:
//  1. `filter` tag option `column=...`
//  2. `db` tag
//  3. `gorm` tag option `column:...`
//  4. resolved field name
//
// The `filter` tag supports:
//   - "-" to skip the field
//   - "id" to mark the identifier
//   - "private" to hide the field from untrusted filters
//   - "nofilter" to keep the field but reject rules on it
//   - "translatable" to read it from the translation association
//   - "type=..." to override the inferred FieldType
//   - "ops=..." to override allowed operators (pipe separated)
//   - "transformer=..." to compile rules with a registered NodeTransformer
func MetadataFromStruct(name, table string, model any) (*ObjectMetadata, error) {
	rt, err := normalizeStructType(model)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		if rt.Name() == "" {
			return nil, fmt.Errorf("entity name is required for anonymous structs")
		}
		name = snakeCase(rt.Name())
	}
	if strings.TrimSpace(table) == "" {
		table = name
	}

	meta := &ObjectMetadata{
		Name:         name,
		Table:        table,
		Filterable:   true,
		Public:       true,
		Fields:       map[string]*Field{},
		Associations: map[string]*Association{},
	}
	if err := collectFieldsFromStruct(rt, meta); err != nil {
		return nil, err
	}
	if meta.Identifier == "" {
		if _, ok := meta.Fields["id"]; ok {
			meta.Identifier = "id"
		}
	}
	return meta, nil
}

func normalizeStructType(model any) (reflect.Type, error) {
	if model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	var rt reflect.Type
	if t, ok := model.(reflect.Type); ok {
		rt = t
	} else {
		rt = reflect.TypeOf(model)
	}

	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct (or pointer to struct), got %s", rt.Kind())
	}
	return rt, nil
}

type parsedFilterTag struct {
	skip         bool
	explicit     bool
	name         string
	column       string
	identifier   bool
	private      bool
	noFilter     bool
	translatable bool
	fieldType    FieldType
	operators    []Operator
	transformer  string
}

func parseFilterTag(raw string) (parsedFilterTag, error) {
	if raw == "" {
		return parsedFilterTag{}, nil
	}

	out := parsedFilterTag{explicit: true}
	for idx, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "-" {
			out.skip = true
			return out, nil
		}

		switch {
		case part == "id":
			out.identifier = true
		case part == "private":
			out.private = true
		case part == "nofilter":
			out.noFilter = true
		case part == "translatable":
			out.translatable = true
		case strings.HasPrefix(part, "column="):
			out.column = strings.TrimPrefix(part, "column=")
		case strings.HasPrefix(part, "type="):
			out.fieldType = FieldType(strings.TrimPrefix(part, "type="))
			if !out.fieldType.Known() {
				return out, fmt.Errorf("unknown field type %q", out.fieldType)
			}
		case strings.HasPrefix(part, "transformer="):
			out.transformer = strings.TrimPrefix(part, "transformer=")
		case strings.HasPrefix(part, "ops="):
			for _, op := range strings.Split(strings.TrimPrefix(part, "ops="), "|") {
				op = strings.TrimSpace(op)
				if op == "" {
					continue
				}
				if !Operator(op).Known() {
					return out, fmt.Errorf("unknown operator %q", op)
				}
				out.operators = append(out.operators, Operator(op))
			}
		case idx == 0 && !strings.Contains(part, "="):
			out.name = part
		default:
			return out, fmt.Errorf("unknown filter tag option %q", part)
		}
	}
	return out, nil
}

func collectFieldsFromStruct(rt reflect.Type, meta *ObjectMetadata) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)

		// Skip unexported fields unless they are anonymous (embedded) structs.
		if sf.PkgPath != "" && !sf.Anonymous {
			continue
		}

		filterTagRaw, filterTagPresent := sf.Tag.Lookup("filter")
		tag, err := parseFilterTag(filterTagRaw)
		if err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if tag.skip {
			continue
		}

		fieldType := sf.Type
		for fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}

		// Flatten embedded structs by default.
		if sf.Anonymous && fieldType.Kind() == reflect.Struct && fieldType != timeType && !filterTagPresent {
			if err := collectFieldsFromStruct(fieldType, meta); err != nil {
				return err
			}
			continue
		}

		name := tag.name
		if name == "" {
			name = pickTagName(sf.Tag.Get("json"))
		}
		if name == "" {
			name = pickTagName(sf.Tag.Get("db"))
		}
		if name == "" {
			name = snakeCase(sf.Name)
		}
		if name == "-" {
			continue
		}

		ft := tag.fieldType
		if ft == "" {
			ft, err = inferFieldType(fieldType)
			if err != nil {
				if tag.explicit {
					return fmt.Errorf("field %s: %w", sf.Name, err)
				}
				continue
			}
		}

		column := tag.column
		if column == "" {
			column = pickTagName(sf.Tag.Get("db"))
		}
		if column == "" {
			column = pickGormColumn(sf.Tag.Get("gorm"))
		}
		if column == "" {
			column = name
		}

		if _, exists := meta.Fields[name]; exists {
			return fmt.Errorf("duplicate field name %q", name)
		}
		meta.Fields[name] = &Field{
			Name:         name,
			Column:       column,
			Type:         ft,
			Filterable:   !tag.noFilter,
			Public:       !tag.private,
			Operators:    tag.operators,
			Transformer:  tag.transformer,
			Translatable: tag.translatable,
		}
		if tag.identifier {
			if meta.Identifier != "" {
				return fmt.Errorf("field %s: identifier already set to %q", sf.Name, meta.Identifier)
			}
			meta.Identifier = name
		}
	}
	return nil
}

func inferFieldType(rt reflect.Type) (FieldType, error) {
	switch rt {
	case timeType:
		return FieldTypeDateTime, nil
	case uuidType:
		return FieldTypeGUID, nil
	}

	switch rt.Kind() {
	case reflect.String:
		return FieldTypeString, nil
	case reflect.Bool:
		return FieldTypeBoolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FieldTypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return FieldTypeFloat, nil
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.String {
			return FieldTypeSimpleArray, nil
		}
	}
	return "", fmt.Errorf("unsupported Go type %s", rt.String())
}

func pickTagName(tag string) string {
	if tag == "" {
		return ""
	}
	return strings.TrimSpace(strings.Split(tag, ",")[0])
}

func pickGormColumn(tag string) string {
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "column:"):
			return strings.TrimPrefix(part, "column:")
		case strings.HasPrefix(part, "column="):
			return strings.TrimPrefix(part, "column=")
		}
	}
	return ""
}

func snakeCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + 4)

	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				var next rune
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if (unicode.IsLower(prev) || unicode.IsDigit(prev)) || (next != 0 && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
