package filter

import (
	"fmt"
	"sort"
)

// Definition describes a filterable field to client-side query builders.
type Definition struct {
	ID        string     `json:"id"`
	Type      FieldType  `json:"type"`
	Input     InputType  `json:"input"`
	Operators []Operator `json:"operators"`
}

// Definitions lists the filterable fields of entity, sorted by id. At
// LevelAll only public fields granted by the authorization checker are
// listed.
func (e *Engine) Definitions(entity string, level Level) ([]Definition, error) {
	meta, err := e.oracle.Metadata(entity)
	if err != nil {
		return nil, fmt.Errorf("filter: metadata for %q: %w", entity, err)
	}
	if !meta.Filterable {
		return []Definition{}, nil
	}

	v := &validator{engine: e, level: level}
	defs := make([]Definition, 0, len(meta.Fields))
	for name, f := range meta.Fields {
		if !f.Filterable {
			continue
		}
		if level >= LevelAll && !v.granted(meta, name, f.Public, RefField) {
			continue
		}
		defs = append(defs, Definition{
			ID:        name,
			Type:      f.Type,
			Input:     e.config.InputFor(f.Type),
			Operators: append([]Operator(nil), e.config.fieldOperators(f)...),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}
