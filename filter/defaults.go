package filter

// InputType is the client-side widget hint for a field type.
type InputType string

const (
	InputText     InputType = "text"
	InputNumber   InputType = "number"
	InputCheckbox InputType = "checkbox"
	InputDate     InputType = "date"
	InputDateTime InputType = "datetime"
	InputTime     InputType = "time"
	// InputSelect is not used by the defaults; fields with a closed value
	// set can be switched to it with WithInputType.
	InputSelect InputType = "select"
)

// Config holds the static tables mapping field types to operators and
// input types. Lookups fall back from the exact type to its family.
type Config struct {
	TypeOperators map[FieldType][]Operator
	InputTypes    map[FieldType]InputType
}

var (
	stringOperators = []Operator{
		OpEqual, OpNotEqual,
		OpContains, OpNotContains,
		OpBeginsWith, OpNotBeginsWith,
		OpEndsWith, OpNotEndsWith,
		OpIn, OpNotIn,
		OpIsEmpty, OpIsNotEmpty,
		OpIsNull, OpIsNotNull,
	}
	numberOperators = []Operator{
		OpEqual, OpNotEqual,
		OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpBetween, OpNotBetween,
		OpIn, OpNotIn,
		OpIsNull, OpIsNotNull,
	}
	booleanOperators = []Operator{
		OpEqual, OpNotEqual,
		OpIsNull, OpIsNotNull,
		OpIsTrue, OpIsFalse,
	}
	temporalOperators = []Operator{
		OpEqual, OpNotEqual,
		OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpBetween, OpNotBetween,
		OpIsNull, OpIsNotNull,
	}
	guidOperators = []Operator{
		OpEqual, OpNotEqual,
		OpIn, OpNotIn,
		OpIsNull,
	}
	arrayOperators = []Operator{
		OpContains, OpNotContains,
		OpIsEmpty, OpIsNotEmpty,
	}
)

// DefaultConfig returns the default operator and input tables.
func DefaultConfig() Config {
	return Config{
		TypeOperators: map[FieldType][]Operator{
			FieldTypeString:   stringOperators,
			FieldTypeInteger:  numberOperators,
			FieldTypeFloat:    numberOperators,
			FieldTypeBoolean:  booleanOperators,
			FieldTypeDate:     temporalOperators,
			FieldTypeDateTime: temporalOperators,
			FieldTypeTime:     temporalOperators,
			FieldTypeGUID:     guidOperators,
			FieldTypeObject:   stringOperators,
			FieldTypeArray:    arrayOperators,
		},
		InputTypes: map[FieldType]InputType{
			FieldTypeString:   InputText,
			FieldTypeInteger:  InputNumber,
			FieldTypeFloat:    InputNumber,
			FieldTypeBoolean:  InputCheckbox,
			FieldTypeDate:     InputDate,
			FieldTypeDateTime: InputDateTime,
			FieldTypeTime:     InputTime,
			FieldTypeGUID:     InputText,
			FieldTypeObject:   InputText,
			FieldTypeArray:    InputText,
		},
	}
}

// OperatorsFor returns the operators allowed for a field type.
func (c Config) OperatorsFor(t FieldType) []Operator {
	if ops, ok := c.TypeOperators[t]; ok {
		return ops
	}
	return c.TypeOperators[t.Family()]
}

// InputFor returns the input type for a field type, InputText when unknown.
func (c Config) InputFor(t FieldType) InputType {
	if in, ok := c.InputTypes[t]; ok {
		return in
	}
	if in, ok := c.InputTypes[t.Family()]; ok {
		return in
	}
	return InputText
}

func (c Config) fieldOperators(f *Field) []Operator {
	if len(f.Operators) != 0 {
		return f.Operators
	}
	return c.OperatorsFor(f.Type)
}

func (c Config) allows(f *Field, op Operator) bool {
	for _, allowed := range c.fieldOperators(f) {
		if allowed == op {
			return true
		}
	}
	return false
}

func (c Config) clone() Config {
	out := Config{
		TypeOperators: make(map[FieldType][]Operator, len(c.TypeOperators)),
		InputTypes:    make(map[FieldType]InputType, len(c.InputTypes)),
	}
	for t, ops := range c.TypeOperators {
		out.TypeOperators[t] = append([]Operator(nil), ops...)
	}
	for t, in := range c.InputTypes {
		out.InputTypes[t] = in
	}
	return out
}
