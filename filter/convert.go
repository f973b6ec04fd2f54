package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	dateLayouts = []string{
		"2006-01-02",
	}
	datetimeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	timeLayouts = []string{
		"15:04:05",
		"15:04",
	}
)

// coerceScalar converts a parsed scalar to the Go representation of typ.
// String-family types produce string, integers int64, floats float64,
// temporal types time.Time and guids uuid.UUID.
func coerceScalar(typ FieldType, value any) (any, error) {
	switch typ.Family() {
	case FieldTypeString, FieldTypeObject, FieldTypeArray:
		return toString(value)
	case FieldTypeInteger:
		return toInt64(value)
	case FieldTypeFloat:
		return toFloat64(value)
	case FieldTypeBoolean:
		return toBool(value)
	case FieldTypeDate:
		return toTime(value, dateLayouts)
	case FieldTypeDateTime:
		return toTime(value, datetimeLayouts)
	case FieldTypeTime:
		return toTime(value, timeLayouts)
	case FieldTypeGUID:
		return toUUID(value)
	default:
		return nil, fmt.Errorf("unsupported field type %q", typ)
	}
}

// retype applies identifier storage re-typing, e.g. guid kept as a string column.
func retype(value any, storedAs FieldType) any {
	if storedAs == "" {
		return value
	}
	if id, ok := value.(uuid.UUID); ok && storedAs.Family() == FieldTypeString {
		return id.String()
	}
	return value
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot convert %s to string", typeName(value))
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", v.String())
		}
		return integralFloat(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", v)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %s to integer", typeName(value))
	}
}

func integralFloat(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	case bool, nil:
		return 0, fmt.Errorf("cannot convert %s to float", typeName(value))
	}
	i, err := toInt64(value)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %s to float", typeName(value))
	}
	return float64(i), nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("cannot convert %q to boolean", v)
	case nil:
		return false, fmt.Errorf("cannot convert null to boolean")
	}
	i, err := toInt64(value)
	if err != nil || (i != 0 && i != 1) {
		return false, fmt.Errorf("cannot convert %v to boolean", value)
	}
	return i == 1, nil
}

func toTime(value any, layouts []string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		var err error
		for _, layout := range layouts {
			var t time.Time
			t, err = time.Parse(layout, s)
			if err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", v, err)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %s to a date/time", typeName(value))
	}
}

func toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid guid %q: %w", v, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("cannot convert %s to guid", typeName(value))
	}
}

func toAnySlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	n := rv.Len()
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out, true
}

// asList returns the elements of a slice value. Byte arrays such as
// uuid.UUID are scalars.
func asList(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	return toAnySlice(value)
}
