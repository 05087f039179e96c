package variable

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Type helpers
// ---------------------------------------------------------------------------

// ToFloat converts int64, float64, or text to float64.
func ToFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to float: %w", val, err)
		}
		return f, nil
	case *Buffer:
		return ToFloat(val.String())
	default:
		return 0, fmt.Errorf("cannot convert %s to float", TypeName(v))
	}
}

// ToInt converts int64, float64, or text to int64.
func ToInt(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to int: %w", val, err)
		}
		return i, nil
	case *Buffer:
		return ToInt(val.String())
	default:
		return 0, fmt.Errorf("cannot convert %s to int", TypeName(v))
	}
}

// ToString converts any value to its text. Always succeeds. Objects with a
// String method use it, so converting nextNr hands out a new number.
func ToString(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ToBool returns the truthiness of a value.
// Truthy: non-zero numbers, non-empty text, true, non-empty containers, any
// other non-nil object.
func ToBool(v interface{}) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	case *Buffer:
		return val.Length() > 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	case *OrderedMap:
		return val.Size() > 0
	default:
		return true
	}
}

// IsTruthy is an alias for ToBool.
func IsTruthy(v interface{}) bool {
	return ToBool(v)
}

// TypeName returns the type name of a value as used in error messages.
func TypeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case int64, int:
		return "int"
	case float64:
		return "float"
	case string, *DirText:
		return "string"
	case bool:
		return "bool"
	case *Buffer:
		return "buffer"
	case *Dir:
		return "dir"
	case *OpenFile:
		return "openfile"
	case []interface{}:
		return "list"
	case map[string]interface{}, *OrderedMap:
		return "map"
	default:
		return reflect.TypeOf(v).String()
	}
}

// isText reports whether v behaves as text in arithmetic.
func isText(v interface{}) bool {
	switch v.(type) {
	case string, *Buffer, *DirText:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Arithmetic operations
// ---------------------------------------------------------------------------

// Arith applies one of the operators + - * / % to a and b. Text on either
// side of + concatenates. Otherwise both operands must be numbers: two
// integers give an integer (division truncates), anything with a float gives
// a float. % takes integers only.
func Arith(op byte, a, b interface{}) (interface{}, error) {
	if op == '+' && (isText(a) || isText(b)) {
		return ToString(a) + ToString(b), nil
	}
	if !isNumericType(a) || !isNumericType(b) {
		return nil, fmt.Errorf("cannot apply %c to %s and %s", op, TypeName(a), TypeName(b))
	}
	fa, aFloat := toNumeric(a)
	fb, bFloat := toNumeric(b)
	if op == '%' && (aFloat || bFloat) {
		return nil, fmt.Errorf("%% needs integers, got %s and %s", TypeName(a), TypeName(b))
	}
	if (op == '/' || op == '%') && fb == 0 {
		return nil, fmt.Errorf("division by zero")
	}

	if aFloat || bFloat {
		switch op {
		case '+':
			return fa + fb, nil
		case '-':
			return fa - fb, nil
		case '*':
			return fa * fb, nil
		case '/':
			return fa / fb, nil
		}
	} else {
		ia, ib := asInt(a), asInt(b)
		switch op {
		case '+':
			return ia + ib, nil
		case '-':
			return ia - ib, nil
		case '*':
			return ia * ib, nil
		case '/':
			return ia / ib, nil
		case '%':
			return ia % ib, nil
		}
	}
	return nil, fmt.Errorf("unknown operator %c", op)
}

// Compare returns -1, 0, or 1 comparing a and b. Works for numbers and text.
func Compare(a, b interface{}) (int, error) {
	if isText(a) && isText(b) {
		return strings.Compare(ToString(a), ToString(b)), nil
	}

	if isNumericType(a) && isNumericType(b) {
		fa, _ := toNumeric(a)
		fb, _ := toNumeric(b)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}

	return 0, fmt.Errorf("cannot compare %s and %s", TypeName(a), TypeName(b))
}

// Equal performs deep equality comparison. Text compares by content, so a
// buffer equals a string with the same characters.
func Equal(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if isNumericType(a) && isNumericType(b) {
		fa, _ := toNumeric(a)
		fb, _ := toNumeric(b)
		return fa == fb
	}
	if isText(a) && isText(b) {
		return ToString(a) == ToString(b)
	}

	return reflect.DeepEqual(a, b)
}

// Negate performs unary minus on a numeric value.
func Negate(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case int64:
		return -val, nil
	case int:
		return -int64(val), nil
	case float64:
		return -val, nil
	default:
		return nil, fmt.Errorf("cannot negate %s", TypeName(v))
	}
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// isNumericType returns true if v is an int, int64 or float64.
func isNumericType(v interface{}) bool {
	switch v.(type) {
	case int64, int, float64:
		return true
	default:
		return false
	}
}

func asInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	default:
		return 0
	}
}

// toNumeric converts a number to float64 and reports whether the original
// value was float64.
func toNumeric(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), false
	case int:
		return float64(val), false
	case float64:
		return val, true
	default:
		return math.NaN(), false
	}
}
