package flink

import (
	"math"
	"strconv"
)

// FlexInt normalizes a string-or-integer value to int64.
//
// Accepted: a string holding a base-10 int64, a signed integer, or an unsigned integer
// not above math.MaxInt64. Objects and arrays are unsupported; anything else (float,
// bool, null, out of range) is a coercion error.
func FlexInt(field string, v Value) (int64, error) {
	switch v.Kind {
	case KindString:
		i, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, coercionError(field, "%q is not a base-10 int64", v.Str)
		}
		return i, nil
	case KindInt:
		return v.Int, nil
	case KindUint:
		if v.Uint > math.MaxInt64 {
			return 0, coercionError(field, "%d overflows int64", v.Uint)
		}
		return int64(v.Uint), nil
	case KindObject, KindArray:
		return 0, unsupported(field, v)
	}
	return 0, coercionError(field, "expected a string or an integer, got %s", v.Kind)
}

// FlexString normalizes a string-or-number value to text. Numbers are rendered in
// their shortest decimal form; non-finite floats have none and are rejected. Unsigned
// values are rendered as-is without a range check: the coercion preserves the
// representation, it does not validate it.
func FlexString(field string, v Value) (string, error) {
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case KindUint:
		return strconv.FormatUint(v.Uint, 10), nil
	case KindFloat:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			return "", coercionError(field, "%v has no decimal form", v.Float)
		}
		return strconv.FormatFloat(v.Float, 'f', -1, 64), nil
	case KindObject, KindArray:
		return "", unsupported(field, v)
	}
	return "", coercionError(field, "expected a string or a number, got %s", v.Kind)
}

// strictString accepts only strings.
func strictString(field string, v Value) (string, error) {
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindObject, KindArray:
		return "", unsupported(field, v)
	}
	return "", coercionError(field, "expected a string, got %s", v.Kind)
}

// strictInt32 accepts only native integers within the int32 range.
func strictInt32(field string, v Value) (int, error) {
	var i int64
	switch v.Kind {
	case KindInt:
		i = v.Int
	case KindUint:
		if v.Uint > math.MaxInt32 {
			return 0, coercionError(field, "%d overflows int32", v.Uint)
		}
		i = int64(v.Uint)
	case KindObject, KindArray:
		return 0, unsupported(field, v)
	default:
		return 0, coercionError(field, "expected an integer, got %s", v.Kind)
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, coercionError(field, "%d overflows int32", i)
	}
	return int(i), nil
}
