package flink

import (
	"strconv"
)

// Kind identifies the base representation of a Value as it arrived from the source.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindInt   // fits in int64
	KindUint  // above math.MaxInt64, fits in uint64
	KindFloat // any other number
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Member is one key/value pair of an object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a self-describing structured value. Objects keep their members in source
// order and keep repeated keys, which a Go map cannot represent.
type Value struct {
	Kind    Kind
	Bool    bool
	Str     string
	Int     int64
	Uint    uint64
	Float   float64
	Members []Member
	Items   []Value
}

// Constructors used by the parsers and by tests.

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Uint(u uint64) Value          { return Value{Kind: KindUint, Uint: u} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func Object(m ...Member) Value     { return Value{Kind: KindObject, Members: m} }
func Array(items ...Value) Value   { return Value{Kind: KindArray, Items: items} }
func M(key string, v Value) Member { return Member{Key: key, Value: v} }

// Get returns the first member with the given key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// numberValue classifies a JSON/YAML number literal.
func numberValue(lit string) (Value, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i), nil
	}
	if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return Uint(u), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, err
	}
	return Float(f), nil
}
