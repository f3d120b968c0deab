package entity

import (
	"fmt"
	"strings"
)

// ValueKind identifies which OSC argument type a Value holds.
type ValueKind int

// Supported value kinds.
const (
	KindInvalid ValueKind = iota
	KindBool
	KindInt
	KindFloat
)

// String returns the configuration name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "invalid"
	}
}

// IsNumeric reports whether values of this kind map to a number entity.
func (k ValueKind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseValueKind converts a configuration name (bool, int, float) to a ValueKind.
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer", "int32":
		return KindInt, nil
	case "float", "float32":
		return KindFloat, nil
	default:
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnsupportedValueKind, s)
	}
}

// Value is a typed OSC argument. The zero Value is invalid.
//
// Value is comparable, so two values can be checked with ==.
type Value struct {
	kind ValueKind
	b    bool
	i    int32
	f    float32
}

// BoolValue returns a boolean Value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// IntValue returns an integer Value.
func IntValue(v int32) Value { return Value{kind: KindInt, i: v} }

// FloatValue returns a floating-point Value.
func FloatValue(v float32) Value { return Value{kind: KindFloat, f: v} }

// ZeroValue returns the zero value of the given kind.
// Used as the sample when registering statically configured entities.
func ZeroValue(kind ValueKind) (Value, error) {
	switch kind {
	case KindBool:
		return BoolValue(false), nil
	case KindInt:
		return IntValue(0), nil
	case KindFloat:
		return FloatValue(0), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValueKind, kind)
	}
}

// ValueFromArg converts a decoded OSC argument into a Value.
//
// Only bool, int32, and float32 arguments are supported; anything else
// (strings, blobs, 64-bit numbers, nil, timetags) yields ErrUnsupportedValueKind.
func ValueFromArg(arg any) (Value, error) {
	switch v := arg.(type) {
	case bool:
		return BoolValue(v), nil
	case int32:
		return IntValue(v), nil
	case float32:
		return FloatValue(v), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValueKind, arg)
	}
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the boolean payload. Only meaningful for KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload. Only meaningful for KindInt.
func (v Value) Int() int32 { return v.i }

// Float returns the float payload. Only meaningful for KindFloat.
func (v Value) Float() float32 { return v.f }

// Arg returns the value as an OSC argument suitable for osc.NewMessage.
func (v Value) Arg() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return nil
	}
}

// Float64 returns the value as a float for numeric sinks (booleans are 0 or 1).
func (v Value) Float64() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return float64(v.f)
	default:
		return 0
	}
}

// String returns the hub wire form, or "<invalid>" for the zero Value.
func (v Value) String() string {
	s, err := Encode(v)
	if err != nil {
		return "<invalid>"
	}
	return s
}
