package entity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hub payloads for boolean values.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Clamping ranges applied to command values before they are sent over OSC.
const (
	FloatMin = -1.0
	FloatMax = 1.0
	IntMin   = 0
	IntMax   = 255
)

// Encode converts a Value to the hub's string wire form.
//
// Booleans encode as ON/OFF; numbers use their shortest canonical decimal
// form (float32 precision for floats).
func Encode(v Value) (string, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return PayloadOn, nil
		}
		return PayloadOff, nil
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10), nil
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'f', -1, 32), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedValueKind, v.kind)
	}
}

// Decode converts a hub payload to a Value without any knowledge of the target entity.
//
// ON and OFF decode to booleans; any other payload is parsed as a float.
// Numbers beyond the float32 range saturate at its limits.
// Surrounding whitespace is ignored.
func Decode(payload string) (Value, error) {
	v, _, err := decode(payload)
	return v, err
}

// DecodeAs decodes a hub payload into a Value of the given kind.
//
// Switch entities accept only ON/OFF. Integer entities accept any number and
// round it to the nearest int32 (saturating at the int32 range). A boolean
// payload for a numeric entity, or a number for a switch, is ErrKindMismatch.
func DecodeAs(payload string, kind ValueKind) (Value, error) {
	v, f, err := decode(payload)
	if err != nil {
		return Value{}, err
	}

	switch kind {
	case KindBool:
		if v.kind != KindBool {
			return Value{}, fmt.Errorf("%w: %q is not ON/OFF", ErrKindMismatch, payload)
		}
		return v, nil
	case KindFloat:
		if v.kind != KindFloat {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrKindMismatch, payload)
		}
		return v, nil
	case KindInt:
		if v.kind != KindFloat {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrKindMismatch, payload)
		}
		return IntValue(roundToInt32(f)), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValueKind, kind)
	}
}

// decode returns the parsed Value and, for numbers, the full-precision float64.
func decode(payload string) (Value, float64, error) {
	s := strings.TrimSpace(payload)
	switch s {
	case PayloadOn:
		return BoolValue(true), 0, nil
	case PayloadOff:
		return BoolValue(false), 0, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out-of-range literals are still numbers; ParseFloat returns ±Inf for them.
		if !errors.Is(err, strconv.ErrRange) {
			return Value{}, 0, fmt.Errorf("%w: %q", ErrParse, payload)
		}
	} else if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, 0, fmt.Errorf("%w: %q", ErrParse, payload)
	}
	return FloatValue(toFloat32(f)), f, nil
}

func toFloat32(f float64) float32 {
	if f > math.MaxFloat32 {
		return math.MaxFloat32
	}
	if f < -math.MaxFloat32 {
		return -math.MaxFloat32
	}
	return float32(f)
}

func roundToInt32(f float64) int32 {
	r := math.Round(f)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	if r < math.MinInt32 {
		return math.MinInt32
	}
	return int32(r)
}

// Clamp restricts a value to its wire range: floats to [-1, 1], integers to
// [0, 255]. Booleans pass through unchanged. Clamp is idempotent.
func Clamp(v Value) Value {
	switch v.kind {
	case KindFloat:
		f := v.f
		if f < FloatMin {
			f = FloatMin
		} else if f > FloatMax {
			f = FloatMax
		}
		return FloatValue(f)
	case KindInt:
		i := v.i
		if i < IntMin {
			i = IntMin
		} else if i > IntMax {
			i = IntMax
		}
		return IntValue(i)
	default:
		return v
	}
}
