package flexmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind is the scalar type of a Value, tagged on the wire by the local
// name of the value elements: r, i or b.
type ValueKind uint8

const (
	UnknownKind ValueKind = iota
	RealKind
	IntKind
	BoolKind
)

func (k ValueKind) String() string {
	switch k {
	case RealKind:
		return "r"
	case IntKind:
		return "i"
	case BoolKind:
		return "b"
	default:
		return "unknown"
	}
}

func valueKindOf(tag string) ValueKind {
	switch tag {
	case "r":
		return RealKind
	case "i":
		return IntKind
	case "b":
		return BoolKind
	default:
		return UnknownKind
	}
}

// Value holds the scalars carried by a data update.
type Value struct {
	kind  ValueKind
	reals []float64
	ints  []int64
	bools []bool
}

// RealValue creates a real Value.
func RealValue(v ...float64) Value {
	return Value{kind: RealKind, reals: v}
}

// IntValue creates an integer Value.
func IntValue(v ...int64) Value {
	return Value{kind: IntKind, ints: v}
}

// BoolValue creates a boolean Value.
func BoolValue(v ...bool) Value {
	return Value{kind: BoolKind, bools: v}
}

// Kind returns the scalar type.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Len returns the number of scalars.
func (v Value) Len() int {
	switch v.kind {
	case RealKind:
		return len(v.reals)
	case IntKind:
		return len(v.ints)
	case BoolKind:
		return len(v.bools)
	default:
		return 0
	}
}

// Floats returns every scalar as float64. Booleans map to 0 and 1.
func (v Value) Floats() []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.floatAt(i)
	}

	return out
}

// Float returns the first scalar as float64, or 0 for an empty value.
func (v Value) Float() float64 {
	if v.Len() == 0 {
		return 0
	}

	return v.floatAt(0)
}

// Ints returns every scalar as int64. Reals are truncated.
func (v Value) Ints() []int64 {
	out := make([]int64, v.Len())
	for i := range out {
		switch v.kind {
		case IntKind:
			out[i] = v.ints[i]
		default:
			out[i] = int64(v.floatAt(i))
		}
	}

	return out
}

// Int returns the first scalar as int64, or 0 for an empty value.
func (v Value) Int() int64 {
	if v.Len() == 0 {
		return 0
	}

	return v.Ints()[0]
}

// Bool returns whether the first scalar is true or non-zero.
func (v Value) Bool() bool {
	if v.Len() == 0 {
		return false
	}
	if v.kind == BoolKind {
		return v.bools[0]
	}

	return v.floatAt(0) != 0
}

func (v Value) floatAt(i int) float64 {
	switch v.kind {
	case RealKind:
		return v.reals[i]
	case IntKind:
		return float64(v.ints[i])
	case BoolKind:
		if v.bools[i] {
			return 1
		}
	}

	return 0
}

func (v Value) String() string {
	var sb strings.Builder
	sb.WriteString(v.kind.String())
	sb.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch v.kind {
		case RealKind:
			sb.WriteString(strconv.FormatFloat(v.reals[i], 'g', -1, 64))
		case IntKind:
			sb.WriteString(strconv.FormatInt(v.ints[i], 10))
		case BoolKind:
			sb.WriteString(strconv.FormatBool(v.bools[i]))
		}
	}
	sb.WriteByte(']')

	return sb.String()
}

func parseValue(kind ValueKind, texts []string) (Value, error) {
	v := Value{kind: kind}

	for _, text := range texts {
		text = strings.TrimSpace(text)
		switch kind {
		case RealKind:
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: real value %q", ErrMalformed, text)
			}
			v.reals = append(v.reals, f)

		case IntKind:
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: integer value %q", ErrMalformed, text)
			}
			v.ints = append(v.ints, n)

		case BoolKind:
			b, err := strconv.ParseBool(text)
			if err != nil {
				return Value{}, fmt.Errorf("%w: boolean value %q", ErrMalformed, text)
			}
			v.bools = append(v.bools, b)

		default:
			return Value{}, fmt.Errorf("%w: unknown value type", ErrMalformed)
		}
	}

	return v, nil
}
