// Package compare implements the structural comparator that judges an
// extracted JSON tree against a human-provided expected tree.
//
// Both trees are flattened into path -> leaf maps, every leaf is normalized
// into a comparable string, a Matcher decides equivalence per path and the
// per-path outcomes are rolled up into classification metrics.
package compare

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind enumerates the leaf variants a JSON tree can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a single JSON leaf. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	s    string // number literal or string contents
}

// Null returns the empty leaf, also used for a path missing on one side.
func Null() Value { return Value{} }

// Bool returns a boolean leaf.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric leaf from its literal text.
func Number(literal string) Value { return Value{kind: KindNumber, s: literal} }

// String returns a string leaf.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the leaf variant.
func (v Value) Kind() Kind { return v.kind }

// Raw returns the leaf's unnormalized text form.
func (v Value) Raw() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// ValueOf converts a decoded JSON leaf into a Value. Besides the types
// produced by encoding/json it accepts every Go integer and float kind so
// that trees built in code compare the same way as decoded ones.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case float64:
		return floatValue(t)
	case float32:
		return floatValue(float64(t))
	case int:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int8:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int16:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return Number(strconv.FormatInt(t, 10)), nil
	case uint:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint8:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint16:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint32:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return Number(strconv.FormatUint(t, 10)), nil
	default:
		return Value{}, fmt.Errorf("unsupported leaf type %T", x)
	}
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite number %v", f)
	}
	return Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
}
