package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueKind tags the concrete type of a constant-pool Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindComplex
	KindString
	KindBytes
	KindTuple
	KindFrozenSet
	KindCode
)

// Value is the tagged union stored in a Program's constant pool.
type Value struct {
	Kind ValueKind

	Bool    bool
	Int     int64
	BigInt  string // arbitrary-precision value as normalized decimal digits
	Float   float64
	Real    float64
	Imag    float64
	Str     string
	Bytes   []byte
	Tuple   []Value
	Set     []Value // frozenset elements, in insertion order
	Code    *Program
}

// None, Bool and int/float/string/bytes constructors for readability at
// call sites in the compiler.
func NoneValue() Value            { return Value{Kind: KindNone} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(v int64) Value      { return Value{Kind: KindInt, Int: v} }
func BigIntValue(digits string) Value {
	return Value{Kind: KindBigInt, BigInt: normalizeBigIntDigits(digits)}
}
func FloatValue(v float64) Value        { return Value{Kind: KindFloat, Float: v} }
func ComplexValue(re, im float64) Value { return Value{Kind: KindComplex, Real: re, Imag: im} }
func StringValue(s string) Value        { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value         { return Value{Kind: KindBytes, Bytes: b} }
func TupleValue(elts []Value) Value     { return Value{Kind: KindTuple, Tuple: elts} }
func FrozenSetValue(elts []Value) Value { return Value{Kind: KindFrozenSet, Set: elts} }
func CodeValue(p *Program) Value        { return Value{Kind: KindCode, Code: p} }

// normalizeBigIntDigits strips a redundant leading zero-padding a frontend
// might emit (e.g. "007") while preserving sign and the literal "0" case,
// so that two textually different but numerically equal big-int literals
// hash and compare equal in the constant pool.
func normalizeBigIntDigits(digits string) string {
	neg := false
	i := 0
	if len(digits) > 0 && (digits[0] == '-' || digits[0] == '+') {
		neg = digits[0] == '-'
		i = 1
	}
	for i < len(digits)-1 && digits[i] == '0' {
		i++
	}
	rest := digits[i:]
	if rest == "" {
		rest = "0"
	}
	if neg && rest != "0" {
		return "-" + rest
	}
	return rest
}

// structuralKey renders v as a byte sequence that two structurally-equal
// Values always produce identically, for both hashing and deep-equality
// comparison in the constant pool.
func (v Value) structuralKey() []byte {
	var buf []byte
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindNone:
	case KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		buf = appendUint64(buf, uint64(v.Int))
	case KindBigInt:
		buf = append(buf, []byte(v.BigInt)...)
	case KindFloat:
		buf = appendUint64(buf, math.Float64bits(v.Float))
	case KindComplex:
		buf = appendUint64(buf, math.Float64bits(v.Real))
		buf = appendUint64(buf, math.Float64bits(v.Imag))
	case KindString:
		buf = append(buf, []byte(v.Str)...)
	case KindBytes:
		buf = append(buf, v.Bytes...)
	case KindTuple:
		for _, e := range v.Tuple {
			buf = append(buf, e.structuralKey()...)
		}
	case KindFrozenSet:
		for _, e := range v.Set {
			buf = append(buf, e.structuralKey()...)
		}
	case KindCode:
		// Code objects are exclusively owned by their enclosing Program and
		// are never deduplicated against one another by value; identity is
		// the pointer itself, so the key is the pointer's address and only
		// the very same code object hashes and compares equal.
		buf = append(buf, []byte(fmt.Sprintf("%p", v.Code))...)
	}
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// equal reports deep structural equality between two Values. Used after a
// hash match to rule out collisions before reusing a constant-pool index.
func (v Value) equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindBigInt:
		return v.BigInt == o.BigInt
	case KindFloat:
		return v.Float == o.Float
	case KindComplex:
		return v.Real == o.Real && v.Imag == o.Imag
	case KindString:
		return v.Str == o.Str
	case KindBytes:
		return string(v.Bytes) == string(o.Bytes)
	case KindTuple:
		if len(v.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range v.Tuple {
			if !v.Tuple[i].equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	case KindFrozenSet:
		if len(v.Set) != len(o.Set) {
			return false
		}
		for i := range v.Set {
			if !v.Set[i].equal(o.Set[i]) {
				return false
			}
		}
		return true
	case KindCode:
		return v.Code == o.Code
	}
	return false
}
