package vm

import (
	"fmt"
	"strconv"
)

// defaultBuiltins mirrors the handful of Python builtins an eval/exec
// snippet realistically calls; this is not an attempt at full coverage of
// CPython's builtin namespace, only the ones the spec's testable properties
// and the compiler's own codegen (AssertionError, the implicit `range` a
// `for i in range(n)` loop needs) depend on.
func defaultBuiltins() map[string]Value {
	return map[string]Value{
		"len": builtinFunc("len", func(args []Value) (Value, error) {
			if len(args) != 1 {
				return Value{}, typeError("len() takes exactly one argument")
			}
			switch v := args[0]; v.Kind {
			case KindString:
				return IntValue(int64(len([]rune(v.Str)))), nil
			case KindList:
				return IntValue(int64(len(v.List.Elts))), nil
			case KindTuple:
				return IntValue(int64(len(v.Tuple))), nil
			case KindDict:
				return IntValue(int64(len(v.Dict.Keys))), nil
			case KindSet:
				return IntValue(int64(len(v.Set.Elts))), nil
			default:
				return Value{}, typeError("object has no len()")
			}
		}),
		"range": builtinFunc("range", func(args []Value) (Value, error) {
			var start, stop, step int64 = 0, 0, 1
			switch len(args) {
			case 1:
				stop = args[0].Int
			case 2:
				start, stop = args[0].Int, args[1].Int
			case 3:
				start, stop, step = args[0].Int, args[1].Int, args[2].Int
			default:
				return Value{}, typeError("range() takes 1 to 3 arguments")
			}
			if step == 0 {
				return Value{}, typeError("range() step must not be zero")
			}
			var elts []Value
			for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
				elts = append(elts, IntValue(i))
			}
			return ListValue(elts), nil
		}),
		"str": builtinFunc("str", func(args []Value) (Value, error) {
			if len(args) != 1 {
				return Value{}, typeError("str() takes exactly one argument")
			}
			return StringValue(displayString(args[0])), nil
		}),
		"abs": builtinFunc("abs", func(args []Value) (Value, error) {
			if len(args) != 1 {
				return Value{}, typeError("abs() takes exactly one argument")
			}
			v := args[0]
			if v.Kind == KindFloat {
				if v.Float < 0 {
					return FloatValue(-v.Float), nil
				}
				return v, nil
			}
			n := intOf(v)
			if n < 0 {
				n = -n
			}
			return IntValue(n), nil
		}),
		"print": builtinFunc("print", func(args []Value) (Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = displayString(a)
			}
			fmt.Println(joinStrings(parts, " "))
			return NoneValue(), nil
		}),
		"AssertionError": builtinFunc("AssertionError", func(args []Value) (Value, error) {
			return ExceptionValue(&Exception{Type: "AssertionError", Args: args}), nil
		}),
	}
}

func builtinFunc(name string, fn func(args []Value) (Value, error)) Value {
	return Value{Kind: KindFunction, Func: &Function{Name: name, Builtin: fn}}
}

func displayString(v Value) string {
	switch v.Kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return fmt.Sprintf("%v", v)
	}
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
