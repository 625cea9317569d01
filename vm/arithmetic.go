package vm

import "github.com/corelang/pyaot/bytecode"

// binaryArith implements BINARY_*/INPLACE_* (the in-place opcodes share the
// same semantics here; this VM has no refcount-based in-place fast path) for
// numeric operands, plus the handful of string/list ops Python overloads
// (+ for concatenation, * for repetition).
func binaryArith(op bytecode.Opcode, left, right Value) (Value, error) {
	switch op {
	case bytecode.BinaryAdd, bytecode.InplaceAdd:
		if left.Kind == KindString && right.Kind == KindString {
			return StringValue(left.Str + right.Str), nil
		}
		if left.Kind == KindList && right.Kind == KindList {
			elts := append(append([]Value{}, left.List.Elts...), right.List.Elts...)
			return ListValue(elts), nil
		}
		return numericOp(left, right, func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b })
	case bytecode.BinarySubtract, bytecode.InplaceSubtract:
		return numericOp(left, right, func(a, b float64) float64 { return a - b }, func(a, b int64) int64 { return a - b })
	case bytecode.BinaryMultiply, bytecode.InplaceMultiply:
		if left.Kind == KindString && right.Kind == KindInt {
			return repeatString(left.Str, right.Int), nil
		}
		return numericOp(left, right, func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b })
	case bytecode.BinaryTrueDivide, bytecode.InplaceTrueDivide:
		r := numeric(right)
		if r == 0 {
			return Value{}, zeroDivisionError()
		}
		return FloatValue(numeric(left) / r), nil
	case bytecode.BinaryFloorDivide, bytecode.InplaceFloorDivide:
		if right.Kind == KindInt && left.Kind == KindInt {
			if right.Int == 0 {
				return Value{}, zeroDivisionError()
			}
			q := left.Int / right.Int
			if (left.Int%right.Int != 0) && ((left.Int < 0) != (right.Int < 0)) {
				q--
			}
			return IntValue(q), nil
		}
		r := numeric(right)
		if r == 0 {
			return Value{}, zeroDivisionError()
		}
		return FloatValue(floorFloat(numeric(left) / r)), nil
	case bytecode.BinaryModulo, bytecode.InplaceModulo:
		if right.Kind == KindInt && left.Kind == KindInt {
			if right.Int == 0 {
				return Value{}, zeroDivisionError()
			}
			m := left.Int % right.Int
			if m != 0 && ((m < 0) != (right.Int < 0)) {
				m += right.Int
			}
			return IntValue(m), nil
		}
		return numericOp(left, right, modFloat, func(a, b int64) int64 { return a % b })
	case bytecode.BinaryPower, bytecode.InplacePower:
		return FloatValue(powFloat(numeric(left), numeric(right))), nil
	case bytecode.BinaryAnd, bytecode.InplaceAnd:
		return intOp(left, right, func(a, b int64) int64 { return a & b })
	case bytecode.BinaryOr, bytecode.InplaceOr:
		return intOp(left, right, func(a, b int64) int64 { return a | b })
	case bytecode.BinaryXor, bytecode.InplaceXor:
		return intOp(left, right, func(a, b int64) int64 { return a ^ b })
	case bytecode.BinaryLShift, bytecode.InplaceLShift:
		return intOp(left, right, func(a, b int64) int64 { return a << uint(b) })
	case bytecode.BinaryRShift, bytecode.InplaceRShift:
		return intOp(left, right, func(a, b int64) int64 { return a >> uint(b) })
	default:
		return Value{}, typeError("unsupported binary operator")
	}
}

func numericOp(left, right Value, floatFn func(a, b float64) float64, intFn func(a, b int64) int64) (Value, error) {
	if !isNumeric(left.Kind) || !isNumeric(right.Kind) {
		return Value{}, typeError("operand is not numeric")
	}
	if left.Kind == KindFloat || right.Kind == KindFloat {
		return FloatValue(floatFn(numeric(left), numeric(right))), nil
	}
	return IntValue(intFn(intOf(left), intOf(right))), nil
}

func intOp(left, right Value, fn func(a, b int64) int64) (Value, error) {
	if left.Kind != KindInt && left.Kind != KindBool {
		return Value{}, typeError("bitwise operand must be an int")
	}
	if right.Kind != KindInt && right.Kind != KindBool {
		return Value{}, typeError("bitwise operand must be an int")
	}
	return IntValue(fn(intOf(left), intOf(right))), nil
}

func intOf(v Value) int64 {
	if v.Kind == KindBool {
		if v.Bool {
			return 1
		}
		return 0
	}
	return v.Int
}

func repeatString(s string, n int64) Value {
	if n <= 0 {
		return StringValue("")
	}
	out := make([]byte, 0, int64(len(s))*n)
	for i := int64(0); i < n; i++ {
		out = append(out, s...)
	}
	return StringValue(string(out))
}

func floorFloat(f float64) float64 {
	i := int64(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return float64(i)
}

func modFloat(a, b float64) float64 {
	m := a - floorFloat(a/b)*b
	return m
}

func powFloat(a, b float64) float64 {
	result := 1.0
	neg := b < 0
	n := b
	if neg {
		n = -n
	}
	for i := int64(0); i < int64(n); i++ {
		result *= a
	}
	if neg {
		return 1 / result
	}
	return result
}

func unaryOp(op bytecode.Opcode, v Value) (Value, error) {
	switch op {
	case bytecode.UnaryNegative:
		if v.Kind == KindFloat {
			return FloatValue(-v.Float), nil
		}
		return IntValue(-intOf(v)), nil
	case bytecode.UnaryPositive:
		return v, nil
	case bytecode.UnaryNot:
		return BoolValue(!v.Truthy()), nil
	case bytecode.UnaryInvert:
		if v.Kind != KindInt && v.Kind != KindBool {
			return Value{}, typeError("bitwise invert requires an int")
		}
		return IntValue(^intOf(v)), nil
	default:
		return Value{}, typeError("unsupported unary operator")
	}
}
