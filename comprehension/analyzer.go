package comprehension

import "github.com/corelang/pyaot/pyast"

// Analyze inspects a single comprehension and returns its SimdPlan and/or
// ParallelPlan verdicts, either of which may be nil independently: a
// SIMD-qualifying kernel is always pure, so it can also carry a
// ParallelPlan over the same range domain.
func Analyze(comp *pyast.Comp) (*SimdPlan, *ParallelPlan) {
	if comp == nil || len(comp.Generators) != 1 {
		return nil, nil
	}
	gen := comp.Generators[0]
	if len(gen.Ifs) != 0 {
		return nil, nil
	}
	loopVar, ok := gen.Target.(*pyast.Name)
	if !ok {
		return nil, nil
	}
	bounds := rangeBounds(gen.Iter)

	var simd *SimdPlan
	op, isKernel := kernelOp(comp.Elt, loopVar.Id)
	if isKernel && isRangeCall(gen.Iter) {
		// No static type system is available from the frontend AST, so the
		// element type always defaults to the widest safe integer width;
		// narrower (32-bit) element types would use vector_width 8.
		simd = &SimdPlan{
			ElementType: I64,
			Op:          op,
			VectorWidth: 4,
			Bounds:      bounds,
		}
	}

	// A SIMD kernel element is always pure by construction (kernelOp only
	// recognises literal/loop-variable arithmetic), so SimdPlan and
	// ParallelPlan are independent verdicts, not mutually exclusive.
	if (isKernel || isPureElement(comp.Elt, loopVar.Id)) && isRangeCall(gen.Iter) {
		var domainSize *int64
		worth := false
		if bounds != nil {
			size := bounds.Size()
			domainSize = &size
			worth = size >= defaultMinParallelSize
		}
		parallelOp := "element"
		if isKernel {
			parallelOp = op.String()
		}
		return simd, &ParallelPlan{
			MinParallelSize:    defaultMinParallelSize,
			Op:                 parallelOp,
			DomainSize:         domainSize,
			WorthParallelizing: worth,
		}
	}

	return simd, nil
}

// kernelOp recognises the narrow set of element-expression shapes that
// qualify for SIMD lowering: a bare loop-variable read (copy), `lv op C` or
// `C op lv` for a literal integer C (sub/div/shift require lv on the left;
// add/mul/bitwise commute), `lv * lv` (square), and unary negation of lv.
func kernelOp(elt pyast.Expr, loopVar string) (Op, bool) {
	switch e := elt.(type) {
	case *pyast.Name:
		if e.Id == loopVar {
			return OpCopy, true
		}
	case *pyast.UnaryOp:
		if e.Op == pyast.UnaryNeg {
			if n, ok := e.Operand.(*pyast.Name); ok && n.Id == loopVar {
				return OpNeg, true
			}
		}
	case *pyast.BinOp:
		leftIsVar := isLoopVarRead(e.Left, loopVar)
		rightIsVar := isLoopVarRead(e.Right, loopVar)
		if leftIsVar && rightIsVar {
			if e.Op == pyast.OpMul {
				return OpSquare, true
			}
			return 0, false
		}
		var litSide pyast.Expr
		switch {
		case leftIsVar:
			litSide = e.Right
		case rightIsVar:
			litSide = e.Left
		default:
			return 0, false
		}
		if !isIntLiteral(litSide) {
			return 0, false
		}
		commutes := map[pyast.BinOpKind]Op{
			pyast.OpAdd:    OpAdd,
			pyast.OpMul:    OpMul,
			pyast.OpBitAnd: OpBitAnd,
			pyast.OpBitOr:  OpBitOr,
			pyast.OpBitXor: OpBitXor,
		}
		leftOnly := map[pyast.BinOpKind]Op{
			pyast.OpSub:      OpSub,
			pyast.OpDiv:      OpDiv,
			pyast.OpFloorDiv: OpDiv,
			pyast.OpLShift:   OpShl,
			pyast.OpRShift:   OpShr,
		}
		if op, ok := commutes[e.Op]; ok {
			return op, true
		}
		if op, ok := leftOnly[e.Op]; ok && leftIsVar {
			return op, true
		}
	}
	return 0, false
}

func isLoopVarRead(e pyast.Expr, loopVar string) bool {
	n, ok := e.(*pyast.Name)
	return ok && n.Id == loopVar
}

func isIntLiteral(e pyast.Expr) bool {
	c, ok := e.(*pyast.Constant)
	return ok && (c.Kind == pyast.ConstInt || c.Kind == pyast.ConstBigInt)
}

// isPureElement reports whether elt contains nothing but literals, reads of
// loopVar, and binary/unary combinations thereof: no calls, attribute reads,
// or subscript reads.
func isPureElement(elt pyast.Expr, loopVar string) bool {
	pure := true
	pyast.Inspect(elt, func(node pyast.Node) bool {
		switch n := node.(type) {
		case *pyast.Call, *pyast.Attribute, *pyast.Subscript:
			pure = false
			return false
		case *pyast.Name:
			if n.Id != loopVar {
				pure = false
			}
		}
		return true
	})
	return pure
}

func isRangeCall(iter pyast.Expr) bool {
	call, ok := iter.(*pyast.Call)
	if !ok {
		return false
	}
	name, ok := call.Func.(*pyast.Name)
	return ok && name.Id == "range"
}

// rangeBounds extracts static (start, stop, step) from a range(...) call
// whose arguments are all integer literals. Returns nil if iter is not a
// range call or any argument is not a static integer.
func rangeBounds(iter pyast.Expr) *RangeBounds {
	call, ok := iter.(*pyast.Call)
	if !ok {
		return nil
	}
	name, ok := call.Func.(*pyast.Name)
	if !ok || name.Id != "range" {
		return nil
	}
	args := call.Args
	var start, stop, step int64 = 0, 0, 1
	intOf := func(e pyast.Expr) (int64, bool) {
		c, ok := e.(*pyast.Constant)
		if !ok || c.Kind != pyast.ConstInt {
			return 0, false
		}
		v, ok := c.Value.(int64)
		return v, ok
	}
	switch len(args) {
	case 1:
		v, ok := intOf(args[0])
		if !ok {
			return nil
		}
		stop = v
	case 2:
		a, ok1 := intOf(args[0])
		b, ok2 := intOf(args[1])
		if !ok1 || !ok2 {
			return nil
		}
		start, stop = a, b
	case 3:
		a, ok1 := intOf(args[0])
		b, ok2 := intOf(args[1])
		c, ok3 := intOf(args[2])
		if !ok1 || !ok2 || !ok3 {
			return nil
		}
		start, stop, step = a, b, c
	default:
		return nil
	}
	return &RangeBounds{Start: start, Stop: stop, Step: step}
}
