package compiler

import (
	"fmt"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
)

func (c *Compiler) compileExpr(e pyast.Expr) error {
	c.setLine(e.Position())
	switch n := e.(type) {
	case *pyast.Name:
		c.loadName(n.Id)
		return nil
	case *pyast.Constant:
		return c.compileConstant(n)
	case *pyast.BinOp:
		return c.compileBinOp(n)
	case *pyast.UnaryOp:
		return c.compileUnaryOp(n)
	case *pyast.BoolOp:
		return c.compileBoolOp(n)
	case *pyast.Compare:
		return c.compileCompare(n)
	case *pyast.Call:
		return c.compileCall(n)
	case *pyast.Attribute:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		idx := c.internName(n.Attr)
		c.emit(bytecode.LoadAttr, uint32(idx))
		return nil
	case *pyast.Subscript:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		if err := c.compileExpr(n.Index); err != nil {
			return err
		}
		c.emit(bytecode.BinarySubscr, 0)
		return nil
	case *pyast.Slice:
		return c.compileSlice(n)
	case *pyast.Tuple:
		for _, elt := range n.Elts {
			if err := c.compileExpr(elt); err != nil {
				return err
			}
		}
		c.emit(bytecode.BuildTuple, uint32(len(n.Elts)))
		return nil
	case *pyast.List:
		for _, elt := range n.Elts {
			if err := c.compileExpr(elt); err != nil {
				return err
			}
		}
		c.emit(bytecode.BuildList, uint32(len(n.Elts)))
		return nil
	case *pyast.Set:
		for _, elt := range n.Elts {
			if err := c.compileExpr(elt); err != nil {
				return err
			}
		}
		c.emit(bytecode.BuildSet, uint32(len(n.Elts)))
		return nil
	case *pyast.Dict:
		for _, entry := range n.Entries {
			if err := c.compileExpr(entry.Key); err != nil {
				return err
			}
			if err := c.compileExpr(entry.Value); err != nil {
				return err
			}
		}
		c.emit(bytecode.BuildMap, uint32(len(n.Entries)))
		return nil
	case *pyast.Comp:
		return c.compileComp(n)
	case *pyast.IfExp:
		return c.compileIfExp(n)
	case *pyast.Lambda:
		return c.compileLambda(n)
	case *pyast.Await:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(bytecode.GetAwaitable, 0)
		return nil
	case *pyast.Yield:
		if n.Value != nil {
			if err := c.compileExpr(n.Value); err != nil {
				return err
			}
		} else {
			idx := c.constants.Intern(bytecode.NoneValue())
			c.emit(bytecode.LoadConst, uint32(idx))
		}
		c.emit(bytecode.YieldValue, 0)
		return nil
	case *pyast.YieldFrom:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(bytecode.GetIter, 0)
		c.emit(bytecode.YieldValue, 0)
		return nil
	case *pyast.FormattedValue:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		flag := uint32(0)
		if n.FormatSpec != nil {
			if err := c.compileExpr(n.FormatSpec); err != nil {
				return err
			}
			flag |= 0x4
		}
		c.emit(bytecode.FormatValue, flag)
		return nil
	case *pyast.JoinedStr:
		for _, part := range n.Parts {
			if err := c.compileExpr(part); err != nil {
				return err
			}
		}
		c.emit(bytecode.BuildString, uint32(len(n.Parts)))
		return nil
	case *pyast.Starred:
		return c.compileExpr(n.Value)
	default:
		return fmt.Errorf("expression %T: %w", e, errs.ErrUnsupportedExpression)
	}
}

func (c *Compiler) loadName(name string) {
	switch c.classify(name) {
	case scopeFast:
		c.emit(bytecode.LoadFast, uint32(c.internVarname(name)))
	case scopeDeref:
		c.emit(bytecode.LoadDeref, uint32(c.internFreevar(name)))
	case scopeGlobal:
		c.emit(bytecode.LoadGlobal, uint32(c.internName(name)))
	default:
		c.emit(bytecode.LoadName, uint32(c.internName(name)))
	}
}

func (c *Compiler) compileConstant(n *pyast.Constant) error {
	v, err := constantValue(n)
	if err != nil {
		return err
	}
	idx := c.constants.Intern(v)
	c.emit(bytecode.LoadConst, uint32(idx))
	return nil
}

func constantValue(n *pyast.Constant) (bytecode.Value, error) {
	switch n.Kind {
	case pyast.ConstNone:
		return bytecode.NoneValue(), nil
	case pyast.ConstBool:
		b, _ := n.Value.(bool)
		return bytecode.BoolValue(b), nil
	case pyast.ConstInt:
		i, _ := n.Value.(int64)
		return bytecode.IntValue(i), nil
	case pyast.ConstBigInt:
		s, _ := n.Value.(string)
		return bytecode.BigIntValue(s), nil
	case pyast.ConstFloat:
		f, _ := n.Value.(float64)
		return bytecode.FloatValue(f), nil
	case pyast.ConstComplex:
		z, _ := n.Value.(complex128)
		return bytecode.ComplexValue(real(z), imag(z)), nil
	case pyast.ConstString:
		s, _ := n.Value.(string)
		return bytecode.StringValue(s), nil
	case pyast.ConstBytes:
		b, _ := n.Value.([]byte)
		return bytecode.BytesValue(b), nil
	default:
		return bytecode.Value{}, fmt.Errorf("constant kind %v: %w", n.Kind, errs.ErrUnsupportedExpression)
	}
}

func binaryOpFor(op pyast.BinOpKind) (bytecode.Opcode, bool) {
	switch op {
	case pyast.OpAdd:
		return bytecode.BinaryAdd, true
	case pyast.OpSub:
		return bytecode.BinarySubtract, true
	case pyast.OpMul:
		return bytecode.BinaryMultiply, true
	case pyast.OpDiv:
		return bytecode.BinaryTrueDivide, true
	case pyast.OpFloorDiv:
		return bytecode.BinaryFloorDivide, true
	case pyast.OpMod:
		return bytecode.BinaryModulo, true
	case pyast.OpPow:
		return bytecode.BinaryPower, true
	case pyast.OpBitAnd:
		return bytecode.BinaryAnd, true
	case pyast.OpBitOr:
		return bytecode.BinaryOr, true
	case pyast.OpBitXor:
		return bytecode.BinaryXor, true
	case pyast.OpLShift:
		return bytecode.BinaryLShift, true
	case pyast.OpRShift:
		return bytecode.BinaryRShift, true
	case pyast.OpMatMul:
		return bytecode.BinaryMatrixMultiply, true
	default:
		return 0, false
	}
}

func (c *Compiler) compileBinOp(n *pyast.BinOp) error {
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	op, ok := binaryOpFor(n.Op)
	if !ok {
		return fmt.Errorf("binary operator %v: %w", n.Op, errs.ErrUnsupportedOperator)
	}
	c.emit(op, 0)
	return nil
}

func (c *Compiler) compileUnaryOp(n *pyast.UnaryOp) error {
	if err := c.compileExpr(n.Operand); err != nil {
		return err
	}
	var op bytecode.Opcode
	switch n.Op {
	case pyast.UnaryNeg:
		op = bytecode.UnaryNegative
	case pyast.UnaryPos:
		op = bytecode.UnaryPositive
	case pyast.UnaryNot:
		op = bytecode.UnaryNot
	case pyast.UnaryInvert:
		op = bytecode.UnaryInvert
	default:
		return fmt.Errorf("unary operator %v: %w", n.Op, errs.ErrUnsupportedOperator)
	}
	c.emit(op, 0)
	return nil
}

// compileBoolOp lowers a chain of `and`/`or` with the standard short-circuit
// opcodes: JUMP_IF_FALSE_OR_POP for `and`, JUMP_IF_TRUE_OR_POP for `or`,
// each leaving the short-circuiting operand on the stack as the result.
func (c *Compiler) compileBoolOp(n *pyast.BoolOp) error {
	jumpOp := bytecode.JumpIfFalseOrPop
	if n.Op == pyast.BoolOr {
		jumpOp = bytecode.JumpIfTrueOrPop
	}
	var patches []int
	for i, v := range n.Values {
		if err := c.compileExpr(v); err != nil {
			return err
		}
		if i < len(n.Values)-1 {
			patches = append(patches, c.emit(jumpOp, 0))
		}
	}
	end := c.here()
	for _, p := range patches {
		c.patchTo(p, end)
	}
	return nil
}

func cmpOpArg(op pyast.CmpOpKind) uint32 { return uint32(op) }

// compileCompare lowers a chained comparison left-to-right, short-circuiting
// on the first false operand (CPython's COMPARE_OP chaining discipline).
func (c *Compiler) compileCompare(n *pyast.Compare) error {
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	var patches []int
	for i, cmp := range n.Comparators {
		if err := c.compileExpr(cmp); err != nil {
			return err
		}
		if i < len(n.Comparators)-1 {
			c.emit(bytecode.DupTop, 0)
			c.emit(bytecode.RotThree, 0)
		}
		c.emit(bytecode.CompareOp, cmpOpArg(n.Ops[i]))
		if i < len(n.Comparators)-1 {
			patches = append(patches, c.emit(bytecode.JumpIfFalseOrPop, 0))
		}
	}
	if len(patches) == 0 {
		return nil
	}
	done := c.emit(bytecode.JumpForward, 0)
	// A false link lands here with the duplicated middle operand still
	// beneath the False result; drop it so only the result remains.
	cleanup := c.here()
	for _, p := range patches {
		c.patchTo(p, cleanup)
	}
	c.track(1)
	c.emit(bytecode.RotTwo, 0)
	c.emit(bytecode.PopTop, 0)
	c.patchTo(done, c.here())
	return nil
}

func (c *Compiler) compileCall(n *pyast.Call) error {
	if err := c.compileExpr(n.Func); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	if len(n.Keywords) == 0 {
		c.emit(bytecode.CallFunction, uint32(len(n.Args)))
		return nil
	}
	for _, kw := range n.Keywords {
		if err := c.compileExpr(kw.Value); err != nil {
			return err
		}
	}
	c.emit(bytecode.CallFunctionKw, uint32(len(n.Args)+len(n.Keywords)))
	return nil
}

func (c *Compiler) compileSlice(n *pyast.Slice) error {
	argc := uint32(2)
	if n.Lower != nil {
		if err := c.compileExpr(n.Lower); err != nil {
			return err
		}
	} else {
		idx := c.constants.Intern(bytecode.NoneValue())
		c.emit(bytecode.LoadConst, uint32(idx))
	}
	if n.Upper != nil {
		if err := c.compileExpr(n.Upper); err != nil {
			return err
		}
	} else {
		idx := c.constants.Intern(bytecode.NoneValue())
		c.emit(bytecode.LoadConst, uint32(idx))
	}
	if n.Step != nil {
		if err := c.compileExpr(n.Step); err != nil {
			return err
		}
		argc = 3
	}
	c.emit(bytecode.BuildSlice, argc)
	return nil
}

func (c *Compiler) compileIfExp(n *pyast.IfExp) error {
	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	elseJump := c.emit(bytecode.PopJumpIfFalse, 0)
	if err := c.compileExpr(n.Body); err != nil {
		return err
	}
	endJump := c.emit(bytecode.JumpForward, 0)
	c.patchTo(elseJump, c.here())
	if err := c.compileExpr(n.Orelse); err != nil {
		return err
	}
	c.patchTo(endJump, c.here())
	return nil
}

func (c *Compiler) compileLambda(n *pyast.Lambda) error {
	fn := &pyast.FunctionDef{Name: "<lambda>", Params: n.Params, Body: []pyast.Stmt{&pyast.Return{Value: n.Body}}}
	sym, err := resolver.Resolve(fn)
	if err != nil {
		return err
	}
	nested, err := Compile(fn, sym)
	if err != nil {
		return err
	}
	idx := c.constants.Intern(bytecode.CodeValue(nested))
	c.emit(bytecode.LoadConst, uint32(idx))
	nameIdx := c.constants.Intern(bytecode.StringValue("<lambda>"))
	c.emit(bytecode.LoadConst, uint32(nameIdx))
	c.emit(bytecode.MakeFunction, 0)
	return nil
}

// compileComp lowers a list/set/dict comprehension or generator expression
// into an explicit accumulator plus nested FOR_ITER loops: the general
// fallback every comprehension compiles to regardless of whether it also
// qualifies for a SimdPlan/ParallelPlan fast path (that verdict belongs to
// the native-emission pipeline, not this bytecode lowering).
func (c *Compiler) compileComp(n *pyast.Comp) error {
	switch n.Kind {
	case pyast.CompList, pyast.CompGenerator:
		c.emit(bytecode.BuildList, 0)
	case pyast.CompSet:
		c.emit(bytecode.BuildSet, 0)
	case pyast.CompDict:
		c.emit(bytecode.BuildMap, 0)
	}
	if err := c.compileCompGenerators(n, 0); err != nil {
		return err
	}
	return nil
}

func (c *Compiler) compileCompGenerators(n *pyast.Comp, depth int) error {
	if depth == len(n.Generators) {
		switch n.Kind {
		case pyast.CompDict:
			if err := c.compileExpr(n.Key); err != nil {
				return err
			}
			if err := c.compileExpr(n.Elt); err != nil {
				return err
			}
			c.emit(bytecode.MapAdd, uint32(depth))
		case pyast.CompSet:
			if err := c.compileExpr(n.Elt); err != nil {
				return err
			}
			c.emit(bytecode.SetAdd, uint32(depth))
		default:
			if err := c.compileExpr(n.Elt); err != nil {
				return err
			}
			c.emit(bytecode.ListAppend, uint32(depth))
		}
		return nil
	}

	gen := n.Generators[depth]
	if err := c.compileExpr(gen.Iter); err != nil {
		return err
	}
	c.emit(bytecode.GetIter, 0)
	start := c.here()
	c.loopStack = append(c.loopStack, loopCtx{start: start})
	forIter := c.emit(bytecode.ForIter, 0)
	if err := c.compileStoreTarget(gen.Target); err != nil {
		return err
	}

	var skipPatches []int
	for _, cond := range gen.Ifs {
		if err := c.compileExpr(cond); err != nil {
			return err
		}
		skipPatches = append(skipPatches, c.emit(bytecode.PopJumpIfFalse, 0))
	}

	if err := c.compileCompGenerators(n, depth+1); err != nil {
		return err
	}

	cont := c.here()
	for _, p := range skipPatches {
		c.patchTo(p, cont)
	}
	c.emit(bytecode.JumpAbsolute, uint32(start))
	end := c.here()
	c.patchTo(forIter, end)

	top := c.loopStack[len(c.loopStack)-1]
	for _, j := range top.breakJumps {
		c.patchTo(j, end)
	}
	for _, j := range top.continueJumps {
		c.patchTo(j, start)
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	return nil
}
