package compiler

import (
	"fmt"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
)

func (c *Compiler) compileStmt(s pyast.Stmt) error {
	c.setLine(s.Position())
	switch n := s.(type) {
	case *pyast.ExprStmt:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(bytecode.PopTop, 0)
		return nil
	case *pyast.Assign:
		return c.compileAssign(n)
	case *pyast.AugAssign:
		return c.compileAugAssign(n)
	case *pyast.AnnAssign:
		if n.Value == nil {
			return nil // annotation-only declaration has no runtime effect
		}
		return c.compileStoreValue(n.Value, n.Target)
	case *pyast.Return:
		if n.Value != nil {
			if err := c.compileExpr(n.Value); err != nil {
				return err
			}
		} else {
			idx := c.constants.Intern(bytecode.NoneValue())
			c.emit(bytecode.LoadConst, uint32(idx))
		}
		c.emit(bytecode.ReturnValue, 0)
		return nil
	case *pyast.If:
		return c.compileIf(n)
	case *pyast.While:
		return c.compileWhile(n)
	case *pyast.For:
		return c.compileFor(n)
	case *pyast.Break:
		if len(c.loopStack) == 0 {
			return fmt.Errorf("break statement: %w", errs.ErrBreakOutsideLoop)
		}
		idx := c.emit(bytecode.JumpForward, 0)
		top := len(c.loopStack) - 1
		c.loopStack[top].breakJumps = append(c.loopStack[top].breakJumps, idx)
		return nil
	case *pyast.Continue:
		if len(c.loopStack) == 0 {
			return fmt.Errorf("continue statement: %w", errs.ErrContinueOutsideLoop)
		}
		idx := c.emit(bytecode.JumpForward, 0)
		top := len(c.loopStack) - 1
		c.loopStack[top].continueJumps = append(c.loopStack[top].continueJumps, idx)
		return nil
	case *pyast.Raise:
		return c.compileRaise(n)
	case *pyast.Try:
		return c.compileTry(n)
	case *pyast.Assert:
		return c.compileAssert(n)
	case *pyast.Import:
		for _, alias := range n.Names {
			idx := c.internName(alias.Name)
			c.emit(bytecode.ImportName, uint32(idx))
			storeName := alias.Name
			if alias.Alias != "" {
				storeName = alias.Alias
			}
			c.storeName(storeName)
		}
		return nil
	case *pyast.ImportFrom:
		modIdx := c.internName(n.Module)
		c.emit(bytecode.ImportName, uint32(modIdx))
		for _, alias := range n.Names {
			nameIdx := c.internName(alias.Name)
			c.emit(bytecode.ImportFrom, uint32(nameIdx))
			storeName := alias.Name
			if alias.Alias != "" {
				storeName = alias.Alias
			}
			c.storeName(storeName)
		}
		c.emit(bytecode.PopTop, 0) // discard the module object left by IMPORT_NAME
		return nil
	case *pyast.Pass:
		return nil
	case *pyast.Global, *pyast.Nonlocal:
		return nil // pure scope declarations, already consumed by NameResolver
	case *pyast.Delete:
		for _, t := range n.Targets {
			if err := c.compileDelete(t); err != nil {
				return err
			}
		}
		return nil
	case *pyast.With:
		return c.compileWith(n)
	case *pyast.FunctionDef:
		return c.compileNestedFunction(n)
	case *pyast.ClassDef:
		return c.compileClass(n)
	default:
		return fmt.Errorf("statement %T: %w", s, errs.ErrUnsupportedStatement)
	}
}

func (c *Compiler) compileAssign(n *pyast.Assign) error {
	if err := c.compileExpr(n.Value); err != nil {
		return err
	}
	for i, target := range n.Targets {
		if i < len(n.Targets)-1 {
			c.emit(bytecode.DupTop, 0)
		}
		if err := c.compileStoreTarget(target); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStoreValue(value pyast.Expr, target pyast.Expr) error {
	if err := c.compileExpr(value); err != nil {
		return err
	}
	return c.compileStoreTarget(target)
}

func (c *Compiler) compileAugAssign(n *pyast.AugAssign) error {
	if err := c.compileExpr(n.Target); err != nil {
		return err
	}
	if err := c.compileExpr(n.Value); err != nil {
		return err
	}
	op, ok := inplaceOpFor(n.Op)
	if !ok {
		return fmt.Errorf("augmented assign operator %v: %w", n.Op, errs.ErrUnsupportedOperator)
	}
	c.emit(op, 0)
	return c.compileStoreTarget(n.Target)
}

// compileStoreTarget emits the store sequence for a single assignment
// target: a bare name, an attribute, a subscript, or a tuple/list unpack.
func (c *Compiler) compileStoreTarget(target pyast.Expr) error {
	switch t := target.(type) {
	case *pyast.Name:
		c.storeName(t.Id)
		return nil
	case *pyast.Attribute:
		if err := c.compileExpr(t.Value); err != nil {
			return err
		}
		idx := c.internName(t.Attr)
		c.emit(bytecode.StoreAttr, uint32(idx))
		return nil
	case *pyast.Subscript:
		if err := c.compileExpr(t.Value); err != nil {
			return err
		}
		if err := c.compileExpr(t.Index); err != nil {
			return err
		}
		c.emit(bytecode.StoreSubscr, 0)
		return nil
	case *pyast.Tuple:
		c.emit(bytecode.UnpackSequence, uint32(len(t.Elts)))
		for _, elt := range t.Elts {
			if err := c.compileStoreTarget(elt); err != nil {
				return err
			}
		}
		return nil
	case *pyast.List:
		c.emit(bytecode.UnpackSequence, uint32(len(t.Elts)))
		for _, elt := range t.Elts {
			if err := c.compileStoreTarget(elt); err != nil {
				return err
			}
		}
		return nil
	case *pyast.Starred:
		return c.compileStoreTarget(t.Value)
	default:
		return fmt.Errorf("store target %T: %w", target, errs.ErrInvalidStoreTarget)
	}
}

func (c *Compiler) compileDelete(target pyast.Expr) error {
	switch t := target.(type) {
	case *pyast.Name:
		idx := c.internName(t.Id)
		switch c.classify(t.Id) {
		case scopeFast:
			c.emit(bytecode.DeleteFast, uint32(c.internVarname(t.Id)))
		default:
			c.emit(bytecode.DeleteName, uint32(idx))
		}
		return nil
	case *pyast.Attribute:
		if err := c.compileExpr(t.Value); err != nil {
			return err
		}
		idx := c.internName(t.Attr)
		c.emit(bytecode.DeleteAttr, uint32(idx))
		return nil
	case *pyast.Subscript:
		if err := c.compileExpr(t.Value); err != nil {
			return err
		}
		if err := c.compileExpr(t.Index); err != nil {
			return err
		}
		c.emit(bytecode.DeleteSubscr, 0)
		return nil
	default:
		return fmt.Errorf("delete target %T: %w", target, errs.ErrInvalidDeleteTarget)
	}
}

func (c *Compiler) storeName(name string) {
	switch c.classify(name) {
	case scopeFast:
		c.emit(bytecode.StoreFast, uint32(c.internVarname(name)))
	case scopeDeref:
		c.emit(bytecode.StoreDeref, uint32(c.internFreevar(name)))
	case scopeGlobal:
		c.emit(bytecode.StoreGlobal, uint32(c.internName(name)))
	default:
		c.emit(bytecode.StoreName, uint32(c.internName(name)))
	}
}

func inplaceOpFor(op pyast.BinOpKind) (bytecode.Opcode, bool) {
	switch op {
	case pyast.OpAdd:
		return bytecode.InplaceAdd, true
	case pyast.OpSub:
		return bytecode.InplaceSubtract, true
	case pyast.OpMul:
		return bytecode.InplaceMultiply, true
	case pyast.OpDiv:
		return bytecode.InplaceTrueDivide, true
	case pyast.OpFloorDiv:
		return bytecode.InplaceFloorDivide, true
	case pyast.OpMod:
		return bytecode.InplaceModulo, true
	case pyast.OpPow:
		return bytecode.InplacePower, true
	case pyast.OpBitAnd:
		return bytecode.InplaceAnd, true
	case pyast.OpBitOr:
		return bytecode.InplaceOr, true
	case pyast.OpBitXor:
		return bytecode.InplaceXor, true
	case pyast.OpLShift:
		return bytecode.InplaceLShift, true
	case pyast.OpRShift:
		return bytecode.InplaceRShift, true
	case pyast.OpMatMul:
		return bytecode.InplaceMatrixMultiply, true
	default:
		return 0, false
	}
}

func (c *Compiler) compileIf(n *pyast.If) error {
	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	elseJump := c.emit(bytecode.PopJumpIfFalse, 0)
	if err := c.compileBody(n.Body); err != nil {
		return err
	}
	endJump := c.emit(bytecode.JumpForward, 0)
	c.patchTo(elseJump, c.here())
	if err := c.compileBody(n.Orelse); err != nil {
		return err
	}
	c.patchTo(endJump, c.here())
	return nil
}

func (c *Compiler) compileWhile(n *pyast.While) error {
	start := c.here()
	c.loopStack = append(c.loopStack, loopCtx{start: start})

	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	exitJump := c.emit(bytecode.PopJumpIfFalse, 0)
	if err := c.compileBody(n.Body); err != nil {
		return err
	}
	c.emit(bytecode.JumpAbsolute, uint32(start))
	end := c.here()
	c.patchTo(exitJump, end)

	top := c.loopStack[len(c.loopStack)-1]
	for _, j := range top.breakJumps {
		c.patchTo(j, end)
	}
	for _, j := range top.continueJumps {
		c.patchTo(j, start)
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	return c.compileBody(n.Orelse)
}

func (c *Compiler) compileFor(n *pyast.For) error {
	if err := c.compileExpr(n.Iter); err != nil {
		return err
	}
	c.emit(bytecode.GetIter, 0)

	start := c.here()
	c.loopStack = append(c.loopStack, loopCtx{start: start})

	forIter := c.emit(bytecode.ForIter, 0)
	if err := c.compileStoreTarget(n.Target); err != nil {
		return err
	}
	if err := c.compileBody(n.Body); err != nil {
		return err
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

	return c.compileBody(n.Orelse)
}

func (c *Compiler) compileRaise(n *pyast.Raise) error {
	argc := 0
	if n.Exc != nil {
		if err := c.compileExpr(n.Exc); err != nil {
			return err
		}
		argc++
		if n.Cause != nil {
			if err := c.compileExpr(n.Cause); err != nil {
				return err
			}
			argc++
		}
	}
	c.emit(bytecode.RaiseVarargs, uint32(argc))
	return nil
}

func (c *Compiler) compileTry(n *pyast.Try) error {
	setup := c.emit(bytecode.SetupExcept, 0)
	if err := c.compileBody(n.Body); err != nil {
		return err
	}
	c.emit(bytecode.PopExcept, 0)
	noExceptJump := c.emit(bytecode.JumpForward, 0)

	c.patchTo(setup, c.here())
	for _, h := range n.Handlers {
		// The VM pushes the caught exception value before transferring control
		// here; bind it to the `as` name or discard it so the stack depth the
		// handler body starts from matches every other statement's.
		if h.Name != "" {
			c.storeName(h.Name)
		} else {
			c.emit(bytecode.PopTop, 0)
		}
		if err := c.compileBody(h.Body); err != nil {
			return err
		}
	}

	c.patchTo(noExceptJump, c.here())
	if err := c.compileBody(n.Orelse); err != nil {
		return err
	}
	return c.compileBody(n.Finally)
}

func (c *Compiler) compileAssert(n *pyast.Assert) error {
	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	passJump := c.emit(bytecode.PopJumpIfTrue, 0)

	idx := c.internName("AssertionError")
	c.emit(bytecode.LoadName, uint32(idx))
	argc := 0
	if n.Msg != nil {
		if err := c.compileExpr(n.Msg); err != nil {
			return err
		}
		argc = 1
		c.emit(bytecode.CallFunction, uint32(argc))
	}
	c.emit(bytecode.RaiseVarargs, 1)

	c.patchTo(passJump, c.here())
	return nil
}

func (c *Compiler) compileWith(n *pyast.With) error {
	// The opcode set has no SETUP_WITH/context-manager-protocol instruction;
	// a with-block is lowered to evaluating each context expression for its
	// side effect and binding its `as` target, matching an eval/exec
	// subsystem's narrower needs rather than the full protocol.
	for _, item := range n.Items {
		if err := c.compileExpr(item.ContextExpr); err != nil {
			return err
		}
		if item.OptionalVar != nil {
			if err := c.compileStoreTarget(item.OptionalVar); err != nil {
				return err
			}
		} else {
			c.emit(bytecode.PopTop, 0)
		}
	}
	return c.compileBody(n.Body)
}

func (c *Compiler) compileNestedFunction(n *pyast.FunctionDef) error {
	sym, err := resolver.Resolve(n)
	if err != nil {
		return err
	}
	nested, err := Compile(n, sym)
	if err != nil {
		return err
	}
	idx := c.constants.Intern(bytecode.CodeValue(nested))
	c.emit(bytecode.LoadConst, uint32(idx))
	nameIdx := c.constants.Intern(bytecode.StringValue(n.Name))
	c.emit(bytecode.LoadConst, uint32(nameIdx))
	c.emit(bytecode.MakeFunction, 0)
	c.storeName(n.Name)
	return nil
}

func (c *Compiler) compileClass(n *pyast.ClassDef) error {
	bodyFn := &pyast.FunctionDef{Name: n.Name, Body: n.Body}
	sym, err := resolver.Resolve(bodyFn)
	if err != nil {
		return err
	}
	nested, err := Compile(bodyFn, sym)
	if err != nil {
		return err
	}
	c.emit(bytecode.LoadBuildClass, 0)
	idx := c.constants.Intern(bytecode.CodeValue(nested))
	c.emit(bytecode.LoadConst, uint32(idx))
	nameIdx := c.constants.Intern(bytecode.StringValue(n.Name))
	c.emit(bytecode.LoadConst, uint32(nameIdx))
	for _, base := range n.Bases {
		if err := c.compileExpr(base); err != nil {
			return err
		}
	}
	c.emit(bytecode.BuildClass, uint32(len(n.Bases)))
	c.storeName(n.Name)
	return nil
}
