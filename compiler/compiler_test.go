package compiler

import (
	"testing"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, fn *pyast.FunctionDef) *resolver.SymbolTable {
	t.Helper()
	sym, err := resolver.Resolve(fn)
	require.NoError(t, err)
	return sym
}

func lastOp(p *bytecode.Program) bytecode.Opcode {
	return p.Instructions[len(p.Instructions)-1].Op
}

func TestCompile_SimpleReturn(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "add_one",
		Params: []pyast.Param{{Name: "x", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Return{Value: &pyast.BinOp{
				Left:  &pyast.Name{Id: "x"},
				Op:    pyast.OpAdd,
				Right: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
			}},
		},
	}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)

	assert.Equal(t, "add_one", p.Name)
	assert.Equal(t, []string{"x"}, p.Varnames)
	// The int literal 1, then the None of the implicit trailing return.
	require.Len(t, p.Constants, 2)
	assert.True(t, p.Constants[0].Kind == bytecode.KindInt)
	assert.True(t, p.Constants[1].Kind == bytecode.KindNone)

	ops := make([]bytecode.Opcode, len(p.Instructions))
	for i, ins := range p.Instructions {
		ops[i] = ins.Op
	}
	assert.Equal(t, []bytecode.Opcode{
		bytecode.LoadFast, bytecode.LoadConst, bytecode.BinaryAdd, bytecode.ReturnValue,
		bytecode.LoadConst, bytecode.ReturnValue,
	}, ops)
}

func TestCompile_EmptyBodyEmitsImplicitReturn(t *testing.T) {
	fn := &pyast.FunctionDef{Name: "noop"}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)

	require.Len(t, p.Instructions, 2)
	assert.Equal(t, bytecode.LoadConst, p.Instructions[0].Op)
	assert.Equal(t, bytecode.ReturnValue, p.Instructions[1].Op)
	assert.Equal(t, bytecode.NoneValue(), p.Constants[p.Instructions[0].Arg])
}

func TestCompile_IfElse(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "sign",
		Params: []pyast.Param{{Name: "x", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.If{
				Test: &pyast.Compare{
					Left:        &pyast.Name{Id: "x"},
					Ops:         []pyast.CmpOpKind{pyast.CmpGt},
					Comparators: []pyast.Expr{&pyast.Constant{Kind: pyast.ConstInt, Value: int64(0)}},
				},
				Body:   []pyast.Stmt{&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}}},
				Orelse: []pyast.Stmt{&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(-1)}}},
			},
		},
	}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)

	foundElseJump := false
	for _, ins := range p.Instructions {
		if ins.Op == bytecode.PopJumpIfFalse {
			foundElseJump = true
		}
	}
	assert.True(t, foundElseJump)
	assert.Equal(t, bytecode.ReturnValue, lastOp(p))
}

func TestCompile_WhileWithBreak(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "loop",
		Params: []pyast.Param{{Name: "n", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.While{
				Test: &pyast.Constant{Kind: pyast.ConstBool, Value: true},
				Body: []pyast.Stmt{
					&pyast.If{
						Test:   &pyast.Name{Id: "n"},
						Body:   []pyast.Stmt{&pyast.Break{}},
						Orelse: nil,
					},
				},
			},
		},
	}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)

	var jumpForwardCount int
	for _, ins := range p.Instructions {
		if ins.Op == bytecode.JumpForward {
			jumpForwardCount++
		}
	}
	assert.GreaterOrEqual(t, jumpForwardCount, 1)
}

func TestCompile_ForLoopOverCall(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "sum_range",
		Params: []pyast.Param{{Name: "n", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Assign{
				Targets: []pyast.Expr{&pyast.Name{Id: "total"}},
				Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(0)},
			},
			&pyast.For{
				Target: &pyast.Name{Id: "i"},
				Iter:   &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: []pyast.Expr{&pyast.Name{Id: "n"}}},
				Body: []pyast.Stmt{
					&pyast.AugAssign{Target: &pyast.Name{Id: "total"}, Op: pyast.OpAdd, Value: &pyast.Name{Id: "i"}},
				},
			},
			&pyast.Return{Value: &pyast.Name{Id: "total"}},
		},
	}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)

	var hasForIter, hasGetIter, hasInplaceAdd bool
	for _, ins := range p.Instructions {
		switch ins.Op {
		case bytecode.ForIter:
			hasForIter = true
		case bytecode.GetIter:
			hasGetIter = true
		case bytecode.InplaceAdd:
			hasInplaceAdd = true
		}
	}
	assert.True(t, hasForIter)
	assert.True(t, hasGetIter)
	assert.True(t, hasInplaceAdd)
	assert.Contains(t, p.Varnames, "total")
	assert.Contains(t, p.Varnames, "i")
}

func TestCompile_BreakOutsideLoopFails(t *testing.T) {
	fn := &pyast.FunctionDef{Name: "bad", Body: []pyast.Stmt{&pyast.Break{}}}
	_, err := Compile(fn, mustResolve(t, fn))
	assert.ErrorIs(t, err, errs.ErrBreakOutsideLoop)
}

func TestCompile_ContinueOutsideLoopFails(t *testing.T) {
	fn := &pyast.FunctionDef{Name: "bad", Body: []pyast.Stmt{&pyast.Continue{}}}
	_, err := Compile(fn, mustResolve(t, fn))
	assert.ErrorIs(t, err, errs.ErrContinueOutsideLoop)
}

func TestCompile_UnsupportedStatementFails(t *testing.T) {
	// Module implements Stmt (it embeds the same stmtBase) but is never a
	// legitimate nested statement; the compiler's switch has no case for it.
	fn := &pyast.FunctionDef{Name: "bad", Body: []pyast.Stmt{&pyast.Module{Name: "nested"}}}
	_, err := Compile(fn, mustResolve(t, fn))
	assert.ErrorIs(t, err, errs.ErrUnsupportedStatement)
}

func TestCompile_ConstantPoolDedupesAcrossLiterals(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name: "two_ones",
		Body: []pyast.Stmt{
			&pyast.ExprStmt{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}},
			&pyast.ExprStmt{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}},
			&pyast.Return{},
		},
	}
	p, err := Compile(fn, mustResolve(t, fn))
	require.NoError(t, err)
	// 1 dedup'd int literal + the implicit None for the bare return.
	assert.Len(t, p.Constants, 2)
}

func TestCompile_AssertEmitsRaiseOnFailure(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name: "check",
		Body: []pyast.Stmt{
			&pyast.Assert{Test: &pyast.Name{Id: "ok"}},
		},
	}
	sym := mustResolve(t, fn)
	sym.FreeVars["ok"] = struct{}{}
	p, err := Compile(fn, sym)
	require.NoError(t, err)

	var hasRaise bool
	for _, ins := range p.Instructions {
		if ins.Op == bytecode.RaiseVarargs {
			hasRaise = true
		}
	}
	assert.True(t, hasRaise)
}

func TestCompileModule_TopLevelUsesNameOps(t *testing.T) {
	mod := &pyast.Module{
		Name: "m",
		Body: []pyast.Stmt{
			&pyast.Assign{
				Targets: []pyast.Expr{&pyast.Name{Id: "x"}},
				Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(5)},
			},
		},
	}
	p, err := CompileModule(mod)
	require.NoError(t, err)

	var hasStoreName bool
	for _, ins := range p.Instructions {
		if ins.Op == bytecode.StoreName {
			hasStoreName = true
		}
	}
	assert.True(t, hasStoreName)
	assert.Empty(t, p.Varnames)
}

func TestCompile_NestedFunctionBecomesCodeConstant(t *testing.T) {
	inner := &pyast.FunctionDef{Name: "inner", Body: []pyast.Stmt{&pyast.Return{}}}
	outer := &pyast.FunctionDef{
		Name: "outer",
		Body: []pyast.Stmt{inner, &pyast.Return{}},
	}
	p, err := Compile(outer, mustResolve(t, outer))
	require.NoError(t, err)

	var foundCode bool
	for _, c := range p.Constants {
		if c.Kind == bytecode.KindCode {
			foundCode = true
			assert.Equal(t, "inner", c.Code.Name)
		}
	}
	assert.True(t, foundCode)
}
