package vm

import (
	"testing"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/compiler"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileFn(t *testing.T, fn *pyast.FunctionDef) *bytecode.Program {
	t.Helper()
	sym, err := resolver.Resolve(fn)
	require.NoError(t, err)
	p, err := compiler.Compile(fn, sym)
	require.NoError(t, err)
	return p
}

func TestRun_SimpleArithmetic(t *testing.T) {
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
	p := compileFn(t, fn)
	result, err := New().Run(p, []Value{IntValue(41)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(42), result)
}

// TestRun_SubtractOperandOrder checks left/right are not swapped: operands
// pop in source order, left = second-popped, right = first-popped.
func TestRun_SubtractOperandOrder(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "sub",
		Params: []pyast.Param{{Name: "a", Kind: pyast.ParamPositional}, {Name: "b", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Return{Value: &pyast.BinOp{
				Left:  &pyast.Name{Id: "a"},
				Op:    pyast.OpSub,
				Right: &pyast.Name{Id: "b"},
			}},
		},
	}
	p := compileFn(t, fn)
	result, err := New().Run(p, []Value{IntValue(10), IntValue(3)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(7), result)
}

func TestRun_IfElseBranches(t *testing.T) {
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
	p := compileFn(t, fn)
	pos, err := New().Run(p, []Value{IntValue(5)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), pos)

	neg, err := New().Run(p, []Value{IntValue(-5)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(-1), neg)
}

func TestRun_ForLoopSumsRange(t *testing.T) {
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
	p := compileFn(t, fn)
	result, err := New().Run(p, []Value{IntValue(5)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(10), result) // 0+1+2+3+4
}

func TestRun_ForIterExhaustionOverList(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name: "count",
		Body: []pyast.Stmt{
			&pyast.Assign{
				Targets: []pyast.Expr{&pyast.Name{Id: "n"}},
				Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(0)},
			},
			&pyast.For{
				Target: &pyast.Name{Id: "_"},
				Iter: &pyast.Tuple{Elts: []pyast.Expr{
					&pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
					&pyast.Constant{Kind: pyast.ConstInt, Value: int64(2)},
					&pyast.Constant{Kind: pyast.ConstInt, Value: int64(3)},
				}},
				Body: []pyast.Stmt{
					&pyast.AugAssign{Target: &pyast.Name{Id: "n"}, Op: pyast.OpAdd, Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}},
				},
			},
			&pyast.Return{Value: &pyast.Name{Id: "n"}},
		},
	}
	p := compileFn(t, fn)
	result, err := New().Run(p, nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(3), result)
}

func TestRun_CallBuiltinLen(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "wrap_len",
		Params: []pyast.Param{{Name: "s", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Return{Value: &pyast.Call{Func: &pyast.Name{Id: "len"}, Args: []pyast.Expr{&pyast.Name{Id: "s"}}}},
		},
	}
	p := compileFn(t, fn)
	result, err := New().Run(p, []Value{StringValue("hello")})
	require.NoError(t, err)
	assert.Equal(t, IntValue(5), result)
}

func TestRun_AssertFailureRaises(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "check",
		Params: []pyast.Param{{Name: "ok", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Assert{Test: &pyast.Name{Id: "ok"}, Msg: &pyast.Constant{Kind: pyast.ConstString, Value: "nope"}},
			&pyast.Return{},
		},
	}
	p := compileFn(t, fn)
	_, err := New().Run(p, []Value{BoolValue(false)})
	require.Error(t, err)
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "AssertionError", exc.Type)
}

func TestRun_AssertSuccessPasses(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name:   "check",
		Params: []pyast.Param{{Name: "ok", Kind: pyast.ParamPositional}},
		Body: []pyast.Stmt{
			&pyast.Assert{Test: &pyast.Name{Id: "ok"}},
			&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}},
		},
	}
	p := compileFn(t, fn)
	result, err := New().Run(p, []Value{BoolValue(true)})
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), result)
}

func TestRun_TryExceptCatchesRaise(t *testing.T) {
	fn := &pyast.FunctionDef{
		Name: "safe",
		Body: []pyast.Stmt{
			&pyast.Try{
				Body: []pyast.Stmt{
					&pyast.Raise{Exc: &pyast.Name{Id: "AssertionError"}},
				},
				Handlers: []pyast.ExceptHandler{
					{Body: []pyast.Stmt{&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(99)}}}},
				},
			},
			&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(0)}},
		},
	}
	p := compileFn(t, fn)
	result, err := New().Run(p, nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(99), result)
}

func TestRun_StackUnderflowIsWrappedError(t *testing.T) {
	_, err := errStackUnderflowTrigger()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStackUnderflow)
}

func errStackUnderflowTrigger() (Value, error) {
	f := newFrame(&bytecode.Program{}, nil, map[string]Value{}, nil)
	return f.pop()
}
