package comprehension

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corelang/pyaot/pyast"
)

func rangeCall(args ...pyast.Expr) *pyast.Call {
	return &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: args}
}

func intLit(v int64) *pyast.Constant {
	return &pyast.Constant{Kind: pyast.ConstInt, Value: v}
}

func TestAnalyze_SimdKernels(t *testing.T) {
	tests := []struct {
		name   string
		elt    pyast.Expr
		iter   pyast.Expr
		wantOp Op
	}{
		{
			name:   "bare loop variable is copy",
			elt:    &pyast.Name{Id: "i"},
			iter:   rangeCall(intLit(10)),
			wantOp: OpCopy,
		},
		{
			name:   "lv + C commutes",
			elt:    &pyast.BinOp{Left: &pyast.Name{Id: "i"}, Op: pyast.OpAdd, Right: intLit(3)},
			iter:   rangeCall(intLit(10)),
			wantOp: OpAdd,
		},
		{
			name:   "C + lv commutes",
			elt:    &pyast.BinOp{Left: intLit(3), Op: pyast.OpAdd, Right: &pyast.Name{Id: "i"}},
			iter:   rangeCall(intLit(10)),
			wantOp: OpAdd,
		},
		{
			name:   "lv - C qualifies",
			elt:    &pyast.BinOp{Left: &pyast.Name{Id: "i"}, Op: pyast.OpSub, Right: intLit(1)},
			iter:   rangeCall(intLit(10)),
			wantOp: OpSub,
		},
		{
			name:   "lv * lv is square",
			elt:    &pyast.BinOp{Left: &pyast.Name{Id: "i"}, Op: pyast.OpMul, Right: &pyast.Name{Id: "i"}},
			iter:   rangeCall(intLit(10)),
			wantOp: OpSquare,
		},
		{
			name:   "unary negation of lv",
			elt:    &pyast.UnaryOp{Op: pyast.UnaryNeg, Operand: &pyast.Name{Id: "i"}},
			iter:   rangeCall(intLit(10)),
			wantOp: OpNeg,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			comp := &pyast.Comp{
				Kind: pyast.CompList,
				Elt:  tc.elt,
				Generators: []pyast.Comprehension{
					{Target: &pyast.Name{Id: "i"}, Iter: tc.iter},
				},
			}
			simd, parallel := Analyze(comp)
			assert.NotNil(t, simd)
			assert.Equal(t, tc.wantOp, simd.Op)
			assert.Equal(t, I64, simd.ElementType)
			assert.Equal(t, 4, simd.VectorWidth)

			// range(10) is below defaultMinParallelSize: a ParallelPlan is
			// still produced (a SIMD kernel's element is always pure), just
			// not worth parallelizing.
			if assert.NotNil(t, parallel) {
				assert.Equal(t, tc.wantOp.String(), parallel.Op)
				assert.False(t, parallel.WorthParallelizing)
			}
		})
	}
}

func TestAnalyze_CSubLvDoesNotQualify(t *testing.T) {
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt:  &pyast.BinOp{Left: intLit(10), Op: pyast.OpSub, Right: &pyast.Name{Id: "i"}},
		Generators: []pyast.Comprehension{
			{Target: &pyast.Name{Id: "i"}, Iter: rangeCall(intLit(10))},
		},
	}
	simd, parallel := Analyze(comp)
	assert.Nil(t, simd)
	// Still a pure element expression over a range domain: qualifies as
	// parallel even though it misses the stricter SIMD kernel shape.
	assert.NotNil(t, parallel)
}

func TestAnalyze_StaticBoundsRecorded(t *testing.T) {
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt:  &pyast.Name{Id: "i"},
		Generators: []pyast.Comprehension{
			{Target: &pyast.Name{Id: "i"}, Iter: rangeCall(intLit(0), intLit(100), intLit(2))},
		},
	}
	simd, _ := Analyze(comp)
	assert.NotNil(t, simd)
	assert.NotNil(t, simd.Bounds)
	assert.Equal(t, int64(0), simd.Bounds.Start)
	assert.Equal(t, int64(100), simd.Bounds.Stop)
	assert.Equal(t, int64(2), simd.Bounds.Step)
	assert.Equal(t, int64(50), simd.Bounds.Size())
}

func TestAnalyze_ParallelPlanForLargeDomain(t *testing.T) {
	// (i * i) + 1: pure, but the outer BinOp's left operand is a nested
	// expression rather than the loop variable, which disqualifies it from
	// the narrow SIMD kernel shape.
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt: &pyast.BinOp{
			Left:  &pyast.BinOp{Left: &pyast.Name{Id: "i"}, Op: pyast.OpMul, Right: &pyast.Name{Id: "i"}},
			Op:    pyast.OpAdd,
			Right: intLit(1),
		},
		Generators: []pyast.Comprehension{
			{Target: &pyast.Name{Id: "i"}, Iter: rangeCall(intLit(0), intLit(5000))},
		},
	}
	simd, parallel := Analyze(comp)
	assert.Nil(t, simd)
	assert.NotNil(t, parallel)
	assert.NotNil(t, parallel.DomainSize)
	assert.Equal(t, int64(5000), *parallel.DomainSize)
	assert.True(t, parallel.WorthParallelizing)
	assert.Equal(t, "element", parallel.Op)
}

// TestAnalyze_SimdAndParallelBothProduced is spec §8 scenario 4:
// [x * 3 for x in range(1024)] qualifies as both a SIMD kernel and a
// worthwhile parallel plan over the same range domain.
func TestAnalyze_SimdAndParallelBothProduced(t *testing.T) {
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt:  &pyast.BinOp{Left: &pyast.Name{Id: "x"}, Op: pyast.OpMul, Right: intLit(3)},
		Generators: []pyast.Comprehension{
			{Target: &pyast.Name{Id: "x"}, Iter: rangeCall(intLit(1024))},
		},
	}
	simd, parallel := Analyze(comp)

	if assert.NotNil(t, simd) {
		assert.Equal(t, OpMul, simd.Op)
		assert.Equal(t, I64, simd.ElementType)
		assert.Equal(t, 4, simd.VectorWidth)
		if assert.NotNil(t, simd.Bounds) {
			assert.Equal(t, int64(0), simd.Bounds.Start)
			assert.Equal(t, int64(1024), simd.Bounds.Stop)
		}
	}
	if assert.NotNil(t, parallel) {
		assert.Equal(t, "mul", parallel.Op)
		assert.True(t, parallel.WorthParallelizing)
	}
}

func TestAnalyze_CallInElementDisqualifiesBoth(t *testing.T) {
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt:  &pyast.Call{Func: &pyast.Name{Id: "str"}, Args: []pyast.Expr{&pyast.Name{Id: "i"}}},
		Generators: []pyast.Comprehension{
			{Target: &pyast.Name{Id: "i"}, Iter: rangeCall(intLit(10))},
		},
	}
	simd, parallel := Analyze(comp)
	assert.Nil(t, simd)
	assert.Nil(t, parallel)
}

func TestAnalyze_FilterConditionDisqualifies(t *testing.T) {
	comp := &pyast.Comp{
		Kind: pyast.CompList,
		Elt:  &pyast.Name{Id: "i"},
		Generators: []pyast.Comprehension{
			{
				Target: &pyast.Name{Id: "i"},
				Iter:   rangeCall(intLit(10)),
				Ifs:    []pyast.Expr{&pyast.Name{Id: "i"}},
			},
		},
	}
	simd, parallel := Analyze(comp)
	assert.Nil(t, simd)
	assert.Nil(t, parallel)
}

func TestAnalyze_EmptyGeneratorsDoesNotQualify(t *testing.T) {
	comp := &pyast.Comp{Kind: pyast.CompList, Elt: &pyast.Name{Id: "i"}}
	simd, parallel := Analyze(comp)
	assert.Nil(t, simd)
	assert.Nil(t, parallel)
}
