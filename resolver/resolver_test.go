package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corelang/pyaot/pyast"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name           string
		fn             *pyast.FunctionDef
		wantLocals     []string
		wantFreeVars   []string
		wantGlobalRead []string
		wantGlobalWrite []string
	}{
		{
			name: "param read only, no bindings",
			fn: &pyast.FunctionDef{
				Name:   "identity",
				Params: []pyast.Param{{Name: "x"}},
				Body: []pyast.Stmt{
					&pyast.Return{Value: &pyast.Name{Id: "x"}},
				},
			},
			wantLocals: []string{"x"},
		},
		{
			name: "local assignment does not escape as free var",
			fn: &pyast.FunctionDef{
				Name: "make_pair",
				Body: []pyast.Stmt{
					&pyast.Assign{
						Targets: []pyast.Expr{&pyast.Name{Id: "y"}},
						Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
					},
					&pyast.Return{Value: &pyast.Name{Id: "y"}},
				},
			},
			wantLocals: []string{"y"},
		},
		{
			name: "read of unbound name is a free var",
			fn: &pyast.FunctionDef{
				Name: "uses_outer",
				Body: []pyast.Stmt{
					&pyast.Return{Value: &pyast.Name{Id: "counter"}},
				},
			},
			wantFreeVars: []string{"counter"},
		},
		{
			name: "global declaration routes read/write to globals, not free vars",
			fn: &pyast.FunctionDef{
				Name: "bump",
				Body: []pyast.Stmt{
					&pyast.Global{Names: []string{"counter"}},
					&pyast.AugAssign{
						Target: &pyast.Name{Id: "counter"},
						Op:     pyast.OpAdd,
						Value:  &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
					},
				},
			},
			wantGlobalRead:  []string{"counter"},
			wantGlobalWrite: []string{"counter"},
		},
		{
			name: "nested function body is not walked for reads, only decorators and defaults",
			fn: &pyast.FunctionDef{
				Name: "outer",
				Body: []pyast.Stmt{
					&pyast.FunctionDef{
						Name:       "inner",
						Decorators: []pyast.Expr{&pyast.Name{Id: "memoize"}},
						Params:     []pyast.Param{{Name: "z", Default: &pyast.Name{Id: "default_z"}}},
						Body: []pyast.Stmt{
							&pyast.Return{Value: &pyast.Name{Id: "z"}},
						},
					},
					&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstNone}},
				},
			},
			wantLocals:   []string{"inner"},
			wantFreeVars: []string{"default_z", "memoize"},
		},
		{
			name: "for-loop target is a local binding",
			fn: &pyast.FunctionDef{
				Name: "sum_all",
				Params: []pyast.Param{{Name: "items"}},
				Body: []pyast.Stmt{
					&pyast.Assign{
						Targets: []pyast.Expr{&pyast.Name{Id: "total"}},
						Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(0)},
					},
					&pyast.For{
						Target: &pyast.Name{Id: "item"},
						Iter:   &pyast.Name{Id: "items"},
						Body: []pyast.Stmt{
							&pyast.AugAssign{
								Target: &pyast.Name{Id: "total"},
								Op:     pyast.OpAdd,
								Value:  &pyast.Name{Id: "item"},
							},
						},
					},
					&pyast.Return{Value: &pyast.Name{Id: "total"}},
				},
			},
			wantLocals: []string{"item", "items", "total"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, err := Resolve(tc.fn)
			assert.NoError(t, err)
			assert.ElementsMatch(t, tc.wantLocals, st.SortedLocals())
			assert.ElementsMatch(t, tc.wantFreeVars, st.SortedFreeVars())
			assert.ElementsMatch(t, tc.wantGlobalRead, sortedFromSet(st.GlobalsRead))
			assert.ElementsMatch(t, tc.wantGlobalWrite, sortedFromSet(st.GlobalsWrite))
		})
	}
}

func TestResolve_NilFunction(t *testing.T) {
	_, err := Resolve(nil)
	assert.Error(t, err)
}

func sortedFromSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
