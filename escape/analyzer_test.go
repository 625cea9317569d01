package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corelang/pyaot/pyast"
)

func names(vars []EscapedVar) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

func TestAnalyze_IfBlockEscape(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.If{
			Test: &pyast.Constant{Kind: pyast.ConstBool, Value: true},
			Body: []pyast.Stmt{
				&pyast.Assign{
					Targets: []pyast.Expr{&pyast.Name{Id: "result"}},
					Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
				},
			},
		},
		&pyast.Return{Value: &pyast.Name{Id: "result"}},
	}
	escapes := Analyze(body)
	assert.ElementsMatch(t, []string{"result"}, names(escapes))
	assert.Equal(t, SourceIfWhile, escapes[0].Source)
	assert.NotNil(t, escapes[0].Initializer)
}

func TestAnalyze_WithBlockEscape(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.With{
			Items: []pyast.WithItem{
				{ContextExpr: &pyast.Call{Func: &pyast.Name{Id: "open"}}, OptionalVar: &pyast.Name{Id: "f"}},
			},
			Body: []pyast.Stmt{&pyast.Pass{}},
		},
		&pyast.ExprStmt{Value: &pyast.Call{
			Func: &pyast.Attribute{Value: &pyast.Name{Id: "f"}, Attr: "read"},
		}},
	}
	escapes := Analyze(body)
	assert.ElementsMatch(t, []string{"f"}, names(escapes))
	assert.Equal(t, SourceWith, escapes[0].Source)
}

func TestAnalyze_TryBlockEscape(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.Try{
			Body: []pyast.Stmt{
				&pyast.Assign{
					Targets: []pyast.Expr{&pyast.Name{Id: "value"}},
					Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(2)},
				},
			},
			Handlers: []pyast.ExceptHandler{{Name: "err"}},
		},
		&pyast.Return{Value: &pyast.Name{Id: "value"}},
	}
	escapes := Analyze(body)
	assert.ElementsMatch(t, []string{"value"}, names(escapes))
	assert.Equal(t, SourceTry, escapes[0].Source)
}

func TestAnalyze_NoEscapeWhenOnlyUsedInsideBlock(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.If{
			Test: &pyast.Constant{Kind: pyast.ConstBool, Value: true},
			Body: []pyast.Stmt{
				&pyast.Assign{
					Targets: []pyast.Expr{&pyast.Name{Id: "local_only"}},
					Value:   &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)},
				},
				&pyast.ExprStmt{Value: &pyast.Name{Id: "local_only"}},
			},
		},
	}
	escapes := Analyze(body)
	assert.Empty(t, escapes)
}

func TestAnalyze_CrossSiblingForEscape(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.For{
			Target: &pyast.Name{Id: "i"},
			Iter:   &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: []pyast.Expr{&pyast.Constant{Kind: pyast.ConstInt, Value: int64(10)}}},
			Body: []pyast.Stmt{
				&pyast.Assign{
					Targets: []pyast.Expr{&pyast.Name{Id: "last"}},
					Value:   &pyast.Name{Id: "i"},
				},
			},
		},
		&pyast.For{
			Target: &pyast.Name{Id: "j"},
			Iter:   &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: []pyast.Expr{&pyast.Constant{Kind: pyast.ConstInt, Value: int64(10)}}},
			Body: []pyast.Stmt{
				&pyast.ExprStmt{Value: &pyast.Name{Id: "last"}},
			},
		},
	}
	escapes := Analyze(body)
	assert.ElementsMatch(t, []string{"last"}, names(escapes))
	assert.Equal(t, SourceFor, escapes[0].Source)
}

func TestAnalyze_CrossSiblingForShadowDoesNotEscape(t *testing.T) {
	body := []pyast.Stmt{
		&pyast.For{
			Target: &pyast.Name{Id: "x"},
			Iter:   &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: []pyast.Expr{&pyast.Constant{Kind: pyast.ConstInt, Value: int64(5)}}},
			Body:   []pyast.Stmt{&pyast.Pass{}},
		},
		&pyast.For{
			Target: &pyast.Name{Id: "x"}, // re-declares x as its own target: shadow, not a use
			Iter:   &pyast.Call{Func: &pyast.Name{Id: "range"}, Args: []pyast.Expr{&pyast.Constant{Kind: pyast.ConstInt, Value: int64(5)}}},
			Body:   []pyast.Stmt{&pyast.Pass{}},
		},
	}
	escapes := Analyze(body)
	assert.Empty(t, escapes)
}
