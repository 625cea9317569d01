package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/traits"
)

func TestRender_OrdersFunctionsAndDecodesBack(t *testing.T) {
	mod := &pyast.Module{
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "zeta",
				Body: []pyast.Stmt{&pyast.Return{Value: &pyast.Constant{Kind: pyast.ConstInt, Value: int64(1)}}},
			},
			&pyast.FunctionDef{
				Name: "alpha",
				Body: []pyast.Stmt{
					&pyast.ExprStmt{Value: &pyast.Call{Func: &pyast.Name{Id: "zeta"}}},
					&pyast.Return{},
				},
			},
		},
	}
	graph, err := traits.Analyze(mod)
	require.NoError(t, err)

	data, err := Render(graph)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	functions, ok := decoded["functions"].([]interface{})
	require.True(t, ok)
	require.Len(t, functions, 2)

	names := make([]string, len(functions))
	for i, f := range functions {
		entry := f.(map[string]interface{})
		names[i] = entry["name"].(string)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestRender_EmptyGraphStillMarshals(t *testing.T) {
	graph, err := traits.Analyze(&pyast.Module{})
	require.NoError(t, err)

	data, err := Render(graph)
	require.NoError(t, err)
	assert.Contains(t, string(data), "functions")
}

func TestWriteFile(t *testing.T) {
	graph, err := traits.Analyze(&pyast.Module{
		Body: []pyast.Stmt{&pyast.FunctionDef{Name: "f", Body: []pyast.Stmt{&pyast.Return{}}}},
	})
	require.NoError(t, err)

	path := t.TempDir() + "/graph.yaml"
	require.NoError(t, WriteFile(path, graph))
}
