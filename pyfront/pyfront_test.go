package pyfront

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corelang/pyaot/pyast"
)

func TestParse_SimpleFunction(t *testing.T) {
	mod, err := Parse([]byte("def add(a, b):\n    return a + b\n"))
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	fn, ok := mod.Body[0].(*pyast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "b", fn.Params[1].Name)

	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*pyast.Return)
	require.True(t, ok)
	binOp, ok := ret.Value.(*pyast.BinOp)
	require.True(t, ok)
	assert.Equal(t, pyast.OpAdd, binOp.Op)
}

func TestParse_IfElse(t *testing.T) {
	src := "def classify(n):\n" +
		"    if n < 0:\n" +
		"        return -1\n" +
		"    elif n == 0:\n" +
		"        return 0\n" +
		"    else:\n" +
		"        return 1\n"
	mod, err := Parse([]byte(src))
	require.NoError(t, err)

	fn := mod.Body[0].(*pyast.FunctionDef)
	ifStmt, ok := fn.Body[0].(*pyast.If)
	require.True(t, ok)

	cmp, ok := ifStmt.Test.(*pyast.Compare)
	require.True(t, ok)
	assert.Equal(t, []pyast.CmpOpKind{pyast.CmpLt}, cmp.Ops)

	require.Len(t, ifStmt.Orelse, 1)
	elif, ok := ifStmt.Orelse[0].(*pyast.If)
	require.True(t, ok)
	require.Len(t, elif.Orelse, 1)
	_, ok = elif.Orelse[0].(*pyast.Return)
	require.True(t, ok)
}

func TestParse_ForLoopAndCall(t *testing.T) {
	src := "def total(items):\n" +
		"    acc = 0\n" +
		"    for x in items:\n" +
		"        acc += x\n" +
		"    return acc\n"
	mod, err := Parse([]byte(src))
	require.NoError(t, err)

	fn := mod.Body[0].(*pyast.FunctionDef)
	require.Len(t, fn.Body, 3)

	assign, ok := fn.Body[0].(*pyast.Assign)
	require.True(t, ok)
	assert.Equal(t, "acc", assign.Targets[0].(*pyast.Name).Id)

	forStmt, ok := fn.Body[1].(*pyast.For)
	require.True(t, ok)
	assert.Equal(t, "x", forStmt.Target.(*pyast.Name).Id)
	assert.Equal(t, "items", forStmt.Iter.(*pyast.Name).Id)

	require.Len(t, forStmt.Body, 1)
	aug, ok := forStmt.Body[0].(*pyast.AugAssign)
	require.True(t, ok)
	assert.Equal(t, pyast.OpAdd, aug.Op)
}

func TestParse_CallWithKeywordArgs(t *testing.T) {
	mod, err := Parse([]byte("print(1, 2, sep=', ')\n"))
	require.NoError(t, err)

	stmt, ok := mod.Body[0].(*pyast.ExprStmt)
	require.True(t, ok)
	call, ok := stmt.Value.(*pyast.Call)
	require.True(t, ok)
	assert.Equal(t, "print", call.Func.(*pyast.Name).Id)
	require.Len(t, call.Args, 2)
	require.Len(t, call.Keywords, 1)
	assert.Equal(t, "sep", call.Keywords[0].Name)
}

func TestParse_ClassWithMethod(t *testing.T) {
	src := "class Counter:\n" +
		"    def bump(self, n):\n" +
		"        return n + 1\n"
	mod, err := Parse([]byte(src))
	require.NoError(t, err)

	class, ok := mod.Body[0].(*pyast.ClassDef)
	require.True(t, ok)
	assert.Equal(t, "Counter", class.Name)
	require.Len(t, class.Body, 1)

	method, ok := class.Body[0].(*pyast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "Counter", method.ClassName)
	assert.Equal(t, "bump", method.Name)
}

func TestParse_ImportStatements(t *testing.T) {
	mod, err := Parse([]byte("import os\nfrom collections import OrderedDict as OD\n"))
	require.NoError(t, err)
	require.Len(t, mod.Body, 2)

	imp, ok := mod.Body[0].(*pyast.Import)
	require.True(t, ok)
	assert.Equal(t, "os", imp.Names[0].Name)

	from, ok := mod.Body[1].(*pyast.ImportFrom)
	require.True(t, ok)
	assert.Equal(t, "collections", from.Module)
	assert.Equal(t, "OrderedDict", from.Names[0].Name)
	assert.Equal(t, "OD", from.Names[0].Alias)
}

func TestParse_RejectsUnsupportedSyntax(t *testing.T) {
	_, err := Parse([]byte("match x:\n    case 1:\n        pass\n"))
	require.Error(t, err)
}

func TestParseFile_NamesModuleFromPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/widgets.py"
	require.NoError(t, os.WriteFile(path, []byte("def f():\n    pass\n"), 0o644))

	mod, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "widgets", mod.Name)
}
