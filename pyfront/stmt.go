package pyfront

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/corelang/pyaot/pyast"
)

// convertBlock converts every statement inside a module or block node.
// tree-sitter groups consecutive simple statements (those not ending in a
// nested block) under a "simple_statements" wrapper; convertBlock flattens
// that wrapper so callers always see one pyast.Stmt per source statement.
func convertBlock(node *sitter.Node, src []byte) ([]pyast.Stmt, error) {
	var out []pyast.Stmt
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() == "simple_statements" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				stmt, err := convertStmt(child.NamedChild(j), src)
				if err != nil {
					return nil, err
				}
				out = append(out, stmt)
			}
			continue
		}
		stmt, err := convertStmt(child, src)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func convertStmt(node *sitter.Node, src []byte) (pyast.Stmt, error) {
	switch node.Type() {
	case "function_definition":
		return convertFunctionDef(node, src, "")
	case "class_definition":
		return convertClassDef(node, src)
	case "if_statement":
		return convertIf(node, src)
	case "while_statement":
		return convertWhile(node, src)
	case "for_statement":
		return convertFor(node, src)
	case "try_statement":
		return convertTry(node, src)
	case "with_statement":
		return convertWith(node, src)
	case "return_statement":
		return convertReturn(node, src)
	case "pass_statement":
		return &pyast.Pass{}, nil
	case "break_statement":
		return &pyast.Break{}, nil
	case "continue_statement":
		return &pyast.Continue{}, nil
	case "raise_statement":
		return convertRaise(node, src)
	case "assert_statement":
		return convertAssert(node, src)
	case "import_statement":
		return convertImport(node, src)
	case "import_from_statement":
		return convertImportFrom(node, src)
	case "global_statement":
		return &pyast.Global{Names: identifierNames(node, src)}, nil
	case "nonlocal_statement":
		return &pyast.Nonlocal{Names: identifierNames(node, src)}, nil
	case "delete_statement":
		return convertDelete(node, src)
	case "expression_statement":
		return convertExpressionStatement(node, src)
	default:
		return nil, fmt.Errorf("pyfront: statement node %q: %w", node.Type(), ErrUnsupportedNode)
	}
}

func convertExpressionStatement(node *sitter.Node, src []byte) (pyast.Stmt, error) {
	if node.NamedChildCount() == 0 {
		return &pyast.Pass{}, nil
	}
	inner := node.NamedChild(0)
	switch inner.Type() {
	case "assignment":
		return convertAssignment(inner, src)
	case "augmented_assignment":
		return convertAugAssign(inner, src)
	default:
		expr, err := convertExpr(inner, src)
		if err != nil {
			return nil, err
		}
		return &pyast.ExprStmt{Value: expr}, nil
	}
}

func convertAssignment(node *sitter.Node, src []byte) (pyast.Stmt, error) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	typeNode := node.ChildByFieldName("type")
	if left == nil || right == nil {
		return nil, fmt.Errorf("pyfront: malformed assignment: %w", ErrUnsupportedNode)
	}
	target, err := convertExpr(left, src)
	if err != nil {
		return nil, err
	}
	value, err := convertExpr(right, src)
	if err != nil {
		return nil, err
	}
	if typeNode != nil {
		annotation, err := convertExpr(typeNode, src)
		if err != nil {
			return nil, err
		}
		return &pyast.AnnAssign{Target: target, Annotation: annotation, Value: value}, nil
	}
	return &pyast.Assign{Targets: []pyast.Expr{target}, Value: value}, nil
}

func convertAugAssign(node *sitter.Node, src []byte) (pyast.Stmt, error) {
	left := node.ChildByFieldName("left")
	opNode := node.ChildByFieldName("operator")
	right := node.ChildByFieldName("right")
	if left == nil || opNode == nil || right == nil {
		return nil, fmt.Errorf("pyfront: malformed augmented assignment: %w", ErrUnsupportedNode)
	}
	target, err := convertExpr(left, src)
	if err != nil {
		return nil, err
	}
	value, err := convertExpr(right, src)
	if err != nil {
		return nil, err
	}
	op, err := binOpFromAugText(opNode.Content(src))
	if err != nil {
		return nil, err
	}
	return &pyast.AugAssign{Target: target, Op: op, Value: value}, nil
}

func convertFunctionDef(node *sitter.Node, src []byte, className string) (*pyast.FunctionDef, error) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil, fmt.Errorf("pyfront: function definition without a name: %w", ErrUnsupportedNode)
	}
	params, err := convertParams(node.ChildByFieldName("parameters"), src)
	if err != nil {
		return nil, err
	}
	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return nil, fmt.Errorf("pyfront: function %s without a body: %w", nameNode.Content(src), ErrUnsupportedNode)
	}
	body, err := convertBlock(bodyNode, src)
	if err != nil {
		return nil, err
	}
	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
			break
		}
	}
	return &pyast.FunctionDef{
		Name:        nameNode.Content(src),
		Params:      params,
		Body:        body,
		IsAsync:     isAsync,
		IsGenerator: containsYield(bodyNode),
		ClassName:   className,
	}, nil
}

func convertClassDef(node *sitter.Node, src []byte) (*pyast.ClassDef, error) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil, fmt.Errorf("pyfront: class definition without a name: %w", ErrUnsupportedNode)
	}
	var bases []pyast.Expr
	if argList := node.ChildByFieldName("superclasses"); argList != nil {
		for i := 0; i < int(argList.NamedChildCount()); i++ {
			base, err := convertExpr(argList.NamedChild(i), src)
			if err != nil {
				return nil, err
			}
			bases = append(bases, base)
		}
	}
	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return nil, fmt.Errorf("pyfront: class %s without a body: %w", nameNode.Content(src), ErrUnsupportedNode)
	}
	className := nameNode.Content(src)
	var body []pyast.Stmt
	for i := 0; i < int(bodyNode.NamedChildCount()); i++ {
		child := bodyNode.NamedChild(i)
		if child.Type() == "simple_statements" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				stmt, err := convertStmt(child.NamedChild(j), src)
				if err != nil {
					return nil, err
				}
				body = append(body, stmt)
			}
			continue
		}
		if child.Type() == "function_definition" {
			method, err := convertFunctionDef(child, src, className)
			if err != nil {
				return nil, err
			}
			body = append(body, method)
			continue
		}
		stmt, err := convertStmt(child, src)
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	return &pyast.ClassDef{Name: className, Bases: bases, Body: body}, nil
}

func convertParams(node *sitter.Node, src []byte) ([]pyast.Param, error) {
	if node == nil {
		return nil, nil
	}
	var params []pyast.Param
	kind := pyast.ParamPositional
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			params = append(params, pyast.Param{Name: child.Content(src), Kind: kind})
		case "typed_parameter":
			params = append(params, pyast.Param{Name: child.NamedChild(0).Content(src), Kind: kind})
		case "default_parameter", "typed_default_parameter":
			nameNode := child.ChildByFieldName("name")
			valueNode := child.ChildByFieldName("value")
			var def pyast.Expr
			if valueNode != nil {
				var err error
				def, err = convertExpr(valueNode, src)
				if err != nil {
					return nil, err
				}
			}
			params = append(params, pyast.Param{Name: nameNode.Content(src), Default: def, Kind: kind})
		case "list_splat_pattern":
			params = append(params, pyast.Param{Name: child.NamedChild(0).Content(src), Kind: pyast.ParamVarArgs})
		case "dictionary_splat_pattern":
			params = append(params, pyast.Param{Name: child.NamedChild(0).Content(src), Kind: pyast.ParamKwArgs})
		case "keyword_separator":
			kind = pyast.ParamKWOnly
		case "positional_separator":
			// Parameters already collected stay ParamPositional; the
			// separator only affects parameters declared before it.
		default:
			// skip anything unrecognized (e.g. comments)
		}
	}
	return params, nil
}

func convertIf(node *sitter.Node, src []byte) (*pyast.If, error) {
	testNode := node.ChildByFieldName("condition")
	consNode := node.ChildByFieldName("consequence")
	if testNode == nil || consNode == nil {
		return nil, fmt.Errorf("pyfront: malformed if statement: %w", ErrUnsupportedNode)
	}
	test, err := convertExpr(testNode, src)
	if err != nil {
		return nil, err
	}
	body, err := convertBlock(consNode, src)
	if err != nil {
		return nil, err
	}

	var clauses []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "elif_clause" || child.Type() == "else_clause" {
			clauses = append(clauses, child)
		}
	}
	orelse, err := convertElifChain(clauses, src)
	if err != nil {
		return nil, err
	}
	return &pyast.If{Test: test, Body: body, Orelse: orelse}, nil
}

// convertElifChain folds a flat list of elif_clause/else_clause siblings
// into the nested-If-in-Orelse shape pyast.If expects.
func convertElifChain(clauses []*sitter.Node, src []byte) ([]pyast.Stmt, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	head := clauses[0]
	rest := clauses[1:]
	if head.Type() == "else_clause" {
		bodyNode := head.ChildByFieldName("body")
		if bodyNode == nil {
			return nil, fmt.Errorf("pyfront: malformed else clause: %w", ErrUnsupportedNode)
		}
		return convertBlock(bodyNode, src)
	}
	testNode := head.ChildByFieldName("condition")
	consNode := head.ChildByFieldName("consequence")
	if testNode == nil || consNode == nil {
		return nil, fmt.Errorf("pyfront: malformed elif clause: %w", ErrUnsupportedNode)
	}
	test, err := convertExpr(testNode, src)
	if err != nil {
		return nil, err
	}
	body, err := convertBlock(consNode, src)
	if err != nil {
		return nil, err
	}
	orelse, err := convertElifChain(rest, src)
	if err != nil {
		return nil, err
	}
	return []pyast.Stmt{&pyast.If{Test: test, Body: body, Orelse: orelse}}, nil
}

func convertWhile(node *sitter.Node, src []byte) (*pyast.While, error) {
	testNode := node.ChildByFieldName("condition")
	bodyNode := node.ChildByFieldName("body")
	if testNode == nil || bodyNode == nil {
		return nil, fmt.Errorf("pyfront: malformed while statement: %w", ErrUnsupportedNode)
	}
	test, err := convertExpr(testNode, src)
	if err != nil {
		return nil, err
	}
	body, err := convertBlock(bodyNode, src)
	if err != nil {
		return nil, err
	}
	orelse, err := convertOptionalElse(node, src)
	if err != nil {
		return nil, err
	}
	return &pyast.While{Test: test, Body: body, Orelse: orelse}, nil
}

func convertFor(node *sitter.Node, src []byte) (*pyast.For, error) {
	leftNode := node.ChildByFieldName("left")
	rightNode := node.ChildByFieldName("right")
	bodyNode := node.ChildByFieldName("body")
	if leftNode == nil || rightNode == nil || bodyNode == nil {
		return nil, fmt.Errorf("pyfront: malformed for statement: %w", ErrUnsupportedNode)
	}
	target, err := convertExpr(leftNode, src)
	if err != nil {
		return nil, err
	}
	iter, err := convertExpr(rightNode, src)
	if err != nil {
		return nil, err
	}
	body, err := convertBlock(bodyNode, src)
	if err != nil {
		return nil, err
	}
	orelse, err := convertOptionalElse(node, src)
	if err != nil {
		return nil, err
	}
	return &pyast.For{Target: target, Iter: iter, Body: body, Orelse: orelse}, nil
}

func convertOptionalElse(node *sitter.Node, src []byte) ([]pyast.Stmt, error) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "else_clause" {
			bodyNode := child.ChildByFieldName("body")
			if bodyNode == nil {
				return nil, fmt.Errorf("pyfront: malformed else clause: %w", ErrUnsupportedNode)
			}
			return convertBlock(bodyNode, src)
		}
	}
	return nil, nil
}

func convertTry(node *sitter.Node, src []byte) (*pyast.Try, error) {
	result := &pyast.Try{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "block":
			if result.Body == nil {
				body, err := convertBlock(child, src)
				if err != nil {
					return nil, err
				}
				result.Body = body
			}
		case "except_clause":
			handler, err := convertExceptClause(child, src)
			if err != nil {
				return nil, err
			}
			result.Handlers = append(result.Handlers, handler)
		case "else_clause":
			bodyNode := child.ChildByFieldName("body")
			if bodyNode == nil {
				return nil, fmt.Errorf("pyfront: malformed try else clause: %w", ErrUnsupportedNode)
			}
			orelse, err := convertBlock(bodyNode, src)
			if err != nil {
				return nil, err
			}
			result.Orelse = orelse
		case "finally_clause":
			bodyNode := child.ChildByFieldName("body")
			if bodyNode == nil {
				return nil, fmt.Errorf("pyfront: malformed finally clause: %w", ErrUnsupportedNode)
			}
			finally, err := convertBlock(bodyNode, src)
			if err != nil {
				return nil, err
			}
			result.Finally = finally
		}
	}
	return result, nil
}

func convertExceptClause(node *sitter.Node, src []byte) (pyast.ExceptHandler, error) {
	var handler pyast.ExceptHandler
	var bodyNode *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "block":
			bodyNode = child
		case "as_pattern":
			exprNode := child.NamedChild(0)
			aliasNode := child.NamedChild(1)
			typ, err := convertExpr(exprNode, src)
			if err != nil {
				return handler, err
			}
			handler.Type = typ
			if aliasNode != nil {
				handler.Name = aliasNode.Content(src)
			}
		default:
			if handler.Type == nil {
				typ, err := convertExpr(child, src)
				if err != nil {
					return handler, err
				}
				handler.Type = typ
			}
		}
	}
	if bodyNode == nil {
		return handler, fmt.Errorf("pyfront: except clause without a body: %w", ErrUnsupportedNode)
	}
	body, err := convertBlock(bodyNode, src)
	if err != nil {
		return handler, err
	}
	handler.Body = body
	return handler, nil
}

func convertWith(node *sitter.Node, src []byte) (*pyast.With, error) {
	var items []pyast.WithItem
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			item := child.NamedChild(j)
			if item.Type() != "with_item" {
				continue
			}
			valueNode := item.NamedChild(0)
			var wi pyast.WithItem
			if valueNode.Type() == "as_pattern" {
				ctxExpr, err := convertExpr(valueNode.NamedChild(0), src)
				if err != nil {
					return nil, err
				}
				wi.ContextExpr = ctxExpr
				if alias := valueNode.NamedChild(1); alias != nil {
					aliasExpr, err := convertExpr(alias, src)
					if err != nil {
						return nil, err
					}
					wi.OptionalVar = aliasExpr
				}
			} else {
				ctxExpr, err := convertExpr(valueNode, src)
				if err != nil {
					return nil, err
				}
				wi.ContextExpr = ctxExpr
			}
			items = append(items, wi)
		}
	}
	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return nil, fmt.Errorf("pyfront: with statement without a body: %w", ErrUnsupportedNode)
	}
	body, err := convertBlock(bodyNode, src)
	if err != nil {
		return nil, err
	}
	return &pyast.With{Items: items, Body: body}, nil
}

func convertReturn(node *sitter.Node, src []byte) (*pyast.Return, error) {
	if node.NamedChildCount() == 0 {
		return &pyast.Return{}, nil
	}
	value, err := convertExpr(node.NamedChild(0), src)
	if err != nil {
		return nil, err
	}
	return &pyast.Return{Value: value}, nil
}

func convertRaise(node *sitter.Node, src []byte) (*pyast.Raise, error) {
	raise := &pyast.Raise{}
	exprs := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		exprs = append(exprs, node.NamedChild(i))
	}
	if len(exprs) > 0 {
		exc, err := convertExpr(exprs[0], src)
		if err != nil {
			return nil, err
		}
		raise.Exc = exc
	}
	if len(exprs) > 1 {
		cause, err := convertExpr(exprs[1], src)
		if err != nil {
			return nil, err
		}
		raise.Cause = cause
	}
	return raise, nil
}

func convertAssert(node *sitter.Node, src []byte) (*pyast.Assert, error) {
	if node.NamedChildCount() == 0 {
		return nil, fmt.Errorf("pyfront: assert without a test: %w", ErrUnsupportedNode)
	}
	test, err := convertExpr(node.NamedChild(0), src)
	if err != nil {
		return nil, err
	}
	assert := &pyast.Assert{Test: test}
	if node.NamedChildCount() > 1 {
		msg, err := convertExpr(node.NamedChild(1), src)
		if err != nil {
			return nil, err
		}
		assert.Msg = msg
	}
	return assert, nil
}

func convertImport(node *sitter.Node, src []byte) (*pyast.Import, error) {
	var names []pyast.ImportAlias
	for i := 0; i < int(node.NamedChildCount()); i++ {
		alias, err := convertImportAlias(node.NamedChild(i), src)
		if err != nil {
			return nil, err
		}
		names = append(names, alias)
	}
	return &pyast.Import{Names: names}, nil
}

func convertImportFrom(node *sitter.Node, src []byte) (*pyast.ImportFrom, error) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil, fmt.Errorf("pyfront: from-import without a module: %w", ErrUnsupportedNode)
	}
	result := &pyast.ImportFrom{Module: moduleNode.Content(src)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == moduleNode || child.Type() == "wildcard_import" {
			continue
		}
		alias, err := convertImportAlias(child, src)
		if err != nil {
			return nil, err
		}
		result.Names = append(result.Names, alias)
	}
	return result, nil
}

func convertImportAlias(node *sitter.Node, src []byte) (pyast.ImportAlias, error) {
	switch node.Type() {
	case "dotted_name", "identifier":
		return pyast.ImportAlias{Name: node.Content(src)}, nil
	case "aliased_import":
		nameNode := node.ChildByFieldName("name")
		aliasNode := node.ChildByFieldName("alias")
		if nameNode == nil || aliasNode == nil {
			return pyast.ImportAlias{}, fmt.Errorf("pyfront: malformed aliased import: %w", ErrUnsupportedNode)
		}
		return pyast.ImportAlias{Name: nameNode.Content(src), Alias: aliasNode.Content(src)}, nil
	default:
		return pyast.ImportAlias{}, fmt.Errorf("pyfront: import name node %q: %w", node.Type(), ErrUnsupportedNode)
	}
}

func convertDelete(node *sitter.Node, src []byte) (*pyast.Delete, error) {
	var targets []pyast.Expr
	for i := 0; i < int(node.NamedChildCount()); i++ {
		target, err := convertExpr(node.NamedChild(i), src)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return &pyast.Delete{Targets: targets}, nil
}

func identifierNames(node *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		names = append(names, node.NamedChild(i).Content(src))
	}
	return names
}

func containsYield(node *sitter.Node) bool {
	if node.Type() == "yield" || node.Type() == "yield_expression" {
		return true
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "function_definition" || child.Type() == "lambda" {
			continue
		}
		if containsYield(child) {
			return true
		}
	}
	return false
}
