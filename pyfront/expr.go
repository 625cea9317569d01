package pyfront

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/corelang/pyaot/pyast"
)

func convertExpr(node *sitter.Node, src []byte) (pyast.Expr, error) {
	switch node.Type() {
	case "parenthesized_expression", "as_pattern_target":
		return convertExpr(node.NamedChild(0), src)
	case "identifier":
		return &pyast.Name{Id: node.Content(src)}, nil
	case "integer":
		return convertInteger(node.Content(src))
	case "float":
		v, err := strconv.ParseFloat(node.Content(src), 64)
		if err != nil {
			return nil, fmt.Errorf("pyfront: float literal %q: %w", node.Content(src), err)
		}
		return &pyast.Constant{Kind: pyast.ConstFloat, Value: v}, nil
	case "true":
		return &pyast.Constant{Kind: pyast.ConstBool, Value: true}, nil
	case "false":
		return &pyast.Constant{Kind: pyast.ConstBool, Value: false}, nil
	case "none":
		return &pyast.Constant{Kind: pyast.ConstNone}, nil
	case "string":
		return convertString(node, src)
	case "binary_operator":
		return convertBinaryOp(node, src)
	case "unary_operator":
		return convertUnaryOp(node, src)
	case "not_operator":
		operand, err := convertExpr(node.ChildByFieldName("argument"), src)
		if err != nil {
			return nil, err
		}
		return &pyast.UnaryOp{Op: pyast.UnaryNot, Operand: operand}, nil
	case "boolean_operator":
		return convertBoolOp(node, src)
	case "comparison_operator":
		return convertComparison(node, src)
	case "call":
		return convertCall(node, src)
	case "attribute":
		return convertAttribute(node, src)
	case "subscript":
		return convertSubscript(node, src)
	case "slice":
		return convertSlice(node, src)
	case "tuple":
		elts, err := convertExprList(node, src)
		if err != nil {
			return nil, err
		}
		return &pyast.Tuple{Elts: elts}, nil
	case "list":
		elts, err := convertExprList(node, src)
		if err != nil {
			return nil, err
		}
		return &pyast.List{Elts: elts}, nil
	case "set":
		elts, err := convertExprList(node, src)
		if err != nil {
			return nil, err
		}
		return &pyast.Set{Elts: elts}, nil
	case "dictionary":
		return convertDict(node, src)
	case "list_comprehension":
		return convertComp(node, src, pyast.CompList)
	case "set_comprehension":
		return convertComp(node, src, pyast.CompSet)
	case "generator_expression":
		return convertComp(node, src, pyast.CompGenerator)
	case "dictionary_comprehension":
		return convertDictComp(node, src)
	case "conditional_expression":
		return convertIfExp(node, src)
	case "lambda":
		return convertLambda(node, src)
	case "await":
		value, err := convertExpr(node.NamedChild(0), src)
		if err != nil {
			return nil, err
		}
		return &pyast.Await{Value: value}, nil
	case "yield":
		return convertYield(node, src)
	case "keyword_argument":
		// Only reachable when a caller mistakenly treats an argument list
		// entry as a plain expression; convertCall handles these directly.
		return nil, fmt.Errorf("pyfront: keyword_argument outside call: %w", ErrUnsupportedNode)
	case "list_splat", "dictionary_splat":
		value, err := convertExpr(node.NamedChild(0), src)
		if err != nil {
			return nil, err
		}
		return &pyast.Starred{Value: value}, nil
	default:
		return nil, fmt.Errorf("pyfront: expression node %q: %w", node.Type(), ErrUnsupportedNode)
	}
}

func convertInteger(text string) (pyast.Expr, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if v, err := strconv.ParseInt(clean, 0, 64); err == nil {
		return &pyast.Constant{Kind: pyast.ConstInt, Value: v}, nil
	}
	return &pyast.Constant{Kind: pyast.ConstBigInt, Value: clean}, nil
}

func convertString(node *sitter.Node, src []byte) (pyast.Expr, error) {
	var parts []pyast.Expr
	isFString := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "interpolation" {
			isFString = true
			valueNode := child.NamedChild(0)
			value, err := convertExpr(valueNode, src)
			if err != nil {
				return nil, err
			}
			parts = append(parts, &pyast.FormattedValue{Value: value})
		}
	}
	if isFString {
		return &pyast.JoinedStr{Parts: parts}, nil
	}
	raw := node.Content(src)
	return &pyast.Constant{Kind: pyast.ConstString, Value: unquotePythonString(raw)}, nil
}

// unquotePythonString strips the leading string/byte prefix (r, b, f, u, or
// a combination) and the surrounding quotes. It does not interpret escape
// sequences; this is a best-effort front end, not a full lexer.
func unquotePythonString(raw string) string {
	i := 0
	for i < len(raw) && raw[i] != '\'' && raw[i] != '"' {
		i++
	}
	if i >= len(raw) {
		return raw
	}
	body := raw[i:]
	for _, quote := range []string{`"""`, `'''`} {
		if strings.HasPrefix(body, quote) && strings.HasSuffix(body, quote) && len(body) >= 2*len(quote) {
			return body[len(quote) : len(body)-len(quote)]
		}
	}
	if len(body) >= 2 {
		return body[1 : len(body)-1]
	}
	return body
}

func binOpFromText(text string) (pyast.BinOpKind, error) {
	switch text {
	case "+":
		return pyast.OpAdd, nil
	case "-":
		return pyast.OpSub, nil
	case "*":
		return pyast.OpMul, nil
	case "/":
		return pyast.OpDiv, nil
	case "//":
		return pyast.OpFloorDiv, nil
	case "%":
		return pyast.OpMod, nil
	case "**":
		return pyast.OpPow, nil
	case "&":
		return pyast.OpBitAnd, nil
	case "|":
		return pyast.OpBitOr, nil
	case "^":
		return pyast.OpBitXor, nil
	case "<<":
		return pyast.OpLShift, nil
	case ">>":
		return pyast.OpRShift, nil
	case "@":
		return pyast.OpMatMul, nil
	default:
		return 0, fmt.Errorf("pyfront: binary operator %q: %w", text, ErrUnsupportedNode)
	}
}

func binOpFromAugText(text string) (pyast.BinOpKind, error) {
	return binOpFromText(strings.TrimSuffix(text, "="))
}

func convertBinaryOp(node *sitter.Node, src []byte) (pyast.Expr, error) {
	left, err := convertExpr(node.ChildByFieldName("left"), src)
	if err != nil {
		return nil, err
	}
	right, err := convertExpr(node.ChildByFieldName("right"), src)
	if err != nil {
		return nil, err
	}
	opNode := node.ChildByFieldName("operator")
	if opNode == nil {
		return nil, fmt.Errorf("pyfront: binary operator missing: %w", ErrUnsupportedNode)
	}
	op, err := binOpFromText(opNode.Content(src))
	if err != nil {
		return nil, err
	}
	return &pyast.BinOp{Left: left, Op: op, Right: right}, nil
}

func convertUnaryOp(node *sitter.Node, src []byte) (pyast.Expr, error) {
	operand, err := convertExpr(node.ChildByFieldName("argument"), src)
	if err != nil {
		return nil, err
	}
	opNode := node.ChildByFieldName("operator")
	if opNode == nil {
		return nil, fmt.Errorf("pyfront: unary operator missing: %w", ErrUnsupportedNode)
	}
	switch opNode.Content(src) {
	case "-":
		return &pyast.UnaryOp{Op: pyast.UnaryNeg, Operand: operand}, nil
	case "+":
		return &pyast.UnaryOp{Op: pyast.UnaryPos, Operand: operand}, nil
	case "~":
		return &pyast.UnaryOp{Op: pyast.UnaryInvert, Operand: operand}, nil
	default:
		return nil, fmt.Errorf("pyfront: unary operator %q: %w", opNode.Content(src), ErrUnsupportedNode)
	}
}

func convertBoolOp(node *sitter.Node, src []byte) (pyast.Expr, error) {
	left, err := convertExpr(node.ChildByFieldName("left"), src)
	if err != nil {
		return nil, err
	}
	right, err := convertExpr(node.ChildByFieldName("right"), src)
	if err != nil {
		return nil, err
	}
	opNode := node.ChildByFieldName("operator")
	var op pyast.BoolOpKind
	switch {
	case opNode != nil && opNode.Content(src) == "or":
		op = pyast.BoolOr
	default:
		op = pyast.BoolAnd
	}
	// Flatten a left-leaning chain of the same operator into one BoolOp, the
	// way pyast.BoolOp models `a and b and c` as Values=[a,b,c].
	if chained, ok := left.(*pyast.BoolOp); ok && chained.Op == op {
		return &pyast.BoolOp{Op: op, Values: append(chained.Values, right)}, nil
	}
	return &pyast.BoolOp{Op: op, Values: []pyast.Expr{left, right}}, nil
}

var cmpOpText = map[string]pyast.CmpOpKind{
	"==":     pyast.CmpEq,
	"!=":     pyast.CmpNotEq,
	"<":      pyast.CmpLt,
	"<=":     pyast.CmpLtE,
	">":      pyast.CmpGt,
	">=":     pyast.CmpGtE,
	"is":     pyast.CmpIs,
	"is not": pyast.CmpIsNot,
	"in":     pyast.CmpIn,
	"not in": pyast.CmpNotIn,
}

func convertComparison(node *sitter.Node, src []byte) (pyast.Expr, error) {
	var operands []*sitter.Node
	var opTexts []string
	pending := ""
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.IsNamed() {
			operands = append(operands, child)
			if pending != "" {
				opTexts = append(opTexts, pending)
				pending = ""
			}
			continue
		}
		text := child.Content(src)
		if pending == "" {
			pending = text
		} else {
			pending = pending + " " + text
		}
	}
	if len(operands) < 2 || len(opTexts) != len(operands)-1 {
		return nil, fmt.Errorf("pyfront: malformed comparison chain: %w", ErrUnsupportedNode)
	}
	left, err := convertExpr(operands[0], src)
	if err != nil {
		return nil, err
	}
	compare := &pyast.Compare{Left: left}
	for i, opText := range opTexts {
		op, ok := cmpOpText[opText]
		if !ok {
			return nil, fmt.Errorf("pyfront: comparison operator %q: %w", opText, ErrUnsupportedNode)
		}
		operand, err := convertExpr(operands[i+1], src)
		if err != nil {
			return nil, err
		}
		compare.Ops = append(compare.Ops, op)
		compare.Comparators = append(compare.Comparators, operand)
	}
	return compare, nil
}

func convertCall(node *sitter.Node, src []byte) (pyast.Expr, error) {
	fn, err := convertExpr(node.ChildByFieldName("function"), src)
	if err != nil {
		return nil, err
	}
	argsNode := node.ChildByFieldName("arguments")
	call := &pyast.Call{Func: fn}
	if argsNode == nil {
		return call, nil
	}
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		arg := argsNode.NamedChild(i)
		if arg.Type() == "keyword_argument" {
			nameNode := arg.ChildByFieldName("name")
			valueNode := arg.ChildByFieldName("value")
			value, err := convertExpr(valueNode, src)
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, pyast.Keyword{Name: nameNode.Content(src), Value: value})
			continue
		}
		if arg.Type() == "dictionary_splat" {
			value, err := convertExpr(arg.NamedChild(0), src)
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, pyast.Keyword{Value: value})
			continue
		}
		value, err := convertExpr(arg, src)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, value)
	}
	return call, nil
}

func convertAttribute(node *sitter.Node, src []byte) (pyast.Expr, error) {
	valueNode := node.ChildByFieldName("object")
	attrNode := node.ChildByFieldName("attribute")
	if valueNode == nil || attrNode == nil {
		return nil, fmt.Errorf("pyfront: malformed attribute access: %w", ErrUnsupportedNode)
	}
	value, err := convertExpr(valueNode, src)
	if err != nil {
		return nil, err
	}
	return &pyast.Attribute{Value: value, Attr: attrNode.Content(src)}, nil
}

func convertSubscript(node *sitter.Node, src []byte) (pyast.Expr, error) {
	valueNode := node.ChildByFieldName("value")
	if valueNode == nil {
		return nil, fmt.Errorf("pyfront: malformed subscript: %w", ErrUnsupportedNode)
	}
	value, err := convertExpr(valueNode, src)
	if err != nil {
		return nil, err
	}
	var index pyast.Expr
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == valueNode {
			continue
		}
		index, err = convertExpr(child, src)
		if err != nil {
			return nil, err
		}
		break
	}
	return &pyast.Subscript{Value: value, Index: index}, nil
}

func convertSlice(node *sitter.Node, src []byte) (pyast.Expr, error) {
	slice := &pyast.Slice{}
	fields := []string{"start", "stop", "step"}
	targets := []*pyast.Expr{&slice.Lower, &slice.Upper, &slice.Step}
	for i, field := range fields {
		n := node.ChildByFieldName(field)
		if n == nil {
			continue
		}
		v, err := convertExpr(n, src)
		if err != nil {
			return nil, err
		}
		*targets[i] = v
	}
	return slice, nil
}

func convertExprList(node *sitter.Node, src []byte) ([]pyast.Expr, error) {
	var elts []pyast.Expr
	for i := 0; i < int(node.NamedChildCount()); i++ {
		elt, err := convertExpr(node.NamedChild(i), src)
		if err != nil {
			return nil, err
		}
		elts = append(elts, elt)
	}
	return elts, nil
}

func convertDict(node *sitter.Node, src []byte) (pyast.Expr, error) {
	dict := &pyast.Dict{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "dictionary_splat" {
			value, err := convertExpr(child.NamedChild(0), src)
			if err != nil {
				return nil, err
			}
			dict.Entries = append(dict.Entries, pyast.DictEntry{Value: value})
			continue
		}
		keyNode := child.ChildByFieldName("key")
		valueNode := child.ChildByFieldName("value")
		if keyNode == nil || valueNode == nil {
			return nil, fmt.Errorf("pyfront: malformed dict pair: %w", ErrUnsupportedNode)
		}
		key, err := convertExpr(keyNode, src)
		if err != nil {
			return nil, err
		}
		value, err := convertExpr(valueNode, src)
		if err != nil {
			return nil, err
		}
		dict.Entries = append(dict.Entries, pyast.DictEntry{Key: key, Value: value})
	}
	return dict, nil
}

func convertComp(node *sitter.Node, src []byte, kind pyast.CompKind) (pyast.Expr, error) {
	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return nil, fmt.Errorf("pyfront: malformed comprehension: %w", ErrUnsupportedNode)
	}
	elt, err := convertExpr(bodyNode, src)
	if err != nil {
		return nil, err
	}
	generators, err := convertComprehensionClauses(node, src)
	if err != nil {
		return nil, err
	}
	return &pyast.Comp{Kind: kind, Elt: elt, Generators: generators}, nil
}

func convertDictComp(node *sitter.Node, src []byte) (pyast.Expr, error) {
	keyNode := node.ChildByFieldName("key")
	valueNode := node.ChildByFieldName("value")
	if keyNode == nil || valueNode == nil {
		return nil, fmt.Errorf("pyfront: malformed dict comprehension: %w", ErrUnsupportedNode)
	}
	key, err := convertExpr(keyNode, src)
	if err != nil {
		return nil, err
	}
	value, err := convertExpr(valueNode, src)
	if err != nil {
		return nil, err
	}
	generators, err := convertComprehensionClauses(node, src)
	if err != nil {
		return nil, err
	}
	return &pyast.Comp{Kind: pyast.CompDict, Key: key, Elt: value, Generators: generators}, nil
}

func convertComprehensionClauses(node *sitter.Node, src []byte) ([]pyast.Comprehension, error) {
	var clauses []pyast.Comprehension
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "for_in_clause":
			leftNode := child.ChildByFieldName("left")
			rightNode := child.ChildByFieldName("right")
			if leftNode == nil || rightNode == nil {
				return nil, fmt.Errorf("pyfront: malformed for-in clause: %w", ErrUnsupportedNode)
			}
			target, err := convertExpr(leftNode, src)
			if err != nil {
				return nil, err
			}
			iter, err := convertExpr(rightNode, src)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, pyast.Comprehension{Target: target, Iter: iter})
		case "if_clause":
			if len(clauses) == 0 {
				return nil, fmt.Errorf("pyfront: if clause before any for clause: %w", ErrUnsupportedNode)
			}
			cond, err := convertExpr(child.NamedChild(0), src)
			if err != nil {
				return nil, err
			}
			last := &clauses[len(clauses)-1]
			last.Ifs = append(last.Ifs, cond)
		}
	}
	return clauses, nil
}

func convertIfExp(node *sitter.Node, src []byte) (pyast.Expr, error) {
	bodyNode := node.ChildByFieldName("consequence")
	testNode := node.ChildByFieldName("condition")
	orelseNode := node.ChildByFieldName("alternative")
	if bodyNode == nil || testNode == nil || orelseNode == nil {
		return nil, fmt.Errorf("pyfront: malformed conditional expression: %w", ErrUnsupportedNode)
	}
	body, err := convertExpr(bodyNode, src)
	if err != nil {
		return nil, err
	}
	test, err := convertExpr(testNode, src)
	if err != nil {
		return nil, err
	}
	orelse, err := convertExpr(orelseNode, src)
	if err != nil {
		return nil, err
	}
	return &pyast.IfExp{Test: test, Body: body, Orelse: orelse}, nil
}

func convertLambda(node *sitter.Node, src []byte) (pyast.Expr, error) {
	params, err := convertParams(node.ChildByFieldName("parameters"), src)
	if err != nil {
		return nil, err
	}
	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return nil, fmt.Errorf("pyfront: lambda without a body: %w", ErrUnsupportedNode)
	}
	body, err := convertExpr(bodyNode, src)
	if err != nil {
		return nil, err
	}
	return &pyast.Lambda{Params: params, Body: body}, nil
}

func convertYield(node *sitter.Node, src []byte) (pyast.Expr, error) {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "from" {
			value, err := convertExpr(node.NamedChild(0), src)
			if err != nil {
				return nil, err
			}
			return &pyast.YieldFrom{Value: value}, nil
		}
	}
	if node.NamedChildCount() == 0 {
		return &pyast.Yield{}, nil
	}
	value, err := convertExpr(node.NamedChild(0), src)
	if err != nil {
		return nil, err
	}
	return &pyast.Yield{Value: value}, nil
}
