package pyast

// Inspect traverses node depth-first, calling fn for node and every
// descendant. If fn returns false for a node, Inspect does not recurse into
// that node's children (but still returns). Modeled on go/ast.Inspect.
func Inspect(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Module:
		inspectStmts(n.Body, fn)
	case *FunctionDef:
		for _, p := range n.Params {
			if p.Default != nil {
				Inspect(p.Default, fn)
			}
		}
		inspectStmts(n.Body, fn)
	case *ClassDef:
		for _, b := range n.Bases {
			Inspect(b, fn)
		}
		inspectStmts(n.Body, fn)
	case *Assign:
		for _, t := range n.Targets {
			Inspect(t, fn)
		}
		Inspect(n.Value, fn)
	case *AugAssign:
		Inspect(n.Target, fn)
		Inspect(n.Value, fn)
	case *AnnAssign:
		Inspect(n.Target, fn)
		Inspect(n.Annotation, fn)
		if n.Value != nil {
			Inspect(n.Value, fn)
		}
	case *Return:
		if n.Value != nil {
			Inspect(n.Value, fn)
		}
	case *If:
		Inspect(n.Test, fn)
		inspectStmts(n.Body, fn)
		inspectStmts(n.Orelse, fn)
	case *While:
		Inspect(n.Test, fn)
		inspectStmts(n.Body, fn)
		inspectStmts(n.Orelse, fn)
	case *For:
		Inspect(n.Target, fn)
		Inspect(n.Iter, fn)
		inspectStmts(n.Body, fn)
		inspectStmts(n.Orelse, fn)
	case *With:
		for _, it := range n.Items {
			Inspect(it.ContextExpr, fn)
			if it.OptionalVar != nil {
				Inspect(it.OptionalVar, fn)
			}
		}
		inspectStmts(n.Body, fn)
	case *Try:
		inspectStmts(n.Body, fn)
		for _, h := range n.Handlers {
			if h.Type != nil {
				Inspect(h.Type, fn)
			}
			inspectStmts(h.Body, fn)
		}
		inspectStmts(n.Orelse, fn)
		inspectStmts(n.Finally, fn)
	case *Raise:
		if n.Exc != nil {
			Inspect(n.Exc, fn)
		}
		if n.Cause != nil {
			Inspect(n.Cause, fn)
		}
	case *Assert:
		Inspect(n.Test, fn)
		if n.Msg != nil {
			Inspect(n.Msg, fn)
		}
	case *ExprStmt:
		Inspect(n.Value, fn)
	case *Delete:
		for _, t := range n.Targets {
			Inspect(t, fn)
		}
	case *BinOp:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *UnaryOp:
		Inspect(n.Operand, fn)
	case *BoolOp:
		for _, v := range n.Values {
			Inspect(v, fn)
		}
	case *Compare:
		Inspect(n.Left, fn)
		for _, c := range n.Comparators {
			Inspect(c, fn)
		}
	case *Call:
		Inspect(n.Func, fn)
		for _, a := range n.Args {
			Inspect(a, fn)
		}
		for _, kw := range n.Keywords {
			Inspect(kw.Value, fn)
		}
	case *Attribute:
		Inspect(n.Value, fn)
	case *Subscript:
		Inspect(n.Value, fn)
		Inspect(n.Index, fn)
	case *Slice:
		if n.Lower != nil {
			Inspect(n.Lower, fn)
		}
		if n.Upper != nil {
			Inspect(n.Upper, fn)
		}
		if n.Step != nil {
			Inspect(n.Step, fn)
		}
	case *Tuple:
		for _, e := range n.Elts {
			Inspect(e, fn)
		}
	case *List:
		for _, e := range n.Elts {
			Inspect(e, fn)
		}
	case *Set:
		for _, e := range n.Elts {
			Inspect(e, fn)
		}
	case *Dict:
		for _, entry := range n.Entries {
			if entry.Key != nil {
				Inspect(entry.Key, fn)
			}
			Inspect(entry.Value, fn)
		}
	case *Comp:
		if n.Key != nil {
			Inspect(n.Key, fn)
		}
		Inspect(n.Elt, fn)
		for _, g := range n.Generators {
			Inspect(g.Target, fn)
			Inspect(g.Iter, fn)
			for _, cond := range g.Ifs {
				Inspect(cond, fn)
			}
		}
	case *IfExp:
		Inspect(n.Test, fn)
		Inspect(n.Body, fn)
		Inspect(n.Orelse, fn)
	case *Lambda:
		Inspect(n.Body, fn)
	case *Await:
		Inspect(n.Value, fn)
	case *Yield:
		if n.Value != nil {
			Inspect(n.Value, fn)
		}
	case *YieldFrom:
		Inspect(n.Value, fn)
	case *FormattedValue:
		Inspect(n.Value, fn)
		if n.FormatSpec != nil {
			Inspect(n.FormatSpec, fn)
		}
	case *JoinedStr:
		for _, p := range n.Parts {
			Inspect(p, fn)
		}
	case *Starred:
		Inspect(n.Value, fn)
	}
}

func inspectStmts(stmts []Stmt, fn func(Node) bool) {
	for _, s := range stmts {
		Inspect(s, fn)
	}
}
