package escape

import "github.com/corelang/pyaot/pyast"

// Analyze computes the escapes for a single function body: variables
// declared inside an inner block but referenced outside it, plus
// cross-sibling for-loop escapes.
func Analyze(body []pyast.Stmt) []EscapedVar {
	declared := map[string]*EscapedVar{}
	for _, s := range body {
		walkBlockStmt(s, "", declared)
	}

	referenced := map[string]struct{}{}
	for _, s := range body {
		collectOuterReads(s, referenced)
	}

	var escapes []EscapedVar
	seen := map[string]bool{}
	for name := range referenced {
		if ev, ok := declared[name]; ok && !seen[name] {
			escapes = append(escapes, *ev)
			seen[name] = true
		}
	}

	for _, ev := range crossSiblingForEscapes(body, seen) {
		escapes = append(escapes, ev)
	}

	return escapes
}

// walkBlockStmt recurses into a single statement's inner-block structure,
// registering every binding it introduces. source is the block kind to tag
// plain assignments with when the statement itself isn't a new block
// (it's only consulted by the Assign/AugAssign/AnnAssign branches).
func walkBlockStmt(s pyast.Stmt, source Source, declared map[string]*EscapedVar) {
	switch n := s.(type) {
	case *pyast.With:
		for _, it := range n.Items {
			bindTargetNames(it.OptionalVar, it.ContextExpr, SourceWith, declared)
		}
		walkBlockBody(n.Body, SourceWith, declared)
	case *pyast.Try:
		walkBlockBody(n.Body, SourceTry, declared)
		for _, h := range n.Handlers {
			if h.Name != "" {
				declareOnce(declared, h.Name, SourceTry, nil)
			}
			walkBlockBody(h.Body, SourceTry, declared)
		}
		walkBlockBody(n.Orelse, SourceTry, declared)
		walkBlockBody(n.Finally, SourceTry, declared)
	case *pyast.For:
		bindTargetNames(n.Target, nil, SourceFor, declared)
		walkBlockBody(n.Body, SourceFor, declared)
		walkBlockBody(n.Orelse, SourceFor, declared)
	case *pyast.If:
		walkBlockBody(n.Body, SourceIfWhile, declared)
		walkBlockBody(n.Orelse, SourceIfWhile, declared)
	case *pyast.While:
		walkBlockBody(n.Body, SourceIfWhile, declared)
		walkBlockBody(n.Orelse, SourceIfWhile, declared)
	case *pyast.Assign:
		if source == "" {
			return // a plain top-level assignment is not inside any inner block
		}
		for _, t := range n.Targets {
			bindTargetNames(t, n.Value, source, declared)
		}
	case *pyast.AugAssign:
		if source == "" {
			return
		}
		bindTargetNames(n.Target, n.Value, source, declared)
	case *pyast.AnnAssign:
		if source == "" {
			return
		}
		bindTargetNames(n.Target, n.Value, source, declared)
	}
}

func walkBlockBody(stmts []pyast.Stmt, source Source, declared map[string]*EscapedVar) {
	for _, s := range stmts {
		walkBlockStmt(s, source, declared)
	}
}

// bindTargetNames registers every name introduced by an assignment-like
// target (including tuple/list unpacking and starred targets), tagging each
// with source and, for the first occurrence, init as its initializer.
func bindTargetNames(target pyast.Expr, init pyast.Expr, source Source, declared map[string]*EscapedVar) {
	if target == nil {
		return
	}
	switch t := target.(type) {
	case *pyast.Name:
		declareOnce(declared, t.Id, source, init)
	case *pyast.Tuple:
		for _, elt := range t.Elts {
			bindTargetNames(elt, nil, source, declared)
		}
	case *pyast.List:
		for _, elt := range t.Elts {
			bindTargetNames(elt, nil, source, declared)
		}
	case *pyast.Starred:
		bindTargetNames(t.Value, nil, source, declared)
	}
}

func declareOnce(declared map[string]*EscapedVar, name string, source Source, init pyast.Expr) {
	if _, exists := declared[name]; exists {
		return
	}
	declared[name] = &EscapedVar{Name: name, Source: source, Initializer: init}
}

// collectOuterReads records name reads visible at the outer level: for a
// block statement, only its header expression (test/iter/context-expr), not
// its body; for any other statement, every name it reads.
func collectOuterReads(s pyast.Stmt, referenced map[string]struct{}) {
	switch n := s.(type) {
	case *pyast.If:
		recordReadsExpr(n.Test, referenced)
	case *pyast.While:
		recordReadsExpr(n.Test, referenced)
	case *pyast.For:
		recordReadsExpr(n.Iter, referenced)
	case *pyast.With:
		for _, it := range n.Items {
			recordReadsExpr(it.ContextExpr, referenced)
		}
	case *pyast.Try:
		// no header expression to evaluate in the outer scope
	default:
		pyast.Inspect(s, func(node pyast.Node) bool {
			if name, ok := node.(*pyast.Name); ok {
				referenced[name.Id] = struct{}{}
			}
			return true
		})
	}
}

func recordReadsExpr(e pyast.Expr, referenced map[string]struct{}) {
	if e == nil {
		return
	}
	pyast.Inspect(e, func(node pyast.Node) bool {
		if name, ok := node.(*pyast.Name); ok {
			referenced[name.Id] = struct{}{}
		}
		return true
	})
}

// crossSiblingForEscapes implements spec.md 4.4 step 4: for every pair of
// sibling for-loops (i < j), names declared by loop i (target + body
// assignments) that loop j's iter or body references are additional
// escapes, unless loop j re-declares the name as its own target (shadow).
func crossSiblingForEscapes(body []pyast.Stmt, alreadyEscaped map[string]bool) []EscapedVar {
	var fors []*pyast.For
	for _, s := range body {
		if f, ok := s.(*pyast.For); ok {
			fors = append(fors, f)
		}
	}

	var extra []EscapedVar
	for i := 0; i < len(fors); i++ {
		iDecls := map[string]*EscapedVar{}
		walkBlockStmt(fors[i], SourceFor, iDecls)

		for j := i + 1; j < len(fors); j++ {
			shadowed := map[string]struct{}{}
			recordTargetNames(fors[j].Target, shadowed)

			refs := map[string]struct{}{}
			recordReadsExpr(fors[j].Iter, refs)
			for _, bstmt := range fors[j].Body {
				pyast.Inspect(bstmt, func(node pyast.Node) bool {
					if name, ok := node.(*pyast.Name); ok {
						refs[name.Id] = struct{}{}
					}
					return true
				})
			}

			for name, ev := range iDecls {
				if _, isShadow := shadowed[name]; isShadow {
					continue
				}
				if _, referenced := refs[name]; !referenced {
					continue
				}
				if alreadyEscaped[name] {
					continue
				}
				extra = append(extra, *ev)
				alreadyEscaped[name] = true
			}
		}
	}
	return extra
}

func recordTargetNames(target pyast.Expr, out map[string]struct{}) {
	switch t := target.(type) {
	case *pyast.Name:
		out[t.Id] = struct{}{}
	case *pyast.Tuple:
		for _, elt := range t.Elts {
			recordTargetNames(elt, out)
		}
	case *pyast.List:
		for _, elt := range t.Elts {
			recordTargetNames(elt, out)
		}
	case *pyast.Starred:
		recordTargetNames(t.Value, out)
	}
}
