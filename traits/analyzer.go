// Package traits implements TraitAnalyzer: the whole-program pass that
// produces a FunctionTraits record per function/method and the immutable
// CallGraph that later stages (comprehension, escape, capture analysis, and
// ultimately the emitter) consume.
//
// Grounded on the teacher's analyzer.GolangAnalyzer.AnalyzeSourceCode
// pipeline (parse -> build scopes -> process declarations -> process
// expressions) and analyzer/node.go's handleFunction/handleCall/handleReturn
// dispatch; here the three explicit passes from spec.md 4.2 replace the
// single-pass data-lineage walk.
package traits

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/internal/builtins"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
)

// entryPointNames are the reachability roots named in spec.md 6: functions
// whose names equal one of these, plus any name starting with "test_".
var entryPointNames = map[string]struct{}{
	"main":     {},
	"__init__": {},
	"__new__":  {},
}

// Analyze runs the three TraitAnalyzer passes over mod and returns the
// resulting CallGraph.
func Analyze(mod *pyast.Module) (*CallGraph, error) {
	if mod == nil {
		return nil, fmt.Errorf("analyze module: %w", errs.ErrMalformedAST)
	}
	graph := newCallGraph()

	// Pass 1: definition collection.
	type def struct {
		ref FunctionRef
		fn  *pyast.FunctionDef
	}
	var defs []def
	for _, stmt := range mod.Body {
		switch n := stmt.(type) {
		case *pyast.FunctionDef:
			ref := FunctionRef{Module: mod.Name, Name: n.Name}
			defs = append(defs, def{ref, n})
			graph.Functions[ref.String()] = newFunctionTraits(ref, len(n.Params))
		case *pyast.ClassDef:
			for _, member := range n.Body {
				if method, ok := member.(*pyast.FunctionDef); ok {
					ref := FunctionRef{Module: mod.Name, Name: method.Name, Class: n.Name}
					defs = append(defs, def{ref, method})
					graph.Functions[ref.String()] = newFunctionTraits(ref, len(method.Params))
					graph.Methods[n.Name] = append(graph.Methods[n.Name], method.Name)
				}
			}
		}
	}

	// Pass 2: per-function trait inference.
	for _, d := range defs {
		sym, err := resolver.Resolve(d.fn)
		if err != nil {
			log.WithError(err).WithField("function", d.ref.String()).Warn("traits: name resolution failed")
			return nil, fmt.Errorf("resolve %s: %w", d.ref.String(), err)
		}
		t := InferFunctionTraits(d.ref, d.fn, sym)
		if len(sym.GlobalsWrite) > 0 {
			t.ModifiesGlobals = true
			t.clearPurity()
		}
		graph.Functions[d.ref.String()] = t
		for name := range sym.GlobalsWrite {
			graph.ModifiedGlobals[name] = struct{}{}
		}
	}

	// Pass 3: reachability from entry points.
	markReachable(graph)

	return graph, nil
}

// InferFunctionTraits computes the FunctionTraits for a single function body
// given its already-resolved symbol table. Exported so the capture package
// can run the same inference on nested function definitions, which are not
// registered in the module-level CallGraph.
func InferFunctionTraits(ref FunctionRef, fn *pyast.FunctionDef, sym *resolver.SymbolTable) *FunctionTraits {
	t := newFunctionTraits(ref, len(fn.Params))
	paramIndex := make(map[string]int, len(fn.Params))
	for i, p := range fn.Params {
		paramIndex[p.Name] = i
	}

	for _, name := range sym.SortedFreeVars() {
		t.ReadsGlobals = true
		t.CapturedVars = append(t.CapturedVars, name)
	}
	if len(sym.GlobalsRead) > 0 {
		t.ReadsGlobals = true
	}

	for _, stmt := range fn.Body {
		inferStmt(stmt, t, paramIndex, sym)
	}

	t.IsTailRecursive = isTailRecursiveBody(fn.Body, ref)
	t.AsyncComplexity = classifyAsync(t)
	return t
}

func inferStmt(s pyast.Stmt, t *FunctionTraits, paramIndex map[string]int, sym *resolver.SymbolTable) {
	t.opCount++
	switch n := s.(type) {
	case *pyast.Raise:
		t.CanError = true
		if n.Exc != nil {
			inferExpr(n.Exc, t, paramIndex, sym)
		}
		if n.Cause != nil {
			inferExpr(n.Cause, t, paramIndex, sym)
		}
	case *pyast.Try:
		t.CanError = true
		for _, b := range n.Body {
			inferStmt(b, t, paramIndex, sym)
		}
		for _, h := range n.Handlers {
			for _, b := range h.Body {
				inferStmt(b, t, paramIndex, sym)
			}
		}
		for _, b := range n.Orelse {
			inferStmt(b, t, paramIndex, sym)
		}
		for _, b := range n.Finally {
			inferStmt(b, t, paramIndex, sym)
		}
	case *pyast.Assert:
		t.CanError = true
		inferExpr(n.Test, t, paramIndex, sym)
		if n.Msg != nil {
			inferExpr(n.Msg, t, paramIndex, sym)
		}
	case *pyast.Return:
		if n.Value != nil {
			inferExpr(n.Value, t, paramIndex, sym)
			markEscaping(n.Value, t, paramIndex)
		}
	case *pyast.Assign:
		inferExpr(n.Value, t, paramIndex, sym)
		for _, target := range n.Targets {
			inferAssignTarget(target, n.Value, t, paramIndex, sym)
		}
	case *pyast.AugAssign:
		inferExpr(n.Target, t, paramIndex, sym)
		inferExpr(n.Value, t, paramIndex, sym)
		markMutationTarget(n.Target, t, paramIndex)
	case *pyast.AnnAssign:
		if n.Value != nil {
			inferExpr(n.Value, t, paramIndex, sym)
			inferAssignTarget(n.Target, n.Value, t, paramIndex, sym)
		}
	case *pyast.ExprStmt:
		inferExpr(n.Value, t, paramIndex, sym)
	case *pyast.If:
		inferExpr(n.Test, t, paramIndex, sym)
		for _, b := range n.Body {
			inferStmt(b, t, paramIndex, sym)
		}
		for _, b := range n.Orelse {
			inferStmt(b, t, paramIndex, sym)
		}
	case *pyast.While:
		t.hasLoop = true
		inferExpr(n.Test, t, paramIndex, sym)
		for _, b := range n.Body {
			inferStmt(b, t, paramIndex, sym)
		}
		for _, b := range n.Orelse {
			inferStmt(b, t, paramIndex, sym)
		}
	case *pyast.For:
		t.hasLoop = true
		inferExpr(n.Iter, t, paramIndex, sym)
		for _, b := range n.Body {
			inferStmt(b, t, paramIndex, sym)
		}
		for _, b := range n.Orelse {
			inferStmt(b, t, paramIndex, sym)
		}
	case *pyast.With:
		for _, it := range n.Items {
			inferExpr(it.ContextExpr, t, paramIndex, sym)
		}
		for _, b := range n.Body {
			inferStmt(b, t, paramIndex, sym)
		}
	case *pyast.Delete:
		for _, target := range n.Targets {
			inferExpr(target, t, paramIndex, sym)
		}
	case *pyast.FunctionDef:
		t.NeedsAllocator = true // nested function definition allocates a closure
	case *pyast.ClassDef:
		t.NeedsAllocator = true // nested class instantiation
	}
}

func inferExpr(e pyast.Expr, t *FunctionTraits, paramIndex map[string]int, sym *resolver.SymbolTable) {
	if e == nil {
		return
	}
	t.opCount++
	switch n := e.(type) {
	case *pyast.Await:
		t.HasAwait = true
		t.awaitCount++
		inferExpr(n.Value, t, paramIndex, sym)
	case *pyast.Yield:
		t.IsGenerator = true
		if n.Value != nil {
			inferExpr(n.Value, t, paramIndex, sym)
		}
	case *pyast.YieldFrom:
		t.IsGenerator = true
		inferExpr(n.Value, t, paramIndex, sym)
	case *pyast.Call:
		inferCall(n, t, paramIndex, sym)
	case *pyast.List, *pyast.Dict, *pyast.Set:
		t.NeedsAllocator = true
		inferChildren(e, t, paramIndex, sym)
	case *pyast.Comp:
		t.NeedsAllocator = true
		inferChildren(e, t, paramIndex, sym)
	case *pyast.JoinedStr:
		t.NeedsAllocator = true
		inferChildren(e, t, paramIndex, sym)
	case *pyast.BinOp:
		if n.Op == pyast.OpAdd {
			if isStringish(n.Left) || isStringish(n.Right) {
				t.NeedsAllocator = true
			}
		}
		inferChildren(e, t, paramIndex, sym)
	case *pyast.Name:
		if n.Id == "allocator" {
			if _, isParam := paramIndex["allocator"]; isParam {
				t.UsesAllocatorArg = true
			}
		}
	default:
		inferChildren(e, t, paramIndex, sym)
	}
}

func inferChildren(e pyast.Expr, t *FunctionTraits, paramIndex map[string]int, sym *resolver.SymbolTable) {
	pyast.Inspect(e, func(node pyast.Node) bool {
		if node == pyast.Node(e) {
			return true
		}
		if child, ok := node.(pyast.Expr); ok {
			t.opCount++
			switch c := child.(type) {
			case *pyast.Call:
				inferCall(c, t, paramIndex, sym)
				return false
			case *pyast.Await:
				t.HasAwait = true
				t.awaitCount++
			case *pyast.Name:
				if c.Id == "allocator" {
					if _, isParam := paramIndex["allocator"]; isParam {
						t.UsesAllocatorArg = true
					}
				}
			}
		}
		return true
	})
}

func isStringish(e pyast.Expr) bool {
	switch n := e.(type) {
	case *pyast.Constant:
		return n.Kind == pyast.ConstString
	case *pyast.JoinedStr:
		return true
	}
	return false
}

func calleeName(call *pyast.Call) (string, bool) {
	switch f := call.Func.(type) {
	case *pyast.Name:
		return f.Id, true
	case *pyast.Attribute:
		return f.Attr, true
	}
	return "", false
}

func inferCall(call *pyast.Call, t *FunctionTraits, paramIndex map[string]int, sym *resolver.SymbolTable) {
	name, ok := calleeName(call)
	if ok {
		switch f := call.Func.(type) {
		case *pyast.Name:
			if builtins.IsIOFunction(name) {
				t.HasIO = true
				t.clearPurity()
			}
			if builtins.IsErrorFunction(name) {
				t.CanError = true
			}
			if builtins.IsAllocatorBuiltin(name) {
				t.NeedsAllocator = true
			}
			t.Calls = append(t.Calls, FunctionRef{Module: t.Ref.Module, Name: name})
		case *pyast.Attribute:
			if builtins.IsIOMethod(name) {
				t.HasIO = true
				t.clearPurity()
				if name == "json" || name == "text" {
					t.Notes = append(t.Notes, fmt.Sprintf(
						"has_io set unconditionally for .%s() call; caller may not be a network object (ambiguous per spec, not guessed)", name))
				}
			}
			if builtins.IsMutatingMethod(name) {
				markMutationTarget(f.Value, t, paramIndex)
			}
			t.Calls = append(t.Calls, FunctionRef{Module: t.Ref.Module, Name: name})
			inferExpr(f.Value, t, paramIndex, sym)
		}
	}
	for _, a := range call.Args {
		inferExpr(a, t, paramIndex, sym)
	}
	for _, kw := range call.Keywords {
		inferExpr(kw.Value, t, paramIndex, sym)
	}
}

// inferAssignTarget detects obj.attr=, obj[i]=, and name=<param index> as
// mutations, and an assignment of a bare parameter into a global name as a
// param escape.
func inferAssignTarget(target pyast.Expr, value pyast.Expr, t *FunctionTraits, paramIndex map[string]int, sym *resolver.SymbolTable) {
	inferExpr(target, t, paramIndex, sym)
	markMutationTarget(target, t, paramIndex)

	if nameTarget, ok := target.(*pyast.Name); ok {
		if _, isGlobalWrite := sym.GlobalsWrite[nameTarget.Id]; isGlobalWrite {
			if src, ok := value.(*pyast.Name); ok {
				if idx, isParam := paramIndex[src.Id]; isParam {
					t.EscapingParams[idx] = true
				}
			}
		}
	}
}

// markMutationTarget marks mutates_params[i]=true (and clears purity) when
// target is `paramName.attr = ...`, `paramName[i] = ...`, or a bare
// parameter reassignment.
func markMutationTarget(target pyast.Expr, t *FunctionTraits, paramIndex map[string]int) {
	var base pyast.Expr
	switch n := target.(type) {
	case *pyast.Attribute:
		base = n.Value
	case *pyast.Subscript:
		base = n.Value
	case *pyast.Name:
		base = n
	default:
		return
	}
	name, ok := base.(*pyast.Name)
	if !ok {
		return
	}
	idx, isParam := paramIndex[name.Id]
	if !isParam {
		return
	}
	t.MutatesParams[idx] = true
	t.clearPurity()
}

// markEscaping marks names reachable from a return expression as escaping:
// parameter positions go into EscapingParams, local names into
// EscapingLocals. A bare parameter return additionally sets
// ReturnAliasesParam. Nested positions are walked only through the
// escape-inducing shapes spec §4.2 enumerates (tuple/list elements,
// subscript bases, attribute bases, nested call arguments); an operand of a
// binary/unary/comparison/bool op, or a comprehension, computes a fresh
// value that does not alias anything passed in, so it is not walked.
func markEscaping(value pyast.Expr, t *FunctionTraits, paramIndex map[string]int) {
	if name, ok := value.(*pyast.Name); ok {
		if idx, isParam := paramIndex[name.Id]; isParam {
			t.EscapingParams[idx] = true
			i := idx
			t.ReturnAliasesParam = &i
			return
		}
		t.EscapingLocals = appendUnique(t.EscapingLocals, name.Id)
		return
	}
	markEscapingPositions(value, t, paramIndex)
}

func markEscapingPositions(value pyast.Expr, t *FunctionTraits, paramIndex map[string]int) {
	switch n := value.(type) {
	case *pyast.Name:
		if idx, isParam := paramIndex[n.Id]; isParam {
			t.EscapingParams[idx] = true
		} else {
			t.EscapingLocals = appendUnique(t.EscapingLocals, n.Id)
		}
	case *pyast.Tuple:
		for _, e := range n.Elts {
			markEscapingPositions(e, t, paramIndex)
		}
	case *pyast.List:
		for _, e := range n.Elts {
			markEscapingPositions(e, t, paramIndex)
		}
	case *pyast.Subscript:
		markEscapingPositions(n.Value, t, paramIndex)
	case *pyast.Attribute:
		markEscapingPositions(n.Value, t, paramIndex)
	case *pyast.Call:
		for _, a := range n.Args {
			markEscapingPositions(a, t, paramIndex)
		}
		for _, kw := range n.Keywords {
			markEscapingPositions(kw.Value, t, paramIndex)
		}
	}
}

func appendUnique(ss []string, s string) []string {
	for _, existing := range ss {
		if existing == s {
			return ss
		}
	}
	return append(ss, s)
}

func isTailRecursiveBody(body []pyast.Stmt, ref FunctionRef) bool {
	if len(body) == 0 {
		return false
	}
	last, ok := body[len(body)-1].(*pyast.Return)
	if !ok || last.Value == nil {
		return false
	}
	call, ok := last.Value.(*pyast.Call)
	if !ok {
		return false
	}
	name, ok := calleeName(call)
	return ok && name == ref.Name
}

func classifyAsync(t *FunctionTraits) AsyncComplexity {
	switch {
	case t.opCount <= 5 && t.awaitCount == 0 && !t.hasLoop:
		return Trivial
	case t.opCount <= 20 && t.awaitCount <= 1 && !t.hasLoop && !t.IsTailRecursive:
		return Simple
	case t.awaitCount <= 5:
		return Moderate
	default:
		return Complex
	}
}

// markReachable seeds the worklist with entry points (names starting with
// "test_", or equal to main/__init__/__new__) and transitively marks
// is_called for every function reachable from them.
func markReachable(graph *CallGraph) {
	var worklist []string
	for name, t := range graph.Functions {
		if isEntryPoint(t.Ref.Name) {
			worklist = append(worklist, name)
		}
	}
	visited := map[string]bool{}
	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		t, ok := graph.Functions[name]
		if !ok {
			continue
		}
		t.IsCalled = true
		for _, callee := range t.Calls {
			calleeKey := callee.String()
			if _, exists := graph.Functions[calleeKey]; exists && !visited[calleeKey] {
				worklist = append(worklist, calleeKey)
			}
		}
	}
}

func isEntryPoint(name string) bool {
	if _, ok := entryPointNames[name]; ok {
		return true
	}
	return len(name) > 5 && name[:5] == "test_"
}
