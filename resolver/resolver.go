// Package resolver implements NameResolver: a single, non-recursive walk of
// each function body that classifies every name as a parameter, a local, a
// free (captured) variable, or a global read/write.
//
// Grounded on the teacher's analyzer.GolangAnalyzer.buildScopeHierarchy,
// which builds one scope per declaration and records symbols as it walks;
// here the walk is specialized to a single function body and does not
// recurse into nested function definitions (nested defs get their own
// resolver pass, started separately by the caller).
package resolver

import (
	"fmt"
	"sort"

	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
)

// SymbolTable is the per-function output of NameResolver.
type SymbolTable struct {
	Params        []string
	Locals        map[string]struct{}
	GlobalsRead   map[string]struct{}
	GlobalsWrite  map[string]struct{}
	FreeVars      map[string]struct{}
	declaredGlobal   map[string]struct{} // names declared `global` in this body
	declaredNonlocal map[string]struct{}
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		Locals:           map[string]struct{}{},
		GlobalsRead:      map[string]struct{}{},
		GlobalsWrite:     map[string]struct{}{},
		FreeVars:         map[string]struct{}{},
		declaredGlobal:   map[string]struct{}{},
		declaredNonlocal: map[string]struct{}{},
	}
}

// SortedLocals returns Locals as a deterministically ordered slice, for
// tests and report export.
func (s *SymbolTable) SortedLocals() []string { return sortedKeys(s.Locals) }

// SortedFreeVars returns FreeVars as a deterministically ordered slice.
func (s *SymbolTable) SortedFreeVars() []string { return sortedKeys(s.FreeVars) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve walks fn's body (without crossing into nested function
// definitions) and produces its SymbolTable.
func Resolve(fn *pyast.FunctionDef) (*SymbolTable, error) {
	if fn == nil {
		return nil, fmt.Errorf("resolve function traits: %w", errs.ErrMalformedAST)
	}
	st := newSymbolTable()
	for _, p := range fn.Params {
		st.Params = append(st.Params, p.Name)
		st.Locals[p.Name] = struct{}{}
	}

	// Pass 1: collect every binding introduced anywhere in the body
	// (assignment targets, for-targets, with-bindings, except-bindings,
	// import bindings, global/nonlocal declarations) regardless of nesting
	// depth within this function (but not inside a nested FunctionDef).
	walkBody(fn.Body, func(s pyast.Stmt) {
		collectBindings(s, st)
	})

	// Pass 2: collect every name read; a read of a name not bound locally
	// (and not declared global) is free.
	walkBody(fn.Body, func(s pyast.Stmt) {
		collectReads(s, st)
	})

	return st, nil
}

// walkBody calls visit for every statement reachable from body without
// crossing into a nested FunctionDef or ClassDef (their own bodies get
// their own Resolve call).
func walkBody(body []pyast.Stmt, visit func(pyast.Stmt)) {
	for _, s := range body {
		visit(s)
		switch n := s.(type) {
		case *pyast.FunctionDef, *pyast.ClassDef:
			_ = n
			continue // nested scope: do not descend
		case *pyast.If:
			walkBody(n.Body, visit)
			walkBody(n.Orelse, visit)
		case *pyast.While:
			walkBody(n.Body, visit)
			walkBody(n.Orelse, visit)
		case *pyast.For:
			walkBody(n.Body, visit)
			walkBody(n.Orelse, visit)
		case *pyast.With:
			walkBody(n.Body, visit)
		case *pyast.Try:
			walkBody(n.Body, visit)
			for _, h := range n.Handlers {
				walkBody(h.Body, visit)
			}
			walkBody(n.Orelse, visit)
			walkBody(n.Finally, visit)
		}
	}
}

func collectBindings(s pyast.Stmt, st *SymbolTable) {
	switch n := s.(type) {
	case *pyast.FunctionDef:
		st.Locals[n.Name] = struct{}{}
	case *pyast.ClassDef:
		st.Locals[n.Name] = struct{}{}
	case *pyast.Assign:
		for _, t := range n.Targets {
			bindTarget(t, st)
		}
	case *pyast.AnnAssign:
		bindTarget(n.Target, st)
	case *pyast.AugAssign:
		bindTarget(n.Target, st)
	case *pyast.For:
		bindTarget(n.Target, st)
	case *pyast.With:
		for _, it := range n.Items {
			if it.OptionalVar != nil {
				bindTarget(it.OptionalVar, st)
			}
		}
	case *pyast.Try:
		for _, h := range n.Handlers {
			if h.Name != "" {
				st.Locals[h.Name] = struct{}{}
			}
		}
	case *pyast.Import:
		for _, a := range n.Names {
			name := a.Name
			if a.Alias != "" {
				name = a.Alias
			}
			st.Locals[name] = struct{}{}
		}
	case *pyast.ImportFrom:
		for _, a := range n.Names {
			name := a.Name
			if a.Alias != "" {
				name = a.Alias
			}
			st.Locals[name] = struct{}{}
		}
	case *pyast.Global:
		for _, name := range n.Names {
			st.declaredGlobal[name] = struct{}{}
			delete(st.Locals, name)
		}
	case *pyast.Nonlocal:
		for _, name := range n.Names {
			st.declaredNonlocal[name] = struct{}{}
			delete(st.Locals, name)
		}
	}
}

// bindTarget registers every name introduced by an assignment-like target,
// including tuple/list unpacking and starred targets.
func bindTarget(e pyast.Expr, st *SymbolTable) {
	switch t := e.(type) {
	case *pyast.Name:
		if _, global := st.declaredGlobal[t.Id]; global {
			st.GlobalsWrite[t.Id] = struct{}{}
			return
		}
		if _, nonlocal := st.declaredNonlocal[t.Id]; nonlocal {
			st.FreeVars[t.Id] = struct{}{}
			return
		}
		st.Locals[t.Id] = struct{}{}
	case *pyast.Tuple:
		for _, elt := range t.Elts {
			bindTarget(elt, st)
		}
	case *pyast.List:
		for _, elt := range t.Elts {
			bindTarget(elt, st)
		}
	case *pyast.Starred:
		bindTarget(t.Value, st)
	case *pyast.Attribute, *pyast.Subscript:
		// writing through an attribute/subscript does not bind a new name
	}
}

func collectReads(s pyast.Stmt, st *SymbolTable) {
	if fd, ok := s.(*pyast.FunctionDef); ok {
		// Only the parts evaluated in *this* scope: decorators and
		// parameter defaults. The nested body resolves in its own pass.
		for _, dec := range fd.Decorators {
			inspectExprReads(dec, st)
		}
		for _, p := range fd.Params {
			if p.Default != nil {
				inspectExprReads(p.Default, st)
			}
		}
		return
	}
	if cd, ok := s.(*pyast.ClassDef); ok {
		for _, b := range cd.Bases {
			inspectExprReads(b, st)
		}
		return
	}
	pyast.Inspect(s, func(node pyast.Node) bool {
		if _, ok := node.(*pyast.FunctionDef); ok {
			return false // nested function: own resolver pass handles it
		}
		name, ok := node.(*pyast.Name)
		if !ok {
			return true
		}
		recordRead(name.Id, st)
		return true
	})
}

func inspectExprReads(e pyast.Expr, st *SymbolTable) {
	pyast.Inspect(e, func(node pyast.Node) bool {
		if _, ok := node.(*pyast.FunctionDef); ok {
			return false
		}
		if name, ok := node.(*pyast.Name); ok {
			recordRead(name.Id, st)
		}
		return true
	})
}

func recordRead(name string, st *SymbolTable) {
	if _, isGlobal := st.declaredGlobal[name]; isGlobal {
		st.GlobalsRead[name] = struct{}{}
		return
	}
	if _, isLocal := st.Locals[name]; isLocal {
		return
	}
	if _, isNonlocal := st.declaredNonlocal[name]; isNonlocal {
		st.FreeVars[name] = struct{}{}
		return
	}
	// Not bound anywhere in this function: free variable. Whether it
	// ultimately resolves to a module global or an enclosing function's
	// local is a later-pass concern (TraitAnalyzer); NameResolver only
	// knows it is not locally bound here.
	st.FreeVars[name] = struct{}{}
}
