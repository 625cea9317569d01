package capture

import (
	"fmt"

	"github.com/corelang/pyaot/internal/builtins"
	"github.com/corelang/pyaot/pyast"
)

// counter is the monotonic suffix generator that makes every capture
// identifier unique across arbitrarily deep nested closures. The
// compile-time pipeline is single-threaded (spec's concurrency model), so a
// package-level counter needs no synchronisation.
var counter int

func nextSuffix() int {
	counter++
	return counter
}

// ResetCounter restarts the suffix generator. Call once per compilation unit
// so output is deterministic across repeated compiles of the same module.
func ResetCounter() {
	counter = 0
}

// Lift determines fn's capture kind and synthesises its Record.
// capturedVars is TraitAnalyzer's captured_vars list for fn (free names read
// but not bound locally). outerRecord is the capture record of the
// immediately enclosing closure, or nil if fn is nested directly inside a
// plain function; a captured name that is itself a field of outerRecord
// becomes a nested-in-closure projection instead of a fresh field.
func Lift(fn *pyast.FunctionDef, capturedVars []string, outerRecord *Record) Record {
	isRecursive := isSelfRecursive(fn)

	if len(capturedVars) == 0 {
		if isRecursive {
			return Record{Kind: KindRecursive, ForwardDeclare: true}
		}
		return Record{Kind: KindZero}
	}

	kind := KindStandard
	if isRecursive {
		kind = KindRecursive
	}

	var outerFields map[string]string
	if outerRecord != nil {
		outerFields = make(map[string]string, len(outerRecord.Fields))
		for _, f := range outerRecord.Fields {
			outerFields[f.SourceName] = f.Ident
		}
	}

	var fields []Field
	for _, name := range capturedVars {
		ident := fmt.Sprintf("%s_%d", name, nextSuffix())
		mut := Const
		if isMutatedInBody(fn.Body, name) {
			mut = Mut
		}
		field := Field{SourceName: name, Ident: ident, Mutability: mut}
		if outerIdent, ok := outerFields[name]; ok {
			field.OuterField = outerIdent
			kind = KindNestedInClosure
		}
		fields = append(fields, field)
	}

	return Record{Kind: kind, Fields: fields, ForwardDeclare: isRecursive}
}

// isSelfRecursive reports whether fn's own name appears as a direct call
// target anywhere in its body.
func isSelfRecursive(fn *pyast.FunctionDef) bool {
	found := false
	for _, s := range fn.Body {
		pyast.Inspect(s, func(node pyast.Node) bool {
			if found {
				return false
			}
			call, ok := node.(*pyast.Call)
			if !ok {
				return true
			}
			if name, ok := call.Func.(*pyast.Name); ok && name.Id == fn.Name {
				found = true
				return false
			}
			return true
		})
		if found {
			break
		}
	}
	return found
}

// isMutatedInBody reports whether name is mutated anywhere in body: an
// augmented assignment to it, an attribute/subscript assignment through it,
// or a call to a mutating method on it.
func isMutatedInBody(body []pyast.Stmt, name string) bool {
	mutated := false
	for _, s := range body {
		pyast.Inspect(s, func(node pyast.Node) bool {
			if mutated {
				return false
			}
			switch n := node.(type) {
			case *pyast.AugAssign:
				if isBaseName(n.Target, name) {
					mutated = true
				}
			case *pyast.Assign:
				for _, t := range n.Targets {
					if isWriteThrough(t, name) {
						mutated = true
					}
				}
			case *pyast.Call:
				if attr, ok := n.Func.(*pyast.Attribute); ok && builtins.IsMutatingMethod(attr.Attr) {
					if isBaseName(attr.Value, name) {
						mutated = true
					}
				}
			}
			return !mutated
		})
		if mutated {
			break
		}
	}
	return mutated
}

func isBaseName(e pyast.Expr, name string) bool {
	n, ok := e.(*pyast.Name)
	return ok && n.Id == name
}

// isWriteThrough reports whether target is `name.attr = ...` or
// `name[i] = ...` for the given base name (a direct `name = ...` rebinds a
// local, not a mutation of captured state, so it is not counted here).
func isWriteThrough(target pyast.Expr, name string) bool {
	switch t := target.(type) {
	case *pyast.Attribute:
		return isBaseName(t.Value, name)
	case *pyast.Subscript:
		return isBaseName(t.Value, name)
	}
	return false
}
