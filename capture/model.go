// Package capture implements CaptureLifter: given a nested function
// definition, determines its capture kind (zero / standard / recursive /
// nested-in-closure) and synthesises a capture-record layout with
// per-field mutability derived from whether the nested function's own body
// mutates each captured name.
//
// Grounded on the teacher's linage.TouchPoint idea (a field annotated with
// how it is used) generalised from data-lineage reporting to closure
// capture-record synthesis; the uniquifying-suffix counter mirrors the
// monotonic scratch-register counter in funvibe-funxy's compiler.
package capture

import "github.com/corelang/pyaot/pyast"

// Kind classifies how a nested function relates to its enclosing scope.
type Kind int

const (
	KindZero Kind = iota
	KindRecursive
	KindStandard
	KindNestedInClosure
)

func (k Kind) String() string {
	switch k {
	case KindZero:
		return "zero"
	case KindRecursive:
		return "recursive"
	case KindStandard:
		return "standard"
	case KindNestedInClosure:
		return "nested_in_closure"
	default:
		return "unknown"
	}
}

// Mutability tags whether a captured field may be written through the
// nested function.
type Mutability int

const (
	Const Mutability = iota
	Mut
)

func (m Mutability) String() string {
	if m == Mut {
		return "mut"
	}
	return "const"
}

// Field is one slot of a synthesised capture record.
type Field struct {
	// SourceName is the name as it appears in the enclosing scope.
	SourceName string
	// Ident is the unique, shadow-proof identifier assigned to this field
	// (SourceName suffixed by a monotonic counter).
	Ident      string
	Mutability Mutability
	// OuterField is non-empty when this capture itself projects a field of
	// the enclosing closure's own capture record (nested-in-closure).
	OuterField string
}

// Record is the synthesised capture-record layout for one nested function.
type Record struct {
	Kind       Kind
	Fields     []Field
	// ForwardDeclare is true for Kind == KindRecursive: the lifter must
	// emit a forward-declared binding before the body.
	ForwardDeclare bool
}

// Plan bundles the nested function's AST with its synthesised Record.
type Plan struct {
	Fn     *pyast.FunctionDef
	Record Record
}
