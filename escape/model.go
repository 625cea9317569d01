// Package escape implements ScopeEscapeAnalyzer: per function body, the set
// of variables declared inside an inner block (with/try/if/while/for) but
// observed outside it, plus cross-sibling for-loop escapes. These drive the
// emitter's hoisted-declaration shapes.
//
// Grounded on the teacher's analyzer scope-building walk (collect bindings,
// then collect reads, intersect) generalised from a single function scope to
// the inner-block/outer-block split spec.md 4.4 calls for.
package escape

import "github.com/corelang/pyaot/pyast"

// Source tags which syntactic construct introduced the escaping variable.
type Source string

const (
	SourceWith    Source = "with"
	SourceTry     Source = "try"
	SourceFor     Source = "for"
	SourceIfWhile Source = "if_while"
)

// EscapedVar is a single variable that needs hoisting to function scope.
type EscapedVar struct {
	Name        string
	Source      Source
	Initializer pyast.Expr // first assigned value, if any
}
