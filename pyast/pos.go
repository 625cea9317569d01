// Package pyast defines the tagged AST node types the rest of this module
// consumes. It stands in for whatever an external Python frontend hands the
// pipeline: a tree of statements and expressions with source positions.
// Nothing here parses Python; see package pyfront for a best-effort adapter.
package pyast

// Pos is a source location, relative to a single file.
type Pos struct {
	Line   int
	Column int
	Offset int
}

// Node is implemented by every statement and expression type.
type Node interface {
	Position() Pos
}

type base struct {
	Pos Pos
}

func (b base) Position() Pos { return b.Pos }
