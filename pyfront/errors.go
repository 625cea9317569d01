package pyfront

import "errors"

// ErrUnsupportedNode marks a tree-sitter node this best-effort front end
// does not translate. It is not part of the errs package's sentinel family:
// nothing downstream of traits/compiler/vm matches on it, since no core
// analysis component depends on pyfront.
var ErrUnsupportedNode = errors.New("pyfront: unsupported syntax")
