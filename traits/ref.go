package traits

import "fmt"

// FunctionRef identifies a function or method by module, name, and
// (for methods) enclosing class. Equality is structural.
type FunctionRef struct {
	Module string
	Name   string
	Class  string // "" for a plain function
}

// String renders a qualified name suitable for use as a CallGraph key.
func (r FunctionRef) String() string {
	if r.Class == "" {
		return r.Name
	}
	return fmt.Sprintf("%s.%s", r.Class, r.Name)
}
