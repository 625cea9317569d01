package traits

import "sort"

// CallGraph is the immutable (after construction) whole-module analysis
// result: per-function traits, the method list per class, and the set of
// globals any function modifies.
type CallGraph struct {
	Functions       map[string]*FunctionTraits
	Methods         map[string][]string
	ModifiedGlobals map[string]struct{}
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		Functions:       map[string]*FunctionTraits{},
		Methods:         map[string][]string{},
		ModifiedGlobals: map[string]struct{}{},
	}
}

// Lookup returns the traits for a qualified function/method name.
func (g *CallGraph) Lookup(name string) (*FunctionTraits, bool) {
	t, ok := g.Functions[name]
	return t, ok
}

// SortedFunctionNames returns every key of Functions in sorted order, for
// deterministic iteration in tests and report export.
func (g *CallGraph) SortedFunctionNames() []string {
	names := make([]string, 0, len(g.Functions))
	for n := range g.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsReachable reports whether name was marked called during pass 3.
func (g *CallGraph) IsReachable(name string) bool {
	t, ok := g.Functions[name]
	return ok && t.IsCalled
}
