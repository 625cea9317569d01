// Package report renders a traits.CallGraph as YAML for tooling and
// debugging, independent of the emitter that actually consumes the graph.
//
// Grounded on the teacher's yaml.v3 usage (analyzer/linage's `yaml:"..."`
// struct tags, analyzer_test.go's yaml.Marshal/Unmarshal round trips) and
// traits.FunctionTraits, which already carries yaml tags for this purpose.
package report

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/corelang/pyaot/traits"
)

// document is the deterministic, ordered shape Render marshals: map
// iteration order is not stable, so Functions and ModifiedGlobals are
// flattened into sorted slices before handing off to yaml.Marshal.
type document struct {
	Functions       []functionEntry     `yaml:"functions"`
	Methods         map[string][]string `yaml:"methods,omitempty"`
	ModifiedGlobals []string            `yaml:"modifiedGlobals,omitempty"`
}

type functionEntry struct {
	Name   string                `yaml:"name"`
	Traits *traits.FunctionTraits `yaml:"traits"`
}

// Render serializes g to YAML.
func Render(g *traits.CallGraph) ([]byte, error) {
	doc := document{}
	for _, name := range g.SortedFunctionNames() {
		doc.Functions = append(doc.Functions, functionEntry{Name: name, Traits: g.Functions[name]})
	}
	if len(g.Methods) > 0 {
		doc.Methods = g.Methods
	}
	if len(g.ModifiedGlobals) > 0 {
		globals := make([]string, 0, len(g.ModifiedGlobals))
		for name := range g.ModifiedGlobals {
			globals = append(globals, name)
		}
		sort.Strings(globals)
		doc.ModifiedGlobals = globals
	}
	return yaml.Marshal(doc)
}

// WriteFile renders g and writes it to path.
func WriteFile(path string, g *traits.CallGraph) error {
	data, err := Render(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
