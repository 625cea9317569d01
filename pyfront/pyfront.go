// Package pyfront is a best-effort source-text front end: it turns real
// Python source into a pyast.Module using a tree-sitter grammar. No analysis
// component depends on it; callers that already hold a pyast.Module (built
// by hand, or by some other producer) never touch this package.
//
// Grounded on the teacher's tree-sitter usage in
// inspector/golang/inspector_tree_sitter.go: a fresh sitter.Parser per call,
// ParseCtx against the source bytes, then a node-type switch walking the
// resulting tree. pyfront follows the same shape against the Python grammar
// instead of Go's.
package pyfront

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/corelang/pyaot/pyast"
)

// Parse converts Python source text into a pyast.Module. The returned
// Module's Name is left empty; callers that need one should set it from the
// file path or package layout.
func Parse(src []byte) (*pyast.Module, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("pyfront: parse source: %w", err)
	}

	root := tree.RootNode()
	if root.Type() != "module" {
		return nil, fmt.Errorf("pyfront: unexpected root node %q: %w", root.Type(), ErrUnsupportedNode)
	}

	body, err := convertBlock(root, src)
	if err != nil {
		return nil, err
	}
	return &pyast.Module{Body: body}, nil
}

// ParseFile reads path and parses it as Python source, naming the resulting
// Module after the file's base name without its extension.
func ParseFile(path string) (*pyast.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyfront: read %s: %w", path, err)
	}
	mod, err := Parse(src)
	if err != nil {
		return nil, err
	}
	mod.Name = moduleNameFromPath(path)
	return mod, nil
}

func moduleNameFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
