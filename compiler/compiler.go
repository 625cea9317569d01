// Package compiler implements BytecodeCompiler: lowering of a pyast subset
// into a bytecode.Program.
//
// Grounded on inspector/golang/statement.go and inspector/golang/expression.go's
// switch-on-node-kind recursive descent, repurposed here from metadata
// extraction to instruction emission; the loop/try context stacks follow the
// same "stack of pending patch addresses" shape the teacher uses for nested
// scope tracking in analyzer/golang_analyzer.go's scope stack.
package compiler

import (
	"fmt"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/pyast"
	"github.com/corelang/pyaot/resolver"
)

// scope classifies how a Name reference is compiled: against the local
// varnames frame, the module-level names table, or a captured cell.
type scope int

const (
	scopeName scope = iota
	scopeFast
	scopeGlobal
	scopeDeref
)

type loopCtx struct {
	start         int
	breakJumps    []int
	continueJumps []int
}

type tryCtx struct {
	handlerAddr int
}

// Compiler holds the growing state of a single Program under construction.
type Compiler struct {
	instructions []bytecode.Instruction
	constants    *bytecode.ConstantPool

	varnames   []string
	varnameIdx map[string]int
	names      []string
	nameIdx    map[string]int
	cellvars   []string
	cellIdx    map[string]int
	freevars   []string
	freeIdx    map[string]int

	sourceMap []bytecode.SourceMapEntry
	lastLine  uint32

	loopStack []loopCtx
	tryStack  []tryCtx

	sym *resolver.SymbolTable // nil at module scope

	filename string
	name     string
	line     uint32

	maxDepth int
	curDepth int
}

func newCompiler(filename, name string, sym *resolver.SymbolTable) *Compiler {
	return &Compiler{
		constants:  bytecode.NewConstantPool(),
		varnameIdx: map[string]int{},
		nameIdx:    map[string]int{},
		cellIdx:    map[string]int{},
		freeIdx:    map[string]int{},
		sym:        sym,
		filename:   filename,
		name:       name,
	}
}

// Compile lowers a single function body into a Program. sym is the
// function's resolved symbol table (used to classify every Name reference
// as fast-local, global, or a free/cell variable).
func Compile(fn *pyast.FunctionDef, sym *resolver.SymbolTable) (*bytecode.Program, error) {
	if fn == nil {
		return nil, fmt.Errorf("compile function: %w", errs.ErrUnsupportedStatement)
	}
	c := newCompiler(fn.Name+".py", fn.Name, sym)
	for _, p := range fn.Params {
		c.internVarname(p.Name)
	}
	for _, fv := range sortedSet(sym.FreeVars) {
		c.internFreevar(fv)
	}

	if err := c.compileBody(fn.Body); err != nil {
		return nil, err
	}
	c.emitImplicitReturn()

	flags := bytecode.Flags(0)
	if fn.IsGenerator {
		flags |= bytecode.FlagIsGenerator
	}
	if fn.IsAsync {
		flags |= bytecode.FlagIsCoroutine
	}
	if fn.EnclosingFunc != nil {
		flags |= bytecode.FlagIsNested
	}

	argCount, posOnly, kwOnly := classifyParams(fn.Params)

	return &bytecode.Program{
		Instructions:    c.instructions,
		Constants:       c.constants.Values(),
		Varnames:        c.varnames,
		Names:           c.names,
		Cellvars:        c.cellvars,
		Freevars:        c.freevars,
		SourceMap:       c.sourceMap,
		Filename:        c.filename,
		Name:            c.name,
		FirstLineNo:     uint32(fn.Position().Line),
		ArgCount:        uint32(argCount),
		PosOnlyArgCount: uint32(posOnly),
		KwOnlyArgCount:  uint32(kwOnly),
		StackSize:       uint32(c.maxDepth),
		Flags:           flags,
	}, nil
}

// CompileModule lowers a module's top-level statements. There is no
// enclosing function, so every Name reference compiles against the module
// names table (LOAD_NAME/STORE_NAME/DELETE_NAME), matching the VM's
// global frame (a hash map keyed by the names table) since a module body
// has no local varnames frame of its own.
func CompileModule(mod *pyast.Module) (*bytecode.Program, error) {
	if mod == nil {
		return nil, fmt.Errorf("compile module: %w", errs.ErrUnsupportedStatement)
	}
	c := newCompiler(mod.Name+".py", "<module>", nil)
	if err := c.compileBody(mod.Body); err != nil {
		return nil, err
	}
	c.emitImplicitReturn()

	return &bytecode.Program{
		Instructions: c.instructions,
		Constants:    c.constants.Values(),
		Varnames:     c.varnames,
		Names:        c.names,
		Cellvars:     c.cellvars,
		Freevars:     c.freevars,
		SourceMap:    c.sourceMap,
		Filename:     c.filename,
		Name:         c.name,
		FirstLineNo:  1,
		StackSize:    uint32(c.maxDepth),
	}, nil
}

func classifyParams(params []pyast.Param) (argCount, posOnly, kwOnly int) {
	for _, p := range params {
		switch p.Kind {
		case pyast.ParamPosOnly:
			posOnly++
			argCount++
		case pyast.ParamPositional:
			argCount++
		case pyast.ParamKWOnly:
			kwOnly++
		}
	}
	return
}

func (c *Compiler) compileBody(body []pyast.Stmt) error {
	for _, s := range body {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) emitImplicitReturn() {
	idx := c.constants.Intern(bytecode.NoneValue())
	c.emit(bytecode.LoadConst, uint32(idx))
	c.emit(bytecode.ReturnValue, 0)
}

// emit appends a single packed instruction, promoting to an EXTENDED_ARG
// prefix when arg does not fit in 24 bits, and records the net stack effect.
func (c *Compiler) emit(op bytecode.Opcode, arg uint32) int {
	if arg > 0xFFFFFF {
		c.emitRaw(bytecode.ExtendedArg, arg>>24)
	}
	idx := c.emitRaw(op, arg&0xFFFFFF)
	c.track(bytecode.StackEffect(op, arg))
	return idx
}

func (c *Compiler) emitRaw(op bytecode.Opcode, arg uint32) int {
	c.recordLine()
	c.instructions = append(c.instructions, bytecode.Instruction{Op: op, Arg: arg})
	return len(c.instructions) - 1
}

func (c *Compiler) track(effect int) {
	c.curDepth += effect
	if c.curDepth > c.maxDepth {
		c.maxDepth = c.curDepth
	}
}

// setLine updates the statement/expression line the compiler is currently
// emitting for; recordLine appends a new source-map entry the first time a
// distinct line is observed.
func (c *Compiler) setLine(pos pyast.Pos) { c.line = uint32(pos.Line) }

func (c *Compiler) recordLine() {
	if c.line == c.lastLine && len(c.sourceMap) > 0 {
		return
	}
	c.lastLine = c.line
	c.sourceMap = append(c.sourceMap, bytecode.SourceMapEntry{
		Line:   c.line,
		Offset: uint32(len(c.instructions)),
	})
}

func (c *Compiler) here() int { return len(c.instructions) }

func (c *Compiler) patchTo(idx int, target int) {
	c.instructions[idx].Arg = uint32(target)
}

func (c *Compiler) internVarname(name string) int {
	if idx, ok := c.varnameIdx[name]; ok {
		return idx
	}
	idx := len(c.varnames)
	c.varnames = append(c.varnames, name)
	c.varnameIdx[name] = idx
	return idx
}

func (c *Compiler) internName(name string) int {
	if idx, ok := c.nameIdx[name]; ok {
		return idx
	}
	idx := len(c.names)
	c.names = append(c.names, name)
	c.nameIdx[name] = idx
	return idx
}

func (c *Compiler) internFreevar(name string) int {
	if idx, ok := c.freeIdx[name]; ok {
		return idx
	}
	idx := len(c.freevars)
	c.freevars = append(c.freevars, name)
	c.freeIdx[name] = idx
	return idx
}

func (c *Compiler) internCellvar(name string) int {
	if idx, ok := c.cellIdx[name]; ok {
		return idx
	}
	idx := len(c.cellvars)
	c.cellvars = append(c.cellvars, name)
	c.cellIdx[name] = idx
	return idx
}

// classify decides how a bare Name resolves in the current compile scope.
func (c *Compiler) classify(name string) scope {
	if c.sym == nil {
		return scopeName
	}
	if _, isLocal := c.sym.Locals[name]; isLocal {
		return scopeFast
	}
	if _, isGlobal := c.sym.GlobalsRead[name]; isGlobal {
		return scopeGlobal
	}
	if _, isGlobal := c.sym.GlobalsWrite[name]; isGlobal {
		return scopeGlobal
	}
	if _, isFree := c.sym.FreeVars[name]; isFree {
		return scopeDeref
	}
	return scopeGlobal
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Deterministic emission order keeps freevars/varnames index assignment
	// stable across identical inputs, which constpool dedup and tests rely on.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
