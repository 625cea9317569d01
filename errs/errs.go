// Package errs defines the sentinel errors for every error family in the
// core (analysis, codegen, VM, dispatcher). Call sites wrap a sentinel with
// fmt.Errorf("...: %w", ErrX) so callers can errors.Is/errors.As against a
// specific failure kind, following the teacher repo's
// fmt.Errorf("failed to ...: %w", err) convention.
package errs

import "errors"

// Analysis errors (NameResolver, TraitAnalyzer, ComprehensionAnalyzer,
// ScopeEscapeAnalyzer, CaptureLifter).
var (
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrMalformedAST     = errors.New("malformed ast")
	ErrAnalysisOverflow = errors.New("analysis recursion bound exceeded")
)

// Codegen errors (BytecodeCompiler).
var (
	ErrUnsupportedStatement  = errors.New("unsupported statement")
	ErrUnsupportedExpression = errors.New("unsupported expression")
	ErrUnsupportedOperator   = errors.New("unsupported operator")
	ErrInvalidStoreTarget    = errors.New("invalid store target")
	ErrInvalidDeleteTarget   = errors.New("invalid delete target")
	ErrBreakOutsideLoop      = errors.New("break outside loop")
	ErrContinueOutsideLoop   = errors.New("continue outside loop")
	ErrConstantPoolOverflow  = errors.New("constant pool overflow")
)

// VM errors (BytecodeVM).
var (
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrTypeError       = errors.New("type error")
	ErrNameError       = errors.New("name error")
	ErrZeroDivision    = errors.New("division by zero")
	ErrIndexError      = errors.New("index error")
	ErrAttributeError  = errors.New("attribute error")
	ErrImportError     = errors.New("import error")
	ErrNotImplemented  = errors.New("not implemented")
	ErrRuntimeError    = errors.New("runtime error")
	ErrOutOfMemory     = errors.New("out of memory")
)

// Dispatcher errors (ExecutionDispatcher).
var (
	ErrDispatchNotImplemented = errors.New("dispatch target not implemented")
	ErrWorkerUnavailable      = errors.New("worker unavailable")
	ErrTimeout                = errors.New("timeout")
	ErrCancelled              = errors.New("cancelled")
	ErrSocketError            = errors.New("socket error")
	ErrVersionMismatch        = errors.New("version mismatch")
	ErrTruncatedInput         = errors.New("truncated input")
)
