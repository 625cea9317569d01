// Package builtins holds the process-wide immutable name tables consulted
// by the trait analyzer: I/O functions and methods, error-raising calls,
// allocator-requiring builtins, and mutating container methods. These are
// plain package-level maps built once at init time and never mutated
// afterwards, mirroring the read-only lookup tables the teacher repo builds
// for annotation parsing in analyzer/meta.go.
package builtins

var ioFunctions = set(
	"input", "open", "read", "write", "close",
	"get", "post", "put", "delete", "patch",
	"request", "fetch", "connect", "send", "recv", "sendall", "recvfrom", "sendto",
	"sleep", "call", "check_call", "check_output", "communicate", "Popen",
)

var ioMethods = set(
	"flush", "readline", "readlines", "writelines", "json", "text",
)

var errorFunctions = set(
	"raise", "assert", "open", "int", "float", "eval", "exec",
)

var allocatorBuiltins = set(
	"list", "dict", "set", "str", "bytes", "bytearray",
	"range", "map", "filter", "sorted", "reversed", "enumerate", "zip",
)

var mutatingMethods = set(
	"append", "extend", "insert", "pop", "remove", "clear", "sort", "reverse",
)

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// IsIOFunction reports whether name is a bare call known to perform I/O.
func IsIOFunction(name string) bool {
	_, ok := ioFunctions[name]
	return ok
}

// IsIOMethod reports whether a method name (attribute call tail) is known to
// perform I/O, either because it's an I/O method proper or because it also
// appears in the I/O function set (per spec.md 4.2: "or any member of the
// I/O function set").
func IsIOMethod(name string) bool {
	if _, ok := ioMethods[name]; ok {
		return true
	}
	return IsIOFunction(name)
}

// IsErrorFunction reports whether a call to name can raise.
func IsErrorFunction(name string) bool {
	_, ok := errorFunctions[name]
	return ok
}

// IsAllocatorBuiltin reports whether a call to name requires a heap
// allocation in the target runtime.
func IsAllocatorBuiltin(name string) bool {
	_, ok := allocatorBuiltins[name]
	return ok
}

// IsMutatingMethod reports whether a method name mutates its receiver
// in place.
func IsMutatingMethod(name string) bool {
	_, ok := mutatingMethods[name]
	return ok
}
