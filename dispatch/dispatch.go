// Package dispatch implements ExecutionDispatcher: the tri-target router
// that decides whether a compiled Program runs on the calling goroutine, on
// an isolated worker goroutine, or on a remote socket host.
//
// Grounded on the teacher's analyzer.Analyzer struct, which carries an
// afs.Service field (fs afs.Service, constructed via afs.New()) for
// storage-agnostic I/O; Dispatcher reuses that field for the same purpose,
// here backing Program storage (StoreProgram/LoadProgram) rather than
// source-file reads. The socket path itself writes frames directly to the
// connection and does not go through it.
package dispatch

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/viant/afs"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/vm"
)

// Target is the compile-time execution substrate selected for a Program.
type Target uint8

const (
	TargetNative Target = iota
	TargetInBrowser
	TargetSocketHost
)

func (t Target) String() string {
	switch t {
	case TargetNative:
		return "native"
	case TargetInBrowser:
		return "in-browser"
	case TargetSocketHost:
		return "socket-host"
	default:
		return "unknown"
	}
}

// Dispatcher routes a Program to the right execution substrate for its
// resolved Target, spawning isolated workers or a socket round-trip only
// when the Program contains an opcode that disqualifies in-process reuse.
type Dispatcher struct {
	fs         afs.Service
	registry   *registry
	socketPath string
}

// New returns a Dispatcher. socketPath is the well-known socket the
// socket-host target dials when a Program requires isolation; pass "" to
// use the default /tmp/pyaot-server.sock.
func New(socketPath string) *Dispatcher {
	if socketPath == "" {
		socketPath = defaultSocketPath
	}
	return &Dispatcher{
		fs:         afs.New(),
		registry:   newRegistry(),
		socketPath: socketPath,
	}
}

const defaultSocketPath = "/tmp/pyaot-server.sock"

// Dispatch runs p under target, returning its RETURN_VALUE result or the
// first uncaught error. Isolation-triggering opcodes (FOR_ITER, IMPORT_NAME,
// IMPORT_FROM, BUILD_CLASS, SETUP_EXCEPT, RAISE_VARARGS) force an
// in-browser Program onto a worker goroutine and a socket-host Program over
// the wire; everything else runs directly on the calling goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, p *bytecode.Program, args []vm.Value) (vm.Value, error) {
	switch target {
	case TargetNative:
		return runLocal(p, args)
	case TargetInBrowser:
		if !needsIsolation(p) {
			return runLocal(p, args)
		}
		return d.dispatchWorker(ctx, p, args)
	case TargetSocketHost:
		if !needsIsolation(p) {
			return runLocal(p, args)
		}
		return d.dispatchSocket(ctx, p, args)
	default:
		return vm.Value{}, fmt.Errorf("target %v: %w", target, errs.ErrDispatchNotImplemented)
	}
}

func runLocal(p *bytecode.Program, args []vm.Value) (vm.Value, error) {
	return vm.New().Run(p, args)
}

// needsIsolation reports whether any instruction in p requires a worker or
// socket hop rather than direct in-process execution.
func needsIsolation(p *bytecode.Program) bool {
	for _, ins := range p.Instructions {
		if bytecode.RequiresIsolation(ins.Op) {
			return true
		}
	}
	return false
}
