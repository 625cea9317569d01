package dispatch

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/vm"
)

// constProgram builds a trivial Program that loads a single constant and
// returns it, optionally interspersed with opcodes that force isolation.
func constProgram(c bytecode.Value, extra ...bytecode.Instruction) *bytecode.Program {
	ins := append([]bytecode.Instruction{{Op: bytecode.LoadConst, Arg: 0}}, extra...)
	ins = append(ins, bytecode.Instruction{Op: bytecode.ReturnValue})
	return &bytecode.Program{
		Name:         "entry",
		Instructions: ins,
		Constants:    []bytecode.Value{c},
		StackSize:    4,
	}
}

func TestNeedsIsolation(t *testing.T) {
	plain := constProgram(bytecode.IntValue(1))
	assert.False(t, needsIsolation(plain))

	withRaise := constProgram(bytecode.IntValue(1), bytecode.Instruction{Op: bytecode.RaiseVarargs, Arg: 0})
	assert.True(t, needsIsolation(withRaise))
}

func TestDispatch_NativeAlwaysRunsInProcess(t *testing.T) {
	p := constProgram(bytecode.IntValue(7))
	d := New("")
	result, err := d.Dispatch(context.Background(), TargetNative, p, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.IntValue(7), result)
}

func TestDispatch_InBrowserRunsInProcessWithoutIsolation(t *testing.T) {
	p := constProgram(bytecode.IntValue(9))
	d := New("")
	result, err := d.Dispatch(context.Background(), TargetInBrowser, p, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.IntValue(9), result)
	assert.Equal(t, 0, d.registry.outstanding())
}

func TestDispatch_InBrowserSpawnsWorkerWhenIsolating(t *testing.T) {
	p := constProgram(bytecode.IntValue(3), bytecode.Instruction{Op: bytecode.RaiseVarargs, Arg: 0})
	// RAISE_VARARGS with argc 0 ignores the loaded constant and is itself an
	// error path (no active exception to re-raise); what matters here is that the
	// isolation hop happened and the handle was released afterward.
	d := New("")
	_, err := d.Dispatch(context.Background(), TargetInBrowser, p, nil)
	require.Error(t, err)
	assert.Equal(t, 0, d.registry.outstanding())
}

func TestDispatch_InBrowserWorkerCancellation(t *testing.T) {
	// No Program is dispatched here: the cancellation is exercised directly
	// against the registry's cancel hook for a freshly opened handle.
	called := false
	d := New("")
	h := d.registry.open(func() { called = true })
	ok := d.registry.cancelHandle(h)
	assert.True(t, ok)
	assert.True(t, called)
	assert.Equal(t, 0, d.registry.outstanding())
	assert.False(t, d.registry.cancelHandle(h))
}

func TestDispatch_InBrowserContextCancelledBeforeWorkerFinishes(t *testing.T) {
	p := constProgram(bytecode.IntValue(1), bytecode.Instruction{Op: bytecode.ForIter, Arg: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New("")
	_, err := d.Dispatch(ctx, TargetInBrowser, p, nil)
	require.Error(t, err)
}

func TestWireEncodeDecodeRoundTrip(t *testing.T) {
	cases := []vm.Value{
		vm.NoneValue(),
		vm.IntValue(-42),
		vm.FloatValue(3.5),
		vm.BoolValue(true),
		vm.StringValue("hola"),
	}
	for _, v := range cases {
		wire, err := encodeResult(v)
		require.NoError(t, err)
		got, err := decodeResult(wire)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestWireEncodeRejectsUnsupportedKind(t *testing.T) {
	_, err := encodeResult(vm.Value{Kind: vm.KindList, List: &vm.ListObj{}})
	require.Error(t, err)
}

func TestWireDecodeTruncatedInput(t *testing.T) {
	_, err := decodeResult([]byte{tagInt, 1, 2})
	require.Error(t, err)
}

func TestDispatch_SocketHostRoundTrip(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "pyaot-server.sock")
	_ = os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Serve(ctx, ln)

	// Give the accept loop a moment to start.
	time.Sleep(20 * time.Millisecond)

	p := constProgram(bytecode.IntValue(11))
	d := New(socketPath)
	// dispatchSocket is exercised directly: needsIsolation(p) is false, so
	// Dispatch itself would short-circuit to runLocal instead of taking
	// the wire round trip this test is checking.
	result, err := d.dispatchSocket(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.IntValue(11), result)
}

func TestDispatch_ProgramStorageRoundTrip(t *testing.T) {
	p := constProgram(bytecode.IntValue(42))
	d := New("")
	url := "mem://localhost/programs/entry.bin"

	require.NoError(t, d.StoreProgram(context.Background(), url, p))
	loaded, err := d.LoadProgram(context.Background(), url)
	require.NoError(t, err)

	result, err := vm.New().Run(loaded, nil)
	require.NoError(t, err)
	assert.Equal(t, vm.IntValue(42), result)
}
