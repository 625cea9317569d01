package dispatch

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/vm"
)

type workerOutcome struct {
	val vm.Value
	err error
}

// dispatchWorker spawns an isolated worker goroutine for a Program that
// triggers isolation. The Program is round-tripped through the binary wire
// format so the worker executes a distinct, independently owned copy on
// its own VM instance rather than sharing the caller's in-memory Program.
//
// Cancellation is cooperative: the VM has no internal suspension points
// (spec: suspension points are the dispatcher's alone), so a cancelled
// request stops the dispatcher from waiting on the worker and frees its
// handle, but cannot preempt a goroutine already inside vm.Run. The worker
// goroutine runs to completion in the background and its result, if any,
// is discarded.
func (d *Dispatcher) dispatchWorker(ctx context.Context, p *bytecode.Program, args []vm.Value) (vm.Value, error) {
	wire, err := bytecode.Serialize(p)
	if err != nil {
		return vm.Value{}, fmt.Errorf("serialize program for worker: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	h := d.registry.open(cancel)
	defer d.registry.complete(h)

	eg, _ := errgroup.WithContext(workerCtx)
	outcomeCh := make(chan workerOutcome, 1)

	eg.Go(func() error {
		isolated, err := bytecode.Deserialize(wire)
		if err != nil {
			outcomeCh <- workerOutcome{err: fmt.Errorf("deserialize program in worker: %w", err)}
			return nil
		}
		result, err := vm.New().Run(isolated, args)
		outcomeCh <- workerOutcome{val: result, err: err}
		return nil
	})

	select {
	case <-workerCtx.Done():
		log.WithField("handle", h).Warn("dispatch: worker cancelled")
		return vm.Value{}, fmt.Errorf("worker cancelled: %w: %w", errs.ErrRuntimeError, errs.ErrCancelled)
	case o := <-outcomeCh:
		return o.val, o.err
	}
}
