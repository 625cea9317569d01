package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/vm"
)

// dispatchSocket connects to the dispatcher's well-known socket, frames the
// Program as (u32 length | serialized Program), and reads back
// (u32 length | u8 tag | value bytes). One connection per request; reads
// and writes are blocking, there is no multiplexing.
func (d *Dispatcher) dispatchSocket(ctx context.Context, p *bytecode.Program, args []vm.Value) (vm.Value, error) {
	if len(args) != 0 {
		log.Warn("dispatch: socket-host target ignores call arguments; Program must be a zero-arg entry point")
	}

	wire, err := bytecode.Serialize(p)
	if err != nil {
		return vm.Value{}, fmt.Errorf("serialize program for socket: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", d.socketPath)
	if err != nil {
		return vm.Value{}, fmt.Errorf("dial %s: %w", d.socketPath, errs.ErrSocketError)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := writeFrame(conn, wire); err != nil {
		return vm.Value{}, fmt.Errorf("write program frame: %w", errs.ErrSocketError)
	}

	payload, err := readFrame(conn)
	if err != nil {
		return vm.Value{}, fmt.Errorf("read result frame: %w", errs.ErrSocketError)
	}

	return decodeResult(payload)
}

// writeFrame writes a u32 little-endian length header followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads a u32 little-endian length header and that many payload
// bytes.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", errs.ErrTruncatedInput)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", errs.ErrTruncatedInput)
	}
	return payload, nil
}

// Serve runs the socket-host side of the dispatcher protocol: it accepts
// one connection per request, deserializes the framed Program, executes it
// on a fresh VM, and writes back the framed (u8 tag | value bytes) result.
// It blocks until ctx is cancelled or the listener errors.
func Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", errs.ErrSocketError)
			}
		}
		go serveConn(conn)
	}
}

func serveConn(conn net.Conn) {
	defer conn.Close()

	wire, err := readFrame(conn)
	if err != nil {
		log.WithError(err).Warn("dispatch: read program frame")
		return
	}

	p, err := bytecode.Deserialize(wire)
	if err != nil {
		log.WithError(err).Warn("dispatch: deserialize program")
		return
	}

	result, runErr := vm.New().Run(p, nil)
	if runErr != nil {
		result = vm.NoneValue()
		log.WithError(runErr).Warn("dispatch: program execution failed")
	}

	payload, err := encodeResult(result)
	if err != nil {
		log.WithError(err).Warn("dispatch: encode result")
		return
	}
	if err := writeFrame(conn, payload); err != nil {
		log.WithError(err).Warn("dispatch: write result frame")
	}
}
