package dispatch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs/file"

	"github.com/corelang/pyaot/bytecode"
)

// StoreProgram serializes p in the §6 binary layout and writes it to url
// through the Dispatcher's afs.Service, so a Program can be staged on any
// storage backend the service supports (local path, mem://, or a remote
// object store URL) ahead of a socket-host dispatch.
func (d *Dispatcher) StoreProgram(ctx context.Context, url string, p *bytecode.Program) error {
	wire, err := bytecode.Serialize(p)
	if err != nil {
		return fmt.Errorf("serialize program for storage: %w", err)
	}
	if err := d.fs.Upload(ctx, url, file.DefaultFileOsMode, bytes.NewReader(wire)); err != nil {
		return fmt.Errorf("upload program to %s: %w", url, err)
	}
	return nil
}

// LoadProgram reads a Program previously written by StoreProgram back from
// url, using the same byte layout Deserialize expects off the wire.
func (d *Dispatcher) LoadProgram(ctx context.Context, url string) (*bytecode.Program, error) {
	data, err := d.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download program from %s: %w", url, err)
	}
	return bytecode.Deserialize(data)
}
