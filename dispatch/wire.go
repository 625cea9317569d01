package dispatch

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/corelang/pyaot/errs"
	"github.com/corelang/pyaot/vm"
)

// Result tags for the dispatcher's value wire format: a one-byte tag
// followed by value bytes.
const (
	tagNone   = 0
	tagInt    = 1
	tagFloat  = 2
	tagBool   = 3
	tagString = 4
)

// encodeResult renders v as a tag byte plus value bytes. Only the kinds the
// dispatcher's result wire format names are supported; anything else
// (Tuple, List, Dict, Function, ...) is out of scope for a cross-substrate
// boundary and reported as a runtime error.
func encodeResult(v vm.Value) ([]byte, error) {
	switch v.Kind {
	case vm.KindNone:
		return []byte{tagNone}, nil
	case vm.KindInt:
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Int))
		return buf, nil
	case vm.KindFloat:
		buf := make([]byte, 9)
		buf[0] = tagFloat
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Float))
		return buf, nil
	case vm.KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{tagBool, b}, nil
	case vm.KindString:
		s := []byte(v.Str)
		buf := make([]byte, 5+len(s))
		buf[0] = tagString
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(s)))
		copy(buf[5:], s)
		return buf, nil
	default:
		return nil, fmt.Errorf("result kind %d not representable on the wire: %w", v.Kind, errs.ErrRuntimeError)
	}
}

// decodeResult is the strict inverse of encodeResult.
func decodeResult(data []byte) (vm.Value, error) {
	if len(data) < 1 {
		return vm.Value{}, fmt.Errorf("decode result tag: %w", errs.ErrTruncatedInput)
	}
	switch data[0] {
	case tagNone:
		return vm.NoneValue(), nil
	case tagInt:
		if len(data) < 9 {
			return vm.Value{}, fmt.Errorf("decode int result: %w", errs.ErrTruncatedInput)
		}
		return vm.IntValue(int64(binary.LittleEndian.Uint64(data[1:9]))), nil
	case tagFloat:
		if len(data) < 9 {
			return vm.Value{}, fmt.Errorf("decode float result: %w", errs.ErrTruncatedInput)
		}
		return vm.FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(data[1:9]))), nil
	case tagBool:
		if len(data) < 2 {
			return vm.Value{}, fmt.Errorf("decode bool result: %w", errs.ErrTruncatedInput)
		}
		return vm.BoolValue(data[1] != 0), nil
	case tagString:
		if len(data) < 5 {
			return vm.Value{}, fmt.Errorf("decode string result length: %w", errs.ErrTruncatedInput)
		}
		n := binary.LittleEndian.Uint32(data[1:5])
		if uint32(len(data)-5) < n {
			return vm.Value{}, fmt.Errorf("decode string result body: %w", errs.ErrTruncatedInput)
		}
		return vm.StringValue(string(data[5 : 5+n])), nil
	default:
		return vm.Value{}, fmt.Errorf("unknown result tag %d: %w", data[0], errs.ErrRuntimeError)
	}
}
