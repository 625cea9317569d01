package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/corelang/pyaot/errs"
)

// CurrentVersion is the only binary format version this package produces or
// accepts.
const CurrentVersion uint32 = 1

// Serialize renders p to the binary wire format described in spec.md 6:
// a version header, instruction stream, constants section, name tables,
// source map, and the scalar trailer fields.
func Serialize(p *Program) ([]byte, error) {
	buf := &bytes.Buffer{}
	writeU32(buf, CurrentVersion)
	writeProgramBody(buf, p)
	return buf.Bytes(), nil
}

// Deserialize is the strict inverse of Serialize. It fails with
// ErrVersionMismatch if the header is not CurrentVersion, and with
// ErrTruncatedInput on any short read.
func Deserialize(data []byte) (*Program, error) {
	r := bytes.NewReader(data)
	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("deserialize program header: %w", errs.ErrTruncatedInput)
	}
	if version != CurrentVersion {
		return nil, fmt.Errorf("program version %d: %w", version, errs.ErrVersionMismatch)
	}
	return readProgramBody(r)
}

func writeProgramBody(buf *bytes.Buffer, p *Program) {
	writeU32(buf, uint32(len(p.Instructions)))
	for _, ins := range p.Instructions {
		packed := uint32(ins.Op) | (ins.Arg&0xFFFFFF)<<8
		writeU32(buf, packed)
	}

	writeU32(buf, uint32(len(p.Constants)))
	for _, c := range p.Constants {
		writeConstant(buf, c)
	}

	writeStringTable(buf, p.Varnames)
	writeStringTable(buf, p.Names)
	writeStringTable(buf, p.Cellvars)
	writeStringTable(buf, p.Freevars)

	writeU32(buf, uint32(len(p.SourceMap)))
	for _, e := range p.SourceMap {
		writeU32(buf, e.Line)
		writeU16(buf, e.Column)
		writeU32(buf, e.Offset)
	}

	writeString(buf, p.Filename)
	writeString(buf, p.Name)

	writeU32(buf, p.FirstLineNo)
	writeU32(buf, p.ArgCount)
	writeU32(buf, p.PosOnlyArgCount)
	writeU32(buf, p.KwOnlyArgCount)
	writeU32(buf, p.StackSize)
	buf.WriteByte(byte(p.Flags))
}

func readProgramBody(r *bytes.Reader) (*Program, error) {
	p := &Program{}

	insCount, err := readU32(r)
	if err != nil {
		return nil, truncated("instruction count")
	}
	p.Instructions = make([]Instruction, insCount)
	for i := range p.Instructions {
		packed, err := readU32(r)
		if err != nil {
			return nil, truncated("instruction")
		}
		p.Instructions[i] = Instruction{Op: Opcode(packed & 0xFF), Arg: packed >> 8}
	}

	constCount, err := readU32(r)
	if err != nil {
		return nil, truncated("constant count")
	}
	p.Constants = make([]Value, constCount)
	for i := range p.Constants {
		v, err := readConstant(r)
		if err != nil {
			return nil, err
		}
		p.Constants[i] = v
	}

	if p.Varnames, err = readStringTable(r); err != nil {
		return nil, err
	}
	if p.Names, err = readStringTable(r); err != nil {
		return nil, err
	}
	if p.Cellvars, err = readStringTable(r); err != nil {
		return nil, err
	}
	if p.Freevars, err = readStringTable(r); err != nil {
		return nil, err
	}

	mapCount, err := readU32(r)
	if err != nil {
		return nil, truncated("source map count")
	}
	p.SourceMap = make([]SourceMapEntry, mapCount)
	for i := range p.SourceMap {
		line, err := readU32(r)
		if err != nil {
			return nil, truncated("source map line")
		}
		col, err := readU16(r)
		if err != nil {
			return nil, truncated("source map column")
		}
		offset, err := readU32(r)
		if err != nil {
			return nil, truncated("source map offset")
		}
		p.SourceMap[i] = SourceMapEntry{Line: line, Column: col, Offset: offset}
	}

	if p.Filename, err = readString(r); err != nil {
		return nil, err
	}
	if p.Name, err = readString(r); err != nil {
		return nil, err
	}

	if p.FirstLineNo, err = readU32(r); err != nil {
		return nil, truncated("firstlineno")
	}
	if p.ArgCount, err = readU32(r); err != nil {
		return nil, truncated("argcount")
	}
	if p.PosOnlyArgCount, err = readU32(r); err != nil {
		return nil, truncated("posonlyargcount")
	}
	if p.KwOnlyArgCount, err = readU32(r); err != nil {
		return nil, truncated("kwonlyargcount")
	}
	if p.StackSize, err = readU32(r); err != nil {
		return nil, truncated("stacksize")
	}
	flagByte, err := r.ReadByte()
	if err != nil {
		return nil, truncated("flags")
	}
	p.Flags = Flags(flagByte)

	return p, nil
}

func writeConstant(buf *bytes.Buffer, v Value) {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case KindNone:
	case KindBool:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindInt:
		writeU64(buf, uint64(v.Int))
	case KindBigInt:
		writeString(buf, v.BigInt)
	case KindFloat:
		writeU64(buf, floatBits(v.Float))
	case KindComplex:
		writeU64(buf, floatBits(v.Real))
		writeU64(buf, floatBits(v.Imag))
	case KindString:
		writeString(buf, v.Str)
	case KindBytes:
		writeU32(buf, uint32(len(v.Bytes)))
		buf.Write(v.Bytes)
	case KindTuple:
		writeU32(buf, uint32(len(v.Tuple)))
		for _, e := range v.Tuple {
			writeConstant(buf, e)
		}
	case KindFrozenSet:
		writeU32(buf, uint32(len(v.Set)))
		for _, e := range v.Set {
			writeConstant(buf, e)
		}
	case KindCode:
		writeProgramBody(buf, v.Code)
	}
}

func readConstant(r *bytes.Reader) (Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return Value{}, truncated("constant tag")
	}
	kind := ValueKind(tagByte)
	switch kind {
	case KindNone:
		return NoneValue(), nil
	case KindBool:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, truncated("bool constant")
		}
		return BoolValue(b != 0), nil
	case KindInt:
		v, err := readU64(r)
		if err != nil {
			return Value{}, truncated("int constant")
		}
		return IntValue(int64(v)), nil
	case KindBigInt:
		s, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBigInt, BigInt: s}, nil
	case KindFloat:
		bits, err := readU64(r)
		if err != nil {
			return Value{}, truncated("float constant")
		}
		return FloatValue(floatFromBits(bits)), nil
	case KindComplex:
		reBits, err := readU64(r)
		if err != nil {
			return Value{}, truncated("complex real")
		}
		imBits, err := readU64(r)
		if err != nil {
			return Value{}, truncated("complex imag")
		}
		return ComplexValue(floatFromBits(reBits), floatFromBits(imBits)), nil
	case KindString:
		s, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case KindBytes:
		n, err := readU32(r)
		if err != nil {
			return Value{}, truncated("bytes length")
		}
		b := make([]byte, n)
		if _, err := readFull(r, b); err != nil {
			return Value{}, truncated("bytes payload")
		}
		return BytesValue(b), nil
	case KindTuple:
		n, err := readU32(r)
		if err != nil {
			return Value{}, truncated("tuple length")
		}
		elts := make([]Value, n)
		for i := range elts {
			if elts[i], err = readConstant(r); err != nil {
				return Value{}, err
			}
		}
		return TupleValue(elts), nil
	case KindFrozenSet:
		n, err := readU32(r)
		if err != nil {
			return Value{}, truncated("frozenset length")
		}
		elts := make([]Value, n)
		for i := range elts {
			if elts[i], err = readConstant(r); err != nil {
				return Value{}, err
			}
		}
		return FrozenSetValue(elts), nil
	case KindCode:
		nested, err := readProgramBody(r)
		if err != nil {
			return Value{}, err
		}
		return CodeValue(nested), nil
	default:
		return Value{}, fmt.Errorf("unknown constant tag %d: %w", tagByte, errs.ErrTruncatedInput)
	}
}

func writeStringTable(buf *bytes.Buffer, table []string) {
	writeU32(buf, uint32(len(table)))
	for _, s := range table {
		writeString(buf, s)
	}
}

func readStringTable(r *bytes.Reader) ([]string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, truncated("string table count")
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", truncated("string length")
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", truncated("string payload")
	}
	return string(b), nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var tmp [2]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(tmp[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil || n != len(b) {
		return n, fmt.Errorf("short read: %w", errs.ErrTruncatedInput)
	}
	return n, nil
}

func truncated(field string) error {
	return fmt.Errorf("%s: %w", field, errs.ErrTruncatedInput)
}

func floatBits(f float64) uint64     { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }
