package bytecode

import (
	"testing"

	"github.com/corelang/pyaot/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlatform() *Program {
	nested := &Program{
		Instructions: []Instruction{
			{Op: LoadConst, Arg: 0},
			{Op: ReturnValue},
		},
		Constants:   []Value{NoneValue()},
		Varnames:    []string{},
		Names:       []string{},
		Cellvars:    []string{},
		Freevars:    []string{},
		Filename:    "nested.py",
		Name:        "inner",
		FirstLineNo: 1,
		ArgCount:    0,
		StackSize:   1,
	}

	return &Program{
		Instructions: []Instruction{
			{Op: LoadFast, Arg: 0},
			{Op: LoadConst, Arg: 0},
			{Op: BinaryAdd},
			{Op: ReturnValue},
		},
		Constants: []Value{
			IntValue(1),
			FloatValue(3.5),
			StringValue("hi"),
			BytesValue([]byte{1, 2, 3}),
			TupleValue([]Value{IntValue(1), IntValue(2)}),
			FrozenSetValue([]Value{StringValue("a")}),
			BigIntValue("12345678901234567890"),
			ComplexValue(1.0, -2.0),
			BoolValue(true),
			CodeValue(nested),
		},
		Varnames:    []string{"x"},
		Names:       []string{"helper"},
		Cellvars:    []string{},
		Freevars:    []string{"outer_x"},
		SourceMap:   []SourceMapEntry{{Line: 1, Column: 0, Offset: 0}, {Line: 2, Column: 4, Offset: 4}},
		Filename:    "sample.py",
		Name:        "compute",
		FirstLineNo: 10,
		ArgCount:    1,
		StackSize:   2,
		Flags:       FlagIsNested,
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	p := samplePlatform()
	data, err := Serialize(p)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, p.Instructions, got.Instructions)
	assert.Equal(t, p.Varnames, got.Varnames)
	assert.Equal(t, p.Names, got.Names)
	assert.Equal(t, p.Freevars, got.Freevars)
	assert.Equal(t, p.SourceMap, got.SourceMap)
	assert.Equal(t, p.Filename, got.Filename)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.FirstLineNo, got.FirstLineNo)
	assert.Equal(t, p.ArgCount, got.ArgCount)
	assert.Equal(t, p.StackSize, got.StackSize)
	assert.Equal(t, p.Flags, got.Flags)

	require.Len(t, got.Constants, len(p.Constants))
	for i := range p.Constants {
		if p.Constants[i].Kind == KindCode {
			assert.Equal(t, p.Constants[i].Code.Name, got.Constants[i].Code.Name)
			assert.Equal(t, p.Constants[i].Code.Instructions, got.Constants[i].Code.Instructions)
			continue
		}
		assert.True(t, p.Constants[i].equal(got.Constants[i]), "constant %d mismatch: %+v != %+v", i, p.Constants[i], got.Constants[i])
	}
}

func TestDeserialize_VersionMismatch(t *testing.T) {
	data, err := Serialize(samplePlatform())
	require.NoError(t, err)
	// Corrupt the version header (first 4 bytes, little-endian 1) to 2.
	data[0] = 2

	_, err = Deserialize(data)
	assert.ErrorIs(t, err, errs.ErrVersionMismatch)
}

func TestDeserialize_TruncatedInput(t *testing.T) {
	data, err := Serialize(samplePlatform())
	require.NoError(t, err)

	_, err = Deserialize(data[:6])
	assert.ErrorIs(t, err, errs.ErrTruncatedInput)
}

func TestDeserialize_EmptyInput(t *testing.T) {
	_, err := Deserialize(nil)
	assert.ErrorIs(t, err, errs.ErrTruncatedInput)
}

func TestConstantPool_Dedup(t *testing.T) {
	pool := NewConstantPool()
	i1 := pool.Intern(IntValue(42))
	i2 := pool.Intern(StringValue("x"))
	i3 := pool.Intern(IntValue(42))
	i4 := pool.Intern(TupleValue([]Value{IntValue(1), IntValue(2)}))
	i5 := pool.Intern(TupleValue([]Value{IntValue(1), IntValue(2)}))

	assert.Equal(t, i1, i3)
	assert.Equal(t, i4, i5)
	assert.NotEqual(t, i1, i2)
	assert.Len(t, pool.Values(), 3)
}

func TestInstructionEncoding_24BitBoundary(t *testing.T) {
	// An argument of 2^24 - 1 fits directly in the packed 24-bit field.
	maxDirect := uint32(1<<24 - 1)
	p := &Program{
		Instructions: []Instruction{{Op: LoadConst, Arg: maxDirect}},
		Constants:    []Value{},
		Varnames:     []string{},
		Names:        []string{},
		Cellvars:     []string{},
		Freevars:     []string{},
	}
	data, err := Serialize(p)
	require.NoError(t, err)
	got, err := Deserialize(data)
	require.NoError(t, err)
	require.Len(t, got.Instructions, 1)
	assert.Equal(t, maxDirect, got.Instructions[0].Arg)

	// One larger requires the compiler to emit an EXTENDED_ARG prefix; the
	// encoding itself still round-trips any 24-bit field losslessly, and the
	// overflow portion belongs to a preceding EXTENDED_ARG instruction.
	over := &Program{
		Instructions: []Instruction{
			{Op: ExtendedArg, Arg: 1},
			{Op: LoadConst, Arg: 0},
		},
		Constants: []Value{},
		Varnames:  []string{},
		Names:     []string{},
		Cellvars:  []string{},
		Freevars:  []string{},
	}
	data2, err := Serialize(over)
	require.NoError(t, err)
	got2, err := Deserialize(data2)
	require.NoError(t, err)
	assert.Equal(t, over.Instructions, got2.Instructions)
}

func TestNormalizeBigIntDigits(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"007", "7"},
		{"0", "0"},
		{"-007", "-7"},
		{"123", "123"},
		{"-0", "0"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeBigIntDigits(c.in), "input %q", c.in)
	}
}
