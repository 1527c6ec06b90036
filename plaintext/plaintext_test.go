//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package plaintext

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/markkurossi/hetensor/element"
	"github.com/stretchr/testify/require"
)

func TestWriteF64(t *testing.T) {
	p := New(1.5, -2.25, math.Pi)
	buf := make([]byte, 24)
	require.NoError(t, p.Write(buf, element.F64))
	for i, v := range p {
		got := math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		require.Equal(t, v, got)
	}
}

func TestWriteF32(t *testing.T) {
	p := New(1.5, 0.1)
	buf := make([]byte, 8)
	require.NoError(t, p.Write(buf, element.F32))
	got := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	require.Equal(t, float32(0.1), got)
}

func TestWriteRounding(t *testing.T) {
	p := New(2.5, -2.5, 1.4, -1.6, 0.5)
	expected := []int64{3, -3, 1, -2, 1}

	buf32 := make([]byte, 4*len(p))
	require.NoError(t, p.Write(buf32, element.I32))
	buf64 := make([]byte, 8*len(p))
	require.NoError(t, p.Write(buf64, element.I64))

	for i, e := range expected {
		require.Equal(t, int32(e),
			int32(binary.LittleEndian.Uint32(buf32[i*4:])), "i32[%d]", i)
		require.Equal(t, e,
			int64(binary.LittleEndian.Uint64(buf64[i*8:])), "i64[%d]", i)
	}
}

func TestWriteRange(t *testing.T) {
	buf := make([]byte, 32)

	limits := New(math.MaxInt32, math.MinInt32, -2147483648.4)
	require.NoError(t, limits.Write(buf, element.I32))
	require.Equal(t, int32(math.MaxInt32),
		int32(binary.LittleEndian.Uint32(buf[0:])))
	require.Equal(t, int32(math.MinInt32),
		int32(binary.LittleEndian.Uint32(buf[8:])))

	tests := []struct {
		p     Plaintext
		t     element.Type
		index int
	}{
		{New(1, 3e9), element.I32, 1},
		{New(-3e9), element.I32, 0},
		{New(2147483647.5), element.I32, 0},
		{New(0, 0, math.NaN()), element.I32, 2},
		{New(math.Inf(1)), element.I64, 0},
		{New(1, math.Inf(-1)), element.I64, 1},
		{New(9.3e18), element.I64, 0},
		{New(math.NaN()), element.I64, 0},
	}
	for _, test := range tests {
		for i := range buf {
			buf[i] = 0xff
		}
		err := test.p.Write(buf, test.t)
		var rangeErr *RangeError
		require.True(t, errors.As(err, &rangeErr), "%v %s", test.p, test.t)
		require.Equal(t, test.t, rangeErr.Type)
		require.Equal(t, test.index, rangeErr.Index)
		for i := range buf {
			require.Equal(t, byte(0xff), buf[i], "target modified")
		}
	}
}

func TestWriteUnsupported(t *testing.T) {
	p := New(1)
	buf := make([]byte, 16)
	for _, tp := range []element.Type{
		element.Undefined, element.Dynamic, element.Boolean, element.BF16,
		element.F16, element.I8, element.I16, element.U8, element.U16,
		element.U32, element.U64,
	} {
		err := p.Write(buf, tp)
		var unsupported *UnsupportedEncodingError
		require.True(t, errors.As(err, &unsupported), "%s", tp)
		require.Equal(t, tp, unsupported.Type)
	}
}

func TestWriteEmpty(t *testing.T) {
	var p Plaintext
	for _, tp := range []element.Type{element.F32, element.I64, element.U8} {
		require.ErrorIs(t, p.Write(make([]byte, 8), tp), ErrEmptyPlaintext)
	}
}

func TestWriteShort(t *testing.T) {
	p := New(1, 2, 3)
	require.ErrorIs(t, p.Write(make([]byte, 20), element.F64), ErrShortBuffer)
}

func TestReadRoundTrip(t *testing.T) {
	p := New(1, -2, 3.75)
	for _, tp := range []element.Type{element.F32, element.F64} {
		buf := make([]byte, tp.Size()*len(p))
		require.NoError(t, p.Write(buf, tp))
		got, err := Read(buf, tp, len(p))
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := Read(make([]byte, 4), element.U8, 1)
	require.Error(t, err)
}

func TestDeviation(t *testing.T) {
	max, mean, err := Deviation(New(1, 2, 3), New(1, 2.5, 2))
	require.NoError(t, err)
	require.InDelta(t, 1.0, max, 1e-12)
	require.InDelta(t, 0.5, mean, 1e-12)

	require.True(t, AllClose(New(1, 2), New(1.0001, 2), 1e-3))
	require.False(t, AllClose(New(1, 2), New(1.1, 2), 1e-3))
	require.False(t, AllClose(New(1), New(1, 2), 1e-3))
}

func TestString(t *testing.T) {
	require.Equal(t, "Plaintext( 1 2.5 )", New(1, 2.5).String())
}
