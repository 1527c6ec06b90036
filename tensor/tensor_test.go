//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package tensor

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/markkurossi/hetensor/element"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/value"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Shape{2, 3}
	require.Equal(t, 6, s.Size())
	require.Equal(t, 2, s.BatchSize())
	require.Equal(t, Shape{1, 3}, s.Pack())
	require.Equal(t, Shape{2, 3}, s)
	require.Equal(t, "{2,3}", s.String())
	require.True(t, s.Equal(Shape{2, 3}))
	require.False(t, s.Equal(Shape{3, 2}))
	require.False(t, s.Equal(Shape{2}))

	require.Equal(t, 1, Shape{}.Size())
	require.Equal(t, 1, Shape{}.BatchSize())
}

func TestConfig(t *testing.T) {
	tests := []struct {
		str    string
		config Config
	}{
		{"plain", Config{}},
		{"encrypted", Config{Encrypted: true}},
		{"packed", Config{Packed: true}},
		{"encrypted,packed,complex", Config{
			Encrypted:      true,
			Packed:         true,
			ComplexPacking: true,
		}},
	}
	for _, test := range tests {
		c, err := ParseConfig(test.str)
		require.NoError(t, err)
		require.Equal(t, test.config, c)
		require.Equal(t, test.str, c.String())
	}
	_, err := ParseConfig("encrypted,sparse")
	require.Error(t, err)
}

func flat(n int) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = float64(i + 1)
	}
	return result
}

func TestLayout(t *testing.T) {
	tensor := New("a", element.F64, Shape{2, 3}, Config{Packed: true})
	require.NoError(t, tensor.SetFloat64s(nil, flat(6)))
	require.Len(t, tensor.Values, 3)

	var lanes [][]float64
	for _, v := range tensor.Values {
		require.True(t, v.Packed())
		require.Equal(t, 2, v.Lanes())
		p, err := value.Plain(v)
		require.NoError(t, err)
		lanes = append(lanes, []float64(p))
	}
	if diff := cmp.Diff([][]float64{{1, 4}, {2, 5}, {3, 6}},
		lanes); diff != "" {
		t.Errorf("packed layout mismatch (-want +got):\n%s", diff)
	}

	result, err := tensor.Float64s(nil)
	require.NoError(t, err)
	require.Equal(t, plaintext.New(flat(6)...), result)

	unpacked := New("b", element.F64, Shape{2, 3}, Config{})
	require.NoError(t, unpacked.SetFloat64s(nil, flat(6)))
	require.Len(t, unpacked.Values, 6)
	for _, v := range unpacked.Values {
		require.False(t, v.Packed())
		require.Equal(t, 1, v.Lanes())
	}
}

func TestEncrypted(t *testing.T) {
	ctx, err := he.NewContext(he.DefaultParams)
	require.NoError(t, err)

	for _, config := range []Config{
		{Encrypted: true},
		{Encrypted: true, Packed: true},
		{Encrypted: true, Packed: true, ComplexPacking: true},
		{Encrypted: true, ComplexPacking: true},
	} {
		tensor := New("a", element.F64, Shape{2, 3}, config)
		require.NoError(t, tensor.SetFloat64s(ctx, flat(6)))
		for _, v := range tensor.Values {
			require.True(t, v.Encrypted())
		}
		result, err := tensor.Float64s(ctx)
		require.NoError(t, err)
		require.True(t, plaintext.AllClose(plaintext.New(flat(6)...),
			result, 1e-3), "%v: %v", config, result)

		_, err = tensor.Float64s(ctx.Public())
		require.ErrorIs(t, err, he.ErrNoSecretKey)
	}

	tensor := New("a", element.F64, Shape{2, 3}, Config{Encrypted: true})
	require.Error(t, tensor.SetFloat64s(nil, flat(6)))
}

func TestHostBuffers(t *testing.T) {
	src := make([]byte, 6*4)
	for i, v := range flat(6) {
		binary.LittleEndian.PutUint32(src[i*4:],
			math.Float32bits(float32(v)+0.25))
	}
	tensor := New("a", element.F32, Shape{2, 3}, Config{Packed: true})
	require.NoError(t, tensor.Write(nil, src))

	target := make([]byte, len(src))
	require.NoError(t, tensor.Read(nil, target))
	require.Equal(t, src, target)

	tensor.Type = element.I64
	target = make([]byte, 6*8)
	require.NoError(t, tensor.Read(nil, target))
	for i, v := range flat(6) {
		require.Equal(t, int64(v), int64(binary.LittleEndian.Uint64(target[i*8:])))
	}

	tensor.Type = element.U8
	var uerr *plaintext.UnsupportedEncodingError
	require.ErrorAs(t, tensor.Read(nil, target), &uerr)

	require.Error(t, New("b", element.F32, Shape{2, 3}, Config{}).Write(nil,
		src[:8]))
}

func TestShortValues(t *testing.T) {
	tensor := New("a", element.F64, Shape{2, 3}, Config{})
	require.Error(t, tensor.SetFloat64s(nil, flat(5)))
	_, err := tensor.Float64s(nil)
	require.Error(t, err)
}
