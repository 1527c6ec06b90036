//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package value

import (
	"testing"

	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/stretchr/testify/require"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		v         Value
		encrypted bool
		packed    bool
		lanes     int
	}{
		{NewPlain([]float64{1}, false), false, false, 1},
		{NewPlain([]float64{1, 2, 3}, true), false, true, 3},
	}
	for _, test := range tests {
		require.Equal(t, test.encrypted, test.v.Encrypted(), "%v", test.v)
		require.Equal(t, test.packed, test.v.Packed(), "%v", test.v)
		require.Equal(t, test.lanes, test.v.Lanes(), "%v", test.v)
	}
}

func TestEncrypt(t *testing.T) {
	ctx, err := he.NewContext(he.DefaultParams)
	require.NoError(t, err)

	for _, packed := range []bool{false, true} {
		for _, cplx := range []bool{false, true} {
			lanes := []float64{1.5}
			if packed {
				lanes = []float64{1.5, -2, 3}
			}
			v := NewPlain(lanes, packed)
			c, err := Encrypt(ctx, v, cplx)
			require.NoError(t, err)
			require.True(t, c.Encrypted())
			require.Equal(t, packed, c.Packed())
			require.Equal(t, len(lanes), c.Lanes())

			same, err := Encrypt(ctx, c, cplx)
			require.NoError(t, err)
			require.Same(t, c, same)

			p, err := Decrypt(ctx, c)
			require.NoError(t, err)
			require.True(t, plaintext.AllClose(plaintext.New(lanes...), p,
				1e-4), "%v != %v", lanes, p)

			_, err = Decrypt(ctx.Public(), c)
			require.ErrorIs(t, err, he.ErrNoSecretKey)

			_, err = Plain(c)
			require.Error(t, err)
			_, err = Cipher(v)
			require.Error(t, err)
		}
	}
}

func TestDecryptPlainCopies(t *testing.T) {
	v := NewPlain([]float64{1, 2}, true)
	p, err := Decrypt(nil, v)
	require.NoError(t, err)
	p[0] = 42

	orig, err := Plain(v)
	require.NoError(t, err)
	require.Equal(t, 1.0, orig[0])
}

func TestLane(t *testing.T) {
	require.Equal(t, 5.0, Lane(plaintext.New(5), 3))
	require.Equal(t, 3.0, Lane(plaintext.New(1, 2, 3), 2))
}
