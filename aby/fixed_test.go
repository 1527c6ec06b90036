//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"math"
	"testing"

	"github.com/markkurossi/hetensor/env"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	for _, bits := range []int{32, 48, 64} {
		f := fixed{
			bits: bits,
			frac: 16,
			mask: 12,
		}
		for _, v := range []float64{0, 1, -1, 0.5, -0.25, 3.14159, -1000.125} {
			u := f.Encode(v)
			require.InDelta(t, v, f.Decode(u), 1.0/(1<<16), "bits=%d", bits)
			require.Equal(t, u, f.Value(f.Bits(u)))
		}
		require.Equal(t, 1.0, f.Decode(f.Encode(3)-f.Encode(2)))
		require.Equal(t, -1.0, f.Decode(f.Encode(2)-f.Encode(3)))
	}
}

func TestMasks(t *testing.T) {
	f := fixed{
		bits: 64,
		frac: 16,
		mask: 12,
	}
	masks, err := f.Masks(env.NewSeededRandom([]byte("masks")), 1000)
	require.NoError(t, err)

	limit := math.Ldexp(1, f.mask-1)
	for _, m := range masks {
		require.True(t, m >= -limit && m < limit, "mask %v", m)
		require.Equal(t, m, f.Decode(f.Encode(m)))
	}

	again, err := f.Masks(env.NewSeededRandom([]byte("masks")), 1000)
	require.NoError(t, err)
	require.Equal(t, masks, again)
}
