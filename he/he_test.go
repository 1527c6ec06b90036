//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package he

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const tolerance = 1e-4

var (
	testOnce sync.Once
	testCtx  *Context
	testErr  error
)

func context(t *testing.T) *Context {
	testOnce.Do(func() {
		testCtx, testErr = NewContext(DefaultParams)
	})
	require.NoError(t, testErr)
	return testCtx
}

func requireLanes(t *testing.T, ctx *Context, ct *Ciphertext,
	expected []float64) {

	got, err := ctx.Decrypt(ct)
	require.NoError(t, err)
	require.Len(t, got, len(expected))
	for i := range expected {
		require.InDelta(t, expected[i], got[i], tolerance, "lane %d", i)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	ctx := context(t)
	for _, cplx := range []bool{false, true} {
		values := []float64{1, -2.5, 3.25, 100, -0.001}
		ct, err := ctx.Encrypt(values, cplx)
		require.NoError(t, err)
		require.Equal(t, len(values), ct.Lanes())
		require.Equal(t, cplx, ct.Complex())
		requireLanes(t, ctx, ct, values)
	}
}

func TestBroadcast(t *testing.T) {
	ctx := context(t)
	for _, cplx := range []bool{false, true} {
		scalar, err := ctx.Encrypt([]float64{10}, cplx)
		require.NoError(t, err)
		packed, err := ctx.Encrypt([]float64{1, 2, 3}, cplx)
		require.NoError(t, err)

		sum, err := ctx.Add(scalar, packed)
		require.NoError(t, err)
		requireLanes(t, ctx, sum, []float64{11, 12, 13})

		diff, err := ctx.Sub(packed, scalar)
		require.NoError(t, err)
		requireLanes(t, ctx, diff, []float64{-9, -8, -7})

		masked, err := ctx.AddPlain(packed, []float64{0.5})
		require.NoError(t, err)
		requireLanes(t, ctx, masked, []float64{1.5, 2.5, 3.5})

		unmasked, err := ctx.SubPlain(scalar, []float64{1, 2, 3})
		require.NoError(t, err)
		requireLanes(t, ctx, unmasked, []float64{9, 8, 7})

		neg, err := ctx.Negate(packed)
		require.NoError(t, err)
		requireLanes(t, ctx, neg, []float64{-1, -2, -3})

		scaled, err := ctx.MulPlain(packed, []float64{2})
		require.NoError(t, err)
		requireLanes(t, ctx, scaled, []float64{2, 4, 6})
	}
}

func TestMul(t *testing.T) {
	ctx := context(t)
	a, err := ctx.Encrypt([]float64{1, 2, 3}, false)
	require.NoError(t, err)
	b, err := ctx.Encrypt([]float64{4}, false)
	require.NoError(t, err)

	prod, err := ctx.Mul(a, b)
	require.NoError(t, err)
	requireLanes(t, ctx, prod, []float64{4, 8, 12})

	prod, err = ctx.MulPlain(a, []float64{0.5, -1, 2})
	require.NoError(t, err)
	requireLanes(t, ctx, prod, []float64{0.5, -2, 6})

	c, err := ctx.Encrypt([]float64{1, 2}, true)
	require.NoError(t, err)
	_, err = ctx.Mul(c, c)
	require.ErrorIs(t, err, ErrLayoutMismatch)
	_, err = ctx.MulPlain(c, []float64{1, 2})
	require.ErrorIs(t, err, ErrLayoutMismatch)
	_, err = ctx.Add(a, c)
	require.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestLaneMismatch(t *testing.T) {
	ctx := context(t)
	a, err := ctx.Encrypt([]float64{1, 2, 3}, false)
	require.NoError(t, err)
	b, err := ctx.Encrypt([]float64{1, 2}, false)
	require.NoError(t, err)
	_, err = ctx.Add(a, b)
	require.Error(t, err)

	_, err = ctx.Encrypt(make([]float64, ctx.MaxLanes(false)+1), false)
	require.Error(t, err)
	_, err = ctx.Encrypt(nil, false)
	require.Error(t, err)
}

func TestPublic(t *testing.T) {
	ctx := context(t)
	pub := ctx.Public()
	require.False(t, pub.CanDecrypt())
	require.True(t, ctx.CanDecrypt())

	ct, err := pub.Encrypt([]float64{42}, false)
	require.NoError(t, err)
	_, err = pub.Decrypt(ct)
	require.ErrorIs(t, err, ErrNoSecretKey)
	requireLanes(t, ctx, ct, []float64{42})
}

func TestMarshal(t *testing.T) {
	ctx := context(t)
	ct, err := ctx.Encrypt([]float64{1, 2, 3, 4, 5}, true)
	require.NoError(t, err)

	data, err := ct.MarshalBinary()
	require.NoError(t, err)
	ct2, err := ctx.UnmarshalCiphertext(data)
	require.NoError(t, err)
	require.True(t, ct2.Complex())
	requireLanes(t, ctx, ct2, []float64{1, 2, 3, 4, 5})

	_, err = ctx.UnmarshalCiphertext(data[:3])
	require.Error(t, err)
}

func TestShallowCopy(t *testing.T) {
	ctx := context(t)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(c *Context, v float64) {
			defer wg.Done()
			ct, err := c.Encrypt([]float64{v}, false)
			if err != nil {
				t.Errorf("Encrypt: %v", err)
				return
			}
			got, err := c.Decrypt(ct)
			if err != nil || len(got) != 1 || got[0]-v > tolerance ||
				v-got[0] > tolerance {
				t.Errorf("Decrypt: %v %v", got, err)
			}
		}(ctx.ShallowCopy(), float64(i))
	}
	wg.Wait()
}
