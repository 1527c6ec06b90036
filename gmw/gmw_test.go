//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package gmw

import (
	"crypto/rand"
	"testing"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/p2p"
	"github.com/stretchr/testify/require"
)

func bits(v int64, n int) []bool {
	result := make([]bool, n)
	for i := range result {
		result[i] = (uint64(v)>>i)&1 == 1
	}
	return result
}

func run(t *testing.T, circ *circuit.Circuit, in0, in1 []bool) []bool {
	c0, c1 := p2p.Pipe()
	defer c0.Close()
	defer c1.Close()

	p0, err := NewPeer(0, c0, rand.Reader)
	require.NoError(t, err)
	p1, err := NewPeer(1, c1, rand.Reader)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		out, err := p0.Run(circ, in0, nil)
		if err == nil && out != nil {
			t.Errorf("party 0 learned outputs")
		}
		done <- err
	}()

	sample := circuit.NewTiming().Sample("GMW", nil)
	out, err := p1.Run(circ, in1, sample)
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Greater(t, p1.Rounds, circ.Depth())

	var phases []string
	for _, sub := range sample.Samples {
		phases = append(phases, sub.Label)
	}
	require.Equal(t, []string{"Triples", "Share", "Eval"}, phases)
	return out
}

func TestGMW(t *testing.T) {
	b := circuit.NewBuilder(circuit.SharingBool, 2, 0)
	x := b.Input(0, 16)
	y := b.Input(1, 16)
	b.Output("min", b.Min(x, y))
	b.Output("sum", b.Add(x, y))
	b.Output("or", []circuit.Wire{b.OR(x[0], y[0])})
	b.Output("relu", b.Relu(b.Sub(x, y)))
	circ, err := b.Compile()
	require.NoError(t, err)

	for _, args := range [][2]int64{{5, 9}, {-300, 12}, {7, -7}, {0, 1}} {
		in0 := bits(args[0], 16)
		in1 := bits(args[1], 16)
		expected, err := circ.Compute([][]bool{in0, in1})
		require.NoError(t, err)

		got := run(t, circ, in0, in1)
		require.Equal(t, expected, got, "args %v", args)
	}
}

func TestTriples(t *testing.T) {
	c0, c1 := p2p.Pipe()
	defer c0.Close()
	defer c1.Close()

	p0, err := NewPeer(0, c0, rand.Reader)
	require.NoError(t, err)
	p1, err := NewPeer(1, c1, rand.Reader)
	require.NoError(t, err)

	const n = 100
	ch := make(chan *Triples, 1)
	go func() {
		t0, err := p0.Triples(n)
		if err != nil {
			t.Errorf("Triples: %v", err)
		}
		ch <- t0
	}()
	t1, err := p1.Triples(n)
	require.NoError(t, err)
	t0 := <-ch
	require.NotNil(t, t0)

	for i := 0; i < n; i++ {
		a := t0.A[i] != t1.A[i]
		b := t0.B[i] != t1.B[i]
		c := t0.C[i] != t1.C[i]
		require.Equal(t, a && b, c, "triple %d", i)
	}
}

func TestPeer(t *testing.T) {
	_, err := NewPeer(2, nil, rand.Reader)
	require.Error(t, err)

	p, err := NewPeer(1, nil, rand.Reader)
	require.NoError(t, err)
	require.Equal(t, "P¹", p.String())
	require.Equal(t, 1, p.ID())
}

func TestBits(t *testing.T) {
	in := []bool{true, false, true, true, false, false, false, true, true}
	out, err := unpackBits(packBits(in), len(in))
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = unpackBits([]byte{1}, 9)
	require.Error(t, err)
}
