//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testBits = 8

func toBits(v int64, bits int) []bool {
	result := make([]bool, bits)
	for i := range result {
		result[i] = (uint64(v)>>i)&1 == 1
	}
	return result
}

func fromBits(bits []bool) int64 {
	var v uint64
	for i, b := range bits {
		if b {
			v |= 1 << i
		}
	}
	// Sign extend.
	shift := 64 - len(bits)
	return int64(v<<shift) >> shift
}

type binaryOp func(b *Builder, x, y []Wire) []Wire

func build(t *testing.T, op binaryOp) *Circuit {
	b := NewBuilder(SharingYao, 2, 0)
	x := b.Input(0, testBits)
	y := b.Input(1, testBits)
	b.Output("z", op(b, x, y))
	circ, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return circ
}

func wrap(v int64) int64 {
	return fromBits(toBits(v, testBits))
}

var binaryTests = []struct {
	name string
	op   binaryOp
	eval func(x, y int64) int64
}{
	{
		name: "add",
		op:   (*Builder).Add,
		eval: func(x, y int64) int64 { return wrap(x + y) },
	},
	{
		name: "sub",
		op:   (*Builder).Sub,
		eval: func(x, y int64) int64 { return wrap(x - y) },
	},
	{
		name: "min",
		op:   (*Builder).Min,
		eval: func(x, y int64) int64 { return min(x, y) },
	},
	{
		name: "max",
		op:   (*Builder).Max,
		eval: func(x, y int64) int64 { return max(x, y) },
	},
	{
		name: "less",
		op: func(b *Builder, x, y []Wire) []Wire {
			return b.Bit(b.SignedLess(x, y), len(x), 0)
		},
		eval: func(x, y int64) int64 {
			if x < y {
				return 1
			}
			return 0
		},
	},
	{
		name: "equal",
		op: func(b *Builder, x, y []Wire) []Wire {
			return b.Bit(b.Equal(x, y), len(x), 2)
		},
		eval: func(x, y int64) int64 {
			if x == y {
				return 4
			}
			return 0
		},
	},
}

func TestBuilderBinary(t *testing.T) {
	for _, test := range binaryTests {
		circ := build(t, test.op)
		for x := int64(-128); x < 128; x += 3 {
			for y := int64(-128); y < 128; y += 5 {
				out, err := circ.Compute([][]bool{
					toBits(x, testBits),
					toBits(y, testBits),
				})
				if err != nil {
					t.Fatalf("%s: Compute: %v", test.name, err)
				}
				got := fromBits(out)
				expected := test.eval(x, y)
				if got != expected {
					t.Fatalf("%s(%d,%d)=%d, expected %d",
						test.name, x, y, got, expected)
				}
			}
		}
	}
}

func TestBuilderRelu(t *testing.T) {
	b := NewBuilder(SharingBool, 1, 16)
	x := b.Input(0, testBits)
	b.Output("relu", b.Relu(x))
	circ, err := b.Compile()
	if err != nil {
		t.Fatal(err)
	}
	for v := int64(-128); v < 128; v++ {
		out, err := circ.Compute([][]bool{toBits(v, testBits)})
		if err != nil {
			t.Fatal(err)
		}
		if got := fromBits(out); got != max(v, 0) {
			t.Fatalf("relu(%d)=%d", v, got)
		}
	}
}

func TestConstant(t *testing.T) {
	b := NewBuilder(SharingYao, 2, 0)
	x := b.Input(0, testBits)
	b.Input(1, 1)
	b.Output("c", b.Add(x, b.Constant(5, testBits)))
	circ, err := b.Compile()
	if err != nil {
		t.Fatal(err)
	}
	out, err := circ.Compute([][]bool{toBits(10, testBits), {true}})
	if err != nil {
		t.Fatal(err)
	}
	if got := fromBits(out); got != 15 {
		t.Errorf("10+5=%d", got)
	}
}

func TestLayers(t *testing.T) {
	b := NewBuilder(SharingBool, 2, 0)
	x := b.Input(0, 2)
	y := b.Input(1, 2)
	a0 := b.AND(x[0], y[0])
	a1 := b.AND(x[1], y[1])
	s := b.XOR(a0, a1)
	b.Output("z", []Wire{b.AND(s, x[0]), b.INV(s)})
	circ, err := b.Compile()
	if err != nil {
		t.Fatal(err)
	}
	layers := circ.Layers()
	expected := []Layer{
		{},
		{NonFree: []int{0, 1}, Free: []int{2, 4}},
		{NonFree: []int{3}},
	}
	if diff := cmp.Diff(expected, layers); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
	if circ.Depth() != 2 {
		t.Errorf("depth %d, expected 2", circ.Depth())
	}
	if circ.Stats[AND] != 3 || circ.NumNonFree() != 3 {
		t.Errorf("unexpected stats: %v", circ)
	}
	if circ.Cost() != 12 {
		t.Errorf("cost %d, expected 12", circ.Cost())
	}

	var buf bytes.Buffer
	circ.Dump(&buf)
	dump := buf.String()
	for _, line := range []string{"input 0:", "input 1:", "0004\t", "output:"} {
		if !strings.Contains(dump, line) {
			t.Errorf("dump does not contain %q:\n%s", line, dump)
		}
	}
	if n := strings.Count(dump, "\n"); n != 4+len(circ.Gates) {
		t.Errorf("dump has %d lines, expected %d", n, 4+len(circ.Gates))
	}
}

func TestCompileEmpty(t *testing.T) {
	b := NewBuilder(SharingYao, 2, 0)
	b.Input(0, 1)
	if _, err := b.Compile(); err == nil {
		t.Errorf("Compile succeeded without outputs")
	}
}
