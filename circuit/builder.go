//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"errors"
	"fmt"
)

// Sharing specifies how the circuit is evaluated between the parties.
type Sharing byte

// Circuit sharings.
const (
	SharingYao Sharing = iota
	SharingBool
)

func (s Sharing) String() string {
	switch s {
	case SharingYao:
		return "Yao"
	case SharingBool:
		return "Bool"
	default:
		return fmt.Sprintf("{Sharing %d}", s)
	}
}

// Builder constructs Boolean circuits. Multi-bit values are wire
// slices in two's complement with the least significant bit first.
type Builder struct {
	Sharing Sharing

	numWires    int
	inputs      IO
	inputWires  [][]Wire
	outputs     IO
	outputWires []Wire
	gates       []Gate
	zero        *Wire
	one         *Wire
}

// NewBuilder creates a new circuit builder for the number of parties.
// The reserve argument is the expected number of gates.
func NewBuilder(sharing Sharing, parties, reserve int) *Builder {
	b := &Builder{
		Sharing:    sharing,
		inputWires: make([][]Wire, parties),
		gates:      make([]Gate, 0, reserve),
	}
	for i := 0; i < parties; i++ {
		b.inputs = append(b.inputs, IOArg{
			Name: fmt.Sprintf("party%d", i),
		})
	}
	return b
}

func (b *Builder) newWire() Wire {
	w := Wire(b.numWires)
	b.numWires++
	return w
}

// Input allocates bits input wires for the party.
func (b *Builder) Input(party, bits int) []Wire {
	result := make([]Wire, bits)
	for i := range result {
		result[i] = b.newWire()
	}
	b.inputWires[party] = append(b.inputWires[party], result...)
	b.inputs[party].Size += bits
	return result
}

// Output adds the wires to the circuit outputs.
func (b *Builder) Output(name string, wires []Wire) {
	b.outputs = append(b.outputs, IOArg{
		Name: name,
		Size: len(wires),
	})
	b.outputWires = append(b.outputWires, wires...)
}

func (b *Builder) gate(op Operation, i0, i1 Wire) Wire {
	o := b.newWire()
	b.gates = append(b.gates, Gate{
		Input0: i0,
		Input1: i1,
		Output: o,
		Op:     op,
	})
	return o
}

// XOR adds an XOR gate.
func (b *Builder) XOR(x, y Wire) Wire {
	return b.gate(XOR, x, y)
}

// XNOR adds an XNOR gate.
func (b *Builder) XNOR(x, y Wire) Wire {
	return b.gate(XNOR, x, y)
}

// AND adds an AND gate.
func (b *Builder) AND(x, y Wire) Wire {
	return b.gate(AND, x, y)
}

// OR adds an OR gate.
func (b *Builder) OR(x, y Wire) Wire {
	return b.gate(OR, x, y)
}

// INV adds an inverter gate.
func (b *Builder) INV(x Wire) Wire {
	return b.gate(INV, x, 0)
}

func (b *Builder) anyWire() Wire {
	if b.numWires == 0 {
		panic("circuit: constants need at least one input wire")
	}
	return 0
}

// Zero returns a wire with the constant value 0.
func (b *Builder) Zero() Wire {
	if b.zero == nil {
		w := b.anyWire()
		z := b.XOR(w, w)
		b.zero = &z
	}
	return *b.zero
}

// One returns a wire with the constant value 1.
func (b *Builder) One() Wire {
	if b.one == nil {
		w := b.anyWire()
		o := b.XNOR(w, w)
		b.one = &o
	}
	return *b.one
}

// Constant returns the bits wide constant value v.
func (b *Builder) Constant(v uint64, bits int) []Wire {
	result := make([]Wire, bits)
	for i := range result {
		if v&(1<<i) != 0 {
			result[i] = b.One()
		} else {
			result[i] = b.Zero()
		}
	}
	return result
}

func (b *Builder) adder(x, y []Wire, cin *Wire) []Wire {
	if len(x) != len(y) {
		panic(fmt.Sprintf("circuit: adder width mismatch: %d != %d",
			len(x), len(y)))
	}
	result := make([]Wire, len(x))
	carry := cin
	for i := range x {
		if carry == nil {
			result[i] = b.XOR(x[i], y[i])
			if i+1 < len(x) {
				c := b.AND(x[i], y[i])
				carry = &c
			}
			continue
		}
		xc := b.XOR(x[i], *carry)
		result[i] = b.XOR(xc, y[i])
		if i+1 < len(x) {
			yc := b.XOR(y[i], *carry)
			c := b.XOR(*carry, b.AND(xc, yc))
			carry = &c
		}
	}
	return result
}

// Add returns x+y modulo 2^len(x).
func (b *Builder) Add(x, y []Wire) []Wire {
	return b.adder(x, y, nil)
}

// Sub returns x-y modulo 2^len(x).
func (b *Builder) Sub(x, y []Wire) []Wire {
	ny := make([]Wire, len(y))
	for i, w := range y {
		ny[i] = b.INV(w)
	}
	one := b.One()
	return b.adder(x, ny, &one)
}

// SignedLess returns 1 if x<y as signed values.
func (b *Builder) SignedLess(x, y []Wire) Wire {
	d := b.Sub(x, y)
	msb := len(x) - 1

	// Overflow happens when the operand signs differ and the sign of
	// the difference differs from the sign of x.
	overflow := b.AND(b.XOR(x[msb], y[msb]), b.XOR(x[msb], d[msb]))
	return b.XOR(d[msb], overflow)
}

// Equal returns 1 if x==y.
func (b *Builder) Equal(x, y []Wire) Wire {
	eq := make([]Wire, len(x))
	for i := range x {
		eq[i] = b.XNOR(x[i], y[i])
	}
	for len(eq) > 1 {
		var next []Wire
		for i := 0; i+1 < len(eq); i += 2 {
			next = append(next, b.AND(eq[i], eq[i+1]))
		}
		if len(eq)%2 == 1 {
			next = append(next, eq[len(eq)-1])
		}
		eq = next
	}
	return eq[0]
}

// Mux returns t if sel is 1 and f otherwise.
func (b *Builder) Mux(sel Wire, t, f []Wire) []Wire {
	result := make([]Wire, len(t))
	for i := range t {
		result[i] = b.XOR(f[i], b.AND(sel, b.XOR(t[i], f[i])))
	}
	return result
}

// Min returns the signed minimum of x and y.
func (b *Builder) Min(x, y []Wire) []Wire {
	return b.Mux(b.SignedLess(x, y), x, y)
}

// Max returns the signed maximum of x and y.
func (b *Builder) Max(x, y []Wire) []Wire {
	return b.Mux(b.SignedLess(x, y), y, x)
}

// Relu returns x if x is positive and 0 otherwise.
func (b *Builder) Relu(x []Wire) []Wire {
	pos := b.INV(x[len(x)-1])
	result := make([]Wire, len(x))
	for i := range x {
		result[i] = b.AND(x[i], pos)
	}
	return result
}

// Bit returns a bits wide value that is 1 if w is 1 and 0 otherwise,
// shifted left by shift bits.
func (b *Builder) Bit(w Wire, bits, shift int) []Wire {
	result := make([]Wire, bits)
	for i := range result {
		if i == shift {
			result[i] = w
		} else {
			result[i] = b.Zero()
		}
	}
	return result
}

// Compile returns the constructed circuit.
func (b *Builder) Compile() (*Circuit, error) {
	if len(b.outputWires) == 0 {
		return nil, errors.New("circuit has no outputs")
	}
	c := &Circuit{
		NumGates:    len(b.gates),
		NumWires:    b.numWires,
		Inputs:      append(IO(nil), b.inputs...),
		InputWires:  make([][]Wire, len(b.inputWires)),
		Outputs:     append(IO(nil), b.outputs...),
		OutputWires: append([]Wire(nil), b.outputWires...),
		Gates:       append([]Gate(nil), b.gates...),
	}
	for i, wires := range b.inputWires {
		c.InputWires[i] = append([]Wire(nil), wires...)
	}
	for _, g := range c.Gates {
		c.Stats[g.Op]++
	}
	return c, nil
}
