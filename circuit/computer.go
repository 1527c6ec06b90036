//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"fmt"
)

// Compute evaluates the circuit in the clear with the per-party input
// bits and returns the output bits.
func (c *Circuit) Compute(inputs [][]bool) ([]bool, error) {
	if len(inputs) != len(c.InputWires) {
		return nil, fmt.Errorf("invalid number of inputs: got %d, expected %d",
			len(inputs), len(c.InputWires))
	}
	wires := make([]bool, c.NumWires)
	for p, in := range inputs {
		if len(in) != len(c.InputWires[p]) {
			return nil, fmt.Errorf("invalid input %d: got %d bits, expected %d",
				p, len(in), len(c.InputWires[p]))
		}
		for i, w := range c.InputWires[p] {
			wires[w] = in[i]
		}
	}

	for _, gate := range c.Gates {
		a := wires[gate.Input0]
		b := wires[gate.Input1]

		var result bool
		switch gate.Op {
		case XOR:
			result = a != b
		case XNOR:
			result = a == b
		case AND:
			result = a && b
		case OR:
			result = a || b
		case INV:
			result = !a
		default:
			return nil, fmt.Errorf("invalid gate %s", gate.Op)
		}
		wires[gate.Output] = result
	}

	result := make([]bool, len(c.OutputWires))
	for i, w := range c.OutputWires {
		result[i] = wires[w]
	}
	return result, nil
}
