//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

// Layer holds the gates of one AND depth. The NonFree gates of a
// layer depend only on wires of the earlier layers and they can be
// evaluated in one communication round. The Free gates depend on the
// earlier layers and on the NonFree gates of this layer.
type Layer struct {
	NonFree []int
	Free    []int
}

// Layers groups the circuit gates by their AND depth.
func (c *Circuit) Layers() []Layer {
	depth := make([]int, c.NumWires)
	var layers []Layer

	for idx, gate := range c.Gates {
		d := depth[gate.Input0]
		if gate.Op != INV && depth[gate.Input1] > d {
			d = depth[gate.Input1]
		}
		if !gate.Op.Free() {
			d++
		}
		depth[gate.Output] = d

		for len(layers) <= d {
			layers = append(layers, Layer{})
		}
		if gate.Op.Free() {
			layers[d].Free = append(layers[d].Free, idx)
		} else {
			layers[d].NonFree = append(layers[d].NonFree, idx)
		}
	}
	return layers
}

// Depth returns the AND depth of the circuit.
func (c *Circuit) Depth() int {
	layers := c.Layers()
	if len(layers) == 0 {
		return 0
	}
	return len(layers) - 1
}
