//
// garble.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/markkurossi/hetensor/ot"
)

// Garbled holds a garbled circuit. The zero label of wire w is
// Wires[w] and its one label is Wires[w] xor R. Tables hold four rows
// for each AND and OR gate in the gate order.
type Garbled struct {
	Key    [16]byte
	R      ot.Label
	Wires  []ot.Label
	Tables [][4]ot.Label
}

// Wire returns the zero and one labels of the wire.
func (g *Garbled) Wire(w Wire) ot.Wire {
	l1 := g.Wires[w]
	l1.Xor(g.R)
	return ot.Wire{
		L0: g.Wires[w],
		L1: l1,
	}
}

// Label returns the label of the wire for the value bit.
func (g *Garbled) Label(w Wire, bit bool) ot.Label {
	l := g.Wires[w]
	if bit {
		l.Xor(g.R)
	}
	return l
}

type hasher struct {
	alg cipher.Block
	in  ot.LabelData
	out ot.LabelData
}

func newHasher(key []byte) (*hasher, error) {
	alg, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &hasher{
		alg: alg,
	}, nil
}

// hash computes AES(K) xor K where K = 2a xor 4b xor t.
func (h *hasher) hash(a, b ot.Label, t uint32) ot.Label {
	k := a
	k.Mul2()
	b.Mul4()
	k.Xor(b)
	k.Xor(ot.NewTweak(t))

	k.GetData(&h.in)
	h.alg.Encrypt(h.out[:], h.in[:])

	var pi ot.Label
	pi.SetData(&h.out)
	pi.Xor(k)

	return pi
}

func idx(a, b ot.Label) int {
	var ret int
	if a.S() {
		ret |= 0x2
	}
	if b.S() {
		ret |= 0x1
	}
	return ret
}

// Garble garbles the circuit with free-XOR and point-and-permute.
func (c *Circuit) Garble(rand io.Reader) (*Garbled, error) {
	g := &Garbled{
		Wires:  make([]ot.Label, c.NumWires),
		Tables: make([][4]ot.Label, 0, c.NumNonFree()),
	}
	if _, err := io.ReadFull(rand, g.Key[:]); err != nil {
		return nil, err
	}
	r, err := ot.NewLabel(rand)
	if err != nil {
		return nil, err
	}
	r.SetS(true)
	g.R = r

	for _, wires := range c.InputWires {
		for _, w := range wires {
			g.Wires[w], err = ot.NewLabel(rand)
			if err != nil {
				return nil, err
			}
		}
	}

	h, err := newHasher(g.Key[:])
	if err != nil {
		return nil, err
	}

	for id, gate := range c.Gates {
		a := g.Wires[gate.Input0]

		switch gate.Op {
		case XOR:
			a.Xor(g.Wires[gate.Input1])
			g.Wires[gate.Output] = a

		case XNOR:
			a.Xor(g.Wires[gate.Input1])
			a.Xor(g.R)
			g.Wires[gate.Output] = a

		case INV:
			a.Xor(g.R)
			g.Wires[gate.Output] = a

		case AND, OR:
			c0, err := ot.NewLabel(rand)
			if err != nil {
				return nil, err
			}
			g.Wires[gate.Output] = c0

			var table [4]ot.Label
			for va := 0; va < 2; va++ {
				for vb := 0; vb < 2; vb++ {
					la := g.Label(gate.Input0, va == 1)
					lb := g.Label(gate.Input1, vb == 1)

					var v bool
					if gate.Op == AND {
						v = va == 1 && vb == 1
					} else {
						v = va == 1 || vb == 1
					}
					row := h.hash(la, lb, uint32(id))
					row.Xor(g.Label(gate.Output, v))
					table[idx(la, lb)] = row
				}
			}
			g.Tables = append(g.Tables, table)

		default:
			return nil, fmt.Errorf("invalid gate %s", gate.Op)
		}
	}
	return g, nil
}

// Eval evaluates the garbled circuit. The wires argument holds the
// input wire labels and it receives all other wire labels.
func (c *Circuit) Eval(key []byte, wires []ot.Label,
	tables [][4]ot.Label) error {

	if len(wires) != c.NumWires {
		return fmt.Errorf("invalid number of wires: got %d, expected %d",
			len(wires), c.NumWires)
	}
	if len(tables) != c.NumNonFree() {
		return fmt.Errorf("invalid number of tables: got %d, expected %d",
			len(tables), c.NumNonFree())
	}
	h, err := newHasher(key)
	if err != nil {
		return err
	}

	var t int
	for id, gate := range c.Gates {
		a := wires[gate.Input0]

		switch gate.Op {
		case XOR, XNOR:
			// The one label of the XNOR output is the xor of the
			// input labels.
			a.Xor(wires[gate.Input1])
			wires[gate.Output] = a

		case INV:
			wires[gate.Output] = a

		case AND, OR:
			b := wires[gate.Input1]
			l := h.hash(a, b, uint32(id))
			l.Xor(tables[t][idx(a, b)])
			t++
			wires[gate.Output] = l

		default:
			return fmt.Errorf("invalid gate %s", gate.Op)
		}
	}
	return nil
}
