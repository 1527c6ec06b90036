//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package circuit implements Boolean circuits and their secure
// evaluation with Yao's garbled circuits.
package circuit

import (
	"fmt"
	"io"
)

// Operation specifies gate function.
type Operation byte

// Gate functions.
const (
	XOR Operation = iota
	XNOR
	AND
	OR
	INV
)

// Stats holds statistics about circuit operations.
type Stats [INV + 1]int

func (op Operation) String() string {
	switch op {
	case XOR:
		return "XOR"
	case XNOR:
		return "XNOR"
	case AND:
		return "AND"
	case OR:
		return "OR"
	case INV:
		return "INV"
	default:
		return fmt.Sprintf("{Operation %d}", op)
	}
}

// Free tests if the operation is free in garbled circuits and local
// in Boolean sharing.
func (op Operation) Free() bool {
	switch op {
	case XOR, XNOR, INV:
		return true
	default:
		return false
	}
}

// IOArg describes a circuit input or output argument.
type IOArg struct {
	Name string
	Size int
}

func (arg IOArg) String() string {
	return fmt.Sprintf("%s:%d", arg.Name, arg.Size)
}

// IO specifies circuit input and output arguments.
type IO []IOArg

// Size computes the size of the circuit input and output arguments in
// bits.
func (io IO) Size() int {
	var sum int
	for _, a := range io {
		sum += a.Size
	}
	return sum
}

func (io IO) String() string {
	var str = ""
	for i, a := range io {
		if i > 0 {
			str += ", "
		}
		str += a.String()
	}
	return str
}

// Circuit specifies a Boolean circuit. The input wires of party p are
// InputWires[p] and the output wires are OutputWires.
type Circuit struct {
	NumGates    int
	NumWires    int
	Inputs      IO
	InputWires  [][]Wire
	Outputs     IO
	OutputWires []Wire
	Gates       []Gate
	Stats       Stats
}

func (c *Circuit) String() string {
	var stats string

	for k := XOR; k <= INV; k++ {
		v := c.Stats[k]
		if len(stats) > 0 {
			stats += " "
		}
		stats += fmt.Sprintf("%s=%d", k, v)
	}
	return fmt.Sprintf("#gates=%d (%s) #w=%d", c.NumGates, stats, c.NumWires)
}

// Cost computes the relative computational cost of the circuit.
func (c *Circuit) Cost() int {
	return (c.Stats[AND] + c.Stats[OR]) * 4
}

// NumNonFree returns the number of gates that need garbled tables or
// multiplication triples.
func (c *Circuit) NumNonFree() int {
	return c.Stats[AND] + c.Stats[OR]
}

// Dump prints a debug dump of the circuit.
func (c *Circuit) Dump(w io.Writer) {
	fmt.Fprintf(w, "circuit %s\n", c)
	for p, wires := range c.InputWires {
		fmt.Fprintf(w, "input %d: %v\n", p, wires)
	}
	for id, gate := range c.Gates {
		fmt.Fprintf(w, "%04d\t%s\n", id, gate)
	}
	fmt.Fprintf(w, "output: %v\n", c.OutputWires)
}

// Gate specifies a boolean gate.
type Gate struct {
	Input0 Wire
	Input1 Wire
	Output Wire
	Op     Operation
}

func (g Gate) String() string {
	return fmt.Sprintf("%v %v %v", g.Inputs(), g.Op, g.Output)
}

// Inputs returns gate input wires.
func (g Gate) Inputs() []Wire {
	switch g.Op {
	case XOR, XNOR, AND, OR:
		return []Wire{g.Input0, g.Input1}
	case INV:
		return []Wire{g.Input0}
	default:
		panic(fmt.Sprintf("unsupported gate type %s", g.Op))
	}
}

// Wire specifies a wire ID.
type Wire uint32

// ID returns the wire ID as integer.
func (w Wire) ID() int {
	return int(w)
}

func (w Wire) String() string {
	return fmt.Sprintf("w%d", w)
}
