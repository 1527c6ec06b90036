//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/hetensor/ot"
	"github.com/markkurossi/hetensor/p2p"
)

// Garbler runs the garbler side of Yao's protocol. The garbler is
// party 0 and inputs holds its input bits. The OT must be initialized
// as sender. Only the evaluator learns the circuit outputs. The
// protocol phases are recorded as sub-samples of sample, which can be
// nil.
func Garbler(conn *p2p.Conn, oti ot.OT, circ *Circuit, inputs []bool,
	rand io.Reader, sample *Sample) error {

	if len(inputs) != len(circ.InputWires[0]) {
		return fmt.Errorf("invalid garbler inputs: got %d, expected %d",
			len(inputs), len(circ.InputWires[0]))
	}
	garbled, err := circ.Garble(rand)
	if err != nil {
		return err
	}
	sample.SubSample("Garble", time.Now())

	// Send garbled tables.
	if err := conn.SendData(garbled.Key[:]); err != nil {
		return err
	}
	if err := conn.SendUint32(len(garbled.Tables)); err != nil {
		return err
	}
	var data ot.LabelData
	for _, table := range garbled.Tables {
		for _, row := range table {
			if err := conn.SendLabel(row, &data); err != nil {
				return err
			}
		}
	}

	// Send our inputs.
	for idx, w := range circ.InputWires[0] {
		if err := conn.SendLabel(garbled.Label(w, inputs[idx]),
			&data); err != nil {
			return err
		}
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	sample.SubSample("Xfer", time.Now())

	// Peer inputs with OT.
	wires := make([]ot.Wire, len(circ.InputWires[1]))
	for idx, w := range circ.InputWires[1] {
		wires[idx] = garbled.Wire(w)
	}
	if err := oti.Send(wires); err != nil {
		return err
	}
	sample.SubSample("OT", time.Now())

	// Output decoding bits.
	for _, w := range circ.OutputWires {
		var d byte
		if garbled.Wires[w].S() {
			d = 1
		}
		if err := conn.SendByte(d); err != nil {
			return err
		}
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	sample.SubSample("Decode", time.Now())
	return nil
}

// Evaluator runs the evaluator side of Yao's protocol. The evaluator
// is party 1 and inputs holds its input bits. The OT must be
// initialized as receiver. The function returns the circuit output
// bits. The protocol phases are recorded as sub-samples of sample,
// which can be nil.
func Evaluator(conn *p2p.Conn, oti ot.OT, circ *Circuit,
	inputs []bool, sample *Sample) ([]bool, error) {

	if len(inputs) != len(circ.InputWires[1]) {
		return nil, fmt.Errorf("invalid evaluator inputs: got %d, expected %d",
			len(inputs), len(circ.InputWires[1]))
	}

	key, err := conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	count, err := conn.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if count != circ.NumNonFree() {
		return nil, fmt.Errorf("garbled table count mismatch: got %d, expected %d",
			count, circ.NumNonFree())
	}
	var data ot.LabelData
	tables := make([][4]ot.Label, count)
	for i := range tables {
		for j := 0; j < 4; j++ {
			if err := conn.ReceiveLabel(&tables[i][j], &data); err != nil {
				return nil, err
			}
		}
	}

	wires := make([]ot.Label, circ.NumWires)
	for _, w := range circ.InputWires[0] {
		if err := conn.ReceiveLabel(&wires[w], &data); err != nil {
			return nil, err
		}
	}

	sample.SubSample("Xfer", time.Now())

	labels := make([]ot.Label, len(inputs))
	if err := oti.Receive(inputs, labels); err != nil {
		return nil, err
	}
	sample.SubSample("OT", time.Now())
	for idx, w := range circ.InputWires[1] {
		wires[w] = labels[idx]
	}

	if err := circ.Eval(key, wires, tables); err != nil {
		return nil, err
	}
	sample.SubSample("Eval", time.Now())

	result := make([]bool, len(circ.OutputWires))
	for idx, w := range circ.OutputWires {
		d, err := conn.ReceiveByte()
		if err != nil {
			return nil, err
		}
		result[idx] = wires[w].S() != (d == 1)
	}
	return result, nil
}
