//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"bytes"
	"fmt"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/value"
	"golang.org/x/xerrors"
)

// Op defines the nonlinear operations of the secure circuit.
type Op byte

// Nonlinear operations.
const (
	OpMinimum Op = iota
	OpMaximum
	OpRelu
	OpLess
	OpGreater
)

var ops = map[Op]string{
	OpMinimum: "minimum",
	OpMaximum: "maximum",
	OpRelu:    "relu",
	OpLess:    "less",
	OpGreater: "greater",
}

func (op Op) String() string {
	name, ok := ops[op]
	if ok {
		return name
	}
	return fmt.Sprintf("{Op %d}", op)
}

// Arity returns the number of operands of the operation.
func (op Op) Arity() int {
	if op == OpRelu {
		return 1
	}
	return 2
}

// Input defines one operand of the batch elements.
type Input struct {
	// Encrypted specifies if the operand is encrypted.
	Encrypted bool

	// Values hold the server's operand values. Encrypted operands
	// hold the masked ciphertexts and plaintext operands the
	// plaintext values.
	Values []value.Value

	// Masks hold the server's input masks of the encrypted operands.
	Masks []plaintext.Plaintext
}

// Batch defines a batch of nonlinear operations. Both peers call
// EvaluateNonlinearBatch with structurally identical batches. The
// client's batch only needs the structure fields.
type Batch struct {
	Op Op

	// Count is the number of elements in the batch.
	Count int

	// Lanes is the number of lanes in each result value.
	Lanes int

	// Packed specifies if the results are packed values.
	Packed bool

	// Complex specifies if the results use the complex packing
	// layout.
	Complex bool

	Inputs []Input

	// OutputMasks hold the server's output masks.
	OutputMasks []plaintext.Plaintext
}

func (b *Batch) String() string {
	var kinds []byte
	for _, in := range b.Inputs {
		if in.Encrypted {
			kinds = append(kinds, 'E')
		} else {
			kinds = append(kinds, 'P')
		}
	}
	return fmt.Sprintf("%s[%s]x%d/%d", b.Op, kinds, b.Count, b.Lanes)
}

func (b *Batch) structure() error {
	if _, ok := ops[b.Op]; !ok {
		return xerrors.Errorf("unknown operation %v: %w", b.Op, ErrInvalidBatch)
	}
	if len(b.Inputs) != b.Op.Arity() {
		return xerrors.Errorf("%s: got %d inputs: %w",
			b.Op, len(b.Inputs), ErrInvalidBatch)
	}
	if b.Count < 1 || b.Lanes < 1 || (!b.Packed && b.Lanes != 1) {
		return xerrors.Errorf("%s: count %d, lanes %d: %w",
			b.Op, b.Count, b.Lanes, ErrInvalidBatch)
	}
	for _, in := range b.Inputs {
		if in.Encrypted {
			return nil
		}
	}
	return xerrors.Errorf("%s: no encrypted inputs: %w", b.Op, ErrInvalidBatch)
}

// lanes checks the number of lanes in a value.
func (b *Batch) lanes(n int) error {
	if n != 1 && n != b.Lanes {
		return xerrors.Errorf("value has %d lanes, expected %d: %w",
			n, b.Lanes, ErrInvalidBatch)
	}
	return nil
}

// validate checks the server's batch values.
func (b *Batch) validate() error {
	if err := b.structure(); err != nil {
		return err
	}
	if len(b.OutputMasks) != b.Count {
		return xerrors.Errorf("got %d output masks: %w",
			len(b.OutputMasks), ErrInvalidBatch)
	}
	for _, m := range b.OutputMasks {
		if err := b.lanes(len(m)); err != nil {
			return err
		}
	}
	for idx, in := range b.Inputs {
		if len(in.Values) != b.Count {
			return xerrors.Errorf("input %d: got %d values: %w",
				idx, len(in.Values), ErrInvalidBatch)
		}
		for _, v := range in.Values {
			if v.Encrypted() != in.Encrypted {
				return xerrors.Errorf("input %d: value %v: %w",
					idx, v, ErrInvalidBatch)
			}
			if err := b.lanes(v.Lanes()); err != nil {
				return err
			}
		}
		if !in.Encrypted {
			continue
		}
		if len(in.Masks) != b.Count {
			return xerrors.Errorf("input %d: got %d masks: %w",
				idx, len(in.Masks), ErrInvalidBatch)
		}
		for _, m := range in.Masks {
			if err := b.lanes(len(m)); err != nil {
				return err
			}
		}
	}
	return nil
}

const (
	flagPacked  = 0x01
	flagComplex = 0x02
)

// header encodes the batch structure with the sequence number.
func (b *Batch) header(seq uint64) []byte {
	var buf bytes.Buffer
	var tmp [8]byte

	bo.PutUint64(tmp[:], seq)
	buf.Write(tmp[:])

	buf.WriteByte(byte(b.Op))

	bo.PutUint32(tmp[:4], uint32(b.Count))
	buf.Write(tmp[:4])
	bo.PutUint32(tmp[:4], uint32(b.Lanes))
	buf.Write(tmp[:4])

	var flags byte
	if b.Packed {
		flags |= flagPacked
	}
	if b.Complex {
		flags |= flagComplex
	}
	buf.WriteByte(flags)

	buf.WriteByte(byte(len(b.Inputs)))
	for _, in := range b.Inputs {
		if in.Encrypted {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// parseHeader decodes the batch structure and sequence number.
func parseHeader(data []byte) (*Batch, uint64, error) {
	if len(data) < 19 {
		return nil, 0, desync("truncated batch header")
	}
	seq := bo.Uint64(data)
	b := &Batch{
		Op:      Op(data[8]),
		Count:   int(bo.Uint32(data[9:])),
		Lanes:   int(bo.Uint32(data[13:])),
		Packed:  data[17]&flagPacked != 0,
		Complex: data[17]&flagComplex != 0,
	}
	n := int(data[18])
	if len(data) != 19+n {
		return nil, 0, desync("invalid batch header length %d", len(data))
	}
	for i := 0; i < n; i++ {
		b.Inputs = append(b.Inputs, Input{
			Encrypted: data[19+i] == 1,
		})
	}
	if err := b.structure(); err != nil {
		return nil, 0, &ProtocolDesyncError{
			Reason: "invalid batch header",
			Err:    err,
		}
	}
	return b, seq, nil
}

// Circuit creates the nonlinear circuit for the batch. The server
// (party 0) inputs are, for each element lane, the input masks of
// the encrypted operands or the values of the plaintext operands,
// followed by the output mask. The client (party 1) inputs are, for
// each element lane, the masked values of the encrypted operands.
// The circuit outputs the masked results, one output per element.
func (b *Batch) Circuit(builder *circuit.Builder, bits, frac int) error {
	if err := b.structure(); err != nil {
		return err
	}
	for e := 0; e < b.Count; e++ {
		var result []circuit.Wire
		for l := 0; l < b.Lanes; l++ {
			args := make([][]circuit.Wire, len(b.Inputs))
			for i, in := range b.Inputs {
				args[i] = builder.Input(0, bits)
				if in.Encrypted {
					c := builder.Input(1, bits)
					args[i] = builder.Sub(c, args[i])
				}
			}
			s := builder.Input(0, bits)

			var r []circuit.Wire
			switch b.Op {
			case OpMinimum:
				r = builder.Min(args[0], args[1])
			case OpMaximum:
				r = builder.Max(args[0], args[1])
			case OpRelu:
				r = builder.Relu(args[0])
			case OpLess:
				r = builder.Bit(builder.SignedLess(args[0], args[1]), bits, frac)
			case OpGreater:
				r = builder.Bit(builder.SignedLess(args[1], args[0]), bits, frac)
			default:
				return xerrors.Errorf("%v: %w", b.Op, ErrInvalidBatch)
			}
			result = append(result, builder.Add(r, s)...)
		}
		builder.Output(fmt.Sprintf("e%d", e), result)
	}
	return nil
}
