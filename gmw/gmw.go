//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package gmw implements the two-party GMW protocol with Boolean
// sharing. AND gates use multiplication triples that the peers
// generate with oblivious transfer.
package gmw

import (
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/ot"
	"github.com/markkurossi/hetensor/p2p"
	"github.com/markkurossi/text/superscript"
)

// Peer implements one party of the two-party GMW protocol. Party 0
// is the server and party 1 the client. Only party 1 learns the
// circuit outputs.
type Peer struct {
	id       int
	conn     *p2p.Conn
	rand     io.Reader
	sender   ot.OT
	receiver ot.OT
	init     bool

	// Rounds counts the communication rounds of the peer.
	Rounds int
}

// NewPeer creates a new GMW peer with the ID 0 or 1.
func NewPeer(id int, conn *p2p.Conn, rand io.Reader) (*Peer, error) {
	if id != 0 && id != 1 {
		return nil, fmt.Errorf("invalid peer ID %d", id)
	}
	return &Peer{
		id:       id,
		conn:     conn,
		rand:     rand,
		sender:   ot.NewCO(rand),
		receiver: ot.NewCO(rand),
	}, nil
}

func (p *Peer) String() string {
	return "P" + superscript.Itoa(p.id)
}

// ID returns the peer ID.
func (p *Peer) ID() int {
	return p.id
}

// Init initializes the base OTs in both directions.
func (p *Peer) Init() error {
	if p.init {
		return nil
	}
	if p.id == 0 {
		if err := p.sender.InitSender(p.conn); err != nil {
			return err
		}
		if err := p.receiver.InitReceiver(p.conn); err != nil {
			return err
		}
	} else {
		if err := p.receiver.InitReceiver(p.conn); err != nil {
			return err
		}
		if err := p.sender.InitSender(p.conn); err != nil {
			return err
		}
	}
	p.init = true
	return nil
}

// Triples holds the peer's shares of bit multiplication triples
// where C[i] = A[i] AND B[i] after reconstruction.
type Triples struct {
	A []bool
	B []bool
	C []bool
}

// Triples generates n multiplication triples. The cross terms of the
// product are computed with one OT in each direction.
func (p *Peer) Triples(n int) (*Triples, error) {
	if err := p.Init(); err != nil {
		return nil, err
	}
	t := &Triples{
		C: make([]bool, n),
	}
	var err error
	t.A, err = p.randomBits(n)
	if err != nil {
		return nil, err
	}
	t.B, err = p.randomBits(n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return t, nil
	}

	var masks, received []bool
	if p.id == 0 {
		masks, err = p.sendCross(t.A)
		if err != nil {
			return nil, err
		}
		received, err = p.receiveCross(t.B)
		if err != nil {
			return nil, err
		}
	} else {
		received, err = p.receiveCross(t.B)
		if err != nil {
			return nil, err
		}
		masks, err = p.sendCross(t.A)
		if err != nil {
			return nil, err
		}
	}
	for i := 0; i < n; i++ {
		t.C[i] = (t.A[i] && t.B[i]) != masks[i] != received[i]
	}
	p.Rounds += 2
	return t, nil
}

// sendCross sends the messages (u, u xor a) and returns the masks u.
func (p *Peer) sendCross(a []bool) ([]bool, error) {
	wires := make([]ot.Wire, len(a))
	masks := make([]bool, len(a))
	for i := range wires {
		l0, err := ot.NewLabel(p.rand)
		if err != nil {
			return nil, err
		}
		l1 := l0
		if a[i] {
			l1.SetBit(!l0.Bit())
		}
		wires[i] = ot.Wire{
			L0: l0,
			L1: l1,
		}
		masks[i] = l0.Bit()
	}
	if err := p.sender.Send(wires); err != nil {
		return nil, err
	}
	return masks, nil
}

// receiveCross receives u xor (a AND b) for the choice bits b.
func (p *Peer) receiveCross(b []bool) ([]bool, error) {
	labels := make([]ot.Label, len(b))
	if err := p.receiver.Receive(b, labels); err != nil {
		return nil, err
	}
	result := make([]bool, len(b))
	for i, l := range labels {
		result[i] = l.Bit()
	}
	return result, nil
}

func (p *Peer) randomBits(n int) ([]bool, error) {
	buf := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(p.rand, buf); err != nil {
		return nil, err
	}
	return unpackBits(buf, n)
}

// exchange sends data to the peer and receives the peer's data. Party
// 0 sends first.
func (p *Peer) exchange(data []byte) ([]byte, error) {
	p.Rounds++
	if p.id == 0 {
		if err := p.send(data); err != nil {
			return nil, err
		}
		return p.conn.ReceiveData()
	}
	result, err := p.conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	if err := p.send(data); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Peer) send(data []byte) error {
	if err := p.conn.SendData(data); err != nil {
		return err
	}
	return p.conn.Flush()
}

// Run evaluates the circuit with the peer's input bits. Party 1
// returns the circuit outputs and party 0 returns nil. The protocol
// phases are recorded as sub-samples of sample, which can be nil.
func (p *Peer) Run(circ *circuit.Circuit, inputs []bool,
	sample *circuit.Sample) ([]bool, error) {

	if len(circ.InputWires) != 2 {
		return nil, fmt.Errorf("%s: circuit has %d parties, expected 2",
			p, len(circ.InputWires))
	}
	if len(inputs) != len(circ.InputWires[p.id]) {
		return nil, fmt.Errorf("%s: invalid inputs: got %d, expected %d",
			p, len(inputs), len(circ.InputWires[p.id]))
	}

	triples, err := p.Triples(circ.NumNonFree())
	if err != nil {
		return nil, err
	}
	sample.SubSample("Triples", time.Now())

	shares := make([]bool, circ.NumWires)

	// Share inputs.
	masks, err := p.randomBits(len(inputs))
	if err != nil {
		return nil, err
	}
	for i, w := range circ.InputWires[p.id] {
		shares[w] = inputs[i] != masks[i]
	}
	data, err := p.exchange(packBits(masks))
	if err != nil {
		return nil, err
	}
	peerWires := circ.InputWires[1-p.id]
	peerMasks, err := unpackBits(data, len(peerWires))
	if err != nil {
		return nil, err
	}
	for i, w := range peerWires {
		shares[w] = peerMasks[i]
	}
	sample.SubSample("Share", time.Now())

	self := p.id == 0
	var t int

	for _, layer := range circ.Layers() {
		if len(layer.NonFree) > 0 {
			n := len(layer.NonFree)
			de := make([]bool, 2*n)
			for i, gi := range layer.NonFree {
				g := circ.Gates[gi]
				de[2*i] = shares[g.Input0] != triples.A[t+i]
				de[2*i+1] = shares[g.Input1] != triples.B[t+i]
			}
			data, err := p.exchange(packBits(de))
			if err != nil {
				return nil, err
			}
			peer, err := unpackBits(data, 2*n)
			if err != nil {
				return nil, err
			}
			for i, gi := range layer.NonFree {
				g := circ.Gates[gi]
				d := de[2*i] != peer[2*i]
				e := de[2*i+1] != peer[2*i+1]

				z := triples.C[t+i] != (d && triples.B[t+i]) !=
					(e && triples.A[t+i]) != (self && d && e)
				if g.Op == circuit.OR {
					z = z != shares[g.Input0] != shares[g.Input1]
				}
				shares[g.Output] = z
			}
			t += n
		}
		for _, gi := range layer.Free {
			g := circ.Gates[gi]
			switch g.Op {
			case circuit.XOR:
				shares[g.Output] = shares[g.Input0] != shares[g.Input1]
			case circuit.XNOR:
				shares[g.Output] = shares[g.Input0] != shares[g.Input1] != self
			case circuit.INV:
				shares[g.Output] = shares[g.Input0] != self
			default:
				return nil, fmt.Errorf("%s: invalid gate %s", p, g.Op)
			}
		}
	}

	sample.SubSample("Eval", time.Now())

	// Reveal outputs to party 1.
	out := make([]bool, len(circ.OutputWires))
	for i, w := range circ.OutputWires {
		out[i] = shares[w]
	}
	p.Rounds++
	if p.id == 0 {
		return nil, p.send(packBits(out))
	}
	data, err = p.conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	peerOut, err := unpackBits(data, len(out))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = out[i] != peerOut[i]
	}
	return out, nil
}

func packBits(bits []bool) []byte {
	result := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			result[i/8] |= 1 << (i % 8)
		}
	}
	return result
}

func unpackBits(data []byte, n int) ([]bool, error) {
	if len(data) != (n+7)/8 {
		return nil, fmt.Errorf("invalid bit vector: got %d bytes, expected %d",
			len(data), (n+7)/8)
	}
	result := make([]bool, n)
	for i := range result {
		result[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return result, nil
}
