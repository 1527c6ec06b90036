//
// co.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/zeebo/blake3"
)

var (
	bo    = binary.BigEndian
	_  OT = &CO{}
)

// ErrPointNotOnCurve signals that a peer point is not on the curve.
var ErrPointNotOnCurve = errors.New("ot: point not on curve")

// CO implements CO OT as the OT interface.
type CO struct {
	curve  elliptic.Curve
	rand   io.Reader
	hash   *blake3.Hasher
	digest []byte
	io     IO
}

// NewCO creates a new CO OT implementing the OT interface. The
// argument rand is the source of the OT scalars. If it is nil, the
// crypto/rand reader is used.
func NewCO(rand io.Reader) *CO {
	return &CO{
		curve:  elliptic.P256(),
		rand:   rand,
		hash:   blake3.New(),
		digest: make([]byte, 0, 32),
	}
}

func (co *CO) random() io.Reader {
	if co.rand != nil {
		return co.rand
	}
	return rand.Reader
}

// InitSender initializes the OT sender.
func (co *CO) InitSender(io IO) error {
	co.io = io
	if err := SendString(io, co.curve.Params().Name); err != nil {
		return err
	}
	return io.Flush()
}

// InitReceiver initializes the OT receiver.
func (co *CO) InitReceiver(io IO) error {
	co.io = io

	name, err := ReceiveString(io)
	if err != nil {
		return err
	}
	if name != co.curve.Params().Name {
		return fmt.Errorf("invalid curve %s, expected %s",
			name, co.curve.Params().Name)
	}
	return nil
}

// Send sends the wire labels with OT.
func (co *CO) Send(wires []Wire) error {
	if co.io == nil {
		return errors.New("ot: sender not initialized")
	}
	curveParams := co.curve.Params()

	// a <- Zp
	a, err := rand.Int(co.random(), curveParams.N)
	if err != nil {
		return err
	}
	aBytes := a.Bytes()

	// A = G^a
	Ax, Ay := co.curve.ScalarBaseMult(aBytes)

	if err := SendBigInt(co.io, Ax); err != nil {
		return err
	}
	if err := SendBigInt(co.io, Ay); err != nil {
		return err
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	// Aa = A^a, AaInv = {Aax, -Aay}
	Aax, Aay := co.curve.ScalarMult(Ax, Ay, aBytes)
	AaInvx := Aax
	AaInvy := big.NewInt(0).Sub(curveParams.P, Aay)

	Bxs := make([]*big.Int, len(wires))
	Bys := make([]*big.Int, len(wires))
	for i := range wires {
		Bx, err := ReceiveBigInt(co.io)
		if err != nil {
			return err
		}
		By, err := ReceiveBigInt(co.io)
		if err != nil {
			return err
		}
		if !co.curve.IsOnCurve(Bx, By) {
			return ErrPointNotOnCurve
		}
		Bxs[i], Bys[i] = co.curve.ScalarMult(Bx, By, aBytes)
	}

	var labelData LabelData
	for i := range wires {
		Bax, Bay := co.curve.Add(Bxs[i], Bys[i], AaInvx, AaInvy)

		wires[i].L0.GetData(&labelData)
		e0 := xor(co.kdf(Bxs[i], Bys[i], uint64(i)), labelData[:])
		if err := co.io.SendData(e0); err != nil {
			return err
		}
		wires[i].L1.GetData(&labelData)
		e1 := xor(co.kdf(Bax, Bay, uint64(i)), labelData[:])
		if err := co.io.SendData(e1); err != nil {
			return err
		}
	}
	return co.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (co *CO) Receive(flags []bool, result []Label) error {
	if co.io == nil {
		return errors.New("ot: receiver not initialized")
	}
	if len(flags) != len(result) {
		return fmt.Errorf("ot: flags and result length mismatch: %d != %d",
			len(flags), len(result))
	}
	curveParams := co.curve.Params()

	Ax, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	Ay, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	if !co.curve.IsOnCurve(Ax, Ay) {
		return ErrPointNotOnCurve
	}

	bs := make([][]byte, len(flags))
	for i, flag := range flags {
		// b <- Zp
		b, err := rand.Int(co.random(), curveParams.N)
		if err != nil {
			return err
		}
		bs[i] = b.Bytes()

		Bx, By := co.curve.ScalarBaseMult(bs[i])
		if flag {
			Bx, By = co.curve.Add(Bx, By, Ax, Ay)
		}
		if err := SendBigInt(co.io, Bx); err != nil {
			return err
		}
		if err := SendBigInt(co.io, By); err != nil {
			return err
		}
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	for i, flag := range flags {
		Asx, Asy := co.curve.ScalarMult(Ax, Ay, bs[i])

		e0, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		e1, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		e := e0
		if flag {
			e = e1
		}
		if len(e) != len(LabelData{}) {
			return fmt.Errorf("ot: invalid label length %d", len(e))
		}
		result[i].SetBytes(xor(co.kdf(Asx, Asy, uint64(i)), e))
	}
	return nil
}

func (co *CO) kdf(x, y *big.Int, id uint64) []byte {
	co.hash.Reset()
	co.hash.Write(x.Bytes())
	co.hash.Write(y.Bytes())

	var tmp [8]byte
	bo.PutUint64(tmp[:], id)
	co.hash.Write(tmp[:])

	return co.hash.Sum(co.digest[:0])
}

func xor(a, b []byte) []byte {
	l := len(a)
	if len(b) < l {
		l = len(b)
	}
	for i := 0; i < l; i++ {
		a[i] ^= b[i]
	}
	return a[:l]
}
