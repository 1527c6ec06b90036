//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package value implements secure tensor element values. A value is
// plaintext or ciphertext and unpacked or packed.
package value

import (
	"errors"
	"fmt"

	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
)

// Value defines a secure tensor element value. The implementations
// are PlainScalar, PlainPacked, CipherScalar, and CipherPacked.
type Value interface {
	// Encrypted tests if the value is a ciphertext.
	Encrypted() bool
	// Packed tests if the value holds the batch dimension in its
	// lanes.
	Packed() bool
	// Lanes returns the number of lanes in the value. Unpacked
	// values have one lane.
	Lanes() int

	String() string

	value()
}

var (
	_ Value = &PlainScalar{}
	_ Value = &PlainPacked{}
	_ Value = &CipherScalar{}
	_ Value = &CipherPacked{}
)

// PlainScalar implements an unpacked plaintext value.
type PlainScalar struct {
	Plain plaintext.Plaintext
}

// PlainPacked implements a packed plaintext value.
type PlainPacked struct {
	Plain plaintext.Plaintext
}

// CipherScalar implements an unpacked ciphertext value.
type CipherScalar struct {
	Cipher *he.Ciphertext
}

// CipherPacked implements a packed ciphertext value.
type CipherPacked struct {
	Cipher *he.Ciphertext
}

// NewPlain creates a plaintext value from the lanes. The lanes are
// copied.
func NewPlain(lanes []float64, packed bool) Value {
	if packed {
		return &PlainPacked{
			Plain: plaintext.New(lanes...),
		}
	}
	return &PlainScalar{
		Plain: plaintext.New(lanes[0]),
	}
}

// NewCipher creates a ciphertext value. The value takes the ownership
// of the ciphertext.
func NewCipher(ct *he.Ciphertext, packed bool) Value {
	if packed {
		return &CipherPacked{
			Cipher: ct,
		}
	}
	return &CipherScalar{
		Cipher: ct,
	}
}

// Encrypted tests if the value is a ciphertext.
func (v *PlainScalar) Encrypted() bool {
	return false
}

// Packed tests if the value is packed.
func (v *PlainScalar) Packed() bool {
	return false
}

// Lanes returns the number of lanes in the value.
func (v *PlainScalar) Lanes() int {
	return 1
}

func (v *PlainScalar) String() string {
	return fmt.Sprintf("PlainScalar(%v)", v.Plain[0])
}

func (v *PlainScalar) value() {}

// Encrypted tests if the value is a ciphertext.
func (v *PlainPacked) Encrypted() bool {
	return false
}

// Packed tests if the value is packed.
func (v *PlainPacked) Packed() bool {
	return true
}

// Lanes returns the number of lanes in the value.
func (v *PlainPacked) Lanes() int {
	return len(v.Plain)
}

func (v *PlainPacked) String() string {
	return fmt.Sprintf("PlainPacked%v", v.Plain)
}

func (v *PlainPacked) value() {}

// Encrypted tests if the value is a ciphertext.
func (v *CipherScalar) Encrypted() bool {
	return true
}

// Packed tests if the value is packed.
func (v *CipherScalar) Packed() bool {
	return false
}

// Lanes returns the number of lanes in the value.
func (v *CipherScalar) Lanes() int {
	return 1
}

func (v *CipherScalar) String() string {
	return fmt.Sprintf("CipherScalar(%v)", v.Cipher)
}

func (v *CipherScalar) value() {}

// Encrypted tests if the value is a ciphertext.
func (v *CipherPacked) Encrypted() bool {
	return true
}

// Packed tests if the value is packed.
func (v *CipherPacked) Packed() bool {
	return true
}

// Lanes returns the number of lanes in the value.
func (v *CipherPacked) Lanes() int {
	return v.Cipher.Lanes()
}

func (v *CipherPacked) String() string {
	return fmt.Sprintf("CipherPacked(%v)", v.Cipher)
}

func (v *CipherPacked) value() {}

// Plain returns the plaintext lanes of a plaintext value.
func Plain(v Value) (plaintext.Plaintext, error) {
	switch v := v.(type) {
	case *PlainScalar:
		return v.Plain, nil
	case *PlainPacked:
		return v.Plain, nil
	default:
		return nil, fmt.Errorf("value %v is not a plaintext", v)
	}
}

// Cipher returns the ciphertext of a ciphertext value.
func Cipher(v Value) (*he.Ciphertext, error) {
	switch v := v.(type) {
	case *CipherScalar:
		return v.Cipher, nil
	case *CipherPacked:
		return v.Cipher, nil
	default:
		return nil, fmt.Errorf("value %v is not a ciphertext", v)
	}
}

// Encrypt encrypts the plaintext value with the packing layout. The
// argument ciphertext values are returned as-is.
func Encrypt(ctx *he.Context, v Value, cplx bool) (Value, error) {
	if v.Encrypted() {
		return v, nil
	}
	p, err := Plain(v)
	if err != nil {
		return nil, err
	}
	ct, err := ctx.Encrypt(p, cplx)
	if err != nil {
		return nil, err
	}
	return NewCipher(ct, v.Packed()), nil
}

// Decrypt returns the plaintext lanes of the value. Plaintext values
// are returned as copies.
func Decrypt(ctx *he.Context, v Value) (plaintext.Plaintext, error) {
	if !v.Encrypted() {
		p, err := Plain(v)
		if err != nil {
			return nil, err
		}
		return p.Copy(), nil
	}
	if ctx == nil {
		return nil, errors.New("no context for decryption")
	}
	ct, err := Cipher(v)
	if err != nil {
		return nil, err
	}
	lanes, err := ctx.Decrypt(ct)
	if err != nil {
		return nil, err
	}
	return plaintext.Plaintext(lanes), nil
}

// Lane returns the plaintext lane i of the plaintext lanes p. A
// single lane is broadcast to every lane index.
func Lane(p plaintext.Plaintext, i int) float64 {
	if len(p) == 1 {
		return p[0]
	}
	return p[i]
}
