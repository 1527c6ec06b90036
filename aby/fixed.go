//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/markkurossi/hetensor/plaintext"
)

// fixed implements the two's complement fixed-point encoding of the
// circuit values. Values have bits bits and frac fractional bits.
// Masks are drawn from the range [-2^(mask-1), 2^(mask-1)).
type fixed struct {
	bits int
	frac int
	mask int
}

func (f fixed) modulus() uint64 {
	if f.bits == 64 {
		return math.MaxUint64
	}
	return 1<<f.bits - 1
}

// Encode encodes the value v.
func (f fixed) Encode(v float64) uint64 {
	return uint64(int64(math.Round(math.Ldexp(v, f.frac)))) & f.modulus()
}

// Decode decodes the value u.
func (f fixed) Decode(u uint64) float64 {
	u &= f.modulus()
	shift := 64 - f.bits
	return math.Ldexp(float64(int64(u<<shift)>>shift), -f.frac)
}

// Bits returns the value u as bits, least significant bit first.
func (f fixed) Bits(u uint64) []bool {
	result := make([]bool, f.bits)
	for i := range result {
		result[i] = u&(1<<i) != 0
	}
	return result
}

// Value returns the value of the bits.
func (f fixed) Value(bits []bool) uint64 {
	var u uint64
	for i, b := range bits {
		if b {
			u |= 1 << i
		}
	}
	return u
}

// Masks draws n masks from the random source. The masks are exact
// fixed-point values.
func (f fixed) Masks(rand io.Reader, n int) (plaintext.Plaintext, error) {
	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, err
	}
	width := f.frac + f.mask
	result := make(plaintext.Plaintext, n)
	for i := range result {
		r := int64(binary.LittleEndian.Uint64(buf[i*8:]) & (1<<width - 1))
		r -= 1 << (width - 1)
		result[i] = math.Ldexp(float64(r), -f.frac)
	}
	return result, nil
}
