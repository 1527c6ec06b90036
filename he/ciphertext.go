//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package he

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// Ciphertext implements an opaque ciphertext handle. The ciphertext
// holds lanes values in its slots. With the real packing layout lane
// i is the real part of slot i. With the complex packing layout lanes
// 2k and 2k+1 are the real and imaginary parts of slot k. A single
// lane is replicated to every slot.
type Ciphertext struct {
	ct      *rlwe.Ciphertext
	lanes   int
	complex bool
}

func (c *Ciphertext) String() string {
	layout := "real"
	if c.complex {
		layout = "complex"
	}
	return fmt.Sprintf("Ciphertext(lanes=%d, %s, level=%d)",
		c.lanes, layout, c.ct.Level())
}

// Lanes returns the number of lanes in the ciphertext.
func (c *Ciphertext) Lanes() int {
	return c.lanes
}

// Complex tests if the ciphertext uses the complex packing layout.
func (c *Ciphertext) Complex() bool {
	return c.complex
}

// Level returns the ciphertext level.
func (c *Ciphertext) Level() int {
	return c.ct.Level()
}

// MarshalBinary encodes the ciphertext and its layout.
func (c *Ciphertext) MarshalBinary() ([]byte, error) {
	data, err := c.ct.MarshalBinary()
	if err != nil {
		return nil, err
	}
	result := make([]byte, 5+len(data))
	binary.BigEndian.PutUint32(result, uint32(c.lanes))
	if c.complex {
		result[4] = 1
	}
	copy(result[5:], data)
	return result, nil
}

// UnmarshalBinary decodes the ciphertext and its layout.
func (c *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return errors.New("he: truncated ciphertext")
	}
	lanes := int(binary.BigEndian.Uint32(data))
	if lanes == 0 {
		return errors.New("he: ciphertext has no lanes")
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data[5:]); err != nil {
		return err
	}
	c.ct = ct
	c.lanes = lanes
	c.complex = data[4] == 1
	return nil
}
