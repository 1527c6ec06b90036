//
// plaintext.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package plaintext implements decrypted numeric vectors and their
// encoding to host tensor buffers.
package plaintext

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/markkurossi/hetensor/element"
	"github.com/montanaflynn/stats"
	"golang.org/x/exp/constraints"
	"golang.org/x/xerrors"
)

var (
	// ErrEmptyPlaintext is returned when writing a plaintext without
	// values.
	ErrEmptyPlaintext = errors.New("input has no values")
	// ErrShortBuffer is returned when the target buffer can't hold
	// all plaintext values.
	ErrShortBuffer = errors.New("short buffer")
)

// UnsupportedEncodingError is returned for element types that have no
// plaintext encoding.
type UnsupportedEncodingError struct {
	Type element.Type
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported element type %s", e.Type)
}

// RangeError is returned when a value can't be represented in an
// integer element type.
type RangeError struct {
	Type  element.Type
	Index int
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %d (%v) out of range for %s",
		e.Index, e.Value, e.Type)
}

// Plaintext holds an ordered sequence of real numbers.
type Plaintext []float64

// New creates a plaintext from the argument values.
func New(values ...float64) Plaintext {
	result := make(Plaintext, len(values))
	copy(result, values)
	return result
}

func (p Plaintext) String() string {
	var sb strings.Builder
	sb.WriteString("Plaintext(")
	for _, v := range p {
		fmt.Fprintf(&sb, " %v", v)
	}
	sb.WriteString(" )")
	return sb.String()
}

// Copy returns a copy of the plaintext.
func (p Plaintext) Copy() Plaintext {
	return New(p...)
}

// Write encodes the plaintext values into target with the element
// type t. The values are stored in little-endian byte order. Integer
// types round to the nearest integer with halfway cases rounded away
// from zero. NaN, infinite, and out of range values are rejected with
// RangeError and nothing is written. Write does not retain target.
func (p Plaintext) Write(target []byte, t element.Type) error {
	if len(p) == 0 {
		return ErrEmptyPlaintext
	}
	var err error
	switch t {
	case element.F32:
		err = encode(target, convert[float32](p))
	case element.F64:
		err = encode(target, []float64(p))
	case element.I32:
		var values []int32
		values, err = round[int32](p, t, -(1 << 31), 1<<31)
		if err != nil {
			return err
		}
		err = encode(target, values)
	case element.I64:
		var values []int64
		values, err = round[int64](p, t, -(1 << 63), 1<<63)
		if err != nil {
			return err
		}
		err = encode(target, values)
	default:
		return &UnsupportedEncodingError{
			Type: t,
		}
	}
	if err != nil {
		return xerrors.Errorf("write %s: %w", t, err)
	}
	return nil
}

// Read decodes count values of element type t from src.
func Read(src []byte, t element.Type, count int) (Plaintext, error) {
	if count <= 0 {
		return nil, ErrEmptyPlaintext
	}
	switch t {
	case element.F32:
		return decode[float32](src, count)
	case element.F64:
		return decode[float64](src, count)
	case element.I32:
		return decode[int32](src, count)
	case element.I64:
		return decode[int64](src, count)
	default:
		return nil, &UnsupportedEncodingError{
			Type: t,
		}
	}
}

type number interface {
	constraints.Integer | constraints.Float
}

func convert[T number](p Plaintext) []T {
	result := make([]T, len(p))
	for i, v := range p {
		result[i] = T(v)
	}
	return result
}

// round rounds the values to integers in the range [lo,hi).
func round[T constraints.Signed](p Plaintext, t element.Type,
	lo, hi float64) ([]T, error) {

	result := make([]T, len(p))
	for i, v := range p {
		r := math.Round(v)
		if math.IsNaN(r) || r < lo || r >= hi {
			return nil, &RangeError{
				Type:  t,
				Index: i,
				Value: v,
			}
		}
		result[i] = T(r)
	}
	return result, nil
}

func encode[T number](target []byte, values []T) error {
	if len(target) < binary.Size(values) {
		return ErrShortBuffer
	}
	_, err := binary.Encode(target, binary.LittleEndian, values)
	return err
}

func decode[T number](src []byte, count int) (Plaintext, error) {
	values := make([]T, count)
	if len(src) < binary.Size(values) {
		return nil, ErrShortBuffer
	}
	_, err := binary.Decode(src, binary.LittleEndian, values)
	if err != nil {
		return nil, err
	}
	result := make(Plaintext, count)
	for i, v := range values {
		result[i] = float64(v)
	}
	return result, nil
}

// Deviation returns the maximum and mean absolute difference between
// the values of a and b.
func Deviation(a, b Plaintext) (max, mean float64, err error) {
	if len(a) != len(b) {
		return 0, 0, fmt.Errorf("length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, 0, ErrEmptyPlaintext
	}
	diff := make(stats.Float64Data, len(a))
	for i := range a {
		diff[i] = math.Abs(a[i] - b[i])
	}
	max, err = stats.Max(diff)
	if err != nil {
		return 0, 0, err
	}
	mean, err = stats.Mean(diff)
	if err != nil {
		return 0, 0, err
	}
	return max, mean, nil
}

// AllClose tests if a and b have the same length and all their values
// differ at most by tolerance.
func AllClose(a, b Plaintext, tolerance float64) bool {
	max, _, err := Deviation(a, b)
	if err != nil {
		return false
	}
	return max <= tolerance
}
