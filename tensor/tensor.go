//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package tensor implements secure tensors. Each tensor element is a
// secure value that is plaintext or ciphertext and unpacked or
// packed. Packed tensors fold the leading batch dimension into the
// lanes of their values.
package tensor

import (
	"fmt"
	"strings"

	"github.com/markkurossi/hetensor/element"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/value"
	"golang.org/x/xerrors"
)

// Shape defines the tensor dimensions.
type Shape []int

// Size returns the number of elements in the shape.
func (s Shape) Size() int {
	size := 1
	for _, d := range s {
		size *= d
	}
	return size
}

// BatchSize returns the size of the leading dimension.
func (s Shape) BatchSize() int {
	if len(s) == 0 {
		return 1
	}
	return s[0]
}

// Pack returns the packed shape where the leading dimension is
// collapsed to 1.
func (s Shape) Pack() Shape {
	result := make(Shape, len(s))
	copy(result, s)
	if len(result) > 0 {
		result[0] = 1
	}
	return result
}

// Equal tests if the shapes are equal.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	var parts []string
	for _, d := range s {
		parts = append(parts, fmt.Sprintf("%d", d))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Config defines the operand configuration of a tensor.
type Config struct {
	Encrypted      bool
	Packed         bool
	ComplexPacking bool
}

func (c Config) String() string {
	var parts []string
	if c.Encrypted {
		parts = append(parts, "encrypted")
	}
	if c.Packed {
		parts = append(parts, "packed")
	}
	if c.ComplexPacking {
		parts = append(parts, "complex")
	}
	if len(parts) == 0 {
		return "plain"
	}
	return strings.Join(parts, ",")
}

// ParseConfig parses the comma-separated operand configuration.
func ParseConfig(str string) (Config, error) {
	var c Config
	for _, part := range strings.Split(str, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "plain", "":
		case "encrypted":
			c.Encrypted = true
		case "packed":
			c.Packed = true
		case "complex":
			c.ComplexPacking = true
		default:
			return c, fmt.Errorf("invalid tensor config: %s", part)
		}
	}
	return c, nil
}

// Tensor implements a secure tensor.
type Tensor struct {
	Name   string
	Type   element.Type
	Shape  Shape
	Config Config
	Values []value.Value
}

// New creates a new tensor without values.
func New(name string, t element.Type, shape Shape, config Config) *Tensor {
	return &Tensor{
		Name:   name,
		Type:   t,
		Shape:  shape,
		Config: config,
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v %s [%s]", t.Name, t.Shape, t.Type, t.Config)
}

// Count returns the number of values the tensor holds.
func (t *Tensor) Count() int {
	if t.Config.Packed {
		return t.Shape.Pack().Size()
	}
	return t.Shape.Size()
}

// Lanes returns the number of lanes in each tensor value.
func (t *Tensor) Lanes() int {
	if t.Config.Packed {
		return t.Shape.BatchSize()
	}
	return 1
}

// Write sets the tensor values from the host buffer src holding the
// tensor elements in the tensor's element type. Encrypted tensors
// encrypt their values with the context.
func (t *Tensor) Write(ctx *he.Context, src []byte) error {
	p, err := plaintext.Read(src, t.Type, t.Shape.Size())
	if err != nil {
		return xerrors.Errorf("tensor %s: %w", t.Name, err)
	}
	return t.SetFloat64s(ctx, p)
}

// SetFloat64s sets the tensor values from the flat element values.
func (t *Tensor) SetFloat64s(ctx *he.Context, flat []float64) error {
	if len(flat) != t.Shape.Size() {
		return fmt.Errorf("tensor %s: got %d values, expected %d",
			t.Name, len(flat), t.Shape.Size())
	}
	count := t.Count()
	lanes := t.Lanes()
	values := make([]value.Value, count)

	for j := 0; j < count; j++ {
		v := make([]float64, lanes)
		for n := 0; n < lanes; n++ {
			v[n] = flat[n*count+j]
		}
		values[j] = value.NewPlain(v, t.Config.Packed)
		if t.Config.Encrypted {
			if ctx == nil {
				return fmt.Errorf("tensor %s: no context for encryption",
					t.Name)
			}
			ct, err := value.Encrypt(ctx, values[j],
				t.Config.ComplexPacking)
			if err != nil {
				return xerrors.Errorf("tensor %s: %w", t.Name, err)
			}
			values[j] = ct
		}
	}
	t.Values = values
	return nil
}

// Float64s returns the flat element values of the tensor. Encrypted
// values are decrypted with the context.
func (t *Tensor) Float64s(ctx *he.Context) (plaintext.Plaintext, error) {
	count := t.Count()
	if len(t.Values) != count {
		return nil, fmt.Errorf("tensor %s: has %d values, expected %d",
			t.Name, len(t.Values), count)
	}
	lanes := t.Lanes()
	result := make(plaintext.Plaintext, t.Shape.Size())

	for j, v := range t.Values {
		p, err := value.Decrypt(ctx, v)
		if err != nil {
			return nil, xerrors.Errorf("tensor %s: %w", t.Name, err)
		}
		if len(p) != 1 && len(p) != lanes {
			return nil, fmt.Errorf("tensor %s: value %d has %d lanes, expected %d",
				t.Name, j, len(p), lanes)
		}
		for n := 0; n < lanes; n++ {
			result[n*count+j] = value.Lane(p, n)
		}
	}
	return result, nil
}

// Read stores the tensor elements into the host buffer target in the
// tensor's element type.
func (t *Tensor) Read(ctx *he.Context, target []byte) error {
	p, err := t.Float64s(ctx)
	if err != nil {
		return err
	}
	if err := p.Write(target, t.Type); err != nil {
		return xerrors.Errorf("tensor %s: %w", t.Name, err)
	}
	return nil
}
