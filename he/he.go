//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package he implements the homomorphic encryption context for the
// secure tensor values. The context wraps the CKKS scheme of the
// lattigo library.
package he

import (
	"errors"
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
	"golang.org/x/xerrors"
)

var (
	// ErrNoSecretKey is returned when decrypting with a context that
	// does not hold the secret key.
	ErrNoSecretKey = errors.New("he: context has no secret key")
	// ErrLayoutMismatch is returned when combining ciphertexts with
	// different packing layouts.
	ErrLayoutMismatch = errors.New("he: packing layout mismatch")
)

// Params define the CKKS parameters.
type Params struct {
	LogN            int   `yaml:"log_n"`
	LogQ            []int `yaml:"log_q"`
	LogP            []int `yaml:"log_p"`
	LogDefaultScale int   `yaml:"log_scale"`
}

// DefaultParams define 128-bit secure parameters with two
// multiplicative levels.
var DefaultParams = Params{
	LogN:            13,
	LogQ:            []int{55, 40, 40},
	LogP:            []int{61},
	LogDefaultScale: 40,
}

// Context holds the CKKS parameters, keys, and the encoder, encryptor,
// decryptor, and evaluator objects. A context must not be used
// concurrently. Concurrent workers use shallow copies of the context.
type Context struct {
	params    ckks.Parameters
	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
	evaluator *ckks.Evaluator
}

// NewContext creates a new context with fresh keys.
func NewContext(p Params) (*Context, error) {
	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            p.LogN,
		LogQ:            p.LogQ,
		LogP:            p.LogP,
		LogDefaultScale: p.LogDefaultScale,
	})
	if err != nil {
		return nil, xerrors.Errorf("invalid CKKS parameters: %w", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)

	return &Context{
		params:    params,
		encoder:   ckks.NewEncoder(params),
		encryptor: rlwe.NewEncryptor(params, pk),
		decryptor: rlwe.NewDecryptor(params, sk),
		evaluator: ckks.NewEvaluator(params, evk),
	}, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("CKKS(logN=%d, slots=%d, levels=%d, logScale=%.0f)",
		c.params.LogN(), c.params.MaxSlots(), c.params.MaxLevel(),
		math.Log2(c.params.DefaultScale().Float64()))
}

// Public returns a copy of the context without the secret key.
func (c *Context) Public() *Context {
	result := c.ShallowCopy()
	result.decryptor = nil
	return result
}

// ShallowCopy creates a copy of the context that shares the keys but
// has its own working buffers. The copy can be used concurrently with
// the original context.
func (c *Context) ShallowCopy() *Context {
	result := &Context{
		params:    c.params,
		encoder:   c.encoder.ShallowCopy(),
		encryptor: c.encryptor.ShallowCopy(),
		evaluator: c.evaluator.ShallowCopy(),
	}
	if c.decryptor != nil {
		result.decryptor = c.decryptor.ShallowCopy()
	}
	return result
}

// CanDecrypt tests if the context holds the secret key.
func (c *Context) CanDecrypt() bool {
	return c.decryptor != nil
}

// Slots returns the number of complex slots in a ciphertext.
func (c *Context) Slots() int {
	return c.params.MaxSlots()
}

// MaxLanes returns the maximum number of lanes a ciphertext can hold
// with the packing layout.
func (c *Context) MaxLanes(cplx bool) int {
	if cplx {
		return 2 * c.Slots()
	}
	return c.Slots()
}

// encode maps lanes into the ciphertext slots. A single lane is
// replicated to every slot.
func (c *Context) encode(lanes []float64, cplx bool) ([]complex128, error) {
	if len(lanes) == 0 {
		return nil, errors.New("he: no values")
	}
	if len(lanes) > c.MaxLanes(cplx) {
		return nil, fmt.Errorf("he: too many lanes: %d > %d",
			len(lanes), c.MaxLanes(cplx))
	}
	slots := make([]complex128, c.Slots())
	if len(lanes) == 1 {
		v := lanes[0]
		for i := range slots {
			if cplx {
				slots[i] = complex(v, v)
			} else {
				slots[i] = complex(v, 0)
			}
		}
		return slots, nil
	}
	if !cplx {
		for i, v := range lanes {
			slots[i] = complex(v, 0)
		}
		return slots, nil
	}
	for i := 0; i < len(lanes); i += 2 {
		var im float64
		if i+1 < len(lanes) {
			im = lanes[i+1]
		}
		slots[i/2] = complex(lanes[i], im)
	}
	return slots, nil
}

func decode(slots []complex128, lanes int, cplx bool) []float64 {
	result := make([]float64, lanes)
	for i := range result {
		if !cplx {
			result[i] = real(slots[i])
		} else if i%2 == 0 {
			result[i] = real(slots[i/2])
		} else {
			result[i] = imag(slots[i/2])
		}
	}
	return result
}

func (c *Context) plaintext(lanes []float64, cplx bool, level int,
	scale rlwe.Scale) (*rlwe.Plaintext, error) {

	slots, err := c.encode(lanes, cplx)
	if err != nil {
		return nil, err
	}
	pt := ckks.NewPlaintext(c.params, level)
	pt.Scale = scale
	if err := c.encoder.Encode(slots, pt); err != nil {
		return nil, err
	}
	return pt, nil
}

// Encrypt encrypts the lanes with the packing layout.
func (c *Context) Encrypt(lanes []float64, cplx bool) (*Ciphertext, error) {
	pt, err := c.plaintext(lanes, cplx, c.params.MaxLevel(),
		c.params.DefaultScale())
	if err != nil {
		return nil, err
	}
	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{
		ct:      ct,
		lanes:   len(lanes),
		complex: cplx,
	}, nil
}

// Decrypt decrypts the ciphertext lanes.
func (c *Context) Decrypt(ct *Ciphertext) ([]float64, error) {
	if c.decryptor == nil {
		return nil, ErrNoSecretKey
	}
	pt := c.decryptor.DecryptNew(ct.ct)
	slots := make([]complex128, c.Slots())
	if err := c.encoder.Decode(pt, slots); err != nil {
		return nil, err
	}
	return decode(slots, ct.lanes, ct.complex), nil
}

func resultLanes(a, b int) (int, error) {
	switch {
	case a == b:
		return a, nil
	case a == 1:
		return b, nil
	case b == 1:
		return a, nil
	default:
		return 0, fmt.Errorf("he: lane count mismatch: %d != %d", a, b)
	}
}

func (c *Context) check(a, b *Ciphertext) (int, error) {
	if a.complex != b.complex {
		return 0, ErrLayoutMismatch
	}
	return resultLanes(a.lanes, b.lanes)
}

func (c *Context) wrap(ct *rlwe.Ciphertext, lanes int, cplx bool) *Ciphertext {
	return &Ciphertext{
		ct:      ct,
		lanes:   lanes,
		complex: cplx,
	}
}

// Add returns a+b.
func (c *Context) Add(a, b *Ciphertext) (*Ciphertext, error) {
	lanes, err := c.check(a, b)
	if err != nil {
		return nil, err
	}
	ct, err := c.evaluator.AddNew(a.ct, b.ct)
	if err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// Sub returns a-b.
func (c *Context) Sub(a, b *Ciphertext) (*Ciphertext, error) {
	lanes, err := c.check(a, b)
	if err != nil {
		return nil, err
	}
	ct, err := c.evaluator.SubNew(a.ct, b.ct)
	if err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// Mul returns a*b. Multiplication is defined only for the real
// packing layout.
func (c *Context) Mul(a, b *Ciphertext) (*Ciphertext, error) {
	lanes, err := c.check(a, b)
	if err != nil {
		return nil, err
	}
	if a.complex {
		return nil, ErrLayoutMismatch
	}
	ct, err := c.evaluator.MulRelinNew(a.ct, b.ct)
	if err != nil {
		return nil, err
	}
	if err := c.evaluator.Rescale(ct, ct); err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// AddPlain returns a+p. A single value p is added to every lane.
func (c *Context) AddPlain(a *Ciphertext, p []float64) (*Ciphertext, error) {
	lanes, err := resultLanes(a.lanes, len(p))
	if err != nil {
		return nil, err
	}
	pt, err := c.plaintext(p, a.complex, a.ct.Level(), a.ct.Scale)
	if err != nil {
		return nil, err
	}
	ct, err := c.evaluator.AddNew(a.ct, pt)
	if err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// SubPlain returns a-p. A single value p is subtracted from every
// lane.
func (c *Context) SubPlain(a *Ciphertext, p []float64) (*Ciphertext, error) {
	lanes, err := resultLanes(a.lanes, len(p))
	if err != nil {
		return nil, err
	}
	pt, err := c.plaintext(p, a.complex, a.ct.Level(), a.ct.Scale)
	if err != nil {
		return nil, err
	}
	ct, err := c.evaluator.SubNew(a.ct, pt)
	if err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// Negate returns -a.
func (c *Context) Negate(a *Ciphertext) (*Ciphertext, error) {
	ct, err := c.evaluator.MulNew(a.ct, -1)
	if err != nil {
		return nil, err
	}
	return c.wrap(ct, a.lanes, a.complex), nil
}

// MulPlain returns a*p. With the complex packing layout p must be a
// single value.
func (c *Context) MulPlain(a *Ciphertext, p []float64) (*Ciphertext, error) {
	lanes, err := resultLanes(a.lanes, len(p))
	if err != nil {
		return nil, err
	}
	if a.complex && len(p) != 1 {
		return nil, ErrLayoutMismatch
	}
	level := a.ct.Level()
	var pt *rlwe.Plaintext
	if a.complex {
		// Scale both slot components by the real constant.
		slots := make([]complex128, c.Slots())
		for i := range slots {
			slots[i] = complex(p[0], 0)
		}
		pt = ckks.NewPlaintext(c.params, level)
		pt.Scale = rlwe.NewScale(c.params.Q()[level])
		if err := c.encoder.Encode(slots, pt); err != nil {
			return nil, err
		}
	} else {
		pt, err = c.plaintext(p, false, level,
			rlwe.NewScale(c.params.Q()[level]))
		if err != nil {
			return nil, err
		}
	}
	ct, err := c.evaluator.MulNew(a.ct, pt)
	if err != nil {
		return nil, err
	}
	if err := c.evaluator.Rescale(ct, ct); err != nil {
		return nil, err
	}
	return c.wrap(ct, lanes, a.complex), nil
}

// UnmarshalCiphertext decodes a ciphertext encoded with
// Ciphertext.MarshalBinary.
func (c *Context) UnmarshalCiphertext(data []byte) (*Ciphertext, error) {
	ct := new(Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if ct.lanes > c.MaxLanes(ct.complex) {
		return nil, fmt.Errorf("he: invalid lane count %d", ct.lanes)
	}
	return ct, nil
}
