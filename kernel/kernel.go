//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package kernel implements the elementwise evaluation of secure
// tensors. Homomorphic operators are evaluated in-process. The
// nonlinear operators are evaluated with the two-party secure
// executor on masked values.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/markkurossi/hetensor/aby"
	"github.com/markkurossi/hetensor/env"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/tensor"
	"github.com/markkurossi/hetensor/value"
	"github.com/rs/zerolog"
)

// Op defines the elementwise operators.
type Op int

// Elementwise operators.
const (
	Add Op = iota
	Subtract
	Multiply
	Minimum
	Maximum
	Less
	Greater
	Relu
	Negate
)

var ops = map[Op]struct {
	name        string
	unary       bool
	homomorphic bool
	secure      aby.Op
}{
	Add:      {"add", false, true, 0},
	Subtract: {"subtract", false, true, 0},
	Multiply: {"multiply", false, true, 0},
	Minimum:  {"minimum", false, false, aby.OpMinimum},
	Maximum:  {"maximum", false, false, aby.OpMaximum},
	Less:     {"less", false, false, aby.OpLess},
	Greater:  {"greater", false, false, aby.OpGreater},
	Relu:     {"relu", true, false, aby.OpRelu},
	Negate:   {"negate", true, true, 0},
}

func (op Op) String() string {
	info, ok := ops[op]
	if ok {
		return info.name
	}
	return fmt.Sprintf("{Op %d}", int(op))
}

// Unary tests if the operator is unary.
func (op Op) Unary() bool {
	return ops[op].unary
}

// Homomorphic tests if the operator has a homomorphic formulation.
func (op Op) Homomorphic() bool {
	return ops[op].homomorphic
}

// ParseOp parses the operator name.
func ParseOp(name string) (Op, error) {
	name = strings.ToLower(name)
	for op, info := range ops {
		if info.name == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator: %s", name)
}

func (op Op) eval(x, y float64) float64 {
	switch op {
	case Add:
		return x + y
	case Subtract:
		return x - y
	case Multiply:
		return x * y
	case Minimum:
		return math.Min(x, y)
	case Maximum:
		return math.Max(x, y)
	case Less:
		if x < y {
			return 1
		}
		return 0
	case Greater:
		if x > y {
			return 1
		}
		return 0
	case Relu:
		return math.Max(x, 0)
	case Negate:
		return -x
	default:
		panic(fmt.Sprintf("invalid operator %v", op))
	}
}

// Executor defines the secure executor for the nonlinear operators.
// The aby.Executor implements this interface.
type Executor interface {
	Mask(n int) (plaintext.Plaintext, error)
	EvaluateNonlinearBatch(ctx context.Context, batch *aby.Batch) (
		[]value.Value, error)
}

// Evaluator evaluates the elementwise operators.
type Evaluator struct {
	heCtx *he.Context
	exec  Executor
	log   *zerolog.Logger
}

// NewEvaluator creates a new evaluator. The executor can be nil in
// which case the nonlinear operators are available only for
// plaintext operands.
func NewEvaluator(heCtx *he.Context, exec Executor,
	e *env.Config) *Evaluator {

	return &Evaluator{
		heCtx: heCtx,
		exec:  exec,
		log:   e.GetLogger(),
	}
}

// layout describes the result of the elementwise evaluation.
type layout struct {
	op        Op
	count     int
	lanes     int
	encrypted bool
	packed    bool
	complex   bool
}

func (ev *Evaluator) layout(op Op, shape tensor.Shape,
	args ...*tensor.Tensor) (*layout, error) {

	l := &layout{
		op: op,
	}
	var layouts []bool
	for _, t := range args {
		if !t.Shape.Equal(shape) || len(t.Values) != t.Count() {
			return nil, &ShapeMismatchError{
				Op:       op,
				Name:     t.Name,
				Expected: shape,
				Got:      t.Shape,
				Values:   len(t.Values),
			}
		}
		if t.Config.Packed {
			l.packed = true
		}
		if t.Config.Encrypted {
			l.encrypted = true
			layouts = append(layouts, t.Config.ComplexPacking)
		}
	}
	for i := 1; i < len(layouts); i++ {
		if layouts[i] != layouts[0] {
			return nil, &UnsupportedOperatorError{
				Op:     op,
				Reason: "operands have different packing layouts",
			}
		}
	}
	if len(layouts) > 0 {
		l.complex = layouts[0]
	} else {
		for _, t := range args {
			l.complex = l.complex || t.Config.ComplexPacking
		}
	}
	if l.packed {
		l.count = shape.Pack().Size()
		l.lanes = shape.BatchSize()
	} else {
		l.count = shape.Size()
		l.lanes = 1
	}
	for _, t := range args {
		for i := 0; i < l.count; i++ {
			n := t.Values[i].Lanes()
			if n != 1 && n != l.lanes {
				return nil, &ShapeMismatchError{
					Op:       op,
					Name:     t.Name,
					Expected: shape,
					Got:      t.Shape,
					Values:   len(t.Values),
				}
			}
		}
	}
	return l, nil
}

func (l *layout) result(shape tensor.Shape, name string,
	t *tensor.Tensor, values []value.Value) *tensor.Tensor {

	result := tensor.New(name, t.Type, shape, tensor.Config{
		Encrypted:      l.encrypted,
		Packed:         l.packed,
		ComplexPacking: l.complex,
	})
	result.Values = values
	return result
}

// Binary evaluates the binary operator for the operands a and b of
// the shape. Element i of the result combines the values a.Values[i]
// and b.Values[i]. If one operand is packed and the other is not, the
// unpacked operand's value is broadcast over the packed operand's
// lanes. The result is encrypted if either operand is encrypted and
// packed if either operand is packed.
func (ev *Evaluator) Binary(ctx context.Context, op Op, a, b *tensor.Tensor,
	shape tensor.Shape) (*tensor.Tensor, error) {

	if _, ok := ops[op]; !ok || op.Unary() {
		return nil, &UnsupportedOperatorError{
			Op:     op,
			Reason: "not a binary operator",
		}
	}
	l, err := ev.layout(op, shape, a, b)
	if err != nil {
		return nil, err
	}
	ev.log.Debug().Str("op", op.String()).
		Str("a", a.Config.String()).
		Str("b", b.Config.String()).
		Str("shape", shape.String()).
		Msg("binary")

	name := fmt.Sprintf("%s(%s,%s)", op, a.Name, b.Name)

	var values []value.Value
	if !l.encrypted {
		values, err = ev.plain(l, a, b)
	} else if op.Homomorphic() {
		values, err = ev.homomorphic(l, a, b)
	} else {
		values, err = ev.secure(ctx, l, a, b)
	}
	if err != nil {
		return nil, err
	}
	return l.result(shape, name, a, values), nil
}

// Unary evaluates the unary operator for the operand a of the shape.
func (ev *Evaluator) Unary(ctx context.Context, op Op, a *tensor.Tensor,
	shape tensor.Shape) (*tensor.Tensor, error) {

	if _, ok := ops[op]; !ok || !op.Unary() {
		return nil, &UnsupportedOperatorError{
			Op:     op,
			Reason: "not an unary operator",
		}
	}
	l, err := ev.layout(op, shape, a)
	if err != nil {
		return nil, err
	}
	ev.log.Debug().Str("op", op.String()).
		Str("a", a.Config.String()).
		Str("shape", shape.String()).
		Msg("unary")

	name := fmt.Sprintf("%s(%s)", op, a.Name)

	var values []value.Value
	if !l.encrypted {
		values, err = ev.plain(l, a)
	} else if op.Homomorphic() {
		values, err = ev.homomorphic(l, a)
	} else {
		values, err = ev.secure(ctx, l, a)
	}
	if err != nil {
		return nil, err
	}
	return l.result(shape, name, a, values), nil
}

// plain evaluates the operator for plaintext operands.
func (ev *Evaluator) plain(l *layout, args ...*tensor.Tensor) (
	[]value.Value, error) {

	result := make([]value.Value, l.count)
	for i := range result {
		lanes := make([]plaintext.Plaintext, len(args))
		for j, t := range args {
			p, err := value.Plain(t.Values[i])
			if err != nil {
				return nil, err
			}
			lanes[j] = p
		}
		out := make([]float64, l.lanes)
		for n := range out {
			x := value.Lane(lanes[0], n)
			var y float64
			if len(lanes) > 1 {
				y = value.Lane(lanes[1], n)
			}
			out[n] = l.op.eval(x, y)
		}
		result[i] = value.NewPlain(out, l.packed)
	}
	return result, nil
}

// homomorphic evaluates the homomorphic operators for operands of
// which at least one is encrypted.
func (ev *Evaluator) homomorphic(l *layout, args ...*tensor.Tensor) (
	[]value.Value, error) {

	result := make([]value.Value, l.count)
	for i := range result {
		var ct *he.Ciphertext
		var err error

		if len(args) == 1 {
			ct, err = ev.negate(args[0].Values[i])
		} else {
			ct, err = ev.binary(l.op, args[0].Values[i], args[1].Values[i])
		}
		if err != nil {
			if errors.Is(err, he.ErrLayoutMismatch) {
				return nil, &UnsupportedOperatorError{
					Op:     l.op,
					Reason: err.Error(),
				}
			}
			return nil, err
		}
		result[i] = value.NewCipher(ct, l.packed)
	}
	return result, nil
}

func (ev *Evaluator) negate(v value.Value) (*he.Ciphertext, error) {
	ct, err := value.Cipher(v)
	if err != nil {
		return nil, err
	}
	return ev.heCtx.Negate(ct)
}

func (ev *Evaluator) binary(op Op, a, b value.Value) (*he.Ciphertext, error) {
	switch {
	case a.Encrypted() && b.Encrypted():
		x, _ := value.Cipher(a)
		y, _ := value.Cipher(b)
		switch op {
		case Add:
			return ev.heCtx.Add(x, y)
		case Subtract:
			return ev.heCtx.Sub(x, y)
		default:
			return ev.heCtx.Mul(x, y)
		}

	case a.Encrypted():
		x, _ := value.Cipher(a)
		y, err := value.Plain(b)
		if err != nil {
			return nil, err
		}
		switch op {
		case Add:
			return ev.heCtx.AddPlain(x, y)
		case Subtract:
			return ev.heCtx.SubPlain(x, y)
		default:
			return ev.heCtx.MulPlain(x, y)
		}

	default:
		x, err := value.Plain(a)
		if err != nil {
			return nil, err
		}
		y, _ := value.Cipher(b)
		switch op {
		case Add:
			return ev.heCtx.AddPlain(y, x)
		case Subtract:
			neg, err := ev.heCtx.Negate(y)
			if err != nil {
				return nil, err
			}
			return ev.heCtx.AddPlain(neg, x)
		default:
			return ev.heCtx.MulPlain(y, x)
		}
	}
}

// secure evaluates the nonlinear operators with the secure executor.
// The encrypted operands are masked with fresh input masks and the
// executor results are unmasked with the output masks.
func (ev *Evaluator) secure(ctx context.Context, l *layout,
	args ...*tensor.Tensor) ([]value.Value, error) {

	if ev.exec == nil {
		return nil, &UnsupportedOperatorError{
			Op:     l.op,
			Reason: "no secure executor for encrypted operands",
		}
	}
	batch := &aby.Batch{
		Op:      ops[l.op].secure,
		Count:   l.count,
		Lanes:   l.lanes,
		Packed:  l.packed,
		Complex: l.complex,
	}
	for _, t := range args {
		in := aby.Input{
			Encrypted: t.Config.Encrypted,
		}
		for i := 0; i < l.count; i++ {
			v := t.Values[i]
			if !in.Encrypted {
				in.Values = append(in.Values, v)
				continue
			}
			ct, err := value.Cipher(v)
			if err != nil {
				return nil, &SecureEvaluationError{
					Op:  l.op,
					Err: err,
				}
			}
			mask, err := ev.exec.Mask(ct.Lanes())
			if err != nil {
				return nil, &SecureEvaluationError{
					Op:  l.op,
					Err: err,
				}
			}
			masked, err := ev.heCtx.AddPlain(ct, mask)
			if err != nil {
				return nil, &SecureEvaluationError{
					Op:  l.op,
					Err: err,
				}
			}
			in.Values = append(in.Values, value.NewCipher(masked, v.Packed()))
			in.Masks = append(in.Masks, mask)
		}
		batch.Inputs = append(batch.Inputs, in)
	}
	for i := 0; i < l.count; i++ {
		mask, err := ev.exec.Mask(l.lanes)
		if err != nil {
			return nil, &SecureEvaluationError{
				Op:  l.op,
				Err: err,
			}
		}
		batch.OutputMasks = append(batch.OutputMasks, mask)
	}

	results, err := ev.exec.EvaluateNonlinearBatch(ctx, batch)
	if err != nil {
		return nil, &SecureEvaluationError{
			Op:  l.op,
			Err: err,
		}
	}
	if len(results) != l.count {
		err = fmt.Errorf("got %d results, expected %d", len(results), l.count)
		return nil, &SecureEvaluationError{
			Op:  l.op,
			Err: err,
		}
	}
	for i, v := range results {
		ct, err := value.Cipher(v)
		if err != nil {
			return nil, &SecureEvaluationError{
				Op:  l.op,
				Err: err,
			}
		}
		ct, err = ev.heCtx.SubPlain(ct, batch.OutputMasks[i])
		if err != nil {
			return nil, &SecureEvaluationError{
				Op:  l.op,
				Err: err,
			}
		}
		results[i] = value.NewCipher(ct, l.packed)
	}
	return results, nil
}
