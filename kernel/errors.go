//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package kernel

import (
	"fmt"

	"github.com/markkurossi/hetensor/tensor"
)

// ShapeMismatchError is returned when an operand does not match the
// evaluation shape.
type ShapeMismatchError struct {
	Op       Op
	Name     string
	Expected tensor.Shape
	Got      tensor.Shape
	Values   int
}

func (e *ShapeMismatchError) Error() string {
	if e.Expected.Equal(e.Got) {
		return fmt.Sprintf("%s: operand %s%v has %d values",
			e.Op, e.Name, e.Got, e.Values)
	}
	return fmt.Sprintf("%s: operand %s shape mismatch: got %v, expected %v",
		e.Op, e.Name, e.Got, e.Expected)
}

// UnsupportedOperatorError is returned when the operator can't be
// evaluated for the operands.
type UnsupportedOperatorError struct {
	Op     Op
	Reason string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("%s: unsupported operator: %s", e.Op, e.Reason)
}

// SecureEvaluationError wraps the secure executor errors.
type SecureEvaluationError struct {
	Op  Op
	Err error
}

func (e *SecureEvaluationError) Error() string {
	return fmt.Sprintf("%s: secure evaluation failed: %v", e.Op, e.Err)
}

func (e *SecureEvaluationError) Unwrap() error {
	return e.Err
}
