//
// element.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package element defines the numeric element types of host tensor
// buffers.
package element

import (
	"fmt"
	"strings"
)

// Type specifies a host tensor element type.
type Type int8

// Host element types.
const (
	Undefined Type = iota
	Dynamic
	Boolean
	BF16
	F16
	F32
	F64
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
)

var names = map[Type]string{
	Undefined: "undefined",
	Dynamic:   "dynamic",
	Boolean:   "boolean",
	BF16:      "bf16",
	F16:       "f16",
	F32:       "f32",
	F64:       "f64",
	I8:        "i8",
	I16:       "i16",
	I32:       "i32",
	I64:       "i64",
	U8:        "u8",
	U16:       "u16",
	U32:       "u32",
	U64:       "u64",
}

var sizes = map[Type]int{
	Boolean: 1,
	BF16:    2,
	F16:     2,
	F32:     4,
	F64:     8,
	I8:      1,
	I16:     2,
	I32:     4,
	I64:     8,
	U8:      1,
	U16:     2,
	U32:     4,
	U64:     8,
}

func (t Type) String() string {
	name, ok := names[t]
	if ok {
		return name
	}
	return fmt.Sprintf("{Type %d}", t)
}

// Size returns the element size in bytes. Undefined and dynamic
// types have size 0.
func (t Type) Size() int {
	return sizes[t]
}

// Bits returns the element size in bits.
func (t Type) Bits() int {
	return t.Size() * 8
}

// Real tests if the type is a floating point type.
func (t Type) Real() bool {
	switch t {
	case BF16, F16, F32, F64:
		return true
	default:
		return false
	}
}

// Signed tests if the type is a signed integer type.
func (t Type) Signed() bool {
	switch t {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// Parse parses the element type name. The name is case insensitive.
func Parse(name string) (Type, error) {
	lower := strings.ToLower(name)
	for t, n := range names {
		if n == lower {
			return t, nil
		}
	}
	return Undefined, fmt.Errorf("unknown element type: %s", name)
}
