// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package ir provides the type model, function signatures and error kinds
// shared by every level of the Tessel intermediate representation.
package ir

import (
	"fmt"
	"math"
	"strings"
)

// Kind distinguishes the (closed) set of type forms.
type Kind uint8

const (
	// KindNone is the type of operations producing no value (print, return).
	KindNone Kind = iota
	// KindScalar is the type of a single floating point number.  Observe that
	// f64 is currently the only element kind.
	KindScalar
	// KindTensor is the type of a multi-dimensional array of scalars, either
	// ranked (fixed shape) or unranked (shape pending inference).
	KindTensor
	// KindStruct is the type of a named aggregate of tensor fields.
	KindStruct
)

// Field pairs a struct field name with its declared type.
type Field struct {
	Name string
	Type Type
}

// Type is an immutable value object describing the type of a value at the
// tensor level.  Two tensor types are equal iff every dimension matches; an
// unranked tensor type is compatible with (but not equal to) any ranked
// tensor type.
type Type struct {
	kind Kind
	// Dimension sizes (tensors only).  Nil for unranked tensors; observe a
	// rank-0 tensor is represented by an empty (non-nil) shape.
	shape []int
	// Distinguishes the unranked tensor from a rank-0 tensor.
	unranked bool
	// Struct name (structs only).
	name string
	// Ordered struct fields (structs only).
	fields []Field
}

// None returns the type of value-less operations.
func None() Type {
	return Type{kind: KindNone}
}

// Scalar returns the (unique) scalar type.
func Scalar() Type {
	return Type{kind: KindScalar}
}

// Tensor returns the ranked tensor type with the given shape.
func Tensor(shape ...int) Type {
	if shape == nil {
		shape = []int{}
	}
	//
	return Type{kind: KindTensor, shape: shape}
}

// UnrankedTensor returns the tensor type whose shape is pending inference.
func UnrankedTensor() Type {
	return Type{kind: KindTensor, unranked: true}
}

// Struct returns a named struct type over the given ordered fields.
func Struct(name string, fields []Field) Type {
	return Type{kind: KindStruct, name: name, fields: fields}
}

// Kind returns the kind of this type.
func (p Type) Kind() Kind {
	return p.kind
}

// IsTensor checks whether this is a (ranked or unranked) tensor type.
func (p Type) IsTensor() bool {
	return p.kind == KindTensor
}

// IsUnranked checks whether this is the unranked tensor type.
func (p Type) IsUnranked() bool {
	return p.kind == KindTensor && p.unranked
}

// IsConcrete checks whether this type carries no pending shape information.
// Observe that None and Scalar are trivially concrete, and structs are
// concrete when every field is.
func (p Type) IsConcrete() bool {
	switch p.kind {
	case KindTensor:
		return !p.unranked
	case KindStruct:
		for _, f := range p.fields {
			if !f.Type.IsConcrete() {
				return false
			}
		}
		//
		return true
	default:
		return true
	}
}

// Shape returns the dimension sizes of a ranked tensor type.  This panics for
// any other type form.
func (p Type) Shape() []int {
	if p.kind != KindTensor || p.unranked {
		panic("type has no shape")
	}
	//
	return p.shape
}

// Name returns the name of a struct type.
func (p Type) Name() string {
	if p.kind != KindStruct {
		panic("type has no name")
	}
	//
	return p.name
}

// Fields returns the ordered fields of a struct type.
func (p Type) Fields() []Field {
	if p.kind != KindStruct {
		panic("type has no fields")
	}
	//
	return p.fields
}

// FieldType looks up the declared type of a given struct field.
func (p Type) FieldType(name string) (Type, bool) {
	for _, f := range p.Fields() {
		if f.Name == name {
			return f.Type, true
		}
	}
	//
	return Type{}, false
}

// Count returns the total number of elements held by a value of this type.
// The second result is false if the computation overflows the addressable
// range.
func (p Type) Count() (int, bool) {
	switch p.kind {
	case KindScalar:
		return 1, true
	case KindTensor:
		if p.unranked {
			return 0, true
		}
		//
		return countOf(p.shape)
	case KindStruct:
		var sum int
		//
		for _, f := range p.fields {
			n, ok := f.Type.Count()
			if !ok {
				return 0, false
			}
			//
			sum += n
		}
		//
		return sum, true
	default:
		return 0, true
	}
}

// Equals checks whether this type is identical to another.  For tensors this
// requires every dimension to match; in particular the unranked tensor type
// is not equal to any ranked tensor type.
func (p Type) Equals(other Type) bool {
	if p.kind != other.kind {
		return false
	}
	//
	switch p.kind {
	case KindTensor:
		if p.unranked != other.unranked {
			return false
		}
		//
		return p.unranked || sameShape(p.shape, other.shape)
	case KindStruct:
		if p.name != other.name || len(p.fields) != len(other.fields) {
			return false
		}
		//
		for i, f := range p.fields {
			if f.Name != other.fields[i].Name || !f.Type.Equals(other.fields[i].Type) {
				return false
			}
		}
		//
		return true
	default:
		return true
	}
}

// CompatibleWith checks whether a value of this type can flow into a position
// of the other type.  This is type equality, except that the unranked tensor
// type is compatible with every tensor type (in both directions).
func (p Type) CompatibleWith(other Type) bool {
	if p.kind == KindTensor && other.kind == KindTensor {
		return p.unranked || other.unranked || sameShape(p.shape, other.shape)
	}
	//
	return p.Equals(other)
}

// String renders this type in its textual form, e.g. "tensor<2x3xf64>".
func (p Type) String() string {
	switch p.kind {
	case KindNone:
		return "none"
	case KindScalar:
		return "f64"
	case KindTensor:
		if p.unranked {
			return "tensor<*xf64>"
		}
		//
		var builder strings.Builder
		//
		builder.WriteString("tensor<")
		//
		for _, d := range p.shape {
			fmt.Fprintf(&builder, "%dx", d)
		}
		//
		builder.WriteString("f64>")
		//
		return builder.String()
	case KindStruct:
		return fmt.Sprintf("struct %s", p.name)
	default:
		panic("unreachable")
	}
}

// Determine the product of the given dimensions, reporting false on overflow.
func countOf(shape []int) (int, bool) {
	count := 1
	//
	for _, d := range shape {
		if d != 0 && count > math.MaxInt/d {
			return 0, false
		}
		//
		count *= d
	}
	//
	return count, true
}

// SameShape checks whether two dimension sequences are identical.
func sameShape(lhs []int, rhs []int) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	//
	for i := range lhs {
		if lhs[i] != rhs[i] {
			return false
		}
	}
	//
	return true
}
