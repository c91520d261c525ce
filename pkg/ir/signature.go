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
package ir

import (
	"fmt"
	"strings"
)

// Signature identifies a function by its name and ordered parameter types.
// Signatures are the key under which specializations of a generic function
// are created and memoized: two call sites with identical argument-type
// tuples share one specialization.
type Signature struct {
	// Name of the function being identified.
	Name string
	// Ordered parameter types.
	Params []Type
}

// NewSignature constructs a signature for a given function name and parameter
// types.
func NewSignature(name string, params ...Type) Signature {
	return Signature{name, params}
}

// Key returns a canonical string form of this signature, suitable for use as
// a map key.
func (p Signature) Key() string {
	var builder strings.Builder
	//
	builder.WriteString(p.Name)
	builder.WriteString("(")
	//
	for i, t := range p.Params {
		if i != 0 {
			builder.WriteString(",")
		}
		//
		builder.WriteString(t.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// Mangle returns a unique, identifier-friendly function name for the
// specialization of this signature, e.g. "multiply_transpose$2x3$2x3".  A
// function with no parameters mangles to its own name.
func (p Signature) Mangle() string {
	var builder strings.Builder
	//
	builder.WriteString(p.Name)
	//
	for _, t := range p.Params {
		builder.WriteString("$")
		builder.WriteString(mangleType(t))
	}
	//
	return builder.String()
}

// Mangle a single parameter type.
func mangleType(t Type) string {
	switch t.Kind() {
	case KindScalar:
		return "f64"
	case KindTensor:
		var dims []string
		//
		for _, d := range t.Shape() {
			dims = append(dims, fmt.Sprintf("%d", d))
		}
		//
		if len(dims) == 0 {
			return "s"
		}
		//
		return strings.Join(dims, "x")
	case KindStruct:
		return t.Name()
	default:
		panic("unreachable")
	}
}

// String renders this signature in human-readable form.
func (p Signature) String() string {
	return p.Key()
}
