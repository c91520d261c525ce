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

	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

// ErrorKind distinguishes, in a machine-checkable fashion, the ways in which
// compilation of a module can fail.
type ErrorKind uint8

const (
	// ShapeMismatch signals operand shapes incompatible for an operation.
	ShapeMismatch ErrorKind = iota
	// UnresolvedShape signals a parameter or result shape which could not be
	// determined after specialization.
	UnresolvedShape
	// UndefinedSymbol signals a call, field or variable reference with no
	// binding.
	UndefinedSymbol
	// RecursiveSpecialization signals a specialization which depends upon its
	// own (not yet resolved) signature.
	RecursiveSpecialization
	// ReshapeSizeMismatch signals an element-count mismatch on a reshape.
	ReshapeSizeMismatch
	// TypeMismatch signals an operation applied to incompatible struct,
	// scalar or tensor kinds.
	TypeMismatch
	// ElementCountOverflow signals a buffer size computation exceeding the
	// addressable range.
	ElementCountOverflow
	// BackendFailure signals an (opaque) failure within the native backend.
	BackendFailure
)

// String returns the conventional name of this error kind.
func (k ErrorKind) String() string {
	switch k {
	case ShapeMismatch:
		return "shape mismatch"
	case UnresolvedShape:
		return "unresolved shape"
	case UndefinedSymbol:
		return "undefined symbol"
	case RecursiveSpecialization:
		return "recursive specialization"
	case ReshapeSizeMismatch:
		return "reshape size mismatch"
	case TypeMismatch:
		return "type mismatch"
	case ElementCountOverflow:
		return "element count overflow"
	case BackendFailure:
		return "backend failure"
	default:
		panic("unreachable")
	}
}

// Error is a compilation error carrying a machine-distinguishable kind and,
// where traceable, the span of source text responsible.  Compilation of a
// module aborts on the first such error; there is no multi-error recovery.
type Error struct {
	// Kind of this error.
	Kind ErrorKind
	// Source file in which the error arose (nil where untraceable, e.g. for
	// modules injected directly at some IR level).
	File *source.File
	// Span of the responsible source text.
	Span source.Span
	// Human-readable detail.
	Msg string
}

// NewError constructs a compilation error of the given kind with no source
// attribution.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewErrorAt constructs a compilation error of the given kind attributed to a
// given span of a given source file.
func NewErrorAt(kind ErrorKind, file *source.File, span source.Span, format string, args ...any) *Error {
	return &Error{kind, file, span, fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (p *Error) Error() string {
	if p.File != nil {
		return fmt.Sprintf("%s: %s", p.File.SyntaxError(p.Span, p.Kind.String()).Error(), p.Msg)
	}
	//
	return fmt.Sprintf("%s: %s", p.Kind, p.Msg)
}

// IsKind checks whether a given error is a compilation error of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	//
	return false
}
