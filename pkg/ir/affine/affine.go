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

// Package affine provides the loop-level intermediate representation.  Tensor
// values have been laid out as named row-major f64 buffers of static shape,
// and whole-tensor operations have become perfect loop nests of elementwise
// stores.  Structs no longer exist: each field was laid out as a buffer of
// its own during lowering.
//
// Loop bounds and buffer shapes are compile-time constants, and every index
// expression is either a loop variable or a literal, which keeps all
// addressing affine.  A flat reference addresses a buffer linearly in
// row-major element order, irrespective of its shape.
package affine

import (
	"fmt"
)

// Buffer is a named f64 buffer of static shape.  The empty shape denotes a
// single element.
type Buffer struct {
	Name  string
	Shape []int
}

// Count returns the number of elements of this buffer.
func (p Buffer) Count() int {
	count := 1
	for _, d := range p.Shape {
		count *= d
	}
	//
	return count
}

// Index is a single index expression: either a loop variable or a literal.
type Index struct {
	// Loop variable name, or empty for a literal index.
	IVar string
	// Literal value, meaningful when IVar is empty.
	Lit int
}

// IVar constructs a loop-variable index.
func IVar(name string) Index {
	return Index{name, 0}
}

// Lit constructs a literal index.
func Lit(value int) Index {
	return Index{"", value}
}

// Ref identifies one element of a buffer.  A shaped reference carries one
// index per dimension; a flat reference carries exactly one index addressing
// the buffer linearly.
type Ref struct {
	Buffer  string
	Indices []Index
	Flat    bool
}

// ExprKind identifies the (closed) vocabulary of scalar expressions.
type ExprKind uint8

const (
	// ExprLoad reads one buffer element.
	ExprLoad ExprKind = iota
	// ExprConst is a floating-point literal.
	ExprConst
	// ExprAdd is scalar addition.
	ExprAdd
	// ExprMul is scalar multiplication.
	ExprMul
)

// Expr is a scalar expression tree.  Exactly which attributes are meaningful
// depends upon the kind.
type Expr struct {
	Kind ExprKind
	// Source reference (load only).
	Ref Ref
	// Literal value (const only).
	Value float64
	// Subexpressions (add / mul only).
	Lhs *Expr
	Rhs *Expr
}

// Load constructs a buffer-element read.
func Load(ref Ref) Expr {
	return Expr{Kind: ExprLoad, Ref: ref}
}

// Const constructs a literal expression.
func Const(value float64) Expr {
	return Expr{Kind: ExprConst, Value: value}
}

// Add constructs a scalar addition.
func Add(lhs Expr, rhs Expr) Expr {
	return Expr{Kind: ExprAdd, Lhs: &lhs, Rhs: &rhs}
}

// Mul constructs a scalar multiplication.
func Mul(lhs Expr, rhs Expr) Expr {
	return Expr{Kind: ExprMul, Lhs: &lhs, Rhs: &rhs}
}

// StmtKind identifies the (closed) vocabulary of statements.
type StmtKind uint8

const (
	// StmtLoop iterates a body with a loop variable running from zero
	// (inclusive) to a constant bound (exclusive).
	StmtLoop StmtKind = iota
	// StmtStore writes one buffer element.
	StmtStore
	// StmtPrint renders an entire buffer to the program's output.
	StmtPrint
	// StmtReturn leaves the enclosing function, optionally designating a
	// buffer as its result.
	StmtReturn
)

// Stmt is a single statement.  Exactly which attributes are meaningful
// depends upon the kind.
type Stmt struct {
	Kind StmtKind
	// Loop variable and bound, plus body (loop only).
	IVar  string
	Bound int
	Body  []Stmt
	// Destination and source (store only).
	Dst Ref
	Src Expr
	// Operand buffer (print / return); empty for a bare return.
	Target string
}

// Loop constructs a loop statement.
func Loop(ivar string, bound int, body ...Stmt) Stmt {
	return Stmt{Kind: StmtLoop, IVar: ivar, Bound: bound, Body: body}
}

// Store constructs a store statement.
func Store(dst Ref, src Expr) Stmt {
	return Stmt{Kind: StmtStore, Dst: dst, Src: src}
}

// Print constructs a print statement.
func Print(buffer string) Stmt {
	return Stmt{Kind: StmtPrint, Target: buffer}
}

// Return constructs a return statement; the empty string denotes a bare
// return.
func Return(buffer string) Stmt {
	return Stmt{Kind: StmtReturn, Target: buffer}
}

// Function is a parameterised body of statements over a set of buffers.
// Parameters are caller-provided buffers; locals are buffers the function
// itself allocates.
type Function struct {
	Name   string
	Params []Buffer
	Locals []Buffer
	// Shape of the result buffer, or nil when the function returns nothing.
	Result []int
	Body   []Stmt
}

// Buffer looks up a parameter or local buffer by name.
func (p *Function) Buffer(name string) (Buffer, bool) {
	for _, b := range p.Params {
		if b.Name == name {
			return b, true
		}
	}
	//
	for _, b := range p.Locals {
		if b.Name == name {
			return b, true
		}
	}
	//
	return Buffer{}, false
}

// AddLocal declares a local buffer, failing if the name is already taken.
func (p *Function) AddLocal(buffer Buffer) error {
	if _, ok := p.Buffer(buffer.Name); ok {
		return fmt.Errorf("buffer %s already declared", buffer.Name)
	}
	//
	p.Locals = append(p.Locals, buffer)
	//
	return nil
}

// Program is the top-level container at the loop level.
type Program struct {
	Funcs []*Function
}

// Function looks up a function by name.
func (p *Program) Function(name string) (*Function, bool) {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	//
	return nil, false
}

// AddFunction registers a function, failing if the name is already taken.
func (p *Program) AddFunction(fn *Function) error {
	if _, ok := p.Function(fn.Name); ok {
		return fmt.Errorf("function %s already declared", fn.Name)
	}
	//
	p.Funcs = append(p.Funcs, fn)
	//
	return nil
}
