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

// Package ast defines the abstract syntax tree produced by the Tessel parser.
// Nodes are produced once by the parser and are read-only thereafter; every
// node retains the span of source text from which it was parsed.
package ast

import (
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

// Node is any element of the syntax tree.
type Node interface {
	// Span returns the span of source text this node was parsed from.
	Span() source.Span
}

// Stmt is any statement form.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is any expression form.
type Expr interface {
	Node
	exprNode()
}

// Module is the top-level container of a single parsed source file.
type Module struct {
	// Struct declarations, in order of appearance.
	Structs []*StructDecl
	// Function declarations, in order of appearance.
	Funcs []*FuncDecl
	// Source file this module was parsed from.
	File *source.File
}

// StructDecl declares a named struct with ordered, untyped fields.  Field
// types (and shapes) are resolved from the literals used to construct struct
// values.
type StructDecl struct {
	Name   string
	Fields []string
	span   source.Span
}

// FuncDecl declares a function.  Parameters carry no shapes in source; a
// function with parameters is therefore generic, and is specialized per
// distinct argument-shape tuple at each call site.
type FuncDecl struct {
	Name   string
	Params []Param
	Body   []Stmt
	span   source.Span
}

// Param is a single (unshaped) function parameter.
type Param struct {
	Name string
	span source.Span
}

// VarStmt declares an immutable variable, e.g. "var a<2,3> = [1,2,3,4,5,6];".
// When the declared shape differs from the shape of the initializer, the
// initializer is reshaped (preserving row-major element order).
type VarStmt struct {
	Name string
	// Declared shape, or nil if none was given.
	Shape []int
	Init  Expr
	span  source.Span
}

// ReturnStmt returns from the enclosing function, optionally with a value.
type ReturnStmt struct {
	// Value returned, or nil for a bare return.
	Value Expr
	span  source.Span
}

// ExprStmt evaluates an expression for its effect, e.g. "print(a);".
type ExprStmt struct {
	Expr Expr
	span source.Span
}

// NumberLit is a numeric literal, e.g. "1" or "2.5".
type NumberLit struct {
	Value float64
	span  source.Span
}

// TensorLit is a (possibly nested) tensor literal, e.g. "[[1,2],[3,4]]".
type TensorLit struct {
	// Elements, each either a nested TensorLit or a NumberLit.
	Elems []Expr
	span  source.Span
}

// Ident references a previously declared variable or parameter.
type Ident struct {
	Name string
	span source.Span
}

// BinaryExpr is an elementwise binary operation; Op is one of '+' or '*'.
type BinaryExpr struct {
	Op  byte
	Lhs Expr
	Rhs Expr
}

// CallExpr calls a user-defined function or one of the builtins (transpose,
// print).
type CallExpr struct {
	Callee string
	Args   []Expr
	span   source.Span
}

// StructLit constructs a struct value, e.g. "Pair{[1,2],[3,4]}".  Field
// initializers are positional and must be constant.
type StructLit struct {
	Name   string
	Fields []Expr
	span   source.Span
}

// FieldExpr accesses a named field of a struct value, e.g. "p.a".
type FieldExpr struct {
	Obj   Expr
	Field string
	span  source.Span
}

// NewStructDecl constructs a struct declaration over a given span.
func NewStructDecl(name string, fields []string, span source.Span) *StructDecl {
	return &StructDecl{name, fields, span}
}

// NewFuncDecl constructs a function declaration over a given span.
func NewFuncDecl(name string, params []Param, body []Stmt, span source.Span) *FuncDecl {
	return &FuncDecl{name, params, body, span}
}

// NewParam constructs a parameter over a given span.
func NewParam(name string, span source.Span) Param {
	return Param{name, span}
}

// NewVarStmt constructs a variable declaration over a given span.
func NewVarStmt(name string, shape []int, init Expr, span source.Span) *VarStmt {
	return &VarStmt{name, shape, init, span}
}

// NewReturnStmt constructs a return statement over a given span.
func NewReturnStmt(value Expr, span source.Span) *ReturnStmt {
	return &ReturnStmt{value, span}
}

// NewExprStmt constructs an expression statement over a given span.
func NewExprStmt(expr Expr, span source.Span) *ExprStmt {
	return &ExprStmt{expr, span}
}

// NewNumberLit constructs a numeric literal over a given span.
func NewNumberLit(value float64, span source.Span) *NumberLit {
	return &NumberLit{value, span}
}

// NewTensorLit constructs a tensor literal over a given span.
func NewTensorLit(elems []Expr, span source.Span) *TensorLit {
	return &TensorLit{elems, span}
}

// NewIdent constructs an identifier reference over a given span.
func NewIdent(name string, span source.Span) *Ident {
	return &Ident{name, span}
}

// NewBinaryExpr constructs a binary expression.
func NewBinaryExpr(op byte, lhs Expr, rhs Expr) *BinaryExpr {
	return &BinaryExpr{op, lhs, rhs}
}

// NewCallExpr constructs a call expression over a given span.
func NewCallExpr(callee string, args []Expr, span source.Span) *CallExpr {
	return &CallExpr{callee, args, span}
}

// NewStructLit constructs a struct literal over a given span.
func NewStructLit(name string, fields []Expr, span source.Span) *StructLit {
	return &StructLit{name, fields, span}
}

// NewFieldExpr constructs a field access over a given span.
func NewFieldExpr(obj Expr, field string, span source.Span) *FieldExpr {
	return &FieldExpr{obj, field, span}
}

// Span implementation for the Node interface.
func (p *StructDecl) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *FuncDecl) Span() source.Span { return p.span }

// Span returns the span of this parameter.
func (p Param) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *VarStmt) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *ReturnStmt) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *ExprStmt) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *NumberLit) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *TensorLit) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *Ident) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *BinaryExpr) Span() source.Span { return p.Lhs.Span().Join(p.Rhs.Span()) }

// Span implementation for the Node interface.
func (p *CallExpr) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *StructLit) Span() source.Span { return p.span }

// Span implementation for the Node interface.
func (p *FieldExpr) Span() source.Span { return p.span }

func (p *VarStmt) stmtNode()    {}
func (p *ReturnStmt) stmtNode() {}
func (p *ExprStmt) stmtNode()   {}

func (p *NumberLit) exprNode()  {}
func (p *TensorLit) exprNode()  {}
func (p *Ident) exprNode()      {}
func (p *BinaryExpr) exprNode() {}
func (p *CallExpr) exprNode()   {}
func (p *StructLit) exprNode()  {}
func (p *FieldExpr) exprNode()  {}
