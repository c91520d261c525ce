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

// Package tensor provides the tensor-level intermediate representation.  At
// this level every operation is drawn from a fixed vocabulary over whole
// tensors (or struct aggregates thereof), and every value carries a type
// which is either fully ranked or marked unranked pending inference.
//
// Operations and values live in a per-function arena and are referenced by
// stable integer handles, such that rewrites amount to retargeting consumers
// and marking old handles dead.  Values follow a single-assignment
// discipline: each is produced by exactly one defining operation and is never
// mutated thereafter.
package tensor

import (
	"fmt"
	"math"

	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Opcode identifies the (closed) vocabulary of tensor-level operations.
type Opcode uint8

const (
	// OpNop marks a dead arena slot; it is never produced by the builder and
	// never survives compaction.
	OpNop Opcode = iota
	// OpConstant materialises a literal tensor, or a struct of literal
	// tensors.
	OpConstant
	// OpAdd is elementwise addition; operand shapes must match exactly.
	OpAdd
	// OpMul is elementwise multiplication; operand shapes must match exactly.
	OpMul
	// OpTranspose reverses the dimension order of its operand.
	OpTranspose
	// OpReshape reinterprets its operand under a new shape of identical
	// element count, preserving row-major element order.
	OpReshape
	// OpField projects a named field out of a struct value.
	OpField
	// OpCall invokes a function; calls to generic functions are resolved to
	// concrete specializations during inference.
	OpCall
	// OpCast reconciles a value with an expected type at a generic function
	// boundary; identity casts are canonicalized away.
	OpCast
	// OpPrint renders its operand to the program's output.
	OpPrint
	// OpReturn terminates the enclosing function, optionally with a value.
	OpReturn
)

// String returns the mnemonic of this opcode.
func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpConstant:
		return "constant"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpTranspose:
		return "transpose"
	case OpReshape:
		return "reshape"
	case OpField:
		return "field"
	case OpCall:
		return "call"
	case OpCast:
		return "cast"
	case OpPrint:
		return "print"
	case OpReturn:
		return "return"
	default:
		panic("unreachable")
	}
}

// HasResult checks whether operations of this opcode produce a value.
func (op Opcode) HasResult() bool {
	return op != OpNop && op != OpPrint && op != OpReturn
}

// Pure checks whether operations of this opcode are free of externally
// observable effects, and hence may be eliminated when their result has no
// consumers.
func (op Opcode) Pure() bool {
	return op != OpPrint && op != OpReturn && op != OpCall
}

// ValueID is the stable handle of a value within a function.  Handles
// [0..NumParams) identify parameters; subsequent handles identify the results
// of operations in program order.
type ValueID uint32

// NoValue is the sentinel handle, used e.g. for the value of a bare return.
const NoValue ValueID = math.MaxUint32

// Literal is the payload of a constant: a flat row-major data array together
// with its shape.
type Literal struct {
	Shape []int
	Data  []float64
}

// Count returns the number of elements of this literal.
func (p Literal) Count() int {
	count := 1
	for _, d := range p.Shape {
		count *= d
	}
	//
	return count
}

// Operation is a single node of the tensor-level representation.  Operands
// are referenced (not owned): the defining operation owns its result value.
// Exactly which attributes are meaningful depends upon the opcode.
type Operation struct {
	// Opcode tag of this operation.
	Opcode Opcode
	// Ordered operand references.
	Operands []ValueID
	// Type of the result value (ir.None() for print / return).
	Type ir.Type
	// Literal payload (constant only).
	Literal Literal
	// Per-field literal payloads (struct constant only).
	Fields []Literal
	// Target shape (reshape only).
	Shape []int
	// Callee name (call), field name (field) or struct name (struct
	// constant).
	Name string
	// Span of responsible source text, where traceable.
	Span source.Span
}

// Function is an ordered arena of operations together with its signature.
// Within a function, every operand reference resolves to a value defined
// earlier or to a parameter.
type Function struct {
	name   string
	params []ir.Type
	result ir.Type
	// Operation arena; the value defined by ops[i] has handle NumParams()+i.
	ops []Operation
	// Number of consumers per value, indexed by handle.
	uses []uint32
}

// NewFunction constructs an (initially empty) function with given name and
// parameter types.
func NewFunction(name string, params ...ir.Type) *Function {
	if params == nil {
		params = []ir.Type{}
	}
	//
	return &Function{name, params, ir.None(), nil, make([]uint32, len(params))}
}

// Name returns the name of this function.
func (p *Function) Name() string {
	return p.name
}

// Rename sets the name of this function (e.g. to a mangled specialization
// name).
func (p *Function) Rename(name string) {
	p.name = name
}

// NumParams returns the number of parameters of this function.
func (p *Function) NumParams() int {
	return len(p.params)
}

// Params returns the ordered parameter types of this function.
func (p *Function) Params() []ir.Type {
	return p.params
}

// BindParams rebinds the parameter types of this function (specialization).
func (p *Function) BindParams(params []ir.Type) {
	if len(params) != len(p.params) {
		panic("incorrect number of parameter bindings")
	}
	//
	p.params = params
}

// Result returns the result type of this function.
func (p *Function) Result() ir.Type {
	return p.result
}

// SetResult sets the result type of this function.
func (p *Function) SetResult(result ir.Type) {
	p.result = result
}

// IsGeneric checks whether this function still has parameters of unresolved
// shape, and hence is a template rather than a callable body.
func (p *Function) IsGeneric() bool {
	for _, t := range p.params {
		if !t.IsConcrete() {
			return true
		}
	}
	//
	return false
}

// Signature returns the signature of this function.
func (p *Function) Signature() ir.Signature {
	return ir.NewSignature(p.name, p.params...)
}

// NumOps returns the number of arena slots of this function, including dead
// slots.
func (p *Function) NumOps() int {
	return len(p.ops)
}

// NumValues returns the total number of value handles of this function.
func (p *Function) NumValues() int {
	return len(p.params) + len(p.ops)
}

// IsParam checks whether a given handle identifies a parameter.
func (p *Function) IsParam(id ValueID) bool {
	return int(id) < len(p.params)
}

// ValueOf returns the handle of the value defined by the i'th operation.
func (p *Function) ValueOf(i int) ValueID {
	return ValueID(len(p.params) + i)
}

// Op returns the operation defining a given (non-parameter) value.
func (p *Function) Op(id ValueID) *Operation {
	return &p.ops[int(id)-len(p.params)]
}

// TypeOf returns the type of a given value.
func (p *Function) TypeOf(id ValueID) ir.Type {
	if p.IsParam(id) {
		return p.params[id]
	}
	//
	return p.Op(id).Type
}

// Uses returns the number of consumers of a given value.
func (p *Function) Uses(id ValueID) uint32 {
	return p.uses[id]
}

// Append adds an operation to the end of this function, returning the handle
// of its result value.  Operand references must identify existing values;
// this is what maintains the strictly forward-referencing discipline.
func (p *Function) Append(op Operation) ValueID {
	for _, operand := range op.Operands {
		if int(operand) >= p.NumValues() {
			panic(fmt.Sprintf("operand %d out of range", operand))
		}
		//
		p.uses[operand]++
	}
	//
	p.ops = append(p.ops, op)
	p.uses = append(p.uses, 0)
	//
	return ValueID(p.NumValues() - 1)
}

// ReplaceUses retargets every consumer of one value to another value,
// adjusting use counts accordingly.  This is the fundamental rewrite of the
// canonicalizer.
func (p *Function) ReplaceUses(old ValueID, next ValueID) {
	if old == next {
		return
	}
	//
	for i := range p.ops {
		for j, operand := range p.ops[i].Operands {
			if operand == old {
				p.ops[i].Operands[j] = next
				p.uses[old]--
				p.uses[next]++
			}
		}
	}
}

// Kill marks the operation defining a given value as dead, releasing its
// operand references.  The arena slot survives until the next compaction.
func (p *Function) Kill(id ValueID) {
	op := p.Op(id)
	//
	for _, operand := range op.Operands {
		p.uses[operand]--
	}
	//
	*op = Operation{Opcode: OpNop, Type: ir.None()}
}

// Compact rebuilds the arena of this function with all dead slots removed,
// renumbering the surviving values.
func (p *Function) Compact() {
	var (
		n      = len(p.params)
		mapped = make([]ValueID, p.NumValues())
		ops    = make([]Operation, 0, len(p.ops))
		uses   = make([]uint32, n, p.NumValues())
	)
	// Parameters map to themselves.
	for i := 0; i < n; i++ {
		mapped[i] = ValueID(i)
		uses[i] = 0
	}
	//
	for i, op := range p.ops {
		if op.Opcode == OpNop {
			continue
		}
		//
		operands := make([]ValueID, len(op.Operands))
		for j, operand := range op.Operands {
			operands[j] = mapped[operand]
		}
		//
		op.Operands = operands
		mapped[n+i] = ValueID(n + len(ops))
		ops = append(ops, op)
		uses = append(uses, 0)
	}
	//
	p.ops, p.uses = ops, uses
	// Recompute use counts.
	for _, op := range p.ops {
		for _, operand := range op.Operands {
			p.uses[operand]++
		}
	}
}

// Clone constructs a deep copy of this function, e.g. as the starting point
// of a specialization.
func (p *Function) Clone() *Function {
	var (
		params = make([]ir.Type, len(p.params))
		ops    = make([]Operation, len(p.ops))
		uses   = make([]uint32, len(p.uses))
	)
	//
	copy(params, p.params)
	copy(uses, p.uses)
	//
	for i, op := range p.ops {
		op.Operands = append([]ValueID(nil), op.Operands...)
		op.Shape = append([]int(nil), op.Shape...)
		ops[i] = op
	}
	//
	return &Function{p.name, params, p.result, ops, uses}
}

// StructDecl records a declared struct: a name together with its ordered
// field names.  Field types are not declared; they are resolved from the
// literals used to construct struct values.
type StructDecl struct {
	Name   string
	Fields []string
}

// Module is the top-level container at the tensor level: a set of struct
// declarations (unique by name) and a set of functions (unique by
// signature).
type Module struct {
	structs []StructDecl
	funcs   *orderedmap.OrderedMap[string, *Function]
	// Source file this module was built from, where known.  Used to attach
	// source context to diagnostics.
	srcfile *source.File
}

// NewModule constructs an empty module.
func NewModule() *Module {
	return &Module{nil, orderedmap.New[string, *Function](), nil}
}

// SetSourceFile records the source file this module was built from.
func (p *Module) SetSourceFile(srcfile *source.File) {
	p.srcfile = srcfile
}

// SourceFile returns the source file this module was built from, or nil.
func (p *Module) SourceFile() *source.File {
	return p.srcfile
}

// AddStruct registers a struct declaration, failing if the name is already
// taken.
func (p *Module) AddStruct(decl StructDecl) error {
	if _, ok := p.Struct(decl.Name); ok {
		return fmt.Errorf("struct %s already declared", decl.Name)
	}
	//
	p.structs = append(p.structs, decl)
	//
	return nil
}

// Struct looks up a struct declaration by name.
func (p *Module) Struct(name string) (StructDecl, bool) {
	for _, s := range p.structs {
		if s.Name == name {
			return s, true
		}
	}
	//
	return StructDecl{}, false
}

// Structs returns all struct declarations, in declaration order.
func (p *Module) Structs() []StructDecl {
	return p.structs
}

// AddFunction registers a function, failing if a function of the same name
// already exists (no two functions share a specialized signature).
func (p *Module) AddFunction(fn *Function) error {
	if _, ok := p.funcs.Get(fn.Name()); ok {
		return fmt.Errorf("function %s already declared", fn.Name())
	}
	//
	p.funcs.Set(fn.Name(), fn)
	//
	return nil
}

// Function looks up a function by name.
func (p *Module) Function(name string) (*Function, bool) {
	return p.funcs.Get(name)
}

// RemoveFunction drops the function of the given name, if any.
func (p *Module) RemoveFunction(name string) {
	p.funcs.Delete(name)
}

// Functions returns all functions, in insertion order.
func (p *Module) Functions() []*Function {
	fns := make([]*Function, 0, p.funcs.Len())
	//
	for pair := p.funcs.Oldest(); pair != nil; pair = pair.Next() {
		fns = append(fns, pair.Value)
	}
	//
	return fns
}
