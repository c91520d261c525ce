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
package tensor

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/affine"
)

// LowerToAffine lowers a fully resolved, call-free module down to the loop
// level.  This is a convenience wrapper around AffineLowering.
func LowerToAffine(module *Module) (*affine.Program, error) {
	lowering := NewAffineLowering(module)
	//
	return lowering.Lower()
}

// AffineLowering lays every tensor value out as a row-major f64 buffer and
// turns every whole-tensor operation into a loop nest of elementwise stores.
// Structs are decomposed into one buffer per field, with field projections
// becoming aliases rather than copies.
//
// The module must be fully resolved (every type concrete) and call-free, as
// produced by Specialize followed by Canonicalize.
type AffineLowering struct {
	module *Module
}

// NewAffineLowering constructs a lowering for a given module.
func NewAffineLowering(module *Module) AffineLowering {
	return AffineLowering{module}
}

// Lower lowers the module, producing a fresh program.
func (p AffineLowering) Lower() (*affine.Program, error) {
	program := &affine.Program{}
	//
	for _, fn := range p.module.Functions() {
		log.Debugf("lowering %s to loop form", fn.Name())
		//
		lowered, err := p.lowerFunction(fn)
		if err != nil {
			return nil, err
		}
		//
		if err := program.AddFunction(lowered); err != nil {
			return nil, err
		}
	}
	//
	return program, nil
}

func (p AffineLowering) lowerFunction(fn *Function) (*affine.Function, error) {
	lowering := &funcLowering{
		module:   p.module,
		fn:       fn,
		out:      &affine.Function{Name: fn.Name()},
		bindings: make([]binding, fn.NumValues()),
	}
	//
	for i, t := range fn.Params() {
		if !t.IsTensor() || t.IsUnranked() {
			return nil, ir.NewError(ir.TypeMismatch, "parameter %d of %s is not a ranked tensor", i, fn.Name())
		}
		//
		name := fmt.Sprintf("arg%d", i)
		lowering.out.Params = append(lowering.out.Params, affine.Buffer{Name: name, Shape: t.Shape()})
		lowering.bindings[i] = binding{name: name}
	}
	//
	if err := lowering.lowerBody(); err != nil {
		return nil, err
	}
	//
	return lowering.out, nil
}

// Binding records how a tensor-level value was laid out: a single buffer for
// tensors, or one buffer per field for structs.
type binding struct {
	name   string
	fields []string
}

// FuncLowering carries the state of lowering one function: the binding of
// each tensor-level value, plus counters for fresh buffer and loop-variable
// names.
type funcLowering struct {
	module   *Module
	fn       *Function
	out      *affine.Function
	bindings []binding
	buffers  int
	ivars    int
}

func (p *funcLowering) lowerBody() error {
	fn := p.fn
	//
	for i := 0; i < fn.NumOps(); i++ {
		var (
			op  = &fn.ops[i]
			id  = fn.ValueOf(i)
			err error
		)
		//
		if op.Opcode.HasResult() && !op.Type.IsConcrete() {
			return ir.NewErrorAt(ir.UnresolvedShape, p.module.SourceFile(), op.Span,
				"%s has unresolved shape; specialize first", op.Opcode)
		}
		//
		switch op.Opcode {
		case OpNop:
			// Dead slot.
		case OpConstant:
			err = p.lowerConstant(id, op)
		case OpAdd, OpMul:
			err = p.lowerElementwise(id, op)
		case OpTranspose:
			err = p.lowerTranspose(id, op)
		case OpReshape:
			err = p.lowerCopy(id, op)
		case OpCast:
			err = p.lowerCast(id, op)
		case OpField:
			err = p.lowerField(id, op)
		case OpCall:
			err = p.errorAt(op, "call to %s cannot be lowered; canonicalize first", op.Name)
		case OpPrint:
			p.emit(affine.Print(p.bindings[op.Operands[0]].name))
		case OpReturn:
			err = p.lowerReturn(op)
		default:
			panic("unreachable")
		}
		//
		if err != nil {
			return err
		}
	}
	//
	return nil
}

// Lower a constant into a fresh buffer (or one buffer per field, for a struct
// constant) initialised by one unrolled store per element.
func (p *funcLowering) lowerConstant(id ValueID, op *Operation) error {
	if op.Type.Kind() == ir.KindStruct {
		var (
			fields = op.Type.Fields()
			names  = make([]string, len(fields))
			stem   = p.freshBuffer()
		)
		//
		for i, f := range fields {
			names[i] = fmt.Sprintf("%s_%s", stem, f.Name)
			//
			if err := p.materialise(names[i], op.Fields[i]); err != nil {
				return err
			}
		}
		//
		p.bindings[id] = binding{name: stem, fields: names}
		//
		return nil
	}
	//
	name := p.freshBuffer()
	//
	if err := p.materialise(name, op.Literal); err != nil {
		return err
	}
	//
	p.bindings[id] = binding{name: name}
	//
	return nil
}

// Materialise one literal as a declared buffer plus its initialising stores.
func (p *funcLowering) materialise(name string, literal Literal) error {
	if err := p.out.AddLocal(affine.Buffer{Name: name, Shape: literal.Shape}); err != nil {
		return err
	}
	//
	for flat, value := range literal.Data {
		p.emit(affine.Store(
			affine.Ref{Buffer: name, Indices: delinearise(flat, literal.Shape)},
			affine.Const(value),
		))
	}
	//
	return nil
}

// Lower add / mul into a loop nest storing the combined elements.
func (p *funcLowering) lowerElementwise(id ValueID, op *Operation) error {
	var (
		shape = op.Type.Shape()
		name  = p.freshBuffer()
		lhs   = p.bindings[op.Operands[0]].name
		rhs   = p.bindings[op.Operands[1]].name
	)
	//
	if err := p.out.AddLocal(affine.Buffer{Name: name, Shape: shape}); err != nil {
		return err
	}
	//
	p.emitNest(shape, func(indices []affine.Index) affine.Stmt {
		var (
			l = affine.Load(affine.Ref{Buffer: lhs, Indices: indices})
			r = affine.Load(affine.Ref{Buffer: rhs, Indices: indices})
			v = affine.Add(l, r)
		)
		//
		if op.Opcode == OpMul {
			v = affine.Mul(l, r)
		}
		//
		return affine.Store(affine.Ref{Buffer: name, Indices: indices}, v)
	})
	//
	p.bindings[id] = binding{name: name}
	//
	return nil
}

// Lower transpose into a loop nest over the result shape, reading the operand
// at the reversed index.
func (p *funcLowering) lowerTranspose(id ValueID, op *Operation) error {
	var (
		shape = op.Type.Shape()
		name  = p.freshBuffer()
		src   = p.bindings[op.Operands[0]].name
	)
	//
	if err := p.out.AddLocal(affine.Buffer{Name: name, Shape: shape}); err != nil {
		return err
	}
	//
	p.emitNest(shape, func(indices []affine.Index) affine.Stmt {
		reversed := make([]affine.Index, len(indices))
		//
		for i, index := range indices {
			reversed[len(indices)-1-i] = index
		}
		//
		return affine.Store(
			affine.Ref{Buffer: name, Indices: indices},
			affine.Load(affine.Ref{Buffer: src, Indices: reversed}),
		)
	})
	//
	p.bindings[id] = binding{name: name}
	//
	return nil
}

// Lower reshape into a flat element-order copy: row-major layout means the
// reshaped buffer holds exactly the same linear data.
func (p *funcLowering) lowerCopy(id ValueID, op *Operation) error {
	var (
		shape = op.Type.Shape()
		name  = p.freshBuffer()
		src   = p.bindings[op.Operands[0]].name
		ivar  = p.freshIVar()
	)
	//
	buffer := affine.Buffer{Name: name, Shape: shape}
	//
	if err := p.out.AddLocal(buffer); err != nil {
		return err
	}
	//
	p.emit(affine.Loop(ivar, buffer.Count(),
		affine.Store(
			affine.Ref{Buffer: name, Indices: []affine.Index{affine.IVar(ivar)}, Flat: true},
			affine.Load(affine.Ref{Buffer: src, Indices: []affine.Index{affine.IVar(ivar)}, Flat: true}),
		),
	))
	//
	p.bindings[id] = binding{name: name}
	//
	return nil
}

// Lower a cast.  An identity cast aliases its operand; a shape-changing cast
// between types of equal element count degenerates to a flat copy.
func (p *funcLowering) lowerCast(id ValueID, op *Operation) error {
	operand := p.fn.TypeOf(op.Operands[0])
	//
	if operand.Equals(op.Type) {
		p.bindings[id] = p.bindings[op.Operands[0]]
		return nil
	}
	//
	var (
		fromCount, _ = operand.Count()
		toCount, _   = op.Type.Count()
	)
	//
	if fromCount != toCount {
		return ir.NewErrorAt(ir.ShapeMismatch, p.module.SourceFile(), op.Span,
			"cannot cast %s to %s", operand, op.Type)
	}
	//
	return p.lowerCopy(id, op)
}

// Lower a field projection as an alias of the underlying field buffer.
func (p *funcLowering) lowerField(id ValueID, op *Operation) error {
	var (
		operand = p.fn.TypeOf(op.Operands[0])
		inner   = p.bindings[op.Operands[0]]
	)
	//
	for i, f := range operand.Fields() {
		if f.Name == op.Name {
			p.bindings[id] = binding{name: inner.fields[i]}
			return nil
		}
	}
	//
	return ir.NewErrorAt(ir.UndefinedSymbol, p.module.SourceFile(), op.Span,
		"struct %s has no field %s", operand.Name(), op.Name)
}

func (p *funcLowering) lowerReturn(op *Operation) error {
	if len(op.Operands) == 0 {
		p.emit(affine.Return(""))
		return nil
	}
	//
	typ := p.fn.TypeOf(op.Operands[0])
	//
	if !typ.IsTensor() {
		return ir.NewErrorAt(ir.TypeMismatch, p.module.SourceFile(), op.Span,
			"cannot return a struct value")
	}
	//
	p.out.Result = typ.Shape()
	p.emit(affine.Return(p.bindings[op.Operands[0]].name))
	//
	return nil
}

// Emit appends a statement to the function body.
func (p *funcLowering) emit(stmt affine.Stmt) {
	p.out.Body = append(p.out.Body, stmt)
}

// EmitNest emits a perfect loop nest over a given shape, with the innermost
// statement constructed from the loop-variable index vector.  The empty shape
// emits the statement directly.
func (p *funcLowering) emitNest(shape []int, inner func([]affine.Index) affine.Stmt) {
	var (
		ivars   = make([]string, len(shape))
		indices = make([]affine.Index, len(shape))
	)
	//
	for i := range shape {
		ivars[i] = p.freshIVar()
		indices[i] = affine.IVar(ivars[i])
	}
	//
	stmt := inner(indices)
	// Wrap innermost-out.
	for i := len(shape) - 1; i >= 0; i-- {
		stmt = affine.Loop(ivars[i], shape[i], stmt)
	}
	//
	p.emit(stmt)
}

func (p *funcLowering) freshBuffer() string {
	name := fmt.Sprintf("v%d", p.buffers)
	p.buffers++
	//
	return name
}

func (p *funcLowering) freshIVar() string {
	name := fmt.Sprintf("i%d", p.ivars)
	p.ivars++
	//
	return name
}

func (p *funcLowering) errorAt(op *Operation, format string, args ...any) error {
	return ir.NewErrorAt(ir.TypeMismatch, p.module.SourceFile(), op.Span, format, args...)
}

// Delinearise converts a flat row-major element position into literal
// per-dimension indices.
func delinearise(flat int, shape []int) []affine.Index {
	indices := make([]affine.Index, len(shape))
	//
	for i := len(shape) - 1; i >= 0; i-- {
		indices[i] = affine.Lit(flat % shape[i])
		flat /= shape[i]
	}
	//
	return indices
}
