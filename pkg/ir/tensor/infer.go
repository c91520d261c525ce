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
	log "github.com/sirupsen/logrus"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Specialize resolves every shape in a module.  Inference is seeded from the
// module's entry functions (those without parameters); each call to a generic
// function with a tuple of concrete argument types looks up or creates a
// specialization, whose cloned body is then resolved by a single forward
// propagation pass.  The result is a new module in which every function is
// fully ranked and every call site references a concretely-shaped
// specialization; the original generic templates are left behind.
//
// Specializations are memoized by signature, so each distinct signature is
// solved exactly once.  A signature encountered whilst still being solved is
// a RecursiveSpecialization error, since no operation can produce a shape
// from nothing.
func Specialize(module *Module) (*Module, error) {
	specializer := &specializer{
		module: module,
		result: NewModule(),
		cache:  orderedmap.New[string, *Function](),
	}
	//
	return specializer.specializeModule()
}

// Specializer captures the state shared across one module resolution: the
// template module being read, the concrete module being built, and the
// specialization cache.  The cache is scoped to this one compilation and maps
// signature keys to resolved functions, with a nil entry marking a signature
// whose resolution is in progress.
type specializer struct {
	module *Module
	result *Module
	cache  *orderedmap.OrderedMap[string, *Function]
}

func (p *specializer) specializeModule() (*Module, error) {
	p.result.SetSourceFile(p.module.SourceFile())
	//
	for _, s := range p.module.Structs() {
		if err := p.result.AddStruct(s); err != nil {
			return nil, err
		}
	}
	// Seed inference from the entry functions.
	for _, fn := range p.module.Functions() {
		if fn.NumParams() != 0 {
			continue
		}
		//
		if _, err := p.specialize(fn.Signature(), source.Span{}); err != nil {
			return nil, err
		}
	}
	//
	return p.result, nil
}

// Specialize looks up (or creates) the specialization of a given signature.
// The at span identifies the responsible call site, for diagnostics.
func (p *specializer) specialize(sig ir.Signature, at source.Span) (*Function, error) {
	key := sig.Key()
	// Check the cache first, such that each signature is solved once.
	if fn, ok := p.cache.Get(key); ok {
		if fn == nil {
			return nil, p.errorAt(ir.RecursiveSpecialization, at,
				"%s depends on its own unresolved signature", key)
		}
		//
		return fn, nil
	}
	//
	template, ok := p.module.Function(sig.Name)
	if !ok {
		return nil, p.errorAt(ir.UndefinedSymbol, at, "call to unknown function %s", sig.Name)
	}
	//
	if template.NumParams() != len(sig.Params) {
		return nil, p.errorAt(ir.TypeMismatch, at, "%s expects %d arguments, found %d",
			sig.Name, template.NumParams(), len(sig.Params))
	}
	// Mark this signature as in progress.
	p.cache.Set(key, nil)
	//
	log.Debugf("specializing %s", key)
	// Clone the template and bind its parameters to the concrete argument
	// types of the call.
	fn := template.Clone()
	fn.Rename(sig.Mangle())
	fn.BindParams(sig.Params)
	// Resolve the cloned body.
	if err := p.propagate(fn); err != nil {
		return nil, err
	}
	//
	p.cache.Set(key, fn)
	//
	if err := p.result.AddFunction(fn); err != nil {
		return nil, err
	}
	//
	return fn, nil
}

// Propagate shape information through a function body in program order.  A
// single pass suffices because the body is in single-assignment form and is
// strictly forward-referencing.
func (p *specializer) propagate(fn *Function) error {
	fn.SetResult(ir.None())
	//
	for i := 0; i < fn.NumOps(); i++ {
		var (
			op  = &fn.ops[i]
			err error
		)
		//
		switch op.Opcode {
		case OpConstant:
			// Literals pin their own types down, including struct constants,
			// whose field types were resolved by the builder.
		case OpAdd, OpMul:
			err = p.propagateElementwise(fn, op)
		case OpTranspose:
			err = p.propagateTranspose(fn, op)
		case OpReshape:
			err = p.propagateReshape(fn, op)
		case OpField:
			err = p.propagateField(fn, op)
		case OpCall:
			err = p.propagateCall(fn, op)
		case OpCast:
			// A cast keeps its declared type where concrete, and otherwise
			// adopts its operand's type.
			if !op.Type.IsConcrete() {
				op.Type = fn.TypeOf(op.Operands[0])
			}
		case OpPrint:
			if !fn.TypeOf(op.Operands[0]).IsTensor() {
				err = p.errorAt(ir.TypeMismatch, op.Span, "print expects a tensor")
			}
		case OpReturn:
			if len(op.Operands) == 1 {
				fn.SetResult(fn.TypeOf(op.Operands[0]))
			}
		default:
			panic("unreachable")
		}
		//
		if err != nil {
			return err
		}
	}
	// Everything must now be ranked; anything else escaped resolution.
	for i := range fn.ops {
		op := &fn.ops[i]
		//
		if op.Opcode.HasResult() && !op.Type.IsConcrete() {
			return p.errorAt(ir.UnresolvedShape, op.Span,
				"shape of %s could not be inferred in %s", op.Opcode, fn.Name())
		}
	}
	//
	return nil
}

func (p *specializer) propagateElementwise(fn *Function, op *Operation) error {
	var (
		lhs = fn.TypeOf(op.Operands[0])
		rhs = fn.TypeOf(op.Operands[1])
	)
	//
	if !lhs.IsTensor() || !rhs.IsTensor() {
		return p.errorAt(ir.TypeMismatch, op.Span, "%s expects tensor operands", op.Opcode)
	}
	// Operand shapes must match exactly; there is no broadcasting.
	if !lhs.Equals(rhs) {
		return p.errorAt(ir.ShapeMismatch, op.Span,
			"%s operands have mismatched shapes %s and %s", op.Opcode, lhs, rhs)
	}
	//
	op.Type = lhs
	//
	return nil
}

func (p *specializer) propagateTranspose(fn *Function, op *Operation) error {
	operand := fn.TypeOf(op.Operands[0])
	//
	if !operand.IsTensor() {
		return p.errorAt(ir.TypeMismatch, op.Span, "transpose expects a tensor operand")
	}
	// Result shape is the reverse of the operand's dimension sequence.
	var (
		shape    = operand.Shape()
		reversed = make([]int, len(shape))
	)
	//
	for i, d := range shape {
		reversed[len(shape)-1-i] = d
	}
	//
	op.Type = ir.Tensor(reversed...)
	//
	return nil
}

func (p *specializer) propagateReshape(fn *Function, op *Operation) error {
	operand := fn.TypeOf(op.Operands[0])
	//
	if !operand.IsTensor() {
		return p.errorAt(ir.TypeMismatch, op.Span, "reshape expects a tensor operand")
	}
	//
	var (
		target       = ir.Tensor(op.Shape...)
		fromCount, _ = operand.Count()
		toCount, ok  = target.Count()
	)
	//
	if !ok {
		return p.errorAt(ir.ElementCountOverflow, op.Span, "reshape target shape overflows")
	}
	// Total element count must be preserved.
	if fromCount != toCount {
		return p.errorAt(ir.ReshapeSizeMismatch, op.Span,
			"cannot reshape %d elements into %s", fromCount, target)
	}
	//
	op.Type = target
	//
	return nil
}

func (p *specializer) propagateField(fn *Function, op *Operation) error {
	operand := fn.TypeOf(op.Operands[0])
	//
	if operand.Kind() != ir.KindStruct {
		return p.errorAt(ir.TypeMismatch, op.Span, "field access on non-struct value")
	}
	//
	fieldType, ok := operand.FieldType(op.Name)
	if !ok {
		return p.errorAt(ir.UndefinedSymbol, op.Span,
			"struct %s has no field %s", operand.Name(), op.Name)
	}
	//
	op.Type = fieldType
	//
	return nil
}

func (p *specializer) propagateCall(fn *Function, op *Operation) error {
	args := make([]ir.Type, len(op.Operands))
	//
	for i, operand := range op.Operands {
		args[i] = fn.TypeOf(operand)
		//
		if !args[i].IsConcrete() {
			return p.errorAt(ir.UnresolvedShape, op.Span,
				"argument %d of call to %s has unresolved shape", i, op.Name)
		}
	}
	// Recursively specialize the callee for this argument tuple.
	callee, err := p.specialize(ir.NewSignature(op.Name, args...), op.Span)
	if err != nil {
		return err
	}
	// Retarget the call at the concrete specialization.
	op.Name = callee.Name()
	op.Type = callee.Result()
	//
	return nil
}

// Construct a compilation error attributed to a given source span.
func (p *specializer) errorAt(kind ir.ErrorKind, span source.Span, format string, args ...any) error {
	return ir.NewErrorAt(kind, p.module.SourceFile(), span, format, args...)
}
