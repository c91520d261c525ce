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
	"gonum.org/v1/gonum/floats"
)

// Canonicalize rewrites this module into a simplified, semantically
// equivalent form.  Local rules (double-transpose elimination, reshape
// folding, identity casts, constant folding, dead-value elimination) are
// applied to a fixed point on each function; every call to a specialization
// is then inlined, after which the now-unreferenced specializations are
// dropped and the local rules are re-run on the survivors.  The whole is
// idempotent: canonicalizing twice produces no further change.
//
// Inlining assumes an acyclic call graph, which holds for any module that
// passed specialization (or Validate).
func (p *Module) Canonicalize() {
	for _, fn := range p.Functions() {
		simplify(fn)
	}
	// Record which functions are called anywhere, before inlining.
	called := p.calledFunctions()
	// Inline every resolvable call.
	for _, fn := range p.Functions() {
		p.funcs.Set(fn.Name(), p.inlineFunction(fn))
	}
	// Drop specializations which have now been inlined at every call site.
	// Parameterless functions are entry points callable by the host, so they
	// survive regardless of internal call sites.
	for name := range called {
		if fn, ok := p.Function(name); ok && fn.NumParams() == 0 {
			continue
		}
		//
		p.RemoveFunction(name)
	}
	//
	for _, fn := range p.Functions() {
		simplify(fn)
		fn.Compact()
	}
}

// Determine the set of function names referenced by some call in this
// module.
func (p *Module) calledFunctions() map[string]bool {
	called := make(map[string]bool)
	//
	for _, fn := range p.Functions() {
		for _, op := range fn.ops {
			if op.Opcode == OpCall {
				called[op.Name] = true
			}
		}
	}
	//
	return called
}

// InlineFunction rebuilds a function with every call to a known function
// replaced by the callee's body, with parameters substituted by the call's
// arguments (via casts to the parameter types).  Nested calls are inlined
// transitively.
func (p *Module) inlineFunction(fn *Function) *Function {
	var (
		out      = NewFunction(fn.name, fn.params...)
		valueMap = make([]ValueID, fn.NumValues())
	)
	//
	for i := 0; i < fn.NumParams(); i++ {
		valueMap[i] = ValueID(i)
	}
	//
	out.SetResult(fn.result)
	p.emitOps(out, fn, valueMap, false)
	//
	return out
}

// EmitOps copies the (live) operations of src into out, remapping operands
// through valueMap and splicing callee bodies in place of calls.  When
// inlined, emission stops at the first return, whose operand (if any) is the
// result; otherwise returns are copied through.
func (p *Module) emitOps(out *Function, src *Function, valueMap []ValueID, inlined bool) ValueID {
	for i := 0; i < src.NumOps(); i++ {
		var (
			op = src.ops[i]
			id = src.ValueOf(i)
		)
		//
		switch op.Opcode {
		case OpNop:
			continue
		case OpReturn:
			if inlined {
				if len(op.Operands) == 1 {
					return valueMap[op.Operands[0]]
				}
				//
				return NoValue
			}
		case OpCall:
			if callee, ok := p.Function(op.Name); ok {
				valueMap[id] = p.inlineCall(out, callee, &op, valueMap)
				continue
			}
		}
		// Default: copy through with remapped operands.
		operands := make([]ValueID, len(op.Operands))
		for j, operand := range op.Operands {
			operands[j] = valueMap[operand]
		}
		//
		op.Operands = operands
		valueMap[id] = out.Append(op)
	}
	//
	return NoValue
}

// InlineCall splices the body of callee into out.  Arguments flow into the
// body through casts to the callee's parameter types, which reconcile the
// generic boundary; identity casts are then removed by simplification.
func (p *Module) inlineCall(out *Function, callee *Function, call *Operation, valueMap []ValueID) ValueID {
	log.Debugf("inlining call to %s into %s", callee.Name(), out.Name())
	//
	args := make([]ValueID, callee.NumParams())
	//
	for j, operand := range call.Operands {
		args[j] = out.Append(Operation{
			Opcode:   OpCast,
			Operands: []ValueID{valueMap[operand]},
			Type:     callee.params[j],
			Span:     call.Span,
		})
	}
	//
	inner := make([]ValueID, callee.NumValues())
	copy(inner, args)
	//
	return p.emitOps(out, callee, inner, true)
}

// Simplify applies the local rewrite rules to a fixed point on a given
// function.  The worklist is driven by change: whenever an operation is
// rewritten, its operands and consumers become candidates again.
// Termination is guaranteed as every rule either strictly reduces live
// operation count or is a no-op check.
func simplify(fn *Function) {
	var worklist []ValueID
	//
	for i := 0; i < fn.NumOps(); i++ {
		worklist = append(worklist, fn.ValueOf(i))
	}
	//
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		//
		if changed := simplifyOp(fn, id); changed {
			// Operands may have become dead, and consumers may now match a
			// rule.
			op := fn.Op(id)
			worklist = append(worklist, op.Operands...)
			worklist = append(worklist, consumersOf(fn, id)...)
		}
	}
	// Sweep any remaining dead values.
	sweep(fn)
}

// Apply one rule (at most) at a given value, reporting whether anything
// changed.
func simplifyOp(fn *Function, id ValueID) bool {
	op := fn.Op(id)
	//
	switch op.Opcode {
	case OpNop:
		return false
	case OpTranspose:
		return simplifyTranspose(fn, id, op)
	case OpReshape:
		return simplifyReshape(fn, id, op)
	case OpCast:
		// cast(x) --> x whenever the cast is an identity.
		if fn.TypeOf(op.Operands[0]).Equals(op.Type) {
			fn.ReplaceUses(id, op.Operands[0])
			return true
		}
	case OpAdd, OpMul:
		return simplifyElementwise(fn, id, op)
	case OpField:
		// field(struct_constant) --> constant of that field.
		if inner, ok := definingOp(fn, op.Operands[0]); ok && inner.Opcode == OpConstant && len(inner.Fields) > 0 {
			for i, f := range inner.Type.Fields() {
				if f.Name == op.Name {
					literal := inner.Fields[i]
					replaceWithConstant(fn, id, literal)
					//
					return true
				}
			}
		}
	}
	// Dead-value elimination: pure operations with no remaining consumers
	// have no observable effect.
	if op.Opcode.Pure() && op.Opcode.HasResult() && fn.Uses(id) == 0 {
		fn.Kill(id)
		return true
	}
	//
	return false
}

func simplifyTranspose(fn *Function, id ValueID, op *Operation) bool {
	inner, ok := definingOp(fn, op.Operands[0])
	if !ok {
		return false
	}
	//
	switch {
	case inner.Opcode == OpTranspose:
		// transpose(transpose(x)) --> x
		fn.ReplaceUses(id, inner.Operands[0])
		return true
	case inner.Opcode == OpConstant && len(inner.Fields) == 0:
		replaceWithConstant(fn, id, transposeLiteral(inner.Literal))
		return true
	}
	//
	return false
}

func simplifyReshape(fn *Function, id ValueID, op *Operation) bool {
	// reshape(x, s) --> x when x already has shape s.
	if fn.TypeOf(op.Operands[0]).Equals(op.Type) {
		fn.ReplaceUses(id, op.Operands[0])
		return true
	}
	//
	inner, ok := definingOp(fn, op.Operands[0])
	if !ok {
		return false
	}
	//
	switch {
	case inner.Opcode == OpReshape:
		// reshape(reshape(x, s1), s2) --> reshape(x, s2)
		setOperand(fn, op, 0, inner.Operands[0])
		return true
	case inner.Opcode == OpConstant && len(inner.Fields) == 0:
		replaceWithConstant(fn, id, Literal{op.Type.Shape(), inner.Literal.Data})
		return true
	}
	//
	return false
}

func simplifyElementwise(fn *Function, id ValueID, op *Operation) bool {
	var (
		lhs, lok = definingOp(fn, op.Operands[0])
		rhs, rok = definingOp(fn, op.Operands[1])
	)
	// Fold only when both operands are (tensor) constants.
	if !lok || !rok || lhs.Opcode != OpConstant || rhs.Opcode != OpConstant {
		return false
	} else if len(lhs.Fields) > 0 || len(rhs.Fields) > 0 {
		return false
	}
	//
	data := make([]float64, len(lhs.Literal.Data))
	copy(data, lhs.Literal.Data)
	//
	if op.Opcode == OpAdd {
		floats.Add(data, rhs.Literal.Data)
	} else {
		floats.Mul(data, rhs.Literal.Data)
	}
	//
	replaceWithConstant(fn, id, Literal{lhs.Literal.Shape, data})
	//
	return true
}

// Rewrite the operation defining a given value, in place, into a constant
// with the given literal payload.  The handle stays stable, so consumers are
// untouched.
func replaceWithConstant(fn *Function, id ValueID, literal Literal) {
	var (
		op   = fn.Op(id)
		span = op.Span
		typ  = op.Type
	)
	//
	for _, operand := range op.Operands {
		fn.uses[operand]--
	}
	//
	*op = Operation{Opcode: OpConstant, Type: typ, Literal: literal, Span: span}
}

// Retarget the j'th operand of an operation, maintaining use counts.
func setOperand(fn *Function, op *Operation, j int, next ValueID) {
	fn.uses[op.Operands[j]]--
	fn.uses[next]++
	op.Operands[j] = next
}

// DefiningOp returns the operation defining a given value, unless the value
// is a parameter.
func definingOp(fn *Function, id ValueID) (*Operation, bool) {
	if fn.IsParam(id) {
		return nil, false
	}
	//
	return fn.Op(id), true
}

// ConsumersOf determines the values whose defining operations reference a
// given value.
func consumersOf(fn *Function, id ValueID) []ValueID {
	var consumers []ValueID
	//
	for i := range fn.ops {
		for _, operand := range fn.ops[i].Operands {
			if operand == id {
				consumers = append(consumers, fn.ValueOf(i))
				break
			}
		}
	}
	//
	return consumers
}

// Sweep repeatedly eliminates dead pure values until none remain.
func sweep(fn *Function) {
	for changed := true; changed; {
		changed = false
		//
		for i := 0; i < fn.NumOps(); i++ {
			var (
				id = fn.ValueOf(i)
				op = fn.Op(id)
			)
			//
			if op.Opcode != OpNop && op.Opcode.Pure() && op.Opcode.HasResult() && fn.Uses(id) == 0 {
				fn.Kill(id)
				//
				changed = true
			}
		}
	}
}

// TransposeLiteral materialises the transpose of a literal: element
// [i1,...,in] of the result is element [in,...,i1] of the operand.
func transposeLiteral(lit Literal) Literal {
	var (
		rank  = len(lit.Shape)
		shape = make([]int, rank)
		data  = make([]float64, len(lit.Data))
		index = make([]int, rank)
	)
	//
	for i, d := range lit.Shape {
		shape[rank-1-i] = d
	}
	// Walk the result in row-major order, reading the operand at the
	// reversed index.
	for flat := 0; flat < len(data); flat++ {
		src := 0
		for i := 0; i < rank; i++ {
			src = src*lit.Shape[i] + index[rank-1-i]
		}
		//
		data[flat] = lit.Data[src]
		// Advance the (result) index vector.
		for i := rank - 1; i >= 0; i-- {
			index[i]++
			if index[i] < shape[i] {
				break
			}
			//
			index[i] = 0
		}
	}
	//
	return Literal{shape, data}
}
