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
	"github.com/tessel-lang/go-tessel/pkg/ir"
)

// Validate checks the structural invariants which later stages (the
// canonicalizer in particular) rely upon but do not themselves re-check:
// every function ends with a return, every call references an existing
// function with matching arity, and the call graph is acyclic.  Modules
// produced by Build and Specialize satisfy these by construction; modules
// injected via Parse must be validated before further processing.
func (p *Module) Validate() error {
	for _, fn := range p.Functions() {
		if err := p.validateFunction(fn); err != nil {
			return err
		}
	}
	//
	return p.validateAcyclic()
}

func (p *Module) validateFunction(fn *Function) error {
	terminated := false
	//
	for i := range fn.ops {
		op := &fn.ops[i]
		//
		switch op.Opcode {
		case OpNop:
			continue
		case OpReturn:
			terminated = i == fn.NumOps()-1
		case OpCall:
			callee, ok := p.Function(op.Name)
			if !ok {
				return ir.NewErrorAt(ir.UndefinedSymbol, p.srcfile, op.Span,
					"%s calls unknown function %s", fn.Name(), op.Name)
			}
			//
			if callee.NumParams() != len(op.Operands) {
				return ir.NewErrorAt(ir.TypeMismatch, p.srcfile, op.Span,
					"%s expects %d arguments, found %d", op.Name, callee.NumParams(), len(op.Operands))
			}
		}
	}
	//
	if !terminated {
		return ir.NewError(ir.TypeMismatch, "%s does not end with a return", fn.Name())
	}
	//
	return nil
}

// Check the call graph has no cycles, by depth-first traversal with an
// in-progress marker.
func (p *Module) validateAcyclic() error {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	//
	colours := make(map[string]int)
	//
	var visit func(fn *Function) error
	//
	visit = func(fn *Function) error {
		colours[fn.Name()] = grey
		//
		for i := range fn.ops {
			op := &fn.ops[i]
			//
			if op.Opcode != OpCall {
				continue
			}
			//
			callee, _ := p.Function(op.Name)
			//
			switch colours[callee.Name()] {
			case grey:
				return ir.NewErrorAt(ir.RecursiveSpecialization, p.srcfile, op.Span,
					"%s participates in a call cycle via %s", fn.Name(), callee.Name())
			case white:
				if err := visit(callee); err != nil {
					return err
				}
			}
		}
		//
		colours[fn.Name()] = black
		//
		return nil
	}
	//
	for _, fn := range p.Functions() {
		if colours[fn.Name()] == white {
			if err := visit(fn); err != nil {
				return err
			}
		}
	}
	//
	return nil
}
