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
package affine

import (
	"github.com/pkg/errors"
)

// Validate checks the structural invariants which lowering to the scalar
// level relies upon: every reference names a declared buffer with the correct
// index arity, every loop variable is in scope where used, literal indices
// stay within bounds, and any returned buffer matches the declared result
// shape.  Programs produced by lowering satisfy these by construction;
// programs injected via Parse must be validated first.
func (p *Program) Validate() error {
	for _, fn := range p.Funcs {
		if err := fn.validate(); err != nil {
			return errors.Wrapf(err, "in %s", fn.Name)
		}
	}
	//
	return nil
}

func (p *Function) validate() error {
	return p.validateBody(p.Body, map[string]bool{})
}

func (p *Function) validateBody(body []Stmt, scope map[string]bool) error {
	for _, stmt := range body {
		switch stmt.Kind {
		case StmtLoop:
			if scope[stmt.IVar] {
				return errors.Errorf("loop variable %s shadows an enclosing loop", stmt.IVar)
			} else if stmt.Bound < 0 {
				return errors.Errorf("loop over %s has negative bound", stmt.IVar)
			}
			//
			scope[stmt.IVar] = true
			//
			if err := p.validateBody(stmt.Body, scope); err != nil {
				return err
			}
			//
			delete(scope, stmt.IVar)
		case StmtStore:
			if err := p.validateRef(stmt.Dst, scope); err != nil {
				return err
			}
			//
			if err := p.validateExpr(stmt.Src, scope); err != nil {
				return err
			}
		case StmtPrint:
			if _, ok := p.Buffer(stmt.Target); !ok {
				return errors.Errorf("print of undeclared buffer %s", stmt.Target)
			}
		case StmtReturn:
			if err := p.validateReturn(stmt); err != nil {
				return err
			}
		}
	}
	//
	return nil
}

func (p *Function) validateReturn(stmt Stmt) error {
	if stmt.Target == "" {
		if p.Result != nil {
			return errors.Errorf("bare return in function with result shape")
		}
		//
		return nil
	}
	//
	buffer, ok := p.Buffer(stmt.Target)
	if !ok {
		return errors.Errorf("return of undeclared buffer %s", stmt.Target)
	}
	//
	if p.Result == nil {
		return errors.Errorf("return of %s in function without result shape", stmt.Target)
	}
	//
	if !sameDims(buffer.Shape, p.Result) {
		return errors.Errorf("return of %s does not match result shape", stmt.Target)
	}
	//
	return nil
}

func (p *Function) validateExpr(expr Expr, scope map[string]bool) error {
	switch expr.Kind {
	case ExprLoad:
		return p.validateRef(expr.Ref, scope)
	case ExprAdd, ExprMul:
		if err := p.validateExpr(*expr.Lhs, scope); err != nil {
			return err
		}
		//
		return p.validateExpr(*expr.Rhs, scope)
	default:
		return nil
	}
}

func (p *Function) validateRef(ref Ref, scope map[string]bool) error {
	buffer, ok := p.Buffer(ref.Buffer)
	if !ok {
		return errors.Errorf("reference to undeclared buffer %s", ref.Buffer)
	}
	// Flat references carry exactly one index over the linearised buffer;
	// shaped references carry one index per dimension.
	if ref.Flat {
		if len(ref.Indices) != 1 {
			return errors.Errorf("flat reference to %s requires exactly one index", ref.Buffer)
		}
		//
		return p.validateIndex(ref.Indices[0], buffer.Count(), scope)
	}
	//
	if len(ref.Indices) != len(buffer.Shape) {
		return errors.Errorf("reference to %s has %d indices for rank %d",
			ref.Buffer, len(ref.Indices), len(buffer.Shape))
	}
	//
	for i, index := range ref.Indices {
		if err := p.validateIndex(index, buffer.Shape[i], scope); err != nil {
			return err
		}
	}
	//
	return nil
}

func (p *Function) validateIndex(index Index, bound int, scope map[string]bool) error {
	if index.IVar != "" {
		if !scope[index.IVar] {
			return errors.Errorf("loop variable %s used outside its loop", index.IVar)
		}
		//
		return nil
	}
	//
	if index.Lit < 0 || index.Lit >= bound {
		return errors.Errorf("literal index %d out of bounds %d", index.Lit, bound)
	}
	//
	return nil
}

// Check whether two dimension sequences are identical.
func sameDims(lhs []int, rhs []int) bool {
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
