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
	"github.com/tessel-lang/go-tessel/pkg/ast"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

// Build translates a parsed module into its tensor-level representation.
// Functions with parameters become generic templates whose parameter types
// are unranked; shape inference subsequently resolves them per call site.
// Types are not assigned here beyond what literals pin down — that is the
// inference engine's job.
func Build(module *ast.Module) (*Module, error) {
	builder := &builder{NewModule(), module.File}
	//
	return builder.build(module)
}

// Builder holds the (single) piece of state threaded through translation.
type builder struct {
	module  *Module
	srcfile *source.File
}

func (p *builder) build(module *ast.Module) (*Module, error) {
	p.module.SetSourceFile(p.srcfile)
	// Register struct declarations.
	for _, decl := range module.Structs {
		if err := p.module.AddStruct(StructDecl{decl.Name, decl.Fields}); err != nil {
			return nil, p.errorAt(ir.TypeMismatch, decl, "%s", err.Error())
		}
	}
	// Translate function declarations.
	for _, decl := range module.Funcs {
		fn, err := p.buildFunction(decl)
		if err != nil {
			return nil, err
		}
		//
		if err := p.module.AddFunction(fn); err != nil {
			return nil, p.errorAt(ir.TypeMismatch, decl, "%s", err.Error())
		}
	}
	//
	return p.module, nil
}

func (p *builder) buildFunction(decl *ast.FuncDecl) (*Function, error) {
	var (
		params = make([]ir.Type, len(decl.Params))
		scope  = make(map[string]ValueID)
	)
	// Parameters carry no shapes in source, hence are unranked until
	// specialization binds them.
	for i, param := range decl.Params {
		params[i] = ir.UnrankedTensor()
		//
		if _, ok := scope[param.Name]; ok {
			return nil, p.errorAt(ir.TypeMismatch, param, "duplicate parameter %s", param.Name)
		}
		//
		scope[param.Name] = ValueID(i)
	}
	//
	fn := NewFunction(decl.Name, params...)
	//
	for _, stmt := range decl.Body {
		if err := p.buildStmt(fn, scope, stmt); err != nil {
			return nil, err
		}
	}
	// Append an implicit bare return when control falls off the end.
	if n := fn.NumOps(); n == 0 || fn.ops[n-1].Opcode != OpReturn {
		fn.Append(Operation{Opcode: OpReturn, Type: ir.None(), Span: decl.Span()})
	}
	//
	return fn, nil
}

func (p *builder) buildStmt(fn *Function, scope map[string]ValueID, stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarStmt:
		value, err := p.buildExpr(fn, scope, s.Init)
		if err != nil {
			return err
		}
		// An explicit shape annotation reshapes the initializer.  Observe the
		// element-count check belongs to inference, which is the first stage
		// that knows the initializer's shape in all cases.
		if s.Shape != nil {
			value = fn.Append(Operation{
				Opcode:   OpReshape,
				Operands: []ValueID{value},
				Type:     ir.UnrankedTensor(),
				Shape:    s.Shape,
				Span:     s.Span(),
			})
		}
		//
		scope[s.Name] = value
		//
		return nil
	case *ast.ReturnStmt:
		var operands []ValueID
		//
		if s.Value != nil {
			value, err := p.buildExpr(fn, scope, s.Value)
			if err != nil {
				return err
			}
			//
			operands = []ValueID{value}
		}
		//
		fn.Append(Operation{Opcode: OpReturn, Operands: operands, Type: ir.None(), Span: s.Span()})
		//
		return nil
	case *ast.ExprStmt:
		_, err := p.buildExpr(fn, scope, s.Expr)
		return err
	default:
		panic("unreachable")
	}
}

func (p *builder) buildExpr(fn *Function, scope map[string]ValueID, expr ast.Expr) (ValueID, error) {
	switch e := expr.(type) {
	case *ast.NumberLit:
		// A bare number is a rank-0 tensor.
		literal := Literal{[]int{}, []float64{e.Value}}
		//
		return fn.Append(Operation{
			Opcode:  OpConstant,
			Type:    ir.Tensor(),
			Literal: literal,
			Span:    e.Span(),
		}), nil
	case *ast.TensorLit:
		literal, err := p.flatten(e)
		if err != nil {
			return NoValue, err
		}
		//
		return fn.Append(Operation{
			Opcode:  OpConstant,
			Type:    ir.Tensor(literal.Shape...),
			Literal: literal,
			Span:    e.Span(),
		}), nil
	case *ast.Ident:
		value, ok := scope[e.Name]
		if !ok {
			return NoValue, p.errorAt(ir.UndefinedSymbol, e, "unknown variable %s", e.Name)
		}
		//
		return value, nil
	case *ast.BinaryExpr:
		lhs, err := p.buildExpr(fn, scope, e.Lhs)
		if err != nil {
			return NoValue, err
		}
		//
		rhs, err := p.buildExpr(fn, scope, e.Rhs)
		if err != nil {
			return NoValue, err
		}
		//
		opcode := OpAdd
		if e.Op == '*' {
			opcode = OpMul
		}
		//
		return fn.Append(Operation{
			Opcode:   opcode,
			Operands: []ValueID{lhs, rhs},
			Type:     ir.UnrankedTensor(),
			Span:     e.Span(),
		}), nil
	case *ast.CallExpr:
		return p.buildCall(fn, scope, e)
	case *ast.StructLit:
		return p.buildStructLit(fn, e)
	case *ast.FieldExpr:
		obj, err := p.buildExpr(fn, scope, e.Obj)
		if err != nil {
			return NoValue, err
		}
		//
		return fn.Append(Operation{
			Opcode:   OpField,
			Operands: []ValueID{obj},
			Type:     ir.UnrankedTensor(),
			Name:     e.Field,
			Span:     e.Span(),
		}), nil
	default:
		panic("unreachable")
	}
}

func (p *builder) buildCall(fn *Function, scope map[string]ValueID, e *ast.CallExpr) (ValueID, error) {
	args := make([]ValueID, len(e.Args))
	//
	for i, arg := range e.Args {
		value, err := p.buildExpr(fn, scope, arg)
		if err != nil {
			return NoValue, err
		}
		//
		args[i] = value
	}
	// The builtins take exactly one argument each.
	switch e.Callee {
	case "transpose", "print":
		if len(args) != 1 {
			return NoValue, p.errorAt(ir.TypeMismatch, e, "%s expects one argument", e.Callee)
		}
	}
	//
	switch e.Callee {
	case "transpose":
		return fn.Append(Operation{
			Opcode:   OpTranspose,
			Operands: args,
			Type:     ir.UnrankedTensor(),
			Span:     e.Span(),
		}), nil
	case "print":
		return fn.Append(Operation{
			Opcode:   OpPrint,
			Operands: args,
			Type:     ir.None(),
			Span:     e.Span(),
		}), nil
	default:
		return fn.Append(Operation{
			Opcode:   OpCall,
			Operands: args,
			Type:     ir.UnrankedTensor(),
			Name:     e.Callee,
			Span:     e.Span(),
		}), nil
	}
}

func (p *builder) buildStructLit(fn *Function, e *ast.StructLit) (ValueID, error) {
	decl, ok := p.module.Struct(e.Name)
	if !ok {
		return NoValue, p.errorAt(ir.UndefinedSymbol, e, "unknown struct %s", e.Name)
	}
	//
	if len(e.Fields) != len(decl.Fields) {
		return NoValue, p.errorAt(ir.TypeMismatch, e,
			"struct %s expects %d fields, found %d", e.Name, len(decl.Fields), len(e.Fields))
	}
	//
	var (
		literals = make([]Literal, len(e.Fields))
		fields   = make([]ir.Field, len(e.Fields))
	)
	// Struct field initializers must be constant.
	for i, init := range e.Fields {
		switch lit := init.(type) {
		case *ast.NumberLit:
			literals[i] = Literal{[]int{}, []float64{lit.Value}}
		case *ast.TensorLit:
			literal, err := p.flatten(lit)
			if err != nil {
				return NoValue, err
			}
			//
			literals[i] = literal
		default:
			return NoValue, p.errorAt(ir.TypeMismatch, init, "struct field initializer must be a literal")
		}
		//
		fields[i] = ir.Field{Name: decl.Fields[i], Type: ir.Tensor(literals[i].Shape...)}
	}
	//
	return fn.Append(Operation{
		Opcode: OpConstant,
		Type:   ir.Struct(e.Name, fields),
		Fields: literals,
		Name:   e.Name,
		Span:   e.Span(),
	}), nil
}

// Flatten a (possibly nested) tensor literal into a flat row-major literal,
// checking that it is rectangular along the way.
func (p *builder) flatten(e *ast.TensorLit) (Literal, error) {
	var (
		data  []float64
		shape = []int{len(e.Elems)}
	)
	//
	for i, elem := range e.Elems {
		switch elem := elem.(type) {
		case *ast.NumberLit:
			if i == 0 {
				shape = []int{len(e.Elems)}
			} else if len(shape) != 1 {
				return Literal{}, p.errorAt(ir.ShapeMismatch, e, "ragged tensor literal")
			}
			//
			data = append(data, elem.Value)
		case *ast.TensorLit:
			nested, err := p.flatten(elem)
			if err != nil {
				return Literal{}, err
			}
			//
			if i == 0 {
				shape = append([]int{len(e.Elems)}, nested.Shape...)
			} else if !sameDims(shape[1:], nested.Shape) {
				return Literal{}, p.errorAt(ir.ShapeMismatch, e, "ragged tensor literal")
			}
			//
			data = append(data, nested.Data...)
		default:
			return Literal{}, p.errorAt(ir.TypeMismatch, elem, "tensor literal element must be a literal")
		}
	}
	//
	if data == nil {
		data = []float64{}
	}
	//
	return Literal{shape, data}, nil
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

// Construct a compilation error attributed to a given syntax node.
func (p *builder) errorAt(kind ir.ErrorKind, node interface{ Span() source.Span }, format string, args ...any) error {
	return ir.NewErrorAt(kind, p.srcfile, node.Span(), format, args...)
}
