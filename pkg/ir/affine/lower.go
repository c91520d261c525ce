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
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
)

// Bytes per buffer element.
const elementBytes = 8

// LowerToLow lowers a program down to flat register code.  This is a
// convenience wrapper around LowLowering.
func LowerToLow(program *Program) (*low.Program, error) {
	lowering := NewLowLowering(program)
	//
	return lowering.Lower()
}

// LowLowering turns loop nests into explicit branches between basic blocks,
// buffers into heap allocations addressed in bytes, and element references
// into integer address arithmetic.  Every local buffer is allocated up front
// in the entry block, and released on every exit path except for the buffer
// (if any) a return designates as the function's result.  Parameter buffers
// are owned by the caller and never released.
type LowLowering struct {
	program *Program
}

// NewLowLowering constructs a lowering for a given program.
func NewLowLowering(program *Program) LowLowering {
	return LowLowering{program}
}

// Lower lowers the program, producing a fresh one.
func (p LowLowering) Lower() (*low.Program, error) {
	program := &low.Program{}
	//
	for _, fn := range p.program.Funcs {
		log.Debugf("lowering %s to register form", fn.Name)
		//
		lowered, err := lowerFunction(fn)
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

// BlockLowering carries the state of lowering one function: the base-address
// register of every buffer, the counter register of every live loop, and the
// block currently being appended to.
type blockLowering struct {
	fn    *Function
	out   *low.Function
	block *low.Block
	// Base-address register per buffer name.
	bases map[string]low.Reg
	// Counter register per loop variable.
	counters map[string]low.Reg
	// Local buffers in allocation order, for release on exit.
	locals []string
	labels int
}

func lowerFunction(fn *Function) (*low.Function, error) {
	lowering := &blockLowering{
		fn:       fn,
		out:      &low.Function{Name: fn.Name, NumParams: len(fn.Params)},
		bases:    make(map[string]low.Reg),
		counters: make(map[string]low.Reg),
	}
	//
	for _, b := range fn.Params {
		lowering.bases[b.Name] = lowering.out.NewReg()
	}
	//
	lowering.block = lowering.out.NewBlock("entry")
	// Allocate every local up front.
	for _, b := range fn.Locals {
		bytes, ok := bufferBytes(b.Shape)
		if !ok {
			return nil, ir.NewError(ir.ElementCountOverflow,
				"buffer %s of %s exceeds the addressable size", b.Name, fn.Name)
		}
		//
		reg := lowering.out.NewReg()
		lowering.emit(low.Instr{Kind: low.InstrAlloc, Dst: reg, IImm: bytes})
		lowering.bases[b.Name] = reg
		lowering.locals = append(lowering.locals, b.Name)
	}
	//
	if err := lowering.lowerBody(fn.Body); err != nil {
		return nil, err
	}
	// Fall off the end: release everything and leave.
	if !lowering.block.Terminated() {
		lowering.lowerExit("")
	}
	//
	return lowering.out, nil
}

func (p *blockLowering) lowerBody(body []Stmt) error {
	for _, stmt := range body {
		var err error
		//
		switch stmt.Kind {
		case StmtLoop:
			err = p.lowerLoop(stmt)
		case StmtStore:
			err = p.lowerStore(stmt)
		case StmtPrint:
			buffer, _ := p.fn.Buffer(stmt.Target)
			p.emit(low.Instr{Kind: low.InstrPrint, A: p.bases[stmt.Target], Shape: buffer.Shape})
		case StmtReturn:
			p.lowerExit(stmt.Target)
		}
		//
		if err != nil {
			return err
		}
	}
	//
	return nil
}

// Lower a loop into the standard head / body / exit block triangle, with the
// counter register updated in place on the back edge.
func (p *blockLowering) lowerLoop(stmt Stmt) error {
	var (
		n       = p.labels
		head    = fmt.Sprintf("head%d", n)
		body    = fmt.Sprintf("body%d", n)
		exit    = fmt.Sprintf("exit%d", n)
		counter = p.out.NewReg()
	)
	//
	p.labels++
	// Initialise the counter and enter the head.
	p.emit(low.Instr{Kind: low.InstrIConst, Dst: counter, IImm: 0})
	p.emit(low.Instr{Kind: low.InstrBr, Target: head})
	// Head: test the counter against the bound.
	p.block = p.out.NewBlock(head)
	//
	var (
		bound = p.emitIConst(int64(stmt.Bound))
		taken = p.out.NewReg()
	)
	//
	p.emit(low.Instr{Kind: low.InstrICmpLt, Dst: taken, A: counter, B: bound})
	p.emit(low.Instr{Kind: low.InstrCondBr, A: taken, Target: body, Else: exit})
	// Body, then increment and loop back.
	p.block = p.out.NewBlock(body)
	p.counters[stmt.IVar] = counter
	//
	if err := p.lowerBody(stmt.Body); err != nil {
		return err
	}
	//
	delete(p.counters, stmt.IVar)
	//
	if !p.block.Terminated() {
		one := p.emitIConst(1)
		p.emit(low.Instr{Kind: low.InstrIAdd, Dst: counter, A: counter, B: one})
		p.emit(low.Instr{Kind: low.InstrBr, Target: head})
	}
	//
	p.block = p.out.NewBlock(exit)
	//
	return nil
}

func (p *blockLowering) lowerStore(stmt Stmt) error {
	value, err := p.lowerExpr(stmt.Src)
	if err != nil {
		return err
	}
	//
	addr, err := p.lowerRef(stmt.Dst)
	if err != nil {
		return err
	}
	//
	p.emit(low.Instr{Kind: low.InstrFStore, Dst: addr, A: value})
	//
	return nil
}

func (p *blockLowering) lowerExpr(expr Expr) (low.Reg, error) {
	switch expr.Kind {
	case ExprConst:
		reg := p.out.NewReg()
		p.emit(low.Instr{Kind: low.InstrFConst, Dst: reg, FImm: expr.Value})
		//
		return reg, nil
	case ExprLoad:
		addr, err := p.lowerRef(expr.Ref)
		if err != nil {
			return low.NoReg, err
		}
		//
		reg := p.out.NewReg()
		p.emit(low.Instr{Kind: low.InstrFLoad, Dst: reg, A: addr})
		//
		return reg, nil
	case ExprAdd, ExprMul:
		lhs, err := p.lowerExpr(*expr.Lhs)
		if err != nil {
			return low.NoReg, err
		}
		//
		rhs, err := p.lowerExpr(*expr.Rhs)
		if err != nil {
			return low.NoReg, err
		}
		//
		var (
			kind = low.InstrFAdd
			reg  = p.out.NewReg()
		)
		//
		if expr.Kind == ExprMul {
			kind = low.InstrFMul
		}
		//
		p.emit(low.Instr{Kind: kind, Dst: reg, A: lhs, B: rhs})
		//
		return reg, nil
	default:
		panic("unreachable")
	}
}

// Lower a reference into its byte address: the buffer base plus the row-major
// element offset scaled by the element size.
func (p *blockLowering) lowerRef(ref Ref) (low.Reg, error) {
	var (
		buffer, _ = p.fn.Buffer(ref.Buffer)
		base      = p.bases[ref.Buffer]
		offset    = low.NoReg
	)
	// Strides in bytes, with flat references striding by single elements.
	strides := []int64{elementBytes}
	//
	if !ref.Flat {
		strides = make([]int64, len(buffer.Shape))
		stride := int64(elementBytes)
		//
		for i := len(buffer.Shape) - 1; i >= 0; i-- {
			strides[i] = stride
			stride *= int64(buffer.Shape[i])
		}
	}
	//
	for i, index := range ref.Indices {
		var term low.Reg
		//
		if index.IVar != "" {
			counter, ok := p.counters[index.IVar]
			if !ok {
				return low.NoReg, ir.NewError(ir.BackendFailure,
					"loop variable %s used outside its loop in %s", index.IVar, p.fn.Name)
			}
			//
			scale := p.emitIConst(strides[i])
			term = p.out.NewReg()
			p.emit(low.Instr{Kind: low.InstrIMul, Dst: term, A: counter, B: scale})
		} else {
			term = p.emitIConst(int64(index.Lit) * strides[i])
		}
		//
		if offset == low.NoReg {
			offset = term
		} else {
			sum := p.out.NewReg()
			p.emit(low.Instr{Kind: low.InstrIAdd, Dst: sum, A: offset, B: term})
			offset = sum
		}
	}
	//
	if offset == low.NoReg {
		return base, nil
	}
	//
	addr := p.out.NewReg()
	p.emit(low.Instr{Kind: low.InstrIAdd, Dst: addr, A: base, B: offset})
	//
	return addr, nil
}

// Lower a function exit: release every local allocation except the result
// buffer (if any), then leave.  Parameter and aliased buffers are not
// released here; aliases share their owner's allocation, which is released
// exactly once.
func (p *blockLowering) lowerExit(result string) {
	ret := low.Instr{Kind: low.InstrRet, A: low.NoReg}
	//
	for _, name := range p.locals {
		if name == result {
			continue
		}
		//
		p.emit(low.Instr{Kind: low.InstrFree, A: p.bases[name]})
	}
	//
	if result != "" {
		ret.A = p.bases[result]
	}
	//
	p.emit(ret)
}

func (p *blockLowering) emit(instr low.Instr) {
	p.block.Append(instr)
}

func (p *blockLowering) emitIConst(value int64) low.Reg {
	reg := p.out.NewReg()
	p.emit(low.Instr{Kind: low.InstrIConst, Dst: reg, IImm: value})
	//
	return reg
}

// BufferBytes determines the byte size of a buffer of the given shape,
// reporting failure on overflow.
func bufferBytes(shape []int) (int64, bool) {
	bytes := int64(elementBytes)
	//
	for _, d := range shape {
		if d < 0 || (d > 0 && bytes > math.MaxInt64/int64(d)) {
			return 0, false
		}
		//
		bytes *= int64(d)
	}
	//
	return bytes, true
}
