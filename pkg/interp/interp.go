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

// Package interp provides the reference backend: a direct interpreter for
// register-level programs.  The heap is a flat byte array with a bump
// allocator, and registers hold raw 64-bit payloads interpreted per
// instruction, exactly as the register model prescribes.  Beyond executing
// programs, the interpreter polices the memory discipline lowering is
// supposed to establish: releasing an address which is not a live allocation
// base fails, as does leaving allocations live at exit.
package interp

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
)

// DefaultMaxSteps bounds execution, such that a malformed program with a
// non-terminating loop fails rather than hangs.
const DefaultMaxSteps = 100_000_000

// Interpreter executes one program, writing printed tensors to a given
// output.
type Interpreter struct {
	program *low.Program
	out     io.Writer
	// Heap image; addresses index into this directly.
	heap []byte
	// Live allocation sizes, keyed by base address.
	allocations map[int64]int64
	// Remaining execution steps.
	fuel uint64
}

// New constructs an interpreter for a given program.
func New(program *low.Program, out io.Writer) *Interpreter {
	return &Interpreter{
		program: program,
		out:     out,
		// Address zero is reserved, so no live base is ever zero.
		heap:        make([]byte, 8),
		allocations: make(map[int64]int64),
		fuel:        DefaultMaxSteps,
	}
}

// SetMaxSteps overrides the execution bound.
func (p *Interpreter) SetMaxSteps(steps uint64) {
	p.fuel = steps
}

// Run executes the named (parameterless) function to completion, then checks
// that no allocation outlived it.  A result buffer is owned by the caller
// once the function returns, so here it is released before the leak check.
func (p *Interpreter) Run(name string) error {
	fn, ok := p.program.Function(name)
	if !ok {
		return ir.NewError(ir.BackendFailure, "no such function %s", name)
	}
	//
	if fn.NumParams != 0 {
		return ir.NewError(ir.BackendFailure, "%s requires %d argument buffers", name, fn.NumParams)
	}
	//
	result, err := p.call(fn)
	if err != nil {
		return err
	}
	// Release the returned buffer, if any.  A bare ret yields address zero,
	// which is reserved and never a live base.
	if _, ok := p.allocations[result]; ok {
		delete(p.allocations, result)
	}
	//
	if n := len(p.allocations); n > 0 {
		return ir.NewError(ir.BackendFailure, "%s leaked %d allocations", name, n)
	}
	//
	return nil
}

// Call executes a function, yielding the address register of its ret (or
// low.NoReg for a bare ret).
func (p *Interpreter) call(fn *low.Function) (int64, error) {
	var (
		regs  = make([]uint64, fn.NumRegs)
		block = fn.Entry()
		pc    = 0
	)
	//
	for {
		if pc >= len(block.Instrs) {
			return 0, p.failf(fn, "control fell off the end of block %s", block.Label)
		}
		//
		if p.fuel == 0 {
			return 0, p.failf(fn, "execution bound exceeded")
		}
		//
		p.fuel--
		instr := &block.Instrs[pc]
		pc++
		//
		switch instr.Kind {
		case low.InstrIConst:
			regs[instr.Dst] = uint64(instr.IImm)
		case low.InstrFConst:
			regs[instr.Dst] = math.Float64bits(instr.FImm)
		case low.InstrIAdd:
			regs[instr.Dst] = uint64(int64(regs[instr.A]) + int64(regs[instr.B]))
		case low.InstrIMul:
			regs[instr.Dst] = uint64(int64(regs[instr.A]) * int64(regs[instr.B]))
		case low.InstrICmpLt:
			regs[instr.Dst] = 0
			//
			if int64(regs[instr.A]) < int64(regs[instr.B]) {
				regs[instr.Dst] = 1
			}
		case low.InstrFAdd:
			regs[instr.Dst] = math.Float64bits(
				math.Float64frombits(regs[instr.A]) + math.Float64frombits(regs[instr.B]))
		case low.InstrFMul:
			regs[instr.Dst] = math.Float64bits(
				math.Float64frombits(regs[instr.A]) * math.Float64frombits(regs[instr.B]))
		case low.InstrFLoad:
			value, err := p.load(fn, int64(regs[instr.A]))
			if err != nil {
				return 0, err
			}
			//
			regs[instr.Dst] = math.Float64bits(value)
		case low.InstrFStore:
			if err := p.store(fn, int64(regs[instr.Dst]), math.Float64frombits(regs[instr.A])); err != nil {
				return 0, err
			}
		case low.InstrAlloc:
			base, err := p.alloc(fn, instr.IImm)
			if err != nil {
				return 0, err
			}
			//
			regs[instr.Dst] = uint64(base)
		case low.InstrFree:
			if err := p.free(fn, int64(regs[instr.A])); err != nil {
				return 0, err
			}
		case low.InstrBr:
			next, ok := fn.Block(instr.Target)
			if !ok {
				return 0, p.failf(fn, "branch to unknown block %s", instr.Target)
			}
			//
			block, pc = next, 0
		case low.InstrCondBr:
			label := instr.Else
			//
			if regs[instr.A] != 0 {
				label = instr.Target
			}
			//
			next, ok := fn.Block(label)
			if !ok {
				return 0, p.failf(fn, "branch to unknown block %s", label)
			}
			//
			block, pc = next, 0
		case low.InstrPrint:
			if err := p.print(fn, int64(regs[instr.A]), instr.Shape); err != nil {
				return 0, err
			}
		case low.InstrRet:
			if instr.A == low.NoReg {
				return 0, nil
			}
			//
			return int64(regs[instr.A]), nil
		default:
			panic("unreachable")
		}
	}
}

// Alloc carves a fresh allocation out of the heap, never reusing addresses.
// This makes any use of a stale base detectable by the free / leak checks.
func (p *Interpreter) alloc(fn *low.Function, bytes int64) (int64, error) {
	if bytes < 0 {
		return 0, p.failf(fn, "allocation of negative size")
	}
	//
	base := int64(len(p.heap))
	p.heap = append(p.heap, make([]byte, bytes)...)
	p.allocations[base] = bytes
	//
	return base, nil
}

// Free releases an allocation, failing unless the address is a live
// allocation base (a double release in particular is not).
func (p *Interpreter) free(fn *low.Function, base int64) error {
	if _, ok := p.allocations[base]; !ok {
		return p.failf(fn, "release of %#x, which is not a live allocation", base)
	}
	//
	delete(p.allocations, base)
	//
	return nil
}

func (p *Interpreter) load(fn *low.Function, addr int64) (float64, error) {
	if err := p.check(fn, addr); err != nil {
		return 0, err
	}
	//
	return math.Float64frombits(binary.LittleEndian.Uint64(p.heap[addr:])), nil
}

func (p *Interpreter) store(fn *low.Function, addr int64, value float64) error {
	if err := p.check(fn, addr); err != nil {
		return err
	}
	//
	binary.LittleEndian.PutUint64(p.heap[addr:], math.Float64bits(value))
	//
	return nil
}

// Check that an address lies entirely within some live allocation.
func (p *Interpreter) check(fn *low.Function, addr int64) error {
	for base, size := range p.allocations {
		if addr >= base && addr+8 <= base+size {
			return nil
		}
	}
	//
	return p.failf(fn, "access of %#x, which is outside every live allocation", addr)
}

// Print renders the buffer at a given base address under a given shape, as
// nested bracketed rows; a rank-0 buffer prints as a bare number.
func (p *Interpreter) print(fn *low.Function, base int64, shape []int) error {
	count := 1
	for _, d := range shape {
		count *= d
	}
	//
	data := make([]float64, count)
	//
	for i := range data {
		value, err := p.load(fn, base+int64(i*8))
		if err != nil {
			return err
		}
		//
		data[i] = value
	}
	//
	var builder strings.Builder
	//
	writeTensor(&builder, data, shape)
	builder.WriteString("\n")
	//
	if _, err := io.WriteString(p.out, builder.String()); err != nil {
		return errors.Wrap(err, "writing program output")
	}
	//
	return nil
}

func writeTensor(builder *strings.Builder, data []float64, shape []int) {
	if len(shape) == 0 {
		builder.WriteString(strconv.FormatFloat(data[0], 'g', -1, 64))
		return
	}
	//
	var (
		rows   = shape[0]
		stride = len(data) / max(rows, 1)
	)
	//
	builder.WriteString("[")
	//
	for i := 0; i < rows; i++ {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		writeTensor(builder, data[i*stride:(i+1)*stride], shape[1:])
	}
	//
	builder.WriteString("]")
}

func (p *Interpreter) failf(fn *low.Function, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	//
	return ir.NewError(ir.BackendFailure, "in %s: %s", fn.Name, msg)
}
