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

// Package low provides the bottom intermediate representation: flat
// three-address code over virtual registers, organised into labelled basic
// blocks.  Loops have become explicit branches, buffers have become heap
// allocations addressed in bytes, and every element access has become an
// integer address computation followed by a scalar load or store.
//
// Registers are mutable, so loop counters are updated in place rather than
// renamed.  Buffer base addresses live in ordinary integer registers, with a
// function's parameters arriving in registers [0..NumParams).
package low

import (
	"fmt"
)

// Reg is a virtual register index.
type Reg uint32

// NoReg is the sentinel register, used e.g. by a value-less ret.
const NoReg Reg = 0xffffffff

// InstrKind identifies the (closed) instruction set.
type InstrKind uint8

const (
	// InstrIConst loads an integer immediate.
	InstrIConst InstrKind = iota
	// InstrFConst loads a floating-point immediate.
	InstrFConst
	// InstrIAdd is integer addition.
	InstrIAdd
	// InstrIMul is integer multiplication.
	InstrIMul
	// InstrICmpLt is integer less-than, producing 0 or 1.
	InstrICmpLt
	// InstrFAdd is floating-point addition.
	InstrFAdd
	// InstrFMul is floating-point multiplication.
	InstrFMul
	// InstrFLoad reads the f64 at the byte address held in A.
	InstrFLoad
	// InstrFStore writes the f64 in A to the byte address held in Dst.
	InstrFStore
	// InstrAlloc allocates IImm bytes, yielding the base address.
	InstrAlloc
	// InstrFree releases the allocation whose base address is held in A.
	InstrFree
	// InstrBr branches unconditionally to Target.
	InstrBr
	// InstrCondBr branches to Target when A is non-zero, and to Else
	// otherwise.
	InstrCondBr
	// InstrPrint renders the buffer whose base address is held in A, under
	// the Shape attribute.
	InstrPrint
	// InstrRet leaves the function, optionally yielding the address held in
	// A.
	InstrRet
)

// String returns the mnemonic of this instruction kind.
func (k InstrKind) String() string {
	switch k {
	case InstrIConst:
		return "iconst"
	case InstrFConst:
		return "fconst"
	case InstrIAdd:
		return "iadd"
	case InstrIMul:
		return "imul"
	case InstrICmpLt:
		return "icmplt"
	case InstrFAdd:
		return "fadd"
	case InstrFMul:
		return "fmul"
	case InstrFLoad:
		return "fload"
	case InstrFStore:
		return "fstore"
	case InstrAlloc:
		return "alloc"
	case InstrFree:
		return "free"
	case InstrBr:
		return "br"
	case InstrCondBr:
		return "condbr"
	case InstrPrint:
		return "print"
	case InstrRet:
		return "ret"
	default:
		panic("unreachable")
	}
}

// HasDst checks whether instructions of this kind write a destination
// register.
func (k InstrKind) HasDst() bool {
	switch k {
	case InstrIConst, InstrFConst, InstrIAdd, InstrIMul, InstrICmpLt,
		InstrFAdd, InstrFMul, InstrFLoad, InstrAlloc:
		return true
	default:
		return false
	}
}

// IsTerminator checks whether instructions of this kind end a basic block.
func (k InstrKind) IsTerminator() bool {
	return k == InstrBr || k == InstrCondBr || k == InstrRet
}

// Instr is a single instruction.  Exactly which attributes are meaningful
// depends upon the kind; see the kind constants.
type Instr struct {
	Kind InstrKind
	// Destination register; doubles as the address register of fstore.
	Dst Reg
	// Source registers.
	A Reg
	B Reg
	// Integer immediate (iconst / alloc).
	IImm int64
	// Floating-point immediate (fconst).
	FImm float64
	// Buffer shape attribute (print).
	Shape []int
	// Branch targets (br / condbr).
	Target string
	Else   string
}

// Block is a labelled sequence of instructions ending in a terminator.
type Block struct {
	Label  string
	Instrs []Instr
}

// Append adds an instruction to the end of this block.
func (p *Block) Append(instr Instr) {
	p.Instrs = append(p.Instrs, instr)
}

// Terminated checks whether this block already ends in a terminator.
func (p *Block) Terminated() bool {
	n := len(p.Instrs)
	return n > 0 && p.Instrs[n-1].Kind.IsTerminator()
}

// Function is a register machine program: an entry block followed by further
// blocks in layout order.  Parameters arrive in registers [0..NumParams),
// holding buffer base addresses.
type Function struct {
	Name      string
	NumParams int
	NumRegs   uint32
	Blocks    []*Block
}

// Entry returns the entry block of this function.
func (p *Function) Entry() *Block {
	return p.Blocks[0]
}

// Block looks up a block by label.
func (p *Function) Block(label string) (*Block, bool) {
	for _, b := range p.Blocks {
		if b.Label == label {
			return b, true
		}
	}
	//
	return nil, false
}

// NewBlock appends a fresh (empty) block with a given label.
func (p *Function) NewBlock(label string) *Block {
	block := &Block{Label: label}
	p.Blocks = append(p.Blocks, block)
	//
	return block
}

// NewReg allocates a fresh register.
func (p *Function) NewReg() Reg {
	reg := Reg(p.NumRegs)
	p.NumRegs++
	//
	return reg
}

// Program is the top-level container at the bottom level.
type Program struct {
	Funcs []*Function
}

// Function looks up a function by name.
func (p *Program) Function(name string) (*Function, bool) {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	//
	return nil, false
}

// AddFunction registers a function, failing if the name is already taken.
func (p *Program) AddFunction(fn *Function) error {
	if _, ok := p.Function(fn.Name); ok {
		return fmt.Errorf("function %s already declared", fn.Name)
	}
	//
	p.Funcs = append(p.Funcs, fn)
	//
	return nil
}
