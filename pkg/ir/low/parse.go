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
package low

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse reads a program back from its textual form, as produced by
// Program.String.  This is the entry point for injecting register-level
// programs directly.
func Parse(input string) (*Program, error) {
	var (
		program  = &Program{}
		fn       *Function
		block    *Block
		maxRegOf = func(regs ...Reg) {
			for _, r := range regs {
				if r != NoReg && uint32(r) >= fn.NumRegs {
					fn.NumRegs = uint32(r) + 1
				}
			}
		}
	)
	//
	for number, raw := range strings.Split(input, "\n") {
		var (
			line = strings.TrimSpace(raw)
			fail = func(format string, args ...any) error {
				return errors.Errorf("line %d: "+format, append([]any{number + 1}, args...)...)
			}
		)
		//
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "func "):
			if fn != nil {
				return nil, fail("unterminated function %s", fn.Name)
			}
			//
			header, err := parseHeader(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", number+1)
			}
			//
			fn, block = header, nil
		case line == "}":
			if fn == nil {
				return nil, fail("unexpected closing brace")
			}
			//
			if err := program.AddFunction(fn); err != nil {
				return nil, errors.Wrapf(err, "line %d", number+1)
			}
			//
			fn, block = nil, nil
		case strings.HasSuffix(line, ":"):
			if fn == nil {
				return nil, fail("label outside function")
			}
			//
			block = fn.NewBlock(strings.TrimSuffix(line, ":"))
		default:
			if block == nil {
				return nil, fail("instruction outside block")
			}
			//
			instr, err := parseInstr(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", number+1)
			}
			//
			maxRegOf(instr.Dst, instr.A, instr.B)
			block.Append(instr)
		}
	}
	//
	if fn != nil {
		return nil, errors.Errorf("unterminated function %s", fn.Name)
	}
	//
	return program, nil
}

// Parse e.g. "func main(r0, r1) {".
func parseHeader(line string) (*Function, error) {
	var (
		open  = strings.IndexByte(line, '(')
		close = strings.IndexByte(line, ')')
	)
	//
	if open < 0 || close < open || !strings.HasSuffix(line, "{") {
		return nil, errors.Errorf("malformed function header")
	}
	//
	fn := &Function{Name: strings.TrimSpace(line[5:open])}
	//
	if params := strings.TrimSpace(line[open+1 : close]); params != "" {
		fn.NumParams = len(strings.Split(params, ","))
	}
	//
	fn.NumRegs = uint32(fn.NumParams)
	//
	return fn, nil
}

// Parse a single instruction line.
func parseInstr(line string) (Instr, error) {
	var instr Instr
	//
	// Destination, if any.
	if eq := strings.Index(line, " = "); eq >= 0 {
		dst, err := parseReg(line[:eq])
		if err != nil {
			return instr, err
		}
		//
		instr.Dst, line = dst, line[eq+3:]
	} else {
		instr.Dst = NoReg
	}
	//
	var (
		mnemonic, rest, _ = strings.Cut(line, " ")
		operands          = splitOperands(rest)
	)
	//
	switch mnemonic {
	case "iconst", "alloc":
		instr.Kind = InstrIConst
		if mnemonic == "alloc" {
			instr.Kind = InstrAlloc
		}
		//
		imm, err := expectInt(operands)
		instr.IImm = imm
		//
		return instr, err
	case "fconst":
		instr.Kind = InstrFConst
		//
		if len(operands) != 1 {
			return instr, errors.Errorf("fconst expects one immediate")
		}
		//
		imm, err := strconv.ParseFloat(operands[0], 64)
		instr.FImm = imm
		//
		return instr, err
	case "iadd", "imul", "icmplt", "fadd", "fmul":
		return parseBinary(instr, mnemonic, operands)
	case "fload":
		instr.Kind = InstrFLoad
		//
		a, err := expectReg(operands)
		instr.A = a
		//
		return instr, err
	case "fstore":
		instr.Kind = InstrFStore
		//
		if len(operands) != 2 {
			return instr, errors.Errorf("fstore expects two registers")
		}
		//
		addr, err := parseReg(operands[0])
		if err != nil {
			return instr, err
		}
		//
		value, err := parseReg(operands[1])
		instr.Dst, instr.A = addr, value
		//
		return instr, err
	case "free":
		instr.Kind = InstrFree
		//
		a, err := expectReg(operands)
		instr.A = a
		//
		return instr, err
	case "br":
		instr.Kind = InstrBr
		//
		if len(operands) != 1 {
			return instr, errors.Errorf("br expects one target")
		}
		//
		instr.Target = operands[0]
		//
		return instr, nil
	case "condbr":
		instr.Kind = InstrCondBr
		//
		if len(operands) != 3 {
			return instr, errors.Errorf("condbr expects a register and two targets")
		}
		//
		a, err := parseReg(operands[0])
		instr.A, instr.Target, instr.Else = a, operands[1], operands[2]
		//
		return instr, err
	case "print":
		instr.Kind = InstrPrint
		//
		if len(operands) != 2 {
			return instr, errors.Errorf("print expects a register and a shape")
		}
		//
		a, err := parseReg(operands[0])
		if err != nil {
			return instr, err
		}
		//
		shape, err := parseShape(operands[1])
		instr.A, instr.Shape = a, shape
		//
		return instr, err
	case "ret":
		instr.Kind, instr.A = InstrRet, NoReg
		//
		if len(operands) == 1 && operands[0] != "" {
			a, err := parseReg(operands[0])
			instr.A = a
			//
			return instr, err
		}
		//
		return instr, nil
	default:
		return instr, errors.Errorf("unknown instruction %q", mnemonic)
	}
}

func parseBinary(instr Instr, mnemonic string, operands []string) (Instr, error) {
	switch mnemonic {
	case "iadd":
		instr.Kind = InstrIAdd
	case "imul":
		instr.Kind = InstrIMul
	case "icmplt":
		instr.Kind = InstrICmpLt
	case "fadd":
		instr.Kind = InstrFAdd
	case "fmul":
		instr.Kind = InstrFMul
	}
	//
	if len(operands) != 2 {
		return instr, errors.Errorf("%s expects two registers", mnemonic)
	}
	//
	a, err := parseReg(operands[0])
	if err != nil {
		return instr, err
	}
	//
	b, err := parseReg(operands[1])
	instr.A, instr.B = a, b
	//
	return instr, err
}

func splitOperands(text string) []string {
	if text = strings.TrimSpace(text); text == "" {
		return nil
	}
	//
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	//
	return parts
}

func parseReg(text string) (Reg, error) {
	text = strings.TrimSpace(text)
	//
	if !strings.HasPrefix(text, "r") {
		return NoReg, errors.Errorf("expected register, found %q", text)
	}
	//
	n, err := strconv.ParseUint(text[1:], 10, 32)
	if err != nil {
		return NoReg, errors.Errorf("expected register, found %q", text)
	}
	//
	return Reg(n), nil
}

func expectReg(operands []string) (Reg, error) {
	if len(operands) != 1 {
		return NoReg, errors.Errorf("expected one register operand")
	}
	//
	return parseReg(operands[0])
}

func expectInt(operands []string) (int64, error) {
	if len(operands) != 1 {
		return 0, errors.Errorf("expected one integer immediate")
	}
	//
	return strconv.ParseInt(operands[0], 10, 64)
}

// Parse a shape rendering, e.g. "<2x3>" or "<>".
func parseShape(text string) ([]int, error) {
	if !strings.HasPrefix(text, "<") || !strings.HasSuffix(text, ">") {
		return nil, errors.Errorf("malformed shape %q", text)
	}
	//
	inner := text[1 : len(text)-1]
	if inner == "" {
		return []int{}, nil
	}
	//
	var (
		dims  = strings.Split(inner, "x")
		shape = make([]int, len(dims))
	)
	//
	for i, d := range dims {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return nil, errors.Errorf("malformed shape %q", text)
		}
		//
		shape[i] = n
	}
	//
	return shape, nil
}
