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
	"fmt"
	"strconv"
	"strings"
)

// String renders this program in its stable textual form, parseable via
// Parse.
func (p *Program) String() string {
	var builder strings.Builder
	//
	for i, fn := range p.Funcs {
		if i != 0 {
			builder.WriteString("\n")
		}
		//
		builder.WriteString(fn.String())
	}
	//
	return builder.String()
}

// String renders this function in its stable textual form.
func (p *Function) String() string {
	var builder strings.Builder
	//
	fmt.Fprintf(&builder, "func %s(", p.Name)
	//
	for i := 0; i < p.NumParams; i++ {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		fmt.Fprintf(&builder, "r%d", i)
	}
	//
	builder.WriteString(") {\n")
	//
	for _, block := range p.Blocks {
		fmt.Fprintf(&builder, "%s:\n", block.Label)
		//
		for _, instr := range block.Instrs {
			fmt.Fprintf(&builder, "  %s\n", instr)
		}
	}
	//
	builder.WriteString("}\n")
	//
	return builder.String()
}

// String renders this instruction.
func (p Instr) String() string {
	switch p.Kind {
	case InstrIConst:
		return fmt.Sprintf("r%d = iconst %d", p.Dst, p.IImm)
	case InstrFConst:
		return fmt.Sprintf("r%d = fconst %s", p.Dst, strconv.FormatFloat(p.FImm, 'g', -1, 64))
	case InstrIAdd, InstrIMul, InstrICmpLt, InstrFAdd, InstrFMul:
		return fmt.Sprintf("r%d = %s r%d, r%d", p.Dst, p.Kind, p.A, p.B)
	case InstrFLoad:
		return fmt.Sprintf("r%d = fload r%d", p.Dst, p.A)
	case InstrFStore:
		return fmt.Sprintf("fstore r%d, r%d", p.Dst, p.A)
	case InstrAlloc:
		return fmt.Sprintf("r%d = alloc %d", p.Dst, p.IImm)
	case InstrFree:
		return fmt.Sprintf("free r%d", p.A)
	case InstrBr:
		return fmt.Sprintf("br %s", p.Target)
	case InstrCondBr:
		return fmt.Sprintf("condbr r%d, %s, %s", p.A, p.Target, p.Else)
	case InstrPrint:
		return fmt.Sprintf("print r%d, %s", p.A, formatShape(p.Shape))
	case InstrRet:
		if p.A == NoReg {
			return "ret"
		}
		//
		return fmt.Sprintf("ret r%d", p.A)
	default:
		panic("unreachable")
	}
}

// Render a shape as e.g. "<2x3>"; the empty shape renders as "<>".
func formatShape(shape []int) string {
	dims := make([]string, len(shape))
	//
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	//
	return "<" + strings.Join(dims, "x") + ">"
}
