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
	"fmt"
	"strconv"
	"strings"

	"github.com/tessel-lang/go-tessel/pkg/ir"
)

// String renders this module in its stable textual form.  The rendering can
// be parsed back via Parse, and is byte-stable: canonicalizing an already
// canonical module reproduces it exactly.
func (p *Module) String() string {
	var builder strings.Builder
	//
	for _, s := range p.structs {
		fmt.Fprintf(&builder, "struct %s { %s }\n\n", s.Name, strings.Join(s.Fields, ", "))
	}
	//
	for i, fn := range p.Functions() {
		if i != 0 {
			builder.WriteString("\n")
		}
		//
		builder.WriteString(fn.String())
	}
	//
	return builder.String()
}

// String renders this function in its stable textual form.  Dead arena slots
// are skipped, with surviving values renumbered densely.
func (p *Function) String() string {
	var (
		builder strings.Builder
		names   = p.valueNames()
	)
	// Signature line.
	fmt.Fprintf(&builder, "func %s(", p.name)
	//
	for i, t := range p.params {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		fmt.Fprintf(&builder, "%%arg%d: %s", i, t)
	}
	//
	builder.WriteString(")")
	//
	if p.result.Kind() != ir.KindNone {
		fmt.Fprintf(&builder, " -> %s", p.result)
	}
	//
	builder.WriteString(" {\n")
	//
	for i := range p.ops {
		op := &p.ops[i]
		//
		if op.Opcode == OpNop {
			continue
		}
		//
		builder.WriteString("  ")
		writeOp(&builder, op, names, names[p.ValueOf(i)])
		builder.WriteString("\n")
	}
	//
	builder.WriteString("}\n")
	//
	return builder.String()
}

// Determine the printed name of every value, skipping dead slots such that
// live values are numbered densely.
func (p *Function) valueNames() []string {
	var (
		names = make([]string, p.NumValues())
		next  = 0
	)
	//
	for i := range p.params {
		names[i] = fmt.Sprintf("%%arg%d", i)
	}
	//
	for i, op := range p.ops {
		if op.Opcode == OpNop {
			continue
		}
		//
		names[p.ValueOf(i)] = fmt.Sprintf("%%%d", next)
		next++
	}
	//
	return names
}

// Render a single operation.
func writeOp(builder *strings.Builder, op *Operation, names []string, name string) {
	if op.Opcode.HasResult() {
		fmt.Fprintf(builder, "%s = ", name)
	}
	//
	switch op.Opcode {
	case OpConstant:
		writeConstant(builder, op)
	case OpCall:
		fmt.Fprintf(builder, "call @%s(", op.Name)
		//
		for i, operand := range op.Operands {
			if i != 0 {
				builder.WriteString(", ")
			}
			//
			builder.WriteString(names[operand])
		}
		//
		builder.WriteString(")")
	case OpReshape:
		fmt.Fprintf(builder, "reshape %s, %s", names[op.Operands[0]], formatShape(op.Shape))
	case OpField:
		fmt.Fprintf(builder, "field %s, %s", names[op.Operands[0]], op.Name)
	default:
		builder.WriteString(op.Opcode.String())
		//
		for i, operand := range op.Operands {
			if i != 0 {
				builder.WriteString(",")
			}
			//
			builder.WriteString(" ")
			builder.WriteString(names[operand])
		}
	}
	//
	if op.Opcode.HasResult() {
		fmt.Fprintf(builder, " : %s", op.Type)
	}
}

// Render a (tensor or struct) constant.
func writeConstant(builder *strings.Builder, op *Operation) {
	builder.WriteString("constant ")
	//
	if len(op.Fields) > 0 || op.Type.Kind() == ir.KindStruct {
		fmt.Fprintf(builder, "%s { ", op.Name)
		//
		for i, f := range op.Fields {
			if i != 0 {
				builder.WriteString(", ")
			}
			//
			writeLiteral(builder, f)
		}
		//
		builder.WriteString(" }")
		//
		return
	}
	//
	writeLiteral(builder, op.Literal)
}

// Render a literal as its shape followed by its flat row-major data.
func writeLiteral(builder *strings.Builder, lit Literal) {
	builder.WriteString(formatShape(lit.Shape))
	builder.WriteString(" [")
	//
	for i, v := range lit.Data {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(formatFloat(v))
	}
	//
	builder.WriteString("]")
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

// Render a float in its shortest exact form.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
