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
	for i, b := range p.Params {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(b.String())
	}
	//
	builder.WriteString(")")
	//
	if p.Result != nil {
		fmt.Fprintf(&builder, " -> %s", formatShape(p.Result))
	}
	//
	builder.WriteString(" {\n")
	//
	for _, b := range p.Locals {
		fmt.Fprintf(&builder, "  var %s\n", b.String())
	}
	//
	for _, stmt := range p.Body {
		writeStmt(&builder, stmt, 1)
	}
	//
	builder.WriteString("}\n")
	//
	return builder.String()
}

// String renders this buffer as its name followed by its shape, e.g.
// "v0<2x3>".
func (p Buffer) String() string {
	return p.Name + formatShape(p.Shape)
}

// String renders this reference, e.g. "v0[i0, 1]", "v0[[i2]]" or "v0[]".
func (p Ref) String() string {
	var (
		open, close = "[", "]"
		indices     = make([]string, len(p.Indices))
	)
	//
	if p.Flat {
		open, close = "[[", "]]"
	}
	//
	for i, index := range p.Indices {
		indices[i] = index.String()
	}
	//
	return p.Buffer + open + strings.Join(indices, ", ") + close
}

// String renders this index.
func (p Index) String() string {
	if p.IVar != "" {
		return p.IVar
	}
	//
	return strconv.Itoa(p.Lit)
}

// String renders this expression in infix form.  Subexpressions of lowered
// programs are always loads or constants, so no parenthesisation arises.
func (p Expr) String() string {
	switch p.Kind {
	case ExprLoad:
		return p.Ref.String()
	case ExprConst:
		return strconv.FormatFloat(p.Value, 'g', -1, 64)
	case ExprAdd:
		return fmt.Sprintf("%s + %s", p.Lhs, p.Rhs)
	case ExprMul:
		return fmt.Sprintf("%s * %s", p.Lhs, p.Rhs)
	default:
		panic("unreachable")
	}
}

func writeStmt(builder *strings.Builder, stmt Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	//
	switch stmt.Kind {
	case StmtLoop:
		fmt.Fprintf(builder, "%sfor %s < %d {\n", indent, stmt.IVar, stmt.Bound)
		//
		for _, inner := range stmt.Body {
			writeStmt(builder, inner, depth+1)
		}
		//
		fmt.Fprintf(builder, "%s}\n", indent)
	case StmtStore:
		fmt.Fprintf(builder, "%s%s = %s\n", indent, stmt.Dst, stmt.Src)
	case StmtPrint:
		fmt.Fprintf(builder, "%sprint %s\n", indent, stmt.Target)
	case StmtReturn:
		if stmt.Target == "" {
			fmt.Fprintf(builder, "%sreturn\n", indent)
		} else {
			fmt.Fprintf(builder, "%sreturn %s\n", indent, stmt.Target)
		}
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
