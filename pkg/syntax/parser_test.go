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
package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tessel-lang/go-tessel/pkg/ast"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

func Test_Parse_01(t *testing.T) {
	module := parseValid(t, "def main() { }")
	//
	if len(module.Funcs) != 1 || module.Funcs[0].Name != "main" {
		t.Errorf("expected single function main")
	}
}

func Test_Parse_02(t *testing.T) {
	module := parseValid(t, "def f(a, b) { return a + b; }")
	//
	fn := module.Funcs[0]
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Errorf("unexpected parameters %v", fn.Params)
	}
	//
	ret := fn.Body[0].(*ast.ReturnStmt)
	//
	if _, ok := ret.Value.(*ast.BinaryExpr); !ok {
		t.Errorf("expected binary expression, found %T", ret.Value)
	}
}

func Test_Parse_03(t *testing.T) {
	// Multiplication binds tighter than addition.
	module := parseValid(t, "def f(a, b, c) { return a + b * c; }")
	//
	expr := module.Funcs[0].Body[0].(*ast.ReturnStmt).Value.(*ast.BinaryExpr)
	//
	if expr.Op != '+' {
		t.Errorf("expected addition at the root, found %c", expr.Op)
	}
	//
	if rhs, ok := expr.Rhs.(*ast.BinaryExpr); !ok || rhs.Op != '*' {
		t.Errorf("expected multiplication on the right")
	}
}

func Test_Parse_04(t *testing.T) {
	module := parseValid(t, "def main() { var a<2, 3> = [1, 2, 3, 4, 5, 6]; }")
	//
	stmt := module.Funcs[0].Body[0].(*ast.VarStmt)
	//
	if !cmp.Equal(stmt.Shape, []int{2, 3}) {
		t.Errorf("unexpected shape annotation %v", stmt.Shape)
	}
}

func Test_Parse_05(t *testing.T) {
	// A shape-less var carries no annotation at all.
	module := parseValid(t, "def main() { var a = [1, 2]; }")
	//
	if stmt := module.Funcs[0].Body[0].(*ast.VarStmt); stmt.Shape != nil {
		t.Errorf("unexpected shape annotation %v", stmt.Shape)
	}
}

func Test_Parse_06(t *testing.T) {
	module := parseValid(t, "def main() { var a = [[1, 2], [3, 4]]; print(a); }")
	//
	lit := module.Funcs[0].Body[0].(*ast.VarStmt).Init.(*ast.TensorLit)
	//
	if len(lit.Elems) != 2 {
		t.Errorf("expected two rows, found %d", len(lit.Elems))
	}
	//
	if _, ok := lit.Elems[0].(*ast.TensorLit); !ok {
		t.Errorf("expected nested tensor literal")
	}
}

func Test_Parse_07(t *testing.T) {
	module := parseValid(t, "struct Pair { a, b }")
	//
	decl := module.Structs[0]
	//
	if decl.Name != "Pair" || !cmp.Equal(decl.Fields, []string{"a", "b"}) {
		t.Errorf("unexpected struct declaration %v", decl)
	}
}

func Test_Parse_08(t *testing.T) {
	module := parseValid(t, "def main() { var p = Pair{[1, 2], [3, 4]}; print(p.a); }")
	//
	lit := module.Funcs[0].Body[0].(*ast.VarStmt).Init.(*ast.StructLit)
	//
	if lit.Name != "Pair" || len(lit.Fields) != 2 {
		t.Errorf("unexpected struct literal")
	}
	//
	call := module.Funcs[0].Body[1].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	//
	if _, ok := call.Args[0].(*ast.FieldExpr); !ok {
		t.Errorf("expected field access argument")
	}
}

func Test_Parse_09(t *testing.T) {
	// Chained field access is left-nested.
	module := parseValid(t, "def f(x) { return x.a.b; }")
	//
	outer := module.Funcs[0].Body[0].(*ast.ReturnStmt).Value.(*ast.FieldExpr)
	//
	if outer.Field != "b" {
		t.Errorf("expected outermost field b, found %s", outer.Field)
	}
	//
	if inner, ok := outer.Obj.(*ast.FieldExpr); !ok || inner.Field != "a" {
		t.Errorf("expected inner field a")
	}
}

func Test_Parse_10(t *testing.T) {
	module := parseValid(t, "def main() { var x = f(1, [2, 3]); }")
	//
	call := module.Funcs[0].Body[0].(*ast.VarStmt).Init.(*ast.CallExpr)
	//
	if call.Callee != "f" || len(call.Args) != 2 {
		t.Errorf("unexpected call expression")
	}
}

func Test_Parse_11(t *testing.T) {
	// Comments run to the end of the line.
	parseValid(t, "# leading comment\ndef main() { # trailing\n }")
}

func Test_Parse_12(t *testing.T) {
	// Parentheses override precedence.
	module := parseValid(t, "def f(a, b, c) { return (a + b) * c; }")
	//
	expr := module.Funcs[0].Body[0].(*ast.ReturnStmt).Value.(*ast.BinaryExpr)
	//
	if expr.Op != '*' {
		t.Errorf("expected multiplication at the root, found %c", expr.Op)
	}
}

func Test_Parse_13(t *testing.T) {
	parseInvalid(t, "def main() { var a = ; }", 1)
}

func Test_Parse_14(t *testing.T) {
	// Missing semicolon.
	parseInvalid(t, "def main() { print(a) }", 1)
}

func Test_Parse_15(t *testing.T) {
	// The parser resynchronises at the next declaration, so both ill-formed
	// functions are reported.
	parseInvalid(t, "def f( { }\ndef g() { var = 1; }\ndef h() { }", 2)
}

func Test_Parse_16(t *testing.T) {
	parseInvalid(t, "struct Pair { }", 1)
}

func Test_Parse_17(t *testing.T) {
	// Negative numbers are literals, not unary expressions.
	module := parseValid(t, "def main() { var a = [-1, 2.5]; }")
	//
	lit := module.Funcs[0].Body[0].(*ast.VarStmt).Init.(*ast.TensorLit)
	//
	if number := lit.Elems[0].(*ast.NumberLit); number.Value != -1 {
		t.Errorf("expected -1, found %f", number.Value)
	}
	//
	if number := lit.Elems[1].(*ast.NumberLit); number.Value != 2.5 {
		t.Errorf("expected 2.5, found %f", number.Value)
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func parseValid(t *testing.T, text string) *ast.Module {
	t.Helper()
	//
	module, errs := Parse(source.NewFile("test.tsl", []byte(text)))
	//
	if len(errs) > 0 {
		t.Fatalf("unexpected syntax errors: %v", errs[0].Error())
	}
	//
	return module
}

func parseInvalid(t *testing.T, text string, expected int) {
	t.Helper()
	//
	_, errs := Parse(source.NewFile("test.tsl", []byte(text)))
	//
	if len(errs) != expected {
		t.Fatalf("expected %d syntax errors, found %d", expected, len(errs))
	}
}
