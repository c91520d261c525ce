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
	"strings"
	"testing"

	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/syntax"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

func Test_Infer_01(t *testing.T) {
	// A parameterless function is its own specialization.
	module := specializeValid(t,
		"def main() { var a = [1, 2]; print(a); }")
	//
	if _, ok := module.Function("main"); !ok {
		t.Errorf("expected main to survive specialization")
	}
}

func Test_Infer_02(t *testing.T) {
	module := specializeValid(t, `
def multiply_transpose(a, b) {
  return transpose(a) * transpose(b);
}
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b<2, 3> = [1, 2, 3, 4, 5, 6];
  var c = multiply_transpose(a, b);
  print(c);
}`)
	// The call is retargeted at a mangled, concrete specialization.
	fn, ok := module.Function("multiply_transpose$2x3$2x3")
	if !ok {
		t.Fatalf("expected specialization multiply_transpose$2x3$2x3")
	}
	//
	if !fn.Result().Equals(ir.Tensor(3, 2)) {
		t.Errorf("expected result tensor<3x2xf64>, found %s", fn.Result())
	}
}

func Test_Infer_03(t *testing.T) {
	// Two calls at the same signature share one specialization.
	module := specializeValid(t, `
def f(a) { return transpose(a); }
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b = f(a);
  var c = f(a);
  print(b);
  print(c);
}`)
	//
	if n := len(module.Functions()); n != 2 {
		t.Errorf("expected 2 functions, found %d", n)
	}
}

func Test_Infer_04(t *testing.T) {
	// Distinct argument shapes produce distinct specializations.
	module := specializeValid(t, `
def f(a) { return transpose(a); }
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b<6> = [1, 2, 3, 4, 5, 6];
  print(f(a));
  print(f(b));
}`)
	//
	if _, ok := module.Function("f$2x3"); !ok {
		t.Errorf("expected specialization f$2x3")
	}
	//
	if _, ok := module.Function("f$6"); !ok {
		t.Errorf("expected specialization f$6")
	}
}

func Test_Infer_05(t *testing.T) {
	// Elementwise operands must agree exactly on shape.
	specializeInvalid(t, `
def multiply_transpose(a, b) {
  return transpose(a) * transpose(b);
}
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var c = multiply_transpose(a, a);
  var e = multiply_transpose(a, c);
}`, ir.ShapeMismatch)
}

func Test_Infer_06(t *testing.T) {
	specializeInvalid(t,
		"def f(a) { return f(a); } def main() { print(f([1])); }",
		ir.RecursiveSpecialization)
}

func Test_Infer_07(t *testing.T) {
	// Mutual recursion is caught just the same.
	specializeInvalid(t, `
def f(a) { return g(a); }
def g(a) { return f(a); }
def main() { print(f([1])); }`,
		ir.RecursiveSpecialization)
}

func Test_Infer_08(t *testing.T) {
	// Reshape must preserve the element count.
	specializeInvalid(t,
		"def main() { var a<3, 2> = [1, 2, 3]; print(a); }",
		ir.ReshapeSizeMismatch)
}

func Test_Infer_09(t *testing.T) {
	specializeInvalid(t,
		"def main() { var x = f([1]); print(x); }",
		ir.UndefinedSymbol)
}

func Test_Infer_10(t *testing.T) {
	// Transpose reverses the whole dimension sequence.
	module := specializeValid(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b = transpose(a);
  print(b);
}`)
	//
	if text := module.String(); !strings.Contains(text, "transpose %1 : tensor<3x2xf64>") {
		t.Errorf("expected transpose of type tensor<3x2xf64> in:\n%s", text)
	}
}

func Test_Infer_11(t *testing.T) {
	// Struct field types are pinned down by the construction literals.
	module := specializeValid(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2, 3], [4, 5]};
  print(p.a);
  print(p.b);
}`)
	//
	text := module.String()
	//
	if !strings.Contains(text, "field %0, a : tensor<3xf64>") {
		t.Errorf("expected field a of type tensor<3xf64> in:\n%s", text)
	}
	//
	if !strings.Contains(text, "field %0, b : tensor<2xf64>") {
		t.Errorf("expected field b of type tensor<2xf64> in:\n%s", text)
	}
}

func Test_Infer_12(t *testing.T) {
	specializeInvalid(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2], [3, 4]};
  print(p.c);
}`, ir.UndefinedSymbol)
}

func Test_Infer_13(t *testing.T) {
	// Print accepts tensors only.
	specializeInvalid(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2], [3, 4]};
  print(p);
}`, ir.TypeMismatch)
}

func Test_Infer_14(t *testing.T) {
	// Arity mismatches surface at the call site.
	specializeInvalid(t,
		"def f(a, b) { return a + b; } def main() { print(f([1])); }",
		ir.TypeMismatch)
}

func Test_Infer_15(t *testing.T) {
	// Specialization flows through nested generic calls.
	module := specializeValid(t, `
def double(a) { return a + a; }
def quadruple(a) { return double(double(a)); }
def main() {
  var a<2> = [1, 2];
  print(quadruple(a));
}`)
	//
	if _, ok := module.Function("double$2"); !ok {
		t.Errorf("expected specialization double$2")
	}
	//
	if _, ok := module.Function("quadruple$2"); !ok {
		t.Errorf("expected specialization quadruple$2")
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func specializeText(t *testing.T, text string) (*Module, error) {
	t.Helper()
	//
	parsed, errs := syntax.Parse(source.NewFile("test.tsl", []byte(text)))
	if len(errs) > 0 {
		t.Fatalf("unexpected syntax errors: %v", errs[0].Error())
	}
	//
	module, err := Build(parsed)
	if err != nil {
		t.Fatalf("unexpected build failure: %v", err)
	}
	//
	return Specialize(module)
}

func specializeValid(t *testing.T, text string) *Module {
	t.Helper()
	//
	module, err := specializeText(t, text)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	return module
}

func specializeInvalid(t *testing.T, text string, kind ir.ErrorKind) {
	t.Helper()
	//
	_, err := specializeText(t, text)
	//
	if err == nil {
		t.Fatalf("expected %s failure", kind)
	} else if !ir.IsKind(err, kind) {
		t.Fatalf("expected %s failure, found: %v", kind, err)
	}
}
