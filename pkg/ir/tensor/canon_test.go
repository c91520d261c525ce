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
)

func Test_Canon_01(t *testing.T) {
	// transpose(transpose(x)) --> x
	checkCanon(t, `
func f(%arg0: tensor<2x3xf64>) -> tensor<2x3xf64> {
  %0 = transpose %arg0 : tensor<3x2xf64>
  %1 = transpose %0 : tensor<2x3xf64>
  return %1
}
`, `
func f(%arg0: tensor<2x3xf64>) -> tensor<2x3xf64> {
  return %arg0
}
`)
}

func Test_Canon_02(t *testing.T) {
	// An identity reshape disappears.
	checkCanon(t, `
func f(%arg0: tensor<2x3xf64>) -> tensor<2x3xf64> {
  %0 = reshape %arg0, <2x3> : tensor<2x3xf64>
  return %0
}
`, `
func f(%arg0: tensor<2x3xf64>) -> tensor<2x3xf64> {
  return %arg0
}
`)
}

func Test_Canon_03(t *testing.T) {
	// reshape(reshape(x, s1), s2) --> reshape(x, s2)
	checkCanon(t, `
func f(%arg0: tensor<6xf64>) -> tensor<3x2xf64> {
  %0 = reshape %arg0, <2x3> : tensor<2x3xf64>
  %1 = reshape %0, <3x2> : tensor<3x2xf64>
  return %1
}
`, `
func f(%arg0: tensor<6xf64>) -> tensor<3x2xf64> {
  %0 = reshape %arg0, <3x2> : tensor<3x2xf64>
  return %0
}
`)
}

func Test_Canon_04(t *testing.T) {
	// An identity cast disappears.
	checkCanon(t, `
func f(%arg0: tensor<2xf64>) -> tensor<2xf64> {
  %0 = cast %arg0 : tensor<2xf64>
  return %0
}
`, `
func f(%arg0: tensor<2xf64>) -> tensor<2xf64> {
  return %arg0
}
`)
}

func Test_Canon_05(t *testing.T) {
	// Unused pure operations are eliminated; print is an effect and stays.
	checkCanon(t, `
func f(%arg0: tensor<2xf64>) {
  %0 = transpose %arg0 : tensor<2xf64>
  print %arg0
  return
}
`, `
func f(%arg0: tensor<2xf64>) {
  print %arg0
  return
}
`)
}

func Test_Canon_06(t *testing.T) {
	// Elementwise addition of constants folds.
	module := canonSource(t,
		"def main() { var c = [1, 2] + [3, 4]; print(c); }")
	//
	expectText(t, module, "constant <2> [4, 6] : tensor<2xf64>")
	expectNoText(t, module, "add")
}

func Test_Canon_07(t *testing.T) {
	// Elementwise multiplication of constants folds.
	module := canonSource(t,
		"def main() { var c = [1, 2, 3] * [2, 2, 2]; print(c); }")
	//
	expectText(t, module, "constant <3> [2, 4, 6] : tensor<3xf64>")
}

func Test_Canon_08(t *testing.T) {
	// Transposing a constant folds, permuting the data row-major.
	module := canonSource(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  print(transpose(a));
}`)
	//
	expectText(t, module, "constant <3x2> [1, 4, 2, 5, 3, 6] : tensor<3x2xf64>")
	expectNoText(t, module, "transpose")
}

func Test_Canon_09(t *testing.T) {
	// Field access on a struct constant folds to the field's literal, after
	// which the struct constant itself is dead.
	module := canonSource(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2, 3], [4, 5]};
  print(p.b);
}`)
	//
	expectText(t, module, "constant <2> [4, 5] : tensor<2xf64>")
	expectNoText(t, module, "field")
	expectNoText(t, module, "constant Pair")
}

func Test_Canon_10(t *testing.T) {
	// Calls are inlined and the inlined specializations dropped.
	module := canonSource(t, `
def double(a) { return a + a; }
def main() {
  var a<2> = [1, 2];
  print(double(a));
}`)
	//
	if n := len(module.Functions()); n != 1 {
		t.Errorf("expected 1 function after inlining, found %d", n)
	}
	//
	expectNoText(t, module, "call")
	expectText(t, module, "constant <2> [2, 4] : tensor<2xf64>")
}

func Test_Canon_11(t *testing.T) {
	// Nested calls are inlined transitively.
	module := canonSource(t, `
def double(a) { return a + a; }
def quadruple(a) { return double(double(a)); }
def main() {
  var a<2> = [1, 2];
  print(quadruple(a));
}`)
	//
	if n := len(module.Functions()); n != 1 {
		t.Errorf("expected 1 function after inlining, found %d", n)
	}
	//
	expectText(t, module, "constant <2> [4, 8] : tensor<2xf64>")
}

func Test_Canon_12(t *testing.T) {
	// Canonicalization is idempotent: a second pass changes nothing.
	module := canonSource(t, `
def multiply_transpose(a, b) {
  return transpose(a) * transpose(b);
}
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b<2, 3> = [6, 5, 4, 3, 2, 1];
  print(multiply_transpose(a, b));
}`)
	//
	first := module.String()
	module.Canonicalize()
	//
	if second := module.String(); first != second {
		t.Errorf("canonicalization not idempotent:\n%s\nversus:\n%s", first, second)
	}
}

func Test_Canon_13(t *testing.T) {
	// Inlining substitutes arguments for parameters even when nothing folds:
	// the inlined body of f survives in terms of main's values.
	module := injectCanon(t, `
func f$2(%arg0: tensor<2xf64>) -> tensor<2xf64> {
  %0 = transpose %arg0 : tensor<2xf64>
  return %0
}

func main() {
  %0 = constant <2> [1, 2] : tensor<2xf64>
  %1 = call @f$2(%0) : tensor<2xf64>
  print %1
  return
}
`)
	//
	if n := len(module.Functions()); n != 1 {
		t.Errorf("expected 1 function after inlining, found %d", n)
	}
	// The transpose folds into the constant, leaving just the print.
	expectText(t, module, "constant <2> [1, 2] : tensor<2xf64>")
	expectNoText(t, module, "call")
}

func Test_Canon_14(t *testing.T) {
	// A parameterless function stays callable as an entry point, even when
	// some other function called (and inlined) it.
	module := canonSource(t, `
def main() { print([1, 2]); }
def other() { main(); }`)
	//
	if _, ok := module.Function("main"); !ok {
		t.Errorf("expected main to survive inlining")
	}
	//
	if n := len(module.Functions()); n != 2 {
		t.Errorf("expected 2 functions, found %d", n)
	}
	//
	expectNoText(t, module, "call")
}

// ===================================================================
// Test Helpers
// ===================================================================

// Parse a tensor-level module, canonicalize it, and check the result prints
// exactly as expected (modulo leading whitespace).
func checkCanon(t *testing.T, before string, after string) {
	t.Helper()
	//
	module := injectCanon(t, before)
	//
	var (
		expected = strings.TrimLeft(after, "\n")
		actual   = module.String()
	)
	//
	if actual != expected {
		t.Errorf("unexpected canonical form:\n%s\nexpected:\n%s", actual, expected)
	}
}

// Parse and canonicalize a tensor-level module.
func injectCanon(t *testing.T, text string) *Module {
	t.Helper()
	//
	module, err := Parse(strings.TrimLeft(text, "\n"))
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	if err := module.Validate(); err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	//
	module.Canonicalize()
	//
	return module
}

// Compile source text to the (canonicalized) tensor level.
func canonSource(t *testing.T, text string) *Module {
	t.Helper()
	//
	module := specializeValid(t, text)
	module.Canonicalize()
	//
	return module
}

func expectText(t *testing.T, module *Module, fragment string) {
	t.Helper()
	//
	if text := module.String(); !strings.Contains(text, fragment) {
		t.Errorf("expected %q in:\n%s", fragment, text)
	}
}

func expectNoText(t *testing.T, module *Module, fragment string) {
	t.Helper()
	//
	if text := module.String(); strings.Contains(text, fragment) {
		t.Errorf("unexpected %q in:\n%s", fragment, text)
	}
}
