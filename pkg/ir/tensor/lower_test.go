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
	"github.com/tessel-lang/go-tessel/pkg/ir/affine"
)

func Test_Lower_01(t *testing.T) {
	// Constants unroll to one store per element; elementwise addition becomes
	// a loop nest.
	program := lowerText(t,
		"def main() { var c = [1, 2] + [3, 4]; print(c); }")
	//
	expected := `func main() {
  var v0<2>
  var v1<2>
  var v2<2>
  v0[0] = 1
  v0[1] = 2
  v1[0] = 3
  v1[1] = 4
  for i0 < 2 {
    v2[i0] = v0[i0] + v1[i0]
  }
  print v2
  return
}
`
	//
	if actual := program.String(); actual != expected {
		t.Errorf("unexpected loop form:\n%s\nexpected:\n%s", actual, expected)
	}
}

func Test_Lower_02(t *testing.T) {
	// Transpose reads the operand at the reversed index.
	program := lowerText(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  print(transpose(a));
}`)
	//
	expectLine(t, program, "v2[i1, i2] = v1[i2, i1]")
}

func Test_Lower_03(t *testing.T) {
	// Reshape is a flat element-order copy.
	program := lowerText(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  print(a);
}`)
	//
	expectLine(t, program, "for i0 < 6 {")
	expectLine(t, program, "v1[[i0]] = v0[[i0]]")
}

func Test_Lower_04(t *testing.T) {
	// Struct constants are laid out one buffer per field, and field access
	// aliases the field's buffer.
	program := lowerText(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2, 3], [4, 5]};
  print(p.b);
}`)
	//
	expectLine(t, program, "var v0_a<3>")
	expectLine(t, program, "var v0_b<2>")
	expectLine(t, program, "print v0_b")
}

func Test_Lower_05(t *testing.T) {
	// Multiplication nests one loop per dimension.
	program := lowerText(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var c = a * a;
  print(c);
}`)
	//
	expectLine(t, program, "for i1 < 2 {")
	expectLine(t, program, "for i2 < 3 {")
	expectLine(t, program, "v2[i1, i2] = v1[i1, i2] * v1[i1, i2]")
}

func Test_Lower_06(t *testing.T) {
	// A function result becomes a result shape plus a returned buffer.
	module := injectValid(t, `
func f(%arg0: tensor<2x3xf64>) -> tensor<3x2xf64> {
  %0 = transpose %arg0 : tensor<3x2xf64>
  return %0
}
`)
	//
	program, err := LowerToAffine(module)
	if err != nil {
		t.Fatalf("unexpected lowering failure: %v", err)
	}
	//
	expectLine(t, program, "func f(arg0<2x3>) -> <3x2> {")
	expectLine(t, program, "return v0")
}

func Test_Lower_07(t *testing.T) {
	// Calls must have been inlined away before lowering.
	module := injectValid(t, `
func f$2(%arg0: tensor<2xf64>) -> tensor<2xf64> {
  return %arg0
}

func main() {
  %0 = constant <2> [1, 2] : tensor<2xf64>
  %1 = call @f$2(%0) : tensor<2xf64>
  print %1
  return
}
`)
	//
	if _, err := LowerToAffine(module); !ir.IsKind(err, ir.TypeMismatch) {
		t.Errorf("expected type mismatch failure, found: %v", err)
	}
}

func Test_Lower_08(t *testing.T) {
	// Lowered programs satisfy the loop-level structural invariants.
	program := lowerText(t, `
struct Pair { a, b }
def multiply_transpose(x, y) {
  return transpose(x) * transpose(y);
}
def main() {
  var p = Pair{[1, 2, 3, 4, 5, 6], [6, 5, 4, 3, 2, 1]};
  var a<2, 3> = p.a;
  var b<2, 3> = p.b;
  print(multiply_transpose(a, b));
}`)
	//
	if err := program.Validate(); err != nil {
		t.Errorf("unexpected validation failure: %v", err)
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

// Compile source text to the loop level, without canonicalization (which
// would fold constant programs away entirely) unless calls require inlining.
func lowerText(t *testing.T, text string) *affine.Program {
	t.Helper()
	//
	module := specializeValid(t, text)
	// Inline any calls, leaving straight-line functions alone.
	if strings.Contains(module.String(), "call") {
		module.Canonicalize()
	}
	//
	program, err := LowerToAffine(module)
	if err != nil {
		t.Fatalf("unexpected lowering failure: %v", err)
	}
	//
	return program
}

func injectValid(t *testing.T, text string) *Module {
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
	return module
}

func expectLine(t *testing.T, program interface{ String() string }, line string) {
	t.Helper()
	//
	text := program.String()
	//
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == strings.TrimSpace(line) {
			return
		}
	}
	//
	t.Errorf("expected line %q in:\n%s", line, text)
}
