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
package interp_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tessel-lang/go-tessel/pkg/interp"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
	"github.com/tessel-lang/go-tessel/pkg/tessel"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

func Test_Interp_01(t *testing.T) {
	checkOutput(t, `
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  print(transpose(a));
}`,
		"[[1, 4], [2, 5], [3, 6]]\n")
}

func Test_Interp_02(t *testing.T) {
	checkOutput(t, `
def multiply_transpose(a, b) {
  return transpose(a) * transpose(b);
}
def main() {
  var a<2, 3> = [1, 2, 3, 4, 5, 6];
  var b<2, 3> = [1, 2, 3, 4, 5, 6];
  print(multiply_transpose(a, b));
}`,
		"[[1, 16], [4, 25], [9, 36]]\n")
}

func Test_Interp_03(t *testing.T) {
	// Bare numbers are rank-0 tensors, printed without brackets.
	checkOutput(t, `
def main() {
  var a = 1;
  var b = 2;
  print(a + b);
}`,
		"3\n")
}

func Test_Interp_04(t *testing.T) {
	checkOutput(t, `
struct Pair { a, b }
def main() {
  var p = Pair{[1, 2, 3], [4, 5]};
  print(p.a);
  print(p.b);
}`,
		"[1, 2, 3]\n[4, 5]\n")
}

func Test_Interp_05(t *testing.T) {
	// Without canonicalization the pipeline still executes, going through the
	// unfolded loops rather than folded constants.
	var (
		out    bytes.Buffer
		config = tessel.Config{Canonicalize: false}
	)
	//
	file := source.NewFile("test.tsl", []byte(
		"def main() { var a<3, 2> = [1, 2, 3, 4, 5, 6]; print(transpose(a)); }"))
	//
	if err := tessel.Execute(file, config, &out); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	if expected := "[[1, 3, 5], [2, 4, 6]]\n"; out.String() != expected {
		t.Errorf("unexpected output %q, expected %q", out.String(), expected)
	}
}

func Test_Interp_06(t *testing.T) {
	// Releasing the same allocation twice is caught.
	runInvalid(t, `func main() {
entry:
  r0 = alloc 8
  free r0
  free r0
  ret
}
`)
}

func Test_Interp_07(t *testing.T) {
	// An allocation which outlives main is a leak.
	runInvalid(t, `func main() {
entry:
  r0 = alloc 8
  ret
}
`)
}

func Test_Interp_08(t *testing.T) {
	// Accesses outside every live allocation are caught.
	runInvalid(t, `func main() {
entry:
  r0 = alloc 8
  r1 = iconst 8
  r2 = iadd r0, r1
  r3 = fload r2
  free r0
  ret
}
`)
}

func Test_Interp_09(t *testing.T) {
	// A non-terminating program runs out of its execution bound.
	program, err := low.Parse("func main() {\nentry:\n  br entry\n}\n")
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	var out bytes.Buffer
	//
	interpreter := interp.New(program, &out)
	interpreter.SetMaxSteps(1000)
	//
	if err := interpreter.Run("main"); !ir.IsKind(err, ir.BackendFailure) {
		t.Errorf("expected backend failure, found: %v", err)
	}
}

func Test_Interp_10(t *testing.T) {
	// Running an undefined function fails rather than panics.
	var out bytes.Buffer
	//
	if err := interp.New(&low.Program{}, &out).Run("main"); !ir.IsKind(err, ir.BackendFailure) {
		t.Errorf("expected backend failure, found: %v", err)
	}
}

func Test_Interp_11(t *testing.T) {
	// Hand-written register code executes directly: store a value and print it
	// under the scalar shape.
	program, err := low.Parse(`func main() {
entry:
  r0 = alloc 8
  r1 = fconst 7.5
  fstore r0, r1
  print r0, <>
  free r0
  ret
}
`)
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	var out bytes.Buffer
	//
	if err := interp.New(program, &out).Run("main"); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	if expected := "7.5\n"; out.String() != expected {
		t.Errorf("unexpected output %q, expected %q", out.String(), expected)
	}
}

func Test_Interp_12(t *testing.T) {
	// A main returning a tensor hands its buffer to the host, which releases
	// it after the run; this is ownership transfer, not a leak.
	checkOutput(t, `
def main() {
  var a<2> = [1, 2];
  print(a);
  return a;
}`,
		"[1, 2]\n")
}

// ===================================================================
// Test Helpers
// ===================================================================

// Execute a source program end to end, checking its printed output.
func checkOutput(t *testing.T, text string, expected string) {
	t.Helper()
	//
	var (
		out  bytes.Buffer
		file = source.NewFile("test.tsl", []byte(strings.TrimLeft(text, "\n")))
	)
	//
	if err := tessel.Execute(file, tessel.DefaultConfig, &out); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	if out.String() != expected {
		t.Errorf("unexpected output %q, expected %q", out.String(), expected)
	}
}

// Run a hand-written register program, expecting the memory discipline checks
// to reject it.
func runInvalid(t *testing.T, text string) {
	t.Helper()
	//
	program, err := low.Parse(text)
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	var out bytes.Buffer
	//
	if err := interp.New(program, &out).Run("main"); !ir.IsKind(err, ir.BackendFailure) {
		t.Errorf("expected backend failure, found: %v", err)
	}
}
