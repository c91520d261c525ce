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
	"math"
	"strings"
	"testing"

	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
)

func Test_Low_01(t *testing.T) {
	// Straight-line code: every local is allocated up front and released on
	// the way out.
	program := lowerValid(t, `
func main() {
  var v0<2>
  v0[0] = 1
  v0[1] = 2
  print v0
  return
}
`)
	//
	expected := `func main() {
entry:
  r0 = alloc 16
  r1 = fconst 1
  r2 = iconst 0
  r3 = iadd r0, r2
  fstore r3, r1
  r4 = fconst 2
  r5 = iconst 8
  r6 = iadd r0, r5
  fstore r6, r4
  print r0, <2>
  free r0
  ret
}
`
	//
	if actual := program.String(); actual != expected {
		t.Errorf("unexpected register form:\n%s\nexpected:\n%s", actual, expected)
	}
}

func Test_Low_02(t *testing.T) {
	// A loop lowers to the head / body / exit triangle, with the counter
	// updated in place on the back edge.
	program := lowerValid(t, `
func main() {
  var v0<2>
  for i0 < 2 {
    v0[i0] = 1
  }
  print v0
  return
}
`)
	//
	expectInstr(t, program, "head0:")
	expectInstr(t, program, "body0:")
	expectInstr(t, program, "exit0:")
	expectInstr(t, program, "condbr r3, body0, exit0")
	expectInstr(t, program, "r1 = iadd r1, r8")
	expectInstr(t, program, "br head0")
}

func Test_Low_03(t *testing.T) {
	// The returned buffer is handed to the caller, not released; every other
	// local is released exactly once.
	program := lowerValid(t, `
func f() -> <2> {
  var v0<2>
  var v1<2>
  v0[0] = 1
  v1[0] = 2
  return v0
}
`)
	//
	text := program.String()
	//
	expectInstr(t, program, "free r1")
	expectInstr(t, program, "ret r0")
	//
	if strings.Contains(text, "free r0") {
		t.Errorf("result buffer must not be released:\n%s", text)
	}
}

func Test_Low_04(t *testing.T) {
	// Parameter buffers are owned by the caller and never released; flat
	// references stride by single elements.
	program := lowerValid(t, `
func f(arg0<2x3>) -> <6> {
  var v0<6>
  for i0 < 6 {
    v0[[i0]] = arg0[[i0]]
  }
  return v0
}
`)
	//
	text := program.String()
	//
	expectInstr(t, program, "func f(r0) {")
	expectInstr(t, program, "ret r1")
	//
	if strings.Contains(text, "free") {
		t.Errorf("nothing to release here:\n%s", text)
	}
	//
	if !strings.Contains(text, "imul") {
		t.Errorf("expected scaled index arithmetic in:\n%s", text)
	}
}

func Test_Low_05(t *testing.T) {
	// Buffers whose byte size overflows are rejected.
	fn := &Function{
		Name:   "f",
		Locals: []Buffer{{Name: "v0", Shape: []int{math.MaxInt64 / 2, 4}}},
	}
	//
	program := &Program{Funcs: []*Function{fn}}
	//
	if _, err := LowerToLow(program); !ir.IsKind(err, ir.ElementCountOverflow) {
		t.Errorf("expected element count overflow, found: %v", err)
	}
}

func Test_Low_06(t *testing.T) {
	// The textual form round-trips through the parser.
	text := `func main() {
  var v0<2x3>
  var v1<3x2>
  v0[0, 0] = 1
  for i0 < 3 {
    for i1 < 2 {
      v1[i0, i1] = v0[i1, i0] + v0[i1, i0]
    }
  }
  v1[[0]] = 5
  print v1
  return
}
`
	//
	program, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	if actual := program.String(); actual != text {
		t.Errorf("round trip mismatch:\n%s\nversus:\n%s", actual, text)
	}
}

func Test_Low_07(t *testing.T) {
	// A loop variable cannot be referenced outside its loop.
	program, err := Parse(`func main() {
  var v0<2>
  for i0 < 2 {
    v0[i0] = 1
  }
  v0[i0] = 2
  return
}
`)
	//
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	if err := program.Validate(); err == nil {
		t.Errorf("expected validation failure")
	}
}

func Test_Low_08(t *testing.T) {
	// The shape returned must match the declared result shape.
	program, err := Parse(`func f() -> <3> {
  var v0<2>
  return v0
}
`)
	//
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	if err := program.Validate(); err == nil {
		t.Errorf("expected validation failure")
	}
}

func Test_Low_09(t *testing.T) {
	// Two early-return paths: a return inside the loop body and one after it.
	// Each exit releases every non-result local exactly once, and never the
	// buffer it returns.
	program := lowerValid(t, `
func f() -> <2> {
  var v0<2>
  var v1<2>
  for i0 < 2 {
    v0[i0] = 1
    return v0
  }
  return v1
}
`)
	//
	expected := `func f() {
entry:
  r0 = alloc 16
  r1 = alloc 16
  r2 = iconst 0
  br head0
head0:
  r3 = iconst 2
  r4 = icmplt r2, r3
  condbr r4, body0, exit0
body0:
  r5 = fconst 1
  r6 = iconst 8
  r7 = imul r2, r6
  r8 = iadd r0, r7
  fstore r8, r5
  free r1
  ret r0
exit0:
  free r0
  ret r1
}
`
	//
	if actual := program.String(); actual != expected {
		t.Errorf("unexpected register form:\n%s\nexpected:\n%s", actual, expected)
	}
	//
	text := program.String()
	//
	if strings.Count(text, "free r0") != 1 || strings.Count(text, "free r1") != 1 {
		t.Errorf("expected each buffer released on exactly one path:\n%s", text)
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func lowerValid(t *testing.T, text string) *low.Program {
	t.Helper()
	//
	program, err := Parse(strings.TrimLeft(text, "\n"))
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	if err := program.Validate(); err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	//
	lowered, err := LowerToLow(program)
	if err != nil {
		t.Fatalf("unexpected lowering failure: %v", err)
	}
	//
	return lowered
}

func expectInstr(t *testing.T, program *low.Program, line string) {
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
	t.Errorf("expected %q in:\n%s", line, text)
}
