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
	"testing"
)

func Test_LowParse_01(t *testing.T) {
	// Every instruction kind round-trips through the parser.
	text := `func f(r0) {
entry:
  r1 = alloc 16
  r2 = iconst 0
  r3 = fconst 1.5
  r4 = iadd r2, r2
  r5 = imul r2, r2
  r6 = icmplt r2, r4
  r7 = fadd r3, r3
  r8 = fmul r3, r3
  r9 = fload r1
  fstore r1, r9
  condbr r6, body, exit
body:
  br exit
exit:
  print r1, <2>
  free r1
  ret r1
}
`
	//
	program := parseValid(t, text)
	//
	if actual := program.String(); actual != text {
		t.Errorf("round trip mismatch:\n%s\nversus:\n%s", actual, text)
	}
	//
	fn, ok := program.Function("f")
	if !ok {
		t.Fatalf("expected function f")
	}
	//
	if fn.NumParams != 1 || fn.NumRegs != 10 {
		t.Errorf("expected 1 parameter and 10 registers, found %d and %d", fn.NumParams, fn.NumRegs)
	}
}

func Test_LowParse_02(t *testing.T) {
	// Scalars print under the empty shape; ret may carry no result.
	text := `func main() {
entry:
  r0 = alloc 8
  print r0, <>
  free r0
  ret
}
`
	//
	program := parseValid(t, text)
	//
	if actual := program.String(); actual != text {
		t.Errorf("round trip mismatch:\n%s\nversus:\n%s", actual, text)
	}
	//
	fn, _ := program.Function("main")
	//
	if ret := fn.Blocks[0].Instrs[3]; ret.A != NoReg {
		t.Errorf("expected resultless return, found r%d", ret.A)
	}
}

func Test_LowParse_03(t *testing.T) {
	parseInvalid(t, "func f() {\nentry:\n  r0 = frobnicate r1\n}\n")
}

func Test_LowParse_04(t *testing.T) {
	// Instructions must sit under a label.
	parseInvalid(t, "func f() {\n  ret\n}\n")
}

func Test_LowParse_05(t *testing.T) {
	parseInvalid(t, "func f() {\nentry:\n  ret\n")
}

// ===================================================================
// Test Helpers
// ===================================================================

func parseValid(t *testing.T, text string) *Program {
	t.Helper()
	//
	program, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected parse failure: %v", err)
	}
	//
	return program
}

func parseInvalid(t *testing.T, text string) {
	t.Helper()
	//
	if _, err := Parse(text); err == nil {
		t.Fatalf("expected parse failure")
	}
}
