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
package tessel

import (
	"bytes"
	"testing"

	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

func Test_Pipeline_01(t *testing.T) {
	// A well-formed program compiles down to a call-free tensor module.
	module, err := Compile(srcfile(`
def double(a) { return a + a; }
def main() {
  var a<2> = [1, 2];
  print(double(a));
}`), DefaultConfig)
	//
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	if n := len(module.Functions()); n != 1 {
		t.Errorf("expected 1 function after canonicalization, found %d", n)
	}
}

func Test_Pipeline_02(t *testing.T) {
	// Every syntax error is recoverable from the folded compilation error.
	_, err := Compile(srcfile("def f( { }\ndef g() { var = 1; }"), DefaultConfig)
	//
	if err == nil {
		t.Fatalf("expected compilation failure")
	}
	//
	if errs := SyntaxErrors(err); len(errs) != 2 {
		t.Errorf("expected 2 syntax errors, found %d", len(errs))
	}
}

func Test_Pipeline_03(t *testing.T) {
	// Non-syntax failures carry no syntax errors.
	_, err := Compile(srcfile("def main() { print(f([1])); }"), DefaultConfig)
	//
	if !ir.IsKind(err, ir.UndefinedSymbol) {
		t.Fatalf("expected undefined symbol failure, found: %v", err)
	}
	//
	if errs := SyntaxErrors(err); errs != nil {
		t.Errorf("unexpected syntax errors: %v", errs)
	}
}

func Test_Pipeline_04(t *testing.T) {
	// An executable program must define main.
	var out bytes.Buffer
	//
	err := Execute(srcfile("def f(a) { return a; }"), DefaultConfig, &out)
	//
	if !ir.IsKind(err, ir.UndefinedSymbol) {
		t.Errorf("expected undefined symbol failure, found: %v", err)
	}
}

func Test_Pipeline_05(t *testing.T) {
	var out bytes.Buffer
	//
	err := Execute(srcfile(`
def main() {
  var a<2, 2> = [1, 2, 3, 4];
  print(a);
}`), DefaultConfig, &out)
	//
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	//
	if expected := "[[1, 2], [3, 4]]\n"; out.String() != expected {
		t.Errorf("unexpected output %q, expected %q", out.String(), expected)
	}
}

func Test_Pipeline_06(t *testing.T) {
	// Shape failures surface during compilation, not execution.
	var out bytes.Buffer
	//
	err := Execute(srcfile(`
def main() {
  var a<2> = [1, 2];
  var b<3> = [1, 2, 3];
  print(a + b);
}`), DefaultConfig, &out)
	//
	if !ir.IsKind(err, ir.ShapeMismatch) {
		t.Errorf("expected shape mismatch failure, found: %v", err)
	}
	//
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func srcfile(text string) *source.File {
	return source.NewFile("test.tsl", []byte(text))
}
