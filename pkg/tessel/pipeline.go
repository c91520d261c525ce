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

// Package tessel ties the compilation stages into a pipeline: source text is
// parsed and built into the tensor level, specialized into concrete shapes,
// canonicalized, then lowered through the loop level down to register code,
// which the reference backend can execute.  Each stage is also usable on its
// own, e.g. for programs injected directly at some intermediate level.
package tessel

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/tessel-lang/go-tessel/pkg/interp"
	"github.com/tessel-lang/go-tessel/pkg/ir"
	"github.com/tessel-lang/go-tessel/pkg/ir/affine"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
	"github.com/tessel-lang/go-tessel/pkg/ir/tensor"
	"github.com/tessel-lang/go-tessel/pkg/syntax"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
	"go.uber.org/multierr"
)

// MainFunction names the entry point an executable program must define.
const MainFunction = "main"

// Config determines how the pipeline behaves.
type Config struct {
	// Canonicalize the tensor module after specialization.  Without this,
	// lowering will reject modules still containing calls.
	Canonicalize bool
}

// DefaultConfig is the configuration used by the command-line tools.
var DefaultConfig = Config{
	Canonicalize: true,
}

// Compile takes a source file down to the tensor level: parse, build,
// specialize and (subject to the configuration) canonicalize.  Syntax errors
// are folded into the returned error, and recoverable via SyntaxErrors.
func Compile(srcfile *source.File, config Config) (*tensor.Module, error) {
	log.Debugf("compiling %s", srcfile.Filename())
	//
	parsed, errs := syntax.Parse(srcfile)
	if len(errs) > 0 {
		return nil, foldSyntaxErrors(errs)
	}
	//
	module, err := tensor.Build(parsed)
	if err != nil {
		return nil, err
	}
	//
	specialized, err := tensor.Specialize(module)
	if err != nil {
		return nil, err
	}
	//
	if config.Canonicalize {
		specialized.Canonicalize()
	}
	//
	return specialized, nil
}

// Lower takes a tensor-level module down to register code.
func Lower(module *tensor.Module) (*low.Program, error) {
	loops, err := tensor.LowerToAffine(module)
	if err != nil {
		return nil, err
	}
	//
	return affine.LowerToLow(loops)
}

// Execute compiles a source file all the way down and runs its main function,
// writing printed tensors to the given output.
func Execute(srcfile *source.File, config Config, out io.Writer) error {
	module, err := Compile(srcfile, config)
	if err != nil {
		return err
	}
	//
	if _, ok := module.Function(MainFunction); !ok {
		return ir.NewError(ir.UndefinedSymbol, "%s defines no %s function",
			srcfile.Filename(), MainFunction)
	}
	//
	program, err := Lower(module)
	if err != nil {
		return err
	}
	//
	return interp.New(program, out).Run(MainFunction)
}

// FoldSyntaxErrors combines a batch of syntax errors into a single error
// value, preserving the individual errors for later recovery.
func foldSyntaxErrors(errs []source.SyntaxError) error {
	var folded error
	//
	for i := range errs {
		folded = multierr.Append(folded, &errs[i])
	}
	//
	return folded
}

// SyntaxErrors recovers the individual syntax errors folded into an error
// returned by Compile, or nil if the error carries none.
func SyntaxErrors(err error) []source.SyntaxError {
	var errs []source.SyntaxError
	//
	for _, e := range multierr.Errors(err) {
		if syntaxError, ok := e.(*source.SyntaxError); ok {
			errs = append(errs, *syntaxError)
		}
	}
	//
	return errs
}
