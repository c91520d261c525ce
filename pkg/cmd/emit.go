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
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tessel-lang/go-tessel/pkg/ir/affine"
	"github.com/tessel-lang/go-tessel/pkg/ir/low"
	"github.com/tessel-lang/go-tessel/pkg/ir/tensor"
	"github.com/tessel-lang/go-tessel/pkg/tessel"
)

// emitCmd prints a program at a chosen level of the compilation pipeline.
var emitCmd = &cobra.Command{
	Use:   "emit [flags] program_file",
	Short: "Emit a program at a chosen representation level.",
	Long: `Compile a program and print the chosen intermediate representation.
The input need not be source text: with --from, a program written at the
tensor, affine or low level is accepted directly and lowered from there.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		var (
			canon  = !GetFlag(cmd, "raw")
			target = GetString(cmd, "ir")
		)
		//
		program, err := loadProgram(args[0], GetString(cmd, "from"), canon)
		if err == nil {
			program, err = lowerProgram(program, target)
		}
		//
		if err != nil {
			reportError(err)
			os.Exit(2)
		}
		//
		switch target {
		case levelTensor:
			fmt.Print(program.tensor.String())
		case levelAffine:
			fmt.Print(program.affine.String())
		case levelLow:
			fmt.Print(program.low.String())
		}
	},
}

// Names of the representation levels, as used by --ir and --from.
const (
	levelSource = "source"
	levelTensor = "tensor"
	levelAffine = "affine"
	levelLow    = "low"
)

// Rank of each representation level within the pipeline.
func levelRank(level string) (int, error) {
	switch level {
	case levelSource:
		return 0, nil
	case levelTensor:
		return 1, nil
	case levelAffine:
		return 2, nil
	case levelLow:
		return 3, nil
	default:
		return 0, errors.Errorf("unknown representation level %q", level)
	}
}

// Program holds a program at exactly one representation level.
type program struct {
	level  string
	tensor *tensor.Module
	affine *affine.Program
	low    *low.Program
}

// LoadProgram reads a program file at a given level.  Source files are
// compiled to the tensor level; programs injected at an intermediate level
// are parsed and validated.
func loadProgram(filename string, from string, canon bool) (program, error) {
	if _, err := levelRank(from); err != nil {
		return program{}, err
	}
	//
	srcfile := readSourceFiles([]string{filename})[0]
	text := string(srcfile.Contents())
	//
	switch from {
	case levelSource:
		module, err := tessel.Compile(&srcfile, tessel.Config{Canonicalize: canon})
		if err != nil {
			return program{}, err
		}
		//
		return program{level: levelTensor, tensor: module}, nil
	case levelTensor:
		module, err := tensor.Parse(text)
		if err != nil {
			return program{}, err
		}
		//
		if err := module.Validate(); err != nil {
			return program{}, err
		}
		//
		if canon {
			module.Canonicalize()
		}
		//
		return program{level: levelTensor, tensor: module}, nil
	case levelAffine:
		loops, err := affine.Parse(text)
		if err != nil {
			return program{}, err
		}
		//
		if err := loops.Validate(); err != nil {
			return program{}, err
		}
		//
		return program{level: levelAffine, affine: loops}, nil
	default:
		flat, err := low.Parse(text)
		if err != nil {
			return program{}, err
		}
		//
		return program{level: levelLow, low: flat}, nil
	}
}

// LowerProgram lowers a loaded program, stage by stage, to a given target
// level.
func lowerProgram(p program, target string) (program, error) {
	var (
		have, err1 = levelRank(p.level)
		want, err2 = levelRank(target)
	)
	//
	if err1 != nil {
		return program{}, err1
	} else if err2 != nil {
		return program{}, err2
	} else if want < have {
		return program{}, errors.Errorf("cannot raise a %s-level program to the %s level", p.level, target)
	}
	//
	for p.level != target {
		switch p.level {
		case levelTensor:
			loops, err := tensor.LowerToAffine(p.tensor)
			if err != nil {
				return program{}, err
			}
			//
			p = program{level: levelAffine, affine: loops}
		case levelAffine:
			flat, err := affine.LowerToLow(p.affine)
			if err != nil {
				return program{}, err
			}
			//
			p = program{level: levelLow, low: flat}
		}
	}
	//
	return p, nil
}

func init() {
	emitCmd.Flags().String("ir", levelTensor, "representation level to emit (tensor, affine, low)")
	emitCmd.Flags().String("from", levelSource, "representation level of the input (source, tensor, affine, low)")
	emitCmd.Flags().Bool("raw", false, "skip canonicalization of the tensor level")
	rootCmd.AddCommand(emitCmd)
}
