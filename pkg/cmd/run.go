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
	"os"

	"github.com/spf13/cobra"
	"github.com/tessel-lang/go-tessel/pkg/interp"
	"github.com/tessel-lang/go-tessel/pkg/tessel"
)

// runCmd compiles a program all the way down and executes it on the
// reference backend.
var runCmd = &cobra.Command{
	Use:   "run [flags] program_file",
	Short: "Compile and execute a program.",
	Long: `Compile a program down to register code and execute its main
function, printing tensors to standard output.  With --from, a program
written at the tensor, affine or low level is accepted directly.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		program, err := loadProgram(args[0], GetString(cmd, "from"), true)
		if err == nil {
			program, err = lowerProgram(program, levelLow)
		}
		//
		if err != nil {
			reportError(err)
			os.Exit(2)
		}
		//
		interpreter := interp.New(program.low, os.Stdout)
		//
		if steps := GetUint(cmd, "max-steps"); steps != 0 {
			interpreter.SetMaxSteps(uint64(steps))
		}
		//
		if err := interpreter.Run(tessel.MainFunction); err != nil {
			reportError(err)
			os.Exit(2)
		}
	},
}

func init() {
	runCmd.Flags().String("from", levelSource, "representation level of the input (source, tensor, affine, low)")
	runCmd.Flags().Uint("max-steps", 0, "bound the number of executed instructions (0 for the default bound)")
	rootCmd.AddCommand(runCmd)
}
