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

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/tessel-lang/go-tessel/pkg/ir/affine"
	"github.com/tessel-lang/go-tessel/pkg/ir/tensor"
)

// debugCmd summarises the compiled form of a program, which is useful for
// eyeballing what specialization and canonicalization did to it.
var debugCmd = &cobra.Command{
	Use:   "debug [flags] program_file",
	Short: "Summarise the compiled form of a program.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		program, err := loadProgram(args[0], GetString(cmd, "from"), !GetFlag(cmd, "raw"))
		if err != nil {
			reportError(err)
			os.Exit(2)
		}
		//
		if program.level != levelTensor {
			fmt.Println("debug requires a source or tensor-level program")
			os.Exit(2)
		}
		//
		summariseTensor(program.tensor)
		//
		if GetFlag(cmd, "lower") {
			loops, err := tensor.LowerToAffine(program.tensor)
			if err != nil {
				reportError(err)
				os.Exit(2)
			}
			//
			summariseAffine(loops)
		}
	},
}

func summariseTensor(module *tensor.Module) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Function", "Params", "Result", "Ops", "Consts", "Calls"})
	//
	for _, fn := range module.Functions() {
		var ops, consts, calls int
		//
		for i := 0; i < fn.NumOps(); i++ {
			op := fn.Op(fn.ValueOf(i))
			//
			switch op.Opcode {
			case tensor.OpNop:
				continue
			case tensor.OpConstant:
				consts++
			case tensor.OpCall:
				calls++
			}
			//
			ops++
		}
		//
		table.Append([]string{
			fn.Name(),
			fmt.Sprintf("%d", fn.NumParams()),
			fn.Result().String(),
			fmt.Sprintf("%d", ops),
			fmt.Sprintf("%d", consts),
			fmt.Sprintf("%d", calls),
		})
	}
	//
	table.Render()
}

func summariseAffine(program *affine.Program) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Function", "Buffers", "Elements", "Loops", "Stores"})
	//
	for _, fn := range program.Funcs {
		var elements int
		//
		for _, b := range fn.Locals {
			elements += b.Count()
		}
		//
		loops, stores := countStmts(fn.Body)
		//
		table.Append([]string{
			fn.Name,
			fmt.Sprintf("%d", len(fn.Locals)),
			fmt.Sprintf("%d", elements),
			fmt.Sprintf("%d", loops),
			fmt.Sprintf("%d", stores),
		})
	}
	//
	table.Render()
}

func countStmts(body []affine.Stmt) (loops int, stores int) {
	for _, stmt := range body {
		switch stmt.Kind {
		case affine.StmtLoop:
			inner, innerStores := countStmts(stmt.Body)
			loops += 1 + inner
			stores += innerStores
		case affine.StmtStore:
			stores++
		}
	}
	//
	return loops, stores
}

func init() {
	debugCmd.Flags().String("from", levelSource, "representation level of the input (source, tensor)")
	debugCmd.Flags().Bool("raw", false, "skip canonicalization of the tensor level")
	debugCmd.Flags().Bool("lower", false, "additionally summarise the loop level")
	rootCmd.AddCommand(debugCmd)
}
