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
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessel-lang/go-tessel/pkg/tessel"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Get an expected flag, or panic if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// Get an expected string, or panic if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// Get an expected uint, or panic if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// Read a given set of source files from disk, in parallel, exiting with a
// sensible message on failure.
func readSourceFiles(filenames []string) []source.File {
	var (
		files = make([]source.File, len(filenames))
		group errgroup.Group
	)
	//
	for i, filename := range filenames {
		i, filename := i, filename
		//
		group.Go(func() error {
			bytes, err := os.ReadFile(filename)
			if err != nil {
				return err
			}
			//
			files[i] = *source.NewFile(filename, bytes)
			//
			return nil
		})
	}
	//
	if err := group.Wait(); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return files
}

// Report a compilation failure.  Syntax errors are printed with their
// enclosing source line and a highlight; other errors print their
// conventional rendering.
func reportError(err error) {
	errs := tessel.SyntaxErrors(err)
	//
	if len(errs) == 0 {
		fmt.Println(err)
		return
	}
	//
	for _, e := range errs {
		printSyntaxError(&e)
	}
}

// Print a syntax error with appropriate highlighting.
func printSyntaxError(err *source.SyntaxError) {
	var (
		line  = err.FirstEnclosingLine()
		start = err.Span().Start() - line.Start()
		width = err.Span().Length()
	)
	// Error + line number
	fmt.Printf("%s\n", err.Error())
	// Truncate to the terminal, when the line is unreasonably long.
	text := line.String()
	//
	if cols, ok := terminalWidth(); ok && len(text) > cols {
		text = text[:cols]
	}
	// Clamp the highlight onto the (possibly truncated) line.
	if start >= len(text) {
		start, width = len(text), 1
	} else if start+width > len(text) {
		width = len(text) - start
	}
	//
	fmt.Println(text)
	fmt.Print(strings.Repeat(" ", start))
	fmt.Println(strings.Repeat("^", max(width, 1)))
}

// Determine the width of the enclosing terminal, where there is one.
func terminalWidth() (int, bool) {
	fd := int(os.Stdout.Fd())
	//
	if !term.IsTerminal(fd) {
		return 0, false
	}
	//
	cols, _, err := term.GetSize(fd)
	if err != nil || cols <= 0 {
		return 0, false
	}
	//
	return cols, true
}
