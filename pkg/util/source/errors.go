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
package source

import (
	"fmt"
)

// SyntaxError is a structured error which retains the span of the original
// text on which the error is reported, along with the enclosing source file.
type SyntaxError struct {
	srcfile *File
	// Span of the original text on which this error is reported.
	span Span
	// Error message being reported.
	msg string
}

// SourceFile returns the underlying source file that this syntax error covers.
func (p *SyntaxError) SourceFile() *File {
	return p.srcfile
}

// Span returns the span of the original text on which this error is reported.
func (p *SyntaxError) Span() Span {
	return p.span
}

// Message returns the message to be reported.
func (p *SyntaxError) Message() string {
	return p.msg
}

// FirstEnclosingLine determines the first line in this source file to which
// this error is associated.
func (p *SyntaxError) FirstEnclosingLine() Line {
	return p.srcfile.EnclosingLine(p.span)
}

// Error implements the error interface, reporting the error in a conventional
// "file:line:column" form.
func (p *SyntaxError) Error() string {
	line := p.FirstEnclosingLine()
	col := p.span.Start() - line.Start()
	//
	return fmt.Sprintf("%s:%d:%d: %s", p.srcfile.Filename(), line.Number(), 1+col, p.msg)
}
