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

// Package source provides a simple abstraction of source files, along with
// spans for identifying pieces of source text, and syntax errors reported
// against them.
package source

import (
	"os"
)

// File represents a given source file (typically stored on disk).
type File struct {
	// File name for this source file.
	filename string
	// Contents of this file.
	contents []rune
}

// NewFile constructs a new source file from a given byte array.
func NewFile(filename string, bytes []byte) *File {
	// Convert bytes into runes for easier parsing
	contents := []rune(string(bytes))
	return &File{filename, contents}
}

// ReadFiles reads a given set of source files from disk, or produces an error.
func ReadFiles(filenames ...string) ([]File, error) {
	files := make([]File, len(filenames))
	//
	for i, n := range filenames {
		bytes, err := os.ReadFile(n)
		if err != nil {
			return nil, err
		}
		//
		files[i] = *NewFile(n, bytes)
	}
	//
	return files, nil
}

// Filename returns the filename associated with this source file.
func (p *File) Filename() string {
	return p.filename
}

// Contents returns the contents of this source file.
func (p *File) Contents() []rune {
	return p.contents
}

// SyntaxError constructs a syntax error over a given span of this file with a
// given message.
func (p *File) SyntaxError(span Span, msg string) *SyntaxError {
	return &SyntaxError{p, span, msg}
}

// Line provides information about a given line within a source file.  This
// includes the line number (counting from 1), and the span of the line within
// the original string.
type Line struct {
	// Original text
	text []rune
	// Span within original text of this line.
	span Span
	// Line number of this line (counting from 1).
	number int
}

// String returns the text of this line.
func (p *Line) String() string {
	return string(p.text[p.span.start:p.span.end])
}

// Number gets the line number of this line, where the first line in a file
// has line number 1.
func (p *Line) Number() int {
	return p.number
}

// Start returns the starting index of this line in the original string.
func (p *Line) Start() int {
	return p.span.start
}

// Length returns the number of characters in this line.
func (p *Line) Length() int {
	return p.span.Length()
}

// EnclosingLine determines the line in this source file which encloses the
// start of a given span.  Observe that, if the position is beyond the bounds
// of the source file then the last physical line is returned.  Also, the
// returned line is not guaranteed to enclose the entire span, as spans can
// cross multiple lines.
func (p *File) EnclosingLine(span Span) Line {
	var (
		// Num records the line number, counting from 1.
		num = 1
		// Start records the starting offset of the current line.
		start = 0
	)
	// Find the enclosing line.
	for i := 0; i < len(p.contents); i++ {
		if i == span.start {
			break
		} else if p.contents[i] == '\n' {
			num++
			start = i + 1
		}
	}
	//
	return Line{p.contents, Span{start, findEndOfLine(start, p.contents)}, num}
}

// Find the index in the given text of the first newline at, or after, a given
// starting position.
func findEndOfLine(index int, text []rune) int {
	for i := index; i < len(text); i++ {
		if text[i] == '\n' {
			return i
		}
	}
	// No end of line found, so end of file is end of line.
	return len(text)
}
