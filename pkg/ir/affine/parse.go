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
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Parse reads a program back from its textual form, as produced by
// Program.String.  This is the entry point for injecting loop-level programs
// directly.  Parsed programs are not checked beyond syntactic
// well-formedness; run Validate before relying on deeper invariants.
func Parse(input string) (*Program, error) {
	var (
		parser  = &programParser{strings.Split(input, "\n"), 0}
		program = &Program{}
	)
	//
	for !parser.done() {
		line := parser.next()
		//
		if line == "" {
			continue
		}
		//
		fn, err := parser.parseFunction(line)
		if err != nil {
			return nil, err
		}
		//
		if err := program.AddFunction(fn); err != nil {
			return nil, parser.fail(err)
		}
	}
	//
	return program, nil
}

// ProgramParser is a line-oriented parser over the stable textual form.
type programParser struct {
	lines []string
	index int
}

func (p *programParser) done() bool {
	return p.index >= len(p.lines)
}

// Next consumes the next line, trimmed.
func (p *programParser) next() string {
	line := strings.TrimSpace(p.lines[p.index])
	p.index++
	//
	return line
}

// Parse a function header, then its body through the closing brace.
func (p *programParser) parseFunction(line string) (*Function, error) {
	s := newScanner(line)
	//
	s.expect("func")
	//
	fn := &Function{Name: s.ident()}
	//
	s.expect("(")
	//
	for !s.match(")") {
		if len(fn.Params) > 0 {
			s.expect(",")
		}
		//
		fn.Params = append(fn.Params, s.buffer())
	}
	//
	if s.match("->") {
		fn.Result = s.shape()
	}
	//
	s.expect("{")
	//
	if err := s.err(); err != nil {
		return nil, p.fail(err)
	}
	//
	body, err := p.parseBody(fn)
	if err != nil {
		return nil, err
	}
	//
	fn.Body = body
	//
	return fn, nil
}

// Parse statements through (and including) the next closing brace.  Local
// declarations are folded straight into fn rather than the statement list.
func (p *programParser) parseBody(fn *Function) ([]Stmt, error) {
	var body []Stmt
	//
	for {
		if p.done() {
			return nil, p.failf("unterminated body in %s", fn.Name)
		}
		//
		line := p.next()
		//
		switch {
		case line == "":
			continue
		case line == "}":
			return body, nil
		case strings.HasPrefix(line, "var "):
			s := newScanner(line)
			s.expect("var")
			buffer := s.buffer()
			//
			if err := s.err(); err != nil {
				return nil, p.fail(err)
			}
			//
			if err := fn.AddLocal(buffer); err != nil {
				return nil, p.fail(err)
			}
		case strings.HasPrefix(line, "for "):
			stmt, err := p.parseLoop(fn, line)
			if err != nil {
				return nil, err
			}
			//
			body = append(body, stmt)
		default:
			stmt, err := p.parseSimple(line)
			if err != nil {
				return nil, err
			}
			//
			body = append(body, stmt)
		}
	}
}

// Parse e.g. "for i0 < 3 {" followed by the loop body.
func (p *programParser) parseLoop(fn *Function, line string) (Stmt, error) {
	s := newScanner(line)
	//
	s.expect("for")
	ivar := s.ident()
	s.expect("<")
	bound := s.number()
	s.expect("{")
	//
	if err := s.err(); err != nil {
		return Stmt{}, p.fail(err)
	}
	//
	body, err := p.parseBody(fn)
	if err != nil {
		return Stmt{}, err
	}
	//
	return Loop(ivar, bound, body...), nil
}

// Parse a store, print or return statement.
func (p *programParser) parseSimple(line string) (Stmt, error) {
	s := newScanner(line)
	//
	switch {
	case line == "return":
		return Return(""), nil
	case strings.HasPrefix(line, "return "):
		s.expect("return")
		target := s.ident()
		//
		if err := s.err(); err != nil {
			return Stmt{}, p.fail(err)
		}
		//
		return Return(target), nil
	case strings.HasPrefix(line, "print "):
		s.expect("print")
		target := s.ident()
		//
		if err := s.err(); err != nil {
			return Stmt{}, p.fail(err)
		}
		//
		return Print(target), nil
	default:
		var (
			dst = s.ref()
			_   = s.expectToken("=")
			src = s.expr()
		)
		//
		if err := s.err(); err != nil {
			return Stmt{}, p.fail(err)
		}
		//
		return Store(dst, src), nil
	}
}

func (p *programParser) failf(format string, args ...any) error {
	return errors.Errorf("line %d: "+format, append([]any{p.index}, args...)...)
}

func (p *programParser) fail(err error) error {
	return errors.Wrapf(err, "line %d", p.index)
}

// Scanner walks a single line, recording the first failure encountered rather
// than forcing error plumbing at every step.
type scanner struct {
	text    string
	pos     int
	failure error
}

func newScanner(text string) *scanner {
	return &scanner{text, 0, nil}
}

func (p *scanner) err() error {
	if p.failure == nil && !p.done() {
		return errors.Errorf("trailing text %q", p.text[p.pos:])
	}
	//
	return p.failure
}

func (p *scanner) failf(format string, args ...any) {
	if p.failure == nil {
		p.failure = errors.Errorf(format, args...)
	}
}

func (p *scanner) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

func (p *scanner) done() bool {
	p.skipSpace()
	return p.pos >= len(p.text)
}

// Match consumes the given text if (and only if) it comes next.
func (p *scanner) match(text string) bool {
	p.skipSpace()
	//
	if strings.HasPrefix(p.text[p.pos:], text) {
		p.pos += len(text)
		return true
	}
	//
	return false
}

// Expect consumes the given text, failing the scan if it does not come next.
func (p *scanner) expect(text string) {
	if !p.match(text) {
		p.failf("expected %q at column %d", text, p.pos+1)
	}
}

// ExpectToken is expect in expression position, usable in assignment chains.
func (p *scanner) expectToken(text string) bool {
	p.expect(text)
	return true
}

// Ident consumes an identifier.
func (p *scanner) ident() string {
	p.skipSpace()
	start := p.pos
	//
	for p.pos < len(p.text) {
		c := rune(p.text[p.pos])
		//
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		//
		p.pos++
	}
	//
	if p.pos == start {
		p.failf("expected identifier at column %d", start+1)
	}
	//
	return p.text[start:p.pos]
}

// Number consumes a non-negative integer.
func (p *scanner) number() int {
	p.skipSpace()
	start := p.pos
	//
	for p.pos < len(p.text) && unicode.IsDigit(rune(p.text[p.pos])) {
		p.pos++
	}
	//
	n, err := strconv.Atoi(p.text[start:p.pos])
	if err != nil {
		p.failf("expected number at column %d", start+1)
	}
	//
	return n
}

// Buffer consumes a buffer declaration, e.g. "v0<2x3>".
func (p *scanner) buffer() Buffer {
	return Buffer{p.ident(), p.shape()}
}

// Shape consumes a shape rendering, e.g. "<2x3>" or "<>".
func (p *scanner) shape() []int {
	p.expect("<")
	//
	shape := []int{}
	//
	for !p.match(">") {
		if len(shape) > 0 {
			p.expect("x")
		}
		//
		shape = append(shape, p.number())
	}
	//
	return shape
}

// Ref consumes a buffer-element reference, e.g. "v0[i0, 1]" or "v0[[i2]]".
func (p *scanner) ref() Ref {
	ref := Ref{Buffer: p.ident()}
	//
	close := "]"
	//
	if p.match("[[") {
		ref.Flat, close = true, "]]"
	} else {
		p.expect("[")
	}
	//
	for !p.match(close) {
		if len(ref.Indices) > 0 {
			p.expect(",")
		}
		//
		ref.Indices = append(ref.Indices, p.index())
	}
	//
	return ref
}

// Index consumes one index expression: a loop variable or a literal.
func (p *scanner) index() Index {
	if c := p.peekByte(); c >= '0' && c <= '9' {
		return Lit(p.number())
	}
	//
	return IVar(p.ident())
}

// Expr consumes an expression: an operand optionally followed by a single
// binary operator and a second operand.
func (p *scanner) expr() Expr {
	lhs := p.operand()
	//
	switch {
	case p.match("+"):
		return Add(lhs, p.operand())
	case p.match("*"):
		return Mul(lhs, p.operand())
	default:
		return lhs
	}
}

// Operand consumes a load or a floating-point literal.
func (p *scanner) operand() Expr {
	if c := p.peekByte(); c == '-' || c == '.' || (c >= '0' && c <= '9') {
		p.skipSpace()
		start := p.pos
		//
		for p.pos < len(p.text) && strings.ContainsRune("+-.0123456789eE", rune(p.text[p.pos])) {
			p.pos++
		}
		//
		v, err := strconv.ParseFloat(p.text[start:p.pos], 64)
		if err != nil {
			p.failf("expected number at column %d", start+1)
		}
		//
		return Const(v)
	}
	//
	return Load(p.ref())
}

func (p *scanner) peekByte() byte {
	p.skipSpace()
	//
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	//
	return 0
}
