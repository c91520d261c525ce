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
package tensor

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/tessel-lang/go-tessel/pkg/ir"
)

// Parse reads a module back from its textual form, as produced by
// Module.String.  This is the entry point for injecting tensor-level programs
// directly, bypassing the front end.  Parsed modules are not checked beyond
// well-formedness of references; run Validate before relying on deeper
// invariants.
func Parse(input string) (*Module, error) {
	parser := &moduleParser{NewModule(), strings.Split(input, "\n"), 0}
	//
	if err := parser.parse(); err != nil {
		return nil, err
	}
	//
	return parser.module, nil
}

// ModuleParser is a line-oriented parser over the stable textual form.
type moduleParser struct {
	module *Module
	lines  []string
	index  int
}

func (p *moduleParser) parse() error {
	for p.index < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.index])
		//
		switch {
		case line == "":
			p.index++
		case strings.HasPrefix(line, "struct "):
			if err := p.parseStruct(line); err != nil {
				return err
			}
			//
			p.index++
		case strings.HasPrefix(line, "func "):
			if err := p.parseFunction(line); err != nil {
				return err
			}
		default:
			return p.failf("expected struct or func declaration")
		}
	}
	//
	return nil
}

// Parse e.g. "struct Pair { a, b }".
func (p *moduleParser) parseStruct(line string) error {
	s := newScanner(line)
	//
	s.expect("struct")
	name := s.ident()
	s.expect("{")
	//
	var fields []string
	//
	for !s.match("}") {
		if len(fields) > 0 {
			s.expect(",")
		}
		//
		fields = append(fields, s.ident())
	}
	//
	if err := s.err(); err != nil {
		return p.fail(err)
	}
	//
	if err := p.module.AddStruct(StructDecl{name, fields}); err != nil {
		return p.fail(err)
	}
	//
	return nil
}

// Parse a function header, then its body lines through the closing brace.
func (p *moduleParser) parseFunction(line string) error {
	s := newScanner(line)
	//
	s.expect("func")
	//
	var (
		name   = s.ident()
		params []ir.Type
	)
	//
	s.expect("(")
	//
	for !s.match(")") {
		if len(params) > 0 {
			s.expect(",")
		}
		//
		s.expect("%arg" + strconv.Itoa(len(params)))
		s.expect(":")
		//
		typ, err := p.parseType(s.chunk())
		if err != nil {
			return err
		}
		//
		params = append(params, typ)
	}
	//
	fn := NewFunction(name, params...)
	//
	if s.match("->") {
		result, err := p.parseType(s.chunk())
		if err != nil {
			return err
		}
		//
		fn.SetResult(result)
	}
	//
	s.expect("{")
	//
	if err := s.err(); err != nil {
		return p.fail(err)
	}
	//
	p.index++
	// Body lines.
	for {
		if p.index >= len(p.lines) {
			return p.failf("unterminated function %s", name)
		}
		//
		body := strings.TrimSpace(p.lines[p.index])
		p.index++
		//
		if body == "}" {
			break
		} else if body == "" {
			continue
		} else if err := p.parseOperation(fn, body); err != nil {
			return err
		}
	}
	//
	if err := p.module.AddFunction(fn); err != nil {
		return p.fail(err)
	}
	//
	return nil
}

// Parse a single operation line and append it to fn.
func (p *moduleParser) parseOperation(fn *Function, line string) error {
	var (
		s  = newScanner(line)
		op Operation
	)
	// Result-producing operations open with "%N = ".
	if strings.HasPrefix(line, "%") {
		s.value(fn)
		s.expect("=")
	}
	//
	switch mnemonic := s.ident(); mnemonic {
	case "constant":
		if err := p.parseConstant(fn, s, &op); err != nil {
			return err
		}
	case "add", "mul":
		op.Opcode = OpAdd
		if mnemonic == "mul" {
			op.Opcode = OpMul
		}
		//
		op.Operands = []ValueID{s.value(fn), 0}
		s.expect(",")
		op.Operands[1] = s.value(fn)
	case "transpose", "cast":
		op.Opcode = OpTranspose
		if mnemonic == "cast" {
			op.Opcode = OpCast
		}
		//
		op.Operands = []ValueID{s.value(fn)}
	case "reshape":
		op.Opcode = OpReshape
		op.Operands = []ValueID{s.value(fn)}
		s.expect(",")
		op.Shape = s.shape()
	case "field":
		op.Opcode = OpField
		op.Operands = []ValueID{s.value(fn)}
		s.expect(",")
		op.Name = s.ident()
	case "call":
		op.Opcode = OpCall
		s.expect("@")
		op.Name = s.ident()
		s.expect("(")
		//
		for !s.match(")") {
			if len(op.Operands) > 0 {
				s.expect(",")
			}
			//
			op.Operands = append(op.Operands, s.value(fn))
		}
	case "print":
		op.Opcode = OpPrint
		op.Type = ir.None()
		op.Operands = []ValueID{s.value(fn)}
	case "return":
		op.Opcode = OpReturn
		op.Type = ir.None()
		//
		if !s.done() {
			op.Operands = []ValueID{s.value(fn)}
		}
	default:
		return p.failf("unknown operation %q", mnemonic)
	}
	// Trailing result type.
	if op.Opcode.HasResult() && op.Opcode != OpConstant {
		s.expect(":")
		//
		typ, err := p.parseType(s.chunk())
		if err != nil {
			return err
		}
		//
		op.Type = typ
	}
	//
	if err := s.err(); err != nil {
		return p.fail(err)
	}
	//
	for _, operand := range op.Operands {
		if int(operand) >= fn.NumValues() {
			return p.failf("reference to undefined value")
		}
	}
	//
	fn.Append(op)
	//
	return nil
}

// Parse the remainder of a constant: either a tensor literal with its trailing
// tensor type, or a struct name followed by brace-enclosed field literals (in
// which case the struct type is rebuilt from the literals and the trailing
// type text is redundant).
func (p *moduleParser) parseConstant(fn *Function, s *scanner, op *Operation) error {
	op.Opcode = OpConstant
	//
	if s.peek() == '<' {
		op.Literal = s.literal()
		s.expect(":")
		//
		typ, err := p.parseType(s.chunk())
		if err != nil {
			return err
		}
		//
		op.Type = typ
		//
		return nil
	}
	// Struct constant.
	op.Name = s.ident()
	s.expect("{")
	//
	for !s.match("}") {
		if len(op.Fields) > 0 {
			s.expect(",")
		}
		//
		op.Fields = append(op.Fields, s.literal())
	}
	// Trailing ": struct Name" is implied by the payload.
	s.expect(":")
	s.expect("struct")
	s.expect(op.Name)
	//
	decl, ok := p.module.Struct(op.Name)
	if !ok {
		return p.failf("unknown struct %s", op.Name)
	} else if len(decl.Fields) != len(op.Fields) {
		return p.failf("struct %s expects %d fields, found %d", op.Name, len(decl.Fields), len(op.Fields))
	}
	//
	fields := make([]ir.Field, len(op.Fields))
	for i, lit := range op.Fields {
		fields[i] = ir.Field{Name: decl.Fields[i], Type: ir.Tensor(lit.Shape...)}
	}
	//
	op.Type = ir.Struct(op.Name, fields)
	//
	return nil
}

// Parse a type rendering, e.g. "tensor<2x3xf64>", "tensor<*xf64>",
// "tensor<f64>" or "none".
func (p *moduleParser) parseType(text string) (ir.Type, error) {
	switch {
	case text == "none":
		return ir.None(), nil
	case text == "f64":
		return ir.Scalar(), nil
	case text == "tensor<*xf64>":
		return ir.UnrankedTensor(), nil
	case text == "tensor<f64>":
		return ir.Tensor(), nil
	case strings.HasPrefix(text, "tensor<") && strings.HasSuffix(text, "xf64>"):
		var (
			dims  = strings.Split(text[7:len(text)-5], "x")
			shape = make([]int, len(dims))
		)
		//
		for i, d := range dims {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				return ir.None(), p.failf("malformed type %q", text)
			}
			//
			shape[i] = n
		}
		//
		return ir.Tensor(shape...), nil
	default:
		return ir.None(), p.failf("malformed type %q", text)
	}
}

func (p *moduleParser) failf(format string, args ...any) error {
	return errors.Errorf("line %d: "+format, append([]any{p.index + 1}, args...)...)
}

func (p *moduleParser) fail(err error) error {
	return errors.Wrapf(err, "line %d", p.index+1)
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

func (p *scanner) peek() byte {
	p.skipSpace()
	//
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	//
	return 0
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

// Ident consumes an identifier (which may include mangling characters).
func (p *scanner) ident() string {
	p.skipSpace()
	start := p.pos
	//
	for p.pos < len(p.text) {
		c := rune(p.text[p.pos])
		//
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '$' {
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

// Value consumes a value reference ("%argN" or "%N"), resolving it to a
// handle of fn.
func (p *scanner) value(fn *Function) ValueID {
	p.expect("%")
	//
	arg := p.match("arg")
	start := p.pos
	//
	for p.pos < len(p.text) && unicode.IsDigit(rune(p.text[p.pos])) {
		p.pos++
	}
	//
	n, err := strconv.Atoi(p.text[start:p.pos])
	if err != nil {
		p.failf("expected value reference at column %d", start+1)
		return NoValue
	}
	//
	if arg {
		return ValueID(n)
	}
	//
	return ValueID(fn.NumParams() + n)
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
		start := p.pos
		for p.pos < len(p.text) && unicode.IsDigit(rune(p.text[p.pos])) {
			p.pos++
		}
		//
		n, err := strconv.Atoi(p.text[start:p.pos])
		if err != nil {
			p.failf("expected dimension at column %d", start+1)
			return shape
		}
		//
		shape = append(shape, n)
	}
	//
	return shape
}

// Literal consumes a literal rendering: a shape followed by a bracketed flat
// data array.
func (p *scanner) literal() Literal {
	var (
		shape = p.shape()
		data  = []float64{}
	)
	//
	p.expect("[")
	//
	for !p.match("]") {
		if len(data) > 0 {
			p.expect(",")
		}
		//
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
			return Literal{shape, data}
		}
		//
		data = append(data, v)
	}
	//
	return Literal{shape, data}
}

// Chunk consumes text through the next comma (at brace depth zero) or the end
// of the line, e.g. one type rendering within a parameter list.
func (p *scanner) chunk() string {
	p.skipSpace()
	start := p.pos
	//
	depth := 0
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case '<':
			depth++
		case '>':
			depth--
		case ',', ')', '{':
			if depth == 0 {
				return strings.TrimSpace(p.text[start:p.pos])
			}
		}
		//
		p.pos++
	}
	//
	return strings.TrimSpace(p.text[start:p.pos])
}
