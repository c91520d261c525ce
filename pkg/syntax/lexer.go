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

// Package syntax provides the lexer and parser for the Tessel language,
// turning source text into the abstract syntax tree consumed by the tensor
// level of the pipeline.
package syntax

import (
	"slices"

	"github.com/tessel-lang/go-tessel/pkg/util/source"
	"github.com/tessel-lang/go-tessel/pkg/util/source/lex"
)

// END_OF signals "end of file".
const END_OF uint = 0

// WHITESPACE signals any run of spaces, tabs and newlines.
const WHITESPACE uint = 1

// COMMENT signals "# ... \n".
const COMMENT uint = 2

// LPAREN signals "(".
const LPAREN uint = 3

// RPAREN signals ")".
const RPAREN uint = 4

// LCURLY signals "{".
const LCURLY uint = 5

// RCURLY signals "}".
const RCURLY uint = 6

// LSQUARE signals "[".
const LSQUARE uint = 7

// RSQUARE signals "]".
const RSQUARE uint = 8

// LANGLE signals "<".
const LANGLE uint = 9

// RANGLE signals ">".
const RANGLE uint = 10

// COMMA signals ",".
const COMMA uint = 11

// SEMICOLON signals ";".
const SEMICOLON uint = 12

// DOT signals ".".
const DOT uint = 13

// EQUALS signals "=".
const EQUALS uint = 14

// ADD signals "+".
const ADD uint = 15

// MUL signals "*".
const MUL uint = 16

// NUMBER signals a (possibly negative, possibly fractional) number.
const NUMBER uint = 17

// IDENTIFIER signals a variable, function, struct or field name.
const IDENTIFIER uint = 18

// KEYWORD_DEF signals a function declaration.
const KEYWORD_DEF uint = 19

// KEYWORD_VAR signals a variable declaration.
const KEYWORD_VAR uint = 20

// KEYWORD_RETURN signals a return statement.
const KEYWORD_RETURN uint = 21

// KEYWORD_STRUCT signals a struct declaration.
const KEYWORD_STRUCT uint = 22

// Rule for describing whitespace.
var whitespace = lex.Plus(lex.Any(lex.Char(' '), lex.Char('\t'), lex.Char('\r'), lex.Char('\n')))

// Rule for describing numbers.  A number is an optionally negated decimal
// with an optional fractional part.
var (
	digits   = lex.Plus(lex.Range('0', '9'))
	fraction = lex.Seq(lex.Char('.'), digits)
	number   = lex.Any(
		lex.Seq(lex.Char('-'), digits, fraction),
		lex.Seq(lex.Char('-'), digits),
		lex.Seq(digits, fraction),
		digits,
	)
)

// Rule for describing identifiers.
var (
	identifierStart = lex.Any(
		lex.Char('_'),
		lex.Range('a', 'z'),
		lex.Range('A', 'Z'))
	identifierRest = lex.Star(lex.Any(
		lex.Char('_'),
		lex.Range('0', '9'),
		lex.Range('a', 'z'),
		lex.Range('A', 'Z')))
	identifier = lex.Seq(identifierStart, identifierRest)
)

// Comments start with '#' and continue until a newline or the end of file.
var comment = lex.Seq(lex.Char('#'), lex.Until('\n'))

// Lexing rules for the Tessel language.  Observe that keyword rules must come
// before the identifier rule, as ties are broken in rule order.
var rules = []lex.Rule{
	lex.NewRule(comment, COMMENT),
	lex.NewRule(lex.Char('('), LPAREN),
	lex.NewRule(lex.Char(')'), RPAREN),
	lex.NewRule(lex.Char('{'), LCURLY),
	lex.NewRule(lex.Char('}'), RCURLY),
	lex.NewRule(lex.Char('['), LSQUARE),
	lex.NewRule(lex.Char(']'), RSQUARE),
	lex.NewRule(lex.Char('<'), LANGLE),
	lex.NewRule(lex.Char('>'), RANGLE),
	lex.NewRule(lex.Char(','), COMMA),
	lex.NewRule(lex.Char(';'), SEMICOLON),
	lex.NewRule(lex.Char('.'), DOT),
	lex.NewRule(lex.Char('='), EQUALS),
	lex.NewRule(lex.Char('+'), ADD),
	lex.NewRule(lex.Char('*'), MUL),
	lex.NewRule(whitespace, WHITESPACE),
	lex.NewRule(number, NUMBER),
	lex.NewRule(lex.Str("def"), KEYWORD_DEF),
	lex.NewRule(lex.Str("var"), KEYWORD_VAR),
	lex.NewRule(lex.Str("return"), KEYWORD_RETURN),
	lex.NewRule(lex.Str("struct"), KEYWORD_STRUCT),
	lex.NewRule(identifier, IDENTIFIER),
	lex.NewRule(lex.Eof(), END_OF),
}

// Lex a given source file into a sequence of zero or more tokens, along with
// any syntax errors arising.  Whitespace and comments are discarded.
func Lex(srcfile *source.File) ([]lex.Token, []source.SyntaxError) {
	var (
		lexer  = lex.NewLexer(srcfile.Contents(), rules...)
		tokens = lexer.Collect()
	)
	// Check whether anything was left (if so this is an error).
	if lexer.Remaining() != 0 {
		start, end := lexer.Index(), lexer.Index()+lexer.Remaining()
		err := srcfile.SyntaxError(source.NewSpan(start, end), "unknown text encountered")
		//
		return nil, []source.SyntaxError{*err}
	}
	// Remove whitespace and comments.
	tokens = slices.DeleteFunc(tokens, func(t lex.Token) bool {
		return t.Kind == WHITESPACE || t.Kind == COMMENT
	})
	// Done
	return tokens, nil
}
