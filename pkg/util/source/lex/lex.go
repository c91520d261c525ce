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

// Package lex provides a small combinator-based lexer.  A lexer is assembled
// from a set of rules, where each rule associates a scanner with a token tag.
// At each position in the input, the rule with the longest match wins, with
// earlier rules breaking ties.
package lex

import (
	"github.com/tessel-lang/go-tessel/pkg/util/source"
)

// Token associates a tag with a given range of characters in the string being
// scanned.
type Token struct {
	Kind uint
	Span source.Span
}

// Rule associates a scanner with a given token tag.
type Rule struct {
	scanner Scanner
	tag     uint
}

// NewRule constructs a lexing rule which maps matching characters to a given
// tag.
func NewRule(scanner Scanner, tag uint) Rule {
	return Rule{scanner, tag}
}

// Lexer provides a top-level construct for tokenising a given input string.
type Lexer struct {
	input []rune
	index int
	rules []Rule
}

// NewLexer constructs a new lexer over a given input with a given set of
// lexing rules.
func NewLexer(input []rune, rules ...Rule) *Lexer {
	return &Lexer{input, 0, rules}
}

// Index returns the current position of this lexer within the input.
func (p *Lexer) Index() int {
	return p.index
}

// Remaining determines how many characters of the input are left unconsumed.
func (p *Lexer) Remaining() int {
	return max(0, len(p.input)-p.index)
}

// Next matches the next token at the current position, or returns false if no
// rule matches.  A zero-length match is permitted only for an end-of-input
// rule (see Eof), and signals that the input is exhausted.
func (p *Lexer) Next() (Token, bool) {
	var (
		best    = NoMatch
		bestTag = uint(0)
	)
	//
	for _, r := range p.rules {
		if n := r.scanner(p.input[p.index:]); n > best {
			best, bestTag = n, r.tag
		}
	}
	//
	if best == NoMatch {
		return Token{}, false
	}
	//
	token := Token{bestTag, source.NewSpan(p.index, p.index+best)}
	p.index += best
	//
	return token, true
}

// Collect scans as many tokens as possible, stopping either at the end of the
// input or at the first position where no rule matches.  The caller can
// distinguish the two cases via Remaining.
func (p *Lexer) Collect() []Token {
	var tokens []Token
	//
	for {
		token, ok := p.Next()
		if !ok {
			return tokens
		}
		//
		tokens = append(tokens, token)
		// A zero-length match signals the end of the input.
		if token.Span.Length() == 0 {
			return tokens
		}
	}
}
