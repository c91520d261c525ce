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
package syntax

import (
	"strconv"

	"github.com/tessel-lang/go-tessel/pkg/ast"
	"github.com/tessel-lang/go-tessel/pkg/util/source"
	"github.com/tessel-lang/go-tessel/pkg/util/source/lex"
)

// Parse accepts a given source file and parses it into a module of struct and
// function declarations.  On failure, one syntax error is reported per
// ill-formed declaration (the parser resynchronises at the next declaration
// keyword).
func Parse(srcfile *source.File) (*ast.Module, []source.SyntaxError) {
	parser := NewParser(srcfile)
	//
	return parser.Parse()
}

// Parser is a recursive-descent parser for the Tessel language.
type Parser struct {
	srcfile *source.File
	tokens  []lex.Token
	// Position within the tokens.
	index int
}

// NewParser constructs a new parser for a given source file.
func NewParser(srcfile *source.File) *Parser {
	return &Parser{srcfile, nil, 0}
}

// Parse the source file into a module, or one or more syntax errors.
func (p *Parser) Parse() (*ast.Module, []source.SyntaxError) {
	var (
		module = &ast.Module{File: p.srcfile}
		errors []source.SyntaxError
	)
	// Convert source file into tokens.
	if p.tokens, errors = Lex(p.srcfile); len(errors) > 0 {
		return nil, errors
	}
	// Continue until all tokens are consumed.
	for p.lookahead().Kind != END_OF {
		var errs []source.SyntaxError
		//
		switch p.lookahead().Kind {
		case KEYWORD_STRUCT:
			var decl *ast.StructDecl
			//
			if decl, errs = p.parseStructDecl(); len(errs) == 0 {
				module.Structs = append(module.Structs, decl)
			}
		case KEYWORD_DEF:
			var decl *ast.FuncDecl
			//
			if decl, errs = p.parseFuncDecl(); len(errs) == 0 {
				module.Funcs = append(module.Funcs, decl)
			}
		default:
			errs = p.syntaxErrors(p.lookahead(), "expected declaration")
		}
		// On failure, record the error and resynchronise.
		if len(errs) > 0 {
			errors = append(errors, errs...)
			p.resynchronise()
		}
	}
	//
	if len(errors) > 0 {
		return nil, errors
	}
	//
	return module, nil
}

// Skip tokens until the next declaration keyword (or the end of file), such
// that parsing can continue after an ill-formed declaration.
func (p *Parser) resynchronise() {
	p.index++
	//
	for {
		switch p.lookahead().Kind {
		case END_OF, KEYWORD_DEF, KEYWORD_STRUCT:
			return
		default:
			p.index++
		}
	}
}

// StructDecl := "struct" IDENT "{" IDENT ("," IDENT)* "}"
func (p *Parser) parseStructDecl() (*ast.StructDecl, []source.SyntaxError) {
	var fields []string
	//
	first, errs := p.expect(KEYWORD_STRUCT)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	name, errs := p.parseIdentifier()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	if _, errs = p.expect(LCURLY); len(errs) > 0 {
		return nil, errs
	}
	//
	for {
		field, errs := p.parseIdentifier()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		fields = append(fields, field)
		//
		if !p.match(COMMA) {
			break
		}
	}
	//
	last, errs := p.expect(RCURLY)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewStructDecl(name, fields, first.Span.Join(last.Span)), nil
}

// FuncDecl := "def" IDENT "(" (IDENT ("," IDENT)*)? ")" "{" Stmt* "}"
func (p *Parser) parseFuncDecl() (*ast.FuncDecl, []source.SyntaxError) {
	var (
		params []ast.Param
		body   []ast.Stmt
	)
	//
	first, errs := p.expect(KEYWORD_DEF)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	name, errs := p.parseIdentifier()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	if _, errs = p.expect(LPAREN); len(errs) > 0 {
		return nil, errs
	}
	// Parse (optional) parameter list.
	for p.lookahead().Kind == IDENTIFIER {
		token, _ := p.expect(IDENTIFIER)
		params = append(params, ast.NewParam(p.string(token), token.Span))
		//
		if !p.match(COMMA) {
			break
		}
	}
	//
	if _, errs = p.expect(RPAREN); len(errs) > 0 {
		return nil, errs
	}
	//
	if _, errs = p.expect(LCURLY); len(errs) > 0 {
		return nil, errs
	}
	// Parse statements until the closing brace.
	for p.lookahead().Kind != RCURLY && p.lookahead().Kind != END_OF {
		stmt, errs := p.parseStmt()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		body = append(body, stmt)
	}
	//
	last, errs := p.expect(RCURLY)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewFuncDecl(name, params, body, first.Span.Join(last.Span)), nil
}

// Stmt := VarStmt | ReturnStmt | Expr ";"
func (p *Parser) parseStmt() (ast.Stmt, []source.SyntaxError) {
	switch p.lookahead().Kind {
	case KEYWORD_VAR:
		return p.parseVarStmt()
	case KEYWORD_RETURN:
		return p.parseReturnStmt()
	default:
		expr, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		last, errs := p.expect(SEMICOLON)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		return ast.NewExprStmt(expr, expr.Span().Join(last.Span)), nil
	}
}

// VarStmt := "var" IDENT ("<" NUM ("," NUM)* ">")? "=" Expr ";"
func (p *Parser) parseVarStmt() (ast.Stmt, []source.SyntaxError) {
	var shape []int
	//
	first, errs := p.expect(KEYWORD_VAR)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	name, errs := p.parseIdentifier()
	if len(errs) > 0 {
		return nil, errs
	}
	// Parse (optional) shape annotation.
	if p.match(LANGLE) {
		for {
			token, errs := p.expect(NUMBER)
			if len(errs) > 0 {
				return nil, errs
			}
			//
			dim, err := strconv.Atoi(p.string(token))
			if err != nil || dim < 0 {
				return nil, p.syntaxErrors(token, "malformed dimension")
			}
			//
			shape = append(shape, dim)
			//
			if !p.match(COMMA) {
				break
			}
		}
		//
		if _, errs := p.expect(RANGLE); len(errs) > 0 {
			return nil, errs
		}
		// Distinguish "var a<> = ..." from "var a = ...".
		if shape == nil {
			shape = []int{}
		}
	}
	//
	if _, errs = p.expect(EQUALS); len(errs) > 0 {
		return nil, errs
	}
	//
	init, errs := p.parseExpr()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	last, errs := p.expect(SEMICOLON)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewVarStmt(name, shape, init, first.Span.Join(last.Span)), nil
}

// ReturnStmt := "return" Expr? ";"
func (p *Parser) parseReturnStmt() (ast.Stmt, []source.SyntaxError) {
	var value ast.Expr
	//
	first, errs := p.expect(KEYWORD_RETURN)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	if p.lookahead().Kind != SEMICOLON {
		if value, errs = p.parseExpr(); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	last, errs := p.expect(SEMICOLON)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewReturnStmt(value, first.Span.Join(last.Span)), nil
}

// Expr := Term ("+" Term)*
func (p *Parser) parseExpr() (ast.Expr, []source.SyntaxError) {
	lhs, errs := p.parseTerm()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for p.match(ADD) {
		rhs, errs := p.parseTerm()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		lhs = ast.NewBinaryExpr('+', lhs, rhs)
	}
	//
	return lhs, nil
}

// Term := Postfix ("*" Postfix)*
func (p *Parser) parseTerm() (ast.Expr, []source.SyntaxError) {
	lhs, errs := p.parsePostfix()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for p.match(MUL) {
		rhs, errs := p.parsePostfix()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		lhs = ast.NewBinaryExpr('*', lhs, rhs)
	}
	//
	return lhs, nil
}

// Postfix := Primary ("." IDENT)*
func (p *Parser) parsePostfix() (ast.Expr, []source.SyntaxError) {
	expr, errs := p.parsePrimary()
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for p.match(DOT) {
		token, errs := p.expect(IDENTIFIER)
		if len(errs) > 0 {
			return nil, errs
		}
		//
		expr = ast.NewFieldExpr(expr, p.string(token), expr.Span().Join(token.Span))
	}
	//
	return expr, nil
}

// Primary := NUMBER | TensorLit | "(" Expr ")" | IDENT (CallArgs | StructInit)?
func (p *Parser) parsePrimary() (ast.Expr, []source.SyntaxError) {
	lookahead := p.lookahead()
	//
	switch lookahead.Kind {
	case NUMBER:
		p.index++
		//
		value, err := strconv.ParseFloat(p.string(lookahead), 64)
		if err != nil {
			return nil, p.syntaxErrors(lookahead, "malformed number")
		}
		//
		return ast.NewNumberLit(value, lookahead.Span), nil
	case LSQUARE:
		return p.parseTensorLit()
	case LPAREN:
		p.index++
		//
		expr, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		if _, errs := p.expect(RPAREN); len(errs) > 0 {
			return nil, errs
		}
		//
		return expr, nil
	case IDENTIFIER:
		p.index++
		// Distinguish calls and struct literals from plain references.
		switch p.lookahead().Kind {
		case LPAREN:
			return p.parseCallArgs(lookahead)
		case LCURLY:
			return p.parseStructInit(lookahead)
		default:
			return ast.NewIdent(p.string(lookahead), lookahead.Span), nil
		}
	default:
		return nil, p.syntaxErrors(lookahead, "expected expression")
	}
}

// TensorLit := "[" (Expr ("," Expr)*)? "]"
func (p *Parser) parseTensorLit() (ast.Expr, []source.SyntaxError) {
	var elems []ast.Expr
	//
	first, errs := p.expect(LSQUARE)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for p.lookahead().Kind != RSQUARE {
		elem, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		elems = append(elems, elem)
		//
		if !p.match(COMMA) {
			break
		}
	}
	//
	last, errs := p.expect(RSQUARE)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewTensorLit(elems, first.Span.Join(last.Span)), nil
}

// CallArgs := "(" (Expr ("," Expr)*)? ")"
func (p *Parser) parseCallArgs(callee lex.Token) (ast.Expr, []source.SyntaxError) {
	var args []ast.Expr
	//
	if _, errs := p.expect(LPAREN); len(errs) > 0 {
		return nil, errs
	}
	//
	for p.lookahead().Kind != RPAREN {
		arg, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		args = append(args, arg)
		//
		if !p.match(COMMA) {
			break
		}
	}
	//
	last, errs := p.expect(RPAREN)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewCallExpr(p.string(callee), args, callee.Span.Join(last.Span)), nil
}

// StructInit := "{" Expr ("," Expr)* "}"
func (p *Parser) parseStructInit(name lex.Token) (ast.Expr, []source.SyntaxError) {
	var fields []ast.Expr
	//
	if _, errs := p.expect(LCURLY); len(errs) > 0 {
		return nil, errs
	}
	//
	for {
		field, errs := p.parseExpr()
		if len(errs) > 0 {
			return nil, errs
		}
		//
		fields = append(fields, field)
		//
		if !p.match(COMMA) {
			break
		}
	}
	//
	last, errs := p.expect(RCURLY)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return ast.NewStructLit(p.string(name), fields, name.Span.Join(last.Span)), nil
}

// ParseIdentifier expects an identifier token, returning its text.
func (p *Parser) parseIdentifier() (string, []source.SyntaxError) {
	token, errs := p.expect(IDENTIFIER)
	if len(errs) > 0 {
		return "", errs
	}
	//
	return p.string(token), nil
}

// String returns the source text covered by a given token.
func (p *Parser) string(token lex.Token) string {
	runes := p.srcfile.Contents()
	return string(runes[token.Span.Start():token.Span.End()])
}

// Lookahead returns the next token without advancing the parser.
func (p *Parser) lookahead() lex.Token {
	return p.tokens[p.index]
}

// Expect consumes a token of the given kind, or reports a syntax error.
func (p *Parser) expect(kind uint) (lex.Token, []source.SyntaxError) {
	lookahead := p.lookahead()
	//
	if lookahead.Kind != kind {
		return lookahead, p.syntaxErrors(lookahead, "unexpected token")
	}
	//
	p.index++
	//
	return lookahead, nil
}

// Match consumes a token of the given kind if it is next, returning whether
// it did so.
func (p *Parser) match(kind uint) bool {
	if p.lookahead().Kind == kind {
		p.index++
		return true
	}
	//
	return false
}

// SyntaxErrors constructs a singleton syntax error at a given token.
func (p *Parser) syntaxErrors(token lex.Token, msg string) []source.SyntaxError {
	span := token.Span
	// At the end of file the token span is empty, which renders poorly.
	if span.Length() == 0 && span.Start() > 0 {
		span = source.NewSpan(span.Start()-1, span.Start())
	}
	//
	return []source.SyntaxError{*p.srcfile.SyntaxError(span, msg)}
}
