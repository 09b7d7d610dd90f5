// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package query

import (
	"fmt"
	"strconv"
)

// The expression grammar is deliberately closed: arithmetic, equality
// comparison, column references and the two aggregate functions. There is
// no general scripting surface.
//
//	equality   = additive { ("==" | "!=") additive }
//	additive   = multiplicative { ("+" | "-") multiplicative }
//	multiplicative = unary { ("*" | "/") unary }
//	unary      = "-" unary | primary
//	primary    = NUMBER | STRING | COLUMN | "(" equality ")"
//	           | IDENT "(" [ arg { "," arg } ] ")" | "True" | "False" | "None"
//	arg        = equality | IDENT "=" equality

type node interface{}

type numberNode struct{ val float64 }

type stringNode struct{ val string }

type columnNode struct{ name string }

type boolNode struct{ val bool }

type noneNode struct{}

type unaryNode struct {
	op      tokenType
	operand node
}

type binaryNode struct {
	op          tokenType
	left, right node
}

type callNode struct {
	name   string
	args   []node
	kwargs map[string]node
}

type parser struct {
	tokens []token
	pos    int
}

// parse compiles a rewritten expression into a tree.
func parse(expr string) (node, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseEquality()
	if err != nil {
		return nil, err
	}

	if p.peek().typ != tokenEOF {
		return nil, fmt.Errorf("%w: trailing input", ErrSyntax)
	}

	return root, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ tokenType) error {
	if p.peek().typ != typ {
		return fmt.Errorf("%w: unexpected token", ErrSyntax)
	}
	p.next()
	return nil
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek().typ
		if op != tokenEq && op != tokenNeq {
			return left, nil
		}
		p.next()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek().typ
		if op != tokenPlus && op != tokenMinus {
			return left, nil
		}
		p.next()

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek().typ
		if op != tokenStar && op != tokenSlash {
			return left, nil
		}
		p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().typ == tokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokenMinus, operand: operand}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()

	switch tok.typ {
	case tokenNumber:
		val, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, tok.val)
		}
		return numberNode{val: val}, nil

	case tokenString:
		return stringNode{val: tok.val}, nil

	case tokenColumn:
		return columnNode{name: tok.val}, nil

	case tokenLParen:
		inner, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return inner, nil

	case tokenIdent:
		switch tok.val {
		case "True":
			return boolNode{val: true}, nil
		case "False":
			return boolNode{val: false}, nil
		case "None":
			return noneNode{}, nil
		}

		if p.peek().typ != tokenLParen {
			return nil, fmt.Errorf("%w: unknown name %q", ErrSyntax, tok.val)
		}
		p.next()
		return p.parseCall(tok.val)

	default:
		return nil, fmt.Errorf("%w: unexpected token", ErrSyntax)
	}
}

// parseCall parses the argument list of name(...); the opening paren is
// already consumed.
func (p *parser) parseCall(name string) (node, error) {
	call := callNode{name: name, kwargs: make(map[string]node)}

	if p.peek().typ == tokenRParen {
		p.next()
		return call, nil
	}

	for {
		// keyword argument: IDENT "=" value
		if p.peek().typ == tokenIdent && p.tokens[p.pos+1].typ == tokenAssign {
			key := p.next().val
			p.next()

			val, err := p.parseEquality()
			if err != nil {
				return nil, err
			}
			call.kwargs[key] = val
		} else {
			if len(call.kwargs) > 0 {
				return nil, fmt.Errorf("%w: positional argument after keyword argument", ErrSyntax)
			}

			arg, err := p.parseEquality()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
		}

		switch p.peek().typ {
		case tokenComma:
			p.next()
		case tokenRParen:
			p.next()
			return call, nil
		default:
			return nil, fmt.Errorf("%w: malformed argument list", ErrSyntax)
		}
	}
}
