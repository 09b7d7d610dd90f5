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
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("expression syntax error")

type tokenType int

const (
	tokenNumber tokenType = iota
	tokenString           // 'lit' or "lit"
	tokenColumn           // ["name"]
	tokenIdent            // function names, True/False/None
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
	tokenComma
	tokenAssign // = (keyword arguments)
	tokenEq     // ==
	tokenNeq    // !=
	tokenEOF
)

type token struct {
	typ tokenType
	val string
}

// tokenize splits a rewritten expression into tokens. Column references
// must already be in bracketed form (see RewriteColumns).
func tokenize(expr string) ([]token, error) {
	var tokens []token

	i := 0
	for i < len(expr) {
		c := expr[i]

		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+':
			tokens = append(tokens, token{typ: tokenPlus})
			i++
		case c == '-':
			tokens = append(tokens, token{typ: tokenMinus})
			i++
		case c == '*':
			tokens = append(tokens, token{typ: tokenStar})
			i++
		case c == '/':
			tokens = append(tokens, token{typ: tokenSlash})
			i++
		case c == '(':
			tokens = append(tokens, token{typ: tokenLParen})
			i++
		case c == ')':
			tokens = append(tokens, token{typ: tokenRParen})
			i++
		case c == ',':
			tokens = append(tokens, token{typ: tokenComma})
			i++
		case c == '=':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{typ: tokenEq})
				i += 2
			} else {
				tokens = append(tokens, token{typ: tokenAssign})
				i++
			}
		case c == '!':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{typ: tokenNeq})
				i += 2
			} else {
				return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, c)
			}
		case c == '[':
			name, width, err := scanColumnRef(expr[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenColumn, val: name})
			i += width
		case c == '\'' || c == '"':
			lit, width, err := scanString(expr[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenString, val: lit})
			i += width
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{typ: tokenNumber, val: expr[i:j]})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
				j++
			}
			tokens = append(tokens, token{typ: tokenIdent, val: expr[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, c)
		}
	}

	tokens = append(tokens, token{typ: tokenEOF})
	return tokens, nil
}

// scanColumnRef consumes a bracketed reference ["name"] and returns the
// column name and consumed width.
func scanColumnRef(s string) (string, int, error) {
	if len(s) < 4 || s[1] != '"' {
		return "", 0, fmt.Errorf("%w: malformed column reference", ErrSyntax)
	}

	end := strings.Index(s[2:], `"]`)
	if end < 0 {
		return "", 0, fmt.Errorf("%w: unterminated column reference", ErrSyntax)
	}

	return s[2 : 2+end], end + 4, nil
}

// scanString consumes a quoted literal and returns its value and consumed
// width.
func scanString(s string) (string, int, error) {
	quote := s[0]
	end := strings.IndexByte(s[1:], quote)
	if end < 0 {
		return "", 0, fmt.Errorf("%w: unterminated string literal", ErrSyntax)
	}

	return s[1 : 1+end], end + 2, nil
}
