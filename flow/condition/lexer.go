//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package condition

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenBool
	tokenOp     // == != < <= > >=
	tokenNot    // ! or not
	tokenAnd    // && or and
	tokenOr     // || or or
	tokenLParen // (
	tokenRParen // )
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits a condition expression into tokens. Keywords (and, or, not,
// true, false) are matched case-insensitively.
func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokenString, text: string(runes[i+1 : j]), pos: i})
			i = j + 1
		case r == '&':
			if i+1 < len(runes) && runes[i+1] == '&' {
				tokens = append(tokens, token{kind: tokenAnd, text: "&&", pos: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		case r == '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				tokens = append(tokens, token{kind: tokenOr, text: "||", pos: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenOp, text: "==", pos: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at offset %d (did you mean ==?)", r, i)
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenOp, text: "!=", pos: i})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, text: "!", pos: i})
			i++
		case r == '<' || r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenOp, text: string(r) + "=", pos: i})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokenOp, text: string(r), pos: i})
			i++
		case unicode.IsDigit(r):
			j := i
			seenDot := false
			for j < len(runes) && (unicode.IsDigit(runes[j]) || (runes[j] == '.' && !seenDot)) {
				if runes[j] == '.' {
					seenDot = true
				}
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[i:j]), pos: i})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			switch strings.ToLower(word) {
			case "and":
				tokens = append(tokens, token{kind: tokenAnd, text: word, pos: i})
			case "or":
				tokens = append(tokens, token{kind: tokenOr, text: word, pos: i})
			case "not":
				tokens = append(tokens, token{kind: tokenNot, text: word, pos: i})
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, text: strings.ToLower(word), pos: i})
			default:
				tokens = append(tokens, token{kind: tokenIdent, text: word, pos: i})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})
	return tokens, nil
}
