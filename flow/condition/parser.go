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
	"strconv"
)

// expr is a parsed condition expression node.
type expr interface {
	eval(vars map[string]any) any
}

type literalExpr struct {
	value any // float64, string or bool
}

func (e *literalExpr) eval(map[string]any) any { return e.value }

type identExpr struct {
	name string
}

func (e *identExpr) eval(vars map[string]any) any {
	if value, ok := vars[e.name]; ok {
		return value
	}
	return sentinelDefault(e.name)
}

type notExpr struct {
	operand expr
}

func (e *notExpr) eval(vars map[string]any) any {
	return !truthy(e.operand.eval(vars))
}

type andExpr struct {
	left, right expr
}

func (e *andExpr) eval(vars map[string]any) any {
	return truthy(e.left.eval(vars)) && truthy(e.right.eval(vars))
}

type orExpr struct {
	left, right expr
}

func (e *orExpr) eval(vars map[string]any) any {
	return truthy(e.left.eval(vars)) || truthy(e.right.eval(vars))
}

type compareExpr struct {
	op          string
	left, right expr
}

func (e *compareExpr) eval(vars map[string]any) any {
	return compare(e.op, e.left.eval(vars), e.right.eval(vars))
}

// parser consumes the token stream produced by lex. Precedence from
// loosest to tightest: or, and, not, comparison, primary.
type parser struct {
	tokens []token
	pos    int
}

func parse(input string) (expr, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at offset %d", p.peek().text, p.peek().pos)
	}
	return e, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.peek().kind == tokenNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notExpr{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokenOp {
		op := p.next().text
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &compareExpr{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokenLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis at offset %d", p.peek().pos)
		}
		p.next()
		return e, nil
	case tokenNumber:
		value, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at offset %d", t.text, t.pos)
		}
		return &literalExpr{value: value}, nil
	case tokenString:
		return &literalExpr{value: t.text}, nil
	case tokenBool:
		return &literalExpr{value: t.text == "true"}, nil
	case tokenIdent:
		return &identExpr{name: t.text}, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", t.text, t.pos)
	}
}
