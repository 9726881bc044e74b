// Copyright 2023 Zilliz
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package defaultengine

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

type tokenKind int8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case c == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case c == ',':
			out = append(out, token{tokComma, ",", i})
			i++
		case c == '\'' || c == '`':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(src) {
				if rune(src[i]) == c {
					if i+1 < len(src) && rune(src[i+1]) == c {
						sb.WriteByte(src[i])
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, errors.NewPlanningError("unterminated quote at offset %d", start)
			}
			kind := tokString
			if c == '`' {
				kind = tokQuotedIdent
			}
			out = append(out, token{kind, sb.String(), start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == 'e' || src[i] == 'E' ||
				((src[i] == '-' || src[i] == '+') && (src[i-1] == 'e' || src[i-1] == 'E'))) {
				i++
			}
			out = append(out, token{tokNumber, src[start:i], start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || isDigit(src[i]) || unicode.IsLetter(rune(src[i]))) {
				i++
			}
			out = append(out, token{tokIdent, src[start:i], start})
		default:
			start := i
			two := ""
			if i+1 < len(src) {
				two = src[i : i+2]
			}
			switch two {
			case "<=", ">=", "!=", "<>", "==":
				out = append(out, token{tokOp, two, start})
				i += 2
				continue
			}
			switch c {
			case '=', '<', '>', '+', '-', '*', '/', '.':
				out = append(out, token{tokOp, string(c), start})
				i++
			default:
				return nil, errors.NewPlanningError("unexpected character %q at offset %d", c, i)
			}
		}
	}
	return append(out, token{kind: tokEOF, pos: len(src)}), nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

type predicateParser struct {
	toks []token
	pos  int
}

// ParsePredicate parses a SQL-like boolean expression:
//
//	a > 5 AND (s.name = 'x' OR b IS NOT NULL) AND NOT dt < DATE '2024-01-01'
//
// Supported literals are 'strings', numbers, TRUE, FALSE, NULL, DATE '...', TIMESTAMP '...'
// and CAST(expr AS type). Backquotes quote column names containing dots or spaces.
func ParsePredicate(text string) (expr.Expression, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &predicateParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.NewPlanningError("unexpected %q at offset %d", t.text, t.pos)
	}
	return e, nil
}

func (p *predicateParser) peek() token {
	return p.toks[p.pos]
}

func (p *predicateParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *predicateParser) keyword(words ...string) bool {
	for i, w := range words {
		if p.pos+i >= len(p.toks) {
			return false
		}
		t := p.toks[p.pos+i]
		if t.kind != tokIdent || !strings.EqualFold(t.text, w) {
			return false
		}
	}
	p.pos += len(words)
	return true
}

func (p *predicateParser) parseOr() (expr.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.NewBinary(expr.Or, left, right)
	}
	return left, nil
}

func (p *predicateParser) parseAnd() (expr.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = expr.NewBinary(expr.And, left, right)
	}
	return left, nil
}

func (p *predicateParser) parseNot() (expr.Expression, error) {
	if p.keyword("NOT") {
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return expr.NewNot(child), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]expr.BinaryOp{
	"=":  expr.Equal,
	"==": expr.Equal,
	"!=": expr.NotEqual,
	"<>": expr.NotEqual,
	"<":  expr.LessThan,
	"<=": expr.LessThanOrEqual,
	">":  expr.GreaterThan,
	">=": expr.GreaterThanOrEqual,
}

func (p *predicateParser) parseComparison() (expr.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.keyword("IS", "NOT", "NULL") {
		return expr.NewIsNotNull(left), nil
	}
	if p.keyword("IS", "NULL") {
		return expr.NewIsNull(left), nil
	}
	t := p.peek()
	if t.kind == tokOp {
		if op, ok := comparisonOps[t.text]; ok {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return expr.NewBinary(op, left, right), nil
		}
	}
	return left, nil
}

func (p *predicateParser) parseAdditive() (expr.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		op := expr.Plus
		if t.text == "-" {
			op = expr.Minus
		}
		left = expr.NewBinary(op, left, right)
	}
}

func (p *predicateParser) parseMultiplicative() (expr.Expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		op := expr.Multiply
		if t.text == "/" {
			op = expr.Divide
		}
		left = expr.NewBinary(op, left, right)
	}
}

func (p *predicateParser) parsePrimary() (expr.Expression, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.kind != tokRParen {
			return nil, errors.NewPlanningError("expected ) at offset %d", r.pos)
		}
		return e, nil
	case tokString:
		return expr.Lit(expr.StringValue(t.text)), nil
	case tokNumber:
		return parseNumber(t)
	case tokOp:
		if t.text == "-" {
			n := p.next()
			if n.kind != tokNumber {
				return nil, errors.NewPlanningError("expected number after - at offset %d", n.pos)
			}
			n.text = "-" + n.text
			return parseNumber(n)
		}
	case tokQuotedIdent:
		return p.parseColumn(t.text)
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			return expr.Lit(expr.BoolValue(true)), nil
		case "FALSE":
			return expr.Lit(expr.BoolValue(false)), nil
		case "NULL":
			return expr.Lit(expr.Scalar{}), nil
		case "DATE", "TIMESTAMP", "TIMESTAMP_NTZ":
			if s := p.peek(); s.kind == tokString {
				p.next()
				typ := schema.Date
				switch strings.ToUpper(t.text) {
				case "TIMESTAMP":
					typ = schema.Timestamp
				case "TIMESTAMP_NTZ":
					typ = schema.TimestampNtz
				}
				v, err := expr.ParseScalar(typ, s.text)
				if err != nil {
					return nil, errors.NewPlanningError("invalid %s literal: %v", typ, err)
				}
				return expr.Lit(v), nil
			}
		case "CAST":
			return p.parseCast(t)
		}
		return p.parseColumn(t.text)
	}
	return nil, errors.NewPlanningError("unexpected %q at offset %d", t.text, t.pos)
}

func (p *predicateParser) parseColumn(first string) (expr.Expression, error) {
	path := []string{first}
	for {
		t := p.peek()
		if t.kind != tokOp || t.text != "." {
			return expr.ColPath(path...), nil
		}
		p.next()
		n := p.next()
		if n.kind != tokIdent && n.kind != tokQuotedIdent {
			return nil, errors.NewPlanningError("expected field name at offset %d", n.pos)
		}
		path = append(path, n.text)
	}
}

func (p *predicateParser) parseCast(at token) (expr.Expression, error) {
	if t := p.next(); t.kind != tokLParen {
		return nil, errors.NewPlanningError("expected ( after CAST at offset %d", at.pos)
	}
	child, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.keyword("AS") {
		return nil, errors.NewPlanningError("expected AS in CAST at offset %d", p.peek().pos)
	}
	var sb strings.Builder
	depth := 0
	for {
		t := p.next()
		switch t.kind {
		case tokEOF:
			return nil, errors.NewPlanningError("unterminated CAST at offset %d", at.pos)
		case tokLParen:
			depth++
		case tokRParen:
			if depth == 0 {
				typ, err := schema.ParsePrimitive(strings.ToLower(sb.String()))
				if err != nil {
					return nil, errors.NewPlanningError("invalid CAST type %q", sb.String())
				}
				return expr.NewCast(child, typ), nil
			}
			depth--
		}
		sb.WriteString(t.text)
	}
}

func parseNumber(t token) (expr.Expression, error) {
	if !strings.ContainsAny(t.text, ".eE") {
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err == nil {
			return expr.Lit(expr.LongValue(v)), nil
		}
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, errors.NewPlanningError("invalid number %q at offset %d", t.text, t.pos)
	}
	return expr.Lit(expr.DoubleValue(f)), nil
}
