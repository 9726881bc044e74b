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

// Package expr holds the expression tree shared by predicates and per-file transforms.
package expr

import (
	"strings"

	"github.com/lbhm/delta-kernel-go/storage/schema"
)

type Kind int8

const (
	KindLiteral Kind = iota
	KindColumn
	KindStruct
	KindUnary
	KindBinary
)

// Expression is implemented only by *Literal, *Column, *Struct, *Unary and *Binary.
type Expression interface {
	Kind() Kind
	String() string
	isExpression()
}

type UnaryOp int8

const (
	Not UnaryOp = iota
	IsNull
	CastOp
)

type BinaryOp int8

const (
	Equal BinaryOp = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	And
	Or
	Plus
	Minus
	Multiply
	Divide
)

var binarySymbols = [...]string{"=", "!=", "<", "<=", ">", ">=", "AND", "OR", "+", "-", "*", "/"}

func (op BinaryOp) String() string {
	return binarySymbols[op]
}

func (op BinaryOp) IsComparison() bool {
	return op <= GreaterThanOrEqual
}

func (op BinaryOp) IsLogical() bool {
	return op == And || op == Or
}

func (op BinaryOp) IsArithmetic() bool {
	return op >= Plus
}

// Commute returns the operator for swapped operands, e.g. a < b as b > a.
func (op BinaryOp) Commute() BinaryOp {
	switch op {
	case LessThan:
		return GreaterThan
	case LessThanOrEqual:
		return GreaterThanOrEqual
	case GreaterThan:
		return LessThan
	case GreaterThanOrEqual:
		return LessThanOrEqual
	}
	return op
}

// Negate returns the comparison that is true exactly when op is false for non-null operands.
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case LessThan:
		return GreaterThanOrEqual
	case LessThanOrEqual:
		return GreaterThan
	case GreaterThan:
		return LessThanOrEqual
	case GreaterThanOrEqual:
		return LessThan
	case And:
		return Or
	case Or:
		return And
	}
	return op
}

type Literal struct {
	Value Scalar
}

func (*Literal) Kind() Kind    { return KindLiteral }
func (*Literal) isExpression() {}
func (l *Literal) String() string {
	return l.Value.String()
}

// Column references a possibly nested column by its path.
type Column struct {
	Path []string
}

func (*Column) Kind() Kind    { return KindColumn }
func (*Column) isExpression() {}
func (c *Column) String() string {
	return strings.Join(c.Path, ".")
}

func (c *Column) Name() string {
	return c.Path[len(c.Path)-1]
}

// Struct builds one output column per child, in order.
type Struct struct {
	Fields []Expression
}

func (*Struct) Kind() Kind    { return KindStruct }
func (*Struct) isExpression() {}
func (s *Struct) String() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, f.String())
	}
	return "STRUCT(" + strings.Join(parts, ", ") + ")"
}

type Unary struct {
	Op    UnaryOp
	Child Expression
	// Type is the target of a CastOp.
	Type schema.DataType
}

func (*Unary) Kind() Kind    { return KindUnary }
func (*Unary) isExpression() {}
func (u *Unary) String() string {
	switch u.Op {
	case Not:
		return "NOT (" + u.Child.String() + ")"
	case IsNull:
		return u.Child.String() + " IS NULL"
	default:
		return "CAST(" + u.Child.String() + " AS " + u.Type.String() + ")"
	}
}

type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (*Binary) Kind() Kind    { return KindBinary }
func (*Binary) isExpression() {}
func (b *Binary) String() string {
	if b.Op.IsLogical() {
		return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
	}
	return b.Left.String() + " " + b.Op.String() + " " + b.Right.String()
}

func Lit(s Scalar) *Literal {
	return &Literal{Value: s}
}

// Col splits name on dots; use ColPath for names containing dots.
func Col(name string) *Column {
	return &Column{Path: strings.Split(name, ".")}
}

func ColPath(path ...string) *Column {
	return &Column{Path: path}
}

func NewStruct(fields ...Expression) *Struct {
	return &Struct{Fields: fields}
}

func NewNot(e Expression) *Unary {
	return &Unary{Op: Not, Child: e}
}

func NewIsNull(e Expression) *Unary {
	return &Unary{Op: IsNull, Child: e}
}

func NewIsNotNull(e Expression) *Unary {
	return NewNot(NewIsNull(e))
}

func NewCast(e Expression, t schema.DataType) *Unary {
	return &Unary{Op: CastOp, Child: e, Type: t}
}

func NewBinary(op BinaryOp, l, r Expression) *Binary {
	return &Binary{Op: op, Left: l, Right: r}
}

func Eq(l, r Expression) *Binary { return NewBinary(Equal, l, r) }
func Ne(l, r Expression) *Binary { return NewBinary(NotEqual, l, r) }
func Lt(l, r Expression) *Binary { return NewBinary(LessThan, l, r) }
func Le(l, r Expression) *Binary { return NewBinary(LessThanOrEqual, l, r) }
func Gt(l, r Expression) *Binary { return NewBinary(GreaterThan, l, r) }
func Ge(l, r Expression) *Binary { return NewBinary(GreaterThanOrEqual, l, r) }

// NewAnd folds its operands left to right; a single operand is returned as is.
func NewAnd(first Expression, rest ...Expression) Expression {
	out := first
	for _, e := range rest {
		out = NewBinary(And, out, e)
	}
	return out
}

func NewOr(first Expression, rest ...Expression) Expression {
	out := first
	for _, e := range rest {
		out = NewBinary(Or, out, e)
	}
	return out
}

// Walk visits e depth-first, parents before children, until fn returns false.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Struct:
		for _, f := range n.Fields {
			Walk(f, fn)
		}
	case *Unary:
		Walk(n.Child, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	}
}

// References lists the distinct column paths e reads, in first-seen order.
func References(e Expression) []*Column {
	var out []*Column
	seen := make(map[string]struct{})
	Walk(e, func(n Expression) bool {
		if c, ok := n.(*Column); ok {
			key := strings.Join(c.Path, "\x00")
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				out = append(out, c)
			}
		}
		return true
	})
	return out
}
