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

// Package filter decides which files and row groups a predicate can skip, and applies row
// selections to record batches.
package filter

import (
	"github.com/lbhm/delta-kernel-go/expr"
)

// Result is a three-valued truth value.
type Result int8

const (
	Unknown Result = iota
	False
	True
)

func (r Result) String() string {
	switch r {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "unknown"
}

func (r Result) Not() Result {
	switch r {
	case False:
		return True
	case True:
		return False
	}
	return Unknown
}

func and(a, b Result) Result {
	switch {
	case a == False || b == False:
		return False
	case a == True && b == True:
		return True
	}
	return Unknown
}

func or(a, b Result) Result {
	switch {
	case a == True || b == True:
		return True
	case a == False && b == False:
		return False
	}
	return Unknown
}

func fromBool(b bool) Result {
	if b {
		return True
	}
	return False
}

// literalResult interprets a literal used as a whole predicate.
func literalResult(s expr.Scalar) Result {
	if v, ok := s.Value.(bool); ok {
		return fromBool(v)
	}
	return Unknown
}

// comparison normalizes a binary comparison into column op literal form.
func comparison(b *expr.Binary) (*expr.Column, expr.BinaryOp, expr.Scalar, bool) {
	if col, ok := b.Left.(*expr.Column); ok {
		if lit, ok := b.Right.(*expr.Literal); ok {
			return col, b.Op, lit.Value, true
		}
	}
	if lit, ok := b.Left.(*expr.Literal); ok {
		if col, ok := b.Right.(*expr.Column); ok {
			return col, b.Op.Commute(), lit.Value, true
		}
	}
	return nil, 0, expr.Scalar{}, false
}
