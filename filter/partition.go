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

package filter

import (
	"github.com/lbhm/delta-kernel-go/expr"
)

// EvaluatePartition decides pred exactly for the columns in values. Columns absent from values
// and comparisons involving NULL are Unknown.
func EvaluatePartition(pred expr.Expression, values map[string]expr.Scalar) Result {
	if pred == nil {
		return Unknown
	}
	switch n := pred.(type) {
	case *expr.Literal:
		return literalResult(n.Value)
	case *expr.Column:
		v, ok := partitionValue(n, values)
		if !ok {
			return Unknown
		}
		return literalResult(v)
	case *expr.Unary:
		switch n.Op {
		case expr.Not:
			return EvaluatePartition(n.Child, values).Not()
		case expr.IsNull:
			v, ok := operand(n.Child, values)
			if !ok {
				return Unknown
			}
			return fromBool(v.IsNull())
		}
		return Unknown
	case *expr.Binary:
		switch {
		case n.Op == expr.And:
			return and(EvaluatePartition(n.Left, values), EvaluatePartition(n.Right, values))
		case n.Op == expr.Or:
			return or(EvaluatePartition(n.Left, values), EvaluatePartition(n.Right, values))
		case n.Op.IsComparison():
			l, ok := operand(n.Left, values)
			if !ok {
				return Unknown
			}
			r, ok := operand(n.Right, values)
			if !ok {
				return Unknown
			}
			c, ok := expr.Compare(l, r)
			if !ok {
				return Unknown
			}
			return fromBool(holds(n.Op, c))
		}
	}
	return Unknown
}

func partitionValue(c *expr.Column, values map[string]expr.Scalar) (expr.Scalar, bool) {
	if len(c.Path) != 1 {
		return expr.Scalar{}, false
	}
	v, ok := values[c.Path[0]]
	return v, ok
}

func operand(e expr.Expression, values map[string]expr.Scalar) (expr.Scalar, bool) {
	switch n := e.(type) {
	case *expr.Literal:
		return n.Value, true
	case *expr.Column:
		return partitionValue(n, values)
	}
	return expr.Scalar{}, false
}

func holds(op expr.BinaryOp, c int) bool {
	switch op {
	case expr.Equal:
		return c == 0
	case expr.NotEqual:
		return c != 0
	case expr.LessThan:
		return c < 0
	case expr.LessThanOrEqual:
		return c <= 0
	case expr.GreaterThan:
		return c > 0
	case expr.GreaterThanOrEqual:
		return c >= 0
	}
	return false
}
