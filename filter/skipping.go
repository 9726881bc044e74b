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

// Stats exposes min/max/null-count statistics of a file or row group. A false second return
// means the statistic is missing.
type Stats interface {
	NumRecords() (int64, bool)
	Min(path []string) (expr.Scalar, bool)
	Max(path []string) (expr.Scalar, bool)
	NullCount(path []string) (int64, bool)
}

// Evaluate decides pred against stats. False means no row can satisfy pred; Unknown and True
// both mean the file must be read.
func Evaluate(pred expr.Expression, stats Stats) Result {
	if pred == nil {
		return Unknown
	}
	return evalStats(pred, stats, false)
}

// CanSkip reports whether stats prove pred false for every row.
func CanSkip(pred expr.Expression, stats Stats) bool {
	return Evaluate(pred, stats) == False
}

// evalStats evaluates pred, or NOT pred when negated, pushing the negation down to the leaves.
func evalStats(pred expr.Expression, stats Stats, negated bool) Result {
	switch n := pred.(type) {
	case *expr.Literal:
		r := literalResult(n.Value)
		if negated {
			return r.Not()
		}
		return r
	case *expr.Column:
		// a bare boolean column reads as col = true
		b := expr.Eq(n, expr.Lit(expr.BoolValue(true)))
		return evalStats(b, stats, negated)
	case *expr.Unary:
		switch n.Op {
		case expr.Not:
			return evalStats(n.Child, stats, !negated)
		case expr.IsNull:
			col, ok := n.Child.(*expr.Column)
			if !ok {
				return Unknown
			}
			return nullCheck(col, stats, negated)
		}
		return Unknown
	case *expr.Binary:
		if n.Op.IsLogical() {
			l := evalStats(n.Left, stats, negated)
			r := evalStats(n.Right, stats, negated)
			// De Morgan: NOT (a AND b) is NOT a OR NOT b.
			if (n.Op == expr.And) != negated {
				return and(l, r)
			}
			return or(l, r)
		}
		if !n.Op.IsComparison() {
			return Unknown
		}
		col, op, lit, ok := comparison(n)
		if !ok {
			return Unknown
		}
		if negated {
			op = op.Negate()
		}
		return compareStats(col, op, lit, stats)
	}
	return Unknown
}

func nullCheck(col *expr.Column, stats Stats, negated bool) Result {
	nulls, ok := stats.NullCount(col.Path)
	if !ok {
		return Unknown
	}
	rows, hasRows := stats.NumRecords()
	if !negated {
		// IS NULL
		if nulls == 0 {
			return False
		}
		if hasRows && nulls == rows {
			return True
		}
		return Unknown
	}
	// IS NOT NULL
	if hasRows && nulls == rows {
		return False
	}
	if nulls == 0 {
		return True
	}
	return Unknown
}

func compareStats(col *expr.Column, op expr.BinaryOp, lit expr.Scalar, stats Stats) Result {
	if lit.IsNull() {
		return Unknown
	}
	min, hasMin := stats.Min(col.Path)
	max, hasMax := stats.Max(col.Path)
	switch op {
	case expr.Equal:
		if hasMin {
			if c, ok := expr.Compare(lit, min); ok && c < 0 {
				return False
			}
		}
		if hasMax {
			if c, ok := expr.Compare(lit, max); ok && c > 0 {
				return False
			}
		}
	case expr.NotEqual:
		// string bounds may be truncated, so equal bounds do not prove a single value
		if !hasMin || !hasMax || expr.FamilyOf(min.Type) == expr.FamilyString {
			return Unknown
		}
		c1, ok1 := expr.Compare(min, lit)
		c2, ok2 := expr.Compare(max, lit)
		if ok1 && ok2 && c1 == 0 && c2 == 0 {
			return False
		}
	case expr.LessThan:
		if hasMin {
			if c, ok := expr.Compare(min, lit); ok && c >= 0 {
				return False
			}
		}
	case expr.LessThanOrEqual:
		if hasMin {
			if c, ok := expr.Compare(min, lit); ok && c > 0 {
				return False
			}
		}
	case expr.GreaterThan:
		if hasMax {
			if c, ok := expr.Compare(max, lit); ok && c <= 0 {
				return False
			}
		}
	case expr.GreaterThanOrEqual:
		if hasMax {
			if c, ok := expr.Compare(max, lit); ok && c < 0 {
				return False
			}
		}
	}
	return Unknown
}
