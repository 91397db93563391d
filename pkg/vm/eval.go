// pkg/vm/eval.go
package vm

import (
	"fmt"

	"keel/pkg/record"
	"keel/pkg/sql/parser"
	"keel/pkg/types"
)

// evalCondition evaluates a disjunction-of-conjunctions condition against a
// row. A nil condition is true. Conjunctions short-circuit on the first
// false predicate, the disjunction on the first true clause.
func (v *VirtualMachine) evalCondition(cond *parser.Condition, row record.Row) (bool, error) {
	if cond == nil {
		return true, nil
	}
	for _, clause := range cond.AndClauses {
		clauseResult := true
		for _, pred := range clause.Predicates {
			ok, err := v.evalComparison(pred, row)
			if err != nil {
				return false, err
			}
			if !ok {
				clauseResult = false
				break
			}
		}
		if clauseResult {
			return true, nil
		}
	}
	return false, nil
}

// evalComparison resolves both operands against the row and applies the
// operator. A comparison between incomparable value kinds (NULL included)
// is false, not an error.
func (v *VirtualMachine) evalComparison(pred parser.Comparison, row record.Row) (bool, error) {
	left, err := resolveOperand(pred.Left, row)
	if err != nil {
		return false, err
	}
	right, err := resolveOperand(pred.Right, row)
	if err != nil {
		return false, err
	}

	cmp, comparable := types.Compare(left, right)
	if !comparable {
		return false, nil
	}

	switch pred.Operator {
	case parser.OpEqual:
		return cmp == 0, nil
	case parser.OpNotEqual:
		return cmp != 0, nil
	case parser.OpLess:
		return cmp < 0, nil
	case parser.OpLessEqual:
		return cmp <= 0, nil
	case parser.OpGreater:
		return cmp > 0, nil
	case parser.OpGreaterEqual:
		return cmp >= 0, nil
	default:
		panic(fmt.Sprintf("vm: unknown comparison operator %v", pred.Operator))
	}
}

// resolveOperand turns an operand into a value: literals pass through, bare
// and scoped column references resolve against the row
func resolveOperand(op parser.Operand, row record.Row) (types.Value, error) {
	switch o := op.(type) {
	case parser.Literal:
		return o.Value, nil
	case parser.ColumnRef:
		return row.Lookup(o.Source, o.Column)
	default:
		panic(fmt.Sprintf("vm: unknown operand type %T", op))
	}
}
