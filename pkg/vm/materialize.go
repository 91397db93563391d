// pkg/vm/materialize.go
package vm

import (
	"errors"
	"fmt"

	"keel/pkg/btree"
	"keel/pkg/record"
	"keel/pkg/sql/parser"
)

// ErrNotImplemented marks features the parser recognizes but the VM does
// not yet execute (outer joins).
var ErrNotImplemented = errors.New("not implemented")

// materialize turns a FROM source into a named record set
func (v *VirtualMachine) materialize(source parser.FromSource) (string, error) {
	switch src := source.(type) {
	case *parser.SingleSource:
		return v.materializeFromName(src.TableName)
	case *parser.Joining:
		return v.materializeJoining(src)
	default:
		panic(fmt.Sprintf("vm: unknown materialization source type %T", source))
	}
}

// materializeFromName scans a table's tree into a fresh record set. The
// reserved name "catalog" resolves to the catalog tree and schema.
func (v *VirtualMachine) materializeFromName(tableName string) (string, error) {
	tableSchema, err := v.state.GetSchema(tableName)
	if err != nil {
		return "", err
	}
	tree, err := v.state.GetTree(tableName)
	if err != nil {
		return "", err
	}

	rsname := v.initRecordSet()
	cursor, err := btree.NewCursor(tree)
	if err != nil {
		v.dropRecordSet(rsname)
		return "", err
	}
	defer cursor.Close()

	for !cursor.EndOfTable() {
		rec, err := record.DeserializeCell(cursor.GetCell(), tableSchema)
		if err != nil {
			v.dropRecordSet(rsname)
			return "", err
		}
		v.appendRecordSet(rsname, rec)
		cursor.Advance()
	}
	return rsname, nil
}

// materializeJoining unwinds a left-deep join tree and materializes it as a
// chain of pairwise joins. The parser nests the leftmost source deepest, so
// the walk pushes join nodes onto a stack until the leaf single source, then
// joins back up.
func (v *VirtualMachine) materializeJoining(source *parser.Joining) (string, error) {
	stack := []*parser.Joining{source}
	var leaf *parser.SingleSource
	for ptr := source; ; {
		next, isJoin := ptr.LeftSource.(*parser.Joining)
		if !isJoin {
			leaf = ptr.LeftSource.(*parser.SingleSource)
			break
		}
		stack = append(stack, next)
		ptr = next
	}

	rsname, err := v.materializeFromName(leaf.TableName)
	if err != nil {
		return "", err
	}
	// leftName is only set while the left side holds simple records; after
	// the first join the records carry their own origins
	leftName := leaf.Name()

	for len(stack) > 0 {
		nextJoin := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		right := nextJoin.RightSource
		rightRS, err := v.materializeFromName(right.TableName)
		if err != nil {
			v.dropRecordSet(rsname)
			return "", err
		}

		joined, err := v.joinRecordSets(nextJoin, rsname, rightRS, leftName, right.Name())
		v.dropRecordSet(rsname)
		v.dropRecordSet(rightRS)
		if err != nil {
			return "", err
		}
		rsname = joined
		leftName = ""
	}
	return rsname, nil
}

// joinRecordSets materializes one pairwise join: a stable nested loop over
// the left and right sets. With leftName set, both sides hold simple
// records; otherwise the left side holds joined records. Only inner and
// cross joins execute; the outer variants are recognized and rejected.
func (v *VirtualMachine) joinRecordSets(join *parser.Joining, leftRS, rightRS, leftName, rightName string) (string, error) {
	switch join.JoinType {
	case parser.JoinInner, parser.JoinCross:
	default:
		return "", fmt.Errorf("%w: %s", ErrNotImplemented, join.JoinType)
	}

	rsname := v.initRecordSet()
	for _, leftRow := range v.recordSetIter(leftRS) {
		for _, rightRow := range v.recordSetIter(rightRS) {
			rightRec := rightRow.(*record.Record)

			var joined *record.JoinedRecord
			var err error
			if leftName != "" {
				joined, err = record.FromSimpleRecords(leftRow.(*record.Record), rightRec, leftName, rightName)
			} else {
				joined, err = record.FromJoinedAndSimple(leftRow.(*record.JoinedRecord), rightRec, rightName)
			}
			if err != nil {
				v.dropRecordSet(rsname)
				return "", err
			}

			// an absent ON condition always matches (cross product)
			match, err := v.evalCondition(join.Condition, joined)
			if err != nil {
				v.dropRecordSet(rsname)
				return "", err
			}
			if match {
				v.appendRecordSet(rsname, joined)
			}
		}
	}
	return rsname, nil
}

// filterRecordSet applies a condition to a record set, producing a new set
// holding the rows it admits
func (v *VirtualMachine) filterRecordSet(cond *parser.Condition, sourceRS string) (string, error) {
	rsname := v.initRecordSet()
	for _, row := range v.recordSetIter(sourceRS) {
		match, err := v.evalCondition(cond, row)
		if err != nil {
			v.dropRecordSet(rsname)
			return "", err
		}
		if match {
			v.appendRecordSet(rsname, row)
		}
	}
	return rsname, nil
}
