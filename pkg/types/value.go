// pkg/types/value.go
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the type of a database value
type ValueType int

const (
	TypeNull ValueType = iota
	TypeInt
	TypeReal
	TypeText
	TypeBlob
)

// String returns the canonical DDL name of the type
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInt:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value represents a dynamically typed database value
type Value struct {
	typ     ValueType
	intVal  int64
	realVal float64
	textVal string
	blobVal []byte
}

func NewNull() Value {
	return Value{typ: TypeNull}
}

func NewInt(i int64) Value {
	return Value{typ: TypeInt, intVal: i}
}

func NewReal(f float64) Value {
	return Value{typ: TypeReal, realVal: f}
}

func NewText(s string) Value {
	return Value{typ: TypeText, textVal: s}
}

func NewBlob(b []byte) Value {
	if b == nil {
		return Value{typ: TypeBlob}
	}
	copied := make([]byte, len(b))
	copy(copied, b)
	return Value{typ: TypeBlob, blobVal: copied}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNull() bool    { return v.typ == TypeNull }
func (v Value) Int() int64      { return v.intVal }
func (v Value) Real() float64   { return v.realVal }
func (v Value) Text() string    { return v.textVal }

func (v Value) Blob() []byte {
	if v.blobVal == nil {
		return nil
	}
	copied := make([]byte, len(v.blobVal))
	copy(copied, v.blobVal)
	return copied
}

// String renders the value the way the shell prints it
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeInt:
		return strconv.FormatInt(v.intVal, 10)
	case TypeReal:
		return strconv.FormatFloat(v.realVal, 'g', -1, 64)
	case TypeText:
		return v.textVal
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.blobVal)
	default:
		return "?"
	}
}

// Equal reports whether two values are the same type and content.
// Unlike Compare, NULL equals NULL here; this is identity, not SQL equality.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeInt:
		return v.intVal == o.intVal
	case TypeReal:
		return v.realVal == o.realVal
	case TypeText:
		return v.textVal == o.textVal
	case TypeBlob:
		return string(v.blobVal) == string(o.blobVal)
	}
	return false
}

// Compare orders two values: -1, 0, or 1 with ok=true when the pair is
// comparable. Integers and reals compare numerically with each other; text
// compares with text; blob with blob. Every pair involving NULL, and any
// other mixed-kind pair, is incomparable (ok=false) for all operators,
// including = and <>.
func Compare(a, b Value) (int, bool) {
	if a.IsNull() || b.IsNull() {
		return 0, false
	}
	switch {
	case a.typ == TypeInt && b.typ == TypeInt:
		return cmpInt(a.intVal, b.intVal), true
	case isNumeric(a.typ) && isNumeric(b.typ):
		return cmpReal(a.asReal(), b.asReal()), true
	case a.typ == TypeText && b.typ == TypeText:
		return strings.Compare(a.textVal, b.textVal), true
	case a.typ == TypeBlob && b.typ == TypeBlob:
		return strings.Compare(string(a.blobVal), string(b.blobVal)), true
	default:
		return 0, false
	}
}

func isNumeric(t ValueType) bool {
	return t == TypeInt || t == TypeReal
}

func (v Value) asReal() float64 {
	if v.typ == TypeInt {
		return float64(v.intVal)
	}
	return v.realVal
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpReal(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
