// pkg/record/record.go
package record

import (
	"errors"
	"fmt"

	"keel/pkg/schema"
	"keel/pkg/types"
)

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrAmbiguousColumn = errors.New("ambiguous column reference")
	ErrSourceNotFound  = errors.New("source not found")
	ErrNotJoined       = errors.New("scoped reference on a simple record")
	ErrDuplicateSource = errors.New("duplicate source name")
	ErrTypeMismatch    = errors.New("value does not match column type")
	ErrNullViolation   = errors.New("column is not nullable")
)

// Row is a record produced during statement execution: either a simple
// Record or a JoinedRecord. Lookup resolves a bare (source == "") or scoped
// column reference against the row.
type Row interface {
	Lookup(source, column string) (types.Value, error)
}

// Record maps column names to values under a schema. Records are
// copy-by-value: they never share storage with pages or other records.
type Record struct {
	schema *schema.Schema
	values map[string]types.Value
}

// NewRecord creates an empty record bound to a schema
func NewRecord(s *schema.Schema) *Record {
	return &Record{schema: s, values: make(map[string]types.Value, len(s.Columns))}
}

// Schema returns the record's schema
func (r *Record) Schema() *schema.Schema {
	return r.schema
}

// Get returns the value of a column
func (r *Record) Get(column string) (types.Value, error) {
	v, ok := r.values[column]
	if !ok {
		return types.NewNull(), fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	return v, nil
}

// Lookup implements Row. Scoped references do not resolve against a simple
// record.
func (r *Record) Lookup(source, column string) (types.Value, error) {
	if source != "" {
		return types.NewNull(), fmt.Errorf("%w: %s.%s", ErrNotJoined, source, column)
	}
	return r.Get(column)
}

// Set assigns a column value without validation. Callers that accept user
// input go through CreateRecord instead.
func (r *Record) Set(column string, v types.Value) {
	r.values[column] = v
}

// PrimaryKey returns the value of the primary-key column
func (r *Record) PrimaryKey() types.Value {
	col, _ := r.schema.PrimaryKey()
	if col == nil {
		return types.NewNull()
	}
	v := r.values[col.Name]
	return v
}

// Values returns the record's values in schema column order
func (r *Record) Values() []types.Value {
	out := make([]types.Value, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		out[i] = r.values[col.Name]
	}
	return out
}

// Clone returns an independent copy of the record
func (r *Record) Clone() *Record {
	c := NewRecord(r.schema)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// CreateRecord builds a validated record from parallel column-name and value
// lists. Values are checked against column types; integer values fill REAL
// columns; NULL requires a nullable column. Columns absent from the list are
// set to NULL (nullable columns only).
func CreateRecord(columns []string, values []types.Value, s *schema.Schema) (*Record, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%d columns but %d values", len(columns), len(values))
	}

	r := NewRecord(s)
	for i, name := range columns {
		col, _ := s.Column(name)
		if col == nil {
			return nil, fmt.Errorf("table %s: %w: %s", s.TableName, ErrColumnNotFound, name)
		}
		v, err := fitValue(values[i], col)
		if err != nil {
			return nil, err
		}
		r.values[name] = v
	}

	// unnamed columns default to NULL
	for i := range s.Columns {
		col := &s.Columns[i]
		if _, ok := r.values[col.Name]; ok {
			continue
		}
		if !col.Nullable {
			return nil, fmt.Errorf("column %s: %w", col.Name, ErrNullViolation)
		}
		r.values[col.Name] = types.NewNull()
	}
	return r, nil
}

// fitValue validates v against col, coercing integers into REAL columns
func fitValue(v types.Value, col *schema.Column) (types.Value, error) {
	if v.IsNull() {
		if !col.Nullable {
			return v, fmt.Errorf("column %s: %w", col.Name, ErrNullViolation)
		}
		return v, nil
	}
	if v.Type() == col.Type {
		return v, nil
	}
	if col.Type == types.TypeReal && v.Type() == types.TypeInt {
		return types.NewReal(float64(v.Int())), nil
	}
	return v, fmt.Errorf("column %s (%s): %w: got %s", col.Name, col.Type, ErrTypeMismatch, v.Type())
}

// CreateCatalogRecord builds the catalog row for a table
func CreateCatalogRecord(pkey int64, name string, rootPage uint32, sqlText string) (*Record, error) {
	return CreateRecord(
		[]string{schema.CatalogKeyCol, schema.CatalogNameCol, schema.CatalogRootPageCol, schema.CatalogSQLCol},
		[]types.Value{types.NewInt(pkey), types.NewText(name), types.NewInt(int64(rootPage)), types.NewText(sqlText)},
		schema.Catalog(),
	)
}

// JoinedRecord is a record whose fields remember the source (table name or
// alias) they came from. Its origin map covers exactly the union of source
// names fed into its construction chain.
type JoinedRecord struct {
	order   []string
	sources map[string]*Record
}

// FromSimpleRecords joins two simple records under their source names
func FromSimpleRecords(left, right *Record, leftName, rightName string) (*JoinedRecord, error) {
	if leftName == rightName {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, rightName)
	}
	return &JoinedRecord{
		order:   []string{leftName, rightName},
		sources: map[string]*Record{leftName: left.Clone(), rightName: right.Clone()},
	}, nil
}

// FromJoinedAndSimple extends a joined record with one more simple record.
// Only the right source's name is supplied; the joined side already carries
// per-field origins.
func FromJoinedAndSimple(left *JoinedRecord, right *Record, rightName string) (*JoinedRecord, error) {
	if _, exists := left.sources[rightName]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, rightName)
	}
	jr := &JoinedRecord{
		order:   make([]string, 0, len(left.order)+1),
		sources: make(map[string]*Record, len(left.sources)+1),
	}
	for _, name := range left.order {
		jr.order = append(jr.order, name)
		jr.sources[name] = left.sources[name].Clone()
	}
	jr.order = append(jr.order, rightName)
	jr.sources[rightName] = right.Clone()
	return jr, nil
}

// Sources returns the source names in join order
func (j *JoinedRecord) Sources() []string {
	out := make([]string, len(j.order))
	copy(out, j.order)
	return out
}

// Source returns the simple record contributed by a source
func (j *JoinedRecord) Source(name string) (*Record, error) {
	rec, ok := j.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return rec, nil
}

// Lookup implements Row. A bare column that resolves in more than one source
// is an error; a scoped column resolves within that source only.
func (j *JoinedRecord) Lookup(source, column string) (types.Value, error) {
	if source != "" {
		rec, ok := j.sources[source]
		if !ok {
			return types.NewNull(), fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return rec.Get(column)
	}

	var found types.Value
	matches := 0
	for _, name := range j.order {
		if v, err := j.sources[name].Get(column); err == nil {
			found = v
			matches++
		}
	}
	switch matches {
	case 0:
		return types.NewNull(), fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	case 1:
		return found, nil
	default:
		return types.NewNull(), fmt.Errorf("%w: %s", ErrAmbiguousColumn, column)
	}
}
