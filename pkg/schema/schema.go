// pkg/schema/schema.go
package schema

import (
	"errors"
	"fmt"
	"strings"

	"keel/pkg/sql/parser"
	"keel/pkg/types"
)

var (
	ErrNoColumns      = errors.New("table has no columns")
	ErrDuplicateCol   = errors.New("duplicate column name")
	ErrNoPrimaryKey   = errors.New("table has no primary key")
	ErrManyPrimaryKey = errors.New("table has more than one primary key")
	ErrBadKeyType     = errors.New("primary key type is not orderable")
	ErrColumnNotFound = errors.New("column not found")
)

// Column defines one table column
type Column struct {
	Name       string
	Type       types.ValueType
	PrimaryKey bool
	Nullable   bool
}

// Schema is a named, ordered list of columns with exactly one primary key
type Schema struct {
	TableName string
	Columns   []Column
}

// Column returns the column definition and index by name.
// Returns (nil, -1) if not found.
func (s *Schema) Column(name string) (*Column, int) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], i
		}
	}
	return nil, -1
}

// PrimaryKey returns the primary key column and its index
func (s *Schema) PrimaryKey() (*Column, int) {
	for i := range s.Columns {
		if s.Columns[i].PrimaryKey {
			return &s.Columns[i], i
		}
	}
	return nil, -1
}

// ColumnNames returns the column names in schema order
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i := range s.Columns {
		names[i] = s.Columns[i].Name
	}
	return names
}

// Generate builds and validates a schema from a parsed CREATE statement
func Generate(stmnt *parser.CreateStmnt) (*Schema, error) {
	if len(stmnt.Columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", stmnt.TableName, ErrNoColumns)
	}

	s := &Schema{TableName: stmnt.TableName}
	seen := make(map[string]bool, len(stmnt.Columns))
	pkCount := 0

	for _, def := range stmnt.Columns {
		if seen[def.Name] {
			return nil, fmt.Errorf("table %s, column %s: %w", stmnt.TableName, def.Name, ErrDuplicateCol)
		}
		seen[def.Name] = true

		col := Column{
			Name:       def.Name,
			Type:       def.Type,
			PrimaryKey: def.PrimaryKey,
			Nullable:   !def.NotNull && !def.PrimaryKey,
		}
		if def.PrimaryKey {
			pkCount++
			if !orderable(def.Type) {
				return nil, fmt.Errorf("table %s, column %s (%s): %w",
					stmnt.TableName, def.Name, def.Type, ErrBadKeyType)
			}
		}
		s.Columns = append(s.Columns, col)
	}

	if pkCount == 0 {
		return nil, fmt.Errorf("table %s: %w", stmnt.TableName, ErrNoPrimaryKey)
	}
	if pkCount > 1 {
		return nil, fmt.Errorf("table %s: %w", stmnt.TableName, ErrManyPrimaryKey)
	}
	return s, nil
}

// orderable reports whether values of t are totally ordered and can serve
// as B-tree keys
func orderable(t types.ValueType) bool {
	return t == types.TypeInt || t == types.TypeReal || t == types.TypeText
}

// ToDDL renders the canonical CREATE TABLE text for a schema. This is the
// form persisted in the catalog; parsing it back yields an equal schema.
func ToDDL(s *Schema) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(s.TableName)
	sb.WriteString(" (")
	for i, col := range s.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		sb.WriteString(" ")
		sb.WriteString(col.Type.String())
		if col.PrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		} else if !col.Nullable {
			sb.WriteString(" NOT NULL")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Catalog column names
const (
	CatalogKeyCol      = "pkey"
	CatalogNameCol     = "name"
	CatalogRootPageCol = "root_pagenum"
	CatalogSQLCol      = "sql_text"
)

// CatalogTableName is the reserved name of the system catalog. The
// comparison is case-insensitive; all other identifiers are case-sensitive.
const CatalogTableName = "catalog"

// IsCatalogName reports whether name refers to the system catalog
func IsCatalogName(name string) bool {
	return strings.EqualFold(name, CatalogTableName)
}

// Catalog returns the fixed schema of the system catalog table
func Catalog() *Schema {
	return &Schema{
		TableName: CatalogTableName,
		Columns: []Column{
			{Name: CatalogKeyCol, Type: types.TypeInt, PrimaryKey: true},
			{Name: CatalogNameCol, Type: types.TypeText},
			{Name: CatalogRootPageCol, Type: types.TypeInt},
			{Name: CatalogSQLCol, Type: types.TypeText},
		},
	}
}
