// pkg/vm/vm.go
// Package vm implements the execution virtual machine: it turns parsed
// statements into operations over cursors, trees, schemas, and intermediate
// record sets.
package vm

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"keel/pkg/btree"
	"keel/pkg/record"
	"keel/pkg/schema"
	"keel/pkg/sql/parser"
	"keel/pkg/state"
	"keel/pkg/types"
)

// VirtualMachine executes parsed programs against a state manager, writing
// SELECT output to the caller's sink. One statement executes at a time; the
// VM assumes sole ownership of the pager for the lifetime of a Run call.
type VirtualMachine struct {
	state *state.Manager
	sink  OutputSink
	log   zerolog.Logger
	rand  *rand.Rand

	// per-statement intermediate record sets
	rsets map[string][]record.Row
	// grouped record sets, reserved for GROUP BY execution
	grsets map[string]map[string][]record.Row

	// creation-time catalog key and last-synced root page per table
	tableKeys  map[string]int64
	tableRoots map[string]uint32
}

// New constructs a VM and bootstraps the catalog: every catalog row is
// deserialized, its DDL re-parsed, and the resulting schema and tree handle
// registered with the state manager. Any failure here means the database
// file is inconsistent, so New fails.
func New(st *state.Manager, sink OutputSink, log zerolog.Logger) (*VirtualMachine, error) {
	v := &VirtualMachine{
		state:      st,
		sink:       sink,
		log:        log,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		rsets:      make(map[string][]record.Row),
		grsets:     make(map[string]map[string][]record.Row),
		tableKeys:  make(map[string]int64),
		tableRoots: make(map[string]uint32),
	}
	if err := v.initCatalog(); err != nil {
		return nil, fmt.Errorf("catalog bootstrap: %w", err)
	}
	return v, nil
}

// initCatalog scans the catalog tree and re-registers every table
func (v *VirtualMachine) initCatalog() error {
	cursor, err := btree.NewCursor(v.state.CatalogTree())
	if err != nil {
		return err
	}
	defer cursor.Close()

	catalogSchema := v.state.CatalogSchema()
	for !cursor.EndOfTable() {
		rec, err := record.DeserializeCell(cursor.GetCell(), catalogSchema)
		if err != nil {
			return err
		}
		pkey, _ := rec.Get(schema.CatalogKeyCol)
		name, _ := rec.Get(schema.CatalogNameCol)
		rootPage, _ := rec.Get(schema.CatalogRootPageCol)
		sqlText, _ := rec.Get(schema.CatalogSQLCol)

		v.log.Info().Str("sql", sqlText.Text()).Msg("bootstrapping schema")

		prog, err := parser.New(sqlText.Text()).Parse()
		if err != nil {
			return fmt.Errorf("table %s: parse stored DDL: %w", name.Text(), err)
		}
		if len(prog.Statements) != 1 {
			return fmt.Errorf("table %s: stored DDL holds %d statements", name.Text(), len(prog.Statements))
		}
		createStmnt, ok := prog.Statements[0].(*parser.CreateStmnt)
		if !ok {
			return fmt.Errorf("table %s: stored DDL is not a CREATE", name.Text())
		}
		tableSchema, err := schema.Generate(createStmnt)
		if err != nil {
			return fmt.Errorf("table %s: regenerate schema: %w", name.Text(), err)
		}

		root := uint32(rootPage.Int())
		tree := btree.Open(v.state.Pager(), root)
		if err := v.state.RegisterSchema(name.Text(), tableSchema); err != nil {
			return err
		}
		if err := v.state.RegisterTree(name.Text(), tree); err != nil {
			return err
		}
		v.tableKeys[name.Text()] = pkey.Int()
		v.tableRoots[name.Text()] = root

		cursor.Advance()
	}
	return nil
}

// Run executes a program's statements in order and returns one Result per
// statement executed. With stopOnErr, execution aborts after the first
// failed result. Panics (invariant violations) are logged and re-raised.
func (v *VirtualMachine) Run(program *parser.Program, stopOnErr bool) []Result {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error().Any("panic", r).Msg("virtual machine aborted")
			panic(r)
		}
	}()

	results := make([]Result, 0, len(program.Statements))
	for _, stmnt := range program.Statements {
		res := v.executeStatement(stmnt)
		if !res.Success {
			v.log.Warn().Str("error", res.ErrorMessage).Msg("statement failed")
		}
		results = append(results, res)
		if stopOnErr && !res.Success {
			return results
		}
	}
	return results
}

// executeStatement dispatches one statement to its executor
func (v *VirtualMachine) executeStatement(stmnt parser.Statement) Result {
	switch s := stmnt.(type) {
	case *parser.CreateStmnt:
		return v.executeCreate(s)
	case *parser.InsertStmnt:
		return v.executeInsert(s)
	case *parser.DeleteStmnt:
		return v.executeDelete(s)
	case *parser.SelectStmnt:
		return v.executeSelect(s)
	case *parser.DropStmnt:
		return notImplemented("DROP TABLE")
	case *parser.TruncateStmnt:
		return notImplemented("TRUNCATE")
	case *parser.UpdateStmnt:
		return notImplemented("UPDATE")
	default:
		panic(fmt.Sprintf("vm: unknown statement type %T", stmnt))
	}
}

// executeCreate creates a table: schema, tree, catalog row, registration.
// A name collision is a caller precondition violation, not a user error.
func (v *VirtualMachine) executeCreate(stmnt *parser.CreateStmnt) Result {
	tableSchema, err := schema.Generate(stmnt)
	if err != nil {
		return errResult("schema generation failed: %v", err)
	}
	tableName := tableSchema.TableName

	if v.state.TableExists(tableName) {
		panic(fmt.Sprintf("vm: table %s exists", tableName))
	}

	rootPage, err := v.state.AllocateTree()
	if err != nil {
		panic(fmt.Sprintf("vm: allocate tree: %v", err))
	}

	// the root page doubles as the catalog key: unique per live table
	pkey := int64(rootPage)
	sqlText := schema.ToDDL(tableSchema)
	catalogRec, err := record.CreateCatalogRecord(pkey, tableName, rootPage, sqlText)
	if err != nil {
		return errResult("catalog record failed: %v", err)
	}
	cell, err := record.SerializeRecord(catalogRec)
	if err != nil {
		return errResult("serialization failed: %v", err)
	}

	res, err := v.state.CatalogTree().Insert(cell)
	if err != nil || res != btree.InsertSuccess {
		panic(fmt.Sprintf("vm: catalog insert failed: res=%v err=%v", res, err))
	}
	if err := v.state.SyncCatalogRoot(); err != nil {
		panic(fmt.Sprintf("vm: sync catalog root: %v", err))
	}

	if err := v.state.RegisterSchema(tableName, tableSchema); err != nil {
		return errResult("%v", err)
	}
	if err := v.state.RegisterTree(tableName, btree.Open(v.state.Pager(), rootPage)); err != nil {
		return errResult("%v", err)
	}
	v.tableKeys[tableName] = pkey
	v.tableRoots[tableName] = rootPage
	return okResult(nil)
}

// executeInsert builds, validates, serializes and inserts one row
func (v *VirtualMachine) executeInsert(stmnt *parser.InsertStmnt) Result {
	tableName := stmnt.TableName
	if !v.state.HasSchema(tableName) {
		return errResult("table %s does not exist", tableName)
	}
	tableSchema, err := v.state.GetSchema(tableName)
	if err != nil {
		return errResult("%v", err)
	}

	rec, err := record.CreateRecord(stmnt.Columns, stmnt.Values, tableSchema)
	if err != nil {
		return errResult("insert into %s failed: %v", tableName, err)
	}
	cell, err := record.SerializeRecord(rec)
	if err != nil {
		return errResult("serialization failed: %v", err)
	}

	tree, err := v.state.GetTree(tableName)
	if err != nil {
		return errResult("%v", err)
	}
	res, err := tree.Insert(cell)
	if err != nil || res != btree.InsertSuccess {
		panic(fmt.Sprintf("vm: insert into %s failed: res=%v err=%v", tableName, res, err))
	}
	v.syncTableRoot(tableName)
	return okResult(nil)
}

// executeDelete materializes the table, filters it, and deletes the
// surviving rows' keys. Returns the deleted key values.
func (v *VirtualMachine) executeDelete(stmnt *parser.DeleteStmnt) Result {
	tableName := stmnt.TableName
	if schema.IsCatalogName(tableName) {
		return errResult("cannot delete from the catalog; use DROP TABLE")
	}
	if !v.state.HasSchema(tableName) {
		return errResult("table %s does not exist", tableName)
	}

	rsname, err := v.materializeFromName(tableName)
	if err != nil {
		return errResult("%v", err)
	}
	defer v.dropRecordSet(rsname)

	if stmnt.Where != nil {
		filtered, err := v.filterRecordSet(stmnt.Where, rsname)
		if err != nil {
			return errResult("delete from %s failed: %v", tableName, err)
		}
		defer v.dropRecordSet(filtered)
		rsname = filtered
	}

	delKeys := make([]types.Value, 0)
	for _, row := range v.recordSetIter(rsname) {
		rec := row.(*record.Record)
		delKeys = append(delKeys, rec.PrimaryKey())
	}

	tree, err := v.state.GetTree(tableName)
	if err != nil {
		return errResult("%v", err)
	}
	for _, keyVal := range delKeys {
		key, err := record.EncodeKey(keyVal)
		if err != nil {
			return errResult("delete from %s failed: %v", tableName, err)
		}
		res, err := tree.Delete(key)
		if err != nil {
			return errResult("delete from %s failed: %v", tableName, err)
		}
		if res != btree.DeleteSuccess {
			v.log.Warn().Str("table", tableName).Str("key", keyVal.String()).Msg("delete found no such key")
			return errResult("delete from %s failed for key %s", tableName, keyVal)
		}
	}
	v.syncTableRoot(tableName)
	return okResult(delKeys)
}

// executeSelect materializes the FROM source, filters it, and writes the
// surviving rows to the output sink, projected to the select list. GROUP
// BY, HAVING, ORDER BY and LIMIT are recognized but not executed.
func (v *VirtualMachine) executeSelect(stmnt *parser.SelectStmnt) Result {
	v.sink.Reset()

	if stmnt.From == nil {
		return okResult(nil)
	}

	rsname, err := v.materialize(stmnt.From)
	if err != nil {
		return errResult("source materialization failed: %v", err)
	}
	defer v.dropRecordSet(rsname)

	if stmnt.Where != nil {
		filtered, err := v.filterRecordSet(stmnt.Where, rsname)
		if err != nil {
			return errResult("filtering failed: %v", err)
		}
		defer v.dropRecordSet(filtered)
		rsname = filtered
	}

	for _, row := range v.recordSetIter(rsname) {
		projected, err := projectRow(stmnt.SelectList, row)
		if err != nil {
			return errResult("projection failed: %v", err)
		}
		v.sink.Write(projected)
	}
	return okResult(nil)
}

// projectRow restricts a row to the select list. A list containing * passes
// the row through unchanged.
func projectRow(items []parser.SelectItem, row record.Row) (record.Row, error) {
	for _, item := range items {
		if item.Star {
			return row, nil
		}
	}

	projected := schema.Schema{TableName: ""}
	values := make([]types.Value, 0, len(items))
	for _, item := range items {
		val, err := row.Lookup(item.Column.Source, item.Column.Column)
		if err != nil {
			return nil, err
		}
		projected.Columns = append(projected.Columns, schema.Column{
			Name: item.Column.String(), Type: val.Type(), Nullable: true,
		})
		values = append(values, val)
	}

	out := record.NewRecord(&projected)
	for i, col := range projected.Columns {
		out.Set(col.Name, values[i])
	}
	return out, nil
}

// syncTableRoot rewrites a table's catalog row when a split moved its root
// page, keeping root_pagenum equal to the live root.
func (v *VirtualMachine) syncTableRoot(tableName string) {
	tree, err := v.state.GetTree(tableName)
	if err != nil {
		return
	}
	current := tree.RootPage()
	if v.tableRoots[tableName] == current {
		return
	}

	tableSchema, err := v.state.GetSchema(tableName)
	if err != nil {
		return
	}
	pkey := v.tableKeys[tableName]
	rec, err := record.CreateCatalogRecord(pkey, tableName, current, schema.ToDDL(tableSchema))
	if err != nil {
		panic(fmt.Sprintf("vm: rebuild catalog row for %s: %v", tableName, err))
	}
	cell, err := record.SerializeRecord(rec)
	if err != nil {
		panic(fmt.Sprintf("vm: serialize catalog row for %s: %v", tableName, err))
	}

	catalog := v.state.CatalogTree()
	if _, err := catalog.Delete(cell.Key); err != nil {
		panic(fmt.Sprintf("vm: replace catalog row for %s: %v", tableName, err))
	}
	res, err := catalog.Insert(cell)
	if err != nil || res != btree.InsertSuccess {
		panic(fmt.Sprintf("vm: replace catalog row for %s: res=%v err=%v", tableName, res, err))
	}
	if err := v.state.SyncCatalogRoot(); err != nil {
		panic(fmt.Sprintf("vm: sync catalog root: %v", err))
	}
	v.tableRoots[tableName] = current
}
