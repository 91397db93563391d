// pkg/record/record_test.go
package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/pkg/schema"
	"keel/pkg/types"
)

func testSchema(name string) *schema.Schema {
	return &schema.Schema{
		TableName: name,
		Columns: []schema.Column{
			{Name: "id", Type: types.TypeInt, PrimaryKey: true},
			{Name: "n", Type: types.TypeText, Nullable: true},
			{Name: "w", Type: types.TypeReal, Nullable: true},
		},
	}
}

func TestCreateRecord(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord(
		[]string{"id", "n"},
		[]types.Value{types.NewInt(1), types.NewText("a")},
		s,
	)
	require.NoError(t, err)

	v, err := rec.Get("id")
	require.NoError(t, err)
	assert.True(t, v.Equal(types.NewInt(1)))

	// unnamed nullable column defaults to NULL
	v, err = rec.Get("w")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	assert.True(t, rec.PrimaryKey().Equal(types.NewInt(1)))
}

func TestCreateRecordCoercesIntToReal(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord(
		[]string{"id", "w"},
		[]types.Value{types.NewInt(1), types.NewInt(3)},
		s,
	)
	require.NoError(t, err)
	v, _ := rec.Get("w")
	assert.Equal(t, types.TypeReal, v.Type())
	assert.Equal(t, 3.0, v.Real())
}

func TestCreateRecordErrors(t *testing.T) {
	s := testSchema("p")

	_, err := CreateRecord([]string{"nope"}, []types.Value{types.NewInt(1)}, s)
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = CreateRecord([]string{"id"}, []types.Value{types.NewText("x")}, s)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// missing primary key
	_, err = CreateRecord([]string{"n"}, []types.Value{types.NewText("a")}, s)
	assert.ErrorIs(t, err, ErrNullViolation)

	// NULL into a non-nullable column
	_, err = CreateRecord([]string{"id"}, []types.Value{types.NewNull()}, s)
	assert.ErrorIs(t, err, ErrNullViolation)
}

func TestRecordLookup(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord([]string{"id"}, []types.Value{types.NewInt(1)}, s)
	require.NoError(t, err)

	v, err := rec.Lookup("", "id")
	require.NoError(t, err)
	assert.True(t, v.Equal(types.NewInt(1)))

	// scoped references do not resolve on a simple record
	_, err = rec.Lookup("p", "id")
	assert.ErrorIs(t, err, ErrNotJoined)
}

func simpleRecord(t *testing.T, table string, cols []string, vals []types.Value, extra ...schema.Column) *Record {
	t.Helper()
	s := &schema.Schema{TableName: table}
	s.Columns = append(s.Columns, schema.Column{Name: cols[0], Type: vals[0].Type(), PrimaryKey: true})
	for i := 1; i < len(cols); i++ {
		s.Columns = append(s.Columns, schema.Column{Name: cols[i], Type: vals[i].Type(), Nullable: true})
	}
	s.Columns = append(s.Columns, extra...)
	rec, err := CreateRecord(cols, vals, s)
	require.NoError(t, err)
	return rec
}

func TestJoinedRecordLookup(t *testing.T) {
	left := simpleRecord(t, "l", []string{"id", "x"}, []types.Value{types.NewInt(1), types.NewInt(10)})
	right := simpleRecord(t, "r", []string{"id", "y"}, []types.Value{types.NewInt(1), types.NewInt(100)})

	jr, err := FromSimpleRecords(left, right, "l", "r")
	require.NoError(t, err)

	// scoped lookups preserve origin
	v, err := jr.Lookup("l", "x")
	require.NoError(t, err)
	assert.EqualValues(t, 10, v.Int())
	v, err = jr.Lookup("r", "y")
	require.NoError(t, err)
	assert.EqualValues(t, 100, v.Int())

	// bare lookup of a unique column works
	v, err = jr.Lookup("", "x")
	require.NoError(t, err)
	assert.EqualValues(t, 10, v.Int())

	// id exists in both sources
	_, err = jr.Lookup("", "id")
	assert.ErrorIs(t, err, ErrAmbiguousColumn)

	_, err = jr.Lookup("", "nope")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = jr.Lookup("q", "id")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestJoinedRecordChaining(t *testing.T) {
	a := simpleRecord(t, "a", []string{"id"}, []types.Value{types.NewInt(1)})
	b := simpleRecord(t, "b", []string{"id"}, []types.Value{types.NewInt(2)})
	c := simpleRecord(t, "c", []string{"id"}, []types.Value{types.NewInt(3)})

	ab, err := FromSimpleRecords(a, b, "a", "b")
	require.NoError(t, err)
	abc, err := FromJoinedAndSimple(ab, c, "c")
	require.NoError(t, err)

	// the origin map covers exactly the union of source names
	assert.Equal(t, []string{"a", "b", "c"}, abc.Sources())
	for i, src := range abc.Sources() {
		v, err := abc.Lookup(src, "id")
		require.NoError(t, err)
		assert.EqualValues(t, i+1, v.Int())
	}

	_, err = FromJoinedAndSimple(ab, c, "b")
	assert.ErrorIs(t, err, ErrDuplicateSource)
	_, err = FromSimpleRecords(a, b, "s", "s")
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestRecordsCopyByValue(t *testing.T) {
	left := simpleRecord(t, "l", []string{"id"}, []types.Value{types.NewInt(1)})
	right := simpleRecord(t, "r", []string{"id"}, []types.Value{types.NewInt(2)})
	jr, err := FromSimpleRecords(left, right, "l", "r")
	require.NoError(t, err)

	left.Set("id", types.NewInt(99))
	v, err := jr.Lookup("l", "id")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Int(), "joined record must not share storage with its inputs")
}
