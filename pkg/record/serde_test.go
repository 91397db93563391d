// pkg/record/serde_test.go
package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/pkg/schema"
	"keel/pkg/types"
)

func TestSerializeRoundTrip(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord(
		[]string{"id", "n", "w"},
		[]types.Value{types.NewInt(7), types.NewText("hello"), types.NewReal(2.5)},
		s,
	)
	require.NoError(t, err)

	cell, err := SerializeRecord(rec)
	require.NoError(t, err)

	back, err := DeserializeCell(cell, s)
	require.NoError(t, err)
	for _, col := range []string{"id", "n", "w"} {
		want, _ := rec.Get(col)
		got, err := back.Get(col)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "column %s: %v != %v", col, want, got)
	}
}

func TestSerializeNullColumn(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord([]string{"id"}, []types.Value{types.NewInt(1)}, s)
	require.NoError(t, err)

	cell, err := SerializeRecord(rec)
	require.NoError(t, err)
	back, err := DeserializeCell(cell, s)
	require.NoError(t, err)

	v, err := back.Get("n")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestSerializeRejectsNullKey(t *testing.T) {
	s := testSchema("p")
	rec := NewRecord(s)
	rec.Set("id", types.NewNull())
	_, err := SerializeRecord(rec)
	assert.ErrorIs(t, err, ErrSerde)
}

func TestDeserializeColumnCountMismatch(t *testing.T) {
	s := testSchema("p")
	rec, err := CreateRecord([]string{"id"}, []types.Value{types.NewInt(1)}, s)
	require.NoError(t, err)
	cell, err := SerializeRecord(rec)
	require.NoError(t, err)

	narrow := &schema.Schema{
		TableName: "q",
		Columns:   []schema.Column{{Name: "id", Type: types.TypeInt, PrimaryKey: true}},
	}
	_, err = DeserializeCell(cell, narrow)
	assert.ErrorIs(t, err, ErrSerde)
}

// key encodings must sort the way the values do
func TestEncodeKeyOrdering(t *testing.T) {
	ints := []int64{-500, -1, 0, 1, 2, 127, 128, 1 << 40}
	var prev []byte
	for _, i := range ints {
		key, err := EncodeKey(types.NewInt(i))
		require.NoError(t, err)
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Errorf("key for %d does not sort after its predecessor", i)
		}
		prev = key
	}

	reals := []float64{-2.5, -0.5, 0, 0.5, 3.25}
	prev = nil
	for _, f := range reals {
		key, err := EncodeKey(types.NewReal(f))
		require.NoError(t, err)
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Errorf("key for %g does not sort after its predecessor", f)
		}
		prev = key
	}

	a, err := EncodeKey(types.NewText("apple"))
	require.NoError(t, err)
	b, err := EncodeKey(types.NewText("banana"))
	require.NoError(t, err)
	assert.Negative(t, bytes.Compare(a, b))

	_, err = EncodeKey(types.NewBlob([]byte{1}))
	assert.ErrorIs(t, err, ErrSerde)
}

func TestEncodePayloadWideInts(t *testing.T) {
	s := &schema.Schema{
		TableName: "t",
		Columns: []schema.Column{
			{Name: "id", Type: types.TypeInt, PrimaryKey: true},
			{Name: "v", Type: types.TypeInt, Nullable: true},
		},
	}
	for _, v := range []int64{0, 1, -1, 127, 128, 40000, 1 << 30, 1 << 50, -(1 << 50)} {
		rec, err := CreateRecord([]string{"id", "v"}, []types.Value{types.NewInt(1), types.NewInt(v)}, s)
		require.NoError(t, err)
		cell, err := SerializeRecord(rec)
		require.NoError(t, err)
		back, err := DeserializeCell(cell, s)
		require.NoError(t, err)
		got, _ := back.Get("v")
		assert.EqualValues(t, v, got.Int())
	}
}
