// pkg/state/state_test.go
package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/pkg/pager"
	"keel/pkg/schema"
	"keel/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := pager.Open(path, pager.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	m, err := New(p)
	require.NoError(t, err)
	return m, path
}

func TestNewCreatesCatalogTree(t *testing.T) {
	m, _ := newTestManager(t)
	require.NotNil(t, m.CatalogTree())
	assert.Equal(t, m.CatalogTree().RootPage(), m.Pager().CatalogRoot())
	assert.Equal(t, schema.CatalogTableName, m.CatalogSchema().TableName)
}

func TestCatalogRootSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := pager.Open(path, pager.Options{})
	require.NoError(t, err)
	m, err := New(p)
	require.NoError(t, err)
	root := m.CatalogTree().RootPage()
	require.NoError(t, p.Close())

	p2, err := pager.Open(path, pager.Options{})
	require.NoError(t, err)
	defer p2.Close()
	m2, err := New(p2)
	require.NoError(t, err)
	assert.Equal(t, root, m2.CatalogTree().RootPage())
}

func TestRegisterAndResolve(t *testing.T) {
	m, _ := newTestManager(t)

	s := &schema.Schema{
		TableName: "p",
		Columns:   []schema.Column{{Name: "id", Type: types.TypeInt, PrimaryKey: true}},
	}
	require.NoError(t, m.RegisterSchema("p", s))

	root, err := m.AllocateTree()
	require.NoError(t, err)
	require.NotZero(t, root)

	tree, err := m.GetTree(schema.CatalogTableName)
	require.NoError(t, err)
	assert.Equal(t, m.CatalogTree(), tree)

	assert.True(t, m.HasSchema("p"))
	assert.True(t, m.TableExists("p"))
	assert.False(t, m.HasSchema("q"))

	got, err := m.GetSchema("p")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = m.GetSchema("q")
	assert.ErrorIs(t, err, ErrTableNotFound)

	m.Unregister("p")
	assert.False(t, m.TableExists("p"))
}

func TestCatalogNameReserved(t *testing.T) {
	m, _ := newTestManager(t)

	assert.True(t, m.TableExists("catalog"))
	assert.True(t, m.TableExists("CATALOG"))

	err := m.RegisterSchema("Catalog", schema.Catalog())
	assert.ErrorIs(t, err, ErrReservedName)

	// the reserved name resolves to the catalog pair
	s, err := m.GetSchema("CATALOG")
	require.NoError(t, err)
	assert.Equal(t, m.CatalogSchema(), s)

	// everything else is case-sensitive
	sc := &schema.Schema{
		TableName: "People",
		Columns:   []schema.Column{{Name: "id", Type: types.TypeInt, PrimaryKey: true}},
	}
	require.NoError(t, m.RegisterSchema("People", sc))
	assert.False(t, m.HasSchema("people"))
}
