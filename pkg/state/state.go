// pkg/state/state.go
// Package state owns the handles the virtual machine borrows by name:
// schemas, tree handles, the catalog pair, and the pager itself.
package state

import (
	"errors"
	"fmt"

	"keel/pkg/btree"
	"keel/pkg/pager"
	"keel/pkg/schema"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrReservedName  = errors.New("table name is reserved")
)

// Manager holds schemas and tree handles by table name. CREATE registers,
// every executor reads; the catalog pair is fixed at construction. Names
// are case-sensitive except the reserved name "catalog".
type Manager struct {
	pager         *pager.Pager
	catalogTree   *btree.BTree
	catalogSchema *schema.Schema
	schemas       map[string]*schema.Schema
	trees         map[string]*btree.BTree
}

// New builds a state manager over an open pager. A fresh database gets its
// catalog tree created and recorded in the file header; an existing one has
// its catalog tree opened at the header's root page.
func New(p *pager.Pager) (*Manager, error) {
	m := &Manager{
		pager:         p,
		catalogSchema: schema.Catalog(),
		schemas:       make(map[string]*schema.Schema),
		trees:         make(map[string]*btree.BTree),
	}

	if root := p.CatalogRoot(); root != 0 {
		m.catalogTree = btree.Open(p, root)
	} else {
		tree, err := btree.Create(p)
		if err != nil {
			return nil, fmt.Errorf("create catalog tree: %w", err)
		}
		if err := p.SetCatalogRoot(tree.RootPage()); err != nil {
			return nil, err
		}
		m.catalogTree = tree
	}
	return m, nil
}

// Pager returns the underlying pager
func (m *Manager) Pager() *pager.Pager {
	return m.pager
}

// CatalogTree returns the catalog tree handle
func (m *Manager) CatalogTree() *btree.BTree {
	return m.catalogTree
}

// CatalogSchema returns the fixed catalog schema
func (m *Manager) CatalogSchema() *schema.Schema {
	return m.catalogSchema
}

// SyncCatalogRoot records the catalog tree's current root page in the file
// header; call after mutating the catalog tree.
func (m *Manager) SyncCatalogRoot() error {
	if m.pager.CatalogRoot() == m.catalogTree.RootPage() {
		return nil
	}
	return m.pager.SetCatalogRoot(m.catalogTree.RootPage())
}

// AllocateTree creates a new empty tree and returns its root page
func (m *Manager) AllocateTree() (uint32, error) {
	tree, err := btree.Create(m.pager)
	if err != nil {
		return 0, err
	}
	return tree.RootPage(), nil
}

// RegisterSchema registers a table's schema under its name
func (m *Manager) RegisterSchema(name string, s *schema.Schema) error {
	if schema.IsCatalogName(name) {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	m.schemas[name] = s
	return nil
}

// RegisterTree registers a table's tree handle under its name
func (m *Manager) RegisterTree(name string, t *btree.BTree) error {
	if schema.IsCatalogName(name) {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	m.trees[name] = t
	return nil
}

// Unregister drops a table's schema and tree handle
func (m *Manager) Unregister(name string) {
	delete(m.schemas, name)
	delete(m.trees, name)
}

// HasSchema reports whether a schema is registered under name
func (m *Manager) HasSchema(name string) bool {
	_, ok := m.schemas[name]
	return ok
}

// TableExists reports whether name is taken, the reserved catalog included
func (m *Manager) TableExists(name string) bool {
	if schema.IsCatalogName(name) {
		return true
	}
	return m.HasSchema(name)
}

// GetSchema returns the schema registered under name. The reserved name
// "catalog" resolves to the catalog schema.
func (m *Manager) GetSchema(name string) (*schema.Schema, error) {
	if schema.IsCatalogName(name) {
		return m.catalogSchema, nil
	}
	s, ok := m.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return s, nil
}

// GetTree returns the tree handle registered under name. The reserved name
// "catalog" resolves to the catalog tree.
func (m *Manager) GetTree(name string) (*btree.BTree, error) {
	if schema.IsCatalogName(name) {
		return m.catalogTree, nil
	}
	t, ok := m.trees[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// TableNames returns the registered user table names
func (m *Manager) TableNames() []string {
	names := make([]string, 0, len(m.schemas))
	for name := range m.schemas {
		names = append(names, name)
	}
	return names
}
