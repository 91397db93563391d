// pkg/btree/cursor.go
package btree

import (
	"keel/pkg/pager"
)

// Cursor iterates a tree's cells in key order. A fresh cursor sits on the
// first cell; EndOfTable reports exhaustion, GetCell reads the current cell,
// Advance moves forward. Close releases the pages the cursor holds.
type Cursor struct {
	tree  *BTree
	stack []*cursorFrame
	valid bool
}

// cursorFrame is one level of the cursor's root-to-leaf position
type cursorFrame struct {
	page *pager.Page
	node *Node
	pos  int
}

// NewCursor opens a cursor positioned at the tree's first cell
func NewCursor(t *BTree) (*Cursor, error) {
	c := &Cursor{tree: t, stack: make([]*cursorFrame, 0, 8)}
	if err := c.descendLeftmost(t.rootPage); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// descendLeftmost pushes frames from pageNo down to its leftmost leaf
func (c *Cursor) descendLeftmost(pageNo uint32) error {
	for {
		page, err := c.tree.pager.Get(pageNo)
		if err != nil {
			c.valid = false
			return err
		}
		node := LoadNode(page.Data())
		c.stack = append(c.stack, &cursorFrame{page: page, node: node, pos: 0})

		if node.IsLeaf() {
			c.valid = node.CellCount() > 0
			if !c.valid {
				// empty leaf: try the next one (can follow deletes)
				return c.moveToNextLeaf()
			}
			return nil
		}

		if node.CellCount() > 0 {
			_, childPtr := node.GetCellAt(0)
			pageNo = decodePageNo(childPtr)
		} else {
			pageNo = node.RightChild()
		}
	}
}

// EndOfTable reports whether the cursor has passed the last cell
func (c *Cursor) EndOfTable() bool {
	return !c.valid
}

// GetCell returns a copy of the current cell
func (c *Cursor) GetCell() Cell {
	if !c.valid || len(c.stack) == 0 {
		return Cell{}
	}
	leaf := c.stack[len(c.stack)-1]
	key, value := leaf.node.GetCellAt(leaf.pos)
	cell := Cell{Key: make([]byte, len(key)), Value: make([]byte, len(value))}
	copy(cell.Key, key)
	copy(cell.Value, value)
	return cell
}

// Advance moves the cursor to the next cell
func (c *Cursor) Advance() {
	if !c.valid || len(c.stack) == 0 {
		return
	}
	leaf := c.stack[len(c.stack)-1]
	leaf.pos++
	if leaf.pos < leaf.node.CellCount() {
		return
	}
	c.moveToNextLeaf() //nolint:errcheck // an I/O error here just ends the scan
}

// moveToNextLeaf pops the exhausted leaf and walks up until an ancestor has
// a further child to descend into
func (c *Cursor) moveToNextLeaf() error {
	if len(c.stack) > 0 {
		c.tree.pager.Release(c.stack[len(c.stack)-1].page)
		c.stack = c.stack[:len(c.stack)-1]
	}

	for len(c.stack) > 0 {
		parent := c.stack[len(c.stack)-1]
		parent.pos++

		if parent.pos <= parent.node.CellCount() {
			var pageNo uint32
			if parent.pos < parent.node.CellCount() {
				_, childPtr := parent.node.GetCellAt(parent.pos)
				pageNo = decodePageNo(childPtr)
			} else {
				pageNo = parent.node.RightChild()
			}
			return c.descendLeftmost(pageNo)
		}

		c.tree.pager.Release(parent.page)
		c.stack = c.stack[:len(c.stack)-1]
	}

	c.valid = false
	return nil
}

// Close releases every page the cursor holds
func (c *Cursor) Close() {
	for _, frame := range c.stack {
		if frame.page != nil {
			c.tree.pager.Release(frame.page)
		}
	}
	c.stack = c.stack[:0]
	c.valid = false
}
