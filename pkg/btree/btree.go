// pkg/btree/btree.go
package btree

import (
	"bytes"
	"encoding/binary"
	"errors"

	"keel/pkg/pager"
)

var ErrKeyNotFound = errors.New("key not found")

// Cell is the on-disk form of one record: a memcomparable key plus the
// encoded row payload.
type Cell struct {
	Key   []byte
	Value []byte
}

// InsertResult reports the outcome of a tree insert
type InsertResult int

const (
	InsertSuccess InsertResult = iota
	InsertDuplicateKey
)

// DeleteResult reports the outcome of a tree delete
type DeleteResult int

const (
	DeleteSuccess DeleteResult = iota
	DeleteNotFound
)

// BTree is a persistent B-tree of cells ordered by key
type BTree struct {
	pager    *pager.Pager
	rootPage uint32
}

// Create allocates and initializes a new empty tree, returning its handle
func Create(p *pager.Pager) (*BTree, error) {
	page, err := p.Allocate()
	if err != nil {
		return nil, err
	}
	InitNode(page.Data(), true)
	page.SetDirty(true)
	rootPage := page.PageNo()
	p.Release(page)

	return &BTree{pager: p, rootPage: rootPage}, nil
}

// Open returns a handle to an existing tree rooted at rootPage
func Open(p *pager.Pager, rootPage uint32) *BTree {
	return &BTree{pager: p, rootPage: rootPage}
}

// RootPage returns the current root page. Splits can move the root; owners
// persist this value after mutating statements.
func (t *BTree) RootPage() uint32 {
	return t.rootPage
}

// Insert adds a cell to the tree. A cell whose key is already present is
// rejected with InsertDuplicateKey; keys are immutable primary keys, never
// updated in place.
func (t *BTree) Insert(cell Cell) (InsertResult, error) {
	split, newRoot, err := t.insertRecursive(t.rootPage, cell.Key, cell.Value)
	if err != nil {
		if errors.Is(err, errDuplicateKey) {
			return InsertDuplicateKey, nil
		}
		return 0, err
	}
	if split != nil {
		// the recursion resolves splits below the root; a root split
		// surfaces as newRoot instead
		panic("btree: unresolved split at root")
	}
	if newRoot != 0 {
		t.rootPage = newRoot
	}
	return InsertSuccess, nil
}

// Delete removes the cell with the given key. Leaf underflow is allowed;
// the tree is not rebalanced on delete.
func (t *BTree) Delete(key []byte) (DeleteResult, error) {
	err := t.deleteRecursive(t.rootPage, key)
	if errors.Is(err, ErrKeyNotFound) {
		return DeleteNotFound, nil
	}
	if err != nil {
		return 0, err
	}
	return DeleteSuccess, nil
}

// Get retrieves the value stored under key
func (t *BTree) Get(key []byte) ([]byte, error) {
	pageNo := t.rootPage
	for {
		page, err := t.pager.Get(pageNo)
		if err != nil {
			return nil, err
		}
		node := LoadNode(page.Data())

		if node.IsLeaf() {
			pos := findPosition(node, key)
			if pos < node.CellCount() {
				k, v := node.GetCellAt(pos)
				if bytes.Equal(k, key) {
					out := make([]byte, len(v))
					copy(out, v)
					t.pager.Release(page)
					return out, nil
				}
			}
			t.pager.Release(page)
			return nil, ErrKeyNotFound
		}

		next, _ := findChild(node, key)
		t.pager.Release(page)
		pageNo = next
	}
}

var errDuplicateKey = errors.New("duplicate key")

// splitResult carries a completed child split up to the parent
type splitResult struct {
	sepKey      []byte // separator key to insert into the parent
	rightPageNo uint32 // new right sibling
}

func (t *BTree) insertRecursive(pageNo uint32, key, value []byte) (*splitResult, uint32, error) {
	page, err := t.pager.Get(pageNo)
	if err != nil {
		return nil, 0, err
	}
	defer t.pager.Release(page)

	node := LoadNode(page.Data())
	if node.IsLeaf() {
		return t.insertIntoLeaf(page, node, key, value)
	}
	return t.insertIntoInterior(page, node, key, value)
}

func (t *BTree) insertIntoLeaf(page *pager.Page, node *Node, key, value []byte) (*splitResult, uint32, error) {
	pos := findPosition(node, key)
	if pos < node.CellCount() {
		existing, _ := node.GetCellAt(pos)
		if bytes.Equal(existing, key) {
			return nil, 0, errDuplicateKey
		}
	}

	err := node.InsertCellAt(pos, key, value)
	if err == nil {
		page.SetDirty(true)
		return nil, 0, nil
	}
	if err != ErrNodeFull {
		return nil, 0, err
	}

	rightPage, err := t.pager.Allocate()
	if err != nil {
		return nil, 0, err
	}
	defer t.pager.Release(rightPage)

	sep, rightNode := node.Split(rightPage.Data())
	if bytes.Compare(key, sep) < 0 {
		err = node.InsertCellAt(findPosition(node, key), key, value)
	} else {
		err = rightNode.InsertCellAt(findPosition(rightNode, key), key, value)
	}
	if err != nil {
		return nil, 0, err
	}
	page.SetDirty(true)
	rightPage.SetDirty(true)

	if page.PageNo() == t.rootPage {
		newRoot, err := t.createNewRoot(page.PageNo(), sep, rightPage.PageNo())
		return nil, newRoot, err
	}
	return &splitResult{sepKey: sep, rightPageNo: rightPage.PageNo()}, 0, nil
}

func (t *BTree) insertIntoInterior(page *pager.Page, node *Node, key, value []byte) (*splitResult, uint32, error) {
	childPageNo, _ := findChild(node, key)

	split, newRoot, err := t.insertRecursive(childPageNo, key, value)
	if err != nil {
		return nil, 0, err
	}
	if newRoot != 0 {
		return nil, newRoot, nil
	}
	if split == nil {
		return nil, 0, nil
	}

	// the child split: childPageNo now holds keys below the separator, the
	// new sibling holds the rest. Insert (sep -> child) and repoint whatever
	// referenced the child at the new sibling.
	if err := t.placeSeparator(node, split.sepKey, childPageNo, split.rightPageNo); err == nil {
		page.SetDirty(true)
		return nil, 0, nil
	} else if err != ErrNodeFull {
		return nil, 0, err
	}

	// this interior node is full too: split it, then place the separator in
	// whichever half owns it
	rightPage, err := t.pager.Allocate()
	if err != nil {
		return nil, 0, err
	}
	defer t.pager.Release(rightPage)

	sep, rightNode := node.Split(rightPage.Data())
	var target *Node
	if bytes.Compare(split.sepKey, sep) < 0 {
		target = node
	} else {
		target = rightNode
	}
	if err := t.placeSeparator(target, split.sepKey, childPageNo, split.rightPageNo); err != nil {
		return nil, 0, err
	}
	page.SetDirty(true)
	rightPage.SetDirty(true)

	if page.PageNo() == t.rootPage {
		newRoot, err := t.createNewRoot(page.PageNo(), sep, rightPage.PageNo())
		return nil, newRoot, err
	}
	return &splitResult{sepKey: sep, rightPageNo: rightPage.PageNo()}, 0, nil
}

// placeSeparator inserts the cell (sep -> leftChild) into node and redirects
// the pointer that used to reference leftChild at rightChild. The redirect
// target is the cell following the insert position, or the node's right
// child when sep lands at the end.
func (t *BTree) placeSeparator(node *Node, sep []byte, leftChild, rightChild uint32) error {
	pos := findPosition(node, sep)
	if err := node.InsertCellAt(pos, sep, encodePageNo(leftChild)); err != nil {
		return err
	}
	if pos+1 < node.CellCount() {
		node.UpdateCellValue(pos+1, encodePageNo(rightChild))
	} else {
		node.SetRightChild(rightChild)
	}
	return nil
}

func (t *BTree) createNewRoot(leftPage uint32, sep []byte, rightPage uint32) (uint32, error) {
	rootPage, err := t.pager.Allocate()
	if err != nil {
		return 0, err
	}
	defer t.pager.Release(rootPage)

	root := InitNode(rootPage.Data(), false)
	if err := root.InsertCellAt(0, sep, encodePageNo(leftPage)); err != nil {
		return 0, err
	}
	root.SetRightChild(rightPage)
	rootPage.SetDirty(true)
	return rootPage.PageNo(), nil
}

func (t *BTree) deleteRecursive(pageNo uint32, key []byte) error {
	page, err := t.pager.Get(pageNo)
	if err != nil {
		return err
	}
	defer t.pager.Release(page)

	node := LoadNode(page.Data())
	if node.IsLeaf() {
		pos := findPosition(node, key)
		if pos >= node.CellCount() {
			return ErrKeyNotFound
		}
		found, _ := node.GetCellAt(pos)
		if !bytes.Equal(found, key) {
			return ErrKeyNotFound
		}
		node.DeleteCellAt(pos)
		page.SetDirty(true)
		return nil
	}

	child, _ := findChild(node, key)
	return t.deleteRecursive(child, key)
}

// findPosition returns the index where key belongs in node (binary search)
func findPosition(node *Node, key []byte) int {
	lo, hi := 0, node.CellCount()
	for lo < hi {
		mid := (lo + hi) / 2
		midKey, _ := node.GetCellAt(mid)
		if bytes.Compare(midKey, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findChild returns the child page to descend into for key, and the cell
// index whose pointer it is (-1 for the right child)
func findChild(node *Node, key []byte) (uint32, int) {
	count := node.CellCount()
	for i := 0; i < count; i++ {
		cellKey, cellValue := node.GetCellAt(i)
		if bytes.Compare(key, cellKey) < 0 {
			return decodePageNo(cellValue), i
		}
	}
	return node.RightChild(), -1
}

func encodePageNo(pageNo uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, pageNo)
	return buf
}

func decodePageNo(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}
