// pkg/btree/node.go
package btree

import (
	"encoding/binary"
	"errors"

	"keel/internal/encoding"
)

/*
Node page layout:
+--------------------+
| flags          (1) |
| cell count     (2) |
| content start  (2) |  offset where cell content begins (grows downward)
| right child    (4) |  interior nodes only
+--------------------+
| cell pointers 2ea  |
| free space         |
| cell content       |
+--------------------+

Cell content: key-len varint, key, value-len varint, value. Leaf values are
record payloads; interior values are 4-byte child page pointers. Deleted
cells leave their content behind; only the pointer array shrinks.
*/

const (
	nodeHeaderSize       = 9
	cellPointerSize      = 2
	flagLeaf        byte = 0x01
)

var ErrNodeFull = errors.New("node is full")

// Node is a B-tree node backed by a page buffer
type Node struct {
	data []byte
}

// InitNode formats a page as an empty node
func InitNode(data []byte, isLeaf bool) *Node {
	n := &Node{data: data}
	if isLeaf {
		data[0] = flagLeaf
	} else {
		data[0] = 0
	}
	n.setCellCount(0)
	n.setContentStart(len(data))
	n.SetRightChild(0)
	return n
}

// LoadNode wraps an existing node page
func LoadNode(data []byte) *Node {
	return &Node{data: data}
}

// IsLeaf reports whether this is a leaf node
func (n *Node) IsLeaf() bool {
	return n.data[0]&flagLeaf != 0
}

// CellCount returns the number of cells in this node
func (n *Node) CellCount() int {
	return int(binary.LittleEndian.Uint16(n.data[1:3]))
}

func (n *Node) setCellCount(count int) {
	binary.LittleEndian.PutUint16(n.data[1:3], uint16(count))
}

func (n *Node) contentStart() int {
	return int(binary.LittleEndian.Uint16(n.data[3:5]))
}

func (n *Node) setContentStart(offset int) {
	binary.LittleEndian.PutUint16(n.data[3:5], uint16(offset))
}

// SetRightChild sets the rightmost child page (interior nodes)
func (n *Node) SetRightChild(pageNo uint32) {
	binary.LittleEndian.PutUint32(n.data[5:9], pageNo)
}

// RightChild returns the rightmost child page
func (n *Node) RightChild() uint32 {
	return binary.LittleEndian.Uint32(n.data[5:9])
}

// FreeSpace returns the bytes available between the pointer array and the
// cell content area
func (n *Node) FreeSpace() int {
	return n.contentStart() - nodeHeaderSize - n.CellCount()*cellPointerSize
}

func (n *Node) cellOffset(i int) int {
	ptr := nodeHeaderSize + i*cellPointerSize
	return int(binary.LittleEndian.Uint16(n.data[ptr:]))
}

func (n *Node) setCellOffset(i, offset int) {
	ptr := nodeHeaderSize + i*cellPointerSize
	binary.LittleEndian.PutUint16(n.data[ptr:], uint16(offset))
}

// InsertCellAt inserts a key/value cell at position i, shifting later
// pointers right. Returns ErrNodeFull when the page cannot hold the cell.
func (n *Node) InsertCellAt(i int, key, value []byte) error {
	cellSize := encoding.UvarintLen(uint64(len(key))) + len(key) +
		encoding.UvarintLen(uint64(len(value))) + len(value)
	if n.FreeSpace() < cellSize+cellPointerSize {
		return ErrNodeFull
	}

	count := n.CellCount()
	for j := count; j > i; j-- {
		n.setCellOffset(j, n.cellOffset(j-1))
	}

	offset := n.contentStart() - cellSize
	n.setContentStart(offset)

	pos := offset
	pos += encoding.PutUvarint(n.data[pos:], uint64(len(key)))
	pos += copy(n.data[pos:], key)
	pos += encoding.PutUvarint(n.data[pos:], uint64(len(value)))
	copy(n.data[pos:], value)

	n.setCellOffset(i, offset)
	n.setCellCount(count + 1)
	return nil
}

// GetCellAt returns the key and value at position i. The returned slices
// alias the page buffer.
func (n *Node) GetCellAt(i int) (key, value []byte) {
	if i < 0 || i >= n.CellCount() {
		return nil, nil
	}
	pos := n.cellOffset(i)

	keyLen, sz := encoding.Uvarint(n.data[pos:])
	pos += sz
	key = n.data[pos : pos+int(keyLen)]
	pos += int(keyLen)

	valLen, sz := encoding.Uvarint(n.data[pos:])
	pos += sz
	value = n.data[pos : pos+int(valLen)]
	return key, value
}

// DeleteCellAt removes the cell at position i. The content bytes are left
// in place; the space is reclaimed when the node is next rebuilt by a split.
func (n *Node) DeleteCellAt(i int) {
	count := n.CellCount()
	for j := i; j < count-1; j++ {
		n.setCellOffset(j, n.cellOffset(j+1))
	}
	n.setCellCount(count - 1)
}

// UpdateCellValue rewrites the value of cell i in place. Only valid when
// the new value has the same length as the old one (child pointers).
func (n *Node) UpdateCellValue(i int, value []byte) {
	pos := n.cellOffset(i)
	keyLen, sz := encoding.Uvarint(n.data[pos:])
	pos += sz + int(keyLen)
	valLen, sz := encoding.Uvarint(n.data[pos:])
	if int(valLen) == len(value) {
		copy(n.data[pos+sz:], value)
	}
}

// Split moves the upper half of this node into right (a freshly formatted
// node of the same kind) and returns the separator key to promote. Both
// halves are rebuilt, reclaiming dead content space. For interior nodes the
// separator cell itself moves out of both halves: its child pointer becomes
// the left half's right child, and the original right child moves to the
// right half.
func (n *Node) Split(rightData []byte) ([]byte, *Node) {
	count := n.CellCount()
	mid := count / 2

	type cell struct{ key, value []byte }
	cells := make([]cell, count)
	for i := 0; i < count; i++ {
		k, v := n.GetCellAt(i)
		kc := make([]byte, len(k))
		copy(kc, k)
		vc := make([]byte, len(v))
		copy(vc, v)
		cells[i] = cell{kc, vc}
	}

	isLeaf := n.IsLeaf()
	oldRightChild := n.RightChild()
	right := InitNode(rightData, isLeaf)

	var sep []byte
	if isLeaf {
		sep = cells[mid].key
		InitNode(n.data, true)
		for i, c := range cells[:mid] {
			n.InsertCellAt(i, c.key, c.value)
		}
		for i, c := range cells[mid:] {
			right.InsertCellAt(i, c.key, c.value)
		}
	} else {
		sep = cells[mid].key
		InitNode(n.data, false)
		for i, c := range cells[:mid] {
			n.InsertCellAt(i, c.key, c.value)
		}
		n.SetRightChild(decodePageNo(cells[mid].value))
		for i, c := range cells[mid+1:] {
			right.InsertCellAt(i, c.key, c.value)
		}
		right.SetRightChild(oldRightChild)
	}

	sepCopy := make([]byte, len(sep))
	copy(sepCopy, sep)
	return sepCopy, right
}
