// pkg/pager/pager.go
package pager

import (
	"container/list"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	headerSize      = 32
	magicString     = "KeelDB format 1\x00"
	defaultPageSize = 4096
	defaultCache    = 1000
)

var (
	ErrInvalidHeader = errors.New("invalid database header")
	ErrPageReserved  = errors.New("page 0 is the header page")
	ErrCacheFull     = errors.New("page cache full of pinned pages")
)

// Options configures the pager
type Options struct {
	PageSize  int // page size in bytes (default 4096)
	CacheSize int // number of pages to cache (default 1000)
}

type cacheEntry struct {
	page    *Page
	element *list.Element
}

// Pager is a page cache over a single database file. Page 0 is the header:
// magic string, page size, page count, and the catalog tree's root page.
// The pager assumes a single caller; it carries no locking.
type Pager struct {
	file        *os.File
	path        string
	pageSize    int
	pageCount   uint32
	catalogRoot uint32
	cache       map[uint32]*cacheEntry
	lru         *list.List // front = most recently used
	cacheSize   int
}

// Open opens or creates a database file
func Open(path string, opts Options) (*Pager, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = defaultCache
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}

	p := &Pager{
		file:      f,
		path:      path,
		pageSize:  pageSize,
		cache:     make(map[uint32]*cacheEntry),
		lru:       list.New(),
		cacheSize: cacheSize,
	}

	header := make([]byte, headerSize)
	n, err := f.ReadAt(header, 0)
	switch {
	case err == nil || (err == io.EOF && n == headerSize):
		if string(header[0:len(magicString)]) != magicString {
			f.Close()
			return nil, ErrInvalidHeader
		}
		p.pageSize = int(binary.LittleEndian.Uint32(header[16:20]))
		p.pageCount = binary.LittleEndian.Uint32(header[20:24])
		p.catalogRoot = binary.LittleEndian.Uint32(header[24:28])
	case err == io.EOF:
		// new file: page 0 is the header page
		p.pageCount = 1
		if err := p.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	default:
		f.Close()
		return nil, fmt.Errorf("read database header: %w", err)
	}

	return p, nil
}

func (p *Pager) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header[0:16], magicString)
	binary.LittleEndian.PutUint32(header[16:20], uint32(p.pageSize))
	binary.LittleEndian.PutUint32(header[20:24], p.pageCount)
	binary.LittleEndian.PutUint32(header[24:28], p.catalogRoot)
	if _, err := p.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("write database header: %w", err)
	}
	return nil
}

// PageSize returns the page size
func (p *Pager) PageSize() int {
	return p.pageSize
}

// PageCount returns the number of pages, header page included
func (p *Pager) PageCount() uint32 {
	return p.pageCount
}

// CatalogRoot returns the catalog tree's root page, 0 for a fresh database
func (p *Pager) CatalogRoot() uint32 {
	return p.catalogRoot
}

// SetCatalogRoot records the catalog tree's root page in the header
func (p *Pager) SetCatalogRoot(pageNo uint32) error {
	p.catalogRoot = pageNo
	return p.writeHeader()
}

// Allocate creates a new zeroed page at the end of the file
func (p *Pager) Allocate() (*Page, error) {
	pageNo := p.pageCount
	p.pageCount++
	if err := p.writeHeader(); err != nil {
		return nil, err
	}

	page := &Page{pageNo: pageNo, data: make([]byte, p.pageSize), dirty: true}
	page.Pin()
	if err := p.insertCached(page); err != nil {
		return nil, err
	}
	return page, nil
}

// Get retrieves a page by number
func (p *Pager) Get(pageNo uint32) (*Page, error) {
	if pageNo == 0 {
		return nil, ErrPageReserved
	}
	if pageNo >= p.pageCount {
		return nil, fmt.Errorf("page %d out of range (count %d)", pageNo, p.pageCount)
	}

	if entry, ok := p.cache[pageNo]; ok {
		entry.page.Pin()
		p.lru.MoveToFront(entry.element)
		return entry.page, nil
	}

	data := make([]byte, p.pageSize)
	offset := int64(pageNo) * int64(p.pageSize)
	if _, err := p.file.ReadAt(data, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read page %d: %w", pageNo, err)
	}
	// a short read past the current file end yields a zeroed page, which is
	// what an allocated-but-unflushed page looks like

	page := &Page{pageNo: pageNo, data: data}
	page.Pin()
	if err := p.insertCached(page); err != nil {
		return nil, err
	}
	return page, nil
}

// Release unpins a page obtained from Get or Allocate
func (p *Pager) Release(page *Page) {
	page.Unpin()
}

func (p *Pager) insertCached(page *Page) error {
	elem := p.lru.PushFront(page.pageNo)
	p.cache[page.pageNo] = &cacheEntry{page: page, element: elem}
	return p.evictIfNeeded()
}

// evictIfNeeded writes back and drops least-recently-used unpinned pages
// until the cache fits its budget
func (p *Pager) evictIfNeeded() error {
	for len(p.cache) > p.cacheSize {
		evicted := false
		for elem := p.lru.Back(); elem != nil; elem = elem.Prev() {
			pageNo := elem.Value.(uint32)
			entry := p.cache[pageNo]
			if entry.page.Pinned() {
				continue
			}
			if entry.page.Dirty() {
				if err := p.writePage(entry.page); err != nil {
					return err
				}
			}
			p.lru.Remove(elem)
			delete(p.cache, pageNo)
			evicted = true
			break
		}
		if !evicted {
			return ErrCacheFull
		}
	}
	return nil
}

func (p *Pager) writePage(page *Page) error {
	offset := int64(page.pageNo) * int64(p.pageSize)
	if _, err := p.file.WriteAt(page.data, offset); err != nil {
		return fmt.Errorf("write page %d: %w", page.pageNo, err)
	}
	page.dirty = false
	return nil
}

// Flush writes every dirty cached page and the header to disk
func (p *Pager) Flush() error {
	for _, entry := range p.cache {
		if entry.page.Dirty() {
			if err := p.writePage(entry.page); err != nil {
				return err
			}
		}
	}
	if err := p.writeHeader(); err != nil {
		return err
	}
	return p.file.Sync()
}

// Close flushes and closes the database file
func (p *Pager) Close() error {
	if err := p.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
