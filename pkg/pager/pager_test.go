// pkg/pager/pager_test.go
package pager

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestPager(t *testing.T, opts Options) (*Pager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	p, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p, path
}

func TestNewDatabaseHeader(t *testing.T) {
	p, _ := openTestPager(t, Options{})
	defer p.Close()

	if p.PageSize() != defaultPageSize {
		t.Errorf("PageSize = %d", p.PageSize())
	}
	if p.PageCount() != 1 {
		t.Errorf("PageCount = %d, want 1 (header page)", p.PageCount())
	}
	if p.CatalogRoot() != 0 {
		t.Errorf("CatalogRoot = %d, want 0 for a fresh file", p.CatalogRoot())
	}
}

func TestAllocateAndGet(t *testing.T) {
	p, _ := openTestPager(t, Options{})
	defer p.Close()

	page, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if page.PageNo() != 1 {
		t.Errorf("first allocated page = %d, want 1", page.PageNo())
	}
	copy(page.Data(), []byte("hello"))
	page.SetDirty(true)
	p.Release(page)

	got, err := p.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data()[:5]) != "hello" {
		t.Errorf("page content = %q", got.Data()[:5])
	}
	p.Release(got)
}

func TestGetReservedAndOutOfRange(t *testing.T) {
	p, _ := openTestPager(t, Options{})
	defer p.Close()

	if _, err := p.Get(0); err != ErrPageReserved {
		t.Errorf("Get(0) = %v, want ErrPageReserved", err)
	}
	if _, err := p.Get(99); err == nil {
		t.Error("Get(99) should fail")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	p, path := openTestPager(t, Options{})

	page, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	copy(page.Data(), []byte("durable"))
	page.SetDirty(true)
	p.Release(page)

	if err := p.SetCatalogRoot(page.PageNo()); err != nil {
		t.Fatalf("SetCatalogRoot: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()

	if p2.PageCount() != 2 {
		t.Errorf("PageCount after reopen = %d, want 2", p2.PageCount())
	}
	if p2.CatalogRoot() != 1 {
		t.Errorf("CatalogRoot after reopen = %d, want 1", p2.CatalogRoot())
	}
	got, err := p2.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data()[:7]) != "durable" {
		t.Errorf("page content after reopen = %q", got.Data()[:7])
	}
	p2.Release(got)
}

func TestEvictionWritesBack(t *testing.T) {
	p, _ := openTestPager(t, Options{CacheSize: 2})
	defer p.Close()

	// allocate more pages than the cache holds; earlier ones get evicted
	for i := 0; i < 5; i++ {
		page, err := p.Allocate()
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		page.Data()[0] = byte(i + 1)
		page.SetDirty(true)
		p.Release(page)
	}

	for i := 0; i < 5; i++ {
		page, err := p.Get(uint32(i + 1))
		if err != nil {
			t.Fatalf("Get %d: %v", i+1, err)
		}
		if page.Data()[0] != byte(i+1) {
			t.Errorf("page %d content = %d after eviction round trip", i+1, page.Data()[0])
		}
		p.Release(page)
	}
}

func TestInvalidHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.db")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, Options{}); err != ErrInvalidHeader {
		t.Errorf("Open(junk) = %v, want ErrInvalidHeader", err)
	}
}
