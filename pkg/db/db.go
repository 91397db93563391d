// pkg/db/db.go
// Package db is the embeddable host surface: it wires the pager, state
// manager, virtual machine and output pipe together behind Open/Exec/Close.
package db

import (
	"fmt"

	"github.com/rs/zerolog"

	"keel/pkg/pager"
	"keel/pkg/record"
	"keel/pkg/sql/parser"
	"keel/pkg/state"
	"keel/pkg/vm"
)

// Options configures an opened database
type Options struct {
	PageSize  int // page size in bytes (default 4096)
	CacheSize int // pages to cache (default 1000)
	Logger    *zerolog.Logger
}

// DB is an open database file
type DB struct {
	pager   *pager.Pager
	state   *state.Manager
	machine *vm.VirtualMachine
	pipe    *vm.Pipe
}

// Open opens or creates a database file with default options
func Open(path string) (*DB, error) {
	return OpenWith(path, Options{})
}

// OpenWith opens or creates a database file
func OpenWith(path string, opts Options) (*DB, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	p, err := pager.Open(path, pager.Options{PageSize: opts.PageSize, CacheSize: opts.CacheSize})
	if err != nil {
		return nil, err
	}
	st, err := state.New(p)
	if err != nil {
		p.Close()
		return nil, err
	}
	pipe := vm.NewPipe()
	machine, err := vm.New(st, pipe, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	return &DB{pager: p, state: st, machine: machine, pipe: pipe}, nil
}

// Exec parses and runs a SQL string, returning one result per statement.
// A parse failure is reported before anything executes.
func (d *DB) Exec(sql string) ([]vm.Result, error) {
	program, err := parser.New(sql).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return d.machine.Run(program, false), nil
}

// Rows returns the rows the most recent SELECT wrote to the output pipe
func (d *DB) Rows() []record.Row {
	return d.pipe.Rows()
}

// State exposes the state manager (shell introspection, tests)
func (d *DB) State() *state.Manager {
	return d.state
}

// Flush writes all dirty pages to disk
func (d *DB) Flush() error {
	return d.pager.Flush()
}

// Close flushes and closes the database file
func (d *DB) Close() error {
	return d.pager.Close()
}
