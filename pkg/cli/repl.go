// pkg/cli/repl.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"keel/pkg/db"
	"keel/pkg/record"
	"keel/pkg/schema"
)

// REPL is a line-oriented shell over an open database
type REPL struct {
	db     *db.DB
	input  io.Reader
	output io.Writer
	errOut io.Writer
}

// NewREPL creates a REPL over the given database and streams
func NewREPL(database *db.DB, input io.Reader, output, errOut io.Writer) *REPL {
	return &REPL{db: database, input: input, output: output, errOut: errOut}
}

// Run reads statements until EOF or .exit
func (r *REPL) Run() {
	scanner := bufio.NewScanner(r.input)
	for {
		fmt.Fprint(r.output, "keel> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.output)
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if r.dotCommand(line) {
				return
			}
			continue
		}
		r.execute(line)
	}
}

// dotCommand handles shell commands; returns true when the shell should exit
func (r *REPL) dotCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit", ".quit":
		return true
	case ".tables":
		names := r.db.State().TableNames()
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(r.output, name)
		}
	case ".schema":
		if len(fields) < 2 {
			fmt.Fprintln(r.errOut, "usage: .schema <table>")
			return false
		}
		s, err := r.db.State().GetSchema(fields[1])
		if err != nil {
			fmt.Fprintf(r.errOut, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(r.output, schema.ToDDL(s))
	case ".help":
		fmt.Fprintln(r.output, ".exit            leave the shell")
		fmt.Fprintln(r.output, ".tables          list tables")
		fmt.Fprintln(r.output, ".schema <table>  show a table's DDL")
	default:
		fmt.Fprintf(r.errOut, "unknown command %s (try .help)\n", fields[0])
	}
	return false
}

func (r *REPL) execute(sql string) {
	results, err := r.db.Exec(sql)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return
	}
	for _, res := range results {
		if !res.Success {
			fmt.Fprintf(r.errOut, "error: %s\n", res.ErrorMessage)
		}
	}
	for _, row := range r.db.Rows() {
		fmt.Fprintln(r.output, FormatRow(row))
	}
}

// FormatRow renders a row the way the shell prints it
func FormatRow(row record.Row) string {
	switch rec := row.(type) {
	case *record.Record:
		values := rec.Values()
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.String()
		}
		return strings.Join(parts, "|")
	case *record.JoinedRecord:
		var parts []string
		for _, src := range rec.Sources() {
			sub, err := rec.Source(src)
			if err != nil {
				continue
			}
			for _, col := range sub.Schema().ColumnNames() {
				v, err := sub.Get(col)
				if err != nil {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s.%s=%s", src, col, v))
			}
		}
		return strings.Join(parts, "|")
	default:
		return fmt.Sprintf("%v", row)
	}
}
