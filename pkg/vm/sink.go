// pkg/vm/sink.go
package vm

import "keel/pkg/record"

// OutputSink receives the rows a SELECT produces. The VM resets it at the
// start of each SELECT; the caller drains it between statements.
type OutputSink interface {
	Reset()
	Write(row record.Row)
}

// Pipe is a slice-backed OutputSink
type Pipe struct {
	rows []record.Row
}

// NewPipe creates an empty pipe
func NewPipe() *Pipe {
	return &Pipe{}
}

// Reset discards any buffered rows
func (p *Pipe) Reset() {
	p.rows = p.rows[:0]
}

// Write appends a row
func (p *Pipe) Write(row record.Row) {
	p.rows = append(p.rows, row)
}

// Rows returns the buffered rows
func (p *Pipe) Rows() []record.Row {
	out := make([]record.Row, len(p.rows))
	copy(out, p.rows)
	return out
}
