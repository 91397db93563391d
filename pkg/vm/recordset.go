// pkg/vm/recordset.go
package vm

import (
	"keel/pkg/record"
)

const recordSetNameLen = 10

// initRecordSet creates an empty named record set and returns its name.
// Names are opaque random keys, unique within this VM instance.
func (v *VirtualMachine) initRecordSet() string {
	name := v.genRandKey(recordSetNameLen)
	for {
		if _, taken := v.rsets[name]; !taken {
			break
		}
		name = v.genRandKey(recordSetNameLen)
	}
	v.rsets[name] = []record.Row{}
	return name
}

func (v *VirtualMachine) genRandKey(size int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = letters[v.rand.Intn(len(letters))]
	}
	return string(buf)
}

// appendRecordSet adds a record to a named set
func (v *VirtualMachine) appendRecordSet(name string, row record.Row) {
	v.rsets[name] = append(v.rsets[name], row)
}

// recordSetIter returns the records of a named set in append order.
// Iterating again restarts from the beginning.
func (v *VirtualMachine) recordSetIter(name string) []record.Row {
	return v.rsets[name]
}

// dropRecordSet releases a named set
func (v *VirtualMachine) dropRecordSet(name string) {
	delete(v.rsets, name)
}
