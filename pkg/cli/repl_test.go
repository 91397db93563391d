// pkg/cli/repl_test.go
package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/pkg/db"
)

func runShell(t *testing.T, input string) (string, string) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	var out, errOut bytes.Buffer
	NewREPL(database, strings.NewReader(input), &out, &errOut).Run()
	return out.String(), errOut.String()
}

func TestShellSelect(t *testing.T) {
	out, errOut := runShell(t, strings.Join([]string{
		"CREATE TABLE p (id INT PRIMARY KEY, n TEXT)",
		"INSERT INTO p (id, n) VALUES (1, 'a')",
		"INSERT INTO p (id, n) VALUES (2, 'b')",
		"SELECT * FROM p",
		".exit",
	}, "\n"))
	assert.Empty(t, errOut)
	assert.Contains(t, out, "1|a")
	assert.Contains(t, out, "2|b")
}

func TestShellTablesAndSchema(t *testing.T) {
	out, errOut := runShell(t, strings.Join([]string{
		"CREATE TABLE p (id INT PRIMARY KEY, n TEXT)",
		".tables",
		".schema p",
		".exit",
	}, "\n"))
	assert.Empty(t, errOut)
	assert.Contains(t, out, "p\n")
	assert.Contains(t, out, "CREATE TABLE p (id INTEGER PRIMARY KEY, n TEXT)")
}

func TestShellErrors(t *testing.T) {
	_, errOut := runShell(t, strings.Join([]string{
		"SELECT * FROM missing",
		"NOT SQL AT ALL",
		".bogus",
	}, "\n"))
	assert.Contains(t, errOut, "table not found")
	assert.Contains(t, errOut, "error:")
	assert.Contains(t, errOut, "unknown command")
}

func TestShellJoinedRows(t *testing.T) {
	out, _ := runShell(t, strings.Join([]string{
		"CREATE TABLE a (id INT PRIMARY KEY)",
		"CREATE TABLE b (id INT PRIMARY KEY)",
		"INSERT INTO a (id) VALUES (1)",
		"INSERT INTO b (id) VALUES (1)",
		"SELECT * FROM a JOIN b ON a.id = b.id",
		".exit",
	}, "\n"))
	assert.Contains(t, out, "a.id=1")
	assert.Contains(t, out, "b.id=1")
}
