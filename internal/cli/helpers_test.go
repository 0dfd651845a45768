package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// sampleCSV is the two-regime reference table (total 34).
const sampleCSV = `element_id,regime_id,value
R1/e0,R1,10
R1/e1,R1,5
R1/e2,R1,2
R1/e3,R1,1
R1/e4,R1,0.5
R2/e0,R2,8
R2/e1,R2,4
R2/e2,R2,2
R2/e3,R2,1
R2/e4,R2,0.5
`

// writeSampleData writes sampleCSV into a fresh directory and returns the
// directory and the file path.
func writeSampleData(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "elements.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))
	return dir, path
}

// execute runs cmd with args and returns stdout. Logs go to a separate
// buffer so JSON output stays parseable.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
