package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/huf/internal/audit"
)

// ValidateTraceFile checks every line of a trace JSONL file and returns
// the number of records. Legacy field names are accepted.
func ValidateTraceFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	n := 0
	for dec.More() {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return n, fmt.Errorf("decode trace record %d: %w", n+1, err)
		}
		if err := audit.ValidateTraceLine(obj); err != nil {
			return n, fmt.Errorf("trace record %d: %w", n+1, err)
		}
		n++
	}
	return n, nil
}
