// Package export writes cycle artifacts and stability packets to disk.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/huf/internal/audit"
)

// Output file names.
const (
	CoherenceMapFile = "artifact_1_coherence_map.csv"
	ActiveSetFile    = "artifact_2_active_set.csv"
	TraceReportFile  = "artifact_3_trace_report.jsonl"
	ErrorBudgetFile  = "artifact_4_error_budget.json"
	RunStampFile     = "run_stamp.json"
	StabilityFile    = "stability_packet.csv"
	MetaFile         = "meta.json"
)

// Writer writes into one output directory, creating it on first write.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter returns a writer for dir. A nil logger discards.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteArtifacts writes the four artifacts and the run stamp, returning
// the paths written.
func (w *Writer) WriteArtifacts(art *audit.Artifacts) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	steps := []struct {
		name  string
		write func(io.Writer) error
	}{
		{CoherenceMapFile, func(f io.Writer) error { return writeCoherenceMap(f, art.CoherenceMap) }},
		{ActiveSetFile, func(f io.Writer) error { return writeActiveSet(f, art.ActiveSet) }},
		{TraceReportFile, func(f io.Writer) error { return writeTrace(f, art.TraceReport) }},
		{ErrorBudgetFile, func(f io.Writer) error { return writeJSON(f, art.ErrorBudget.Map()) }},
		{RunStampFile, func(f io.Writer) error { return writeJSON(f, art.RunStamp) }},
	}

	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		path, err := w.writeFile(step.name, step.write)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	w.logger.Debug("artifacts written", "dir", w.dir, "run_id", art.RunStamp.RunID)
	return paths, nil
}

// WriteStability writes the stability packet CSV.
func (w *Writer) WriteStability(rows []audit.StabilityRow) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return w.writeFile(StabilityFile, func(f io.Writer) error { return writeStability(f, rows) })
}

// WriteMeta writes the adapter meta record.
func (w *Writer) WriteMeta(meta audit.Meta) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return w.writeFile(MetaFile, func(f io.Writer) error { return writeJSON(f, meta.Map()) })
}

func (w *Writer) writeFile(name string, write func(io.Writer) error) (string, error) {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// CoherenceColumns is the coherence map CSV header.
var CoherenceColumns = []string{
	"regime_id", "rho_global_pre", "rho_global_post", "rho_discarded_pre",
	"local_unity_post", "local_unity_ok_post", "global_discarded_budget",
	"element_count", "kept_count",
}

func writeCoherenceMap(w io.Writer, rows []audit.RegimeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CoherenceColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.RegimeID,
			formatFloat(r.RhoGlobalPre),
			formatFloat(r.RhoGlobalPost),
			formatFloat(r.RhoDiscardedPre),
			formatFloat(r.LocalUnityPost),
			strconv.FormatBool(r.LocalUnityOK),
			formatFloat(r.GlobalDiscardedBudget),
			strconv.Itoa(r.ElementCount),
			strconv.Itoa(r.KeptCount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ActiveSetColumns is the active set CSV header.
var ActiveSetColumns = []string{
	"rank", "item_id", "regime_id", "rho_global_post", "rho_global_pre",
	"rho_local_pre", "rho_local_post", "value", "tau", "tau_local", "exclusion",
}

func writeActiveSet(w io.Writer, recs []audit.ActiveRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ActiveSetColumns); err != nil {
		return err
	}
	for _, r := range recs {
		tauLocal := ""
		if r.TauLocal != nil {
			tauLocal = formatFloat(*r.TauLocal)
		}
		if err := cw.Write([]string{
			strconv.Itoa(r.Rank),
			r.ItemID,
			r.RegimeID,
			formatFloat(r.RhoGlobalPost),
			formatFloat(r.RhoGlobalPre),
			formatFloat(r.RhoLocalPre),
			formatFloat(r.RhoLocalPost),
			formatFloat(r.Value),
			formatFloat(r.Tau),
			tauLocal,
			r.Exclusion,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeStability(w io.Writer, rows []audit.StabilityRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(audit.StabilityColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			formatFloat(r.Tau),
			strconv.Itoa(r.ActiveCount),
			formatFloat(r.DiscardedBudgetGlobal),
			formatFloat(r.JaccardVsBaseline),
			formatFloat(r.SpearmanVsBaseline),
			strconv.Itoa(r.NearThresholdCount),
			strconv.FormatBool(r.Invalid),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTrace writes one JSON object per line.
func writeTrace(w io.Writer, recs []audit.TraceRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
