package adapter

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huf/internal/engine"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ids(tbl *engine.Table) []string {
	var out []string
	for _, e := range tbl.Elements() {
		out = append(out, e.ID)
	}
	return out
}

// =============================================================================
// Fingerprint
// =============================================================================

func TestFingerprint_Format(t *testing.T) {
	path := writeFile(t, "data.csv", "abc")
	fp, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^data\.csv\|3\|\d+$`), fp)
}

func TestFingerprint_MissingFile(t *testing.T) {
	_, err := Fingerprint(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

// =============================================================================
// LoadElements
// =============================================================================

func TestLoadElements_CSV(t *testing.T) {
	path := writeFile(t, "elements.csv",
		"element_id,regime_id,value,method_ref\n"+
			"a,R1,10,m\n"+
			"b,R1,5,\n"+
			"c,R2,1.5,m\n")

	tbl, meta, err := LoadElements(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(tbl))
	assert.InDelta(t, 16.5, tbl.TotalValue(), 1e-12)
	assert.Len(t, meta.DatasetID, 16)
	assert.Equal(t, 2, meta.Extra["regimes"])

	elems := tbl.Elements()
	assert.Equal(t, "elements_table", elems[1].MethodRef)
	assert.Contains(t, elems[0].InputsRef, "elements.csv|")
}

func TestLoadElements_TSVAndJSONLAgree(t *testing.T) {
	tsv := writeFile(t, "e.tsv", "element_id\tregime_id\tvalue\na\tR\t1\nb\tR\t3\n")
	jsonl := writeFile(t, "e.jsonl", `{"element_id":"a","regime_id":"R","value":1}`+"\n"+
		`{"element_id":"b","regime_id":"R","value":3}`+"\n")

	t1, _, err := LoadElements(tsv)
	require.NoError(t, err)
	t2, _, err := LoadElements(jsonl)
	require.NoError(t, err)

	assert.Equal(t, ids(t1), ids(t2))
	assert.Equal(t, t1.TotalValue(), t2.TotalValue())
}

func TestLoadElements_MissingColumns(t *testing.T) {
	path := writeFile(t, "bad.csv", "element_id,value\na,1\n")
	_, _, err := LoadElements(path)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeMissingColumns, engine.CodeOf(err))
	assert.Contains(t, err.Error(), "regime_id")
}

func TestLoadElements_BadValue(t *testing.T) {
	path := writeFile(t, "bad.csv", "element_id,regime_id,value\na,R,abc\n")
	_, _, err := LoadElements(path)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeInvalidValue, engine.CodeOf(err))
}

func TestLoadElements_NegativeValue(t *testing.T) {
	path := writeFile(t, "neg.csv", "element_id,regime_id,value\na,R,-1\n")
	_, _, err := LoadElements(path)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeNegativeValue, engine.CodeOf(err))
}

func TestLoadElements_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "e.xlsx", "")
	_, _, err := LoadElements(path)
	assert.Error(t, err)
}

func TestLoadElements_StripsBOM(t *testing.T) {
	path := writeFile(t, "bom.csv", "\ufeffelement_id,regime_id,value\na,R,1\n")
	tbl, _, err := LoadElements(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(tbl))
}

// =============================================================================
// VectorDB
// =============================================================================

const vectorDump = `{"id":"d1","score":0.9,"namespace":"docs","source":"wiki"}
{"id":"d2","score":0.5,"namespace":"docs"}
{"id":"d 3","score":0.2,"namespace":"faq"}
{"id":"d4","score":null,"namespace":"faq"}
{"id":"d5","score":0.1}
`

func TestVectorDB_Defaults(t *testing.T) {
	path := writeFile(t, "hits.jsonl", vectorDump)
	tbl, meta, err := VectorDB(path, VectorDBConfig{TraceFields: []string{"source"}}, "q1")
	require.NoError(t, err)

	assert.Equal(t, []string{"docs/id=d1", "docs/id=d2", "faq/id=d_3", "Global/id=d5"}, ids(tbl))
	assert.Equal(t, "q1", meta.Extra["query_label"])
	assert.Equal(t, 4, meta.Extra["rows_loaded"])

	first := tbl.Elements()[0]
	assert.Equal(t, []string{"VectorDBResults", "query=q1", "id=d1", "score=0.9", "namespace=docs", "source=wiki"}, first.Path())
	assert.Contains(t, first.MethodRef, "nonneg_mode=clip")
}

func TestVectorDB_DatasetIDDependsOnQuery(t *testing.T) {
	path := writeFile(t, "hits.jsonl", vectorDump)
	_, m1, err := VectorDB(path, VectorDBConfig{}, "q1")
	require.NoError(t, err)
	_, m2, err := VectorDB(path, VectorDBConfig{}, "q2")
	require.NoError(t, err)
	assert.NotEqual(t, m1.DatasetID, m2.DatasetID)
}

func TestVectorDB_TopK(t *testing.T) {
	path := writeFile(t, "hits.jsonl", vectorDump)
	tbl, _, err := VectorDB(path, VectorDBConfig{TopK: 2}, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/id=d1", "docs/id=d2"}, ids(tbl))
}

func TestVectorDB_TopKOrdersByScoreWhenKeepingAll(t *testing.T) {
	path := writeFile(t, "hits.csv", "id,score\na,0.2\nb,0.9\nc,0.5\n")

	unsorted, _, err := VectorDB(path, VectorDBConfig{}, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"Global/id=a", "Global/id=b", "Global/id=c"}, ids(unsorted))

	sorted, _, err := VectorDB(path, VectorDBConfig{TopK: 10}, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"Global/id=b", "Global/id=c", "Global/id=a"}, ids(sorted))
	assert.Equal(t, []float64{0.9, 0.5, 0.2}, values(sorted))
}

func TestVectorDB_NonnegModes(t *testing.T) {
	path := writeFile(t, "hits.csv", "id,score\na,1.0\nb,-0.5\nc,0.5\n")

	clip, _, err := VectorDB(path, VectorDBConfig{NonnegMode: NonnegClip}, "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 0, 0.5}, values(clip))

	shift, meta, err := VectorDB(path, VectorDBConfig{NonnegMode: NonnegShift}, "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 0, 1.0}, values(shift))
	assert.Equal(t, -0.5, meta.Extra["min_score_original"])
}

func TestVectorDB_RejectsUnknownMode(t *testing.T) {
	path := writeFile(t, "hits.csv", "id,score\na,1\n")
	_, _, err := VectorDB(path, VectorDBConfig{NonnegMode: "wrap"}, "q")
	assert.Error(t, err)
}

func TestVectorDB_MissingScoreField(t *testing.T) {
	path := writeFile(t, "hits.csv", "id,relevance\na,1\n")
	_, _, err := VectorDB(path, VectorDBConfig{}, "q")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeMissingColumns, engine.CodeOf(err))
}

func values(tbl *engine.Table) []float64 {
	var out []float64
	for _, e := range tbl.Elements() {
		out = append(out, e.Value)
	}
	return out
}

// =============================================================================
// Traffic
// =============================================================================

const trafficCSV = `TCS,PHASE,PHASE_STATUS_TEXT,PHASE_CALL_TEXT
12,2,Green Termination,Ped
12,4,Green Termination,Veh
12,3,Max Out,Veh
12,10,Green Termination,
7,1,Green Termination,Veh
7,1,Green Termination,Veh
7,x,Max Out,Veh
`

func TestPhaseBand(t *testing.T) {
	assert.Equal(t, BandMajorEven, PhaseBand("2"))
	assert.Equal(t, BandMajorEven, PhaseBand("8.0"))
	assert.Equal(t, BandMinorOdd, PhaseBand("7"))
	assert.Equal(t, BandOther, PhaseBand("11"))
	assert.Equal(t, BandOther, PhaseBand(""))
}

func TestTrafficPhaseBand(t *testing.T) {
	path := writeFile(t, "traffic.csv", trafficCSV)
	tbl, meta, err := TrafficPhaseBand(path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"TCS=7/band=MinorOdd(1,3,5,7)",
		"TCS=7/band=Other(9-12)",
		"TCS=12/band=MajorEven(2,4,6,8)",
		"TCS=12/band=MinorOdd(1,3,5,7)",
		"TCS=12/band=Other(9-12)",
	}, ids(tbl))
	assert.Equal(t, []float64{2, 1, 2, 1, 1}, values(tbl))
	assert.Equal(t, 2, meta.Extra["regimes"])
	assert.Equal(t, []string{"Global", "TCS=7", "PHASE_BAND=MinorOdd(1,3,5,7)"}, tbl.Elements()[0].Path())
}

func TestTrafficAnomaly_DefaultStatus(t *testing.T) {
	path := writeFile(t, "traffic.csv", trafficCSV)
	tbl, meta, err := TrafficAnomaly(path, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"TCS=7/phase=1/status=Green Termination",
		"TCS=12/phase=2/status=Green Termination",
		"TCS=12/phase=4/status=Green Termination",
		"TCS=12/phase=10/status=Green Termination",
	}, ids(tbl))
	assert.Equal(t, []float64{2, 1, 1, 1}, values(tbl))
	assert.Equal(t, 5, meta.Extra["rows_in_subset"])
}

func TestTrafficAnomaly_CallText(t *testing.T) {
	path := writeFile(t, "traffic.csv", trafficCSV)
	tbl, _, err := TrafficAnomaly(path, []string{"Green Termination"}, true)
	require.NoError(t, err)

	assert.Contains(t, ids(tbl), "TCS=12/phase=10/status=Green Termination/call=Unknown")
	assert.Contains(t, ids(tbl), "TCS=12/phase=2/status=Green Termination/call=Ped")
}

func TestTrafficAnomaly_EmptySubset(t *testing.T) {
	path := writeFile(t, "traffic.csv", trafficCSV)
	_, _, err := TrafficAnomaly(path, []string{"Flash"}, false)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeEmptyTable, engine.CodeOf(err))
}

func TestTraffic_MissingColumns(t *testing.T) {
	path := writeFile(t, "traffic.csv", "TCS,STATUS\n1,x\n")
	_, _, err := TrafficPhaseBand(path)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeMissingColumns, engine.CodeOf(err))
}
