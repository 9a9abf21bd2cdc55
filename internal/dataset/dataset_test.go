package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/features"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/pipeline"
	"github.com/banshee-data/motion.report/internal/table"
)

const sampleCSV = `epoch (ms),acc_x,acc_y,set,category,label
1000,0.5,-1.25,1,heavy,bench
1200,,2.0,1,heavy,bench
1400,0.125,3e-3,2,medium,ohp
`

func TestReadCSV(t *testing.T) {
	tb, err := ReadCSV(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)

	assert.Equal(t, table.DefaultIndexName, tb.IndexName())
	assert.Equal(t, []int64{1000, 1200, 1400}, tb.Index())
	assert.Equal(t, []string{"acc_x", "acc_y", "set", "category", "label"}, tb.Columns())

	acc, err := tb.Float("acc_x")
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc[0])
	assert.True(t, math.IsNaN(acc[1]))
	assert.Equal(t, 0.125, acc[2])

	accY, err := tb.Float("acc_y")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.25, 2, 0.003}, accY)

	sets, err := tb.Int(table.SetColumn)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, sets)

	labels, err := tb.Strings(table.LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"bench", "bench", "ohp"}, labels)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("time,acc_x\n1,2\n"), "")
	assert.ErrorContains(t, err, "missing index column")

	_, err = ReadCSV(strings.NewReader("epoch (ms),set\n1,1.5\n"), "")
	assert.ErrorContains(t, err, "not an integer")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	in, err := ReadCSV(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)
	in, err = in.WithFloat("precise", []float64{math.Pi, 1e-12, -0.1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "epoch (ms),acc_x,acc_y,set,category,label,precise", header)

	out, err := ReadCSV(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, in.Index(), out.Index())
	assert.Equal(t, in.Columns(), out.Columns())

	precise, err := out.Float("precise")
	require.NoError(t, err)
	assert.Equal(t, []float64{math.Pi, 1e-12, -0.1}, precise)

	acc, err := out.Float("acc_x")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(acc[1]))
}

func TestOpenCreate_Dispatch(t *testing.T) {
	r, err := Open("in.csv", "")
	require.NoError(t, err)
	assert.IsType(t, &CSVFile{}, r)

	r, err = Open("store.db#raw", "")
	require.NoError(t, err)
	require.IsType(t, &SQLiteTable{}, r)
	assert.Equal(t, "store.db", r.(*SQLiteTable).Path)
	assert.Equal(t, "raw", r.(*SQLiteTable).Table)

	r, err = Open("store.sqlite", "")
	require.NoError(t, err)
	assert.Equal(t, "readings", r.(*SQLiteTable).Table)

	_, err = Open("out.parquet", "")
	assert.Error(t, err)
	_, err = Open("in.xlsx", "")
	assert.Error(t, err)

	w, err := Create("out.parquet")
	require.NoError(t, err)
	assert.IsType(t, &ParquetFile{}, w)

	w, err = Create("store.db")
	require.NoError(t, err)
	assert.Equal(t, "features", w.(*SQLiteTable).Table)

	_, err = Create("out.json")
	assert.Error(t, err)
}

func TestCSVFile_ReadWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.csv"), []byte(sampleCSV), 0644))

	in, err := (&CSVFile{Path: filepath.Join(dir, "in.csv")}).Read(ctx)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out.csv")
	require.NoError(t, (&CSVFile{Path: outPath}).Write(ctx, in))
	out, err := (&CSVFile{Path: outPath}).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.Len(), out.Len())

	_, err = (&CSVFile{Path: filepath.Join(dir, "missing.csv")}).Read(ctx)
	assert.Error(t, err)
}

func TestSQLiteTable_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	in, err := ReadCSV(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)

	w, err := Create(path + "#readings")
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, in))

	r, err := Open(path, "")
	require.NoError(t, err)
	out, err := r.Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, in.Index(), out.Index())
	assert.Equal(t, in.Columns(), out.Columns())
	sets, err := out.Int(table.SetColumn)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, sets)
}

func TestParquetFile_Write(t *testing.T) {
	in, err := ReadCSV(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)

	pf := &ParquetFile{Path: filepath.Join(t.TempDir(), "features.parquet")}
	assert.Equal(t, []string{
		"name=epoch (ms), type=INT64",
		"name=acc_x, type=DOUBLE",
		"name=acc_y, type=DOUBLE",
		"name=set, type=INT64",
		"name=category, type=BYTE_ARRAY, convertedtype=UTF8",
		"name=label, type=BYTE_ARRAY, convertedtype=UTF8",
	}, pf.Schema(in))

	require.NoError(t, pf.Write(context.Background(), in))

	data, err := os.ReadFile(pf.Path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestReadCSV_InfersColumnKinds(t *testing.T) {
	in := `epoch (ms),acc_x,participant,note,set
1000,1.5,A,,1
1200,,B,ok,1
1400,NaN,A,7,1
`
	tb, err := ReadCSV(strings.NewReader(in), "")
	require.NoError(t, err)

	tests := []struct {
		column string
		want   table.Kind
	}{
		{"acc_x", table.Float},
		{"participant", table.String},
		{"note", table.String},
		{table.SetColumn, table.Int},
	}
	for _, tc := range tests {
		t.Run(tc.column, func(t *testing.T) {
			k, err := tb.Kind(tc.column)
			require.NoError(t, err)
			assert.Equal(t, tc.want, k)
		})
	}

	acc, err := tb.Float("acc_x")
	require.NoError(t, err)
	assert.Equal(t, 1.5, acc[0])
	assert.True(t, math.IsNaN(acc[1]))
	assert.True(t, math.IsNaN(acc[2]))

	who, err := tb.Strings("participant")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "A"}, who)
}

// sessionCSV renders two 40-row sets of 5 Hz sine data with a participant
// column. bad, when non-empty, replaces acc_x at row 10.
func sessionCSV(bad string) string {
	cols := []string{"acc_x", "acc_y", "acc_z", "gyr_x", "gyr_y", "gyr_z"}
	var b strings.Builder
	fmt.Fprintf(&b, "epoch (ms),%s,participant,set,category,label\n", strings.Join(cols, ","))
	for i := 0; i < 80; i++ {
		set := i/40 + 1
		fmt.Fprintf(&b, "%d", int64(i)*200)
		for c := range cols {
			if c == 0 && i == 10 && bad != "" {
				fmt.Fprintf(&b, ",%s", bad)
				continue
			}
			v := math.Sin(2*math.Pi*(0.3+0.15*float64(c))*float64(i)/5+float64(c)) + 0.1*float64(set)
			fmt.Fprintf(&b, ",%g", v)
		}
		fmt.Fprintf(&b, ",A,%d,heavy,row\n", set)
	}
	return b.String()
}

func sessionPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	five, three := 5, 3
	cfg := config.EmptyPipelineConfig()
	cfg.TemporalWindow = &five
	cfg.FrequencyWindow = &five
	cfg.ClusterK = &three
	p, err := pipeline.New(cfg)
	require.NoError(t, err)
	return p
}

func TestReadCSV_ParticipantColumnThroughPipeline(t *testing.T) {
	in, err := ReadCSV(strings.NewReader(sessionCSV("")), "")
	require.NoError(t, err)
	k, err := in.Kind("participant")
	require.NoError(t, err)
	assert.Equal(t, table.String, k)

	out, _, err := sessionPipeline(t).Run(context.Background(), in)
	require.NoError(t, err)

	// 36 complete rows per set after the 5-sample warm-up, then every second.
	assert.Equal(t, 36, out.Len())
	who, err := out.Strings("participant")
	require.NoError(t, err)
	for _, w := range who {
		assert.Equal(t, "A", w)
	}
}

func TestReadCSV_TextInChannelIsSchemaError(t *testing.T) {
	in, err := ReadCSV(strings.NewReader(sessionCSV("abc")), "")
	require.NoError(t, err)
	k, err := in.Kind("acc_x")
	require.NoError(t, err)
	assert.Equal(t, table.String, k)

	_, _, err = sessionPipeline(t).Run(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrSchema))

	var se *features.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "acc_x", se.Column)
}
