package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/banshee-data/motion.report/internal/table"
)

// CSVFile is a comma-separated file with a header row.
type CSVFile struct {
	Path        string
	IndexColumn string // defaults to table.DefaultIndexName
}

// Read loads the file.
func (f *CSVFile) Read(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	t, err := ReadCSV(fh, f.IndexColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return t, nil
}

// Write stores t, replacing the file.
func (f *CSVFile) Write(ctx context.Context, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fh, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	if err := WriteCSV(fh, t); err != nil {
		fh.Close()
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return fh.Close()
}

// ReadCSV parses CSV with a header row. The index column holds epoch
// milliseconds, set is Int and category and label are String. Any other
// column is Float when every non-empty cell parses as a number, with empty
// cells as NaN, and String otherwise, so a numeric channel holding text is
// rejected by the stages that read it.
func ReadCSV(r io.Reader, indexColumn string) (*table.Table, error) {
	if indexColumn == "" {
		indexColumn = table.DefaultIndexName
	}
	// All columns load as strings; kinds are assigned below.
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true), dataframe.DetectTypes(false))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", df.Err)
	}

	names := df.Names()
	hasIndex := false
	for _, n := range names {
		if n == indexColumn {
			hasIndex = true
		}
	}
	if !hasIndex {
		return nil, fmt.Errorf("missing index column %q", indexColumn)
	}

	index, err := parseInts(df.Col(indexColumn).Records(), indexColumn)
	if err != nil {
		return nil, err
	}
	t := table.New(indexColumn, index)
	for _, name := range names {
		if name == indexColumn {
			continue
		}
		col := df.Col(name)
		switch name {
		case table.SetColumn:
			ids, err := parseInts(col.Records(), name)
			if err != nil {
				return nil, err
			}
			t, err = t.WithInt(name, ids)
		case table.CategoryColumn, table.LabelColumn:
			t, err = t.WithString(name, col.Records())
		default:
			records := col.Records()
			if vals, ok := parseFloats(records); ok {
				t, err = t.WithFloat(name, vals)
			} else {
				t, err = t.WithString(name, records)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// parseFloats reports false when any non-empty cell is not a number.
func parseFloats(records []string) ([]float64, bool) {
	out := make([]float64, len(records))
	for i, s := range records {
		s = strings.TrimSpace(s)
		if s == "" || s == "NaN" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// parseInts accepts integer cells and integral floats such as "1.0".
func parseInts(records []string, column string) ([]int64, error) {
	out := make([]int64, len(records))
	for i, s := range records {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) {
				return nil, fmt.Errorf("column %q row %d: not an integer: %q", column, i, s)
			}
			v = int64(f)
		}
		out[i] = v
	}
	return out, nil
}

// WriteCSV writes t with the index as the first column. Floats are written
// at full precision and NaN as an empty cell.
func WriteCSV(w io.Writer, t *table.Table) error {
	cols := []series.Series{series.New(formatInts(t.Index()), series.String, t.IndexName())}
	for _, name := range t.Columns() {
		k, _ := t.Kind(name)
		var records []string
		switch k {
		case table.Int:
			vals, _ := t.Int(name)
			records = formatInts(vals)
		case table.String:
			records, _ = t.Strings(name)
		default:
			vals, _ := t.Float(name)
			records = formatFloats(vals)
		}
		cols = append(cols, series.New(records, series.String, name))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

func formatInts(vals []int64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatInt(v, 10)
	}
	return out
}

func formatFloats(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
