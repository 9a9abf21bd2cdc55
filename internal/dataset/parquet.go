package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/banshee-data/motion.report/internal/table"
)

// ParquetFile is an export-only Parquet file written with a flat schema
// derived from the table's columns.
type ParquetFile struct {
	Path     string
	Parallel int64 // writer goroutines, default 4
}

func parquetField(name string, k table.Kind) string {
	// Tag syntax reserves ',' and '='.
	name = strings.NewReplacer(",", "_", "=", "_").Replace(name)
	switch k {
	case table.Int:
		return "name=" + name + ", type=INT64"
	case table.String:
		return "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8"
	default:
		return "name=" + name + ", type=DOUBLE"
	}
}

// Schema returns the column metadata written for t, index first.
func (f *ParquetFile) Schema(t *table.Table) []string {
	md := []string{parquetField(t.IndexName(), table.Int)}
	for _, name := range t.Columns() {
		k, _ := t.Kind(name)
		md = append(md, parquetField(name, k))
	}
	return md
}

// Write stores t, replacing the file.
func (f *ParquetFile) Write(ctx context.Context, t *table.Table) (err error) {
	np := f.Parallel
	if np <= 0 {
		np = 4
	}
	fw, err := local.NewLocalFileWriter(f.Path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	pw, err := writer.NewCSVWriter(f.Schema(t), fw, np)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	cols := t.Columns()
	getters := make([]func(r int) interface{}, len(cols))
	for i, name := range cols {
		k, _ := t.Kind(name)
		switch k {
		case table.Int:
			vals, _ := t.Int(name)
			getters[i] = func(r int) interface{} { return vals[r] }
		case table.String:
			vals, _ := t.Strings(name)
			getters[i] = func(r int) interface{} { return vals[r] }
		default:
			vals, _ := t.Float(name)
			getters[i] = func(r int) interface{} { return vals[r] }
		}
	}

	for r, ix := range t.Index() {
		if r%4096 == 0 {
			if err := ctx.Err(); err != nil {
				pw.WriteStop()
				return err
			}
		}
		rec := make([]interface{}, 0, len(cols)+1)
		rec = append(rec, ix)
		for _, get := range getters {
			rec = append(rec, get(r))
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
