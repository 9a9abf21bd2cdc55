// Package dataset reads and writes sensor tables as CSV, Parquet or SQLite.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/table"
)

// Reader loads a table.
type Reader interface {
	Read(ctx context.Context) (*table.Table, error)
}

// Writer stores a table.
type Writer interface {
	Write(ctx context.Context, t *table.Table) error
}

// splitTable separates an optional "#table" suffix from a SQLite path.
func splitTable(path, def string) (string, string) {
	if i := strings.LastIndex(path, "#"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, def
}

func isSQLite(ext string) bool {
	return ext == ".db" || ext == ".sqlite" || ext == ".sqlite3"
}

// Open returns a Reader chosen by file extension: .csv, or .db/.sqlite with
// an optional #table suffix (default readings).
func Open(path, indexColumn string) (Reader, error) {
	file, name := splitTable(path, db.ReadingsTable)
	switch ext := strings.ToLower(filepath.Ext(file)); {
	case ext == ".csv":
		return &CSVFile{Path: path, IndexColumn: indexColumn}, nil
	case isSQLite(ext):
		return &SQLiteTable{Path: file, Table: name, IndexColumn: indexColumn}, nil
	case ext == ".parquet":
		return nil, fmt.Errorf("parquet is an export-only format: %s", path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", ext)
	}
}

// Create returns a Writer chosen by file extension: .csv, .parquet, or
// .db/.sqlite with an optional #table suffix (default features).
func Create(path string) (Writer, error) {
	file, name := splitTable(path, db.FeaturesTable)
	switch ext := strings.ToLower(filepath.Ext(file)); {
	case ext == ".csv":
		return &CSVFile{Path: path}, nil
	case ext == ".parquet":
		return &ParquetFile{Path: path}, nil
	case isSQLite(ext):
		return &SQLiteTable{Path: file, Table: name}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}
}
