package dataset

import (
	"context"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/table"
)

// SQLiteTable is one table of a SQLite database. The database is opened,
// migrated and closed on every call.
type SQLiteTable struct {
	Path        string
	Table       string
	IndexColumn string // read only; defaults to table.DefaultIndexName
}

// Read loads the table ordered by its index.
func (s *SQLiteTable) Read(ctx context.Context) (*table.Table, error) {
	database, err := db.NewDB(s.Path)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	index := s.IndexColumn
	if index == "" {
		index = table.DefaultIndexName
	}
	return database.ReadTable(ctx, s.Table, index)
}

// Write replaces the table with t.
func (s *SQLiteTable) Write(ctx context.Context, t *table.Table) error {
	database, err := db.NewDB(s.Path)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.WriteTable(ctx, s.Table, t)
}
