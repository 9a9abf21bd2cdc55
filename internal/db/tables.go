package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/motion.report/internal/table"
)

// Conventional table names.
const (
	ReadingsTable = "readings"
	FeaturesTable = "features"
)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type columnInfo struct {
	name     string
	declType string
}

func (db *DB) tableColumns(ctx context.Context, name string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %q: %w", name, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid     int
			col     columnInfo
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.name, &col.declType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return cols, nil
}

// kindOf maps a column to a table kind: the set column is Int, text
// affinity columns are String and everything else is a Float channel.
func kindOf(col columnInfo) table.Kind {
	if col.name == table.SetColumn {
		return table.Int
	}
	t := strings.ToUpper(col.declType)
	if strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || strings.Contains(t, "CLOB") {
		return table.String
	}
	return table.Float
}

// ReadTable loads every row of the named table ordered by indexColumn.
// NULL channel values load as NaN.
func (db *DB) ReadTable(ctx context.Context, name, indexColumn string) (*table.Table, error) {
	cols, err := db.tableColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	var data []columnInfo
	hasIndex := false
	for _, c := range cols {
		if c.name == indexColumn {
			hasIndex = true
			continue
		}
		data = append(data, c)
	}
	if !hasIndex {
		return nil, fmt.Errorf("table %q has no index column %q", name, indexColumn)
	}

	names := []string{quoteIdent(indexColumn)}
	for _, c := range data {
		names = append(names, quoteIdent(c.name))
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(names, ", "), quoteIdent(name), quoteIdent(indexColumn))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %q: %w", name, err)
	}
	defer rows.Close()

	var index []int64
	floats := make([][]float64, len(data))
	ints := make([][]int64, len(data))
	strs := make([][]string, len(data))

	dest := make([]interface{}, len(data)+1)
	var idx sql.NullInt64
	dest[0] = &idx
	scratch := make([]interface{}, len(data))
	for i, c := range data {
		switch kindOf(c) {
		case table.Int:
			scratch[i] = new(sql.NullInt64)
		case table.String:
			scratch[i] = new(sql.NullString)
		default:
			scratch[i] = new(sql.NullFloat64)
		}
		dest[i+1] = scratch[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(index), err)
		}
		if !idx.Valid {
			return nil, fmt.Errorf("row %d: NULL index", len(index))
		}
		index = append(index, idx.Int64)
		for i, c := range data {
			switch v := scratch[i].(type) {
			case *sql.NullInt64:
				if !v.Valid {
					return nil, fmt.Errorf("row %d: NULL %s", len(index)-1, c.name)
				}
				ints[i] = append(ints[i], v.Int64)
			case *sql.NullString:
				strs[i] = append(strs[i], v.String)
			case *sql.NullFloat64:
				f := math.NaN()
				if v.Valid {
					f = v.Float64
				}
				floats[i] = append(floats[i], f)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := table.New(indexColumn, index)
	for i, c := range data {
		switch kindOf(c) {
		case table.Int:
			out, err = out.WithInt(c.name, orEmpty(ints[i], len(index)))
		case table.String:
			out, err = out.WithString(c.name, orEmpty(strs[i], len(index)))
		default:
			out, err = out.WithFloat(c.name, orEmpty(floats[i], len(index)))
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func orEmpty[T any](xs []T, n int) []T {
	if xs == nil {
		return make([]T, n)
	}
	return xs
}

func sqlType(k table.Kind) string {
	switch k {
	case table.Int:
		return "INTEGER"
	case table.String:
		return "TEXT"
	default:
		return "REAL"
	}
}

// WriteTable replaces the named table with the contents of t. NaN values
// are stored as NULL. The write is a single transaction.
func (db *DB) WriteTable(ctx context.Context, name string, t *table.Table) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	cols := t.Columns()
	defs := []string{quoteIdent(t.IndexName()) + " INTEGER NOT NULL"}
	names := []string{quoteIdent(t.IndexName())}
	for _, c := range cols {
		k, _ := t.Kind(c)
		defs = append(defs, quoteIdent(c)+" "+sqlType(k))
		names = append(names, quoteIdent(c))
	}

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", name, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quoteIdent(name), strings.Join(defs, ",\n  "))
	if _, err = tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %q: %w", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(names, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	getters := make([]func(r int) interface{}, len(cols))
	for i, c := range cols {
		k, _ := t.Kind(c)
		switch k {
		case table.Int:
			vals, _ := t.Int(c)
			getters[i] = func(r int) interface{} { return vals[r] }
		case table.String:
			vals, _ := t.Strings(c)
			getters[i] = func(r int) interface{} { return vals[r] }
		default:
			vals, _ := t.Float(c)
			getters[i] = func(r int) interface{} {
				if math.IsNaN(vals[r]) || math.IsInf(vals[r], 0) {
					return nil
				}
				return vals[r]
			}
		}
	}

	args := make([]interface{}, len(names))
	for r, ix := range t.Index() {
		args[0] = ix
		for i, get := range getters {
			args[i+1] = get(r)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}
	return tx.Commit()
}
