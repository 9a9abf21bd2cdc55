package table

import (
	"errors"
	"fmt"
	"math"
)

// DefaultIndexName is the epoch-millisecond index column of a recording.
const DefaultIndexName = "epoch (ms)"

// Kind identifies the storage type of a column.
type Kind int

const (
	Float Kind = iota
	Int
	String
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case String:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrNoColumn is returned when a named column does not exist.
	ErrNoColumn = errors.New("column not found")
	// ErrKind is returned when a column exists with a different kind.
	ErrKind = errors.New("column kind mismatch")
	// ErrLength is returned when a column length differs from the row count.
	ErrLength = errors.New("column length mismatch")
)

type column struct {
	name    string
	kind    Kind
	floats  []float64
	ints    []int64
	strings []string
}

func (c column) len() int {
	switch c.kind {
	case Float:
		return len(c.floats)
	case Int:
		return len(c.ints)
	default:
		return len(c.strings)
	}
}

// Table is a rectangular set of named columns over a shared int64 index.
type Table struct {
	indexName string
	index     []int64
	cols      []column
	pos       map[string]int
}

// New creates a Table with the given index and no columns. The index slice
// is retained; callers must not modify it afterwards.
func New(indexName string, index []int64) *Table {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Table{
		indexName: indexName,
		index:     index,
		pos:       map[string]int{},
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.index) }

// IndexName returns the name of the index column.
func (t *Table) IndexName() string { return t.indexName }

// Index returns the row index. The slice must be treated as read-only.
func (t *Table) Index() []int64 { return t.index }

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.pos[name]
	return ok
}

// Kind returns the kind of the named column.
func (t *Table) Kind(name string) (Kind, error) {
	i, ok := t.pos[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return t.cols[i].kind, nil
}

func (t *Table) lookup(name string, kind Kind) (column, error) {
	i, ok := t.pos[name]
	if !ok {
		return column{}, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	c := t.cols[i]
	if c.kind != kind {
		return column{}, fmt.Errorf("%w: %q is %s, want %s", ErrKind, name, c.kind, kind)
	}
	return c, nil
}

// Float returns the values of a Float column. The slice must be treated as
// read-only.
func (t *Table) Float(name string) ([]float64, error) {
	c, err := t.lookup(name, Float)
	if err != nil {
		return nil, err
	}
	return c.floats, nil
}

// Int returns the values of an Int column.
func (t *Table) Int(name string) ([]int64, error) {
	c, err := t.lookup(name, Int)
	if err != nil {
		return nil, err
	}
	return c.ints, nil
}

// Strings returns the values of a String column.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.lookup(name, String)
	if err != nil {
		return nil, err
	}
	return c.strings, nil
}

// FloatColumns returns the names of all Float columns in order.
func (t *Table) FloatColumns() []string {
	var names []string
	for _, c := range t.cols {
		if c.kind == Float {
			names = append(names, c.name)
		}
	}
	return names
}

// shallow returns a copy of t sharing column storage.
func (t *Table) shallow() *Table {
	cp := &Table{
		indexName: t.indexName,
		index:     t.index,
		cols:      make([]column, len(t.cols)),
		pos:       make(map[string]int, len(t.pos)),
	}
	copy(cp.cols, t.cols)
	for k, v := range t.pos {
		cp.pos[k] = v
	}
	return cp
}

func (t *Table) with(c column) (*Table, error) {
	if c.name == "" {
		return nil, errors.New("column name must not be empty")
	}
	if c.name == t.indexName {
		return nil, fmt.Errorf("column %q collides with the index", c.name)
	}
	if n := c.len(); n != t.Len() {
		return nil, fmt.Errorf("%w: %q has %d values, table has %d rows", ErrLength, c.name, n, t.Len())
	}
	cp := t.shallow()
	if i, ok := cp.pos[c.name]; ok {
		cp.cols[i] = c
		return cp, nil
	}
	cp.pos[c.name] = len(cp.cols)
	cp.cols = append(cp.cols, c)
	return cp, nil
}

// WithFloat returns a new Table with the Float column added, or replaced in
// place if a column of that name exists. The values slice is retained.
func (t *Table) WithFloat(name string, values []float64) (*Table, error) {
	return t.with(column{name: name, kind: Float, floats: values})
}

// WithInt returns a new Table with the Int column added or replaced.
func (t *Table) WithInt(name string, values []int64) (*Table, error) {
	return t.with(column{name: name, kind: Int, ints: values})
}

// WithString returns a new Table with the String column added or replaced.
func (t *Table) WithString(name string, values []string) (*Table, error) {
	return t.with(column{name: name, kind: String, strings: values})
}

// Drop returns a new Table without the named columns. Unknown names are
// ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cp := &Table{indexName: t.indexName, index: t.index, pos: map[string]int{}}
	for _, c := range t.cols {
		if drop[c.name] {
			continue
		}
		cp.pos[c.name] = len(cp.cols)
		cp.cols = append(cp.cols, c)
	}
	return cp
}

// Take returns a new Table holding the given row positions in order.
func (t *Table) Take(rows []int) *Table {
	index := make([]int64, len(rows))
	for i, r := range rows {
		index[i] = t.index[r]
	}
	cp := &Table{
		indexName: t.indexName,
		index:     index,
		cols:      make([]column, len(t.cols)),
		pos:       make(map[string]int, len(t.pos)),
	}
	for ci, c := range t.cols {
		nc := column{name: c.name, kind: c.kind}
		switch c.kind {
		case Float:
			nc.floats = make([]float64, len(rows))
			for i, r := range rows {
				nc.floats[i] = c.floats[r]
			}
		case Int:
			nc.ints = make([]int64, len(rows))
			for i, r := range rows {
				nc.ints[i] = c.ints[r]
			}
		case String:
			nc.strings = make([]string, len(rows))
			for i, r := range rows {
				nc.strings[i] = c.strings[r]
			}
		}
		cp.cols[ci] = nc
		cp.pos[c.name] = ci
	}
	return cp
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// Concat stacks tables vertically. All parts must have the same index name
// and the same columns, in the same order and of the same kinds.
func Concat(parts ...*Table) (*Table, error) {
	if len(parts) == 0 {
		return nil, errors.New("concat: no tables")
	}
	first := parts[0]
	total := 0
	for pi, p := range parts {
		if p.indexName != first.indexName {
			return nil, fmt.Errorf("concat: part %d index %q, want %q", pi, p.indexName, first.indexName)
		}
		if len(p.cols) != len(first.cols) {
			return nil, fmt.Errorf("concat: part %d has %d columns, want %d", pi, len(p.cols), len(first.cols))
		}
		for ci, c := range p.cols {
			if c.name != first.cols[ci].name || c.kind != first.cols[ci].kind {
				return nil, fmt.Errorf("concat: part %d column %d is %q (%s), want %q (%s)",
					pi, ci, c.name, c.kind, first.cols[ci].name, first.cols[ci].kind)
			}
		}
		total += p.Len()
	}

	index := make([]int64, 0, total)
	for _, p := range parts {
		index = append(index, p.index...)
	}
	out := New(first.indexName, index)
	for ci, c := range first.cols {
		nc := column{name: c.name, kind: c.kind}
		switch c.kind {
		case Float:
			nc.floats = make([]float64, 0, total)
			for _, p := range parts {
				nc.floats = append(nc.floats, p.cols[ci].floats...)
			}
		case Int:
			nc.ints = make([]int64, 0, total)
			for _, p := range parts {
				nc.ints = append(nc.ints, p.cols[ci].ints...)
			}
		case String:
			nc.strings = make([]string, 0, total)
			for _, p := range parts {
				nc.strings = append(nc.strings, p.cols[ci].strings...)
			}
		}
		out.pos[c.name] = len(out.cols)
		out.cols = append(out.cols, nc)
	}
	return out, nil
}

// CompleteRows returns the positions of rows with no NaN in any Float column.
func (t *Table) CompleteRows() []int {
	rows := make([]int, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		ok := true
		for _, c := range t.cols {
			if c.kind == Float && math.IsNaN(c.floats[r]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return rows
}
