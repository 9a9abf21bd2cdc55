package table

// Standard metadata column names of a recording.
const (
	SetColumn      = "set"
	CategoryColumn = "category"
	LabelColumn    = "label"
)

// Segment is one contiguous recording bout: the rows sharing a set id.
type Segment struct {
	ID   int64
	Rows []int
}

// Segments groups rows by the Int column setColumn. Segments are returned in
// order of first appearance and each keeps its rows in table order.
func (t *Table) Segments(setColumn string) ([]Segment, error) {
	ids, err := t.Int(setColumn)
	if err != nil {
		return nil, err
	}
	var segs []Segment
	at := map[int64]int{}
	for r, id := range ids {
		i, ok := at[id]
		if !ok {
			i = len(segs)
			at[id] = i
			segs = append(segs, Segment{ID: id})
		}
		segs[i].Rows = append(segs[i].Rows, r)
	}
	return segs, nil
}
