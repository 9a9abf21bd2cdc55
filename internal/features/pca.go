package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/table"
)

// PCAModel is a fitted principal component projection. It can be applied to
// any table holding the same channels, so axes fitted once are reusable.
type PCAModel struct {
	Channels   []string
	Means      []float64
	Scales     []float64   // max-min range per channel, 1 when the range is 0
	Components [][]float64 // one unit loading vector per component
	Variance   []float64   // eigenvalue per component
	Ratio      []float64   // variance ratio per component, descending
}

// FitPCA fits the top n principal axes of the given channels. Each channel is
// centered by its mean and scaled by its range before the covariance matrix
// is eigen-decomposed.
func FitPCA(t *table.Table, channels []string, n int) (*PCAModel, error) {
	if len(channels) == 0 {
		return nil, configErr("pca_channels", channels, "at least one channel required")
	}
	if n < 1 || n > len(channels) {
		return nil, configErr("pca_components", n, "must be in [1, %d]", len(channels))
	}
	cols, err := floatColumns(t, channels)
	if err != nil {
		return nil, err
	}
	rows := t.Len()
	if rows < 2 {
		return nil, &SchemaError{Column: channels[0], Reason: fmt.Sprintf("PCA needs at least 2 rows, got %d", rows)}
	}

	d := len(channels)
	m := &PCAModel{
		Channels: append([]string(nil), channels...),
		Means:    make([]float64, d),
		Scales:   make([]float64, d),
	}
	for j, col := range cols {
		for i, v := range col {
			if math.IsNaN(v) {
				return nil, &SchemaError{Column: channels[j], Reason: fmt.Sprintf("NaN at row %d", i)}
			}
		}
		m.Means[j] = stat.Mean(col, nil)
		m.Scales[j] = floats.Max(col) - floats.Min(col)
		if m.Scales[j] == 0 {
			m.Scales[j] = 1
		}
	}

	x := m.normalized(cols, rows)
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, errors.New("pca: eigen-decomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] > values[order[j]] })

	total := 0.0
	for _, v := range values {
		total += math.Max(v, 0)
	}
	for rank, idx := range order {
		v := math.Max(values[idx], 0)
		ratio := 0.0
		if total > 0 {
			ratio = v / total
		}
		m.Ratio = append(m.Ratio, ratio)
		if rank >= n {
			continue
		}
		vec := mat.Col(nil, idx, &vectors)
		fixSign(vec)
		m.Components = append(m.Components, vec)
		m.Variance = append(m.Variance, v)
	}
	return m, nil
}

// normalized returns the centered and range-scaled rows as a matrix.
func (m *PCAModel) normalized(cols [][]float64, rows int) *mat.Dense {
	x := mat.NewDense(rows, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			x.Set(i, j, (v-m.Means[j])/m.Scales[j])
		}
	}
	return x
}

// fixSign flips vec so its largest-magnitude loading is positive.
func fixSign(vec []float64) {
	best := 0
	for i, v := range vec {
		if math.Abs(v) > math.Abs(vec[best]) {
			best = i
		}
	}
	if vec[best] < 0 {
		floats.Scale(-1, vec)
	}
}

// Transform projects the model's channels onto the fitted axes and appends
// pca_1..pca_n.
func (m *PCAModel) Transform(t *table.Table) (*table.Table, error) {
	cols, err := floatColumns(t, m.Channels)
	if err != nil {
		return nil, err
	}
	x := m.normalized(cols, t.Len())
	out := t
	for c, comp := range m.Components {
		proj := make([]float64, t.Len())
		for i := range proj {
			proj[i] = floats.Dot(x.RawRowView(i), comp)
		}
		if out, err = out.WithFloat(PCAColumn(c+1), proj); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PCAColumn names the i-th (1-based) principal component column.
func PCAColumn(i int) string { return fmt.Sprintf("pca_%d", i) }

// ExplainedVariance returns the variance ratio of every principal component
// of the channels, largest first. It is a diagnostic for choosing the
// component count.
func ExplainedVariance(t *table.Table, channels []string) ([]float64, error) {
	m, err := FitPCA(t, channels, len(channels))
	if err != nil {
		return nil, err
	}
	return m.Ratio, nil
}

// ApplyPCA fits n components on t and appends their projections. Axes are
// computed fresh from t on every call.
func ApplyPCA(t *table.Table, channels []string, n int) (*table.Table, error) {
	m, err := FitPCA(t, channels, n)
	if err != nil {
		return nil, err
	}
	return m.Transform(t)
}
