package features

import (
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/motion.report/internal/table"
)

// ClusterColumn holds the k-means cluster of each row.
const ClusterColumn = "cluster"

// KMeans partitions rows into K clusters minimizing the within-cluster sum
// of squared distances. Each restart starts from k-means++ seeds drawn from
// its own generator seeded with Seed+restart, and the restart with the
// lowest inertia wins, so results depend only on the input and parameters.
type KMeans struct {
	K         int
	Restarts  int
	MaxIter   int
	Tolerance float64 // relative to the mean per-column variance
	Seed      int64
	Workers   int
}

// KMeansModel holds fitted centroids. Predict assigns new rows to them.
type KMeansModel struct {
	Columns    []string
	Centroids  [][]float64
	Inertia    float64
	Iterations int
}

// InertiaPoint is one point of an elbow curve.
type InertiaPoint struct {
	K       int
	Inertia float64
}

// Validate checks the parameters against the number of rows to cluster.
func (km KMeans) Validate(rows int) error {
	if km.K < 2 {
		return configErr("cluster_k", km.K, "must be at least 2")
	}
	if km.K > rows {
		return configErr("cluster_k", km.K, "exceeds row count %d", rows)
	}
	if km.Restarts < 1 {
		return configErr("cluster_restarts", km.Restarts, "must be at least 1")
	}
	if km.MaxIter < 1 {
		return configErr("cluster_max_iter", km.MaxIter, "must be at least 1")
	}
	if km.Tolerance < 0 || math.IsNaN(km.Tolerance) {
		return configErr("cluster_tolerance", km.Tolerance, "must be non-negative")
	}
	return nil
}

func points(t *table.Table, columns []string) ([][]float64, error) {
	if len(columns) == 0 {
		return nil, configErr("cluster_columns", columns, "at least one column required")
	}
	cols, err := floatColumns(t, columns)
	if err != nil {
		return nil, err
	}
	pts := make([][]float64, t.Len())
	for i := range pts {
		p := make([]float64, len(cols))
		for j, col := range cols {
			if math.IsNaN(col[i]) {
				return nil, &SchemaError{Column: columns[j], Reason: fmt.Sprintf("NaN at row %d", i)}
			}
			p[j] = col[i]
		}
		pts[i] = p
	}
	return pts, nil
}

// Fit runs the restarts and returns the best model.
func (km KMeans) Fit(t *table.Table, columns []string) (*KMeansModel, error) {
	pts, err := points(t, columns)
	if err != nil {
		return nil, err
	}
	if err := km.Validate(len(pts)); err != nil {
		return nil, err
	}
	tol := km.Tolerance * meanVariance(pts)

	runs := make([]*KMeansModel, km.Restarts)
	var g errgroup.Group
	g.SetLimit(workerLimit(km.Workers))
	for r := range runs {
		r := r
		g.Go(func() error {
			rng := rand.New(rand.NewSource(km.Seed + int64(r)))
			m := lloyd(pts, km.K, km.MaxIter, tol, rng)
			if math.IsInf(m.Inertia, 0) || math.IsNaN(m.Inertia) {
				return fmt.Errorf("k-means restart %d: inertia overflowed; rescale %v", r, columns)
			}
			runs[r] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := runs[0]
	for _, m := range runs[1:] {
		if m.Inertia < best.Inertia {
			best = m
		}
	}
	best.Columns = append([]string(nil), columns...)
	return best, nil
}

// Predict returns the nearest centroid of every row.
func (m *KMeansModel) Predict(t *table.Table) ([]int64, error) {
	pts, err := points(t, m.Columns)
	if err != nil {
		return nil, err
	}
	labels := make([]int64, len(pts))
	for i, p := range pts {
		c, _ := nearest(p, m.Centroids)
		labels[i] = int64(c)
	}
	return labels, nil
}

// FitAssign fits on t and appends the Int cluster column.
func (km KMeans) FitAssign(t *table.Table, columns []string) (*table.Table, error) {
	m, err := km.Fit(t, columns)
	if err != nil {
		return nil, err
	}
	labels, err := m.Predict(t)
	if err != nil {
		return nil, err
	}
	return t.WithInt(ClusterColumn, labels)
}

// InertiaCurve fits one model per k and reports its inertia, for choosing k
// by the elbow method.
func (km KMeans) InertiaCurve(t *table.Table, columns []string, ks []int) ([]InertiaPoint, error) {
	curve := make([]InertiaPoint, 0, len(ks))
	for _, k := range ks {
		run := km
		run.K = k
		m, err := run.Fit(t, columns)
		if err != nil {
			return nil, err
		}
		curve = append(curve, InertiaPoint{K: k, Inertia: m.Inertia})
	}
	return curve, nil
}

func lloyd(pts [][]float64, k, maxIter int, tol float64, rng *rand.Rand) *KMeansModel {
	centroids := seedPlusPlus(pts, k, rng)
	d := len(pts[0])
	assign := make([]int, len(pts))
	dist := make([]float64, len(pts))

	iter := 0
	for iter < maxIter {
		iter++
		for i, p := range pts {
			assign[i], dist[i] = nearest(p, centroids)
		}

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, d)
		}
		for i, p := range pts {
			floats.Add(next[assign[i]], p)
			counts[assign[i]]++
		}
		for c := range next {
			if counts[c] == 0 {
				// Empty cluster: move it to the point farthest from its centroid.
				far := floats.MaxIdx(dist)
				copy(next[c], pts[far])
				dist[far] = 0
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
		}

		shift := 0.0
		for c := range next {
			shift += sqDist(next[c], centroids[c])
		}
		centroids = next
		if shift <= tol {
			break
		}
	}

	inertia := 0.0
	for _, p := range pts {
		_, d2 := nearest(p, centroids)
		inertia += d2
	}
	return &KMeansModel{Centroids: centroids, Inertia: inertia, Iterations: iter}
}

// seedPlusPlus picks k initial centroids, each new one drawn with
// probability proportional to its squared distance from the nearest chosen.
func seedPlusPlus(pts [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), pts[rng.Intn(len(pts))]...))

	minDist := make([]float64, len(pts))
	for i, p := range pts {
		minDist[i] = sqDist(p, centroids[0])
	}
	for len(centroids) < k {
		total := floats.Sum(minDist)
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			acc := 0.0
			for i, d2 := range minDist {
				acc += d2
				if acc >= r {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(pts))
		}
		c := append([]float64(nil), pts[pick]...)
		centroids = append(centroids, c)
		for i, p := range pts {
			if d2 := sqDist(p, c); d2 < minDist[i] {
				minDist[i] = d2
			}
		}
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, cen := range centroids {
		if d2 := sqDist(p, cen); d2 < bestD {
			best, bestD = c, d2
		}
	}
	return best, bestD
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func meanVariance(pts [][]float64) float64 {
	d := len(pts[0])
	n := float64(len(pts))
	total := 0.0
	for j := 0; j < d; j++ {
		mean := 0.0
		for _, p := range pts {
			mean += p[j]
		}
		mean /= n
		v := 0.0
		for _, p := range pts {
			v += (p[j] - mean) * (p[j] - mean)
		}
		total += v / n
	}
	return total / float64(d)
}
