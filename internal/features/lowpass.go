package features

import (
	"fmt"
	"math"
	"math/cmplx"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/motion.report/internal/table"
)

// LowPass smooths channels with a digital Butterworth low-pass filter.
//
// The filter runs over the whole table, not per segment, so the first and
// last samples of a set see a little of their neighbours. This boundary
// leakage is accepted as-is.
type LowPass struct {
	SamplingFrequency float64 // Hz
	CutoffFrequency   float64 // Hz, strictly between 0 and SamplingFrequency/2
	Order             int
	// Causal applies the filter forward only. The default is zero-phase
	// forward-backward filtering.
	Causal  bool
	Workers int
}

// Validate checks the filter parameters.
func (lp LowPass) Validate() error {
	if lp.SamplingFrequency <= 0 || math.IsNaN(lp.SamplingFrequency) {
		return configErr("sampling_frequency", lp.SamplingFrequency, "must be positive")
	}
	if lp.Order < 1 {
		return configErr("filter_order", lp.Order, "must be a positive integer")
	}
	nyquist := lp.SamplingFrequency / 2
	if !(lp.CutoffFrequency > 0 && lp.CutoffFrequency < nyquist) {
		return configErr("cutoff_frequency", lp.CutoffFrequency, "must be in (0, %g) Hz", nyquist)
	}
	return nil
}

// Coefficients returns the transfer function numerator b and denominator a
// (a[0] == 1) of the configured filter.
func (lp LowPass) Coefficients() (b, a []float64, err error) {
	if err := lp.Validate(); err != nil {
		return nil, nil, err
	}
	wn := lp.CutoffFrequency / (lp.SamplingFrequency / 2)
	b, a = butterworth(lp.Order, wn)
	return b, a, nil
}

// Filter returns the filtered values of one channel. The table is not
// modified; substituting the result is up to the caller.
func (lp LowPass) Filter(t *table.Table, channel string) ([]float64, error) {
	b, a, err := lp.Coefficients()
	if err != nil {
		return nil, err
	}
	cols, err := floatColumns(t, []string{channel})
	if err != nil {
		return nil, err
	}
	x := cols[0]
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &SchemaError{Column: channel, Reason: fmt.Sprintf("non-finite value at row %d after interpolation", i)}
		}
	}
	if lp.Causal {
		return lfilter(b, a, x, make([]float64, len(a)-1)), nil
	}
	return filtfilt(b, a, x)
}

// Apply filters every channel and replaces the original column with the
// filtered values. Channels are filtered concurrently.
func (lp LowPass) Apply(t *table.Table, channels []string) (*table.Table, error) {
	if err := lp.Validate(); err != nil {
		return nil, err
	}
	filtered := make([][]float64, len(channels))
	var g errgroup.Group
	g.SetLimit(workerLimit(lp.Workers))
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			y, err := lp.Filter(t, ch)
			if err != nil {
				return err
			}
			filtered[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := t
	var err error
	for i, ch := range channels {
		if out, err = out.WithFloat(ch, filtered[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// butterworth designs an order-n low-pass with normalized cutoff wn in (0, 1)
// (1 is Nyquist). Analog prototype poles are scaled to the pre-warped cutoff
// and mapped through the bilinear transform; all zeros sit at z = -1 and the
// gain is set for unity DC response.
func butterworth(order int, wn float64) (b, a []float64) {
	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)
	k2 := complex(2*fs, 0)

	poles := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		p := cmplx.Rect(warped, theta)
		poles[k] = (k2 + p) / (k2 - p)
	}
	a = realPoly(poles)

	b = make([]float64, order+1)
	b[0] = 1
	for i := 1; i <= order; i++ {
		b[i] = b[i-1] * float64(order-i+1) / float64(i)
	}
	floats.Scale(floats.Sum(a)/floats.Sum(b), b)
	return b, a
}

// realPoly expands prod(z - r) for conjugate-symmetric roots and returns the
// real coefficients, highest power first.
func realPoly(roots []complex128) []float64 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		for i := range c {
			next[i] += c[i]
			next[i+1] -= r * c[i]
		}
		c = next
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}

// lfilter runs a direct form II transposed IIR filter with initial state zi
// (len(a)-1 values). len(b) must equal len(a) and a[0] must be 1.
func lfilter(b, a, x, zi []float64) []float64 {
	n := len(a)
	z := make([]float64, n-1)
	copy(z, zi)
	y := make([]float64, len(x))
	for i, xi := range x {
		yi := b[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = b[j+1]*xi + z[j+1] - a[j+1]*yi
		}
		z[n-2] = b[n-1]*xi - a[n-1]*yi
		y[i] = yi
	}
	return y
}

// lfilterZi returns the steady-state filter state for a unit step input, so
// a constant signal passes through without a start-up transient.
func lfilterZi(b, a []float64) ([]float64, error) {
	n := len(a) - 1
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, a[i+1])
		if i < n-1 {
			m.Set(i, i+1, -1)
		}
		m.Set(i, i, m.At(i, i)+1)
	}
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, b[i+1]-a[i+1]*b[0])
	}
	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("solve filter initial state: %w", err)
	}
	return zi.RawVector().Data, nil
}

// filtfilt applies the filter forward then backward for zero phase. The
// signal is extended at both ends by odd reflection of 3*len(a) samples
// (fewer for short signals) to tame edge transients.
func filtfilt(b, a, x []float64) ([]float64, error) {
	if len(x) == 0 {
		return []float64{}, nil
	}
	edge := 3 * len(a)
	if edge > len(x)-1 {
		edge = len(x) - 1
	}
	ext := oddExtend(x, edge)

	zi, err := lfilterZi(b, a)
	if err != nil {
		return nil, err
	}
	scaled := func(v float64) []float64 {
		out := make([]float64, len(zi))
		for i, z := range zi {
			out[i] = z * v
		}
		return out
	}

	y := lfilter(b, a, ext, scaled(ext[0]))
	reverse(y)
	y = lfilter(b, a, y, scaled(y[0]))
	reverse(y)
	return y[edge : len(y)-edge], nil
}

func oddExtend(x []float64, edge int) []float64 {
	n := len(x)
	out := make([]float64, 0, n+2*edge)
	for i := edge; i >= 1; i-- {
		out = append(out, 2*x[0]-x[i])
	}
	out = append(out, x...)
	for i := n - 2; i >= n-1-edge; i-- {
		out = append(out, 2*x[n-1]-x[i])
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
