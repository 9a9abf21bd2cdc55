package features

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/motion.report/internal/table"
)

// Frequency computes spectral features over a trailing window per segment.
type Frequency struct {
	Window            int     // samples
	SamplingFrequency float64 // Hz
	Workers           int
	Notices           NoticeSink
}

// Validate checks the window size and sampling frequency.
func (f Frequency) Validate() error {
	if f.Window < 2 {
		return configErr("frequency_window", f.Window, "must be at least 2 samples")
	}
	if f.SamplingFrequency <= 0 || math.IsNaN(f.SamplingFrequency) {
		return configErr("sampling_frequency", f.SamplingFrequency, "must be positive")
	}
	// Bin columns are named by the rounded frequency, so names must differ.
	bins := f.Bins()
	for k := 1; k < len(bins); k++ {
		if bins[k] == bins[k-1] {
			return configErr("frequency_window", f.Window,
				"bins %d and %d both round to %s Hz at %g Hz sampling", k-1, k, formatHz(bins[k]), f.SamplingFrequency)
		}
	}
	return nil
}

// Bins returns the frequency of each real DFT bin for the window, from 0 up
// to Nyquist in steps of SamplingFrequency/Window, rounded to 3 decimals.
func (f Frequency) Bins() []float64 {
	bins := make([]float64, f.Window/2+1)
	for k := range bins {
		hz := float64(k) * f.SamplingFrequency / float64(f.Window)
		bins[k] = math.Round(hz*1000) / 1000
	}
	return bins
}

// MaxFreqColumn, WeightedFreqColumn and PSEColumn name the summary spectral
// features of a channel.
func MaxFreqColumn(channel string) string      { return channel + "_max_freq" }
func WeightedFreqColumn(channel string) string { return channel + "_freq_weighted" }
func PSEColumn(channel string) string          { return channel + "_pse" }

// BinColumn names the amplitude column of one frequency bin.
func BinColumn(channel string, hz float64, window int) string {
	return fmt.Sprintf("%s_freq_%s_Hz_ws_%d", channel, formatHz(hz), window)
}

// formatHz prints at least one decimal digit: 0.0, 1.429, 2.5.
func formatHz(hz float64) string {
	s := strconv.FormatFloat(hz, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Columns lists the columns Apply appends for one channel, in order.
func (f Frequency) Columns(channel string) []string {
	cols := []string{MaxFreqColumn(channel), WeightedFreqColumn(channel), PSEColumn(channel)}
	for _, hz := range f.Bins() {
		cols = append(cols, BinColumn(channel, hz, f.Window))
	}
	return cols
}

// Apply appends, for every channel, the frequency of maximum amplitude, the
// amplitude-weighted mean frequency, the power spectral entropy and one
// amplitude column per bin. Rows keep their original index. The first
// Window-1 rows of each set are NaN.
func (f Frequency) Apply(t *table.Table, channels []string) (*table.Table, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := floatColumns(t, channels); err != nil {
		return nil, err
	}
	bins := f.Bins()
	return perSegment(t, f.Workers, func(seg table.Segment, sub *table.Table) (*table.Table, error) {
		n := sub.Len()
		if n > 0 && n < f.Window {
			notify(f.Notices, &DataSufficiencyError{Stage: "frequency", Set: seg.ID, Rows: n, Window: f.Window})
		}
		cols, err := floatColumns(sub, channels)
		if err != nil {
			return nil, err
		}

		// One plan per segment, reused for every row and channel.
		fft := fourier.NewFFT(f.Window)
		coeffs := make([]complex128, len(bins))
		amp := make([]float64, len(bins))

		out := sub
		for ci, ch := range channels {
			spec := newSpectrum(n, len(bins))
			x := cols[ci]
			for i := f.Window - 1; i < n; i++ {
				win := x[i-f.Window+1 : i+1]
				if hasNaN(win) {
					continue
				}
				coeffs = fft.Coefficients(coeffs, win)
				for k, c := range coeffs {
					amp[k] = cmplx.Abs(c)
				}
				spec.set(i, bins, amp)
			}
			names := f.Columns(ch)
			for k, vals := range spec.columns() {
				if out, err = out.WithFloat(names[k], vals); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	})
}

// spectrum accumulates per-row spectral features of one channel.
type spectrum struct {
	maxFreq, weighted, pse []float64
	amps                   [][]float64
}

func newSpectrum(rows, nbins int) *spectrum {
	s := &spectrum{
		maxFreq:  nanSlice(rows),
		weighted: nanSlice(rows),
		pse:      nanSlice(rows),
		amps:     make([][]float64, nbins),
	}
	for k := range s.amps {
		s.amps[k] = nanSlice(rows)
	}
	return s
}

func (s *spectrum) set(row int, bins, amp []float64) {
	for k, a := range amp {
		s.amps[k][row] = a
	}
	s.maxFreq[row] = bins[floats.MaxIdx(amp)]

	s.weighted[row] = 0
	if total := floats.Sum(amp); total > 0 {
		s.weighted[row] = floats.Dot(bins, amp) / total
	}
	s.pse[row] = spectralEntropy(amp)
}

func (s *spectrum) columns() [][]float64 {
	return append([][]float64{s.maxFreq, s.weighted, s.pse}, s.amps...)
}

// spectralEntropy is the Shannon entropy of the normalized power spectrum,
// PSD_k = amp_k²/nbins, with 0·log 0 taken as 0. A silent window has
// entropy 0.
func spectralEntropy(amp []float64) float64 {
	psd := make([]float64, len(amp))
	for k, a := range amp {
		psd[k] = a * a / float64(len(amp))
	}
	total := floats.Sum(psd)
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, p := range psd {
		if p == 0 {
			continue
		}
		q := p / total
		h -= q * math.Log(q)
	}
	return h
}
