package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrumAnalyzer turns a window of time-domain samples into normalized
// magnitude bins. One instance serves one source; it reuses its scratch
// buffers across calls so the frame path does not allocate.
type spectrumAnalyzer struct {
	mu      sync.Mutex
	fft     *fourier.FFT
	window  []float64
	scratch []float64
	coeffs  []complex128
}

func newSpectrumAnalyzer(fftSize int) *spectrumAnalyzer {
	a := &spectrumAnalyzer{
		fft:     fourier.NewFFT(fftSize),
		window:  make([]float64, fftSize),
		scratch: make([]float64, fftSize),
		coeffs:  make([]complex128, fftSize/2+1),
	}
	// Hann window
	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return a
}

// magnitudes computes normalized magnitude bins for the given samples and
// writes up to fftSize/2 of them into dst, returning the count written.
// Short sample windows are zero-padded.
func (a *spectrumAnalyzer) magnitudes(samples []float32, dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.scratch)
	for i := 0; i < n; i++ {
		if i < len(samples) {
			a.scratch[i] = float64(samples[i]) * a.window[i]
		} else {
			a.scratch[i] = 0
		}
	}

	a.fft.Coefficients(a.coeffs, a.scratch)

	bins := n / 2
	if bins > len(dst) {
		bins = len(dst)
	}
	// Hann window halves the coherent gain, so scale by 4/n instead of 2/n
	// to keep a full-scale sine near 1.0.
	scale := 4.0 / float64(n)
	for i := 0; i < bins; i++ {
		m := cmplxAbs(a.coeffs[i]) * scale
		if m > 1 {
			m = 1
		}
		dst[i] = float32(m)
	}
	return bins
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
