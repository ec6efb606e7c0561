package lipsync

import "math"

// rmsLevel returns the root-mean-square level of a sample window.
func rmsLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// spectralCentroid returns the magnitude-weighted mean bin position,
// normalized to 0..1 across the buffer. Empty or silent spectra yield 0.
func spectralCentroid(mags []float32) float64 {
	if len(mags) < 2 {
		return 0
	}
	var weighted, total float64
	for i, m := range mags {
		weighted += float64(i) * float64(m)
		total += float64(m)
	}
	if total <= 0 {
		return 0
	}
	return weighted / total / float64(len(mags)-1)
}

// bandStats returns the energy (RMS of magnitudes) and the normalized
// centroid position (0..1 within the band) of the bins covering
// [lowHz, highHz). binHz is the frequency width of one bin.
func bandStats(mags []float32, binHz, lowHz, highHz float64) (energy, centroid float64) {
	if binHz <= 0 || len(mags) == 0 || highHz <= lowHz {
		return 0, 0
	}
	i0 := int(lowHz / binHz)
	i1 := int(highHz / binHz)
	if i0 < 0 {
		i0 = 0
	}
	if i1 > len(mags) {
		i1 = len(mags)
	}
	if i0 >= i1 {
		return 0, 0
	}

	var sumSq, weighted, total float64
	for i := i0; i < i1; i++ {
		m := float64(mags[i])
		sumSq += m * m
		weighted += float64(i) * m
		total += m
	}
	energy = math.Sqrt(sumSq / float64(i1-i0))
	if total > 0 && i1-i0 > 1 {
		centroid = (weighted/total - float64(i0)) / float64(i1-i0-1)
	}
	return energy, centroid
}

// smoothstep maps 0..1 input onto an s-curve.
func smoothstep(t float64) float64 {
	t = clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}
