package audio

import (
	"math"
	"strings"
)

// Partial is one sine component of a synthesized signal.
type Partial struct {
	Freq float64 // Hz
	Amp  float64 // 0..1
}

// Synthesize renders a sum of sine partials as mono samples.
func Synthesize(partials []Partial, sampleRate int, seconds float64) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		v := 0.0
		for _, p := range partials {
			v += p.Amp * math.Sin(2*math.Pi*p.Freq*t)
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out
}

// VowelSegment describes one stretch of a synthesized utterance by its
// first two formant frequencies.
type VowelSegment struct {
	F1, F2   float64 // Hz
	Duration float64 // seconds
	Level    float64 // 0..1
}

// SynthesizeSpeech renders a crude vowel sequence with soft attack and
// release per segment. Good enough to drive the analysis strategies in
// demos without a speech backend.
func SynthesizeSpeech(segments []VowelSegment, sampleRate int) []float32 {
	var out []float32
	for _, seg := range segments {
		n := int(seg.Duration * float64(sampleRate))
		ramp := n / 8
		if ramp < 1 {
			ramp = 1
		}
		for i := 0; i < n; i++ {
			t := float64(i) / float64(sampleRate)
			env := 1.0
			if i < ramp {
				env = float64(i) / float64(ramp)
			} else if i > n-ramp {
				env = float64(n-i) / float64(ramp)
			}
			v := 0.6*math.Sin(2*math.Pi*seg.F1*t) + 0.35*math.Sin(2*math.Pi*seg.F2*t)
			out = append(out, float32(v*env*seg.Level))
		}
	}
	return out
}

// vowelFormants maps letters to rough adult F1/F2 pairs. Consonants get
// a short weak segment so word rhythm survives.
var vowelFormants = map[rune][2]float64{
	'a': {750, 1200},
	'e': {450, 2100},
	'i': {300, 2300},
	'o': {500, 900},
	'u': {350, 800},
	'y': {300, 2100},
}

// PlanSpeech turns text into a vowel segment sequence for
// SynthesizeSpeech. Not phonetically serious; it exists so demos and the
// preview can speak without a TTS backend.
func PlanSpeech(text string) []VowelSegment {
	var segs []VowelSegment
	for _, word := range strings.Fields(strings.ToLower(text)) {
		for _, r := range word {
			if f, ok := vowelFormants[r]; ok {
				segs = append(segs, VowelSegment{F1: f[0], F2: f[1], Duration: 0.14, Level: 0.8})
			} else if r >= 'a' && r <= 'z' {
				segs = append(segs, VowelSegment{F1: 250, F2: 1800, Duration: 0.05, Level: 0.3})
			}
		}
		segs = append(segs, VowelSegment{F1: 100, F2: 300, Duration: 0.08, Level: 0})
	}
	return segs
}
